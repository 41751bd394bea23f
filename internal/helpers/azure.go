package helpers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/organization"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

// Common Azure locations
var AzureLocations = []string{
	"eastus",
	"eastus2",
	"westus",
	"westus2",
	"centralus",
	"northeurope",
	"westeurope",
	"southeastasia",
	"eastasia",
	"japaneast",
	"japanwest",
	"australiaeast",
	"australiasoutheast",
	"southcentralus",
	"northcentralus",
	"brazilsouth",
	"centralindia",
	"southindia",
	"westindia",
}

// GetAzureCredentials returns Azure credentials using DefaultAzureCredential
func GetAzureCredentials() (*azidentity.DefaultAzureCredential, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get Azure credentials: %w", err)
	}
	return cred, nil
}

// GetSubscriptionDetails gets details about an Azure subscription
func GetSubscriptionDetails(ctx context.Context, cred azcore.TokenCredential, subscriptionID string) (*armsubscriptions.ClientGetResponse, error) {
	subsClient, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	sub, err := subsClient.Get(ctx, subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription details: %w", err)
	}

	return &sub, nil
}

// GetTenantDetails gets the display name and ID of the Azure tenant
func GetTenantDetails(ctx context.Context, cred azcore.TokenCredential) (string, string, error) {
	graphClient, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to create Graph client: %w", err)
	}

	org, err := graphClient.Organization().Get(ctx, &organization.OrganizationRequestBuilderGetRequestConfiguration{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get organization details: %w", err)
	}

	tenantName := "Unknown"
	tenantID := "Unknown"

	if orgValue := org.GetValue(); len(orgValue) > 0 {
		if displayName := orgValue[0].GetDisplayName(); displayName != nil {
			tenantName = *displayName
		}
		if id := orgValue[0].GetId(); id != nil {
			tenantID = *id
		}
	}

	return tenantName, tenantID, nil
}

// GetResourceClient creates a new Azure Resource Management client
func GetResourceClient(cred azcore.TokenCredential, subscriptionID string) (*armresources.Client, error) {
	client, err := armresources.NewClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource client: %w", err)
	}
	return client, nil
}

// CountResources counts Azure resources by type
func CountResources(ctx context.Context, client *armresources.Client) ([]*types.ResourceCount, error) {
	var resourcesCount []*types.ResourceCount
	pager := client.NewListPager(nil)

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get next page of resources: %w", err)
		}

		for _, resource := range page.Value {
			resourcesCount = addResourceCount(resourcesCount, *resource.Type)
		}
	}

	return resourcesCount, nil
}

func addResourceCount(resourcesCount []*types.ResourceCount, resourceType string) []*types.ResourceCount {
	for _, rc := range resourcesCount {
		if rc.ResourceType == resourceType {
			rc.Count++
			return resourcesCount
		}
	}

	resourcesCount = append(resourcesCount, &types.ResourceCount{
		ResourceType: resourceType,
		Count:        1,
	})
	return resourcesCount
}

// GetEnvironmentDetails gets all Azure environment details for one subscription
func GetEnvironmentDetails(ctx context.Context, subscriptionID string) (*types.AzureEnvironmentDetails, error) {
	cred, err := GetAzureCredentials()
	if err != nil {
		return nil, err
	}

	sub, err := GetSubscriptionDetails(ctx, cred, subscriptionID)
	if err != nil {
		return nil, err
	}

	tenantName, tenantID, err := GetTenantDetails(ctx, cred)
	if err != nil {
		return nil, err
	}

	client, err := GetResourceClient(cred, subscriptionID)
	if err != nil {
		return nil, err
	}

	resources, err := CountResources(ctx, client)
	if err != nil {
		return nil, err
	}

	stateStr := "Unknown"
	if sub.State != nil {
		stateStr = string(*sub.State)
	}

	return &types.AzureEnvironmentDetails{
		TenantName:       tenantName,
		TenantID:         tenantID,
		SubscriptionID:   *sub.SubscriptionID,
		SubscriptionName: *sub.DisplayName,
		State:            stateStr,
		Tags:             sub.Tags,
		Resources:        resources,
	}, nil
}

// ParseLocationsOption parses the locations option string
func ParseLocationsOption(locationsOpt string) ([]string, error) {
	if locationsOpt == "ALL" {
		return AzureLocations, nil
	}

	locations := strings.Split(locationsOpt, ",")
	for _, location := range locations {
		if !IsValidLocation(location) {
			return nil, fmt.Errorf("invalid location: %s", location)
		}
	}
	return locations, nil
}

// IsValidLocation checks if a location is valid
func IsValidLocation(location string) bool {
	for _, validLocation := range AzureLocations {
		if strings.EqualFold(location, validLocation) {
			return true
		}
	}
	return false
}

// ListSubscriptions returns all subscription IDs accessible to the credential
func ListSubscriptions(ctx context.Context, cred azcore.TokenCredential) ([]string, error) {
	logger := logs.ConsoleLogger()

	subsClient, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	var subscriptionIDs []string
	pager := subsClient.NewListPager(nil)

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list subscriptions: %w", err)
		}

		for _, sub := range page.Value {
			if sub.SubscriptionID == nil {
				continue
			}

			state := "Unknown"
			if sub.State != nil {
				state = string(*sub.State)
			}

			name := "Unknown"
			if sub.DisplayName != nil {
				name = *sub.DisplayName
			}

			logger.Debug("Found subscription", "id", *sub.SubscriptionID, "name", name, "state", state)
			subscriptionIDs = append(subscriptionIDs, *sub.SubscriptionID)
		}
	}

	if len(subscriptionIDs) == 0 {
		return nil, fmt.Errorf("no accessible subscriptions found")
	}

	logger.Info("Subscriptions resolved", "count", len(subscriptionIDs))
	return subscriptionIDs, nil
}
