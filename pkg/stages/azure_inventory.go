package stages

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

// AzureListAllStage lists every resource in each incoming subscription via an
// Azure Resource Graph query and emits one detail set per subscription.
func AzureListAllStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan *types.AzureResourceDetails {
	logger := logs.NewStageLogger(ctx, opts, "AzureListAllStage")
	out := make(chan *types.AzureResourceDetails)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		argClient, err := helpers.NewARGClient(cred)
		if err != nil {
			logger.Error("Failed to create ARG client", slog.String("error", err.Error()))
			return
		}

		tenantName, tenantID, err := helpers.GetTenantDetails(ctx, cred)
		if err != nil {
			logger.Debug("Could not resolve tenant details", slog.String("error", err.Error()))
		}

		for subscription := range in {
			logger.Info("Listing Azure resources", slog.String("subscription", subscription))

			details := &types.AzureResourceDetails{
				SubscriptionID:   subscription,
				SubscriptionName: subscription,
				TenantID:         tenantID,
				TenantName:       tenantName,
			}

			if sub, err := helpers.GetSubscriptionDetails(ctx, cred, subscription); err == nil && sub.DisplayName != nil {
				details.SubscriptionName = *sub.DisplayName
			}

			query := fmt.Sprintf(helpers.QueryAllResources, subscription)
			queryOpts := &helpers.ARGQueryOptions{Subscriptions: []string{subscription}}

			err = argClient.ExecutePaginatedQuery(ctx, query, queryOpts, func(response *armresourcegraph.ClientResourcesResponse) error {
				details.Resources = append(details.Resources, parseARGRows(response)...)
				return nil
			})
			if err != nil {
				if helpers.IsDeniedError(err) {
					// Keep going with the remaining subscriptions.
					logger.Info("No access to subscription", slog.String("subscription", subscription))
					details.Resources = append(details.Resources, types.ResourceInfo{
						Subscription: subscription,
						Type:         "NO_ACCESS",
					})
				} else {
					logger.Error("Failed to query resources",
						slog.String("subscription", subscription),
						slog.String("error", err.Error()))
					continue
				}
			}

			if len(details.Resources) == 0 {
				logger.Info("No resources found in subscription", slog.String("subscription", subscription))
			}

			select {
			case out <- details:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func parseARGRows(response *armresourcegraph.ClientResourcesResponse) []types.ResourceInfo {
	if response == nil || response.Data == nil {
		return nil
	}

	rows, ok := response.Data.([]interface{})
	if !ok {
		return nil
	}

	var resources []types.ResourceInfo
	for _, row := range rows {
		item, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		info := types.ResourceInfo{
			ID:            safeGetString(item, "id"),
			Name:          safeGetString(item, "name"),
			Type:          safeGetString(item, "type"),
			Location:      safeGetString(item, "location"),
			ResourceGroup: safeGetString(item, "resourceGroup"),
			Subscription:  helpers.ExtractSubscription(safeGetString(item, "id")),
		}

		if tags, ok := item["tags"].(map[string]interface{}); ok {
			info.Tags = make(map[string]string, len(tags))
			for k, v := range tags {
				if s, ok := v.(string); ok {
					info.Tags[k] = s
				}
			}
		}

		if props, ok := item["properties"].(map[string]interface{}); ok {
			info.Properties = props
		}

		resources = append(resources, info)
	}

	return resources
}

func safeGetString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprintf("%v", v)
	}
	return ""
}

// AzureSummaryStage resolves the tenant, subscription, and per-type resource
// counts for each incoming subscription.
func AzureSummaryStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan *types.AzureEnvironmentDetails {
	logger := logs.NewStageLogger(ctx, opts, "AzureSummaryStage")
	out := make(chan *types.AzureEnvironmentDetails)

	go func() {
		defer close(out)

		for subscription := range in {
			details, err := helpers.GetEnvironmentDetails(ctx, subscription)
			if err != nil {
				logger.Error("Failed to summarize subscription",
					slog.String("subscription", subscription),
					slog.String("error", err.Error()))
				continue
			}

			select {
			case out <- details:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
