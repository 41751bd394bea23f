package rbacsuite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"
	"github.com/google/uuid"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	graphapplications "github.com/microsoftgraph/msgraph-sdk-go/applications"
	graphmodels "github.com/microsoftgraph/msgraph-sdk-go/models"
	graphserviceprincipals "github.com/microsoftgraph/msgraph-sdk-go/serviceprincipals"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

type operatorClients struct {
	groups      *armresources.ResourceGroupsClient
	roleDefs    *armauthorization.RoleDefinitionsClient
	roleAssigns *armauthorization.RoleAssignmentsClient
	vnets       *armnetwork.VirtualNetworksClient
	routeTables *armnetwork.RouteTablesClient
	publicIPs   *armnetwork.PublicIPAddressesClient
	natGateways *armnetwork.NatGatewaysClient
	storage     *armstorage.AccountsClient
	graph       *msgraphsdk.GraphServiceClient
}

func newOperatorClients(run *RunContext) (*operatorClients, error) {
	c := &operatorClients{}
	var err error

	if c.groups, err = armresources.NewResourceGroupsClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}
	if c.roleDefs, err = armauthorization.NewRoleDefinitionsClient(run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create role definitions client: %w", err)
	}
	if c.roleAssigns, err = armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create role assignments client: %w", err)
	}
	if c.vnets, err = armnetwork.NewVirtualNetworksClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create vnet client: %w", err)
	}
	if c.routeTables, err = armnetwork.NewRouteTablesClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create route table client: %w", err)
	}
	if c.publicIPs, err = armnetwork.NewPublicIPAddressesClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create public IP client: %w", err)
	}
	if c.natGateways, err = armnetwork.NewNatGatewaysClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create NAT gateway client: %w", err)
	}
	if c.storage, err = armstorage.NewAccountsClient(run.Subscription, run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create storage accounts client: %w", err)
	}
	if c.graph, err = msgraphsdk.NewGraphServiceClientWithCredentials(run.Operator, nil); err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}

	return c, nil
}

// environmentNames derives every scaffold name from the prefix and run ID so
// a later run against the same ID finds the same resources.
func environmentNames(prefix, runID string) *Environment {
	compact := strings.ToLower(strings.ReplaceAll(prefix+runID, "-", ""))
	storageName := compact + "sa"
	if len(storageName) > 24 {
		storageName = storageName[:24]
	}

	return &Environment{
		ResourceGroup: fmt.Sprintf("%s-%s-rg", prefix, runID),
		VNets: []string{
			fmt.Sprintf("%s-%s-vnet-1", prefix, runID),
			fmt.Sprintf("%s-%s-vnet-2", prefix, runID),
		},
		Subnets: []string{
			fmt.Sprintf("%s-%s-snet-1a", prefix, runID),
			fmt.Sprintf("%s-%s-snet-1b", prefix, runID),
			fmt.Sprintf("%s-%s-snet-2a", prefix, runID),
			fmt.Sprintf("%s-%s-snet-2b", prefix, runID),
		},
		RouteTable: fmt.Sprintf("%s-%s-rt", prefix, runID),
		PublicIPs: []string{
			fmt.Sprintf("%s-%s-pip-1", prefix, runID),
			fmt.Sprintf("%s-%s-pip-2", prefix, runID),
		},
		NATGateway:     fmt.Sprintf("%s-%s-nat", prefix, runID),
		StorageAccount: storageName,
	}
}

var vnetAddressPlan = []struct {
	space   string
	subnets []string
}{
	{space: "10.90.0.0/16", subnets: []string{"10.90.1.0/24", "10.90.2.0/24"}},
	{space: "10.91.0.0/16", subnets: []string{"10.91.1.0/24", "10.91.2.0/24"}},
}

// Setup provisions the scaffold with the operator credential. Every step is
// get-then-create so re-running against the same run ID reuses what exists.
// With verifyOnly the resource group must already exist; the remaining steps
// still run, which resolves IDs and mints a fresh client secret.
func (s *Suite) setupEnvironment(ctx context.Context, run *RunContext, clients *operatorClients, verifyOnly bool) error {
	env := run.Env

	if verifyOnly {
		group, err := clients.groups.Get(ctx, env.ResourceGroup, nil)
		if err != nil {
			return fmt.Errorf("skip-setup requires resource group %s to exist: %w", env.ResourceGroup, err)
		}
		env.ResourceGroupID = *group.ID
	} else {
		if err := s.ensureResourceGroup(ctx, run, clients); err != nil {
			return err
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context, *RunContext, *operatorClients) error
	}{
		{"service principal", s.ensureServicePrincipal},
		{"role definition", s.ensureRoleDefinition},
		{"role assignment", s.ensureRoleAssignment},
		{"public IPs", s.ensurePublicIPs},
		{"NAT gateway", s.ensureNATGateway},
		{"route table", s.ensureRouteTable},
		{"virtual networks", s.ensureVirtualNetworks},
		{"storage account", s.ensureStorageAccount},
	}
	for _, step := range steps {
		s.logger.Info("Provisioning", slog.String("step", step.name))
		if err := step.fn(ctx, run, clients); err != nil {
			return fmt.Errorf("setup step %q failed: %w", step.name, err)
		}
	}

	return nil
}

func (s *Suite) ensureResourceGroup(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env

	if group, err := clients.groups.Get(ctx, env.ResourceGroup, nil); err == nil {
		env.ResourceGroupID = *group.ID
		return nil
	} else if !helpers.IsNotFoundError(err) {
		return err
	}

	group, err := clients.groups.CreateOrUpdate(ctx, env.ResourceGroup, armresources.ResourceGroup{
		Location: to.Ptr(run.Location),
		Tags:     run.Tags(),
	}, nil)
	if err != nil {
		return err
	}
	env.ResourceGroupID = *group.ID
	return nil
}

func (s *Suite) ensureServicePrincipal(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env
	displayName := fmt.Sprintf("%s-%s-sp", run.Config.NamePrefix, run.RunID)
	filter := fmt.Sprintf("displayName eq '%s'", displayName)

	existing, err := clients.graph.Applications().Get(ctx, &graphapplications.ApplicationsRequestBuilderGetRequestConfiguration{
		QueryParameters: &graphapplications.ApplicationsRequestBuilderGetQueryParameters{Filter: &filter},
	})
	if err != nil {
		return fmt.Errorf("failed to look up application: %w", err)
	}

	if apps := existing.GetValue(); len(apps) > 0 {
		env.AppObjectID = *apps[0].GetId()
		env.AppClientID = *apps[0].GetAppId()
	} else {
		app := graphmodels.NewApplication()
		app.SetDisplayName(&displayName)
		created, err := clients.graph.Applications().Post(ctx, app, nil)
		if err != nil {
			return fmt.Errorf("failed to create application: %w", err)
		}
		env.AppObjectID = *created.GetId()
		env.AppClientID = *created.GetAppId()
	}

	spFilter := fmt.Sprintf("appId eq '%s'", env.AppClientID)
	existingSPs, err := clients.graph.ServicePrincipals().Get(ctx, &graphserviceprincipals.ServicePrincipalsRequestBuilderGetRequestConfiguration{
		QueryParameters: &graphserviceprincipals.ServicePrincipalsRequestBuilderGetQueryParameters{Filter: &spFilter},
	})
	if err != nil {
		return fmt.Errorf("failed to look up service principal: %w", err)
	}

	if sps := existingSPs.GetValue(); len(sps) > 0 {
		env.SPObjectID = *sps[0].GetId()
	} else {
		sp := graphmodels.NewServicePrincipal()
		sp.SetAppId(&env.AppClientID)
		created, err := clients.graph.ServicePrincipals().Post(ctx, sp, nil)
		if err != nil {
			return fmt.Errorf("failed to create service principal: %w", err)
		}
		env.SPObjectID = *created.GetId()
	}

	// Secrets are unrecoverable after creation, so every run mints its own.
	secretName := fmt.Sprintf("nimbus-%s", run.RunID)
	passwordCredential := graphmodels.NewPasswordCredential()
	passwordCredential.SetDisplayName(&secretName)
	body := graphapplications.NewItemAddPasswordPostRequestBody()
	body.SetPasswordCredential(passwordCredential)

	secret, err := clients.graph.Applications().ByApplicationId(env.AppObjectID).AddPassword().Post(ctx, body, nil)
	if err != nil {
		return fmt.Errorf("failed to add client secret: %w", err)
	}
	env.clientSecret = *secret.GetSecretText()

	return nil
}

func (s *Suite) ensureRoleDefinition(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env
	role := run.Config.Role
	scope := env.ResourceGroupID
	filter := fmt.Sprintf("roleName eq '%s'", role.Name)

	pager := clients.roleDefs.NewListPager(scope, &armauthorization.RoleDefinitionsClientListOptions{Filter: &filter})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list role definitions: %w", err)
		}
		for _, def := range page.Value {
			if def.Properties != nil && def.Properties.RoleName != nil && *def.Properties.RoleName == role.Name {
				env.RoleDefinitionID = *def.ID
				return nil
			}
		}
	}

	definitionName := uuid.NewString()
	permission := &armauthorization.Permission{}
	for _, action := range role.Actions {
		permission.Actions = append(permission.Actions, to.Ptr(action))
	}
	for _, notAction := range role.NotActions {
		permission.NotActions = append(permission.NotActions, to.Ptr(notAction))
	}

	created, err := clients.roleDefs.CreateOrUpdate(ctx, scope, definitionName, armauthorization.RoleDefinition{
		Properties: &armauthorization.RoleDefinitionProperties{
			RoleName:         to.Ptr(role.Name),
			Description:      to.Ptr(role.Description),
			RoleType:         to.Ptr("CustomRole"),
			Permissions:      []*armauthorization.Permission{permission},
			AssignableScopes: []*string{to.Ptr(scope)},
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to create role definition: %w", err)
	}
	env.RoleDefinitionID = *created.ID

	return nil
}

func (s *Suite) ensureRoleAssignment(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env
	filter := fmt.Sprintf("principalId eq '%s'", env.SPObjectID)

	pager := clients.roleAssigns.NewListForResourceGroupPager(env.ResourceGroup, &armauthorization.RoleAssignmentsClientListForResourceGroupOptions{Filter: &filter})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list role assignments: %w", err)
		}
		for _, assignment := range page.Value {
			if assignment.Properties != nil && assignment.Properties.RoleDefinitionID != nil &&
				strings.EqualFold(*assignment.Properties.RoleDefinitionID, env.RoleDefinitionID) {
				env.RoleAssignmentID = *assignment.ID
				return nil
			}
		}
	}

	// AAD needs a moment before a fresh SP is assignable.
	assignmentName := uuid.NewString()
	policy := helpers.RetryPolicy{Attempts: run.Config.Retry.Attempts, Interval: run.Config.Retry.Interval()}
	var created armauthorization.RoleAssignmentsClientCreateResponse
	err := helpers.Retry(ctx, policy, func() error {
		var err error
		created, err = clients.roleAssigns.Create(ctx, env.ResourceGroupID, assignmentName, armauthorization.RoleAssignmentCreateParameters{
			Properties: &armauthorization.RoleAssignmentProperties{
				RoleDefinitionID: to.Ptr(env.RoleDefinitionID),
				PrincipalID:      to.Ptr(env.SPObjectID),
			},
		}, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create role assignment: %w", err)
	}
	env.RoleAssignmentID = *created.ID

	return nil
}

func (s *Suite) ensurePublicIPs(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env
	for _, name := range env.PublicIPs {
		if _, err := clients.publicIPs.Get(ctx, env.ResourceGroup, name, nil); err == nil {
			continue
		} else if !helpers.IsNotFoundError(err) {
			return err
		}

		poller, err := clients.publicIPs.BeginCreateOrUpdate(ctx, env.ResourceGroup, name, armnetwork.PublicIPAddress{
			Location: to.Ptr(run.Location),
			Tags:     run.Tags(),
			SKU:      &armnetwork.PublicIPAddressSKU{Name: to.Ptr(armnetwork.PublicIPAddressSKUNameStandard)},
			Properties: &armnetwork.PublicIPAddressPropertiesFormat{
				PublicIPAllocationMethod: to.Ptr(armnetwork.IPAllocationMethodStatic),
			},
		}, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to create public IP %s: %w", name, err)
		}
	}
	return nil
}

func (s *Suite) ensureNATGateway(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env

	if _, err := clients.natGateways.Get(ctx, env.ResourceGroup, env.NATGateway, nil); err == nil {
		return nil
	} else if !helpers.IsNotFoundError(err) {
		return err
	}

	var ipRefs []*armnetwork.SubResource
	for _, name := range env.PublicIPs {
		ipRefs = append(ipRefs, &armnetwork.SubResource{
			ID: to.Ptr(fmt.Sprintf("%s/providers/Microsoft.Network/publicIPAddresses/%s", env.ResourceGroupID, name)),
		})
	}

	poller, err := clients.natGateways.BeginCreateOrUpdate(ctx, env.ResourceGroup, env.NATGateway, armnetwork.NatGateway{
		Location: to.Ptr(run.Location),
		Tags:     run.Tags(),
		SKU:      &armnetwork.NatGatewaySKU{Name: to.Ptr(armnetwork.NatGatewaySKUNameStandard)},
		Properties: &armnetwork.NatGatewayPropertiesFormat{
			PublicIPAddresses: ipRefs,
		},
	}, nil)
	if err == nil {
		_, err = poller.PollUntilDone(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create NAT gateway: %w", err)
	}
	return nil
}

func (s *Suite) ensureRouteTable(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env

	if _, err := clients.routeTables.Get(ctx, env.ResourceGroup, env.RouteTable, nil); err == nil {
		return nil
	} else if !helpers.IsNotFoundError(err) {
		return err
	}

	poller, err := clients.routeTables.BeginCreateOrUpdate(ctx, env.ResourceGroup, env.RouteTable, armnetwork.RouteTable{
		Location: to.Ptr(run.Location),
		Tags:     run.Tags(),
	}, nil)
	if err == nil {
		_, err = poller.PollUntilDone(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create route table: %w", err)
	}
	return nil
}

func (s *Suite) ensureVirtualNetworks(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env
	natID := fmt.Sprintf("%s/providers/Microsoft.Network/natGateways/%s", env.ResourceGroupID, env.NATGateway)

	for i, name := range env.VNets {
		if _, err := clients.vnets.Get(ctx, env.ResourceGroup, name, nil); err == nil {
			continue
		} else if !helpers.IsNotFoundError(err) {
			return err
		}

		plan := vnetAddressPlan[i]
		var subnets []*armnetwork.Subnet
		for j, prefix := range plan.subnets {
			subnet := &armnetwork.Subnet{
				Name: to.Ptr(env.Subnets[i*2+j]),
				Properties: &armnetwork.SubnetPropertiesFormat{
					AddressPrefix: to.Ptr(prefix),
				},
			}
			// The NAT gateway hangs off the first subnet of the first VNet.
			if i == 0 && j == 0 {
				subnet.Properties.NatGateway = &armnetwork.SubResource{ID: to.Ptr(natID)}
			}
			subnets = append(subnets, subnet)
		}

		poller, err := clients.vnets.BeginCreateOrUpdate(ctx, env.ResourceGroup, name, armnetwork.VirtualNetwork{
			Location: to.Ptr(run.Location),
			Tags:     run.Tags(),
			Properties: &armnetwork.VirtualNetworkPropertiesFormat{
				AddressSpace: &armnetwork.AddressSpace{
					AddressPrefixes: []*string{to.Ptr(plan.space)},
				},
				Subnets: subnets,
			},
		}, nil)
		if err == nil {
			_, err = poller.PollUntilDone(ctx, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to create virtual network %s: %w", name, err)
		}
	}
	return nil
}

func (s *Suite) ensureStorageAccount(ctx context.Context, run *RunContext, clients *operatorClients) error {
	env := run.Env

	if _, err := clients.storage.GetProperties(ctx, env.ResourceGroup, env.StorageAccount, nil); err == nil {
		return nil
	} else if !helpers.IsNotFoundError(err) {
		return err
	}

	poller, err := clients.storage.BeginCreate(ctx, env.ResourceGroup, env.StorageAccount, armstorage.AccountCreateParameters{
		Location: to.Ptr(run.Location),
		Tags:     run.Tags(),
		SKU:      &armstorage.SKU{Name: to.Ptr(armstorage.SKUNameStandardLRS)},
		Kind:     to.Ptr(armstorage.KindStorageV2),
		Properties: &armstorage.AccountPropertiesCreateParameters{
			AllowBlobPublicAccess: to.Ptr(false),
			MinimumTLSVersion:     to.Ptr(armstorage.MinimumTLSVersionTLS12),
		},
	}, nil)
	if err == nil {
		_, err = poller.PollUntilDone(ctx, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create storage account: %w", err)
	}
	return nil
}
