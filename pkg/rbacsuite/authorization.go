package rbacsuite

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/authorization/armauthorization/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/managementgroups/armmanagementgroups"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armlocks"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armpolicy"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"
	"github.com/google/uuid"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

// auditVMsWithoutManagedDisksPolicyID is a harmless built-in audit policy,
// used only as the target of expect-deny assignment attempts.
const auditVMsWithoutManagedDisksPolicyID = "/providers/Microsoft.Authorization/policyDefinitions/06a78e20-9358-41c9-923c-fb736d382a4d"

func (r *RunContext) probeName(suffix string) string {
	return fmt.Sprintf("%s-%s-probe-%s", r.Config.NamePrefix, r.RunID, suffix)
}

func (r *RunContext) subscriptionScope() string {
	return "/subscriptions/" + r.Subscription
}

// AuthorizationCatalog covers the authorization-plane denials: role
// definitions, role assignments, classic administrators, locks, policy
// assignments, deny assignments, management groups and resource group
// deletion.
func AuthorizationCatalog() []TestCase {
	probeRoleName := func(run *RunContext) string { return run.probeName("role") }

	probeRoleDefinition := func(run *RunContext, scope string) armauthorization.RoleDefinition {
		return armauthorization.RoleDefinition{
			Properties: &armauthorization.RoleDefinitionProperties{
				RoleName:         to.Ptr(probeRoleName(run)),
				Description:      to.Ptr("created by a validation probe, should never exist"),
				RoleType:         to.Ptr("CustomRole"),
				Permissions:      []*armauthorization.Permission{{Actions: []*string{to.Ptr("Microsoft.Resources/subscriptions/resourceGroups/read")}}},
				AssignableScopes: []*string{to.Ptr(scope)},
			},
		}
	}

	return []TestCase{
		{
			ID:          "AUTH-01",
			Category:    "REQ-01",
			Description: "Create a custom role definition at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.CreateOrUpdate(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-01"),
					probeRoleDefinition(run, run.Env.ResourceGroupID), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-01"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-02",
			Category:    "REQ-01",
			Description: "Create a custom role definition at subscription scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.CreateOrUpdate(ctx, run.subscriptionScope(), deterministicUUID(run, "auth-02"),
					probeRoleDefinition(run, run.subscriptionScope()), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.subscriptionScope(), deterministicUUID(run, "auth-02"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-03",
			Category:    "REQ-01",
			Description: "Update the role definition under test",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				role := run.Config.Role
				update := armauthorization.RoleDefinition{
					Properties: &armauthorization.RoleDefinitionProperties{
						RoleName:         to.Ptr(role.Name),
						Description:      to.Ptr("tampered description"),
						RoleType:         to.Ptr("CustomRole"),
						Permissions:      []*armauthorization.Permission{{Actions: []*string{to.Ptr("*")}}},
						AssignableScopes: []*string{to.Ptr(run.Env.ResourceGroupID)},
					},
				}
				_, err = client.CreateOrUpdate(ctx, run.Env.ResourceGroupID,
					helpers.ExtractResourceName(run.Env.RoleDefinitionID), update, nil)
				return err
			},
		},
		{
			ID:          "AUTH-04",
			Category:    "REQ-01",
			Description: "Delete a role definition",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleDefinitionsClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-04"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-05",
			Category:    "REQ-02",
			Description: "Create a role assignment at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Create(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-05"),
					selfAssignment(run), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-05"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-06",
			Category:    "REQ-02",
			Description: "Create a role assignment at subscription scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Create(ctx, run.subscriptionScope(), deterministicUUID(run, "auth-06"),
					selfAssignment(run), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.subscriptionScope(), deterministicUUID(run, "auth-06"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-07",
			Category:    "REQ-02",
			Description: "Delete a role assignment at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewRoleAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, deterministicUUID(run, "auth-07"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-08",
			Category:    "REQ-03",
			Description: "Enumerate classic administrators",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewClassicAdministratorsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				pager := client.NewListPager(nil)
				_, err = pager.NextPage(ctx)
				return err
			},
		},
		{
			ID:          "AUTH-09",
			Category:    "REQ-04",
			Description: "Create a management lock at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armlocks.NewManagementLocksClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.CreateOrUpdateAtResourceGroupLevel(ctx, run.Env.ResourceGroup, run.probeName("lock"),
					probeLock(), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armlocks.NewManagementLocksClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.DeleteAtResourceGroupLevel(ctx, run.Env.ResourceGroup, run.probeName("lock"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-10",
			Category:    "REQ-04",
			Description: "Create a management lock on the storage account",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armlocks.NewManagementLocksClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.CreateOrUpdateAtResourceLevel(ctx, run.Env.ResourceGroup,
					"Microsoft.Storage", "", "storageAccounts", run.Env.StorageAccount,
					run.probeName("salock"), probeLock(), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armlocks.NewManagementLocksClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.DeleteAtResourceLevel(ctx, run.Env.ResourceGroup,
					"Microsoft.Storage", "", "storageAccounts", run.Env.StorageAccount,
					run.probeName("salock"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-11",
			Category:    "REQ-04",
			Description: "Delete a management lock",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armlocks.NewManagementLocksClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.DeleteAtResourceGroupLevel(ctx, run.Env.ResourceGroup, run.probeName("ghost-lock"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-12",
			Category:    "REQ-05",
			Description: "Create a policy assignment at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armpolicy.NewAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Create(ctx, run.Env.ResourceGroupID, run.probeName("pa"), probePolicyAssignment(), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armpolicy.NewAssignmentsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, run.probeName("pa"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-13",
			Category:    "REQ-05",
			Description: "Create a policy assignment at subscription scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armpolicy.NewAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Create(ctx, run.subscriptionScope(), run.probeName("sub-pa"), probePolicyAssignment(), nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armpolicy.NewAssignmentsClient(run.Subscription, run.Operator, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.subscriptionScope(), run.probeName("sub-pa"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-14",
			Category:    "REQ-05",
			Description: "Delete a policy assignment",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armpolicy.NewAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.Delete(ctx, run.Env.ResourceGroupID, run.probeName("ghost-pa"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-15",
			Category:    "REQ-06",
			Description: "Enumerate deny assignments at resource group scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewDenyAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				pager := client.NewListForResourceGroupPager(run.Env.ResourceGroup, nil)
				_, err = pager.NextPage(ctx)
				return err
			},
		},
		{
			ID:          "AUTH-16",
			Category:    "REQ-06",
			Description: "Enumerate deny assignments at subscription scope",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armauthorization.NewDenyAssignmentsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				pager := client.NewListPager(nil)
				_, err = pager.NextPage(ctx)
				return err
			},
		},
		{
			ID:          "AUTH-17",
			Category:    "REQ-07",
			Description: "Create a management group",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armmanagementgroups.NewClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginCreateOrUpdate(ctx, run.probeName("mg"), armmanagementgroups.CreateManagementGroupRequest{
					Properties: &armmanagementgroups.CreateManagementGroupProperties{
						DisplayName: to.Ptr(run.probeName("mg")),
					},
				}, nil)
				return err
			},
			Undo: func(ctx context.Context, run *RunContext) error {
				client, err := armmanagementgroups.NewClient(run.Operator, nil)
				if err != nil {
					return err
				}
				poller, err := client.BeginDelete(ctx, run.probeName("mg"), nil)
				if err != nil {
					return err
				}
				_, err = poller.PollUntilDone(ctx, nil)
				return err
			},
		},
		{
			ID:          "AUTH-18",
			Category:    "REQ-07",
			Description: "Delete a management group",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armmanagementgroups.NewClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				_, err = client.BeginDelete(ctx, run.probeName("ghost-mg"), nil)
				return err
			},
		},
		{
			ID:          "AUTH-19",
			Category:    "REQ-07",
			Description: "Enumerate management groups",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armmanagementgroups.NewClient(run.Restricted, nil)
				if err != nil {
					return err
				}
				pager := client.NewListPager(nil)
				_, err = pager.NextPage(ctx)
				return err
			},
		},
		{
			ID:          "AUTH-20",
			Category:    "REQ-15",
			Description: "Delete a resource group",
			Attempt: func(ctx context.Context, run *RunContext) error {
				client, err := armresources.NewResourceGroupsClient(run.Subscription, run.Restricted, nil)
				if err != nil {
					return err
				}
				// The probe group does not exist. A NotFound means
				// authorization let the delete through.
				_, err = client.BeginDelete(ctx, run.probeName("rg"), nil)
				if helpers.IsNotFoundError(err) {
					return nil
				}
				return err
			},
		},
	}
}

func selfAssignment(run *RunContext) armauthorization.RoleAssignmentCreateParameters {
	return armauthorization.RoleAssignmentCreateParameters{
		Properties: &armauthorization.RoleAssignmentProperties{
			RoleDefinitionID: to.Ptr(run.Env.RoleDefinitionID),
			PrincipalID:      to.Ptr(run.Env.SPObjectID),
		},
	}
}

func probeLock() armlocks.ManagementLockObject {
	return armlocks.ManagementLockObject{
		Properties: &armlocks.ManagementLockProperties{
			Level: to.Ptr(armlocks.LockLevelCanNotDelete),
			Notes: to.Ptr("created by a validation probe, should never exist"),
		},
	}
}

func probePolicyAssignment() armpolicy.Assignment {
	return armpolicy.Assignment{
		Properties: &armpolicy.AssignmentProperties{
			PolicyDefinitionID: to.Ptr(auditVMsWithoutManagedDisksPolicyID),
		},
	}
}

// deterministicUUID produces the same GUID for a run and label so an Undo can
// address exactly what its Attempt created.
func deterministicUUID(run *RunContext, label string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("nimbus/"+run.RunID+"/"+label)).String()
}
