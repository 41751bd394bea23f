package stages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/recoveryservices/armrecoveryservices"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/recoveryservices/armrecoveryservicesbackup/v2"
	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

const backupFabricName = "Azure"

type backupClients struct {
	vaults         *armrecoveryservices.VaultsClient
	protectedItems *armrecoveryservicesbackup.ProtectedItemsClient
	itemList       *armrecoveryservicesbackup.BackupProtectedItemsClient
	policies       *armrecoveryservicesbackup.ProtectionPoliciesClient
	vaultConfigs   *armrecoveryservicesbackup.BackupResourceVaultConfigsClient
}

func newBackupClients(cred azcore.TokenCredential, subscription string) (*backupClients, error) {
	vaults, err := armrecoveryservices.NewVaultsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create vaults client: %w", err)
	}
	protectedItems, err := armrecoveryservicesbackup.NewProtectedItemsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create protected items client: %w", err)
	}
	itemList, err := armrecoveryservicesbackup.NewBackupProtectedItemsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create protected item list client: %w", err)
	}
	policies, err := armrecoveryservicesbackup.NewProtectionPoliciesClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create policies client: %w", err)
	}
	vaultConfigs, err := armrecoveryservicesbackup.NewBackupResourceVaultConfigsClient(subscription, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault configs client: %w", err)
	}

	return &backupClients{
		vaults:         vaults,
		protectedItems: protectedItems,
		itemList:       itemList,
		policies:       policies,
		vaultConfigs:   vaultConfigs,
	}, nil
}

// AzureBackupMigrateStage moves every protected IaaS VM item from each
// incoming source vault into the configured target vault: stop protection
// (retaining recovery points), then re-protect against the name-matched
// policy in the target vault.
func AzureBackupMigrateStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan types.BackupItemMigration {
	logger := logs.NewStageLogger(ctx, opts, "AzureBackupMigrateStage")
	out := make(chan types.BackupItemMigration)

	subscription := options.GetValue(options.AzureSubscriptionOpt.Name, opts)
	resourceGroup := options.GetValue(options.AzureResourceGroupOpt.Name, opts)
	targetVault := options.GetValue(options.AzureTargetVaultOpt.Name, opts)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		clients, err := newBackupClients(cred, subscription)
		if err != nil {
			logger.Error(err.Error())
			return
		}

		for sourceVault := range in {
			migrations := migrateVault(ctx, logger, clients, resourceGroup, sourceVault, targetVault)
			for _, m := range migrations {
				select {
				case out <- m:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func migrateVault(ctx context.Context, logger *slog.Logger, clients *backupClients, resourceGroup, sourceVault, targetVault string) []types.BackupItemMigration {
	var results []types.BackupItemMigration

	for _, vault := range []string{sourceVault, targetVault} {
		if _, err := clients.vaults.Get(ctx, resourceGroup, vault, nil); err != nil {
			logger.Error("Vault not found", slog.String("vault", vault), slog.String("error", err.Error()))
			return append(results, types.BackupItemMigration{
				SourceVault: sourceVault,
				TargetVault: targetVault,
				Status:      "Failed",
				Detail:      fmt.Sprintf("vault %s not reachable: %v", vault, err),
			})
		}
	}

	// Soft delete on the source vault keeps stopped items for 14 days and
	// blocks re-protection elsewhere, so those items are skipped wholesale.
	softDeleteEnabled := true
	if cfg, err := clients.vaultConfigs.Get(ctx, sourceVault, resourceGroup, nil); err == nil &&
		cfg.Properties != nil && cfg.Properties.SoftDeleteFeatureState != nil {
		softDeleteEnabled = *cfg.Properties.SoftDeleteFeatureState == armrecoveryservicesbackup.SoftDeleteFeatureStateEnabled
	}

	targetItems := listProtectedItemNames(ctx, clients, targetVault, resourceGroup)

	pager := clients.itemList.NewListPager(sourceVault, resourceGroup, &armrecoveryservicesbackup.BackupProtectedItemsClientListOptions{
		Filter: to.Ptr("backupManagementType eq 'AzureIaasVM'"),
	})

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			logger.Error("Failed to list protected items", slog.String("error", err.Error()))
			results = append(results, types.BackupItemMigration{
				SourceVault: sourceVault,
				TargetVault: targetVault,
				Status:      "Failed",
				Detail:      err.Error(),
			})
			return results
		}

		for _, item := range page.Value {
			results = append(results, migrateItem(ctx, logger, clients, resourceGroup, sourceVault, targetVault, targetItems, softDeleteEnabled, item))
		}
	}

	if len(results) == 0 {
		logger.Info("Source vault holds no protected IaaS VM items", slog.String("vault", sourceVault))
	}

	return results
}

func listProtectedItemNames(ctx context.Context, clients *backupClients, vault, resourceGroup string) map[string]bool {
	names := make(map[string]bool)

	pager := clients.itemList.NewListPager(vault, resourceGroup, &armrecoveryservicesbackup.BackupProtectedItemsClientListOptions{
		Filter: to.Ptr("backupManagementType eq 'AzureIaasVM'"),
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			break
		}
		for _, item := range page.Value {
			if item.Name != nil {
				names[strings.ToLower(*item.Name)] = true
			}
		}
	}

	return names
}

func migrateItem(ctx context.Context, logger *slog.Logger, clients *backupClients, resourceGroup, sourceVault, targetVault string, targetItems map[string]bool, softDeleteEnabled bool, item *armrecoveryservicesbackup.ProtectedItemResource) types.BackupItemMigration {
	result := types.BackupItemMigration{
		SourceVault: sourceVault,
		TargetVault: targetVault,
	}

	if item.Name == nil || item.Properties == nil {
		result.Status = "Failed"
		result.Detail = "item missing name or properties"
		return result
	}
	result.ItemName = *item.Name

	base := item.Properties.GetProtectedItem()
	if base.WorkloadType != nil {
		result.WorkloadType = string(*base.WorkloadType)
	}

	vmItem, ok := item.Properties.(*armrecoveryservicesbackup.AzureIaaSComputeVMProtectedItem)
	if !ok {
		result.Status = "Skipped"
		result.Detail = fmt.Sprintf("unsupported protected item type %T", item.Properties)
		return result
	}

	if softDeleteEnabled {
		result.Status = "Skipped"
		result.Detail = "soft delete is enabled on the source vault; disable it before migrating"
		logger.Warn("Skipping item behind soft delete", slog.String("item", result.ItemName))
		return result
	}

	if targetItems[strings.ToLower(result.ItemName)] {
		result.Status = "Skipped"
		result.Detail = "already protected in target vault"
		logger.Warn("Item already protected in target vault", slog.String("item", result.ItemName))
		return result
	}

	policyName := ""
	if base.PolicyID != nil {
		policyName = helpers.ExtractResourceName(*base.PolicyID)
	}
	result.PolicyName = policyName

	targetPolicy, err := clients.policies.Get(ctx, targetVault, resourceGroup, policyName, nil)
	if err != nil {
		result.Status = "Failed"
		result.Detail = fmt.Sprintf("policy %q not found in target vault: %v", policyName, err)
		logger.Error("Target policy missing", slog.String("item", result.ItemName), slog.String("policy", policyName))
		return result
	}

	containerName := containerNameForItem(item)
	result.ContainerName = containerName

	logger.Info("Stopping protection in source vault", slog.String("item", result.ItemName))
	stopped := armrecoveryservicesbackup.ProtectedItemResource{
		Properties: &armrecoveryservicesbackup.AzureIaaSComputeVMProtectedItem{
			SourceResourceID: vmItem.SourceResourceID,
			ProtectionState:  to.Ptr(armrecoveryservicesbackup.ProtectionStateProtectionStopped),
		},
	}
	stopPoller, err := clients.protectedItems.BeginCreateOrUpdate(ctx, sourceVault, resourceGroup, backupFabricName, containerName, result.ItemName, stopped, nil)
	if err != nil {
		result.Status = "Failed"
		result.Detail = fmt.Sprintf("failed to stop protection: %v", err)
		return result
	}
	if _, err := stopPoller.PollUntilDone(ctx, nil); err != nil {
		result.Status = "Failed"
		result.Detail = fmt.Sprintf("stop protection did not complete: %v", err)
		return result
	}

	// The item releases from the source vault asynchronously; the target
	// enable call 409s until it does.
	logger.Info("Enabling protection in target vault", slog.String("item", result.ItemName))
	enable := armrecoveryservicesbackup.ProtectedItemResource{
		Properties: &armrecoveryservicesbackup.AzureIaaSComputeVMProtectedItem{
			SourceResourceID: vmItem.SourceResourceID,
			PolicyID:         targetPolicy.ID,
		},
	}
	err = helpers.Retry(ctx, helpers.DefaultRetryPolicy, func() error {
		poller, err := clients.protectedItems.BeginCreateOrUpdate(ctx, targetVault, resourceGroup, backupFabricName, containerName, result.ItemName, enable, nil)
		if err != nil {
			return err
		}
		_, err = poller.PollUntilDone(ctx, nil)
		return err
	})
	if err != nil {
		result.Status = "Failed"
		result.Detail = fmt.Sprintf("failed to enable protection in target vault: %v", err)
		return result
	}

	result.Status = "Migrated"
	return result
}

// containerNameForItem recovers the container segment from the item's ARM ID
// (".../protectionContainers/<container>/protectedItems/<item>").
func containerNameForItem(item *armrecoveryservicesbackup.ProtectedItemResource) string {
	if item.ID == nil {
		return ""
	}
	parts := strings.Split(*item.ID, "/")
	for i, part := range parts {
		if strings.EqualFold(part, "protectionContainers") && i+1 < len(parts) {
			return parts[i+1]
		}
	}
	return ""
}
