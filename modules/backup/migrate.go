package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var MigrateMetadata = modules.Metadata{
	Id:          "migrate",
	Name:        "Migrate Backup Vault Items",
	Description: "Move protected IaaS VM items from one Recovery Services vault to another, re-protecting against the name-matched policy.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.None,
	References:  []string{"https://learn.microsoft.com/en-us/azure/backup/backup-azure-move-recovery-services-vault"},
}

var MigrateOptions = []*types.Option{
	options.WithDescription(
		options.AzureSingleSubscriptionOpt,
		"Azure subscription ID holding both vaults",
	),
	options.WithDescription(
		*options.WithRequired(options.AzureResourceGroupOpt, true),
		"Resource group holding both vaults",
	),
	options.WithRequired(options.AzureSourceVaultOpt, true),
	options.WithRequired(options.AzureTargetVaultOpt, true),
}

var MigrateOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
	outputs.NewJsonFileProvider,
	outputs.NewCsvFileProvider,
}

func NewMigrate(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureBackupMigrateStage,
		stages.AggregateOutput[types.BackupItemMigration],
		formatMigrationOutputStage,
	)
	if err != nil {
		return nil, nil, err
	}

	sourceVault := options.GetValue(options.AzureSourceVaultOpt.Name, opts)
	return stages.Generator([]string{sourceVault}), pipeline, nil
}

func formatMigrationOutputStage(ctx context.Context, opts []*types.Option, in <-chan []types.BackupItemMigration) <-chan types.Result {
	out := make(chan types.Result)

	go func() {
		defer close(out)
		for migrations := range in {
			base := fmt.Sprintf("backup-migrate-%d", time.Now().Unix())

			out <- types.NewResult(
				modules.Azure,
				MigrateMetadata.Id,
				migrations,
				types.WithFilename(base+".json"),
			)

			doc := types.CSVDocument{
				Headers: []string{"Item", "Workload", "Source Vault", "Target Vault", "Policy", "Status", "Detail"},
			}
			for _, m := range migrations {
				doc.Rows = append(doc.Rows, []string{
					m.ItemName, m.WorkloadType, m.SourceVault, m.TargetVault, m.PolicyName, m.Status, m.Detail,
				})
			}
			out <- types.NewResult(
				modules.Azure,
				MigrateMetadata.Id,
				doc,
				types.WithFilename(base+".csv"),
			)
		}
	}()

	return out
}
