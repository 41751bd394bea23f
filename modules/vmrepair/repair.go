package vmrepair

import (
	"context"
	"fmt"

	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var CreateMetadata = modules.Metadata{
	Id:          "create",
	Name:        "Create Repair VM",
	Description: "Snapshot a broken VM's OS disk and attach a copy to a fresh repair VM in a dedicated resource group.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.None,
	References:  []string{"https://learn.microsoft.com/en-us/troubleshoot/azure/virtual-machines/troubleshoot-recovery-disks"},
}

var CreateOptions = []*types.Option{
	options.WithDescription(
		options.AzureSingleSubscriptionOpt,
		"Azure subscription ID holding the broken VM",
	),
	options.WithRequired(options.AzureResourceGroupOpt, true),
	options.WithRequired(options.AzureVMNameOpt, true),
}

var CreateOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
	outputs.NewJsonFileProvider,
}

func NewCreate(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureVMRepairCreateStage,
		formatRepairStateStage(CreateMetadata.Id),
	)
	if err != nil {
		return nil, nil, err
	}

	vmName := options.GetValue(options.AzureVMNameOpt.Name, opts)
	return stages.Generator([]string{vmName}), pipeline, nil
}

var RestoreMetadata = modules.Metadata{
	Id:          "restore",
	Name:        "Restore Repaired VM",
	Description: "Swap the repaired disk back in as the source VM's OS disk and delete the repair resource group.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.None,
	References:  []string{},
}

var RestoreOptions = []*types.Option{
	options.WithDescription(
		options.AzureSingleSubscriptionOpt,
		"Azure subscription ID holding the broken VM",
	),
	options.WithRequired(options.AzureResourceGroupOpt, true),
	options.WithRequired(options.AzureVMNameOpt, true),
}

var RestoreOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
	outputs.NewJsonFileProvider,
}

func NewRestore(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureVMRepairRestoreStage,
		formatRepairStateStage(RestoreMetadata.Id),
	)
	if err != nil {
		return nil, nil, err
	}

	vmName := options.GetValue(options.AzureVMNameOpt.Name, opts)
	return stages.Generator([]string{vmName}), pipeline, nil
}

func formatRepairStateStage(moduleID string) stages.Stage[*types.VMRepairState, types.Result] {
	return func(ctx context.Context, opts []*types.Option, in <-chan *types.VMRepairState) <-chan types.Result {
		out := make(chan types.Result)
		go func() {
			defer close(out)
			for state := range in {
				out <- types.NewResult(
					modules.Azure,
					moduleID,
					state,
					types.WithFilename(fmt.Sprintf("vm-repair-%s-%s.json", moduleID, state.SourceVMName)),
				)
			}
		}()
		return out
	}
}
