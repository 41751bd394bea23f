package encrypt

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

var HostMetadata = modules.Metadata{
	Id:          "host",
	Name:        "Enable Encryption At Host",
	Description: "Enable encryption-at-host on VMs, deallocating and restarting only the ones that need the change and support it.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.None,
	References:  []string{"https://learn.microsoft.com/en-us/azure/virtual-machines/disks-enable-host-based-encryption-portal"},
}

var HostOptions = []*types.Option{
	options.WithDescription(
		options.AzureSingleSubscriptionOpt,
		"Azure subscription ID holding the VMs",
	),
	options.WithDescription(
		options.AzureResourceGroupOpt,
		"Limit to one resource group (all VMs in the subscription when empty)",
	),
	options.WithDescription(
		options.AzureVMNameOpt,
		"Limit to a single VM (requires resource-group)",
	),
}

var HostOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
	outputs.NewJsonFileProvider,
	outputs.NewCsvFileProvider,
}

func NewHost(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	vmName := options.GetValue(options.AzureVMNameOpt.Name, opts)
	resourceGroup := options.GetValue(options.AzureResourceGroupOpt.Name, opts)
	if vmName != "" && resourceGroup == "" {
		return nil, nil, fmt.Errorf("vm-name requires resource-group")
	}

	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureVMListStage,
		stages.AzureEncryptionAtHostStage,
		stages.AggregateOutput[types.HostEncryptionResult],
		formatHostOutputStage,
	)
	if err != nil {
		return nil, nil, err
	}

	subscription := options.GetValue(options.AzureSingleSubscriptionOpt.Name, opts)
	return stages.Generator([]string{subscription}), pipeline, nil
}

func formatHostOutputStage(ctx context.Context, opts []*types.Option, in <-chan []types.HostEncryptionResult) <-chan types.Result {
	out := make(chan types.Result)

	go func() {
		defer close(out)
		for results := range in {
			base := fmt.Sprintf("encrypt-host-%d", time.Now().Unix())

			out <- types.NewResult(
				modules.Azure,
				HostMetadata.Id,
				results,
				types.WithFilename(base+".json"),
			)

			doc := types.CSVDocument{
				Headers: []string{"VM", "Size", "Status", "Power Cycled", "Detail"},
			}
			for _, r := range results {
				doc.Rows = append(doc.Rows, []string{
					r.VMName, r.Size, r.Status, fmt.Sprintf("%t", r.WasCycle), r.Detail,
				})
			}
			out <- types.NewResult(
				modules.Azure,
				HostMetadata.Id,
				doc,
				types.WithFilename(base+".csv"),
			)
		}
	}()

	return out
}
