package recon

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var SummaryMetadata = modules.Metadata{
	Id:          "summary",
	Name:        "Environment Summary",
	Description: "Summarize the tenant, subscription state, and resource counts per type.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.Stealth,
	References:  []string{},
}

var SummaryOptions = []*types.Option{
	options.WithDescription(
		options.AzureSubscriptionOpt,
		"Azure subscription ID or 'all' for all accessible subscriptions",
	),
}

var SummaryOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
	outputs.NewJsonFileProvider,
	outputs.NewMarkdownFileProvider,
}

func NewSummary(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureSummaryStage,
		FormatSummaryOutputStage,
	)
	if err != nil {
		return nil, nil, err
	}

	return subscriptionGenerator(opts, SummaryMetadata), pipeline, nil
}

func FormatSummaryOutputStage(ctx context.Context, opts []*types.Option, in <-chan *types.AzureEnvironmentDetails) <-chan types.Result {
	out := make(chan types.Result)

	go func() {
		defer close(out)
		for details := range in {
			out <- types.NewResult(
				modules.Azure,
				SummaryMetadata.Id,
				details,
				types.WithFilename(fmt.Sprintf("summary-%s.json", details.SubscriptionID)),
			)

			out <- types.NewResult(
				modules.Azure,
				SummaryMetadata.Id,
				createSummaryTable(details),
				types.WithFilename(fmt.Sprintf("summary-%s.md", details.SubscriptionID)),
			)
		}
	}()

	return out
}

func createSummaryTable(details *types.AzureEnvironmentDetails) types.MarkdownTable {
	heading := fmt.Sprintf("# Environment Summary\nTenant: %s (%s)\nSubscription: %s (%s)\nState: %s",
		details.TenantName, details.TenantID,
		details.SubscriptionName, details.SubscriptionID,
		details.State)

	table := types.MarkdownTable{
		TableHeading: heading,
		Headers:      []string{"Resource Type", "Count"},
		Rows:         make([][]string, 0, len(details.Resources)),
	}

	sorted := make([]*types.ResourceCount, len(details.Resources))
	copy(sorted, details.Resources)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ResourceType < sorted[j].ResourceType
	})

	for _, rc := range sorted {
		table.Rows = append(table.Rows, []string{rc.ResourceType, strconv.Itoa(rc.Count)})
	}

	return table
}
