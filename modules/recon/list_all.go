package recon

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var ListAllMetadata = modules.Metadata{
	Id:          "list-all",
	Name:        "List All Resources",
	Description: "List all Azure resources across subscriptions with complete details including identifier. This might take a while for large subscriptions.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.Stealth,
	References:  []string{},
}

var ListAllOptions = []*types.Option{
	options.WithDescription(
		options.AzureSubscriptionOpt,
		"Azure subscription ID or 'all' for all accessible subscriptions",
	),
	options.WithDefaultValue(
		*options.WithRequired(options.FileNameOpt, false),
		""),
}

var ListAllOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewJsonFileProvider,
	outputs.NewMarkdownFileProvider,
}

func NewListAll(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureListAllStage,
		FormatListAllOutputStage,
	)
	if err != nil {
		return nil, nil, err
	}

	return subscriptionGenerator(opts, ListAllMetadata), pipeline, nil
}

// subscriptionGenerator turns the subscription option into an input channel,
// expanding "all" to every subscription the credential can see.
func subscriptionGenerator(opts []*types.Option, metadata modules.Metadata) <-chan string {
	subscriptionOpt := options.GetValue(options.AzureSubscriptionOpt.Name, opts)

	if !strings.EqualFold(subscriptionOpt, "all") {
		return stages.Generator([]string{subscriptionOpt})
	}

	subscriptionsChan := make(chan string)
	go func() {
		defer close(subscriptionsChan)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			slog.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		subscriptions, err := helpers.ListSubscriptions(context.Background(), cred)
		if err != nil {
			slog.Error("Failed to list subscriptions", slog.String("error", err.Error()))
			return
		}

		for _, sub := range subscriptions {
			subscriptionsChan <- sub
		}
	}()

	return subscriptionsChan
}

// FormatListAllOutputStage renders one JSON export and one markdown table per
// subscription.
func FormatListAllOutputStage(ctx context.Context, opts []*types.Option, in <-chan *types.AzureResourceDetails) <-chan types.Result {
	out := make(chan types.Result)

	go func() {
		defer close(out)
		for resourceDetails := range in {
			baseFilename := ""
			providedFilename := options.GetValue(options.FileNameOpt.Name, opts)
			if len(providedFilename) == 0 {
				timestamp := strconv.FormatInt(time.Now().Unix(), 10)
				baseFilename = fmt.Sprintf("list-all-%s-%s", resourceDetails.SubscriptionID, timestamp)
			} else {
				baseFilename = providedFilename + "-" + resourceDetails.SubscriptionID
			}

			out <- types.NewResult(
				modules.Azure,
				ListAllMetadata.Id,
				resourceDetails.Resources,
				types.WithFilename(baseFilename+".json"),
			)

			out <- types.NewResult(
				modules.Azure,
				ListAllMetadata.Id,
				createResourceListTable(resourceDetails),
				types.WithFilename(baseFilename+".md"),
			)
		}
	}()

	return out
}

func createResourceListTable(details *types.AzureResourceDetails) types.MarkdownTable {
	var markdownContent []string
	markdownContent = append(markdownContent, "# Azure Resources List")
	markdownContent = append(markdownContent, fmt.Sprintf("Subscription: %s (%s)", details.SubscriptionName, details.SubscriptionID))
	markdownContent = append(markdownContent, fmt.Sprintf("Tenant: %s (%s)", details.TenantName, details.TenantID))

	table := types.MarkdownTable{
		TableHeading: strings.Join(markdownContent, "\n"),
		Headers:      []string{"Resource Name", "Type", "Location", "Resource Group"},
		Rows:         make([][]string, 0),
	}

	for _, resource := range details.Resources {
		table.Rows = append(table.Rows, []string{
			resource.Name,
			resource.Type,
			resource.Location,
			resource.ResourceGroup,
		})
	}

	return table
}
