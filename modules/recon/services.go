package recon

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var ServicesMetadata = modules.Metadata{
	Id:          "services",
	Name:        "Managed Service Inventory",
	Description: "Inventory App Service sites (with TLS, FTPS and remote debugging settings) and Automation accounts with their runbooks.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.Stealth,
	References:  []string{},
}

var ServicesOptions = []*types.Option{
	options.WithDescription(
		options.AzureSubscriptionOpt,
		"Azure subscription ID or 'all' for all accessible subscriptions",
	),
	options.WithDefaultValue(
		*options.WithRequired(options.FileNameOpt, false),
		""),
}

var ServicesOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewJsonFileProvider,
	outputs.NewMarkdownFileProvider,
}

func NewServices(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	pipeline, err := stages.ChainStages[string, types.Result](
		stages.AzureServiceInventoryStage,
		FormatServicesOutputStage,
	)
	if err != nil {
		return nil, nil, err
	}

	return subscriptionGenerator(opts, ServicesMetadata), pipeline, nil
}

// FormatServicesOutputStage renders one JSON export and one markdown table
// per subscription.
func FormatServicesOutputStage(ctx context.Context, opts []*types.Option, in <-chan *types.AzureServiceInventory) <-chan types.Result {
	out := make(chan types.Result)

	go func() {
		defer close(out)
		for inventory := range in {
			baseFilename := ""
			providedFilename := options.GetValue(options.FileNameOpt.Name, opts)
			if len(providedFilename) == 0 {
				timestamp := strconv.FormatInt(time.Now().Unix(), 10)
				baseFilename = fmt.Sprintf("services-%s-%s", inventory.SubscriptionID, timestamp)
			} else {
				baseFilename = providedFilename + "-" + inventory.SubscriptionID
			}

			out <- types.NewResult(
				modules.Azure,
				ServicesMetadata.Id,
				inventory,
				types.WithFilename(baseFilename+".json"),
			)

			out <- types.NewResult(
				modules.Azure,
				ServicesMetadata.Id,
				createServicesTable(inventory),
				types.WithFilename(baseFilename+".md"),
			)
		}
	}()

	return out
}

func createServicesTable(inventory *types.AzureServiceInventory) types.MarkdownTable {
	heading := fmt.Sprintf("# Managed Services\nSubscription: %s (%s)",
		inventory.SubscriptionName, inventory.SubscriptionID)

	table := types.MarkdownTable{
		TableHeading: heading,
		Headers:      []string{"Service", "Name", "Resource Group", "Location", "Details"},
		Rows:         make([][]string, 0),
	}

	for _, site := range inventory.AppServices {
		details := []string{"https-only=" + strconv.FormatBool(site.HTTPSOnly)}
		if site.MinimumTLS != "" {
			details = append(details, "min-tls="+site.MinimumTLS)
		}
		if site.RemoteDebugging {
			details = append(details, "remote-debugging=on")
		}
		table.Rows = append(table.Rows, []string{
			"App Service", site.Name, site.ResourceGroup, site.Location, strings.Join(details, " "),
		})
	}

	for _, account := range inventory.AutomationAccounts {
		details := fmt.Sprintf("state=%s runbooks=%d", account.State, len(account.Runbooks))
		table.Rows = append(table.Rows, []string{
			"Automation", account.Name, account.ResourceGroup, account.Location, details,
		})
	}

	return table
}
