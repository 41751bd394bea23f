package stages

import (
	"context"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/appservice/armappservice"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/automation/armautomation"
	"github.com/silverlining-sec/nimbus/internal/helpers"
	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

// AzureServiceInventoryStage inventories App Service sites and Automation
// accounts for each incoming subscription. Site configurations are fetched
// one at a time because the list call does not include them.
func AzureServiceInventoryStage(ctx context.Context, opts []*types.Option, in <-chan string) <-chan *types.AzureServiceInventory {
	logger := logs.NewStageLogger(ctx, opts, "AzureServiceInventoryStage")
	out := make(chan *types.AzureServiceInventory)

	go func() {
		defer close(out)

		cred, err := helpers.GetAzureCredentials()
		if err != nil {
			logger.Error("Failed to get Azure credential", slog.String("error", err.Error()))
			return
		}

		for subscription := range in {
			logger.Info("Inventorying managed services", slog.String("subscription", subscription))

			inventory := &types.AzureServiceInventory{
				SubscriptionID:   subscription,
				SubscriptionName: subscription,
			}

			if sub, err := helpers.GetSubscriptionDetails(ctx, cred, subscription); err == nil && sub.DisplayName != nil {
				inventory.SubscriptionName = *sub.DisplayName
			}

			inventory.AppServices = listAppServices(ctx, logger, cred, subscription)
			inventory.AutomationAccounts = listAutomationAccounts(ctx, logger, cred, subscription)

			select {
			case out <- inventory:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

func listAppServices(ctx context.Context, logger *slog.Logger, cred azcore.TokenCredential, subscription string) []types.AppServiceInfo {
	client, err := armappservice.NewWebAppsClient(subscription, cred, nil)
	if err != nil {
		logger.Error("Failed to create web apps client", slog.String("error", err.Error()))
		return nil
	}

	var sites []types.AppServiceInfo
	pager := client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if helpers.IsDeniedError(err) {
				logger.Info("No access to App Service sites", slog.String("subscription", subscription))
			} else {
				logger.Error("Failed to list App Service sites", slog.String("error", err.Error()))
			}
			break
		}

		for _, site := range page.Value {
			if site.Name == nil || site.Properties == nil {
				continue
			}

			info := types.AppServiceInfo{
				Name:     *site.Name,
				Location: safeDeref(site.Location),
				Kind:     safeDeref(site.Kind),
				State:    safeDeref(site.Properties.State),
			}
			if site.Properties.DefaultHostName != nil {
				info.DefaultHostName = *site.Properties.DefaultHostName
			}
			if site.Properties.HTTPSOnly != nil {
				info.HTTPSOnly = *site.Properties.HTTPSOnly
			}
			if site.Properties.ResourceGroup != nil {
				info.ResourceGroup = *site.Properties.ResourceGroup
			} else if site.ID != nil {
				info.ResourceGroup = helpers.ExtractResourceGroup(*site.ID)
			}

			enrichSiteConfig(ctx, logger, client, &info)
			sites = append(sites, info)
		}
	}

	return sites
}

// enrichSiteConfig pulls the bits of the site configuration the list call
// leaves out. A failed lookup leaves the config fields at their zero values.
func enrichSiteConfig(ctx context.Context, logger *slog.Logger, client *armappservice.WebAppsClient, info *types.AppServiceInfo) {
	config, err := client.GetConfiguration(ctx, info.ResourceGroup, info.Name, nil)
	if err != nil {
		logger.Debug("Could not read site configuration",
			slog.String("site", info.Name),
			slog.String("error", err.Error()))
		return
	}
	if config.Properties == nil {
		return
	}

	if config.Properties.MinTLSVersion != nil {
		info.MinimumTLS = string(*config.Properties.MinTLSVersion)
	}
	if config.Properties.RemoteDebuggingEnabled != nil {
		info.RemoteDebugging = *config.Properties.RemoteDebuggingEnabled
	}
	if config.Properties.FtpsState != nil {
		info.FTPSState = string(*config.Properties.FtpsState)
	}
}

func listAutomationAccounts(ctx context.Context, logger *slog.Logger, cred azcore.TokenCredential, subscription string) []types.AutomationAccountInfo {
	accountClient, err := armautomation.NewAccountClient(subscription, cred, nil)
	if err != nil {
		logger.Error("Failed to create automation account client", slog.String("error", err.Error()))
		return nil
	}
	runbookClient, err := armautomation.NewRunbookClient(subscription, cred, nil)
	if err != nil {
		logger.Error("Failed to create runbook client", slog.String("error", err.Error()))
		return nil
	}

	var accounts []types.AutomationAccountInfo
	pager := accountClient.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if helpers.IsDeniedError(err) {
				logger.Info("No access to Automation accounts", slog.String("subscription", subscription))
			} else {
				logger.Error("Failed to list Automation accounts", slog.String("error", err.Error()))
			}
			break
		}

		for _, account := range page.Value {
			if account.Name == nil || account.ID == nil {
				continue
			}

			info := types.AutomationAccountInfo{
				Name:          *account.Name,
				ResourceGroup: helpers.ExtractResourceGroup(*account.ID),
				Location:      safeDeref(account.Location),
			}
			if account.Properties != nil && account.Properties.State != nil {
				info.State = string(*account.Properties.State)
			}
			info.Runbooks = listRunbookNames(ctx, logger, runbookClient, info.ResourceGroup, info.Name)

			accounts = append(accounts, info)
		}
	}

	return accounts
}

func listRunbookNames(ctx context.Context, logger *slog.Logger, client *armautomation.RunbookClient, resourceGroup, account string) []string {
	var names []string
	pager := client.NewListByAutomationAccountPager(resourceGroup, account, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			logger.Debug("Could not list runbooks",
				slog.String("account", account),
				slog.String("error", err.Error()))
			break
		}
		for _, runbook := range page.Value {
			if runbook.Name != nil {
				names = append(names, *runbook.Name)
			}
		}
	}
	return names
}

func safeDeref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
