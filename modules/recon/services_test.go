package recon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverlining-sec/nimbus/pkg/types"
)

func TestCreateServicesTable(t *testing.T) {
	inventory := &types.AzureServiceInventory{
		SubscriptionID:   "00000000-0000-0000-0000-000000000000",
		SubscriptionName: "prod",
		AppServices: []types.AppServiceInfo{
			{
				Name:            "web-01",
				ResourceGroup:   "apps-rg",
				Location:        "eastus",
				HTTPSOnly:       true,
				MinimumTLS:      "1.2",
				RemoteDebugging: true,
			},
		},
		AutomationAccounts: []types.AutomationAccountInfo{
			{
				Name:          "ops-automation",
				ResourceGroup: "ops-rg",
				Location:      "eastus",
				State:         "Ok",
				Runbooks:      []string{"patch-vms", "rotate-keys"},
			},
		},
	}

	table := createServicesTable(inventory)

	assert.Contains(t, table.TableHeading, "prod")
	require.Len(t, table.Rows, 2)

	assert.Equal(t, "App Service", table.Rows[0][0])
	assert.Contains(t, table.Rows[0][4], "https-only=true")
	assert.Contains(t, table.Rows[0][4], "min-tls=1.2")
	assert.Contains(t, table.Rows[0][4], "remote-debugging=on")

	assert.Equal(t, "Automation", table.Rows[1][0])
	assert.Contains(t, table.Rows[1][4], "runbooks=2")
}

func TestCreateServicesTableEmptyInventory(t *testing.T) {
	table := createServicesTable(&types.AzureServiceInventory{SubscriptionID: "sub"})
	assert.Empty(t, table.Rows)
	assert.Equal(t, []string{"Service", "Name", "Resource Group", "Location", "Details"}, table.Headers)
}
