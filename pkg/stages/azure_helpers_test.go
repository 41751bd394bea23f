package stages

import (
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/recoveryservices/armrecoveryservicesbackup/v2"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resourcegraph/armresourcegraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairNames(t *testing.T) {
	assert.Equal(t, "repair-web-01-rg", RepairGroupName("Web-01"))

	assert.Equal(t, "rep-web-01", repairVMName("web-01"))
	assert.LessOrEqual(t, len(repairVMName("a-particularly-long-vm-name")), 15)

	assert.Equal(t, "web-01-repair-disk", repairDiskName("web-01"))
	assert.Equal(t, "web-01-repair-snap", repairSnapshotName("web-01"))
}

func TestContainerNameForItem(t *testing.T) {
	id := "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.RecoveryServices/vaults/v1" +
		"/backupFabrics/Azure/protectionContainers/iaasvmcontainer;iaasvmcontainerv2;rg;web-01" +
		"/protectedItems/vm;iaasvmcontainerv2;rg;web-01"

	item := &armrecoveryservicesbackup.ProtectedItemResource{ID: to.Ptr(id)}
	assert.Equal(t, "iaasvmcontainer;iaasvmcontainerv2;rg;web-01", containerNameForItem(item))

	assert.Equal(t, "", containerNameForItem(&armrecoveryservicesbackup.ProtectedItemResource{}))
	assert.Equal(t, "", containerNameForItem(&armrecoveryservicesbackup.ProtectedItemResource{ID: to.Ptr("/no/container")}))
}

func TestParseARGRows(t *testing.T) {
	response := &armresourcegraph.ClientResourcesResponse{}
	response.Data = []interface{}{
		map[string]interface{}{
			"id":            "/subscriptions/00000000-0000-0000-0000-000000000000/resourceGroups/rg/providers/Microsoft.Compute/virtualMachines/web-01",
			"name":          "web-01",
			"type":          "Microsoft.Compute/virtualMachines",
			"location":      "eastus",
			"resourceGroup": "rg",
			"tags":          map[string]interface{}{"env": "prod", "count": 3},
			"properties":    map[string]interface{}{"vmId": "abc"},
		},
		"not a row",
	}

	resources := parseARGRows(response)
	require.Len(t, resources, 1)

	info := resources[0]
	assert.Equal(t, "web-01", info.Name)
	assert.Equal(t, "Microsoft.Compute/virtualMachines", info.Type)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", info.Subscription)
	assert.Equal(t, map[string]string{"env": "prod"}, info.Tags)
	assert.Equal(t, "abc", info.Properties["vmId"])
}

func TestParseARGRowsEmpty(t *testing.T) {
	assert.Nil(t, parseARGRows(nil))
	assert.Nil(t, parseARGRows(&armresourcegraph.ClientResourcesResponse{}))
}

func TestSafeGetString(t *testing.T) {
	m := map[string]interface{}{"s": "text", "n": 42, "nil": nil}

	assert.Equal(t, "text", safeGetString(m, "s"))
	assert.Equal(t, "42", safeGetString(m, "n"))
	assert.Equal(t, "", safeGetString(m, "nil"))
	assert.Equal(t, "", safeGetString(m, "missing"))
}
