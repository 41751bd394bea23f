package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleVMID = "/subscriptions/00000000-0000-0000-0000-000000000000/resourceGroups/prod-rg/providers/Microsoft.Compute/virtualMachines/web-01"

func TestExtractResourceGroup(t *testing.T) {
	assert.Equal(t, "prod-rg", ExtractResourceGroup(sampleVMID))
	assert.Equal(t, "", ExtractResourceGroup("/subscriptions/00000000-0000-0000-0000-000000000000"))
	assert.Equal(t, "", ExtractResourceGroup(""))
}

func TestExtractSubscription(t *testing.T) {
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", ExtractSubscription(sampleVMID))
	assert.Equal(t, "", ExtractSubscription("not-an-id"))
}

func TestExtractResourceName(t *testing.T) {
	assert.Equal(t, "web-01", ExtractResourceName(sampleVMID))
	assert.Equal(t, "", ExtractResourceName(""))
}

func TestResourceGroupID(t *testing.T) {
	id := ResourceGroupID("00000000-0000-0000-0000-000000000000", "prod-rg")
	assert.Equal(t, "/subscriptions/00000000-0000-0000-0000-000000000000/resourceGroups/prod-rg", id)
}
