package encrypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverlining-sec/nimbus/pkg/options"
)

func TestHostOptionsAllowSubscriptionWideRuns(t *testing.T) {
	opts := options.CreateDeepCopyOfOptions(HostOptions)
	sub := options.GetOptionByName(options.AzureSingleSubscriptionOpt.Name, opts)
	require.NotNil(t, sub)
	sub.Value = "00000000-0000-0000-0000-000000000000"

	vmName := options.GetOptionByName(options.AzureVMNameOpt.Name, opts)
	require.NotNil(t, vmName)
	assert.False(t, vmName.Required)

	assert.NoError(t, options.ValidateOptions(opts))

	in, pipeline, err := NewHost(opts)
	require.NoError(t, err)
	assert.NotNil(t, pipeline)
	assert.Equal(t, sub.Value, <-in)
}

func TestNewHostRejectsVMNameWithoutResourceGroup(t *testing.T) {
	opts := options.CreateDeepCopyOfOptions(HostOptions)
	options.GetOptionByName(options.AzureSingleSubscriptionOpt.Name, opts).Value = "00000000-0000-0000-0000-000000000000"
	options.GetOptionByName(options.AzureVMNameOpt.Name, opts).Value = "web-01"

	_, _, err := NewHost(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resource-group")
}
