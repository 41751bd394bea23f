package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverlining-sec/nimbus/pkg/types"
)

func TestWithHelpersReturnCopies(t *testing.T) {
	original := AzureVMNameOpt

	required := WithRequired(AzureVMNameOpt, true)
	assert.True(t, required.Required)
	assert.False(t, original.Required)
	assert.False(t, AzureVMNameOpt.Required)

	defaulted := WithDefaultValue(AzureResourceGroupOpt, "infra-rg")
	assert.Equal(t, "infra-rg", defaulted.Value)
	assert.NotEqual(t, "infra-rg", AzureResourceGroupOpt.Value)

	described := WithDescription(OutputOpt, "somewhere else")
	assert.Equal(t, "somewhere else", described.Description)
	assert.NotEqual(t, described.Description, OutputOpt.Description)
}

func TestGetValueFallsBackToDefault(t *testing.T) {
	opts := []*types.Option{
		{Name: "set", Value: "explicit", Default: "fallback"},
		{Name: "unset", Default: "fallback"},
		{Name: "empty"},
	}

	assert.Equal(t, "explicit", GetValue("set", opts))
	assert.Equal(t, "fallback", GetValue("unset", opts))
	assert.Equal(t, "", GetValue("empty", opts))
	assert.Equal(t, "", GetValue("missing", opts))
}

func TestCreateDeepCopyOfOptions(t *testing.T) {
	opts := []*types.Option{{Name: "subscription", Value: "original"}}

	copied := CreateDeepCopyOfOptions(opts)
	copied[0].Value = "changed"

	assert.Equal(t, "original", opts[0].Value)
	assert.Equal(t, "changed", copied[0].Value)
}

func TestValidateOptionsRequired(t *testing.T) {
	opts := []*types.Option{{Name: "vm-name", Required: true}}
	err := ValidateOptions(opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vm-name")

	opts[0].Value = "web-01"
	assert.NoError(t, ValidateOptions(opts))
}

func TestValidateOptionsValueList(t *testing.T) {
	opt := &types.Option{Name: "format", ValueList: []string{"json", "csv"}}

	opt.Value = "JSON"
	assert.NoError(t, ValidateOptions([]*types.Option{opt}))

	opt.Value = "xml"
	err := ValidateOptions([]*types.Option{opt})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xml")

	opt.Value = "json, csv"
	assert.NoError(t, ValidateOptions([]*types.Option{opt}))
}
