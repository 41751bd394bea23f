package rbacsuite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSuiteConfigDefaults(t *testing.T) {
	cfg, err := LoadSuiteConfig("")
	require.NoError(t, err)

	assert.Equal(t, "nimbusrbac", cfg.NamePrefix)
	assert.Equal(t, "eastus", cfg.Location)
	assert.NotEmpty(t, cfg.Role.Name)
	assert.NotEmpty(t, cfg.Role.Actions)
	assert.NotEmpty(t, cfg.Role.NotActions)
	assert.GreaterOrEqual(t, cfg.Retry.Attempts, 1)
	assert.Len(t, cfg.Categories, 15)
}

func TestLoadSuiteConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	raw := `
subscription: 00000000-0000-0000-0000-000000000000
location: westeurope
namePrefix: acmeval
runId: feed1234
role:
  name: Acme Restricted
  actions:
    - "Microsoft.Resources/subscriptions/resourceGroups/read"
retry:
  attempts: 3
  intervalSeconds: 5
disabledCases:
  - NET-16
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := LoadSuiteConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "00000000-0000-0000-0000-000000000000", cfg.Subscription)
	assert.Equal(t, "westeurope", cfg.Location)
	assert.Equal(t, "acmeval", cfg.NamePrefix)
	assert.Equal(t, "feed1234", cfg.RunID)
	assert.Equal(t, "Acme Restricted", cfg.Role.Name)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, 5, cfg.Retry.IntervalSeconds)
	assert.True(t, cfg.CaseDisabled("NET-16"))
	assert.False(t, cfg.CaseDisabled("NET-01"))

	// Unset sections keep their defaults.
	assert.Len(t, cfg.Categories, 15)
}

func TestLoadSuiteConfigRejectsEmptyRoleName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")
	require.NoError(t, os.WriteFile(path, []byte("role:\n  name: \"\"\n"), 0o644))

	_, err := LoadSuiteConfig(path)
	assert.ErrorContains(t, err, "role.name")
}

func TestLoadSuiteConfigMissingFile(t *testing.T) {
	_, err := LoadSuiteConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvironmentNamesAreDeterministic(t *testing.T) {
	a := environmentNames("nimbusrbac", "cafe0123")
	b := environmentNames("nimbusrbac", "cafe0123")
	assert.Equal(t, a, b)

	assert.Equal(t, "nimbusrbac-cafe0123-rg", a.ResourceGroup)
	assert.Len(t, a.VNets, 2)
	assert.Len(t, a.Subnets, 4)
	assert.Len(t, a.PublicIPs, 2)
}

func TestEnvironmentNamesStorageAccountLimit(t *testing.T) {
	env := environmentNames("a-very-long-prefix-indeed", "cafe0123")

	assert.LessOrEqual(t, len(env.StorageAccount), 24)
	assert.NotContains(t, env.StorageAccount, "-")
	assert.Equal(t, strings.ToLower(env.StorageAccount), env.StorageAccount)
}
