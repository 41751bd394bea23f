package rbacsuite

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SuiteConfig is the suite YAML. Every field has a default so the suite can
// run without a file at all.
type SuiteConfig struct {
	Subscription string `yaml:"subscription"`
	TenantID     string `yaml:"tenantId"`
	Location     string `yaml:"location"`
	NamePrefix   string `yaml:"namePrefix"`

	// RunID pins the environment names. Set it to reuse an environment a
	// previous skip-cleanup run left behind; empty means a fresh ID per run.
	RunID string `yaml:"runId"`

	Role RoleConfig `yaml:"role"`

	Retry RetryConfig `yaml:"retry"`

	// DisabledCases lists case IDs to skip.
	DisabledCases []string `yaml:"disabledCases"`

	// Categories maps requirement IDs to human descriptions for the report.
	Categories map[string]string `yaml:"categories"`
}

// RoleConfig describes the custom role under test.
type RoleConfig struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Actions     []string `yaml:"actions"`
	NotActions  []string `yaml:"notActions"`
}

// RetryConfig tunes the fixed-interval retry loops (AAD propagation, ARM
// teardown).
type RetryConfig struct {
	Attempts        int `yaml:"attempts"`
	IntervalSeconds int `yaml:"intervalSeconds"`
}

// Interval returns the configured interval as a duration.
func (r RetryConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// DefaultSuiteConfig returns the config used when no suite file is given. The
// default role mirrors a typical restricted-operator role: broad read plus
// scoped compute management, with authorization writes excluded.
func DefaultSuiteConfig() *SuiteConfig {
	return &SuiteConfig{
		Location:   "eastus",
		NamePrefix: "nimbusrbac",
		Role: RoleConfig{
			Name:        "Nimbus Restricted Operator",
			Description: "Restricted operator role provisioned by the nimbus validation suite.",
			Actions: []string{
				"Microsoft.Resources/subscriptions/read",
				"Microsoft.Resources/subscriptions/resourceGroups/read",
				"Microsoft.Compute/virtualMachines/read",
				"Microsoft.Compute/virtualMachines/start/action",
				"Microsoft.Compute/virtualMachines/restart/action",
				"Microsoft.Compute/virtualMachines/deallocate/action",
			},
			NotActions: []string{
				"Microsoft.Authorization/*/write",
				"Microsoft.Authorization/*/delete",
				"Microsoft.Network/*/write",
				"Microsoft.Network/*/delete",
				"Microsoft.Storage/storageAccounts/write",
			},
		},
		Retry: RetryConfig{Attempts: 10, IntervalSeconds: 15},
		Categories: map[string]string{
			"REQ-01": "Role definitions must not be writable",
			"REQ-02": "Role assignments must not be writable",
			"REQ-03": "Classic administrators must not be enumerable",
			"REQ-04": "Management locks must not be writable",
			"REQ-05": "Policy assignments must not be writable",
			"REQ-06": "Deny assignments must not be enumerable",
			"REQ-07": "Management groups must not be writable",
			"REQ-08": "Virtual networks must not be writable",
			"REQ-09": "Subnets must not be writable",
			"REQ-10": "Route tables and routes must not be writable",
			"REQ-11": "Public IP addresses must not be writable",
			"REQ-12": "NAT gateways must not be writable",
			"REQ-13": "VNet peerings must not be writable",
			"REQ-14": "Storage account network rules must not be writable",
			"REQ-15": "Resource groups must not be deletable",
		},
	}
}

// LoadSuiteConfig reads a suite YAML and overlays it on the defaults. An
// empty path returns the defaults untouched.
func LoadSuiteConfig(path string) (*SuiteConfig, error) {
	cfg := DefaultSuiteConfig()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse suite file %s: %w", path, err)
	}

	if cfg.Retry.Attempts < 1 {
		cfg.Retry.Attempts = 1
	}
	if cfg.Retry.IntervalSeconds < 1 {
		cfg.Retry.IntervalSeconds = 1
	}
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = "nimbusrbac"
	}
	if cfg.Role.Name == "" {
		return nil, fmt.Errorf("suite file %s: role.name must not be empty", path)
	}

	return cfg, nil
}

// CaseDisabled reports whether the suite file disabled a case.
func (c *SuiteConfig) CaseDisabled(id string) bool {
	for _, disabled := range c.DisabledCases {
		if disabled == id {
			return true
		}
	}
	return false
}
