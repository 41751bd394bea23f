package options

import (
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var OutputOpt = types.Option{
	Name:        "output",
	Short:       "o",
	Description: "Directory for file output",
	Type:        types.String,
	Value:       "nimbus-output",
}

var FileNameOpt = types.Option{
	Name:        "filename",
	Short:       "f",
	Description: "Base filename for exported files (defaults to a module-derived name)",
	Type:        types.String,
	Value:       "",
}

var JqOpt = types.Option{
	Name:        "jq",
	Description: "jq expression applied to JSON output before it is written",
	Type:        types.String,
	Value:       "",
}

var VerboseOpt = types.Option{
	Name:        "verbose",
	Short:       "v",
	Description: "Enable debug logging",
	Type:        types.Bool,
	Value:       "false",
}

var AzureSubscriptionOpt = types.Option{
	Name:        "subscription",
	Short:       "s",
	Description: "The Azure subscription to use. Can be a subscription ID or 'all'.",
	Required:    true,
	Type:        types.String,
	Default:     "all",
}

// AzureSingleSubscriptionOpt is for modules that operate on exactly one
// subscription and must not default to "all".
var AzureSingleSubscriptionOpt = types.Option{
	Name:        "subscription",
	Short:       "s",
	Description: "Azure subscription ID",
	Required:    true,
	Type:        types.String,
	Value:       "",
}

var AzureResourceGroupOpt = types.Option{
	Name:        "resource-group",
	Short:       "g",
	Description: "Azure resource group name",
	Type:        types.String,
	Value:       "",
}

var AzureLocationOpt = types.Option{
	Name:        "location",
	Short:       "l",
	Description: "Azure region (for example eastus)",
	Type:        types.String,
	Value:       "eastus",
}

var AzureVMNameOpt = types.Option{
	Name:        "vm-name",
	Description: "Name of the target virtual machine",
	Type:        types.String,
	Value:       "",
}

var AzureSourceVaultOpt = types.Option{
	Name:        "source-vault",
	Description: "Name of the source Recovery Services vault",
	Required:    true,
	Type:        types.String,
	Value:       "",
}

var AzureTargetVaultOpt = types.Option{
	Name:        "target-vault",
	Description: "Name of the target Recovery Services vault",
	Required:    true,
	Type:        types.String,
	Value:       "",
}

var AzureSuiteFileOpt = types.Option{
	Name:        "suite-file",
	Description: "YAML file describing the validation suite (role, catalog tuning, retries)",
	Type:        types.String,
	Value:       "",
}

var AzureSkipCleanupOpt = types.Option{
	Name:        "skip-cleanup",
	Description: "Leave the provisioned test environment in place after the run",
	Type:        types.Bool,
	Value:       "false",
}

var AzureSkipSetupOpt = types.Option{
	Name:        "skip-setup",
	Description: "Reuse an existing test environment instead of provisioning one",
	Type:        types.Bool,
	Value:       "false",
}

var AzureTimeoutOpt = types.Option{
	Name:        "timeout",
	Short:       "t",
	Description: "Timeout in seconds for the whole run",
	Type:        types.Int,
	Value:       "600",
}
