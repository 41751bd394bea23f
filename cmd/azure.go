package cmd

import (
	"os"

	"github.com/silverlining-sec/nimbus/modules/backup"
	"github.com/silverlining-sec/nimbus/modules/encrypt"
	"github.com/silverlining-sec/nimbus/modules/rbac"
	"github.com/silverlining-sec/nimbus/modules/recon"
	"github.com/silverlining-sec/nimbus/modules/vmrepair"
	"github.com/silverlining-sec/nimbus/pkg/types"
	"github.com/spf13/cobra"
)

var azureCmd = &cobra.Command{
	Use:     "azure",
	Aliases: []string{"az"},
	Short:   "azure commands",
	Long:    `Execute azure commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureReconCmd = &cobra.Command{
	Use:   "recon",
	Short: "Azure inventory modules",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureVMCmd = &cobra.Command{
	Use:   "vm",
	Short: "Azure virtual machine helpers",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureVMRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Repair a VM by cloning and swapping its OS disk",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Recovery Services vault helpers",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Disk and host encryption helpers",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureRbacCmd = &cobra.Command{
	Use:   "rbac",
	Short: "Custom role validation",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

var azureCommonOptions = []*types.Option{}

func init() {
	azureCmd.AddCommand(azureReconCmd)
	azureCmd.AddCommand(azureVMCmd)
	azureVMCmd.AddCommand(azureVMRepairCmd)
	azureCmd.AddCommand(azureBackupCmd)
	azureCmd.AddCommand(azureEncryptCmd)
	azureCmd.AddCommand(azureRbacCmd)
	rootCmd.AddCommand(azureCmd)

	// Recon
	RegisterModule(azureReconCmd, recon.ListAllMetadata, recon.ListAllOptions, azureCommonOptions, recon.ListAllOutputProviders, recon.NewListAll)
	RegisterModule(azureReconCmd, recon.SummaryMetadata, recon.SummaryOptions, azureCommonOptions, recon.SummaryOutputProviders, recon.NewSummary)
	RegisterModule(azureReconCmd, recon.ServicesMetadata, recon.ServicesOptions, azureCommonOptions, recon.ServicesOutputProviders, recon.NewServices)

	// VM repair
	RegisterModule(azureVMRepairCmd, vmrepair.CreateMetadata, vmrepair.CreateOptions, azureCommonOptions, vmrepair.CreateOutputProviders, vmrepair.NewCreate)
	RegisterModule(azureVMRepairCmd, vmrepair.RestoreMetadata, vmrepair.RestoreOptions, azureCommonOptions, vmrepair.RestoreOutputProviders, vmrepair.NewRestore)

	// Backup vault migration
	RegisterModule(azureBackupCmd, backup.MigrateMetadata, backup.MigrateOptions, azureCommonOptions, backup.MigrateOutputProviders, backup.NewMigrate)

	// Encryption at host
	RegisterModule(azureEncryptCmd, encrypt.HostMetadata, encrypt.HostOptions, azureCommonOptions, encrypt.HostOutputProviders, encrypt.NewHost)

	// RBAC validation suite
	RegisterModule(azureRbacCmd, rbac.ValidateMetadata, rbac.ValidateOptions, azureCommonOptions, rbac.ValidateOutputProviders, rbac.NewValidate)
}
