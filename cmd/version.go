package cmd

import (
	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Nimbus",
	Long:  `All software has versions. This is Nimbus's`,
	Run: func(cmd *cobra.Command, args []string) {
		message.Info(version.FullVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
