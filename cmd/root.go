package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/internal/message"
	o "github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "nimbus",
	Short: "Nimbus is a CLI toolkit for administering Azure environments.",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.nimbus.yaml)")
	rootCmd.PersistentFlags().StringP(o.OutputOpt.Name, o.OutputOpt.Short, o.OutputOpt.Value, o.OutputOpt.Description)
	rootCmd.PersistentFlags().BoolP(o.VerboseOpt.Name, o.VerboseOpt.Short, false, o.VerboseOpt.Description)
	rootCmd.PersistentFlags().String(o.JqOpt.Name, o.JqOpt.Value, o.JqOpt.Description)
	rootCmd.PersistentFlags().String("log-file", "", "Append JSON logs to this file")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress informational console messages")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".nimbus")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if quiet, _ := rootCmd.PersistentFlags().GetBool("quiet"); quiet {
		message.SetQuiet(true)
	}
	if noColor, _ := rootCmd.PersistentFlags().GetBool("no-color"); noColor {
		message.SetNoColor(true)
	}

	verbose, _ := rootCmd.PersistentFlags().GetBool(o.VerboseOpt.Name)
	logFile, _ := rootCmd.PersistentFlags().GetString("log-file")
	cobra.CheckErr(logs.Configure(verbose, logFile))
}

func options2Flag(options []*types.Option, common []*types.Option, cmd *cobra.Command) {
	for _, option := range options {
		option2Flag(option, cmd.Flags())
	}

	for _, option := range common {
		option2Flag(option, cmd.Flags())
	}
}

func option2Flag(option *types.Option, flags *pflag.FlagSet) {
	defaultValue := option.Value
	if defaultValue == "" {
		defaultValue = option.Default
	}

	switch option.Type {
	case types.Bool:
		value, _ := strconv.ParseBool(defaultValue)
		flags.BoolP(option.Name, option.Short, value, option.Description)
	case types.Int:
		value, _ := strconv.Atoi(defaultValue)
		flags.IntP(option.Name, option.Short, value, option.Description)
	default:
		flags.StringP(option.Name, option.Short, defaultValue, option.Description)
	}
}

func getOpts(cmd *cobra.Command, moduleOpts []*types.Option, common []*types.Option) ([]*types.Option, error) {
	opts := getGlobalOpts(cmd)

	opts = append(opts, getOptsFromCmd(cmd, moduleOpts)...)
	opts = append(opts, getOptsFromCmd(cmd, common)...)

	if err := o.ValidateOptions(opts); err != nil {
		return nil, err
	}

	return opts, nil
}

func getGlobalOpts(cmd *cobra.Command) []*types.Option {
	opts := []*types.Option{}

	output := o.OutputOpt
	output.Value, _ = cmd.Flags().GetString(output.Name)
	opts = append(opts, &output)

	verbose := o.VerboseOpt
	v, _ := cmd.Flags().GetBool(verbose.Name)
	verbose.Value = strconv.FormatBool(v)
	opts = append(opts, &verbose)

	jqFilter := o.JqOpt
	jqFilter.Value, _ = cmd.Flags().GetString(jqFilter.Name)
	opts = append(opts, &jqFilter)

	return opts
}

func getOptsFromCmd(cmd *cobra.Command, moduleOpts []*types.Option) []*types.Option {
	opts := []*types.Option{}
	for _, opt := range moduleOpts {
		switch opt.Type {
		case types.Bool:
			value, _ := cmd.Flags().GetBool(opt.Name)
			opt.Value = strconv.FormatBool(value)
		case types.Int:
			value, _ := cmd.Flags().GetInt(opt.Name)
			opt.Value = strconv.Itoa(value)
		default:
			opt.Value, _ = cmd.Flags().GetString(opt.Name)
		}
		opts = append(opts, opt)
	}
	return opts
}
