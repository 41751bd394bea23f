package rbac

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/internal/outputs"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/rbacsuite"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

var ValidateMetadata = modules.Metadata{
	Id:          "validate",
	Name:        "Validate Custom Role",
	Description: "Provision a throwaway environment, assume a restricted service principal, and verify the custom role denies every operation in the catalog.",
	Platform:    modules.Azure,
	Authors:     []string{"Silver Lining"},
	OpsecLevel:  modules.Moderate,
	References:  []string{"https://learn.microsoft.com/en-us/azure/role-based-access-control/custom-roles"},
}

var ValidateOptions = []*types.Option{
	options.WithDescription(
		options.AzureSubscriptionOpt,
		"Azure subscription ID for the test environment (overrides the suite file)",
	),
	&options.AzureSuiteFileOpt,
	&options.AzureSkipSetupOpt,
	&options.AzureSkipCleanupOpt,
	&options.AzureTimeoutOpt,
	options.WithDescription(
		options.FileNameOpt,
		"Also append a structured JSON run log to this file",
	),
}

var ValidateOutputProviders = []func(options []*types.Option) types.OutputProvider{
	outputs.NewConsoleProvider,
}

func NewValidate(opts []*types.Option) (<-chan string, stages.Stage[string, types.Result], error) {
	suiteFile := options.GetValue(options.AzureSuiteFileOpt.Name, opts)
	config, err := rbacsuite.LoadSuiteConfig(suiteFile)
	if err != nil {
		return nil, nil, err
	}

	if subscription := options.GetValue(options.AzureSubscriptionOpt.Name, opts); subscription != "" && subscription != "all" {
		config.Subscription = subscription
	}

	pipeline, err := stages.ChainStages[string, types.Result](runSuiteStage(config))
	if err != nil {
		return nil, nil, err
	}
	return stages.Generator([]string{config.Role.Name}), pipeline, nil
}

func runSuiteStage(config *rbacsuite.SuiteConfig) stages.Stage[string, types.Result] {
	return func(ctx context.Context, opts []*types.Option, in <-chan string) <-chan types.Result {
		logger := logs.NewStageLogger(ctx, opts, "RbacValidateStage")
		out := make(chan types.Result)

		runOpts := rbacsuite.RunOptions{
			SkipSetup:   boolOpt(options.AzureSkipSetupOpt.Name, opts),
			SkipCleanup: boolOpt(options.AzureSkipCleanupOpt.Name, opts),
			OutputDir:   options.GetValue(options.OutputOpt.Name, opts),
		}
		timeout := intOpt(options.AzureTimeoutOpt.Name, opts, 600)

		go func() {
			defer close(out)

			if logPath := options.GetValue(options.FileNameOpt.Name, opts); logPath != "" {
				fileLogger, logFile, err := logs.FileLogger(logPath)
				if err != nil {
					message.Warning("Could not open run log %s: %v", logPath, err)
				} else {
					defer logFile.Close()
					logger = fileLogger
				}
			}

			for range in {
				runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
				report, err := rbacsuite.New(config, logger).Run(runCtx, runOpts)
				cancel()
				if err != nil {
					message.Error("Validation run failed: %v", err)
					if report == nil {
						continue
					}
				}

				summary := formatSummary(report)
				if report.Totals.Fail > 0 {
					message.Warning("%d case(s) FAILED: the role allows operations it must deny", report.Totals.Fail)
				} else if report.Totals.Error == 0 && report.Totals.Pass > 0 {
					message.Success("Every catalog case was denied as required")
				}

				result := types.NewResult(modules.Azure, ValidateMetadata.Id, summary)
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}()

		return out
	}
}

func formatSummary(report *rbacsuite.Report) string {
	return fmt.Sprintf("run %s against role %q: %d passed, %d failed, %d errored, %d skipped (%d cases)",
		report.RunID, report.RoleName,
		report.Totals.Pass, report.Totals.Fail, report.Totals.Error, report.Totals.Skipped,
		len(report.Results))
}

func boolOpt(name string, opts []*types.Option) bool {
	value, err := strconv.ParseBool(options.GetValue(name, opts))
	return err == nil && value
}

func intOpt(name string, opts []*types.Option, fallback int) int {
	value, err := strconv.Atoi(options.GetValue(name, opts))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
