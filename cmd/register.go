package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/silverlining-sec/nimbus/internal/logs"
	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/modules"
	"github.com/silverlining-sec/nimbus/pkg/stages"
	"github.com/silverlining-sec/nimbus/pkg/types"
	"github.com/spf13/cobra"
)

// RegisterModule wires a stage module under the given parent command: flags
// come from the module options, the factory builds the input channel and the
// pipeline, and every result fans out to the module's output providers.
func RegisterModule(
	parent *cobra.Command,
	metadata modules.Metadata,
	moduleOpts []*types.Option,
	common []*types.Option,
	providers []func(options []*types.Option) types.OutputProvider,
	factory stages.StageFactory[string, types.Result],
) {
	c := &cobra.Command{
		Use:   metadata.Id,
		Short: metadata.Description,
		Run: func(cmd *cobra.Command, args []string) {
			opts, err := getOpts(cmd, moduleOpts, common)
			if err != nil {
				message.Error("%v", err)
				os.Exit(1)
			}

			if err := runStageModule(metadata, opts, providers, factory); err != nil {
				message.Error("%v", err)
				os.Exit(1)
			}
		},
	}

	options2Flag(moduleOpts, common, c)
	for _, opt := range moduleOpts {
		if opt.Required && opt.Default == "" {
			c.MarkFlagRequired(opt.Name)
		}
	}

	parent.AddCommand(c)
}

func runStageModule(
	metadata modules.Metadata,
	opts []*types.Option,
	providerFactories []func(options []*types.Option) types.OutputProvider,
	factory stages.StageFactory[string, types.Result],
) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	message.Section(metadata.Name)

	in, pipeline, err := factory(opts)
	if err != nil {
		return err
	}

	providers := make([]types.OutputProvider, 0, len(providerFactories))
	for _, pf := range providerFactories {
		providers = append(providers, pf(opts))
	}

	logger := logs.ConsoleLogger()
	wg := sync.WaitGroup{}

	for result := range pipeline(ctx, opts, in) {
		for _, provider := range providers {
			wg.Add(1)
			go func(provider types.OutputProvider, result types.Result) {
				defer wg.Done()
				if err := provider.Write(result); err != nil {
					logger.Error("Output provider failed", "error", err)
				}
			}(provider, result)
		}
	}

	wg.Wait()
	return ctx.Err()
}
