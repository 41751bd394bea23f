package rbacsuite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

// Suite runs the validation pipeline: setup, switch-auth, the test catalogs,
// export, cleanup. The phases are strictly sequential.
type Suite struct {
	config *SuiteConfig
	logger *slog.Logger
}

// RunOptions tune a single invocation.
type RunOptions struct {
	// SkipSetup reuses an existing environment; the resource group must
	// already exist for the configured run ID.
	SkipSetup bool
	// SkipCleanup leaves the environment in place after the run.
	SkipCleanup bool
	// OutputDir is where the reports land.
	OutputDir string
}

// New builds a suite from a loaded configuration.
func New(config *SuiteConfig, logger *slog.Logger) *Suite {
	if logger == nil {
		logger = slog.Default()
	}
	return &Suite{config: config, logger: logger}
}

// Run executes the whole pipeline and returns the report. Setup failures
// abort the test phases but cleanup still runs; failures inside a test case
// are recorded in its result, never fatal.
func (s *Suite) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	run, err := s.newRunContext(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:        run.RunID,
		Subscription: run.Subscription,
		Location:     run.Location,
		RoleName:     run.Config.Role.Name,
		StartedAt:    time.Now().UTC(),
		Environment:  run.Env,
	}

	clients, err := newOperatorClients(run)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting validation run",
		slog.String("runId", run.RunID),
		slog.String("subscription", run.Subscription),
		slog.String("location", run.Location))

	setupErr := s.setupEnvironment(ctx, run, clients, opts.SkipSetup)
	if setupErr != nil {
		s.logger.Error("Setup failed", slog.String("error", setupErr.Error()))
	} else {
		if err := s.switchAuthContext(ctx, run); err != nil {
			// Every case will be SKIPPED; the run still produces a report.
			s.logger.Error("Auth context switch failed", slog.String("error", err.Error()))
		}
		s.runCatalog(ctx, run)
	}

	report.Results = run.Results
	report.Totals = Count(run.Results)
	report.FinishedAt = time.Now().UTC()

	var exported []string
	if setupErr == nil {
		exported, err = s.export(report, opts.OutputDir)
		if err != nil {
			s.logger.Error("Export failed", slog.String("error", err.Error()))
		} else {
			for _, path := range exported {
				s.logger.Info("Wrote report", slog.String("path", path))
			}
		}
	}

	if opts.SkipCleanup {
		s.logger.Info("Skipping cleanup, environment left in place",
			slog.String("resourceGroup", run.Env.ResourceGroup),
			slog.String("runId", run.RunID))
	} else {
		s.cleanup(ctx, run, clients)
	}

	if setupErr != nil {
		return report, fmt.Errorf("setup failed: %w", setupErr)
	}
	return report, nil
}

// newRunContext resolves subscription, tenant, region and run ID, and derives
// the environment names.
func (s *Suite) newRunContext(ctx context.Context) (*RunContext, error) {
	operator, err := helpers.GetAzureCredentials()
	if err != nil {
		return nil, err
	}

	subscription := s.config.Subscription
	if subscription == "" {
		subscriptions, err := helpers.ListSubscriptions(ctx, operator)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve a subscription: %w", err)
		}
		if len(subscriptions) == 0 {
			return nil, fmt.Errorf("the operator credential can see no subscriptions")
		}
		subscription = subscriptions[0]
	}

	tenantID := s.config.TenantID
	if tenantID == "" {
		details, err := helpers.GetSubscriptionDetails(ctx, operator, subscription)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tenant for subscription %s: %w", subscription, err)
		}
		if details.TenantID == nil {
			return nil, fmt.Errorf("subscription %s carries no tenant ID", subscription)
		}
		tenantID = *details.TenantID
	}

	location := s.config.Location
	if !helpers.IsValidLocation(location) {
		return nil, fmt.Errorf("unknown location %q", location)
	}

	runID := s.config.RunID
	if runID == "" {
		runID = strings.Split(uuid.NewString(), "-")[0]
	}

	return &RunContext{
		RunID:        runID,
		Config:       s.config,
		Subscription: subscription,
		TenantID:     tenantID,
		Location:     location,
		Operator:     operator,
		Env:          environmentNames(s.config.NamePrefix, runID),
	}, nil
}

// Catalog is the full fixed case list, authorization first, networking
// second.
func Catalog() []TestCase {
	var catalog []TestCase
	catalog = append(catalog, AuthorizationCatalog()...)
	catalog = append(catalog, NetworkingCatalog()...)
	return catalog
}

func (s *Suite) runCatalog(ctx context.Context, run *RunContext) {
	for _, testCase := range Catalog() {
		result := s.runCase(ctx, run, testCase)
		run.Results = append(run.Results, result)

		level := slog.LevelInfo
		if result.Outcome == OutcomeFail || result.Outcome == OutcomeError {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "Case finished",
			slog.String("case", result.ID),
			slog.String("category", result.Category),
			slog.String("outcome", string(result.Outcome)))
	}
}
