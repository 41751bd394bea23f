package rbacsuite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

// cleanup tears the environment down with the operator credential. The order
// matters: the role assignment must go before the role definition or ARM
// rejects the definition delete, and the resource group delete at the end
// covers everything nested inside it. Every step is retried on a fixed
// interval and no failure stops the remaining steps.
func (s *Suite) cleanup(ctx context.Context, run *RunContext, clients *operatorClients) {
	env := run.Env
	policy := helpers.RetryPolicy{
		Attempts: run.Config.Retry.Attempts,
		Interval: run.Config.Retry.Interval(),
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"role assignment", func(ctx context.Context) error {
			if env.RoleAssignmentID == "" {
				return nil
			}
			_, err := clients.roleAssigns.DeleteByID(ctx, env.RoleAssignmentID, nil)
			if helpers.IsNotFoundError(err) {
				return nil
			}
			return err
		}},
		{"role definition", func(ctx context.Context) error {
			if env.RoleDefinitionID == "" {
				return nil
			}
			_, err := clients.roleDefs.Delete(ctx, env.ResourceGroupID,
				helpers.ExtractResourceName(env.RoleDefinitionID), nil)
			if helpers.IsNotFoundError(err) {
				return nil
			}
			return err
		}},
		{"service principal", func(ctx context.Context) error {
			if env.SPObjectID == "" {
				return nil
			}
			err := clients.graph.ServicePrincipals().ByServicePrincipalId(env.SPObjectID).Delete(ctx, nil)
			if err != nil && helpers.IsNotFoundError(err) {
				return nil
			}
			return err
		}},
		{"application", func(ctx context.Context) error {
			if env.AppObjectID == "" {
				return nil
			}
			err := clients.graph.Applications().ByApplicationId(env.AppObjectID).Delete(ctx, nil)
			if err != nil && helpers.IsNotFoundError(err) {
				return nil
			}
			return err
		}},
		{"resource group", func(ctx context.Context) error {
			poller, err := clients.groups.BeginDelete(ctx, env.ResourceGroup, nil)
			if err != nil {
				if helpers.IsNotFoundError(err) {
					return nil
				}
				return err
			}
			_, err = poller.PollUntilDone(ctx, nil)
			return err
		}},
	}

	for _, step := range steps {
		s.logger.Info("Cleaning up", slog.String("step", step.name))
		err := helpers.Retry(ctx, policy, func() error { return step.fn(ctx) })
		if err != nil {
			s.logger.Warn("Cleanup step failed, continuing",
				slog.String("step", step.name),
				slog.String("error", fmt.Sprintf("%v", err)))
		}
	}
}
