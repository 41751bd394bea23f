package rbacsuite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

// switchAuthContext builds the restricted credential from the test service
// principal and waits until it can read the resource group. Fresh role
// assignments take a while to propagate through AAD, so the probe retries on
// a fixed interval. The operator credential stays in place for setup, export
// and cleanup.
func (s *Suite) switchAuthContext(ctx context.Context, run *RunContext) error {
	env := run.Env
	if env.AppClientID == "" || env.clientSecret == "" {
		return fmt.Errorf("service principal credentials are not available")
	}

	cred, err := azidentity.NewClientSecretCredential(run.TenantID, env.AppClientID, env.clientSecret, nil)
	if err != nil {
		return fmt.Errorf("failed to build client secret credential: %w", err)
	}

	groups, err := armresources.NewResourceGroupsClient(run.Subscription, cred, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe client: %w", err)
	}

	policy := helpers.RetryPolicy{
		Attempts: run.Config.Retry.Attempts,
		Interval: run.Config.Retry.Interval(),
	}
	s.logger.Info("Waiting for the test principal's access to propagate",
		slog.Int("maxAttempts", policy.Attempts))

	err = helpers.Retry(ctx, policy, func() error {
		_, err := groups.Get(ctx, env.ResourceGroup, nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("restricted credential never gained read access to %s: %w", env.ResourceGroup, err)
	}

	run.Restricted = cred
	return nil
}
