package rbacsuite

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCredential struct{}

func (fakeCredential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{Token: "fake"}, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		outcome Outcome
	}{
		{"nil error is a finding", nil, OutcomeFail},
		{"authorization failed", errors.New("RESPONSE 403: AuthorizationFailed: the client does not have permission"), OutcomePass},
		{"linked authorization failed", errors.New("LinkedAuthorizationFailed"), OutcomePass},
		{"policy denial", errors.New("RequestDisallowedByPolicy: blocked by initiative"), OutcomePass},
		{"forbidden", errors.New("Forbidden"), OutcomePass},
		{"throttling", errors.New("RESPONSE 429: TooManyRequests"), OutcomeError},
		{"bad request", errors.New("InvalidParameter: addressPrefix is malformed"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, detail := Classify(tt.err)
			assert.Equal(t, tt.outcome, outcome)
			assert.NotEmpty(t, detail)
		})
	}
}

func testRunContext() *RunContext {
	cfg := DefaultSuiteConfig()
	return &RunContext{
		RunID:        "cafe0123",
		Config:       cfg,
		Subscription: "00000000-0000-0000-0000-000000000000",
		TenantID:     "11111111-1111-1111-1111-111111111111",
		Location:     cfg.Location,
		Restricted:   fakeCredential{},
		Env:          environmentNames(cfg.NamePrefix, "cafe0123"),
	}
}

func TestRunCaseDeniedIsPass(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	run := testRunContext()

	result := s.runCase(context.Background(), run, TestCase{
		ID:       "T-01",
		Category: "REQ-01",
		Attempt: func(ctx context.Context, run *RunContext) error {
			return errors.New("AuthorizationFailed")
		},
	})

	assert.Equal(t, OutcomePass, result.Outcome)
	assert.Equal(t, "T-01", result.ID)
}

func TestRunCaseSuccessIsFailAndUndone(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	run := testRunContext()

	undone := false
	result := s.runCase(context.Background(), run, TestCase{
		ID:       "T-02",
		Category: "REQ-08",
		Attempt:  func(ctx context.Context, run *RunContext) error { return nil },
		Undo: func(ctx context.Context, run *RunContext) error {
			undone = true
			return nil
		},
	})

	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.True(t, undone)
	assert.Equal(t, "created object was removed", result.Notes)
}

func TestRunCaseFailedUndoIsRecorded(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	run := testRunContext()

	result := s.runCase(context.Background(), run, TestCase{
		ID:      "T-03",
		Attempt: func(ctx context.Context, run *RunContext) error { return nil },
		Undo: func(ctx context.Context, run *RunContext) error {
			return fmt.Errorf("delete was throttled")
		},
	})

	assert.Equal(t, OutcomeFail, result.Outcome)
	assert.Contains(t, result.Notes, "could not be removed")
}

func TestRunCaseDisabledIsSkipped(t *testing.T) {
	cfg := DefaultSuiteConfig()
	cfg.DisabledCases = []string{"T-04"}
	s := New(cfg, nil)
	run := testRunContext()
	run.Config = cfg

	invoked := false
	result := s.runCase(context.Background(), run, TestCase{
		ID: "T-04",
		Attempt: func(ctx context.Context, run *RunContext) error {
			invoked = true
			return nil
		},
	})

	assert.Equal(t, OutcomeSkipped, result.Outcome)
	assert.False(t, invoked)
}

func TestRunCaseWithoutCredentialIsSkipped(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	run := testRunContext()
	run.Restricted = nil

	result := s.runCase(context.Background(), run, TestCase{
		ID:      "T-05",
		Attempt: func(ctx context.Context, run *RunContext) error { return nil },
	})

	require.Equal(t, OutcomeSkipped, result.Outcome)
	assert.Contains(t, result.Detail, "credential")
}

func TestCountMatchesCatalogSize(t *testing.T) {
	results := []CaseResult{
		{Outcome: OutcomePass},
		{Outcome: OutcomePass},
		{Outcome: OutcomeFail},
		{Outcome: OutcomeError},
		{Outcome: OutcomeSkipped},
	}
	totals := Count(results)

	assert.Equal(t, 2, totals.Pass)
	assert.Equal(t, 1, totals.Fail)
	assert.Equal(t, 1, totals.Error)
	assert.Equal(t, 1, totals.Skipped)
	assert.Equal(t, len(results), totals.Pass+totals.Fail+totals.Error+totals.Skipped)
}
