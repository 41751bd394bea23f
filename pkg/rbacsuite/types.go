// Package rbacsuite provisions a throwaway Azure environment, assumes a
// restricted service principal bound to a custom role, and attempts a fixed
// catalog of management-plane operations that the role must deny. Outcomes are
// classified per case and exported as JSON, CSV, HTML and text reports.
package rbacsuite

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// Outcome is the classification of a single test case.
type Outcome string

const (
	// OutcomePass means the operation was denied, which is what the role
	// under test promises.
	OutcomePass Outcome = "PASS"
	// OutcomeFail means the operation succeeded. The role allowed something
	// it must deny.
	OutcomeFail Outcome = "FAIL"
	// OutcomeError means the operation failed for a reason unrelated to
	// authorization, so the case proves nothing.
	OutcomeError Outcome = "ERROR"
	// OutcomeSkipped means the case was disabled or its prerequisite was
	// missing.
	OutcomeSkipped Outcome = "SKIPPED"
)

// Phase names the suite's sequential stages.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseSwitchAuth Phase = "switch-auth"
	PhaseTests      Phase = "tests"
	PhaseExport     Phase = "export"
	PhaseCleanup    Phase = "cleanup"
)

// TestCase is one expect-deny check. Attempt runs the operation with the
// restricted credential; Undo, when set, best-effort deletes whatever Attempt
// created if it unexpectedly succeeded.
type TestCase struct {
	ID          string
	Category    string
	Description string
	Attempt     func(ctx context.Context, run *RunContext) error
	Undo        func(ctx context.Context, run *RunContext) error
}

// CaseResult is the classified outcome of a TestCase.
type CaseResult struct {
	ID          string        `json:"id"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Outcome     Outcome       `json:"outcome"`
	Detail      string        `json:"detail,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	Duration    time.Duration `json:"durationNs"`
}

// Environment holds the names and IDs of the provisioned scaffold. Names are
// deterministic for a given prefix and run ID so a skip-setup run can rebuild
// them without state.
type Environment struct {
	ResourceGroup    string `json:"resourceGroup"`
	ResourceGroupID  string `json:"resourceGroupId"`
	AppObjectID      string `json:"appObjectId"`
	AppClientID      string `json:"appClientId"`
	SPObjectID       string `json:"spObjectId"`
	clientSecret     string
	RoleDefinitionID string   `json:"roleDefinitionId"`
	RoleAssignmentID string   `json:"roleAssignmentId"`
	VNets            []string `json:"vnets"`
	Subnets          []string `json:"subnets"`
	RouteTable       string   `json:"routeTable"`
	PublicIPs        []string `json:"publicIps"`
	NATGateway       string   `json:"natGateway"`
	StorageAccount   string   `json:"storageAccount"`
}

// RunContext is the shared state passed between phases. Operator is the
// ambient credential used for setup, export and cleanup; Restricted is the
// test service principal's credential and is only handed to test cases.
type RunContext struct {
	RunID        string
	Config       *SuiteConfig
	Subscription string
	TenantID     string
	Location     string
	Operator     azcore.TokenCredential
	Restricted   azcore.TokenCredential
	Env          *Environment
	Results      []CaseResult
}

// Tags returns the tag set stamped on every provisioned resource.
func (r *RunContext) Tags() map[string]*string {
	runID := r.RunID
	purpose := "rbac-validation"
	return map[string]*string{
		"nimbus-run-id":  &runID,
		"nimbus-purpose": &purpose,
	}
}

// Totals summarizes a result set.
type Totals struct {
	Pass    int `json:"pass"`
	Fail    int `json:"fail"`
	Error   int `json:"error"`
	Skipped int `json:"skipped"`
}

// Count buckets the results into totals.
func Count(results []CaseResult) Totals {
	var t Totals
	for _, r := range results {
		switch r.Outcome {
		case OutcomePass:
			t.Pass++
		case OutcomeFail:
			t.Fail++
		case OutcomeError:
			t.Error++
		case OutcomeSkipped:
			t.Skipped++
		}
	}
	return t
}

// Report is what the exporter serializes.
type Report struct {
	RunID        string       `json:"runId"`
	Subscription string       `json:"subscription"`
	Location     string       `json:"location"`
	RoleName     string       `json:"roleName"`
	StartedAt    time.Time    `json:"startedAt"`
	FinishedAt   time.Time    `json:"finishedAt"`
	Environment  *Environment `json:"environment,omitempty"`
	Results      []CaseResult `json:"results"`
	Totals       Totals       `json:"totals"`
}
