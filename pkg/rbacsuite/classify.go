package rbacsuite

import (
	"context"
	"fmt"
	"time"

	"github.com/silverlining-sec/nimbus/internal/helpers"
)

// Classify buckets an attempt's error into an outcome. nil means the role
// allowed the operation, which is a finding, not a success.
func Classify(err error) (Outcome, string) {
	if err == nil {
		return OutcomeFail, "operation succeeded but the role must deny it"
	}
	if helpers.IsDeniedError(err) {
		return OutcomePass, err.Error()
	}
	return OutcomeError, err.Error()
}

// runCase executes a single catalog entry: attempt, classify, and best-effort
// undo anything a FAIL left behind.
func (s *Suite) runCase(ctx context.Context, run *RunContext, testCase TestCase) CaseResult {
	result := CaseResult{
		ID:          testCase.ID,
		Category:    testCase.Category,
		Description: testCase.Description,
	}

	if run.Config.CaseDisabled(testCase.ID) {
		result.Outcome = OutcomeSkipped
		result.Detail = "disabled in suite file"
		return result
	}
	if run.Restricted == nil {
		result.Outcome = OutcomeSkipped
		result.Detail = "restricted credential unavailable"
		return result
	}

	started := time.Now()
	err := testCase.Attempt(ctx, run)
	result.Duration = time.Since(started)
	result.Outcome, result.Detail = Classify(err)

	if result.Outcome == OutcomeFail && testCase.Undo != nil {
		if undoErr := testCase.Undo(ctx, run); undoErr != nil {
			result.Notes = fmt.Sprintf("created object could not be removed: %v", undoErr)
		} else {
			result.Notes = "created object was removed"
		}
	}

	return result
}
