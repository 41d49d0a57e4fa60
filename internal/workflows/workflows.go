package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"iara/internal/activities"
	"iara/internal/cases"
)

const QueryGetCaseStatus = "GetCaseStatus"

// CaseProcessWorkflow claims a case, analyses it and records the outcome. Activities
// run once; a failed analysis marks the case failed and fails the workflow.
func CaseProcessWorkflow(ctx workflow.Context, input CaseProcessInput) (cases.ProcessResult, error) {
	status := CaseProcessStatus{
		CaseID:      input.CaseID,
		CurrentStep: "init",
		Status:      "processing",
		Steps:       map[string]string{},
	}
	if err := workflow.SetQueryHandler(ctx, QueryGetCaseStatus, func() (CaseProcessStatus, error) {
		return status, nil
	}); err != nil {
		return cases.ProcessResult{}, err
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	status.CurrentStep = "claim"
	status.Steps[status.CurrentStep] = "processing"
	var claimOut activities.ClaimCaseOutput
	if err := workflow.ExecuteActivity(ctx, "ClaimCaseActivity", activities.ClaimCaseInput{
		CaseID: input.CaseID,
		UserID: input.UserID,
		Role:   input.Role,
	}).Get(ctx, &claimOut); err != nil {
		status.Status = "rejected"
		status.Steps[status.CurrentStep] = "failed"
		return cases.ProcessResult{}, err
	}
	status.Steps[status.CurrentStep] = "done"
	start := workflow.Now(ctx)

	status.CurrentStep = "analyze"
	status.Steps[status.CurrentStep] = "processing"
	var analyzeOut activities.AnalyzeCaseOutput
	if err := workflow.ExecuteActivity(ctx, "AnalyzeCaseActivity", activities.AnalyzeCaseInput{
		Case:         claimOut.Case,
		Instructions: input.Instructions,
	}).Get(ctx, &analyzeOut); err != nil {
		return cases.ProcessResult{}, failCase(ctx, &status, input, claimOut, start, err)
	}
	status.Steps[status.CurrentStep] = "done"

	status.CurrentStep = "complete"
	status.Steps[status.CurrentStep] = "processing"
	var out cases.ProcessResult
	if err := workflow.ExecuteActivity(ctx, "CompleteCaseActivity", activities.CompleteCaseInput{
		Case:      claimOut.Case,
		UserID:    input.UserID,
		Analysis:  analyzeOut.Analysis,
		ElapsedMS: workflow.Now(ctx).Sub(start).Milliseconds(),
	}).Get(ctx, &out); err != nil {
		return cases.ProcessResult{}, failCase(ctx, &status, input, claimOut, start, err)
	}
	status.Steps[status.CurrentStep] = "done"
	status.CurrentStep = "done"
	status.Status = "completed"
	return out, nil
}

// failCase records the failure on the case and returns cause.
func failCase(ctx workflow.Context, status *CaseProcessStatus, input CaseProcessInput, claimOut activities.ClaimCaseOutput, start time.Time, cause error) error {
	status.Steps[status.CurrentStep] = "failed"
	status.Status = "failed"
	status.FailReason = errorMessage(cause)
	if err := workflow.ExecuteActivity(ctx, "FailCaseActivity", activities.FailCaseInput{
		Case:         claimOut.Case,
		UserID:       input.UserID,
		ErrorMessage: status.FailReason,
		ElapsedMS:    workflow.Now(ctx).Sub(start).Milliseconds(),
	}).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Error("recording case failure", "case_id", input.CaseID, "error", err)
	}
	return cause
}

func errorMessage(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return err.Error()
}
