package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"iara/internal/activities"
	"iara/internal/cases"
	"iara/internal/models"
)

// Runner processes a case through CaseProcessWorkflow and waits for the result, so
// callers see the same contract as cases.Service.ProcessCase.
type Runner struct {
	client    tclient.Client
	taskQueue string
}

func NewRunner(c tclient.Client, taskQueue string) *Runner {
	return &Runner{client: c, taskQueue: taskQueue}
}

func WorkflowID(caseID string) string {
	return "case-process-" + caseID
}

func (r *Runner) ProcessCase(ctx context.Context, p models.Principal, caseID, instructions string) (cases.ProcessResult, error) {
	opts := tclient.StartWorkflowOptions{
		ID:                                       WorkflowID(caseID),
		TaskQueue:                                r.taskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}
	run, err := r.client.ExecuteWorkflow(ctx, opts, CaseProcessWorkflow, CaseProcessInput{
		CaseID:       caseID,
		UserID:       p.UserID,
		Role:         p.Role,
		Instructions: instructions,
	})
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			return cases.ProcessResult{}, fmt.Errorf("%w: case %s is already being processed", cases.ErrConflict, caseID)
		}
		return cases.ProcessResult{}, fmt.Errorf("start case workflow: %w", err)
	}
	var out cases.ProcessResult
	if err := run.Get(ctx, &out); err != nil {
		return cases.ProcessResult{}, fromWorkflowError(err)
	}
	return out, nil
}

// fromWorkflowError maps activity application errors back onto the controller's kinds.
func fromWorkflowError(err error) error {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return err
	}
	var kind error
	switch appErr.Type() {
	case activities.ErrTypeValidation:
		kind = cases.ErrValidation
	case activities.ErrTypeNotFound:
		kind = cases.ErrNotFound
	case activities.ErrTypeConflict:
		kind = cases.ErrConflict
	case activities.ErrTypeForbidden:
		kind = cases.ErrForbidden
	case activities.ErrTypeUpstream:
		kind = cases.ErrUpstreamProvider
	default:
		return err
	}
	return fmt.Errorf("%w: %s", kind, strings.TrimPrefix(appErr.Error(), kind.Error()+": "))
}
