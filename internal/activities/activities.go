package activities

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"iara/internal/cases"
	"iara/internal/models"
)

// Activities exposes the case controller steps to the worker.
type Activities struct {
	cases *cases.Service
}

func New(svc *cases.Service) *Activities {
	return &Activities{cases: svc}
}

func (a *Activities) ClaimCaseActivity(ctx context.Context, in ClaimCaseInput) (ClaimCaseOutput, error) {
	p := models.Principal{UserID: in.UserID, Role: in.Role}
	c, err := a.cases.Claim(ctx, p, in.CaseID)
	if err != nil {
		return ClaimCaseOutput{}, applicationError(err)
	}
	return ClaimCaseOutput{Case: c}, nil
}

func (a *Activities) AnalyzeCaseActivity(ctx context.Context, in AnalyzeCaseInput) (AnalyzeCaseOutput, error) {
	res, err := a.cases.Analyze(ctx, in.Case, in.Instructions)
	if err != nil {
		return AnalyzeCaseOutput{}, applicationError(err)
	}
	return AnalyzeCaseOutput{Analysis: res}, nil
}

func (a *Activities) CompleteCaseActivity(ctx context.Context, in CompleteCaseInput) (cases.ProcessResult, error) {
	res, err := a.cases.Complete(ctx, in.Case, in.UserID, in.Analysis, time.Duration(in.ElapsedMS)*time.Millisecond)
	if err != nil {
		return cases.ProcessResult{}, applicationError(err)
	}
	return res, nil
}

func (a *Activities) FailCaseActivity(ctx context.Context, in FailCaseInput) error {
	err := a.cases.Fail(ctx, in.Case, in.UserID, errors.New(in.ErrorMessage), time.Duration(in.ElapsedMS)*time.Millisecond)
	if err != nil {
		return applicationError(err)
	}
	return nil
}

// applicationError marks controller errors non-retryable and tags them with a type
// the runner can map back.
func applicationError(err error) error {
	var typ string
	switch {
	case errors.Is(err, cases.ErrValidation):
		typ = ErrTypeValidation
	case errors.Is(err, cases.ErrNotFound):
		typ = ErrTypeNotFound
	case errors.Is(err, cases.ErrConflict):
		typ = ErrTypeConflict
	case errors.Is(err, cases.ErrForbidden):
		typ = ErrTypeForbidden
	case errors.Is(err, cases.ErrUpstreamProvider):
		typ = ErrTypeUpstream
	default:
		return err
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), typ, nil)
}
