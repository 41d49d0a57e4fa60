package activities

import (
	"iara/internal/models"
	"iara/internal/providers"
)

// Application error types carried across the Temporal boundary.
const (
	ErrTypeValidation = "Validation"
	ErrTypeNotFound   = "NotFound"
	ErrTypeConflict   = "Conflict"
	ErrTypeForbidden  = "Forbidden"
	ErrTypeUpstream   = "UpstreamProvider"
)

type ClaimCaseInput struct {
	CaseID string      `json:"case_id"`
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

type ClaimCaseOutput struct {
	Case models.Case `json:"case"`
}

type AnalyzeCaseInput struct {
	Case         models.Case `json:"case"`
	Instructions string      `json:"instructions,omitempty"`
}

type AnalyzeCaseOutput struct {
	Analysis providers.Analysis `json:"analysis"`
}

type CompleteCaseInput struct {
	Case      models.Case        `json:"case"`
	UserID    string             `json:"user_id"`
	Analysis  providers.Analysis `json:"analysis"`
	ElapsedMS int64              `json:"elapsed_ms"`
}

type FailCaseInput struct {
	Case         models.Case `json:"case"`
	UserID       string      `json:"user_id"`
	ErrorMessage string      `json:"error_message"`
	ElapsedMS    int64       `json:"elapsed_ms"`
}
