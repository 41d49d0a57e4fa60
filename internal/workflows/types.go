package workflows

import "iara/internal/models"

type CaseProcessInput struct {
	CaseID       string      `json:"case_id"`
	UserID       string      `json:"user_id"`
	Role         models.Role `json:"role"`
	Instructions string      `json:"instructions,omitempty"`
}

// CaseProcessStatus is returned by the GetCaseStatus query.
type CaseProcessStatus struct {
	CaseID      string            `json:"case_id"`
	CurrentStep string            `json:"current_step"`
	Status      string            `json:"status"`
	Steps       map[string]string `json:"steps"`
	FailReason  string            `json:"fail_reason,omitempty"`
}
