package models

import "time"

type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusProcessing CaseStatus = "processing"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusFailed     CaseStatus = "failed"
)

// Terminal reports whether no further transition is allowed out of s.
func (s CaseStatus) Terminal() bool {
	return s == CaseStatusCompleted || s == CaseStatusFailed
}

type Case struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      CaseStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Attachment struct {
	ID          string    `json:"id"`
	CaseID      string    `json:"case_id"`
	Filename    string    `json:"filename"`
	URL         string    `json:"file_url"`
	StorageKey  string    `json:"storage_key,omitempty"`
	SignedURL   string    `json:"signed_url,omitempty"`
	ContentType string    `json:"content_type"`
	FileSize    int64     `json:"file_size"`
	CreatedAt   time.Time `json:"created_at"`
}

type AIResponse struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"case_id"`
	ResponseText     string    `json:"response_text"`
	ModelUsed        string    `json:"model_used"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	Confidence       float64   `json:"confidence_score"`
	CreatedAt        time.Time `json:"created_at"`
}

type LogStatus string

const (
	LogStatusProcessing LogStatus = "processing"
	LogStatusCompleted  LogStatus = "completed"
	LogStatusFailed     LogStatus = "failed"
)

type ProcessingLog struct {
	ID               string    `json:"id"`
	CaseID           string    `json:"case_id"`
	UserID           string    `json:"user_id"`
	Status           LogStatus `json:"status"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	AIResponse       string    `json:"ai_response,omitempty"`
	ModelUsed        string    `json:"model_used,omitempty"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CaseDetail is a case joined with its attachments and responses, newest response first.
type CaseDetail struct {
	Case
	Attachments []Attachment `json:"attachments"`
	Responses   []AIResponse `json:"ai_responses"`
}

type CaseSummary struct {
	Case
	AttachmentCount int `json:"attachment_count"`
	ResponseCount   int `json:"response_count"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type UserApproval struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"full_name"`
	Status      ApprovalStatus `json:"status"`
	ApprovedBy  string         `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time     `json:"approved_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type Profile struct {
	UserID         string         `json:"user_id"`
	Email          string         `json:"email"`
	DisplayName    string         `json:"full_name"`
	Role           Role           `json:"role"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is the authenticated caller of an operation.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
