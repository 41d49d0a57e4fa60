package approvals

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"iara/internal/models"
	"iara/internal/notify"
	"iara/internal/storage"
)

var (
	ErrForbidden     = errors.New("admin role required")
	ErrInvalidAction = errors.New("invalid approval action")
	ErrInvalidRole   = errors.New("invalid role")
)

const (
	ActionApprove = "approve"
	ActionReject  = "reject"
)

type identityUpdater interface {
	SetEmailConfirmed(ctx context.Context, userID string, confirmed bool) error
}

type Options struct {
	Identity   identityUpdater
	Notifier   notify.Notifier
	AdminEmail string
	AppURL     string
	Now        func() time.Time
}

type Service struct {
	approvals  *storage.ApprovalRepo
	profiles   *storage.ProfileRepo
	identity   identityUpdater
	notifier   notify.Notifier
	adminEmail string
	appURL     string
	now        func() time.Time
}

func NewService(db *storage.DB, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	n := opts.Notifier
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Service{
		approvals:  storage.NewApprovalRepo(db),
		profiles:   storage.NewProfileRepo(db),
		identity:   opts.Identity,
		notifier:   n,
		adminEmail: opts.AdminEmail,
		appURL:     strings.TrimRight(opts.AppURL, "/"),
		now:        now,
	}
}

// RequestApproval registers the caller's profile and opens a pending approval if
// none exists. It reports whether a new approval was created.
func (s *Service) RequestApproval(ctx context.Context, p models.Principal, displayName string) (models.UserApproval, bool, error) {
	if p.UserID == "" {
		return models.UserApproval{}, false, fmt.Errorf("request approval: missing user")
	}
	now := s.now()
	displayName = strings.TrimSpace(displayName)
	if err := s.profiles.Upsert(ctx, models.Profile{
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: displayName,
		Role:        models.RoleUser,
		CreatedAt:   now,
	}); err != nil {
		return models.UserApproval{}, false, err
	}
	created, err := s.approvals.CreatePending(ctx, models.UserApproval{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		Email:       p.Email,
		DisplayName: displayName,
		CreatedAt:   now,
	})
	if err != nil {
		return models.UserApproval{}, false, err
	}
	a, err := s.approvals.GetByUser(ctx, p.UserID)
	if err != nil {
		return models.UserApproval{}, false, err
	}
	if created {
		log.Printf("approval requested user=%s email=%s", p.UserID, p.Email)
		if s.adminEmail != "" {
			s.send(ctx, notify.Email{
				To:      s.adminEmail,
				Subject: "New IARA registration awaiting approval",
				Text: fmt.Sprintf("%s (%s) registered and is waiting for approval.\n\nReview pending users: %s/admin",
					nameOr(displayName, p.Email), p.Email, s.appURL),
			})
		}
	}
	return a, created, nil
}

// Decide approves or rejects a pending registration. A registration is decided once.
func (s *Service) Decide(ctx context.Context, admin models.Principal, userID, action string) (models.UserApproval, error) {
	if !admin.IsAdmin() {
		return models.UserApproval{}, ErrForbidden
	}
	var status models.ApprovalStatus
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionApprove:
		status = models.ApprovalApproved
	case ActionReject:
		status = models.ApprovalRejected
	default:
		return models.UserApproval{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	if strings.TrimSpace(userID) == "" {
		return models.UserApproval{}, fmt.Errorf("%w: userId is required", ErrInvalidAction)
	}
	if err := s.approvals.Decide(ctx, userID, status, admin.UserID, s.now()); err != nil {
		return models.UserApproval{}, err
	}
	a, err := s.approvals.GetByUser(ctx, userID)
	if err != nil {
		return models.UserApproval{}, err
	}
	log.Printf("approval decided user=%s status=%s by=%s", userID, status, admin.UserID)

	if status == models.ApprovalApproved && s.identity != nil {
		if err := s.identity.SetEmailConfirmed(ctx, userID, true); err != nil {
			log.Printf("identity confirm failed user=%s err=%v", userID, err)
		}
	}
	if a.Email != "" {
		s.send(ctx, decisionEmail(a, s.appURL))
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, admin models.Principal, status string) ([]models.UserApproval, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.approvals.List(ctx, strings.ToLower(strings.TrimSpace(status)))
}

func (s *Service) ListUsers(ctx context.Context, admin models.Principal) ([]models.Profile, error) {
	if !admin.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.profiles.List(ctx)
}

func (s *Service) SetRole(ctx context.Context, admin models.Principal, userID string, role models.Role) error {
	if !admin.IsAdmin() {
		return ErrForbidden
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.profiles.SetRole(ctx, userID, role, s.now()); err != nil {
		return err
	}
	log.Printf("role changed user=%s role=%s by=%s", userID, role, admin.UserID)
	return nil
}

func (s *Service) send(ctx context.Context, e notify.Email) {
	if err := s.notifier.Notify(ctx, e); err != nil {
		log.Printf("notify failed to=%s err=%v", e.To, err)
	}
}

func decisionEmail(a models.UserApproval, appURL string) notify.Email {
	if a.Status == models.ApprovalApproved {
		return notify.Email{
			To:      a.Email,
			Subject: "Your IARA account has been approved",
			Text:    fmt.Sprintf("Hello %s,\n\nYour account is approved. You can sign in at %s.", nameOr(a.DisplayName, a.Email), appURL),
		}
	}
	return notify.Email{
		To:      a.Email,
		Subject: "Your IARA registration was not approved",
		Text:    fmt.Sprintf("Hello %s,\n\nYour registration request was not approved.", nameOr(a.DisplayName, a.Email)),
	}
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
