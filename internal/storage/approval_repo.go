package storage

import (
	"context"
	"fmt"
	"time"

	"iara/internal/models"
)

type ApprovalRepo struct {
	db *DB
}

func NewApprovalRepo(db *DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

// CreatePending inserts a pending approval unless the user already has one.
// It reports whether a row was created.
func (r *ApprovalRepo) CreatePending(ctx context.Context, a models.UserApproval) (bool, error) {
	n, err := r.db.q().Exec(ctx, `
INSERT INTO user_approvals (id, user_id, email, full_name, status, created_at)
VALUES ($1, $2, $3, $4, 'pending', $5)
ON CONFLICT (user_id) DO NOTHING`,
		a.ID, a.UserID, a.Email, a.DisplayName, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	return n == 1, nil
}

func (r *ApprovalRepo) GetByUser(ctx context.Context, userID string) (models.UserApproval, error) {
	row := r.db.q().QueryRow(ctx, `
SELECT id, user_id, email, full_name, status, COALESCE(approved_by,''), approved_at, created_at
FROM user_approvals
WHERE user_id=$1`, userID)
	a, err := scanApproval(row)
	if err != nil {
		return models.UserApproval{}, fmt.Errorf("get approval: %w", err)
	}
	return a, nil
}

// Decide records the admin decision. Only a pending approval can be decided.
func (r *ApprovalRepo) Decide(ctx context.Context, userID string, status models.ApprovalStatus, adminID string, at time.Time) error {
	n, err := r.db.q().Exec(ctx, `
UPDATE user_approvals SET status=$2, approved_by=$3, approved_at=$4
WHERE user_id=$1 AND status='pending'`, userID, string(status), adminID, at)
	if err != nil {
		return fmt.Errorf("decide approval: %w", err)
	}
	if n == 1 {
		return nil
	}
	cur, err := r.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	return fmt.Errorf("approval for %s already %s: %w", userID, cur.Status, ErrConflict)
}

// List returns approvals newest first, optionally filtered by status.
func (r *ApprovalRepo) List(ctx context.Context, status string) ([]models.UserApproval, error) {
	rows, err := r.db.q().Query(ctx, `
SELECT id, user_id, email, full_name, status, COALESCE(approved_by,''), approved_at, created_at
FROM user_approvals
WHERE $1 = '' OR status = $1
ORDER BY created_at DESC, id DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	out := make([]models.UserApproval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}
	return out, nil
}

func scanApproval(row Row) (models.UserApproval, error) {
	var a models.UserApproval
	var status string
	var approvedAt *time.Time
	if err := row.Scan(&a.ID, &a.UserID, &a.Email, &a.DisplayName, &status, &a.ApprovedBy, &approvedAt, &a.CreatedAt); err != nil {
		return models.UserApproval{}, err
	}
	a.Status = models.ApprovalStatus(status)
	a.ApprovedAt = approvedAt
	return a, nil
}
