package storage

import (
	"context"
	"fmt"
	"time"

	"iara/internal/models"
)

type ProfileRepo struct {
	db *DB
}

func NewProfileRepo(db *DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Upsert creates the profile or refreshes its email and name. The role of an
// existing profile is never touched here.
func (r *ProfileRepo) Upsert(ctx context.Context, p models.Profile) error {
	role := p.Role
	if !role.Valid() {
		role = models.RoleUser
	}
	_, err := r.db.q().Exec(ctx, `
INSERT INTO profiles (user_id, email, full_name, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (user_id)
DO UPDATE SET
  email = CASE WHEN excluded.email = '' THEN profiles.email ELSE excluded.email END,
  full_name = CASE WHEN excluded.full_name = '' THEN profiles.full_name ELSE excluded.full_name END,
  updated_at = excluded.updated_at`,
		p.UserID, p.Email, p.DisplayName, string(role), p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) Get(ctx context.Context, userID string) (models.Profile, error) {
	row := r.db.q().QueryRow(ctx, `
SELECT p.user_id, p.email, p.full_name, p.role, COALESCE(a.status,''), p.created_at, p.updated_at
FROM profiles p
LEFT JOIN user_approvals a ON a.user_id = p.user_id
WHERE p.user_id=$1`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) SetRole(ctx context.Context, userID string, role models.Role, at time.Time) error {
	n, err := r.db.q().Exec(ctx, `UPDATE profiles SET role=$2, updated_at=$3 WHERE user_id=$1`, userID, string(role), at)
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set role for %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (r *ProfileRepo) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := r.db.q().Query(ctx, `
SELECT p.user_id, p.email, p.full_name, p.role, COALESCE(a.status,''), p.created_at, p.updated_at
FROM profiles p
LEFT JOIN user_approvals a ON a.user_id = p.user_id
ORDER BY p.created_at DESC, p.user_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}

func scanProfile(row Row) (models.Profile, error) {
	var p models.Profile
	var role, approval string
	if err := row.Scan(&p.UserID, &p.Email, &p.DisplayName, &role, &approval, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Profile{}, err
	}
	p.Role = models.Role(role)
	p.ApprovalStatus = models.ApprovalStatus(approval)
	return p, nil
}
