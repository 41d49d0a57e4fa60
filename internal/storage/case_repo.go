package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iara/internal/models"
)

type CaseRepo struct {
	db *DB
}

func NewCaseRepo(db *DB) *CaseRepo {
	return &CaseRepo{db: db}
}

// CreateCase inserts the case and all of its attachments atomically.
func (r *CaseRepo) CreateCase(ctx context.Context, c models.Case, atts []models.Attachment) error {
	return r.db.WithTx(ctx, func(q Querier) error {
		_, err := q.Exec(ctx, `
INSERT INTO cases (id, user_id, title, description, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			c.ID, c.OwnerID, c.Title, c.Description, string(c.Status), c.CreatedAt, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert case: %w", err)
		}
		for _, a := range atts {
			_, err := q.Exec(ctx, `
INSERT INTO attachments (id, case_id, filename, file_url, storage_key, content_type, file_size, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7, $8)`,
				a.ID, c.ID, a.Filename, a.URL, a.StorageKey, a.ContentType, a.FileSize, a.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert attachment %s: %w", a.Filename, err)
			}
		}
		return nil
	})
}

func (r *CaseRepo) GetCase(ctx context.Context, id string) (models.Case, error) {
	var c models.Case
	var status string
	err := r.db.q().QueryRow(ctx, `
SELECT id, user_id, title, description, status, created_at, updated_at
FROM cases
WHERE id=$1`, id).
		Scan(&c.ID, &c.OwnerID, &c.Title, &c.Description, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return models.Case{}, fmt.Errorf("get case: %w", err)
	}
	c.Status = models.CaseStatus(status)
	return c, nil
}

func (r *CaseRepo) ListAttachments(ctx context.Context, caseID string) ([]models.Attachment, error) {
	rows, err := r.db.q().Query(ctx, `
SELECT id, case_id, filename, file_url, COALESCE(storage_key,''), content_type, file_size, created_at
FROM attachments
WHERE case_id=$1
ORDER BY created_at ASC, id ASC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := make([]models.Attachment, 0)
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.CaseID, &a.Filename, &a.URL, &a.StorageKey, &a.ContentType, &a.FileSize, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return out, nil
}

// ListResponses returns the case's AI responses, newest first.
func (r *CaseRepo) ListResponses(ctx context.Context, caseID string) ([]models.AIResponse, error) {
	rows, err := r.db.q().Query(ctx, `
SELECT id, case_id, response_text, model_used, processing_time_ms, confidence_score, created_at
FROM ai_responses
WHERE case_id=$1
ORDER BY created_at DESC, id DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	out := make([]models.AIResponse, 0)
	for rows.Next() {
		var a models.AIResponse
		if err := rows.Scan(&a.ID, &a.CaseID, &a.ResponseText, &a.ModelUsed, &a.ProcessingTimeMS, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return out, nil
}

// ListCaseSummaries lists cases newest first with attachment and response counts.
// An empty ownerID lists every case.
func (r *CaseRepo) ListCaseSummaries(ctx context.Context, ownerID string) ([]models.CaseSummary, error) {
	rows, err := r.db.q().Query(ctx, `
SELECT c.id, c.user_id, c.title, c.description, c.status, c.created_at, c.updated_at,
       (SELECT COUNT(*) FROM attachments a WHERE a.case_id = c.id),
       (SELECT COUNT(*) FROM ai_responses r WHERE r.case_id = c.id)
FROM cases c
WHERE $1 = '' OR c.user_id = $1
ORDER BY c.created_at DESC, c.id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	out := make([]models.CaseSummary, 0)
	for rows.Next() {
		var s models.CaseSummary
		var status string
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Description, &status, &s.CreatedAt, &s.UpdatedAt, &s.AttachmentCount, &s.ResponseCount); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		s.Status = models.CaseStatus(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

// ClaimForProcessing moves a pending case to processing. A case in any other
// state yields ErrConflict; a missing case yields ErrNotFound.
func (r *CaseRepo) ClaimForProcessing(ctx context.Context, id string, now time.Time) error {
	n, err := r.db.q().Exec(ctx, `
UPDATE cases SET status='processing', updated_at=$2
WHERE id=$1 AND status='pending'`, id, now)
	if err != nil {
		return fmt.Errorf("claim case: %w", err)
	}
	if n == 1 {
		return nil
	}
	c, err := r.GetCase(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("claim case %s in status %s: %w", id, c.Status, ErrConflict)
}

// CompleteProcessing stores the response and its log row and marks the case completed.
func (r *CaseRepo) CompleteProcessing(ctx context.Context, resp models.AIResponse, log models.ProcessingLog) error {
	return r.db.WithTx(ctx, func(q Querier) error {
		if err := finishCase(ctx, q, resp.CaseID, models.CaseStatusCompleted, log.UpdatedAt); err != nil {
			return err
		}
		_, err := q.Exec(ctx, `
INSERT INTO ai_responses (id, case_id, response_text, model_used, processing_time_ms, confidence_score, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			resp.ID, resp.CaseID, resp.ResponseText, resp.ModelUsed, resp.ProcessingTimeMS, resp.Confidence, resp.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert ai response: %w", err)
		}
		return insertLog(ctx, q, log)
	})
}

// FailProcessing marks the case failed and appends the failure log row.
func (r *CaseRepo) FailProcessing(ctx context.Context, log models.ProcessingLog) error {
	return r.db.WithTx(ctx, func(q Querier) error {
		if err := finishCase(ctx, q, log.CaseID, models.CaseStatusFailed, log.UpdatedAt); err != nil {
			return err
		}
		return insertLog(ctx, q, log)
	})
}

func finishCase(ctx context.Context, q Querier, caseID string, status models.CaseStatus, now time.Time) error {
	n, err := q.Exec(ctx, `
UPDATE cases SET status=$2, updated_at=$3
WHERE id=$1 AND status='processing'`, caseID, string(status), now)
	if err != nil {
		return fmt.Errorf("finish case: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("finish case %s as %s: %w", caseID, status, ErrConflict)
	}
	return nil
}

// DeleteCase removes the case; attachments, responses and logs go with it through
// the foreign keys. The returned keys name stored objects that may now be removed.
func (r *CaseRepo) DeleteCase(ctx context.Context, id string) ([]string, error) {
	var keys []string
	err := r.db.WithTx(ctx, func(q Querier) error {
		rows, err := q.Query(ctx, `SELECT COALESCE(storage_key,'') FROM attachments WHERE case_id=$1`, id)
		if err != nil {
			return fmt.Errorf("list attachment keys: %w", err)
		}
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				rows.Close()
				return fmt.Errorf("scan attachment key: %w", err)
			}
			if k != "" {
				keys = append(keys, k)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate attachment keys: %w", err)
		}

		n, err := q.Exec(ctx, `DELETE FROM cases WHERE id=$1`, id)
		if err != nil {
			return fmt.Errorf("delete case: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete case %s: %w", id, ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
