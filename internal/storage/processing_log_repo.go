package storage

import (
	"context"
	"fmt"

	"iara/internal/models"
)

type ProcessingLogRepo struct {
	db *DB
}

func NewProcessingLogRepo(db *DB) *ProcessingLogRepo {
	return &ProcessingLogRepo{db: db}
}

func (r *ProcessingLogRepo) Insert(ctx context.Context, log models.ProcessingLog) error {
	return insertLog(ctx, r.db.q(), log)
}

func insertLog(ctx context.Context, q Querier, log models.ProcessingLog) error {
	_, err := q.Exec(ctx, `
INSERT INTO ai_processing_logs (id, case_id, user_id, status, error_code, error_message, ai_response, model_used, processing_time_ms, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5,''), NULLIF($6,''), NULLIF($7,''), NULLIF($8,''), $9, $10, $11)`,
		log.ID, log.CaseID, log.UserID, string(log.Status), log.ErrorCode, log.ErrorMessage, log.AIResponse, log.ModelUsed,
		log.ProcessingTimeMS, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert processing log: %w", err)
	}
	return nil
}

type LogFilter struct {
	CaseID string
	Status string
	Limit  int
}

// List returns log rows newest first. Limit defaults to 100 and is capped at 1000.
func (r *ProcessingLogRepo) List(ctx context.Context, f LogFilter) ([]models.ProcessingLog, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	rows, err := r.db.q().Query(ctx, `
SELECT id, case_id, user_id, status, COALESCE(error_code,''), COALESCE(error_message,''),
       COALESCE(ai_response,''), COALESCE(model_used,''), processing_time_ms, created_at, updated_at
FROM ai_processing_logs
WHERE ($1 = '' OR case_id = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3`, f.CaseID, f.Status, limit)
	if err != nil {
		return nil, fmt.Errorf("list processing logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.ProcessingLog, 0)
	for rows.Next() {
		var l models.ProcessingLog
		var status string
		if err := rows.Scan(&l.ID, &l.CaseID, &l.UserID, &status, &l.ErrorCode, &l.ErrorMessage, &l.AIResponse, &l.ModelUsed,
			&l.ProcessingTimeMS, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan processing log: %w", err)
		}
		l.Status = models.LogStatus(status)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processing logs: %w", err)
	}
	return out, nil
}
