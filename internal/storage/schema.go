package storage

import (
	"context"
	"fmt"
	"strings"
)

// EnsureSchema creates the tables if they are missing. Ids are generated by the
// application and stored as text on both backends.
func (d *DB) EnsureSchema(ctx context.Context) error {
	ts, num, dbl := "TIMESTAMPTZ", "BIGINT", "DOUBLE PRECISION"
	if d.dialect == DialectSQLite {
		ts, num, dbl = "DATETIME", "INTEGER", "REAL"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','admin')),
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS user_approvals (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL DEFAULT '',
	full_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','approved','rejected')),
	approved_by TEXT,
	approved_at {ts},
	created_at {ts} NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS cases (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','processing','completed','failed')),
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_cases_user_created ON cases(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS attachments (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	filename TEXT NOT NULL,
	file_url TEXT NOT NULL,
	storage_key TEXT,
	content_type TEXT NOT NULL,
	file_size {num} NOT NULL,
	created_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_attachments_case ON attachments(case_id)`,
		`CREATE TABLE IF NOT EXISTS ai_responses (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	response_text TEXT NOT NULL,
	model_used TEXT NOT NULL,
	processing_time_ms {num} NOT NULL DEFAULT 0,
	confidence_score {dbl} NOT NULL DEFAULT 0,
	created_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_responses_case ON ai_responses(case_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS ai_processing_logs (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL REFERENCES cases(id) ON DELETE CASCADE,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('processing','completed','failed')),
	error_code TEXT,
	error_message TEXT,
	ai_response TEXT,
	model_used TEXT,
	processing_time_ms {num} NOT NULL DEFAULT 0,
	created_at {ts} NOT NULL,
	updated_at {ts} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_logs_case ON ai_processing_logs(case_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS system_settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at {ts} NOT NULL
)`,
	}
	r := strings.NewReplacer("{ts}", ts, "{num}", num, "{dbl}", dbl)
	q := d.q()
	for _, stmt := range stmts {
		if _, err := q.Exec(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
