package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"iara/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewDB(ctx, "sqlite://"+filepath.Join(t.TempDir(), "iara.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))
	return db
}

func newCase(owner string, at time.Time) models.Case {
	return models.Case{
		ID:          uuid.NewString(),
		OwnerID:     owner,
		Title:       "Contract review",
		Description: "Review the supplier agreement for termination risk.",
		Status:      models.CaseStatusPending,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func newAttachment(name string, at time.Time) models.Attachment {
	return models.Attachment{
		ID:          uuid.NewString(),
		Filename:    name,
		URL:         "https://objects.local/case-attachments/" + name,
		StorageKey:  name,
		ContentType: "application/pdf",
		FileSize:    1024,
		CreatedAt:   at,
	}
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.EnsureSchema(context.Background()))
	require.Equal(t, DialectSQLite, db.Dialect())
}

func TestCreateCaseWithAttachments(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(openTestDB(t))
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := newCase("user-1", now)

	require.NoError(t, repo.CreateCase(ctx, c, []models.Attachment{
		newAttachment("a.pdf", now),
		newAttachment("b.pdf", now.Add(time.Millisecond)),
	}))

	got, err := repo.GetCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusPending, got.Status)
	require.Equal(t, "user-1", got.OwnerID)
	require.True(t, got.CreatedAt.Equal(now))

	atts, err := repo.ListAttachments(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	require.Equal(t, "a.pdf", atts[0].Filename)
	require.Equal(t, c.ID, atts[0].CaseID)
}

func TestCreateCaseRollsBackOnAttachmentFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(openTestDB(t))
	now := time.Now().UTC()
	c := newCase("user-1", now)
	dup := newAttachment("a.pdf", now)

	err := repo.CreateCase(ctx, c, []models.Attachment{dup, dup})
	require.Error(t, err)

	_, err = repo.GetCase(ctx, c.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestClaimForProcessingIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(openTestDB(t))
	now := time.Now().UTC()
	c := newCase("user-1", now)
	require.NoError(t, repo.CreateCase(ctx, c, nil))

	require.NoError(t, repo.ClaimForProcessing(ctx, c.ID, now))
	err := repo.ClaimForProcessing(ctx, c.ID, now)
	require.ErrorIs(t, err, ErrConflict)

	err = repo.ClaimForProcessing(ctx, uuid.NewString(), now)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteAndFailProcessing(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCaseRepo(db)
	logs := NewProcessingLogRepo(db)
	now := time.Now().UTC()

	done := newCase("user-1", now)
	require.NoError(t, repo.CreateCase(ctx, done, nil))
	require.NoError(t, repo.ClaimForProcessing(ctx, done.ID, now))
	require.NoError(t, repo.CompleteProcessing(ctx, models.AIResponse{
		ID: uuid.NewString(), CaseID: done.ID, ResponseText: `{"summary":"ok"}`,
		ModelUsed: "mock-ai", ProcessingTimeMS: 12, Confidence: 0.6, CreatedAt: now,
	}, models.ProcessingLog{
		ID: uuid.NewString(), CaseID: done.ID, UserID: "user-1", Status: models.LogStatusCompleted,
		ModelUsed: "mock-ai", ProcessingTimeMS: 12, CreatedAt: now, UpdatedAt: now,
	}))

	got, err := repo.GetCase(ctx, done.ID)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusCompleted, got.Status)
	resps, err := repo.ListResponses(ctx, done.ID)
	require.NoError(t, err)
	require.Len(t, resps, 1)
	require.Equal(t, 0.6, resps[0].Confidence)

	failed := newCase("user-1", now.Add(time.Second))
	require.NoError(t, repo.CreateCase(ctx, failed, nil))
	require.NoError(t, repo.ClaimForProcessing(ctx, failed.ID, now))
	require.NoError(t, repo.FailProcessing(ctx, models.ProcessingLog{
		ID: uuid.NewString(), CaseID: failed.ID, UserID: "user-1", Status: models.LogStatusFailed,
		ErrorCode: "transient", ErrorMessage: "upstream 503", CreatedAt: now, UpdatedAt: now,
	}))
	got, err = repo.GetCase(ctx, failed.ID)
	require.NoError(t, err)
	require.Equal(t, models.CaseStatusFailed, got.Status)

	// terminal cases cannot be finished twice
	err = repo.FailProcessing(ctx, models.ProcessingLog{
		ID: uuid.NewString(), CaseID: failed.ID, UserID: "user-1", Status: models.LogStatusFailed, CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, ErrConflict)

	rows, err := logs.List(ctx, LogFilter{Status: string(models.LogStatusFailed)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "transient", rows[0].ErrorCode)

	rows, err = logs.List(ctx, LogFilter{CaseID: done.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.LogStatusCompleted, rows[0].Status)
}

func TestListCaseSummariesScopesAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepo(openTestDB(t))
	now := time.Now().UTC()

	older := newCase("user-1", now)
	newer := newCase("user-1", now.Add(time.Minute))
	other := newCase("user-2", now)
	require.NoError(t, repo.CreateCase(ctx, older, []models.Attachment{newAttachment("a.pdf", now)}))
	require.NoError(t, repo.CreateCase(ctx, newer, nil))
	require.NoError(t, repo.CreateCase(ctx, other, nil))

	list, err := repo.ListCaseSummaries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, newer.ID, list[0].ID)
	require.Equal(t, 1, list[1].AttachmentCount)
	require.Equal(t, 0, list[1].ResponseCount)

	all, err := repo.ListCaseSummaries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestDeleteCaseCascades(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCaseRepo(db)
	now := time.Now().UTC()
	c := newCase("user-1", now)
	require.NoError(t, repo.CreateCase(ctx, c, []models.Attachment{newAttachment("a.pdf", now)}))
	require.NoError(t, repo.ClaimForProcessing(ctx, c.ID, now))
	require.NoError(t, repo.FailProcessing(ctx, models.ProcessingLog{
		ID: uuid.NewString(), CaseID: c.ID, UserID: "user-1", Status: models.LogStatusFailed, CreatedAt: now, UpdatedAt: now,
	}))

	keys, err := repo.DeleteCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"a.pdf"}, keys)

	atts, err := repo.ListAttachments(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, atts)
	logs, err := NewProcessingLogRepo(db).List(ctx, LogFilter{CaseID: c.ID})
	require.NoError(t, err)
	require.Empty(t, logs)

	_, err = repo.DeleteCase(ctx, c.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteCompletedCaseRemovesResponses(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCaseRepo(db)
	now := time.Now().UTC()
	c := newCase("user-1", now)
	require.NoError(t, repo.CreateCase(ctx, c, nil))
	require.NoError(t, repo.ClaimForProcessing(ctx, c.ID, now))
	require.NoError(t, repo.CompleteProcessing(ctx, models.AIResponse{
		ID: uuid.NewString(), CaseID: c.ID, ResponseText: `{"summary":"ok"}`,
		ModelUsed: "mock-ai", ProcessingTimeMS: 5, Confidence: 0.6, CreatedAt: now,
	}, models.ProcessingLog{
		ID: uuid.NewString(), CaseID: c.ID, UserID: "user-1", Status: models.LogStatusCompleted,
		ModelUsed: "mock-ai", ProcessingTimeMS: 5, CreatedAt: now, UpdatedAt: now,
	}))
	require.Equal(t, 1, countRows(t, db, "ai_responses", c.ID))

	_, err := repo.DeleteCase(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, 0, countRows(t, db, "ai_responses", c.ID))
	require.Equal(t, 0, countRows(t, db, "ai_processing_logs", c.ID))
}

func countRows(t *testing.T, db *DB, table, caseID string) int {
	t.Helper()
	var n int
	require.NoError(t, db.q().QueryRow(context.Background(), "SELECT COUNT(*) FROM "+table+" WHERE case_id=$1", caseID).Scan(&n))
	return n
}

func TestApprovalDecidedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewApprovalRepo(openTestDB(t))
	now := time.Now().UTC()

	created, err := repo.CreatePending(ctx, models.UserApproval{ID: uuid.NewString(), UserID: "u1", Email: "u1@example.com", CreatedAt: now})
	require.NoError(t, err)
	require.True(t, created)
	created, err = repo.CreatePending(ctx, models.UserApproval{ID: uuid.NewString(), UserID: "u1", CreatedAt: now})
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, repo.Decide(ctx, "u1", models.ApprovalApproved, "admin-1", now))
	err = repo.Decide(ctx, "u1", models.ApprovalRejected, "admin-1", now)
	require.ErrorIs(t, err, ErrConflict)

	got, err := repo.GetByUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.ApprovalApproved, got.Status)
	require.Equal(t, "admin-1", got.ApprovedBy)
	require.NotNil(t, got.ApprovedAt)

	err = repo.Decide(ctx, "missing", models.ApprovalApproved, "admin-1", now)
	require.ErrorIs(t, err, ErrNotFound)

	pending, err := repo.List(ctx, string(models.ApprovalPending))
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestProfilesAndSettings(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	profiles := NewProfileRepo(db)
	settings := NewSettingsRepo(db)
	now := time.Now().UTC()

	require.NoError(t, profiles.Upsert(ctx, models.Profile{UserID: "u1", Email: "u1@example.com", DisplayName: "Ada", CreatedAt: now}))
	require.NoError(t, profiles.SetRole(ctx, "u1", models.RoleAdmin, now))
	require.NoError(t, profiles.Upsert(ctx, models.Profile{UserID: "u1", CreatedAt: now}))

	p, err := profiles.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, p.Role)
	require.Equal(t, "Ada", p.DisplayName)
	require.ErrorIs(t, profiles.SetRole(ctx, "nobody", models.RoleUser, now), ErrNotFound)

	_, err = settings.Get(ctx, SettingDefaultPrompt)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, settings.Set(ctx, SettingDefaultPrompt, "first", now))
	require.NoError(t, settings.Set(ctx, SettingDefaultPrompt, "second", now))
	v, err := settings.Get(ctx, SettingDefaultPrompt)
	require.NoError(t, err)
	require.Equal(t, "second", v)
	all, err := settings.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}
