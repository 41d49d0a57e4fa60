package main

import (
	"context"
	"time"

	"github.com/hibiken/asynq"

	"iara/internal/approvals"
	"iara/internal/cases"
	"iara/internal/config"
	"iara/internal/identity"
	"iara/internal/models"
	"iara/internal/notify"
	"iara/internal/providers"
	"iara/internal/storage"
)

// cliEnv holds the services the commands use. Processing always runs inline here.
type cliEnv struct {
	cfg       config.Config
	db        *storage.DB
	providers *providers.Manager
	cases     *cases.Service
	approvals *approvals.Service
	closers   []func()
}

func openEnv(ctx context.Context) (*cliEnv, error) {
	cfg := config.Load()
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(dbCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	env := &cliEnv{cfg: cfg, db: db, closers: []func(){db.Close}}
	if err := db.EnsureSchema(dbCtx); err != nil {
		env.Close()
		return nil, err
	}
	pm, err := providers.NewManager(cfg)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.providers = pm
	env.cases = cases.NewService(db, pm.Analyzer(), cases.Options{MaxAttachmentBytes: cfg.MaxAttachmentBytes})

	var n notify.Notifier = notify.LogNotifier{}
	if cfg.RedisAddr != "" {
		qc := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		env.closers = append(env.closers, func() { _ = qc.Close() })
		n = notify.NewQueueNotifier(qc)
	}
	env.approvals = approvals.NewService(db, approvals.Options{
		Identity:   identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey),
		Notifier:   n,
		AdminEmail: cfg.AdminEmail,
		AppURL:     cfg.PublicAppURL,
	})
	return env, nil
}

func (e *cliEnv) admin() models.Principal {
	return models.Principal{UserID: actorID, Role: models.RoleAdmin}
}

func (e *cliEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}
