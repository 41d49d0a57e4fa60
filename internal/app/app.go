// Package app wires configuration into the services shared by every entry point.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	tclient "go.temporal.io/sdk/client"

	"iara/internal/api"
	"iara/internal/approvals"
	"iara/internal/auth"
	"iara/internal/cases"
	"iara/internal/config"
	"iara/internal/extract"
	"iara/internal/identity"
	"iara/internal/notify"
	"iara/internal/objects"
	"iara/internal/providers"
	"iara/internal/storage"
	"iara/internal/workflows"
)

type App struct {
	Config    config.Config
	DB        *storage.DB
	Providers *providers.Manager
	Objects   *objects.MinioStore
	Cases     *cases.Service
	Approvals *approvals.Service
	Auth      *auth.Verifier
	Processor api.CaseProcessor

	closers []func()
}

// New opens the database, applies the schema and builds every service. Optional
// integrations (object storage, Redis, Temporal) degrade with a log line.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(dbCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	if err := db.EnsureSchema(dbCtx); err != nil {
		a.Close()
		return nil, err
	}

	pm, err := providers.NewManager(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Providers = pm
	for _, ref := range pm.Skipped() {
		log.Printf("ai provider skipped name=%s alias=%s reason=missing_key", ref.Name, ref.KeyAlias)
	}

	caseOpts := cases.Options{MaxAttachmentBytes: cfg.MaxAttachmentBytes}
	if cfg.StorageEndpoint != "" {
		store, err := objects.NewMinioStore(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := store.EnsureBucket(dbCtx); err != nil {
			log.Printf("attachment bucket check failed bucket=%s err=%v", cfg.StorageBucket, err)
		}
		a.Objects = store
		caseOpts.Objects = store
	}
	a.Cases = cases.NewService(db, pm.Analyzer(), caseOpts)

	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.RedisAddr != "" {
		qc := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		a.closers = append(a.closers, func() { _ = qc.Close() })
		notifier = notify.NewQueueNotifier(qc)
	}
	a.Approvals = approvals.NewService(db, approvals.Options{
		Identity:   identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey),
		Notifier:   notifier,
		AdminEmail: cfg.AdminEmail,
		AppURL:     cfg.PublicAppURL,
	})
	a.Auth = auth.NewVerifier(cfg.JWTSecret, cfg.DevBypassAuth, storage.NewProfileRepo(db))

	a.Processor = a.Cases
	if cfg.ProcessingMode == config.ProcessingTemporal {
		tc, err := tclient.Dial(tclient.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("dial temporal: %w", err)
		}
		a.closers = append(a.closers, tc.Close)
		a.Processor = workflows.NewRunner(tc, cfg.TemporalTaskQueue)
	}
	return a, nil
}

func (a *App) Server() *api.Server {
	d := api.Deps{
		Config:    a.Config,
		DB:        a.DB,
		Cases:     a.Cases,
		Processor: a.Processor,
		Approvals: a.Approvals,
		Analyzer:  a.Providers.Analyzer(),
		Prober:    a.Providers,
		Auth:      a.Auth,
		Extractor: extract.New(a.Config.MaxExtractBytes),
	}
	if a.Objects != nil {
		d.Objects = a.Objects
	}
	return api.NewServer(d)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
