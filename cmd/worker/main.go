package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"iara/internal/activities"
	"iara/internal/cases"
	"iara/internal/config"
	"iara/internal/notify"
	"iara/internal/objects"
	"iara/internal/providers"
	"iara/internal/storage"
	"iara/internal/workflows"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	var mailSrv *asynq.Server
	var mailMux *asynq.ServeMux
	if cfg.RedisAddr != "" {
		mailSrv = asynq.NewServer(
			asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
			asynq.Config{Concurrency: 4},
		)
		mailMux = notify.NewProcessor(notify.NewSender(cfg.MailAPIURL, cfg.MailAPIKey, cfg.MailFrom)).Handler()
	}

	if cfg.ProcessingMode != config.ProcessingTemporal {
		if mailSrv == nil {
			log.Fatal("nothing to run: set IARA_REDIS_ADDR or IARA_PROCESSING_MODE=temporal")
		}
		log.Printf("iara mail worker consuming redis=%s processing=%s", cfg.RedisAddr, cfg.ProcessingMode)
		if err := mailSrv.Run(mailMux); err != nil {
			log.Fatal(err)
		}
		return
	}
	if mailSrv != nil {
		if err := mailSrv.Start(mailMux); err != nil {
			log.Fatal(err)
		}
		defer mailSrv.Shutdown()
		log.Printf("iara mail worker consuming redis=%s", cfg.RedisAddr)
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	pm, err := providers.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}
	opts := cases.Options{MaxAttachmentBytes: cfg.MaxAttachmentBytes}
	if cfg.StorageEndpoint != "" {
		store, err := objects.NewMinioStore(cfg)
		if err != nil {
			log.Fatal(err)
		}
		opts.Objects = store
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, activities.New(cases.NewService(db, pm.Analyzer(), opts)))

	log.Printf("iara worker listening on %s queue=%s ai_chain=%q", cfg.TemporalAddress, cfg.TemporalTaskQueue, pm.Analyzer().Strategies())
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal(err)
	}
}
