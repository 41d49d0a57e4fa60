package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"iara/internal/app"
	"iara/internal/config"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	log.Printf("iara api listening on %s db=%s processing=%s ai_chain=%q",
		cfg.APIAddr, a.DB.Dialect(), cfg.ProcessingMode, a.Providers.Analyzer().Strategies())
	if err := http.ListenAndServe(cfg.APIAddr, a.Server().Routes()); err != nil {
		log.Fatal(err)
	}
}
