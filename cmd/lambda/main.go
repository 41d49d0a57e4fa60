package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"iara/internal/app"
	"iara/internal/config"
	"iara/internal/lambdahttp"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("iara lambda ready db=%s processing=%s ai_chain=%q", a.DB.Dialect(), cfg.ProcessingMode, a.Providers.Analyzer().Strategies())
	lambda.Start(lambdahttp.Handler(a.Server().Routes()))
}
