package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"videojobs/internal/infra"
	"videojobs/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var keyFlag, baseURLFlag string
	flag.StringVar(&keyFlag, "key", "", "inference API key (falls back to INFERENCE_API_KEY)")
	flag.StringVar(&baseURLFlag, "base-url", "", "inference endpoint the key belongs to (falls back to INFERENCE_BASE_URL)")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("INFERENCE_API_KEY"))
	}
	if key == "" {
		exitWithError(fmt.Errorf("inference API key is required via -key or INFERENCE_API_KEY"))
	}
	baseURL := strings.TrimSpace(baseURLFlag)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv("INFERENCE_BASE_URL"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}
	cfg := &infra.Config{AppEnv: os.Getenv("APP_ENV"), DatabaseURL: dbURL}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		exitWithError(err)
	}
	defer pool.Close()

	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "inferencekey").Logger()
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))
	if err := store.SetInferenceAPIKey(ctx, key, baseURL); err != nil {
		exitWithError(fmt.Errorf("store inference api key: %w", err))
	}
	fmt.Println("inference API key stored")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
