package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"videojobs/internal/adapter/repo"
	"videojobs/internal/config"
	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

func main() {
	_ = godotenv.Load()

	var (
		accountFlag string
		tierFlag    string
		resetFlag   bool
		allFlag     bool
	)
	flag.StringVar(&accountFlag, "account", "", "account ID to update")
	flag.StringVar(&tierFlag, "tier", "", "tier to assign (free, pro, premium)")
	flag.BoolVar(&resetFlag, "reset-month", false, "zero the monthly video counter")
	flag.BoolVar(&allFlag, "all", false, "with -reset-month, reset every account (billing rollover)")
	flag.Parse()

	account := strings.TrimSpace(accountFlag)
	tier := domain.Tier(strings.ToLower(strings.TrimSpace(tierFlag)))
	if account == "" && !(resetFlag && allFlag) {
		exitWithError(errors.New("-account is required unless -reset-month -all is given"))
	}
	if tier != "" {
		switch tier {
		case domain.TierFree, domain.TierPro, domain.TierPremium:
		default:
			exitWithError(fmt.Errorf("unsupported tier %q", tier))
		}
		if account == "" {
			exitWithError(errors.New("-tier needs -account"))
		}
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}
	cfg := &infra.Config{
		AppEnv:      os.Getenv("APP_ENV"),
		DatabaseURL: dbURL,
		DefaultTier: strings.TrimSpace(os.Getenv("DEFAULT_TIER")),
	}
	if cfg.DefaultTier == "" {
		cfg.DefaultTier = string(domain.TierFree)
	}
	settings, err := config.Load(os.Getenv("PIPELINE_CONFIG"))
	if err != nil {
		exitWithError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		exitWithError(err)
	}
	defer pool.Close()

	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "accountplan").Logger()
	accounts := repo.NewAccountRepository(infra.NewSQLRunner(pool, logger), domain.Tier(cfg.DefaultTier))

	if tier != "" {
		if err := accounts.SetTier(ctx, account, tier); err != nil {
			exitWithError(fmt.Errorf("set tier: %w", err))
		}
		fmt.Printf("account %s moved to tier %s\n", account, tier)
	}
	if resetFlag {
		target := account
		if allFlag {
			target = ""
		}
		n, err := accounts.ResetMonth(ctx, target)
		if err != nil {
			exitWithError(fmt.Errorf("reset month: %w", err))
		}
		fmt.Printf("monthly counter reset for %d account(s)\n", n)
	}
	if account == "" {
		return
	}

	quota, err := accounts.GetQuota(ctx, account)
	if err != nil {
		exitWithError(fmt.Errorf("load quota: %w", err))
	}
	quota.Limits = settings.Tiers[quota.Tier]
	out, _ := json.MarshalIndent(quota, "", "  ")
	fmt.Println(string(out))
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
