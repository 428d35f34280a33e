package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/shared/config"
	"festival/internal/shared/database"
	"festival/internal/tickets"
	"festival/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var (
		editionFlag string
		dateFrom    string
		rulesJSON   string
	)

	flagSet := pflag.NewFlagSet("phases", pflag.ContinueOnError)
	flagSet.StringVar(&editionFlag, "edition", "", "edition year or id (default: every edition)")
	flagSet.StringVar(&dateFrom, "date-from", "", "reference date YYYY-MM-DD (default: today)")
	flagSet.StringVar(&rulesJSON, "rules", "", `rule overrides, e.g. {"days_since_start":7,"remaining_pct":0.2}`)
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load()
	cfg := config.Load()
	appLogger := logger.GetDefault()

	db, err := database.InitDB(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	editionsRepo := editions.NewRepository(db.PostgreSQL)

	req := tickets.AdvancePhasesRequest{ReferenceDate: dateFrom}
	if editionFlag != "" {
		id, err := resolveEdition(ctx, editionsRepo, editionFlag)
		if err != nil {
			return err
		}
		req.EditionID = id
	}
	if rulesJSON != "" {
		var overrides struct {
			DaysSinceStart *int     `json:"days_since_start"`
			RemainingPct   *float64 `json:"remaining_pct"`
		}
		if err := json.Unmarshal([]byte(rulesJSON), &overrides); err != nil {
			return fmt.Errorf("parse --rules: %w", err)
		}
		req.DaysSinceStart = overrides.DaysSinceStart
		req.RemainingPct = overrides.RemainingPct
	}

	sink, err := notifications.NewSinkFromConfig(cfg.Notifications)
	if err != nil {
		appLogger.Warn("notification sink unavailable, logging events instead", slog.Any("error", err))
		sink = notifications.LogSink{}
	}
	dispatcher := notifications.NewDispatcher(sink, cfg.Notifications.BufferSize)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}
	defer func() {
		if err := dispatcher.Stop(); err != nil {
			appLogger.Error("failed to stop dispatcher", slog.Any("error", err))
		}
	}()

	svc := tickets.NewService(tickets.NewRepository(db.PostgreSQL), editionsRepo, tickets.OptionsFromConfig(cfg))
	svc.SetPublisher(dispatcher)

	result, err := svc.AdvancePhases(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// resolveEdition accepts either a four-digit year or an edition id
func resolveEdition(ctx context.Context, repo editions.Repository, value string) (string, error) {
	year, err := strconv.Atoi(value)
	if err != nil {
		return value, nil
	}
	edition, err := repo.GetEditionByYear(ctx, year)
	if err != nil {
		return "", fmt.Errorf("edition %d: %w", year, err)
	}
	return edition.ID.String(), nil
}
