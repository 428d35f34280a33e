package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"festival/internal/editions"
	"festival/internal/notifications"
	"festival/internal/schedule"
	"festival/internal/shared/config"
	"festival/internal/shared/database"
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
		fromYear  int
		toYear    int
		shiftDays int
		status    string
		dryRun    bool
	)

	flagSet := pflag.NewFlagSet("template_copy", pflag.ContinueOnError)
	flagSet.IntVar(&fromYear, "from", 0, "source edition year")
	flagSet.IntVar(&toYear, "to", 0, "destination edition year")
	flagSet.IntVar(&shiftDays, "shift-days", 0, "day offset (default: difference between edition start dates)")
	flagSet.StringVar(&status, "status", "", "status for copied slots: tentative or confirmed (default: keep source)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "report counts without writing")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if fromYear == 0 || toYear == 0 {
		return errors.New("--from and --to are required")
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

	from, err := editionsRepo.GetEditionByYear(ctx, fromYear)
	if err != nil {
		return fmt.Errorf("edition %d: %w", fromYear, err)
	}
	to, err := editionsRepo.GetEditionByYear(ctx, toYear)
	if err != nil {
		return fmt.Errorf("edition %d: %w", toYear, err)
	}

	req := schedule.CopyTemplateRequest{
		FromEditionID: from.ID.String(),
		ToEditionID:   to.ID.String(),
		TargetStatus:  status,
		DryRun:        dryRun,
	}
	if flagSet.Changed("shift-days") {
		req.ShiftDays = &shiftDays
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

	svc := schedule.NewService(schedule.NewRepository(db.PostgreSQL), editionsRepo)
	svc.SetPublisher(dispatcher)

	result, err := svc.CopyTemplate(ctx, req)
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
