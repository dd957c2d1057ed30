package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"

	"github.com/medalcase/medalcase/medalcase"
	"github.com/medalcase/medalcase/medalcase/database"
	"github.com/medalcase/medalcase/medalcase/logger"
	"github.com/medalcase/medalcase/medalcase/services"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	slog.Info("Starting medalcase achievement service",
		slog.String("version", version),
		slog.String("commit", commit))

	path := flag.String("config", "config.toml", "path to config")
	runAudit := flag.Bool("audit", false, "run the grant reconciliation batch and exit")
	auditCommit := flag.Bool("audit-commit", false, "apply revocations instead of previewing them")
	auditProfile := flag.Int64("audit-profile", 0, "limit the audit to one profile id (0 = all)")
	auditCategory := flag.String("audit-category", services.CategoryAll, "audit category: all, titles or awards")
	auditIncludeExempt := flag.Bool("audit-include-exempt", false, "also re-check manually awarded definitions")
	evaluateProfile := flag.Int64("evaluate", 0, "run a full evaluation pass for one profile id and exit")
	flag.Parse()

	cfg, err := medalcase.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}
	slog.Info("Configuration loaded successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	dbStartTime := time.Now()
	dbConfig := database.DBConfig{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		PoolSize: cfg.DB.PoolSize,
	}

	db, err := database.New(ctx, dbConfig)
	if err != nil {
		slog.Error("Database connection failed",
			slog.String("error", err.Error()),
			slog.Duration("attempted_for", time.Since(dbStartTime)))
		os.Exit(-1)
	}

	if err := db.InitializeSchema(ctx); err != nil {
		slog.Error("Failed to initialize database schema",
			slog.String("error", err.Error()))
		os.Exit(-1)
	}
	slog.Info("Database ready",
		slog.String("database", cfg.DB.Database),
		slog.Duration("took", time.Since(dbStartTime)))

	var client bot.Client
	if cfg.Discord.Token != "" {
		client, err = disgo.New(cfg.Discord.Token)
		if err != nil {
			slog.Error("Failed to create discord client", slog.Any("error", err))
			os.Exit(-1)
		}
	}

	app, err := medalcase.NewApp(cfg, db, client)
	if err != nil {
		slog.Error("Failed to wire application", slog.Any("error", err))
		os.Exit(-1)
	}
	defer app.Close()

	if *runAudit {
		report, err := app.AuditService.Run(ctx, services.AuditOptions{
			Commit:        *auditCommit,
			ProfileID:     *auditProfile,
			Category:      *auditCategory,
			IncludeExempt: *auditIncludeExempt,
		})
		if err != nil {
			slog.Error("Audit run failed", slog.Any("error", err))
			os.Exit(-1)
		}
		slog.Info("Audit finished",
			slog.Int("profiles", report.ProfilesChecked),
			slog.Int("grants", report.GrantsChecked),
			slog.Int("revoked", report.Revoked),
			slog.Int("failed", len(report.FailedProfiles)))
		return
	}

	if *evaluateProfile != 0 {
		report, err := app.AwardService.EvaluateProfile(ctx, *evaluateProfile)
		if err != nil {
			slog.Error("Evaluation pass failed", slog.Any("error", err))
			os.Exit(-1)
		}
		slog.Info("Evaluation finished",
			slog.Int64("profile_id", *evaluateProfile),
			slog.Int("evaluated", report.Evaluated),
			slog.Int("granted", report.Granted),
			slog.Int("skipped", report.Skipped))
		return
	}

	slog.Info("Achievement service is now running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-s
	slog.Info("Shutting down...")
}
