package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/decoy/internal/api"
	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/config"
	"github.com/MikeSquared-Agency/decoy/internal/directive"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/hermes"
	"github.com/MikeSquared-Agency/decoy/internal/llm"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/policy"
	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/report"
	"github.com/MikeSquared-Agency/decoy/internal/session"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("decoy starting", "port", cfg.Port, "llm_provider", cfg.LLMProvider)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Rules and reply templates
	lib, err := loadRules(cfg.RulesFile)
	if err != nil {
		slog.Error("failed to load rules", "error", err)
		os.Exit(1)
	}
	tpl, err := loadTemplates(cfg.TemplatesFile)
	if err != nil {
		slog.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	// Session store
	st, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Language model (optional; without one every reply is a fallback line)
	completer, err := llm.NewCompleter(llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
		Timeout:  cfg.GeneratorTimeout,
	})
	if err != nil {
		slog.Error("failed to configure language model", "error", err)
		os.Exit(1)
	}
	var gen directive.Generator
	var external classifier.External
	if completer != nil {
		gen = llm.NewGenerator(completer, slog.Default())
		if cfg.LLMClassifier {
			external = llm.NewScamClassifier(completer, cfg.ScamThreshold, slog.Default())
		}
		slog.Info("language model ready", "provider", cfg.LLMProvider, "classifier", cfg.LLMClassifier)
	} else {
		slog.Warn("no language model configured, replies use fallback lines")
	}

	builder := directive.NewBuilder(tpl, lib)
	eng := processor.Engine{
		Library:   lib,
		Extractor: extractor.New(lib, slog.Default()),
		Classifier: classifier.New(lib, external, classifier.Config{
			Threshold:       cfg.ScamThreshold,
			ExternalWeight:  cfg.ExternalWeight,
			ExternalTimeout: cfg.ClassifierTimeout,
		}, slog.Default()),
		Machine:   session.NewMachine(lib, session.DefaultConfig()),
		Builder:   builder,
		Responder: directive.NewResponder(builder, gen, cfg.GeneratorTimeout, slog.Default()),
		Policy:    policy.New(policy.Config{MinTurns: cfg.MinReportTurns, MaxTurns: cfg.MaxTurns}),
	}

	// Report endpoint (optional; due reports stay pending without one)
	var reporter processor.Reporter
	if cfg.ReportURL != "" {
		reporter = report.NewClient(cfg.ReportURL, cfg.ReportAPIKey, slog.Default())
		slog.Info("report endpoint configured", "url", cfg.ReportURL)
	} else {
		slog.Warn("DECOY_REPORT_URL not set, reports will stay pending")
	}

	// NATS/Hermes (optional)
	var hermesClient *hermes.Client
	var pub hermes.Publisher
	if cfg.NatsURL != "" {
		hermesClient, err = hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer hermesClient.Close()
		pub = hermesClient
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Per-message pipeline
	proc := processor.New(eng, st, reporter, pub, slog.Default())

	if hermesClient != nil {
		if err := hermesClient.QueueSubscribe(hermes.SubjectInbound, hermes.InboundQueue, proc.HandleInbound); err != nil {
			slog.Error("failed to subscribe to inbound messages", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	srv := api.NewServer(api.Options{
		Port:      cfg.Port,
		APIKey:    cfg.APIKey,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	}, proc, st, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	slog.Info("decoy ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	cancel()
	slog.Info("decoy stopped")
}

func loadRules(path string) (*patterns.Library, error) {
	if path == "" {
		return patterns.Default(), nil
	}
	lib, err := patterns.LoadFile(path)
	if err != nil {
		return nil, err
	}
	slog.Info("rules loaded", "path", path)
	return lib, nil
}

func loadTemplates(path string) (*directive.Templates, error) {
	if path == "" {
		return directive.DefaultTemplates()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()
	slog.Info("templates loaded", "path", path)
	return directive.LoadTemplates(f)
}

func openStore(ctx context.Context, cfg config.Config) (store.SessionStore, error) {
	switch {
	case cfg.DatabaseURL != "":
		db, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		slog.Info("database connected", "backend", "postgres")
		return db, nil
	case cfg.SQLitePath != "":
		db, err := store.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("database opened", "backend", "sqlite", "path", cfg.SQLitePath)
		return db, nil
	default:
		slog.Warn("no database configured, sessions are kept in memory")
		return store.NewMemory(), nil
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
