// Command decoy-replay drives recorded scam conversations through the engine
// offline and prints how it classified them. Replies always come from the
// fallback lines; no language model or report endpoint is contacted.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/decoy/internal/classifier"
	"github.com/MikeSquared-Agency/decoy/internal/config"
	"github.com/MikeSquared-Agency/decoy/internal/directive"
	"github.com/MikeSquared-Agency/decoy/internal/extractor"
	"github.com/MikeSquared-Agency/decoy/internal/patterns"
	"github.com/MikeSquared-Agency/decoy/internal/policy"
	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/replay"
	"github.com/MikeSquared-Agency/decoy/internal/session"
	"github.com/MikeSquared-Agency/decoy/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		rc         replay.Config
		sqlitePath string
		fresh      bool
	)

	cmd := &cobra.Command{
		Use:   "decoy-replay [dir]",
		Short: "Replay recorded conversations through the engine",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rc.Dir = args[0]
			}
			if rc.Dir == "" && rc.SingleFile == "" {
				return fmt.Errorf("a transcript directory or --file is required")
			}
			if fresh {
				rc.StatePath = ""
			}

			if err := godotenv.Load(); err != nil {
				slog.Info("no .env file found, using environment variables")
			}
			cfg := config.Load()
			setupLogging(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			proc, closeStore, err := buildProcessor(cfg, sqlitePath)
			if err != nil {
				return err
			}
			defer closeStore()

			outcomes, _, err := replay.NewRunner(rc, proc, slog.Default()).Run(ctx)
			fmt.Fprint(cmd.OutOrStdout(), replay.FormatSummary(outcomes))
			return err
		},
	}

	cmd.Flags().StringVar(&rc.SingleFile, "file", "", "Replay a single JSONL file.")
	cmd.Flags().StringVar(&rc.StatePath, "state", replay.DefaultStatePath, "Resume state file.")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Ignore and do not write resume state.")
	cmd.Flags().BoolVar(&rc.DryRun, "dry-run", false, "Parse and count without running the engine.")
	cmd.Flags().IntVar(&rc.MinMessages, "min-messages", 1, "Skip transcripts with fewer counterparty messages.")
	cmd.Flags().StringVar(&rc.SessionPrefix, "prefix", "replay-", "Prefix for replayed session ids.")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "Keep replayed sessions in this SQLite file instead of memory.")

	return cmd
}

func buildProcessor(cfg config.Config, sqlitePath string) (*processor.Processor, func(), error) {
	lib := patterns.Default()
	if cfg.RulesFile != "" {
		var err error
		if lib, err = patterns.LoadFile(cfg.RulesFile); err != nil {
			return nil, nil, fmt.Errorf("load rules: %w", err)
		}
	}

	tpl, err := directive.DefaultTemplates()
	if err != nil {
		return nil, nil, fmt.Errorf("load templates: %w", err)
	}

	var st store.SessionStore = store.NewMemory()
	if sqlitePath != "" {
		db, err := store.NewSQLite(sqlitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		st = db
		slog.Info("database opened", "backend", "sqlite", "path", sqlitePath)
	}

	builder := directive.NewBuilder(tpl, lib)
	eng := processor.Engine{
		Library:   lib,
		Extractor: extractor.New(lib, slog.Default()),
		Classifier: classifier.New(lib, nil, classifier.Config{
			Threshold:      cfg.ScamThreshold,
			ExternalWeight: cfg.ExternalWeight,
		}, slog.Default()),
		Machine:   session.NewMachine(lib, session.DefaultConfig()),
		Builder:   builder,
		Responder: directive.NewResponder(builder, nil, cfg.GeneratorTimeout, slog.Default()),
		Policy:    policy.New(policy.Config{MinTurns: cfg.MinReportTurns, MaxTurns: cfg.MaxTurns}),
	}

	proc := processor.New(eng, st, nil, nil, slog.Default())
	return proc, st.Close, nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
