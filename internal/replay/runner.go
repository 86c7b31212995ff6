package replay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/decoy/internal/processor"
	"github.com/MikeSquared-Agency/decoy/internal/session"
)

// Config holds the replay command configuration.
type Config struct {
	Dir           string
	SingleFile    string // replay one file only
	StatePath     string // empty disables resume
	DryRun        bool   // parse and count without touching the engine
	MinMessages   int    // skip transcripts with fewer counterparty messages
	SessionPrefix string // prepended to transcript ids (default: "replay-")
}

// Runner drives recorded transcripts through the processor.
type Runner struct {
	cfg    Config
	proc   *processor.Processor
	logger *slog.Logger
}

func NewRunner(cfg Config, proc *processor.Processor, logger *slog.Logger) *Runner {
	if cfg.SessionPrefix == "" {
		cfg.SessionPrefix = "replay-"
	}
	return &Runner{cfg: cfg, proc: proc, logger: logger}
}

// Run replays every unprocessed file and returns the per-transcript
// outcomes. On cancellation the state is saved and the outcomes so far are
// returned with ctx.Err().
func (r *Runner) Run(ctx context.Context) ([]Outcome, *State, error) {
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("load state: %w", err)
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, state, fmt.Errorf("discover files: %w", err)
	}

	var pending []string
	for _, f := range files {
		if !state.IsProcessed(f) {
			pending = append(pending, f)
		}
	}
	state.FilesRemaining = len(pending)
	r.logger.Info("files discovered", "total", len(files), "pending", len(pending))

	seen := make(map[string]bool)
	var outcomes []Outcome

	for _, path := range pending {
		select {
		case <-ctx.Done():
			r.logger.Info("replay interrupted, saving state")
			_ = state.Save()
			return outcomes, state, ctx.Err()
		default:
		}

		ts, err := ParseFile(path)
		if err != nil {
			r.logger.Warn("failed to parse transcript file", "path", path, "error", err)
			state.AddError(fmt.Sprintf("parse %s: %v", path, err))
			continue
		}
		ts, dropped := Dedup(ts, seen)
		state.Duplicates += dropped

		r.logger.Info("processing file", "path", path, "transcripts", len(ts), "duplicates", dropped)

		for _, t := range ts {
			if len(t.Counterparty()) < r.cfg.MinMessages {
				continue
			}
			o, err := r.replay(ctx, path, t)
			if err != nil {
				_ = state.Save()
				return outcomes, state, err
			}
			state.Record(o)
			outcomes = append(outcomes, o)
		}

		state.MarkProcessed(path)
		state.FilesRemaining--
		if err := state.Save(); err != nil {
			r.logger.Warn("failed to save state", "error", err)
		}
	}

	r.logger.Info("replay complete",
		"files", len(pending),
		"transcripts", state.Transcripts,
		"messages", state.Messages,
		"scams_detected", state.ScamsDetected,
		"reports_due", state.ReportsDue,
		"errors", len(state.Errors),
	)
	return outcomes, state, nil
}

// replay feeds one transcript's counterparty messages in order. Only a
// cancelled context is returned as an error; engine failures end up in the
// outcome.
func (r *Runner) replay(ctx context.Context, path string, t Transcript) (Outcome, error) {
	o := Outcome{Path: path, SessionID: t.SessionID, Expected: t.Expected}
	msgs := t.Counterparty()

	if r.cfg.DryRun {
		o.Inbound = len(msgs)
		return o, nil
	}

	id := r.cfg.SessionPrefix + t.SessionID
	for _, m := range msgs {
		if err := ctx.Err(); err != nil {
			return o, err
		}
		m.Sender = processor.SenderScammer
		res, err := r.proc.Process(ctx, processor.Inbound{
			SessionID: id,
			Message:   m,
			Metadata:  processor.Metadata{Channel: t.Channel},
		})
		if errors.Is(err, processor.ErrMalformedInput) {
			o.Skipped++
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return o, ctx.Err()
			}
			o.Err = err.Error()
			break
		}
		o.Inbound++
		if res.ScamDetected && o.DetectedAt == 0 {
			o.DetectedAt = o.Inbound
		}
	}
	if o.Inbound == 0 {
		return o, nil
	}

	s, err := r.proc.Session(ctx, id)
	if err != nil {
		if o.Err == "" {
			o.Err = err.Error()
		}
		return o, nil
	}
	o.ScamDetected = s.Verdict == session.VerdictConfirmed
	o.ScamType = s.ScamType
	o.Confidence = s.Confidence
	o.IntelItems = s.Intel.Count()
	o.Categories = s.Intel.Categories()
	o.ReportStatus = s.ReportStatus
	return o, nil
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.Dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var files []string
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".jsonl") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		r.logger.Warn("error walking transcript dir", "dir", dir, "error", err)
	}
	sort.Strings(files)
	return files, nil
}
