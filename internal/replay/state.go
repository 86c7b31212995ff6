package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

const DefaultStatePath = "~/.decoy/replay-state.json"

// State tracks progress so an interrupted replay can resume.
type State struct {
	StartedAt       time.Time `json:"started_at"`
	LastProcessedAt time.Time `json:"last_processed_at"`
	FilesProcessed  []string  `json:"files_processed"`
	FilesRemaining  int       `json:"files_remaining"`
	Transcripts     int       `json:"transcripts"`
	Duplicates      int       `json:"duplicates"`
	Messages        int       `json:"messages"`
	ScamsDetected   int       `json:"scams_detected"`
	ReportsDue      int       `json:"reports_due"`
	Errors          []string  `json:"errors"`

	path string // not serialized
}

// LoadState loads state from path, or starts a fresh one. An empty path
// gives a state that is never written.
func LoadState(path string) (*State, error) {
	if path == "" {
		return &State{StartedAt: time.Now().UTC()}, nil
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				StartedAt: time.Now().UTC(),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = p
	return &s, nil
}

// Save persists the state to disk.
func (s *State) Save() error {
	s.LastProcessedAt = time.Now().UTC()
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

func (s *State) IsProcessed(path string) bool {
	for _, f := range s.FilesProcessed {
		if f == path {
			return true
		}
	}
	return false
}

func (s *State) MarkProcessed(path string) {
	s.FilesProcessed = append(s.FilesProcessed, path)
}

func (s *State) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Record folds one transcript's outcome into the running totals.
func (s *State) Record(o Outcome) {
	s.Transcripts++
	s.Messages += o.Inbound
	if o.ScamDetected {
		s.ScamsDetected++
	}
	if o.ReportStatus == session.ReportPending || o.ReportStatus == session.ReportSent {
		s.ReportsDue++
	}
	if o.Err != "" {
		s.AddError(fmt.Sprintf("%s %s: %s", o.Path, o.SessionID, o.Err))
	}
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
