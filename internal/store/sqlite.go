package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS decoy_sessions (
	id            TEXT PRIMARY KEY,
	verdict       TEXT NOT NULL,
	scam_type     TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL,
	report_status TEXT NOT NULL,
	turns         INTEGER NOT NULL,
	intel_count   INTEGER NOT NULL,
	data          TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS decoy_sessions_updated_at ON decoy_sessions (updated_at DESC);`

// SQLite is the single-node backend.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens dsn (a path or ":memory:") in WAL mode and creates the
// schema.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// one writer; WAL keeps readers unblocked
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	_ = s.db.Close()
}

func (s *SQLite) Get(ctx context.Context, id string) (*session.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM decoy_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(id, []byte(data))
}

func (s *SQLite) Put(ctx context.Context, sess *session.Session) error {
	data, err := encode(sess)
	if err != nil {
		return err
	}
	sum := summarize(sess)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decoy_sessions (id, verdict, scam_type, stage, report_status, turns, intel_count, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			verdict = excluded.verdict,
			scam_type = excluded.scam_type,
			stage = excluded.stage,
			report_status = excluded.report_status,
			turns = excluded.turns,
			intel_count = excluded.intel_count,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		sess.ID, string(sum.Verdict), sum.ScamType, string(sum.Stage), string(sum.ReportStatus),
		sum.Turns, sum.IntelCount, string(data),
		sess.CreatedAt.UTC().Format(time.RFC3339Nano), sess.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, verdict, scam_type, stage, report_status, turns, intel_count, updated_at
		FROM decoy_sessions
		ORDER BY updated_at DESC
		LIMIT ?`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var verdict, stage, status, updated string
		if err := rows.Scan(&sum.ID, &verdict, &sum.ScamType, &stage, &status, &sum.Turns, &sum.IntelCount, &updated); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Verdict = session.Verdict(verdict)
		sum.Stage = session.Stage(stage)
		sum.ReportStatus = session.ReportStatus(status)
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			COALESCE(sum(verdict = 'confirmed'), 0),
			COALESCE(sum(verdict = 'rejected'), 0),
			COALESCE(sum(report_status = 'sent'), 0),
			COALESCE(sum(report_status = 'pending'), 0),
			COALESCE(sum(intel_count), 0)
		FROM decoy_sessions`).Scan(&st.Sessions, &st.Confirmed, &st.Rejected, &st.ReportsSent, &st.ReportsPending, &st.IntelItems)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	return st, nil
}

var _ SessionStore = (*SQLite)(nil)
