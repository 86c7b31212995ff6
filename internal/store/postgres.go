package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/decoy/internal/session"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS decoy_sessions (
	id            TEXT PRIMARY KEY,
	verdict       TEXT NOT NULL,
	scam_type     TEXT NOT NULL DEFAULT '',
	stage         TEXT NOT NULL,
	report_status TEXT NOT NULL,
	turns         INTEGER NOT NULL,
	intel_count   INTEGER NOT NULL,
	data          JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS decoy_sessions_updated_at ON decoy_sessions (updated_at DESC);`

type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and creates the sessions table if needed.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM decoy_sessions WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return decode(id, data)
}

func (p *Postgres) Put(ctx context.Context, s *session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	sum := summarize(s)
	_, err = p.pool.Exec(ctx, `
		INSERT INTO decoy_sessions (id, verdict, scam_type, stage, report_status, turns, intel_count, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id)
		DO UPDATE SET
			verdict = $2,
			scam_type = $3,
			stage = $4,
			report_status = $5,
			turns = $6,
			intel_count = $7,
			data = $8,
			updated_at = $10`,
		s.ID, string(sum.Verdict), sum.ScamType, string(sum.Stage), string(sum.ReportStatus),
		sum.Turns, sum.IntelCount, data, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put session %s: %w", s.ID, err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, verdict, scam_type, stage, report_status, turns, intel_count, updated_at
		FROM decoy_sessions
		ORDER BY updated_at DESC
		LIMIT $1`, limitOrDefault(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var verdict, stage, status string
		if err := rows.Scan(&sum.ID, &verdict, &sum.ScamType, &stage, &status, &sum.Turns, &sum.IntelCount, &sum.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.Verdict = session.Verdict(verdict)
		sum.Stage = session.Stage(stage)
		sum.ReportStatus = session.ReportStatus(status)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (p *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := p.pool.QueryRow(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE verdict = 'confirmed'),
			count(*) FILTER (WHERE verdict = 'rejected'),
			count(*) FILTER (WHERE report_status = 'sent'),
			count(*) FILTER (WHERE report_status = 'pending'),
			COALESCE(sum(intel_count), 0)
		FROM decoy_sessions`).Scan(&st.Sessions, &st.Confirmed, &st.Rejected, &st.ReportsSent, &st.ReportsPending, &st.IntelItems)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	return st, nil
}

var _ SessionStore = (*Postgres)(nil)
