package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "0001_triage_tickets",
		sql: `
CREATE TABLE IF NOT EXISTS triage_tickets (
    ticket_id             TEXT PRIMARY KEY,
    channel               TEXT NOT NULL,
    body                  TEXT NOT NULL,
    metadata              JSONB NOT NULL DEFAULT '{}',
    stage                 TEXT NOT NULL,
    issue_type            TEXT,
    priority              TEXT,
    confidence            DOUBLE PRECISION,
    reasoning             TEXT,
    human_review_required BOOLEAN NOT NULL DEFAULT FALSE,
    routed_team           TEXT,
    routed_queue          TEXT,
    issue_tracker_key     TEXT,
    degraded              BOOLEAN NOT NULL DEFAULT FALSE,
    created_at            TIMESTAMPTZ NOT NULL,
    archived_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	},
	{
		name: "0002_triage_audit_log",
		sql: `
CREATE TABLE IF NOT EXISTS triage_audit_log (
    id          TEXT PRIMARY KEY,
    ticket_id   TEXT NOT NULL REFERENCES triage_tickets(ticket_id),
    seq         INT NOT NULL,
    stage       TEXT NOT NULL,
    rule        TEXT,
    detail      JSONB,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_triage_audit_ticket ON triage_audit_log (ticket_id, seq);`,
	},
}

// RunMigrations applies the embedded schema statements in order. Statements
// are idempotent so re-running at every startup is safe.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) error {
	if pool == nil {
		logger.Warn("no postgres pool available; skipping migrations")
		return nil
	}

	for _, m := range migrations {
		logger.Info("applying migration", zap.String("name", m.name))
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
	}

	logger.Info("migrations applied", zap.Int("count", len(migrations)))
	return nil
}
