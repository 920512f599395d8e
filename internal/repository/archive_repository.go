package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/signaldesk/triage-service/internal/domain"
	"github.com/signaldesk/triage-service/internal/store"
)

// ArchiveRepository retains completed ticket runs for auditing. Inserts are
// conflict-tolerant so replaying a completed run never duplicates rows, and
// nothing here ever deletes (retention is an operator concern).
type ArchiveRepository interface {
	ArchiveCompleted(ctx context.Context, t *domain.TicketState) error
	GetByID(ctx context.Context, id string) (*domain.TicketState, error)
}

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository instantiates the repository.
func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &archiveRepository{pool: pool}
}

func (r *archiveRepository) ArchiveCompleted(ctx context.Context, t *domain.TicketState) error {
	metadata := []byte("{}")
	if t.Metadata != nil {
		var err error
		metadata, err = json.Marshal(t.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", t.ID, err)
		}
	}

	var issueType, priority, reasoning *string
	var confidence *float64
	if c := t.Classification; c != nil {
		issueType = &c.IssueType
		p := string(c.Priority)
		priority = &p
		confidence = &c.Confidence
		reasoning = &c.Reasoning
	}

	const insertTicket = `
        INSERT INTO triage_tickets (ticket_id, channel, body, metadata, stage, issue_type, priority,
            confidence, reasoning, human_review_required, routed_team, routed_queue,
            issue_tracker_key, degraded, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (ticket_id) DO UPDATE SET
            stage=EXCLUDED.stage,
            issue_tracker_key=EXCLUDED.issue_tracker_key,
            degraded=EXCLUDED.degraded`
	if _, err := r.pool.Exec(ctx, insertTicket,
		t.ID,
		t.Channel,
		t.Text,
		metadata,
		t.Stage,
		issueType,
		priority,
		confidence,
		reasoning,
		t.HumanReviewRequired,
		nullable(t.RoutedTeam),
		nullable(t.RoutedQueue),
		nullable(t.IssueKey),
		t.Degraded,
		t.CreatedAt,
	); err != nil {
		return fmt.Errorf("archive ticket %s: %w", t.ID, err)
	}

	const insertEntry = `
        INSERT INTO triage_audit_log (id, ticket_id, seq, stage, rule, detail, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING`
	for seq, entry := range t.AuditLog {
		detail, err := json.Marshal(entry.Detail)
		if err != nil {
			return fmt.Errorf("encode audit detail for %s: %w", t.ID, err)
		}
		if _, err := r.pool.Exec(ctx, insertEntry,
			entry.ID,
			t.ID,
			seq,
			entry.Stage,
			nullable(entry.Rule),
			detail,
			entry.Timestamp,
		); err != nil {
			return fmt.Errorf("archive audit entry for %s: %w", t.ID, err)
		}
	}
	return nil
}

func (r *archiveRepository) GetByID(ctx context.Context, id string) (*domain.TicketState, error) {
	const ticketQuery = `
        SELECT ticket_id, channel, body, metadata, stage, issue_type, priority, confidence,
               reasoning, human_review_required, routed_team, routed_queue, issue_tracker_key,
               degraded, created_at
        FROM triage_tickets WHERE ticket_id=$1`

	var (
		t          domain.TicketState
		metadata   []byte
		issueType  *string
		priority   *string
		confidence *float64
		reasoning  *string
		team       *string
		queue      *string
		issueKey   *string
	)
	err := r.pool.QueryRow(ctx, ticketQuery, id).Scan(
		&t.ID,
		&t.Channel,
		&t.Text,
		&metadata,
		&t.Stage,
		&issueType,
		&priority,
		&confidence,
		&reasoning,
		&t.HumanReviewRequired,
		&team,
		&queue,
		&issueKey,
		&t.Degraded,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load archived ticket %s: %w", id, err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
		}
	}
	if issueType != nil {
		t.Classification = &domain.Classification{IssueType: *issueType}
		if priority != nil {
			t.Classification.Priority = domain.Priority(*priority)
		}
		if confidence != nil {
			t.Classification.Confidence = *confidence
		}
		if reasoning != nil {
			t.Classification.Reasoning = *reasoning
		}
	}
	t.RoutedTeam = deref(team)
	t.RoutedQueue = deref(queue)
	t.IssueKey = deref(issueKey)

	const auditQuery = `
        SELECT id, stage, rule, detail, recorded_at
        FROM triage_audit_log WHERE ticket_id=$1 ORDER BY seq`
	rows, err := r.pool.Query(ctx, auditQuery, id)
	if err != nil {
		return nil, fmt.Errorf("load audit log for %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry domain.AuditEntry
		var rule *string
		var detail []byte
		if err := rows.Scan(&entry.ID, &entry.Stage, &rule, &detail, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry for %s: %w", id, err)
		}
		entry.Rule = deref(rule)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return nil, fmt.Errorf("decode audit detail for %s: %w", id, err)
			}
		}
		t.AuditLog = append(t.AuditLog, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit log for %s: %w", id, err)
	}
	return &t, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
