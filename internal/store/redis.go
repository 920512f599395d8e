package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/signaldesk/triage-service/internal/domain"
)

// Run claims expire on their own so a crashed worker cannot leave a ticket
// locked forever.
const runClaimTTL = 10 * time.Minute

// RedisTicketStore persists ticket states as JSON values and implements the
// run claim with SETNX, giving get-or-create and claim atomicity across
// processes.
type RedisTicketStore struct {
	client *redis.Client
}

// NewRedisTicketStore wraps an existing client.
func NewRedisTicketStore(client *redis.Client) *RedisTicketStore {
	return &RedisTicketStore{client: client}
}

func ticketKey(id string) string {
	return "triage:ticket:" + id
}

func runKey(id string) string {
	return "triage:run:" + id
}

// GetOrCreate stores the ticket under its key if unset, otherwise loads the
// existing state.
func (s *RedisTicketStore) GetOrCreate(ctx context.Context, t *domain.TicketState) (*domain.TicketState, bool, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, false, fmt.Errorf("marshal ticket %s: %w", t.ID, err)
	}
	created, err := s.client.SetNX(ctx, ticketKey(t.ID), payload, 0).Result()
	if err != nil {
		return nil, false, fmt.Errorf("store ticket %s: %w", t.ID, err)
	}
	if created {
		return t.Clone(), true, nil
	}
	existing, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get loads and unmarshals the stored state.
func (s *RedisTicketStore) Get(ctx context.Context, id string) (*domain.TicketState, error) {
	raw, err := s.client.Get(ctx, ticketKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %s: %w", id, err)
	}
	var state domain.TicketState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", id, err)
	}
	return &state, nil
}

// Save overwrites the stored state with a full snapshot.
func (s *RedisTicketStore) Save(ctx context.Context, t *domain.TicketState) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal ticket %s: %w", t.ID, err)
	}
	if err := s.client.Set(ctx, ticketKey(t.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("save ticket %s: %w", t.ID, err)
	}
	return nil
}

// ClaimRun takes the run claim via SETNX.
func (s *RedisTicketStore) ClaimRun(ctx context.Context, id string) (bool, error) {
	ok, err := s.client.SetNX(ctx, runKey(id), "1", runClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim run for %s: %w", id, err)
	}
	return ok, nil
}

// ReleaseRun deletes the run claim.
func (s *RedisTicketStore) ReleaseRun(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, runKey(id)).Err(); err != nil {
		return fmt.Errorf("release run for %s: %w", id, err)
	}
	return nil
}

// RedisDeliveryLedger records deliveries with SETNX so the first delivery
// for a (ticket, sink) pair wins across processes.
type RedisDeliveryLedger struct {
	client *redis.Client
}

// NewRedisDeliveryLedger wraps an existing client.
func NewRedisDeliveryLedger(client *redis.Client) *RedisDeliveryLedger {
	return &RedisDeliveryLedger{client: client}
}

func deliveryKey(ticketID, sink string) string {
	return "triage:delivery:" + ticketID + ":" + sink
}

// Record stores the delivery key if the pair is unseen.
func (l *RedisDeliveryLedger) Record(ctx context.Context, ticketID, sink, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, deliveryKey(ticketID, sink), key, 0).Result()
	if err != nil {
		return false, fmt.Errorf("record delivery %s/%s: %w", ticketID, sink, err)
	}
	return ok, nil
}

// Get returns the recorded delivery key, if any.
func (l *RedisDeliveryLedger) Get(ctx context.Context, ticketID, sink string) (string, bool, error) {
	key, err := l.client.Get(ctx, deliveryKey(ticketID, sink)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read delivery %s/%s: %w", ticketID, sink, err)
	}
	return key, true, nil
}
