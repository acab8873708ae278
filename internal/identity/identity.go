// Package identity assigns and persists the durable pseudonymous identity
// for the current client. One identity exists per device; it survives
// process restarts through the local durable store.
package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"pagewatch/internal/storage"
)

// Identity is the durable record representing one device across sessions.
type Identity struct {
	UserID     string    `json:"user_id"`
	FirstVisit time.Time `json:"first_visit"`
	VisitCount int       `json:"visit_count"`
}

// KV is the slice of the local store the identity record lives in.
type KV interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	SetValue(ctx context.Context, key, value string) error
}

// Store manages the identity record. The visit counter is incremented
// exactly once per process lifetime: the first GetOrCreate of the process
// performs the read-modify-write, subsequent calls return the cached
// record.
type Store struct {
	kv     KV
	logger *slog.Logger
	clock  func() time.Time

	mu      sync.Mutex
	current *Identity
}

// NewStore creates an identity store backed by the given key/value
// persistence.
func NewStore(kv KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger, clock: time.Now}
}

// WithClock overrides the time source; intended for tests.
func (s *Store) WithClock(clock func() time.Time) *Store {
	s.clock = clock
	return s
}

// GetOrCreate returns the device identity, creating it on the first visit.
// A missing or unreadable stored record is treated as a first visit: the
// user ID is a fresh random token, FirstVisit is now, VisitCount is 1.
// On a returning visit the counter is bumped by one and FirstVisit is left
// untouched. The record is persisted synchronously before returning.
func (s *Store) GetOrCreate(ctx context.Context) (Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return *s.current, nil
	}

	ident := s.load(ctx)
	if ident == nil {
		ident = &Identity{
			UserID:     uuid.NewString(),
			FirstVisit: s.clock().UTC(),
			VisitCount: 1,
		}
		s.logger.Debug("Created new identity", slog.String("user_id", ident.UserID))
	} else {
		ident.VisitCount++
	}

	if err := s.persist(ctx, ident); err != nil {
		return Identity{}, err
	}

	s.current = ident
	return *ident, nil
}

// Forget drops the in-process cache; the next GetOrCreate behaves like a
// new process lifetime. Intended for tests and for the administrative
// reset path.
func (s *Store) Forget() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// load reads the stored identity. Any failure degrades to "not yet
// created"; there is no distinguished error path for a missing record.
func (s *Store) load(ctx context.Context) *Identity {
	raw, ok, err := s.kv.GetValue(ctx, storage.KeyIdentity)
	if err != nil {
		s.logger.Warn("Failed to read identity record", slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}

	var ident Identity
	if err := json.Unmarshal([]byte(raw), &ident); err != nil {
		s.logger.Warn("Corrupted identity record, treating as first visit",
			slog.Any("error", err))
		return nil
	}
	if ident.UserID == "" {
		return nil
	}
	return &ident
}

func (s *Store) persist(ctx context.Context, ident *Identity) error {
	data, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	return s.kv.SetValue(ctx, storage.KeyIdentity, string(data))
}
