// Package lock implements the advisory job lock manager: acquireLock,
// validateIfLocked, and releaseLock from the external RPC surface, layered
// on the transactional storage facade's LockStore.
package lock

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ballast-sched/ballast/pkg/clock"
	"github.com/ballast-sched/ballast/pkg/log"
	"github.com/ballast-sched/ballast/pkg/metrics"
	"github.com/ballast-sched/ballast/pkg/schederr"
	"github.com/ballast-sched/ballast/pkg/storage"
	"github.com/ballast-sched/ballast/pkg/types"
)

// Manager is the lock manager: every mutating RPC that touches a job passes
// its caller-held token (if any) through ValidateIfLocked before proceeding.
type Manager struct {
	facade *storage.Facade
	clock  clock.Clock
	logger zerolog.Logger
}

// New constructs a Manager backed by facade.
func New(facade *storage.Facade, c clock.Clock) *Manager {
	return &Manager{facade: facade, clock: c, logger: log.WithComponent("lock")}
}

// Acquire creates a lock for key if none exists, returning an opaque token.
// It fails with a LockError if a lock already exists for key.
func (m *Manager) Acquire(key types.LockKey, identity string) (*types.Lock, error) {
	// Built before the write so the command appended to the log and the
	// mutation applied in-memory are guaranteed to describe the same lock.
	candidate := &types.Lock{
		Key:         key,
		Token:       uuid.NewString(),
		Identity:    identity,
		TimestampMs: m.clock.Now().UnixMilli(),
	}

	lk, err := storage.Write(m.facade, storage.NewPutLockCommand(candidate), func(s storage.MutableStoreProvider) (*types.Lock, error) {
		existing, found, err := s.Locks().GetLock(key)
		if err != nil {
			return nil, schederr.Storage(err, "read lock %v", key)
		}
		if found {
			metrics.LockContentionTotal.Inc()
			return nil, schederr.Lock("lock already held for %v by %s", key, existing.Identity)
		}
		if err := s.Locks().PutLock(candidate); err != nil {
			return nil, schederr.Storage(err, "write lock %v", key)
		}
		return candidate, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.LocksHeld.Inc()
	m.logger.Info().Str("identity", identity).Msg("lock acquired")
	return lk, nil
}

// ValidateIfLocked fails with a LockError if a lock exists for key and
// heldToken does not match it (missing, mismatched, or stale). If no lock
// exists for key, validation always succeeds.
func (m *Manager) ValidateIfLocked(key types.LockKey, heldToken string) error {
	_, err := storage.Read(m.facade, func(s storage.StoreProvider) (struct{}, error) {
		existing, found, err := s.Locks().GetLock(key)
		if err != nil {
			return struct{}{}, schederr.Storage(err, "read lock %v", key)
		}
		if !found {
			return struct{}{}, nil
		}
		if heldToken == "" || heldToken != existing.Token {
			return struct{}{}, schederr.Lock("mutation against locked job %v requires a matching token", key)
		}
		return struct{}{}, nil
	})
	return err
}

// Release removes the lock for key iff token matches the held token.
func (m *Manager) Release(key types.LockKey, token string) error {
	_, err := storage.Write(m.facade, storage.NewDeleteLockCommand(key), func(s storage.MutableStoreProvider) (struct{}, error) {
		existing, found, err := s.Locks().GetLock(key)
		if err != nil {
			return struct{}{}, schederr.Storage(err, "read lock %v", key)
		}
		if !found {
			return struct{}{}, nil
		}
		if existing.Token != token {
			return struct{}{}, schederr.Lock("release token does not match held lock for %v", key)
		}
		if err := s.Locks().DeleteLock(key); err != nil {
			return struct{}{}, schederr.Storage(err, "delete lock %v", key)
		}
		return struct{}{}, nil
	})
	if err != nil {
		return err
	}
	metrics.LocksHeld.Dec()
	m.logger.Info().Msg("lock released")
	return nil
}
