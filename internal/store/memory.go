package store

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/brainytots/wa-connect/internal/domain"
)

const memoryShards = 32

type memoryShard struct {
	mu      sync.RWMutex
	records map[string]*domain.SessionRecord
}

// MemoryStore is a sharded in-process Store. Records are copied on the way
// in and out, so callers never share memory with the store.
type MemoryStore struct {
	opts   Options
	shards [memoryShards]*memoryShard
}

// NewMemory creates an in-memory store.
func NewMemory(opts Options) *MemoryStore {
	s := &MemoryStore{opts: opts}
	for i := range s.shards {
		s.shards[i] = &memoryShard{records: make(map[string]*domain.SessionRecord)}
	}
	return s
}

func (s *MemoryStore) shard(userID string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%memoryShards]
}

// GetOrCreate returns the stored record or a fresh one.
func (s *MemoryStore) GetOrCreate(ctx context.Context, userID string) (*domain.SessionRecord, error) {
	rec, err := s.Get(ctx, userID)
	if err != nil || rec != nil {
		return rec, err
	}
	return domain.NewSessionRecord(userID, s.opts.now()), nil
}

// Get returns a copy of the stored record, or nil if absent or expired.
func (s *MemoryStore) Get(_ context.Context, userID string) (*domain.SessionRecord, error) {
	sh := s.shard(userID)
	sh.mu.RLock()
	rec, ok := sh.records[userID]
	sh.mu.RUnlock()
	if !ok || rec.Expired(s.opts.now(), s.opts.TTL) {
		return nil, nil
	}
	return rec.Clone(), nil
}

// Save stores a copy of rec.
func (s *MemoryStore) Save(_ context.Context, rec *domain.SessionRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	sh := s.shard(rec.UserID)
	sh.mu.Lock()
	sh.records[rec.UserID] = rec.Clone()
	sh.mu.Unlock()
	return nil
}

// Delete removes the record for userID.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	sh := s.shard(userID)
	sh.mu.Lock()
	delete(sh.records, userID)
	sh.mu.Unlock()
	return nil
}

// DeleteExpired removes idle records.
func (s *MemoryStore) DeleteExpired(_ context.Context) (int64, error) {
	if s.opts.TTL <= 0 {
		return 0, nil
	}
	now := s.opts.now()
	var removed int64
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, rec := range sh.records {
			if rec.Expired(now, s.opts.TTL) {
				delete(sh.records, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of stored records, expired or not.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.records)
		sh.mu.RUnlock()
	}
	return n
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
