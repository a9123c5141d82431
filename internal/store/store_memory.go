package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"scoring/internal/sentinel"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Cache for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Get drops an expired entry on read.
func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if ok && !e.expired(s.now()) {
		return e.value, nil
	}

	if ok {
		s.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the key.
		if cur, still := s.entries[key]; still && cur.expired(s.now()) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
	}
	return "", fmt.Errorf("get %s: %w", key, sentinel.ErrNotFound)
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len counts stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep removes every expired entry and returns how many it removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("memory store swept", "removed", n, "remaining", s.Len())
			}
		case <-ctx.Done():
			logger.Info("memory store sweeper stopping", "reason", ctx.Err())
			return
		}
	}
}

// InterestsKey is the key a client's interests document is stored under.
func InterestsKey(clientID int64) string {
	return "i:" + strconv.FormatInt(clientID, 10)
}

// SeedFile is the YAML layout accepted by LoadSeedFile:
//
//	interests:
//	  1: ["cars", "pets"]
//	  2: ["sport"]
type SeedFile struct {
	Interests map[int64][]string `yaml:"interests"`
}

// SeedInterests writes every client's interest list as a JSON document
// without expiry.
func SeedInterests(ctx context.Context, c Cache, interests map[int64][]string) error {
	for id, list := range interests {
		if list == nil {
			list = []string{}
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return fmt.Errorf("encode interests for client %d: %w", id, err)
		}
		if err := c.Set(ctx, InterestsKey(id), string(raw), 0); err != nil {
			return err
		}
	}
	return nil
}

// LoadSeedFile reads a SeedFile from path and seeds c with it. It returns the
// number of clients written.
func LoadSeedFile(ctx context.Context, c Cache, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := SeedInterests(ctx, c, seed.Interests); err != nil {
		return 0, err
	}
	return len(seed.Interests), nil
}
