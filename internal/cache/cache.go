package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is the sentinel for a cache miss. A cached JSON null is a hit;
// only an absent or expired key (or a backend failure) is a miss.
var ErrMiss = errors.New("cache miss")

// Namespace prefixes every key and tag set so pattern deletes can never
// touch keys belonging to other systems sharing the Redis instance.
const Namespace = "shortreel:"

const tagPrefix = Namespace + "tag:"

// Local entries are capped so a Redis-side invalidation is observed within
// this bound even by nodes that served the entry from process memory.
const localTTLCap = time.Minute

// Store is the unified cache surface: Redis when available, with an
// in-process go-cache layer in front. All operations are best-effort;
// backend errors degrade to a miss (reads) or a no-op (writes).
type Store struct {
	rdb   *redis.Client // nil means local-only operation
	local *gocache.Cache

	mu        sync.Mutex
	localTags map[string]map[string]struct{} // tag -> member keys
}

// New creates a Store. rdb may be nil; the store then serves entirely from
// process memory, which keeps single-node deployments and tests working.
func New(rdb *redis.Client) *Store {
	return &Store{
		rdb:       rdb,
		local:     gocache.New(localTTLCap, 5*time.Minute),
		localTags: make(map[string]map[string]struct{}),
	}
}

func (s *Store) key(k string) string {
	return Namespace + k
}

// Get fetches key and unmarshals the cached JSON into dest.
// Returns ErrMiss when the key is absent or the backend is unavailable.
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	nk := s.key(key)

	if raw, ok := s.local.Get(nk); ok {
		if err := json.Unmarshal(raw.([]byte), dest); err == nil {
			return nil
		}
	}

	if s.rdb == nil {
		return ErrMiss
	}

	raw, err := s.rdb.Get(ctx, nk).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache get failed", "key", key, "error", err)
		}
		return ErrMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		slog.Warn("cache entry corrupt", "key", key, "error", err)
		return ErrMiss
	}

	// Backfill the local layer for subsequent hits on this node.
	s.local.Set(nk, raw, localTTLCap)
	return nil
}

// Set serializes value and stores it under key with the given TTL.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	nk := s.key(key)

	localTTL := ttl
	if s.rdb != nil && localTTL > localTTLCap {
		localTTL = localTTLCap
	}
	s.local.Set(nk, raw, localTTL)

	if s.rdb == nil {
		return
	}
	if err := s.rdb.Set(ctx, nk, raw, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

// Delete removes the given keys from both layers.
func (s *Store) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	namespaced := make([]string, len(keys))
	for i, k := range keys {
		namespaced[i] = s.key(k)
		s.local.Delete(namespaced[i])
	}
	s.dropFromLocalTags(namespaced...)

	if s.rdb == nil {
		return
	}
	if err := s.rdb.Del(ctx, namespaced...).Err(); err != nil {
		slog.Warn("cache delete failed", "keys", len(keys), "error", err)
	}
}

// DeletePattern removes every key matching pattern. The pattern is expanded
// inside the store namespace only; a pattern that would escape it is rejected.
func (s *Store) DeletePattern(ctx context.Context, pattern string) error {
	if pattern == "" || strings.HasPrefix(pattern, "*") || strings.Contains(pattern, Namespace) {
		return fmt.Errorf("refusing unsafe cache pattern %q", pattern)
	}
	np := s.key(pattern)

	for k := range s.local.Items() {
		if matchPattern(np, k) {
			s.local.Delete(k)
			s.dropFromLocalTags(k)
		}
	}

	if s.rdb == nil {
		return nil
	}
	iter := s.rdb.Scan(ctx, 0, np, 0).Iterator()
	for iter.Next(ctx) {
		s.rdb.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("cache pattern delete failed", "pattern", pattern, "error", err)
	}
	return nil
}

// SetWithTags stores key like Set and records its membership in each tag set,
// enabling later bulk invalidation with InvalidateByTags.
func (s *Store) SetWithTags(ctx context.Context, key string, value any, ttl time.Duration, tags []string) {
	s.Set(ctx, key, value, ttl)
	nk := s.key(key)

	s.mu.Lock()
	for _, tag := range tags {
		members, ok := s.localTags[tag]
		if !ok {
			members = make(map[string]struct{})
			s.localTags[tag] = members
		}
		members[nk] = struct{}{}
	}
	s.mu.Unlock()

	if s.rdb == nil {
		return
	}
	for _, tag := range tags {
		set := tagPrefix + tag
		if err := s.rdb.SAdd(ctx, set, nk).Err(); err != nil {
			slog.Warn("cache tag record failed", "tag", tag, "error", err)
			continue
		}
		// Tag sets outlive their longest member by a margin, then expire.
		s.rdb.Expire(ctx, set, ttl+time.Hour)
	}
}

// InvalidateByTags deletes every key recorded under any of the given tags,
// together with the tag sets themselves.
func (s *Store) InvalidateByTags(ctx context.Context, tags ...string) {
	if len(tags) == 0 {
		return
	}

	victims := make(map[string]struct{})

	s.mu.Lock()
	for _, tag := range tags {
		for k := range s.localTags[tag] {
			victims[k] = struct{}{}
		}
		delete(s.localTags, tag)
	}
	s.mu.Unlock()

	if s.rdb != nil {
		for _, tag := range tags {
			set := tagPrefix + tag
			members, err := s.rdb.SMembers(ctx, set).Result()
			if err != nil {
				slog.Warn("cache tag lookup failed", "tag", tag, "error", err)
				continue
			}
			for _, m := range members {
				victims[m] = struct{}{}
			}
			s.rdb.Del(ctx, set)
		}
	}

	if len(victims) == 0 {
		return
	}
	keys := make([]string, 0, len(victims))
	for k := range victims {
		keys = append(keys, k)
		s.local.Delete(k)
	}
	s.dropFromLocalTags(keys...)

	if s.rdb != nil {
		if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
			slog.Warn("cache tag invalidation failed", "tags", tags, "error", err)
		}
	}
}

// dropFromLocalTags removes keys from every local tag set so stale
// memberships do not resurrect deleted entries on a later invalidation.
func (s *Store) dropFromLocalTags(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tag, members := range s.localTags {
		for _, k := range keys {
			delete(members, k)
		}
		if len(members) == 0 {
			delete(s.localTags, tag)
		}
	}
}

// matchPattern implements the subset of Redis glob syntax the store uses:
// literal text with a trailing or embedded '*' wildcard.
func matchPattern(pattern, key string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	rest := key[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	return strings.HasSuffix(rest, parts[len(parts)-1])
}
