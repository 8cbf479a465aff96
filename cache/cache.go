// Package cache persists conversation context across exchanges, keyed by an
// opaque session identifier. Context that fits the token budget is stored as
// a single "full" entry; oversized context is split into message-level
// chunks that are reassembled on read. The two representations live in
// separately configurable stores so full and chunked entries can carry
// different TTLs.
//
// Keys follow the layout
//
//	session:{id}:full
//	session:{id}:chunk:{n}
//	session:{id}:chunks:meta
//
// and exactly one representation exists per session at a time: a Store call
// always fully supersedes the previous one.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is one conversational unit. Chunking packs messages greedily, so
// a message is never split across chunks.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Context is the conversation state stored per session.
type Context struct {
	Messages []Message `json:"messages"`
}

// Snapshot is a retrieved context. Partial is set when some chunks had
// expired before the read; callers must treat partial context as degraded,
// not absent.
type Snapshot struct {
	Context Context
	Partial bool
}

// Store is the key-value backend. Implementations apply TTL-based eviction
// independently per entry.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	ItemCount(ctx context.Context) (int, error)
}

// TokenEstimator approximates the token count of serialized context. The
// default heuristic is ceil(len/4); plug in a calibrated estimator if the
// budget needs to be tighter.
type TokenEstimator interface {
	Estimate(s string) int
}

type heuristicEstimator struct{}

func (heuristicEstimator) Estimate(s string) int { return (len(s) + 3) / 4 }

// StoreStats describes one backing store.
type StoreStats struct {
	Items int `json:"items"`
}

// Stats is returned by Cache.Stats.
type Stats struct {
	Full     StoreStats `json:"fullCacheStats"`
	Chunked  StoreStats `json:"chunkedCacheStats"`
	Sessions int        `json:"sessionCount"`
}

const (
	defaultTokenBudget = 4000
	defaultChunkTokens = 1000
	defaultTTL         = time.Hour
)

// Cache stores and retrieves conversation context, transparently chunking
// state that exceeds the token budget.
type Cache struct {
	mu        sync.Mutex
	full      Store
	chunks    Store
	fullTTL   time.Duration
	chunkTTL  time.Duration
	budget    int
	chunkSize int
	estimator TokenEstimator
	logger    *zap.Logger

	// sessions records the active representation per session so Clear and
	// Stats work without probing both stores.
	sessions map[string]string
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore sets one backend for both full and chunked entries.
func WithStore(s Store) Option {
	return func(c *Cache) {
		c.full = s
		c.chunks = s
	}
}

// WithFullStore sets the backend for full entries.
func WithFullStore(s Store) Option {
	return func(c *Cache) { c.full = s }
}

// WithChunkStore sets the backend for chunk entries and metadata.
func WithChunkStore(s Store) Option {
	return func(c *Cache) { c.chunks = s }
}

// WithTokenBudget sets the size above which context is chunked.
func WithTokenBudget(tokens int) Option {
	return func(c *Cache) {
		if tokens > 0 {
			c.budget = tokens
		}
	}
}

// WithChunkTokens sets the target size of each chunk.
func WithChunkTokens(tokens int) Option {
	return func(c *Cache) {
		if tokens > 0 {
			c.chunkSize = tokens
		}
	}
}

// WithFullTTL sets the lifetime of full entries.
func WithFullTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.fullTTL = ttl }
}

// WithChunkTTL sets the lifetime of chunk entries and metadata.
func WithChunkTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.chunkTTL = ttl }
}

// WithEstimator replaces the token estimation heuristic.
func WithEstimator(e TokenEstimator) Option {
	return func(c *Cache) {
		if e != nil {
			c.estimator = e
		}
	}
}

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Cache. Without a WithStore option an in-memory store
// with a one-hour default TTL is used.
func New(opts ...Option) *Cache {
	c := &Cache{
		fullTTL:   defaultTTL,
		chunkTTL:  defaultTTL,
		budget:    defaultTokenBudget,
		chunkSize: defaultChunkTokens,
		estimator: heuristicEstimator{},
		logger:    zap.NewNop(),
		sessions:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.full == nil || c.chunks == nil {
		shared := NewMemoryStore(defaultTTL, 10*time.Minute)
		if c.full == nil {
			c.full = shared
		}
		if c.chunks == nil {
			c.chunks = shared
		}
	}
	return c
}

func fullKey(id string) string { return "session:" + id + ":full" }

func chunkKey(id string, n int) string { return fmt.Sprintf("session:%s:chunk:%d", id, n) }

func metaKey(id string) string { return "session:" + id + ":chunks:meta" }

type chunkMeta struct {
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store saves the context for a session, choosing the representation by
// estimated token count. Any previous representation is fully superseded.
func (c *Cache) Store(ctx context.Context, sessionID string, conv Context) error {
	serialized, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("serialize context: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.clearLocked(ctx, sessionID); err != nil {
		return err
	}

	tokens := c.estimator.Estimate(string(serialized))
	if tokens <= c.budget {
		if err := c.full.Set(ctx, fullKey(sessionID), string(serialized), c.fullTTL); err != nil {
			return fmt.Errorf("store full entry: %w", err)
		}
		c.sessions[sessionID] = "full"
		c.logger.Debug("stored full context", zap.String("session", sessionID), zap.Int("tokens", tokens))
		return nil
	}

	parts, err := c.chunkMessages(conv.Messages)
	if err != nil {
		return err
	}
	for i, part := range parts {
		if err := c.chunks.Set(ctx, chunkKey(sessionID, i), part, c.chunkTTL); err != nil {
			return fmt.Errorf("store chunk %d: %w", i, err)
		}
	}
	meta, err := json.Marshal(chunkMeta{Count: len(parts), CreatedAt: time.Now()})
	if err != nil {
		return err
	}
	if err := c.chunks.Set(ctx, metaKey(sessionID), string(meta), c.chunkTTL); err != nil {
		return fmt.Errorf("store chunk meta: %w", err)
	}
	c.sessions[sessionID] = "chunked"
	c.logger.Debug("stored chunked context",
		zap.String("session", sessionID), zap.Int("tokens", tokens), zap.Int("chunks", len(parts)))
	return nil
}

// chunkMessages greedily packs messages into serialized chunks of at most
// chunkSize estimated tokens. A single oversized message still gets its own
// chunk rather than being split.
func (c *Cache) chunkMessages(messages []Message) ([]string, error) {
	var parts []string
	var current []Message
	currentTokens := 0

	flush := func() error {
		if len(current) == 0 {
			return nil
		}
		data, err := json.Marshal(Context{Messages: current})
		if err != nil {
			return err
		}
		parts = append(parts, string(data))
		current = nil
		currentTokens = 0
		return nil
	}

	for _, m := range messages {
		tokens := c.estimator.Estimate(m.Content) + c.estimator.Estimate(m.Role)
		if len(current) > 0 && currentTokens+tokens > c.chunkSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		current = append(current, m)
		currentTokens += tokens
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		// Context with no messages still round-trips.
		data, err := json.Marshal(Context{})
		if err != nil {
			return nil, err
		}
		parts = append(parts, string(data))
	}
	return parts, nil
}

// Get retrieves the context for a session. It tries the full entry first,
// then reconstructs from chunks. A nil snapshot means the session has no
// cached context. Partial reconstruction (some chunks expired) is returned
// with Partial set rather than failing.
func (c *Cache) Get(ctx context.Context, sessionID string) (*Snapshot, error) {
	if value, ok, err := c.full.Get(ctx, fullKey(sessionID)); err != nil {
		return nil, fmt.Errorf("read full entry: %w", err)
	} else if ok {
		var conv Context
		if err := json.Unmarshal([]byte(value), &conv); err != nil {
			return nil, fmt.Errorf("decode full entry: %w", err)
		}
		return &Snapshot{Context: conv}, nil
	}

	metaValue, ok, err := c.chunks.Get(ctx, metaKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("read chunk meta: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var meta chunkMeta
	if err := json.Unmarshal([]byte(metaValue), &meta); err != nil {
		return nil, fmt.Errorf("decode chunk meta: %w", err)
	}

	var conv Context
	retrieved := 0
	for i := 0; i < meta.Count; i++ {
		value, ok, err := c.chunks.Get(ctx, chunkKey(sessionID, i))
		if err != nil {
			return nil, fmt.Errorf("read chunk %d: %w", i, err)
		}
		if !ok {
			c.logger.Warn("chunk missing during reconstruction",
				zap.String("session", sessionID), zap.Int("chunk", i), zap.Int("count", meta.Count))
			continue
		}
		var part Context
		if err := json.Unmarshal([]byte(value), &part); err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", i, err)
		}
		conv.Messages = append(conv.Messages, part.Messages...)
		retrieved++
	}
	if retrieved == 0 {
		return nil, nil
	}
	return &Snapshot{Context: conv, Partial: retrieved < meta.Count}, nil
}

// Clear removes all cached state for a session.
func (c *Cache) Clear(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clearLocked(ctx, sessionID)
}

func (c *Cache) clearLocked(ctx context.Context, sessionID string) error {
	if err := c.full.Delete(ctx, fullKey(sessionID)); err != nil {
		return err
	}
	if metaValue, ok, err := c.chunks.Get(ctx, metaKey(sessionID)); err != nil {
		return err
	} else if ok {
		var meta chunkMeta
		if err := json.Unmarshal([]byte(metaValue), &meta); err == nil {
			for i := 0; i < meta.Count; i++ {
				if err := c.chunks.Delete(ctx, chunkKey(sessionID, i)); err != nil {
					return err
				}
			}
		}
		if err := c.chunks.Delete(ctx, metaKey(sessionID)); err != nil {
			return err
		}
	}
	delete(c.sessions, sessionID)
	return nil
}

// Stats reports entry counts per store and the number of tracked sessions.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	fullCount, err := c.full.ItemCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	chunkCount, err := c.chunks.ItemCount(ctx)
	if err != nil {
		return Stats{}, err
	}
	c.mu.Lock()
	sessions := len(c.sessions)
	c.mu.Unlock()
	return Stats{
		Full:     StoreStats{Items: fullCount},
		Chunked:  StoreStats{Items: chunkCount},
		Sessions: sessions,
	}, nil
}
