package cache

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConversation(n int) Context {
	var conv Context
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		conv.Messages = append(conv.Messages, Message{
			Role:    role,
			Content: fmt.Sprintf("message %d: %s", i, strings.Repeat("words ", 10)),
		})
	}
	return conv
}

func TestStoreAndGetFull(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store))

	conv := testConversation(4)
	require.NoError(t, c.Store(ctx, "s1", conv))

	// Small context lives under the full key, with no chunk metadata.
	_, ok, err := store.Get(ctx, fullKey("s1"))
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = store.Get(ctx, metaKey("s1"))
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.Partial)
	assert.Equal(t, conv, snap.Context)
}

func TestGetUnknownSession(t *testing.T) {
	c := New()
	snap, err := c.Get(context.Background(), "never-stored")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestStoreAndGetChunked(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store), WithTokenBudget(50), WithChunkTokens(50))

	conv := testConversation(12)
	require.NoError(t, c.Store(ctx, "s1", conv))

	// Oversized context is chunked: meta present, full entry absent.
	metaValue, ok, err := store.Get(ctx, metaKey("s1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, metaValue, `"count"`)
	_, ok, err = store.Get(ctx, fullKey("s1"))
	require.NoError(t, err)
	assert.False(t, ok)

	// Reconstruction preserves message order exactly.
	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.False(t, snap.Partial)
	assert.Equal(t, conv, snap.Context)
}

func TestGetPartialWhenChunksExpire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store), WithTokenBudget(50), WithChunkTokens(50))

	conv := testConversation(12)
	require.NoError(t, c.Store(ctx, "s1", conv))

	// Simulate one chunk expiring out from under the metadata.
	require.NoError(t, store.Delete(ctx, chunkKey("s1", 0)))

	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.True(t, snap.Partial)
	assert.Less(t, len(snap.Context.Messages), len(conv.Messages))
	assert.NotEmpty(t, snap.Context.Messages)
}

func TestGetNilWhenAllChunksExpire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store), WithTokenBudget(50), WithChunkTokens(50))

	require.NoError(t, c.Store(ctx, "s1", testConversation(12)))

	// Delete every chunk but leave the metadata behind.
	for i := 0; ; i++ {
		if _, ok, _ := store.Get(ctx, chunkKey("s1", i)); !ok {
			break
		}
		require.NoError(t, store.Delete(ctx, chunkKey("s1", i)))
	}

	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

// Storing again fully supersedes the previous representation, even when the
// representation changes from chunked to full.
func TestStoreSupersedesRepresentation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store), WithTokenBudget(50), WithChunkTokens(50))

	require.NoError(t, c.Store(ctx, "s1", testConversation(12)))
	_, ok, _ := store.Get(ctx, metaKey("s1"))
	require.True(t, ok)

	small := Context{Messages: []Message{{Role: "user", Content: "hi"}}}
	require.NoError(t, c.Store(ctx, "s1", small))

	// No stale chunks or metadata survive.
	_, ok, _ = store.Get(ctx, metaKey("s1"))
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, chunkKey("s1", 0))
	assert.False(t, ok)

	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, small, snap.Context)
	assert.False(t, snap.Partial)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New(WithTokenBudget(50), WithChunkTokens(50))

	require.NoError(t, c.Store(ctx, "s1", testConversation(12)))
	require.NoError(t, c.Clear(ctx, "s1"))

	snap, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, snap)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Sessions)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	full := NewMemoryStore(time.Hour, time.Hour)
	chunks := NewMemoryStore(time.Hour, time.Hour)
	c := New(
		WithFullStore(full),
		WithChunkStore(chunks),
		WithTokenBudget(50),
		WithChunkTokens(50),
	)

	require.NoError(t, c.Store(ctx, "small", testConversation(1)))
	require.NoError(t, c.Store(ctx, "large", testConversation(12)))

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Full.Items)
	assert.Greater(t, stats.Chunked.Items, 1, "chunks plus metadata")
	assert.Equal(t, 2, stats.Sessions)
}

func TestChunkMessagesNeverSplitsAMessage(t *testing.T) {
	c := New(WithTokenBudget(10), WithChunkTokens(10))

	big := Message{Role: "user", Content: strings.Repeat("x", 400)}
	small := Message{Role: "assistant", Content: "ok"}
	parts, err := c.chunkMessages([]Message{big, small, big})
	require.NoError(t, err)
	require.Len(t, parts, 3)

	for _, part := range parts {
		assert.True(t, strings.HasPrefix(part, `{"messages":[`))
	}
}

func TestHeuristicEstimator(t *testing.T) {
	e := heuristicEstimator{}
	assert.Equal(t, 0, e.Estimate(""))
	assert.Equal(t, 1, e.Estimate("abcd"))
	assert.Equal(t, 2, e.Estimate("abcde"))
}

// fixedEstimator forces a deterministic representation choice regardless of
// content size.
type fixedEstimator struct{ tokens int }

func (f fixedEstimator) Estimate(string) int { return f.tokens }

func TestCustomEstimatorControlsRepresentation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Hour, time.Hour)
	c := New(WithStore(store), WithEstimator(fixedEstimator{tokens: 1000000}))

	require.NoError(t, c.Store(ctx, "s1", testConversation(2)))

	_, ok, _ := store.Get(ctx, fullKey("s1"))
	assert.False(t, ok, "an estimator over budget must force chunking")
	_, ok, _ = store.Get(ctx, metaKey("s1"))
	assert.True(t, ok)
}

func TestKeyLayout(t *testing.T) {
	assert.Equal(t, "session:abc:full", fullKey("abc"))
	assert.Equal(t, "session:abc:chunk:3", chunkKey("abc", 3))
	assert.Equal(t, "session:abc:chunks:meta", metaKey("abc"))
}
