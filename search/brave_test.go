package search

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBraveRetryDelay(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Second, braveRetryDelay(h))

	h.Set("X-RateLimit-Reset", "2, 1419704")
	assert.Equal(t, 2*time.Second, braveRetryDelay(h))

	h.Set("X-RateLimit-Reset", "garbage")
	assert.Equal(t, time.Second, braveRetryDelay(h))

	h.Set("X-RateLimit-Reset", "0")
	assert.Equal(t, time.Second, braveRetryDelay(h))
}

func TestBraveNextDelay(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Second, braveNextDelay(h))

	h.Set("X-RateLimit-Remaining", "0, 14832")
	assert.Equal(t, time.Second, braveNextDelay(h))

	h.Set("X-RateLimit-Remaining", "1, 14832")
	assert.Equal(t, time.Duration(0), braveNextDelay(h))
}

func TestBraveMissingKey(t *testing.T) {
	b := NewBrave("")
	_, err := b.Search(context.Background(), "anything")
	assert.Error(t, err)
}

func TestTavilyMissingKey(t *testing.T) {
	tv := NewTavily("", "basic")
	_, err := tv.Search(context.Background(), "anything")
	assert.Error(t, err)
}
