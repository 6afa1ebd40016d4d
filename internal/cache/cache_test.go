package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []detector.DetectedObject{{BBox: [4]float64{1, 2, 3, 4}, Label: "dog", Score: 0.8}}

func TestKey(t *testing.T) {
	a := Key([]byte("image"), "iou=0.5")
	assert.Len(t, a, 64)
	assert.Equal(t, a, Key([]byte("image"), "iou=0.5"))
	assert.NotEqual(t, a, Key([]byte("image"), "iou=0.6"))
	assert.NotEqual(t, a, Key([]byte("other"), "iou=0.5"))
}

func TestNew(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	assert.IsType(t, Noop{}, c)

	c, err = New(Options{Backend: BackendMemory, Size: 4})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	c, err = New(Options{Backend: BackendRedis, RedisAddress: "127.0.0.1:1"})
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, c)
	require.NoError(t, c.Close())

	_, err = New(Options{Backend: "memcached"})
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var c Noop
	require.NoError(t, c.Set(context.Background(), "k", sample))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_GetSet(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2, 0)
	require.NoError(t, err)

	_, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "a", sample))
	got, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sample, got)

	// Returned slices are copies.
	got[0].Label = "changed"
	again, _, _ := m.Get(ctx, "a")
	assert.Equal(t, "dog", again[0].Label)

	// Empty results are cached as empty, not as misses.
	require.NoError(t, m.Set(ctx, "empty", nil))
	got, ok, _ = m.Get(ctx, "empty")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestMemory_Eviction(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(2, 0)
	require.NoError(t, err)

	require.NoError(t, m.Set(ctx, "a", sample))
	require.NoError(t, m.Set(ctx, "b", sample))
	_, _, _ = m.Get(ctx, "a")
	require.NoError(t, m.Set(ctx, "c", sample))

	_, ok, _ := m.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok, _ = m.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMemory_TTL(t *testing.T) {
	ctx := context.Background()
	m, err := NewMemory(4, time.Minute)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(ctx, "a", sample))
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

func TestRedis_Unreachable(t *testing.T) {
	r := NewRedis(RedisOptions{Address: "127.0.0.1:1"})
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := r.Get(ctx, "k")
	assert.Error(t, err)
}

// TestRedis_RoundTrip runs against a live server when GODETECT_TEST_REDIS is set.
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("GODETECT_TEST_REDIS")
	if addr == "" {
		t.Skip("GODETECT_TEST_REDIS not set")
	}
	ctx := context.Background()
	r := NewRedis(RedisOptions{Address: addr, TTL: time.Minute})
	defer func() { _ = r.Close() }()
	require.NoError(t, r.Ping(ctx))

	key := Key([]byte(t.Name()), "")
	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, sample))
	got, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sample, got)
}
