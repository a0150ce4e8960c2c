package redis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newUnreachable returns a client pointed at a socket that does not exist.
// The background connect loop keeps failing; every operation must degrade
// to a no-op without panicking or blocking.
func newUnreachable(t *testing.T) *Client {
	t.Helper()
	c := New(filepath.Join(t.TempDir(), "no-such.sock"), nil)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestUnreachableSocketDegradesToNoops(t *testing.T) {
	c := newUnreachable(t)
	ctx := context.Background()

	assert.False(t, c.Connected())

	var dest string
	assert.False(t, c.Get(ctx, "k", &dest))
	assert.Empty(t, dest)
	assert.False(t, c.Set(ctx, "k", "v", time.Minute))
	assert.False(t, c.Delete(ctx, "k"))
	assert.Equal(t, 0, c.DeletePattern(ctx, "projects:*"))
	assert.False(t, c.FlushAll(ctx))
}

func TestUnreachableSocketStats(t *testing.T) {
	c := newUnreachable(t)

	stats := c.Stats(context.Background())
	assert.False(t, stats.Connected)
	assert.Zero(t, stats.Keys)
	assert.Zero(t, stats.MemoryBytes)
}

func TestPingReportsError(t *testing.T) {
	c := newUnreachable(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := c.Ping(ctx)
	require.Error(t, err)
}

func TestParseUsedMemory(t *testing.T) {
	info := "# Memory\r\nused_memory:1048576\r\nused_memory_human:1.00M\r\n"
	assert.Equal(t, int64(1048576), parseUsedMemory(info))
	assert.Equal(t, int64(0), parseUsedMemory("# Memory\r\nmaxmemory:0\r\n"))
	assert.Equal(t, int64(0), parseUsedMemory(""))
}
