package redisstore

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableClient points at a closed port so every round trip fails fast.
func unreachableClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

var _ persist.Store = (*Store)(nil)

func TestStore_ReadFailureYieldsDefault(t *testing.T) {
	s := New(unreachableClient(t), Options{KeyPrefix: "test:", Timeout: 200 * time.Millisecond}, nil)

	assert.Equal(t, 7, s.GetInt("upgrade_move_speed_boots", 7))
}

func TestStore_LogsReadFailures(t *testing.T) {
	var buf bytes.Buffer
	s := New(unreachableClient(t), Options{Timeout: 200 * time.Millisecond}, logging.NewWithWriter(&buf, "redisstore", "info"))

	assert.Equal(t, 3, s.GetInt("tutorial_complete", 3))
	assert.Contains(t, buf.String(), "redis read failed")
	assert.Contains(t, buf.String(), `"key":"tutorial_complete"`)
}

func TestNew_NilLoggerDiscards(t *testing.T) {
	s := New(unreachableClient(t), Options{Timeout: 200 * time.Millisecond}, nil)
	require.NotNil(t, s.logger)
	assert.Equal(t, 3, s.GetInt("tutorial_complete", 3))
}

func TestStore_WritesAreReadBackFromCache(t *testing.T) {
	s := New(unreachableClient(t), Options{Timeout: 200 * time.Millisecond}, nil)

	s.SetInt("economy_balance", 250)
	assert.Equal(t, 250, s.GetInt("economy_balance", 0))
	assert.Equal(t, 1, s.Dirty())
}

func TestStore_FlushFailureKeepsKeysDirty(t *testing.T) {
	s := New(unreachableClient(t), Options{Timeout: 200 * time.Millisecond}, nil)
	s.SetInt("a", 1)
	s.SetInt("b", 2)

	err := s.Flush()
	require.Error(t, err)
	assert.Equal(t, 2, s.Dirty())
}

func TestStore_FlushWithNothingDirtyIsNoop(t *testing.T) {
	s := New(unreachableClient(t), Options{}, nil)
	assert.NoError(t, s.Flush())
}

func TestStore_ClosedStoreRefusesFlush(t *testing.T) {
	s := New(unreachableClient(t), Options{}, nil)
	require.NoError(t, s.Close())

	err := s.Flush()
	assert.True(t, errors.Is(err, persist.ErrClosed))
}
