package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/payroll-sync/internal/repository/memory"
)

func TestStaticNormalizesIdentifiers(t *testing.T) {
	set, err := Static{" E 001 ", "E002", "　"}.PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"E001": {}, "E002": {}}, set)
}

func TestRepositoryLookup(t *testing.T) {
	store := memory.NewStore()
	store.AddPendingNewHire("N 100")

	set, err := NewRepositoryLookup(store.Approvals()).PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, set, "N100")
}

func TestCachedLookupWorksWhenRedisUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	cached := NewCachedLookup(Static{"E001"}, client, "test:reservations", time.Minute, zap.NewNop())
	set, err := cached.PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, set, "E001")
}

type failingLookup struct{}

func (failingLookup) PendingIdentifiers(context.Context) (map[string]struct{}, error) {
	return nil, errors.New("approvals unavailable")
}

func newMiniredis(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestCachedLookupSeesReservationAddedAfterPriming(t *testing.T) {
	store := memory.NewStore()
	client := newMiniredis(t)
	cached := NewCachedLookup(NewRepositoryLookup(store.Approvals()), client, "test:reservations", time.Minute, zap.NewNop())

	set, err := cached.PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, set)

	store.AddPendingNewHire("N9")

	set, err = cached.PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Contains(t, set, "N9")

	mirrored, err := client.SMembers(context.Background(), "test:reservations").Result()
	require.NoError(t, err)
	assert.Contains(t, mirrored, "N9")
}

func TestCachedLookupServesMirrorWhenInnerFails(t *testing.T) {
	client := newMiniredis(t)
	primed := NewCachedLookup(Static{"E001"}, client, "test:reservations", time.Minute, zap.NewNop())
	_, err := primed.PendingIdentifiers(context.Background())
	require.NoError(t, err)

	degraded := NewCachedLookup(failingLookup{}, client, "test:reservations", time.Minute, zap.NewNop())
	set, err := degraded.PendingIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"E001": {}}, set)
}

func TestCachedLookupFailsWithoutMirror(t *testing.T) {
	client := newMiniredis(t)

	_, err := NewCachedLookup(failingLookup{}, client, "test:reservations", time.Minute, zap.NewNop()).
		PendingIdentifiers(context.Background())
	assert.ErrorContains(t, err, "approvals unavailable")

	primed := NewCachedLookup(Static{"E001"}, client, "test:reservations", 0, zap.NewNop())
	_, err = primed.PendingIdentifiers(context.Background())
	require.NoError(t, err)

	_, err = NewCachedLookup(failingLookup{}, client, "test:reservations", 0, zap.NewNop()).
		PendingIdentifiers(context.Background())
	assert.Error(t, err)
}
