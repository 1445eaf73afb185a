package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seatCount struct {
	Available int `json:"available"`
}

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(client), mr
}

func TestGetMiss(t *testing.T) {
	svc, _ := newTestService(t)

	var out seatCount
	err := svc.Get(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGetOrSetCallsFetcherOnce(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return seatCount{Available: 42}, nil
	}

	var first, second seatCount
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, 42, second.Available)
	assert.True(t, mr.Exists("k"))

	mr.FastForward(2 * time.Minute)
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))
	assert.Equal(t, 2, calls)
}

func TestGetOrSetPropagatesFetcherError(t *testing.T) {
	svc, _ := newTestService(t)
	boom := errors.New("boom")

	var out seatCount
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) {
		return nil, boom
	}, &out)
	assert.ErrorIs(t, err, boom)
}

func TestSetIfAbsent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	ok, err := svc.SetIfAbsent(ctx, "evt_1", "seen", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.SetIfAbsent(ctx, "evt_1", "seen", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeletePattern(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "boxoffice:inventory:seat_map:show:a", 1, time.Minute))
	require.NoError(t, svc.Set(ctx, "boxoffice:inventory:seat_map:show:b", 2, time.Minute))
	require.NoError(t, svc.Set(ctx, "boxoffice:other", 3, time.Minute))

	require.NoError(t, svc.DeletePattern(ctx, "boxoffice:inventory:*"))

	assert.False(t, mr.Exists("boxoffice:inventory:seat_map:show:a"))
	assert.False(t, mr.Exists("boxoffice:inventory:seat_map:show:b"))
	assert.True(t, svc.Exists(ctx, "boxoffice:other"))
}
