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

func newTestService(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(client), mr
}

type listing struct {
	Codes []string `json:"codes"`
}

func TestGetMiss(t *testing.T) {
	svc, _ := newTestService(t)

	var dest listing
	err := svc.Get(context.Background(), "nope", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSetGetRoundTripWithTTL(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "k", listing{Codes: []string{"PASS1J"}}, time.Minute))

	var dest listing
	require.NoError(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, []string{"PASS1J"}, dest.Codes)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, svc.Get(ctx, "k", &dest), ErrCacheMiss)
}

func TestGetOrSetCallsFetcherOnce(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return listing{Codes: []string{"A", "B"}}, nil
	}

	var first, second listing
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &first))
	require.NoError(t, svc.GetOrSet(ctx, "k", time.Minute, fetch, &second))

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
}

func TestGetOrSetPropagatesFetcherError(t *testing.T) {
	svc, _ := newTestService(t)

	var dest listing
	err := svc.GetOrSet(context.Background(), "k", time.Minute, func() (interface{}, error) {
		return nil, errors.New("db down")
	}, &dest)
	assert.ErrorContains(t, err, "db down")
}

func TestVersionIsMonotonic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.Version(ctx, "ver")
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)

	for want := int64(1); want <= 3; want++ {
		got, err := svc.BumpVersion(ctx, "ver")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	v, err = svc.Version(ctx, "ver")
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
}
