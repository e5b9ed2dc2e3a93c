package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRoutesKey(t *testing.T) {
	key := RoutesKey("0xabc", "polygon", decimal.RequireFromString("100.5"), "0xdef")
	require.Equal(t, "routes:0xabc:polygon:100.5:0xdef", key)
}

func TestBridgeFeeKey(t *testing.T) {
	key := BridgeFeeKey(42161, 137, decimal.NewFromInt(60), "0xdef")
	require.Equal(t, "bridge_fee:42161:137:60:0xdef", key)
}

func TestRedisStore_SetGetExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + mr.Addr())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	_, err = store.Get(ctx, "routes:missing")
	require.ErrorIs(t, err, ErrMiss)

	require.NoError(t, store.SetEx(ctx, "routes:a", []byte(`{"success":true}`), DefaultTTL))
	got, err := store.Get(ctx, "routes:a")
	require.NoError(t, err)
	require.Equal(t, `{"success":true}`, string(got))
	require.Equal(t, DefaultTTL, mr.TTL("routes:a"))

	mr.FastForward(DefaultTTL + time.Second)
	_, err = store.Get(ctx, "routes:a")
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore("not a url")
	require.Error(t, err)
}

func TestMemoryStore_SetGetExpire(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	ctx := context.Background()
	require.NoError(t, store.SetEx(ctx, "k", []byte("v"), time.Minute))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)
	require.Equal(t, 0, store.Len())
}

func TestMemoryStore_CopiesValue(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, store.SetEx(ctx, "k", value, DefaultTTL))
	value[0] = 'x'

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(got))
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	store := NewMemoryStore(2, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "a", []byte("1"), DefaultTTL))
	require.NoError(t, store.SetEx(ctx, "b", []byte("2"), DefaultTTL))
	require.NoError(t, store.SetEx(ctx, "c", []byte("3"), DefaultTTL))

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, ErrMiss)
	_, err = store.Get(ctx, "c")
	require.NoError(t, err)
}

func TestNew_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := New("redis", "redis://"+mr.Addr(), 0, 0)
	require.NoError(t, err)
	require.IsType(t, &RedisStore{}, s)
	require.NoError(t, s.Close())

	s, err = New("memory", "", 0, 0)
	require.NoError(t, err)
	require.IsType(t, &MemoryStore{}, s)

	_, err = New("memcached", "", 0, 0)
	require.Error(t, err)
}
