package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	store Store
	// elapse moves the store's clock past ttl.
	elapse func(d time.Duration)
}

func fixtures(t *testing.T) map[string]func(t *testing.T) storeFixture {
	return map[string]func(t *testing.T) storeFixture{
		"memory": func(t *testing.T) storeFixture {
			return storeFixture{
				store:  NewMemoryStore(time.Minute),
				elapse: time.Sleep,
			}
		},
		"redis": func(t *testing.T) storeFixture {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { client.Close() })
			return storeFixture{
				store:  NewRedisStore(client),
				elapse: mr.FastForward,
			}
		},
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, newFixture := range fixtures(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("set if absent then get", func(t *testing.T) {
				f := newFixture(t)

				stored, err := f.store.SetIfAbsent(ctx, "k", "123456", time.Minute)
				require.NoError(t, err)
				assert.True(t, stored)

				has, err := f.store.Has(ctx, "k")
				require.NoError(t, err)
				assert.True(t, has)

				v, ok, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, "123456", v)
			})

			t.Run("set if absent keeps live value", func(t *testing.T) {
				f := newFixture(t)

				_, err := f.store.SetIfAbsent(ctx, "k", "first", time.Minute)
				require.NoError(t, err)
				stored, err := f.store.SetIfAbsent(ctx, "k", "second", time.Minute)
				require.NoError(t, err)
				assert.False(t, stored)

				v, _, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, "first", v)
			})

			t.Run("entries expire", func(t *testing.T) {
				f := newFixture(t)

				_, err := f.store.SetIfAbsent(ctx, "k", "v", 50*time.Millisecond)
				require.NoError(t, err)
				f.elapse(100 * time.Millisecond)

				_, ok, err := f.store.Get(ctx, "k")
				require.NoError(t, err)
				assert.False(t, ok)

				stored, err := f.store.SetIfAbsent(ctx, "k", "fresh", time.Minute)
				require.NoError(t, err)
				assert.True(t, stored)
			})

			t.Run("get missing key", func(t *testing.T) {
				f := newFixture(t)

				v, ok, err := f.store.Get(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, ok)
				assert.Empty(t, v)

				has, err := f.store.Has(ctx, "missing")
				require.NoError(t, err)
				assert.False(t, has)
			})

			t.Run("delete", func(t *testing.T) {
				f := newFixture(t)

				_, err := f.store.SetIfAbsent(ctx, "k", "v", time.Minute)
				require.NoError(t, err)
				require.NoError(t, f.store.Delete(ctx, "k"))

				has, err := f.store.Has(ctx, "k")
				require.NoError(t, err)
				assert.False(t, has)
			})

			t.Run("compare and delete", func(t *testing.T) {
				f := newFixture(t)

				_, err := f.store.SetIfAbsent(ctx, "k", "v", time.Minute)
				require.NoError(t, err)

				deleted, err := f.store.CompareAndDelete(ctx, "k", "other")
				require.NoError(t, err)
				assert.False(t, deleted)

				has, err := f.store.Has(ctx, "k")
				require.NoError(t, err)
				assert.True(t, has, "mismatched value must not delete")

				deleted, err = f.store.CompareAndDelete(ctx, "k", "v")
				require.NoError(t, err)
				assert.True(t, deleted)

				deleted, err = f.store.CompareAndDelete(ctx, "k", "v")
				require.NoError(t, err)
				assert.False(t, deleted)
			})

			t.Run("concurrent set if absent has one winner", func(t *testing.T) {
				f := newFixture(t)

				var winners atomic.Int32
				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						stored, err := f.store.SetIfAbsent(ctx, "k", "v", time.Minute)
						assert.NoError(t, err)
						if stored {
							winners.Add(1)
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, int32(1), winners.Load())
			})
		})
	}
}

func TestRedisStore_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	store := NewRedisStore(client)
	mr.Close()

	_, err := store.SetIfAbsent(context.Background(), "k", "v", time.Minute)
	assert.Error(t, err)

	_, _, err = store.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient("redis://" + mr.Addr() + "/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = NewRedisClient("not a url")
	assert.Error(t, err)
}
