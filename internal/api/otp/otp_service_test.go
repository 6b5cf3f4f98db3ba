package otp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/go-blogr-api/internal/cache"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Has(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, value, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	args := m.Called(ctx, key, value)
	return args.Bool(0), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func alice() *types.User {
	return &types.User{Email: "alice@example.com", Username: "alice", FirstName: "Alice", LastName: "Liddell"}
}

func TestKey(t *testing.T) {
	s := NewService(cache.NewMemoryStore(time.Minute), testLogger())

	k1 := s.Key(alice())
	k2 := s.Key(alice())
	assert.Equal(t, k1, k2)
	assert.Regexp(t, `^otp:[0-9a-f]{64}$`, k1)

	other := alice()
	other.LastName = "Smith"
	assert.NotEqual(t, k1, s.Key(other))

	// fields outside the identity do not affect the key
	withID := alice()
	withID.ID = "some-id"
	withID.Bio = "hello"
	assert.Equal(t, k1, s.Key(withID))

	prefixed := NewService(cache.NewMemoryStore(time.Minute), testLogger(), WithKeyPrefix("reset:"))
	assert.Regexp(t, `^reset:`, prefixed.Key(alice()))
}

func TestGenerateCode_DistinctDigits(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		require.Regexp(t, sixDigits, code)

		seen := map[rune]bool{}
		for _, c := range code {
			require.False(t, seen[c], "digit %q repeated in %s", c, code)
			seen[c] = true
		}
	}
}

func TestIssue(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent within the window", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())

		first := s.Issue(ctx, alice())
		second := s.Issue(ctx, alice())

		assert.Regexp(t, sixDigits, first)
		assert.Equal(t, first, second)
	})

	t.Run("new code after expiry", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger(), WithTTL(20*time.Millisecond))
		codes := []string{"123456", "654321"}
		s.generate = func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}

		assert.Equal(t, "123456", s.Issue(ctx, alice()))
		time.Sleep(40 * time.Millisecond)
		assert.Equal(t, "654321", s.Issue(ctx, alice()))
	})

	t.Run("concurrent issuers agree on one code", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())

		const n = 32
		var wg sync.WaitGroup
		results := make([]string, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = s.Issue(ctx, alice())
			}()
		}
		wg.Wait()

		for _, r := range results {
			assert.Equal(t, results[0], r)
		}
	})

	t.Run("generator failure falls back to a usable code", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())
		s.generate = func() (string, error) { return "", errors.New("entropy unavailable") }

		var code string
		require.NotPanics(t, func() { code = s.Issue(ctx, alice()) })
		assert.Regexp(t, sixDigits, code)
		assert.True(t, s.Verify(ctx, alice(), code))
	})

	t.Run("lost race returns winner", func(t *testing.T) {
		store := new(MockStore)
		s := NewService(store, testLogger())
		s.generate = func() (string, error) { return "111111", nil }
		key := s.Key(alice())

		store.On("Get", mock.Anything, key).Return("", false, nil).Once()
		store.On("SetIfAbsent", mock.Anything, key, "111111", DefaultTTL).Return(false, nil).Once()
		store.On("Get", mock.Anything, key).Return("987654", true, nil).Once()

		assert.Equal(t, "987654", s.Issue(ctx, alice()))
		store.AssertExpectations(t)
	})

	t.Run("store failure still returns a code", func(t *testing.T) {
		store := new(MockStore)
		s := NewService(store, testLogger())
		key := s.Key(alice())

		store.On("Get", mock.Anything, key).Return("", false, errors.New("connection refused"))
		store.On("SetIfAbsent", mock.Anything, key, mock.Anything, DefaultTTL).Return(false, errors.New("connection refused"))

		assert.Regexp(t, sixDigits, s.Issue(ctx, alice()))
		store.AssertExpectations(t)
	})
}

func TestVerify(t *testing.T) {
	ctx := context.Background()

	t.Run("consumed exactly once", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())
		code := s.Issue(ctx, alice())

		assert.True(t, s.Verify(ctx, alice(), code))
		assert.False(t, s.Verify(ctx, alice(), code))
	})

	t.Run("wrong code keeps the live one", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())
		code := s.Issue(ctx, alice())

		wrong := "000000"
		if code == wrong {
			wrong = "999999"
		}
		assert.False(t, s.Verify(ctx, alice(), wrong))
		assert.True(t, s.Verify(ctx, alice(), code))
	})

	t.Run("code is bound to identity", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())
		code := s.Issue(ctx, alice())

		bob := &types.User{Email: "bob@example.com", Username: "bob"}
		assert.False(t, s.Verify(ctx, bob, code))
		assert.True(t, s.Verify(ctx, alice(), code))
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger(), WithTTL(20*time.Millisecond))
		code := s.Issue(ctx, alice())
		time.Sleep(40 * time.Millisecond)

		assert.False(t, s.Verify(ctx, alice(), code))
	})

	t.Run("store failure is a rejection", func(t *testing.T) {
		store := new(MockStore)
		s := NewService(store, testLogger())
		store.On("CompareAndDelete", mock.Anything, s.Key(alice()), "123456").Return(false, errors.New("timeout"))

		assert.False(t, s.Verify(ctx, alice(), "123456"))
	})

	t.Run("concurrent verifiers consume once", func(t *testing.T) {
		s := NewService(cache.NewMemoryStore(time.Minute), testLogger())
		code := s.Issue(ctx, alice())

		const n = 16
		var wg sync.WaitGroup
		var mu sync.Mutex
		accepted := 0
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if s.Verify(ctx, alice(), code) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, accepted)
	})
}

func TestFallbackCode(t *testing.T) {
	for range 200 {
		code := fallbackCode()
		require.Len(t, code, CodeLength)
		seen := map[rune]bool{}
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9')
			assert.False(t, seen[c], "repeated digit in %s", code)
			seen[c] = true
		}
	}
}
