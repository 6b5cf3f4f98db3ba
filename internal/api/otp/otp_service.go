// Package otp issues and verifies short-lived one-time codes bound to a
// user's identity.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	mathrand "math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/sha3"

	"github.com/FACorreiaa/go-blogr-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blogr-api/internal/cache"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

const (
	CodeLength = 6
	DefaultTTL = 15 * time.Minute

	defaultKeyPrefix = "otp:"
	digits           = "0123456789"
)

var _ Service = (*ServiceImpl)(nil)

// Service issues codes and checks them. Neither operation surfaces cache
// failures to the caller.
type Service interface {
	Issue(ctx context.Context, user *types.User) string
	Verify(ctx context.Context, user *types.User, code string) bool
}

type Option func(*ServiceImpl)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *ServiceImpl) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(s *ServiceImpl) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithMetrics(m *metrics.AppMetrics) Option {
	return func(s *ServiceImpl) { s.metrics = m }
}

type ServiceImpl struct {
	logger   *slog.Logger
	store    cache.Store
	metrics  *metrics.AppMetrics
	ttl      time.Duration
	prefix   string
	generate func() (string, error)
}

func NewService(store cache.Store, logger *slog.Logger, opts ...Option) *ServiceImpl {
	s := &ServiceImpl{
		logger:   logger,
		store:    store,
		ttl:      DefaultTTL,
		prefix:   defaultKeyPrefix,
		generate: generateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key derives the cache key for a user. It depends only on the identity
// fields, so every code for the same person lands under one key.
func (s *ServiceImpl) Key(user *types.User) string {
	identity := fmt.Sprintf("%s + %s + %s + %s", user.Email, user.Username, user.FirstName, user.LastName)
	sum := sha3.Sum256([]byte(identity))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Issue returns the live code for user, creating one when none exists.
func (s *ServiceImpl) Issue(ctx context.Context, user *types.User) string {
	ctx, span := otel.Tracer("OTPService").Start(ctx, "Issue", trace.WithAttributes(
		attribute.String("user.username", user.Username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Issue"), slog.String("username", user.Username))
	key := s.Key(user)

	code, found, err := s.store.Get(ctx, key)
	if err != nil {
		l.WarnContext(ctx, "Failed to read existing code", slog.Any("error", err))
	} else if found {
		l.DebugContext(ctx, "Reusing live code")
		s.countIssued(ctx, true)
		return code
	}

	code, err = s.generate()
	if err != nil {
		l.ErrorContext(ctx, "Secure code generation failed, using fallback", slog.Any("error", err))
		span.RecordError(err)
		code = fallbackCode()
	}

	stored, err := s.store.SetIfAbsent(ctx, key, code, s.ttl)
	switch {
	case err != nil:
		l.WarnContext(ctx, "Failed to store code, it will not verify", slog.Any("error", err))
	case !stored:
		// another request created a code between Get and SetIfAbsent
		winner, found, rerr := s.store.Get(ctx, key)
		if rerr == nil && found {
			l.DebugContext(ctx, "Lost issue race, returning winning code")
			s.countIssued(ctx, true)
			return winner
		}
		l.WarnContext(ctx, "Code vanished after lost issue race", slog.Any("error", rerr))
	}

	s.countIssued(ctx, false)
	return code
}

// Verify reports whether code is the live code for user and consumes it on
// success. A wrong code leaves the live one in place.
func (s *ServiceImpl) Verify(ctx context.Context, user *types.User, code string) bool {
	ctx, span := otel.Tracer("OTPService").Start(ctx, "Verify", trace.WithAttributes(
		attribute.String("user.username", user.Username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Verify"), slog.String("username", user.Username))

	ok, err := s.store.CompareAndDelete(ctx, s.Key(user), code)
	if err != nil {
		l.WarnContext(ctx, "Failed to check code", slog.Any("error", err))
		ok = false
	}

	result := "rejected"
	if ok {
		result = "accepted"
	}
	span.SetAttributes(attribute.String("otp.result", result))
	if s.metrics != nil {
		s.metrics.OTPVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
	return ok
}

func (s *ServiceImpl) countIssued(ctx context.Context, reused bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.OTPIssuedTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("reused", reused)))
}

// generateCode draws CodeLength distinct digits with a partial Fisher-Yates
// shuffle.
func generateCode() (string, error) {
	pool := []byte(digits)
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return "", err
		}
		j := i + int(n.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return string(pool[:CodeLength]), nil
}

// fallbackCode draws distinct digits from the runtime-seeded math/rand/v2
// source. Used only when crypto/rand fails.
func fallbackCode() string {
	code := make([]byte, CodeLength)
	for i, d := range mathrand.Perm(len(digits))[:CodeLength] {
		code[i] = digits[d]
	}
	return string(code)
}
