package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/go-blogr-api/app/db"
	"github.com/FACorreiaa/go-blogr-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blogr-api/config"
	"github.com/FACorreiaa/go-blogr-api/internal/api/auth"
	"github.com/FACorreiaa/go-blogr-api/internal/api/otp"
	"github.com/FACorreiaa/go-blogr-api/internal/api/user"
	"github.com/FACorreiaa/go-blogr-api/internal/cache"
	"github.com/FACorreiaa/go-blogr-api/internal/mailer"
	"github.com/FACorreiaa/go-blogr-api/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Metrics     *metrics.AppMetrics
	Pool        *pgxpool.Pool
	Redis       *redis.Client
	Gate        *auth.Gate
	AuthHandler *auth.AuthHandler
	UserHandler *user.HandlerImpl
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger, m *metrics.AppMetrics) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	store, redisClient, err := NewStore(cfg)
	if err != nil {
		pool.Close()
		logger.Error("Failed to initialize cache store", slog.Any("error", err))
		return nil, err
	}
	logger.Info("Cache store ready", slog.String("driver", cfg.Cache.Driver))

	c, err := build(cfg, logger, m, pool, store)
	if err != nil {
		pool.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, err
	}
	c.Pool = pool
	c.Redis = redisClient
	return c, nil
}

// build wires repositories, services and handlers on top of db and store.
func build(cfg *config.Config, logger *slog.Logger, m *metrics.AppMetrics, db database.Querier, store cache.Store) (*Container, error) {
	tokens, err := auth.NewTokenService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	otpService := otp.NewService(store, logger,
		otp.WithTTL(cfg.OTP.TTL),
		otp.WithKeyPrefix(cfg.Cache.KeyPrefix),
		otp.WithMetrics(m),
	)

	sender := mailer.New(mailer.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	}, logger)

	// Initialize repositories
	authRepo := auth.NewPostgresAuthRepo(db, logger, m)
	userRepo := user.NewPostgresUserRepo(db, logger, m)

	// Initialize services
	authService := auth.NewAuthService(authRepo, tokens, otpService, sender,
		auth.MailSettings{From: cfg.Mail.From, Subject: cfg.OTP.MailSubject}, logger)
	userService := user.NewUserService(userRepo, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Metrics:     m,
		Gate:        auth.NewGate(tokens, authRepo),
		AuthHandler: auth.NewAuthHandler(authService, logger),
		UserHandler: user.NewHandlerImpl(userService, logger),
	}, nil
}

// NewStore returns the configured OTP cache. The redis client is nil for
// the memory driver.
func NewStore(cfg *config.Config) (cache.Store, *redis.Client, error) {
	switch cfg.Cache.Driver {
	case "", "memory":
		return cache.NewMemoryStore(cfg.Cache.CleanupInterval), nil, nil
	case "redis":
		client, err := cache.NewRedisClient(cfg.Repositories.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		return cache.NewRedisStore(client), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}
}

// RouterConfig returns the router dependencies held by the container.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:            c.AuthHandler,
		UserHandler:            c.UserHandler,
		AuthenticateMiddleware: auth.Authenticate(c.Gate, c.Logger, c.Metrics),
		AllowedOrigins:         c.Config.Server.AllowedOrigins,
		OTPRateLimit:           c.Config.Server.RateLimit.Requests,
		OTPRateWindow:          c.Config.Server.RateLimit.Window,
	}
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
