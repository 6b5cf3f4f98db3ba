package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-blogr-api/app/db"
	"github.com/FACorreiaa/go-blogr-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

const uniqueViolation = "23505"

// UserColumns is the select list matching ScanUser.
const UserColumns = `id::text, email, username, first_name, last_name, bio, topics, password_hash, created_at, updated_at`

// UserDirectory looks up stored users. Lookups that match nothing return
// types.ErrNotFound.
type UserDirectory interface {
	FindByEmailAndUsername(ctx context.Context, email, username string) (*types.User, error)
	FindByEmail(ctx context.Context, email string) (*types.User, error)
}

// AuthRepo is the persistence the authentication flows need.
type AuthRepo interface {
	UserDirectory
	Create(ctx context.Context, params types.CreateUserParams, passwordHash string) (*types.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

type PostgresAuthRepo struct {
	logger  *slog.Logger
	db      database.Querier
	metrics *metrics.AppMetrics
}

func NewPostgresAuthRepo(db database.Querier, logger *slog.Logger, m *metrics.AppMetrics) *PostgresAuthRepo {
	return &PostgresAuthRepo{logger: logger, db: db, metrics: m}
}

// ScanUser reads one row selected with UserColumns.
func ScanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.Bio, &u.Topics, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	if u.Topics == nil {
		u.Topics = []string{}
	}
	return &u, nil
}

func (r *PostgresAuthRepo) FindByEmailAndUsername(ctx context.Context, email, username string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "FindByEmailAndUsername", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	user, err := ScanUser(r.db.QueryRow(ctx,
		`SELECT `+UserColumns+` FROM users WHERE email = $1 AND username = $2`,
		email, username))
	database.ObserveQuery(ctx, r.metrics, "find_user_by_email_and_username", start, err)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
		}
		return nil, fmt.Errorf("finding user %q: %w", username, err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) FindByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "FindByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	user, err := ScanUser(r.db.QueryRow(ctx,
		`SELECT `+UserColumns+` FROM users WHERE email = $1`, email))
	database.ObserveQuery(ctx, r.metrics, "find_user_by_email", start, err)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresAuthRepo) Create(ctx context.Context, params types.CreateUserParams, passwordHash string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("username", params.Username))

	topics := params.Topics
	if topics == nil {
		topics = []string{}
	}

	start := time.Now()
	user, err := ScanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (id, email, username, first_name, last_name, bio, topics, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+UserColumns,
		uuid.NewString(), params.Email, params.Username, params.FirstName, params.LastName,
		params.Bio, topics, passwordHash))
	database.ObserveQuery(ctx, r.metrics, "create_user", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			l.WarnContext(ctx, "Email or username already taken", slog.String("constraint", pgErr.ConstraintName))
			return nil, fmt.Errorf("%w: email or username already taken", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return nil, fmt.Errorf("creating user: %w", err)
	}

	user.Followers, user.Following = []string{}, []string{}
	l.InfoContext(ctx, "User created", slog.String("userID", user.ID))
	return user, nil
}

func (r *PostgresAuthRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "UpdatePassword", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID),
	))
	defer span.End()

	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, userID)
	database.ObserveQuery(ctx, r.metrics, "update_password", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating password: %w", types.ErrNotFound)
	}
	return nil
}
