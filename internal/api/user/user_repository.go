package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	database "github.com/FACorreiaa/go-blogr-api/app/db"
	"github.com/FACorreiaa/go-blogr-api/app/observability/metrics"
	"github.com/FACorreiaa/go-blogr-api/internal/api/auth"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for account and follow-graph persistence.
type UserRepo interface {
	// GetAccount returns the user with follower and following usernames.
	// Returns types.ErrNotFound if the user doesn't exist.
	GetAccount(ctx context.Context, userID string) (*types.User, error)
	FindByUsername(ctx context.Context, username string) (*types.User, error)
	// UpdateAccount applies the non-nil fields of params.
	UpdateAccount(ctx context.Context, userID string, params types.UpdateAccountParams) error
	DeleteAccount(ctx context.Context, userID string) error

	// Follow adds the edge follower -> followee and reports whether it was new.
	Follow(ctx context.Context, followerID, followeeID string) (bool, error)
	// Unfollow removes the edge follower -> followee and reports whether it existed.
	Unfollow(ctx context.Context, followerID, followeeID string) (bool, error)
}

type PostgresUserRepo struct {
	logger  *slog.Logger
	db      database.Querier
	metrics *metrics.AppMetrics
}

func NewPostgresUserRepo(db database.Querier, logger *slog.Logger, m *metrics.AppMetrics) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger:  logger,
		db:      db,
		metrics: m,
	}
}

func (r *PostgresUserRepo) GetAccount(ctx context.Context, userID string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "GetAccount", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users, follows"),
		attribute.String("db.user.id", userID),
	))
	defer span.End()

	start := time.Now()
	user, err := auth.ScanUser(r.db.QueryRow(ctx,
		`SELECT `+auth.UserColumns+` FROM users WHERE id = $1`, userID))
	database.ObserveQuery(ctx, r.metrics, "get_account", start, err)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "query failed")
		}
		return nil, fmt.Errorf("fetching account: %w", err)
	}

	user.Followers, err = r.usernames(ctx, "followers", `
		SELECT u.username FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY u.username`, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	user.Following, err = r.usernames(ctx, "following", `
		SELECT u.username FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY u.username`, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) usernames(ctx context.Context, op, query, userID string) ([]string, error) {
	start := time.Now()
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		database.ObserveQuery(ctx, r.metrics, op, start, err)
		return nil, fmt.Errorf("fetching %s: %w", op, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", op, err)
		}
		names = append(names, name)
	}
	err = rows.Err()
	database.ObserveQuery(ctx, r.metrics, op, start, err)
	if err != nil {
		return nil, fmt.Errorf("iterating %s: %w", op, err)
	}
	return names, nil
}

func (r *PostgresUserRepo) FindByUsername(ctx context.Context, username string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "FindByUsername", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	start := time.Now()
	user, err := auth.ScanUser(r.db.QueryRow(ctx,
		`SELECT `+auth.UserColumns+` FROM users WHERE username = $1`, username))
	database.ObserveQuery(ctx, r.metrics, "find_user_by_username", start, err)
	if err != nil {
		return nil, fmt.Errorf("finding user %q: %w", username, err)
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdateAccount(ctx context.Context, userID string, params types.UpdateAccountParams) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateAccount", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "UpdateAccount"), slog.String("userID", userID))

	var setClauses []string
	var args []any
	set := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
		span.SetAttributes(attribute.Bool("update."+column, true))
	}

	if params.Username != nil {
		set("username", *params.Username)
	}
	if params.FirstName != nil {
		set("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		set("last_name", *params.LastName)
	}
	if params.Bio != nil {
		set("bio", *params.Bio)
	}
	if params.Topics != nil {
		topics := *params.Topics
		if topics == nil {
			topics = []string{}
		}
		set("topics", topics)
	}

	if len(setClauses) == 0 {
		l.DebugContext(ctx, "UpdateAccount called with no fields to update")
		return nil
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, userID)
	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(setClauses, ", "), len(args))

	start := time.Now()
	tag, err := r.db.Exec(ctx, query, args...)
	database.ObserveQuery(ctx, r.metrics, "update_account", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: username already taken", types.ErrConflict)
		}
		l.ErrorContext(ctx, "Failed to update account", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB UPDATE failed")
		return fmt.Errorf("database error updating account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating account: %w", types.ErrNotFound)
	}

	l.InfoContext(ctx, "Account updated")
	return nil
}

// DeleteAccount removes the user. Follow edges go with it through the
// foreign key cascade.
func (r *PostgresUserRepo) DeleteAccount(ctx context.Context, userID string) error {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "DeleteAccount", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID),
	))
	defer span.End()

	start := time.Now()
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	database.ObserveQuery(ctx, r.metrics, "delete_account", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return fmt.Errorf("deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting account: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresUserRepo) Follow(ctx context.Context, followerID, followeeID string) (bool, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Follow", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "follows"),
	))
	defer span.End()

	start := time.Now()
	tag, err := r.db.Exec(ctx, `
		INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID)
	database.ObserveQuery(ctx, r.metrics, "follow", start, err)
	if err != nil {
		// either side was deleted after it was looked up
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return false, fmt.Errorf("following user: %w", types.ErrNotFound)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return false, fmt.Errorf("following user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresUserRepo) Unfollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Unfollow", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "follows"),
	))
	defer span.End()

	start := time.Now()
	tag, err := r.db.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID)
	database.ObserveQuery(ctx, r.metrics, "unfollow", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB DELETE failed")
		return false, fmt.Errorf("unfollowing user: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
