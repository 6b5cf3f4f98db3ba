package user

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

// ruleError is a follow-graph rule violation. Its text is the client message.
type ruleError struct{ msg string }

func (e *ruleError) Error() string { return e.msg }
func (e *ruleError) Unwrap() error { return types.ErrValidation }

var (
	ErrSelfFollow       error = &ruleError{"can't follow self"}
	ErrSelfUnfollow     error = &ruleError{"can't unfollow self"}
	ErrAlreadyFollowing error = &ruleError{"already following user"}
	ErrNotFollowing     error = &ruleError{"not following user"}
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the account operations of an authenticated user.
type UserService interface {
	GetAccount(ctx context.Context, principal *types.User) (*types.User, error)
	UpdateAccount(ctx context.Context, principal *types.User, params types.UpdateAccountParams) (*types.User, error)
	DeleteAccount(ctx context.Context, principal *types.User) error

	// Follow and Unfollow return the principal's refreshed account.
	Follow(ctx context.Context, principal *types.User, username string) (*types.User, error)
	Unfollow(ctx context.Context, principal *types.User, username string) (*types.User, error)
}

type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
}

func NewUserService(repo UserRepo, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *UserServiceImpl) GetAccount(ctx context.Context, principal *types.User) (*types.User, error) {
	l := s.logger.With(slog.String("method", "GetAccount"), slog.String("userID", principal.ID))
	l.DebugContext(ctx, "Fetching account")

	user, err := s.repo.GetAccount(ctx, principal.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch account", slog.Any("error", err))
		return nil, fmt.Errorf("error fetching account: %w", err)
	}
	return user, nil
}

func (s *UserServiceImpl) UpdateAccount(ctx context.Context, principal *types.User, params types.UpdateAccountParams) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateAccount", trace.WithAttributes(
		attribute.String("user.id", principal.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "UpdateAccount"), slog.String("userID", principal.ID))

	if params.Username != nil && *params.Username == "" {
		return nil, fmt.Errorf("%w: username must not be empty", types.ErrValidation)
	}
	bio := ""
	if params.Bio != nil {
		bio = *params.Bio
	}
	var topics []string
	if params.Topics != nil {
		topics = *params.Topics
	}
	if err := types.ValidateProfile(bio, topics); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateAccount(ctx, principal.ID, params); err != nil {
		l.ErrorContext(ctx, "Failed to update account", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return nil, fmt.Errorf("error updating account: %w", err)
	}

	user, err := s.repo.GetAccount(ctx, principal.ID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error fetching updated account: %w", err)
	}

	l.InfoContext(ctx, "Account updated")
	span.SetStatus(codes.Ok, "Account updated")
	return user, nil
}

func (s *UserServiceImpl) DeleteAccount(ctx context.Context, principal *types.User) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "DeleteAccount", trace.WithAttributes(
		attribute.String("user.id", principal.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "DeleteAccount"), slog.String("userID", principal.ID))

	if err := s.repo.DeleteAccount(ctx, principal.ID); err != nil {
		l.ErrorContext(ctx, "Failed to delete account", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("error deleting account: %w", err)
	}

	l.InfoContext(ctx, "Account deleted")
	return nil
}

func (s *UserServiceImpl) Follow(ctx context.Context, principal *types.User, username string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Follow", trace.WithAttributes(
		attribute.String("user.id", principal.ID),
		attribute.String("target.username", username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Follow"), slog.String("username", principal.Username), slog.String("target", username))

	if principal.Username == username {
		return nil, ErrSelfFollow
	}
	target, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	added, err := s.repo.Follow(ctx, principal.ID, target.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to follow user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "follow failed")
		return nil, err
	}
	if !added {
		return nil, ErrAlreadyFollowing
	}

	l.InfoContext(ctx, "User followed")
	return s.repo.GetAccount(ctx, principal.ID)
}

func (s *UserServiceImpl) Unfollow(ctx context.Context, principal *types.User, username string) (*types.User, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "Unfollow", trace.WithAttributes(
		attribute.String("user.id", principal.ID),
		attribute.String("target.username", username),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Unfollow"), slog.String("username", principal.Username), slog.String("target", username))

	if principal.Username == username {
		return nil, ErrSelfUnfollow
	}
	target, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	removed, err := s.repo.Unfollow(ctx, principal.ID, target.ID)
	if err != nil {
		l.ErrorContext(ctx, "Failed to unfollow user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unfollow failed")
		return nil, err
	}
	if !removed {
		return nil, ErrNotFollowing
	}

	l.InfoContext(ctx, "User unfollowed")
	return s.repo.GetAccount(ctx, principal.ID)
}
