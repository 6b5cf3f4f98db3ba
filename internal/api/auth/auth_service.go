package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-blogr-api/internal/api/otp"
	"github.com/FACorreiaa/go-blogr-api/internal/mailer"
	"github.com/FACorreiaa/go-blogr-api/internal/types"
)

const (
	minPasswordLength = 8
	// bcrypt rejects longer input
	maxPasswordLength = 72

	defaultMailSubject = "OTP mail from Blogr"
)

var otpFormat = regexp.MustCompile(`^[0-9]{6}$`)

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	Register(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	Login(ctx context.Context, email, password string) (*types.LoginResponse, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

// MailSettings configures the one-time code mail.
type MailSettings struct {
	From    string
	Subject string
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	tokens TokenIssuer
	otp    otp.Service
	mailer mailer.Sender
	mail   MailSettings
}

func NewAuthService(repo AuthRepo, tokens TokenIssuer, otpService otp.Service, sender mailer.Sender, mail MailSettings, logger *slog.Logger) *AuthServiceImpl {
	if mail.Subject == "" {
		mail.Subject = defaultMailSubject
	}
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		tokens: tokens,
		otp:    otpService,
		mailer: sender,
		mail:   mail,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, params types.CreateUserParams) (*types.User, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Register")
	defer span.End()

	l := s.logger.With(slog.String("method", "Register"), slog.String("username", params.Username))

	if err := validateRegistration(params); err != nil {
		l.WarnContext(ctx, "Rejected registration", slog.Any("error", err))
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.repo.Create(ctx, params, string(hash))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID))
	return user, nil
}

// Login checks the password and returns a bearer token. Unknown email and
// wrong password both return types.ErrNotFound.
func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.LoginResponse, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "Login for unknown email")
		}
		return nil, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		l.InfoContext(ctx, "Login with wrong password", slog.String("username", user.Username))
		return nil, fmt.Errorf("password mismatch: %w", types.ErrNotFound)
	}

	token, err := s.tokens.Issue(user.Identity())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "token issue failed")
		return nil, err
	}

	l.InfoContext(ctx, "User logged in", slog.String("username", user.Username))
	return &types.LoginResponse{User: user, Token: token}, nil
}

// ForgotPassword mails the user's live one-time code.
func (s *AuthServiceImpl) ForgotPassword(ctx context.Context, email string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ForgotPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ForgotPassword"))

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	code := s.otp.Issue(ctx, user)
	body := fmt.Sprintf("Here is your OTP from Blogr: %s", code)
	if err = s.mailer.Send(ctx, s.mail.Subject, body, s.mail.From, user.Email); err != nil {
		l.ErrorContext(ctx, "Failed to send code", slog.String("username", user.Username), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "mail failed")
		return fmt.Errorf("%w: %v", types.ErrDelivery, err)
	}

	l.InfoContext(ctx, "Code sent", slog.String("username", user.Username))
	return nil
}

// ResetPassword replaces the password after consuming a valid code. A wrong
// code returns types.ErrInvalidOTP and changes nothing.
func (s *AuthServiceImpl) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "ResetPassword")
	defer span.End()

	l := s.logger.With(slog.String("method", "ResetPassword"))

	if !otpFormat.MatchString(code) {
		return fmt.Errorf("%w: otp must be %d digits", types.ErrValidation, otp.CodeLength)
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	// hash before Verify so a hashing failure never consumes the code
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hashing password: %w", err)
	}

	if !s.otp.Verify(ctx, user, code) {
		l.WarnContext(ctx, "Invalid code submitted", slog.String("username", user.Username))
		return types.ErrInvalidOTP
	}

	if err = s.repo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	l.InfoContext(ctx, "Password reset", slog.String("username", user.Username))
	return nil
}

func validateRegistration(p types.CreateUserParams) error {
	if addr, err := mail.ParseAddress(p.Email); err != nil || addr.Address != p.Email {
		return fmt.Errorf("%w: a valid email is required", types.ErrValidation)
	}
	if p.Username == "" {
		return fmt.Errorf("%w: username is required", types.ErrValidation)
	}
	if err := validatePassword(p.Password); err != nil {
		return err
	}
	return types.ValidateProfile(p.Bio, p.Topics)
}

func validatePassword(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", types.ErrValidation, minPasswordLength)
	case len(password) > maxPasswordLength:
		return fmt.Errorf("%w: password must be at most %d bytes", types.ErrValidation, maxPasswordLength)
	}
	return nil
}
