package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/repositories"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// MaxPasswordBytes is the longest password bcrypt can hash.
const MaxPasswordBytes = 72

// UserStore captures the persistence operations required for account management.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// TokenIssuer hands out session tokens for a signed-in user.
type TokenIssuer interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
}

// Service implements email/password sign-up and sign-in. Failures carry an
// auth.Category so clients can show a precise message.
type Service struct {
	Users         UserStore
	Tokens        TokenIssuer
	SignupEnabled bool
	NowFunc       func() time.Time
}

// SignUp registers a new account and signs it in.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (models.User, models.SessionTokens, error) {
	if !s.SignupEnabled {
		return models.User{}, models.SessionTokens{}, auth.ErrOperationNotAllowed
	}

	email = NormalizeEmail(email)
	if !validEmail(email) {
		return models.User{}, models.SessionTokens{}, auth.ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return models.User{}, models.SessionTokens{}, &auth.Error{
			Category: auth.CategoryWeakPassword,
			Detail:   fmt.Sprintf("password must be at least %d characters", MinPasswordLength),
		}
	}
	if len(password) > MaxPasswordBytes {
		return models.User{}, models.SessionTokens{}, &auth.Error{
			Category: auth.CategoryWeakPassword,
			Detail:   fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes),
		}
	}

	if _, err := s.Users.FindByEmail(ctx, email); err == nil {
		return models.User{}, models.SessionTokens{}, auth.ErrEmailAlreadyInUse
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, models.SessionTokens{}, fmt.Errorf("lookup existing account: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, models.SessionTokens{}, fmt.Errorf("hash password: %w", err)
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	now := s.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    string(hashed),
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, models.SessionTokens{}, auth.ErrEmailAlreadyInUse
		}
		return models.User{}, models.SessionTokens{}, fmt.Errorf("create account: %w", err)
	}

	tokens, err := s.Tokens.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, models.SessionTokens{}, fmt.Errorf("issue session: %w", err)
	}

	return user, tokens, nil
}

// SignIn verifies credentials and issues a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, models.SessionTokens, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return models.User{}, models.SessionTokens{}, auth.ErrInvalidEmail
	}

	user, err := s.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, models.SessionTokens{}, auth.ErrUserNotFound
		}
		return models.User{}, models.SessionTokens{}, fmt.Errorf("lookup account: %w", err)
	}

	if user.Disabled {
		return models.User{}, models.SessionTokens{}, auth.ErrUserDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.User{}, models.SessionTokens{}, auth.ErrWrongPassword
	}

	tokens, err := s.Tokens.Issue(ctx, user.ID)
	if err != nil {
		return models.User{}, models.SessionTokens{}, fmt.Errorf("issue session: %w", err)
	}

	return user, tokens, nil
}

// Lookup returns the account for an authenticated user id.
func (s *Service) Lookup(ctx context.Context, userID string) (models.User, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, auth.ErrUserNotFound
		}
		return models.User{}, err
	}
	if user.Disabled {
		return models.User{}, auth.ErrUserDisabled
	}
	return user, nil
}

// RequestPasswordReset validates the address and reports whether an account
// exists. Callers must not reveal the answer to the requester.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (bool, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) {
		return false, auth.ErrInvalidEmail
	}

	if _, err := s.Users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup account: %w", err)
	}
	return true, nil
}

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}

// validEmail accepts a bare addr-spec only; display-name forms are rejected.
func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
