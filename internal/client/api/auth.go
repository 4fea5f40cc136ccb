package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/session"
)

const restoreTimeout = 10 * time.Second

// AuthClient is the backend's auth stream. It restores the stored session
// once, on first subscription, and then reports every sign-in and sign-out.
type AuthClient struct {
	api *Client

	restoreOnce sync.Once

	mu          sync.Mutex
	restored    bool
	current     *session.AuthUser
	subscribers map[int]func(*session.AuthUser)
	nextID      int
}

// NewAuthClient returns an AuthClient backed by api.
func NewAuthClient(api *Client) *AuthClient {
	return &AuthClient{
		api:         api,
		subscribers: make(map[int]func(*session.AuthUser)),
	}
}

// Subscribe implements session.AuthStream. fn is called with the restored
// user (or nil) as soon as it is known, and on every later change.
func (a *AuthClient) Subscribe(fn func(*session.AuthUser)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subscribers[id] = fn
	restored := a.restored
	current := copyUser(a.current)
	a.mu.Unlock()

	if restored {
		fn(current)
	} else {
		a.restoreOnce.Do(func() { go a.restore() })
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.subscribers, id)
			a.mu.Unlock()
		})
	}
}

// SignIn authenticates with email and password. Failures are *auth.Error.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (session.AuthUser, error) {
	return a.authenticate(ctx, "/api/v1/auth/login", map[string]string{"email": email, "password": password})
}

// SignUp creates an account and signs it in. Failures are *auth.Error.
func (a *AuthClient) SignUp(ctx context.Context, email, password, displayName string) (session.AuthUser, error) {
	return a.authenticate(ctx, "/api/v1/auth/signup", map[string]string{
		"email":       email,
		"password":    password,
		"displayName": displayName,
	})
}

// SignOut implements session.AuthStream. The refresh token is revoked on a
// best-effort basis; local credentials are always cleared.
func (a *AuthClient) SignOut(ctx context.Context) error {
	if creds, ok := a.api.Credentials(); ok {
		err := a.api.doJSON(ctx, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refreshToken": creds.Tokens.RefreshToken}, nil)
		if err != nil {
			a.api.logger.Warn("revoke refresh token", "error", err)
		}
	}

	if err := a.api.clearCredentials(); err != nil {
		return err
	}
	a.publish(nil)
	return nil
}

// RequestPasswordReset asks the backend to send reset instructions.
func (a *AuthClient) RequestPasswordReset(ctx context.Context, email string) error {
	if err := a.api.doJSON(ctx, http.MethodPost, "/api/v1/auth/password-reset", "", map[string]string{"email": email}, nil); err != nil {
		return authError(err)
	}
	return nil
}

func (a *AuthClient) authenticate(ctx context.Context, path string, body map[string]string) (session.AuthUser, error) {
	var resp authResponse
	if err := a.api.doJSON(ctx, http.MethodPost, path, "", body, &resp); err != nil {
		return session.AuthUser{}, authError(err)
	}

	user := resp.User.authUser()
	if err := a.api.saveCredentials(Credentials{Tokens: resp.Tokens, User: user}); err != nil {
		return session.AuthUser{}, err
	}
	a.publish(&user)
	return user, nil
}

// restore resolves the stored session against the backend. When the backend
// is unreachable the cached user is reported, so an offline device keeps its
// account instead of falling back to a guest.
func (a *AuthClient) restore() {
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	defer cancel()

	creds, ok := a.api.Credentials()
	if !ok {
		a.publish(nil)
		return
	}

	var resp meResponse
	err := a.api.doAuthed(ctx, func(token string) error {
		return a.api.doJSON(ctx, http.MethodGet, "/api/v1/auth/me", token, nil, &resp)
	})

	switch {
	case err == nil:
		user := resp.User.authUser()
		if fresh, ok := a.api.Credentials(); ok {
			fresh.User = user
			if err := a.api.saveCredentials(fresh); err != nil {
				a.api.logger.Warn("cache signed-in user", "error", err)
			}
		}
		a.publish(&user)
	case auth.Classify(err) == auth.CategoryNetworkRequestFailed:
		a.api.logger.Warn("backend unreachable, using cached account", "error", err)
		user := creds.User
		a.publish(&user)
	case errors.Is(err, ErrNotSignedIn), isRejected(err):
		a.api.logger.Info("stored session is no longer valid", "error", err)
		if err := a.api.clearCredentials(); err != nil {
			a.api.logger.Warn("clear stored credentials", "error", err)
		}
		a.publish(nil)
	default:
		a.api.logger.Warn("restore session", "error", err)
		user := creds.User
		a.publish(&user)
	}
}

func (a *AuthClient) publish(user *session.AuthUser) {
	a.mu.Lock()
	a.restored = true
	a.current = copyUser(user)
	fns := make([]func(*session.AuthUser), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(copyUser(user))
	}
}

func isRejected(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || apiErr.Status == http.StatusNotFound
}

func copyUser(u *session.AuthUser) *session.AuthUser {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

type userPayload struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

func (u userPayload) authUser() session.AuthUser {
	return session.AuthUser{ID: u.ID, DisplayName: u.DisplayName, Email: u.Email, AvatarURL: u.AvatarURL}
}

type authResponse struct {
	User   userPayload          `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

type meResponse struct {
	User userPayload `json:"user"`
}
