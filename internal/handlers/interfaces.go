package handlers

import (
	"context"

	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/upload"
)

// AccountService implements email/password accounts.
type AccountService interface {
	SignUp(ctx context.Context, email, password, displayName string) (models.User, models.SessionTokens, error)
	SignIn(ctx context.Context, email, password string) (models.User, models.SessionTokens, error)
	Lookup(ctx context.Context, userID string) (models.User, error)
	RequestPasswordReset(ctx context.Context, email string) (bool, error)
}

// SessionManager refreshes, revokes and verifies authentication tokens.
type SessionManager interface {
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
	Verify(accessToken string) (string, error)
}

// CatalogSource returns the current video catalog.
type CatalogSource interface {
	Snapshot(ctx context.Context) (*catalog.Catalog, error)
}

// ProfileDirectory resolves creator profiles against a catalog.
type ProfileDirectory interface {
	Lookup(c *catalog.Catalog, handle string) (models.Profile, bool)
}

// VideoUploader runs the creator upload flow.
type VideoUploader interface {
	Upload(ctx context.Context, req upload.Request) (models.VideoRecord, error)
}

// InboxService serves a user's conversations and notifications.
type InboxService interface {
	Conversations(ctx context.Context, userID string) ([]models.Conversation, error)
	Messages(ctx context.Context, userID, conversationID string) ([]models.Message, error)
	Send(ctx context.Context, userID, conversationID, text string) (models.Message, bool, error)
	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
}
