package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/catalog"
	"github.com/bixapp/bix/internal/inbox"
	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/upload"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type accountStub struct {
	users     map[string]models.User
	passwords map[string]string
	signupErr error
}

func newAccountStub() *accountStub {
	return &accountStub{
		users: map[string]models.User{
			"user-1": {ID: "user-1", Email: "ada@example.com", DisplayName: "ada"},
		},
		passwords: map[string]string{"ada@example.com": "supersafe"},
	}
}

func (a *accountStub) SignUp(_ context.Context, email, password, displayName string) (models.User, models.SessionTokens, error) {
	if a.signupErr != nil {
		return models.User{}, models.SessionTokens{}, a.signupErr
	}
	if len(password) < 8 {
		return models.User{}, models.SessionTokens{}, &auth.Error{Category: auth.CategoryWeakPassword, Detail: "password must be at least 8 characters"}
	}
	user := models.User{ID: "user-2", Email: email, DisplayName: displayName}
	a.users[user.ID] = user
	return user, models.SessionTokens{AccessToken: "access-user-2", RefreshToken: "refresh-user-2"}, nil
}

func (a *accountStub) SignIn(_ context.Context, email, password string) (models.User, models.SessionTokens, error) {
	expected, ok := a.passwords[email]
	if !ok {
		return models.User{}, models.SessionTokens{}, auth.ErrUserNotFound
	}
	if expected != password {
		return models.User{}, models.SessionTokens{}, auth.ErrWrongPassword
	}
	return a.users["user-1"], models.SessionTokens{AccessToken: "access-user-1", RefreshToken: "refresh-user-1"}, nil
}

func (a *accountStub) Lookup(_ context.Context, userID string) (models.User, error) {
	user, ok := a.users[userID]
	if !ok {
		return models.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (a *accountStub) RequestPasswordReset(_ context.Context, email string) (bool, error) {
	if email == "" || email == "not-an-email" {
		return false, auth.ErrInvalidEmail
	}
	_, ok := a.passwords[email]
	return ok, nil
}

type sessionStub struct {
	revoked []string
}

func (s *sessionStub) Refresh(_ context.Context, token string) (models.SessionTokens, error) {
	if token != "refresh-user-1" {
		return models.SessionTokens{}, auth.ErrSessionNotFound
	}
	return models.SessionTokens{AccessToken: "access-user-1b", RefreshToken: "refresh-user-1b"}, nil
}

func (s *sessionStub) Revoke(_ context.Context, token string) {
	s.revoked = append(s.revoked, token)
}

func (s *sessionStub) Verify(token string) (string, error) {
	switch token {
	case "access-user-1":
		return "user-1", nil
	case "access-user-2":
		return "user-2", nil
	default:
		return "", auth.ErrInvalidAccessToken
	}
}

type uploaderStub struct {
	got upload.Request
	err error
}

func (u *uploaderStub) Upload(_ context.Context, req upload.Request) (models.VideoRecord, error) {
	u.got = req
	if u.err != nil {
		return models.VideoRecord{}, u.err
	}
	if _, err := io.ReadAll(req.Body); err != nil {
		return models.VideoRecord{}, err
	}
	return models.VideoRecord{ID: "video-new", OwnerID: req.Author.ID, Username: upload.Username(req.Author), Caption: req.Caption}, nil
}

type inboxStub struct {
	sent []string
}

func (i *inboxStub) Conversations(_ context.Context, userID string) ([]models.Conversation, error) {
	if userID != "user-1" {
		return nil, nil
	}
	return []models.Conversation{{ID: "c-1", OwnerID: "user-1", PeerUsername: "dance_star"}}, nil
}

func (i *inboxStub) Messages(_ context.Context, userID, conversationID string) ([]models.Message, error) {
	if userID != "user-1" || conversationID != "c-1" {
		return nil, inbox.ErrConversationNotFound
	}
	return []models.Message{{ID: "m-1", ConversationID: "c-1", Text: "hey"}}, nil
}

func (i *inboxStub) Send(_ context.Context, userID, conversationID, text string) (models.Message, bool, error) {
	if text == "" || text == "   " {
		return models.Message{}, false, nil
	}
	if conversationID != "c-1" {
		return models.Message{}, false, inbox.ErrConversationNotFound
	}
	i.sent = append(i.sent, text)
	return models.Message{ID: "m-2", ConversationID: conversationID, SenderID: userID, Text: text}, true, nil
}

func (i *inboxStub) Notifications(context.Context, string) ([]models.Notification, error) {
	return nil, nil
}

type failingLibrary struct{}

func (failingLibrary) Snapshot(context.Context) (*catalog.Catalog, error) {
	return nil, errors.New("database unavailable")
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]models.VideoRecord{
		{ID: "v1", Username: "dance_star", Caption: "Dance moves", Tags: []string{"dance"}},
		{ID: "v2", Username: "travel_addict", Caption: "Bali sunsets", Tags: []string{"travel"}},
		{ID: "v3", Username: "food_lover", Caption: "Ramen night", Tags: []string{"food"}},
		{ID: "v4", Username: "dance_star", Caption: "Salsa", Tags: []string{"dance", "music"}},
		{ID: "v5", Username: "comedy_king", Caption: "Office pranks", Tags: []string{"comedy"}},
	})
}
