// Package inbox serves a user's direct-message threads and activity feed.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bixapp/bix/internal/models"
	"github.com/bixapp/bix/internal/repositories"
)

// ErrConversationNotFound is returned when a thread does not exist or belongs to another user.
var ErrConversationNotFound = errors.New("conversation not found")

// Store is the persistence the inbox needs.
type Store interface {
	ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	FindConversation(ctx context.Context, ownerID, conversationID string) (models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, message models.Message) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// Service scopes every inbox operation to the calling user.
type Service struct {
	Store   Store
	NowFunc func() time.Time
}

// Conversations lists the user's threads, most recent first.
func (s *Service) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	conversations, err := s.Store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return conversations, nil
}

// Messages returns the thread's messages in the order they were sent.
func (s *Service) Messages(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if err := s.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.Store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// Send appends text to the thread. Blank text is ignored: the returned bool
// reports whether a message was stored.
func (s *Service) Send(ctx context.Context, userID, conversationID, text string) (models.Message, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, false, nil
	}
	if err := s.authorize(ctx, userID, conversationID); err != nil {
		return models.Message{}, false, err
	}

	message := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       userID,
		Text:           text,
		CreatedAt:      s.now(),
	}
	if err := s.Store.AppendMessage(ctx, message); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Message{}, false, ErrConversationNotFound
		}
		return models.Message{}, false, fmt.Errorf("append message: %w", err)
	}
	return message, true, nil
}

// Notifications lists the user's activity, most recent first.
func (s *Service) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	notifications, err := s.Store.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

func (s *Service) authorize(ctx context.Context, userID, conversationID string) error {
	if _, err := s.Store.FindConversation(ctx, userID, conversationID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrConversationNotFound
		}
		return fmt.Errorf("find conversation: %w", err)
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
