package repositories

import (
	"context"

	"github.com/bixapp/bix/internal/models"
)

// InboxRepository stores direct-message threads and activity notifications.
type InboxRepository interface {
	ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error)
	FindConversation(ctx context.Context, ownerID, conversationID string) (models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, message models.Message) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
}
