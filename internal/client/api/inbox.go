package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bixapp/bix/internal/models"
)

// Conversations lists the signed-in user's threads.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var resp struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	err := c.doAuthed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodGet, "/api/v1/inbox/conversations", token, nil, &resp)
	})
	return resp.Conversations, err
}

// Messages lists a thread's messages in send order.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var resp struct {
		Messages []models.Message `json:"messages"`
	}
	err := c.doAuthed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodGet, "/api/v1/inbox/conversations/"+url.PathEscape(conversationID)+"/messages", token, nil, &resp)
	})
	return resp.Messages, err
}

// Send posts text to a thread. It reports false when the backend ignored a
// blank message.
func (c *Client) Send(ctx context.Context, conversationID, text string) (models.Message, bool, error) {
	var resp struct {
		Message *models.Message `json:"message"`
	}
	err := c.doAuthed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodPost, "/api/v1/inbox/conversations/"+url.PathEscape(conversationID)+"/messages", token, map[string]string{"text": text}, &resp)
	})
	if err != nil || resp.Message == nil {
		return models.Message{}, false, err
	}
	return *resp.Message, true, nil
}

// Notifications lists the signed-in user's activity.
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var resp struct {
		Notifications []models.Notification `json:"notifications"`
	}
	err := c.doAuthed(ctx, func(token string) error {
		return c.doJSON(ctx, http.MethodGet, "/api/v1/inbox/notifications", token, nil, &resp)
	})
	return resp.Notifications, err
}
