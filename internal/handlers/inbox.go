package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bixapp/bix/internal/inbox"
	"github.com/bixapp/bix/internal/logging"
	"github.com/bixapp/bix/internal/models"
)

// InboxHandler serves the authenticated user's messages and notifications.
type InboxHandler struct {
	Inbox InboxService
}

// Conversations handles GET /api/v1/inbox/conversations.
func (h InboxHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	conversations, err := h.Inbox.Conversations(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list conversations", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load conversations")
		return
	}
	if conversations == nil {
		conversations = []models.Conversation{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"conversations": conversations})
}

// Messages handles GET /api/v1/inbox/conversations/{id}/messages.
func (h InboxHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	messages, err := h.Inbox.Messages(ctx, userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondInboxError(w, r, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"messages": messages})
}

// Send handles POST /api/v1/inbox/conversations/{id}/messages. Blank text is
// accepted and ignored with 204.
func (h InboxHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	message, sent, err := h.Inbox.Send(ctx, userID, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		h.respondInboxError(w, r, err)
		return
	}
	if !sent {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"message": message})
}

// Notifications handles GET /api/v1/inbox/notifications.
func (h InboxHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.caller(w, r)
	if !ok {
		return
	}

	notifications, err := h.Inbox.Notifications(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("list notifications", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to load notifications")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h InboxHandler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.Inbox == nil {
		respondError(ctx, w, http.StatusInternalServerError, "inbox unavailable")
		return "", false
	}
	userID := logging.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userID, true
}

func (h InboxHandler) respondInboxError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	if errors.Is(err, inbox.ErrConversationNotFound) {
		respondError(ctx, w, http.StatusNotFound, "conversation not found")
		return
	}
	logging.FromContext(ctx).Error("inbox request failed", "error", err)
	respondError(ctx, w, http.StatusInternalServerError, "unable to load conversation")
}

type sendMessageRequest struct {
	Text string `json:"text"`
}
