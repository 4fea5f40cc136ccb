package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bixapp/bix/internal/auth"
	"github.com/bixapp/bix/internal/logging"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, errorResponse{Error: message})
}

// respondAuthError answers with the category's user-facing message and its
// auth/<category> code so clients can classify the failure.
func respondAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	category := auth.Classify(err)
	if category == auth.CategoryUnknown {
		logging.FromContext(ctx).Error("unexpected auth failure", "error", err)
	}

	message := category.Message()
	var authErr *auth.Error
	if errors.As(err, &authErr) && authErr.Detail != "" && category == auth.CategoryWeakPassword {
		message = authErr.Detail
	}

	respondJSON(ctx, w, authStatus(category), errorResponse{Error: message, Code: category.Code()})
}

func authStatus(category auth.Category) int {
	switch category {
	case auth.CategoryInvalidEmail, auth.CategoryWeakPassword:
		return http.StatusBadRequest
	case auth.CategoryWrongPassword:
		return http.StatusUnauthorized
	case auth.CategoryUserDisabled, auth.CategoryOperationNotAllowed:
		return http.StatusForbidden
	case auth.CategoryUserNotFound:
		return http.StatusNotFound
	case auth.CategoryEmailAlreadyInUse:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
