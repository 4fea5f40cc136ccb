package auth

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Category is the user-facing classification of an authentication failure.
type Category string

const (
	CategoryInvalidEmail         Category = "invalid-email"
	CategoryUserNotFound         Category = "user-not-found"
	CategoryWrongPassword        Category = "wrong-password"
	CategoryUserDisabled         Category = "user-disabled"
	CategoryEmailAlreadyInUse    Category = "email-already-in-use"
	CategoryWeakPassword         Category = "weak-password"
	CategoryPopupClosed          Category = "popup-closed"
	CategoryPopupBlocked         Category = "popup-blocked"
	CategoryOperationNotAllowed  Category = "operation-not-allowed"
	CategoryNetworkRequestFailed Category = "network-request-failed"
	CategoryUnknown              Category = "unknown"
)

const codePrefix = "auth/"

var (
	ErrInvalidEmail        = &Error{Category: CategoryInvalidEmail}
	ErrUserNotFound        = &Error{Category: CategoryUserNotFound}
	ErrWrongPassword       = &Error{Category: CategoryWrongPassword}
	ErrUserDisabled        = &Error{Category: CategoryUserDisabled}
	ErrEmailAlreadyInUse   = &Error{Category: CategoryEmailAlreadyInUse}
	ErrWeakPassword        = &Error{Category: CategoryWeakPassword}
	ErrPopupClosed         = &Error{Category: CategoryPopupClosed}
	ErrPopupBlocked        = &Error{Category: CategoryPopupBlocked}
	ErrOperationNotAllowed = &Error{Category: CategoryOperationNotAllowed}
	ErrNetworkRequest      = &Error{Category: CategoryNetworkRequestFailed}
)

// Error is an authentication failure tagged with its category.
type Error struct {
	Category Category
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return e.Category.Code() + ": " + e.Detail
	}
	return e.Category.Code()
}

// Is matches any *Error of the same category, so errors.Is(err, ErrWrongPassword)
// holds for errors decoded from the wire.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Category == e.Category
}

// Code returns the wire code, e.g. "auth/wrong-password".
func (c Category) Code() string {
	return codePrefix + string(c)
}

// Message returns the text shown to the user for this category.
func (c Category) Message() string {
	switch c {
	case CategoryInvalidEmail:
		return "Invalid email address format."
	case CategoryUserDisabled:
		return "This account has been disabled."
	case CategoryUserNotFound:
		return "No account found with this email."
	case CategoryWrongPassword:
		return "Incorrect password."
	case CategoryEmailAlreadyInUse:
		return "This email is already in use."
	case CategoryWeakPassword:
		return "Password is too weak."
	case CategoryPopupClosed:
		return "Sign-in popup was closed before completing the sign in."
	case CategoryPopupBlocked:
		return "Sign-in popup was blocked by the browser."
	case CategoryOperationNotAllowed:
		return "This sign-in method is not enabled."
	case CategoryNetworkRequestFailed:
		return "Network error. Please check your connection."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// CategoryFromCode parses a wire code. Unrecognised codes map to CategoryUnknown.
func CategoryFromCode(code string) Category {
	c := Category(strings.TrimPrefix(strings.TrimSpace(code), codePrefix))
	switch c {
	case CategoryInvalidEmail, CategoryUserNotFound, CategoryWrongPassword, CategoryUserDisabled,
		CategoryEmailAlreadyInUse, CategoryWeakPassword, CategoryPopupClosed, CategoryPopupBlocked,
		CategoryOperationNotAllowed, CategoryNetworkRequestFailed:
		return c
	case "popup-closed-by-user", "cancelled-popup-request":
		return CategoryPopupClosed
	default:
		return CategoryUnknown
	}
}

// Classify maps any error returned by an auth operation onto a Category.
func Classify(err error) Category {
	if err == nil {
		return ""
	}

	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Category
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryNetworkRequestFailed
	}

	return CategoryUnknown
}
