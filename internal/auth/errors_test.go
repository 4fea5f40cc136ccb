package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: ""},
		{name: "sentinel", err: ErrWrongPassword, want: CategoryWrongPassword},
		{name: "wrapped", err: fmt.Errorf("login: %w", ErrUserDisabled), want: CategoryUserDisabled},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: CategoryNetworkRequestFailed},
		{name: "deadline", err: context.DeadlineExceeded, want: CategoryNetworkRequestFailed},
		{name: "other", err: errors.New("boom"), want: CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %q want %q", got, tt.want)
			}
		})
	}
}

func TestCategoryFromCodeRoundTrip(t *testing.T) {
	all := []Category{
		CategoryInvalidEmail, CategoryUserNotFound, CategoryWrongPassword, CategoryUserDisabled,
		CategoryEmailAlreadyInUse, CategoryWeakPassword, CategoryPopupClosed, CategoryPopupBlocked,
		CategoryOperationNotAllowed, CategoryNetworkRequestFailed,
	}
	for _, c := range all {
		if got := CategoryFromCode(c.Code()); got != c {
			t.Fatalf("CategoryFromCode(%q) = %q", c.Code(), got)
		}
		if c.Message() == CategoryUnknown.Message() {
			t.Fatalf("category %q has no dedicated message", c)
		}
	}

	if got := CategoryFromCode("auth/cancelled-popup-request"); got != CategoryPopupClosed {
		t.Fatalf("expected cancelled popup to map to popup closed got %q", got)
	}
	if got := CategoryFromCode("auth/popup-closed-by-user"); got != CategoryPopupClosed {
		t.Fatalf("expected legacy popup code to map to popup closed got %q", got)
	}
	if got := CategoryPopupClosed.Code(); got != "auth/popup-closed" {
		t.Fatalf("unexpected popup closed code %q", got)
	}
	if got := CategoryFromCode("auth/something-new"); got != CategoryUnknown {
		t.Fatalf("expected unknown got %q", got)
	}
}

func TestErrorIsMatchesCategory(t *testing.T) {
	decoded := &Error{Category: CategoryWeakPassword, Detail: "password must be at least 8 characters"}
	if !errors.Is(decoded, ErrWeakPassword) {
		t.Fatal("expected decoded error to match sentinel")
	}
	if errors.Is(decoded, ErrWrongPassword) {
		t.Fatal("did not expect match across categories")
	}
}
