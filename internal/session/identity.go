package session

import "fmt"

// Kind distinguishes the resolver states.
type Kind int

const (
	// KindPending means resolution has not finished. Consumers must neither
	// render protected content nor redirect while pending.
	KindPending Kind = iota
	KindUnauthenticated
	KindGuest
	KindAuthenticated
)

func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindGuest:
		return "guest"
	case KindAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Identity is the resolved viewer. Only guest and authenticated identities carry an ID.
type Identity struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Resolved reports whether resolution has completed.
func (i Identity) Resolved() bool {
	return i.Kind != KindPending
}

// SignedIn reports whether the identity may see protected content.
func (i Identity) SignedIn() bool {
	return i.Kind == KindGuest || i.Kind == KindAuthenticated
}

// AuthUser is the payload delivered by the auth stream for a signed-in user.
type AuthUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

func authenticated(u AuthUser) Identity {
	return Identity{
		Kind:        KindAuthenticated,
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		AvatarURL:   u.AvatarURL,
	}
}
