package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// GuestKey is the device-local storage key holding the persisted guest.
const GuestKey = "bix-guest-user"

const (
	GuestDisplayName = "Guest User"
	GuestAvatarURL   = "https://randomuser.me/api/portraits/lego/1.jpg"
)

var (
	ErrMalformedRecord = errors.New("malformed guest record")
	ErrNotGuestRecord  = errors.New("record is not a guest")
)

// GuestRecord is the persisted form of a guest identity.
type GuestRecord struct {
	Identifier  string  `json:"identifier"`
	IsGuest     bool    `json:"isGuest"`
	DisplayName string  `json:"displayName"`
	Email       *string `json:"email"`
	AvatarRef   *string `json:"avatarRef"`
}

// ParseGuestRecord decodes and validates a persisted guest. It never panics;
// every invalid input yields an error wrapping ErrMalformedRecord or
// ErrNotGuestRecord.
func ParseGuestRecord(raw []byte) (GuestRecord, error) {
	var rec GuestRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return GuestRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if strings.TrimSpace(rec.Identifier) == "" {
		return GuestRecord{}, fmt.Errorf("%w: missing identifier", ErrMalformedRecord)
	}
	if !rec.IsGuest {
		return GuestRecord{}, ErrNotGuestRecord
	}
	return rec, nil
}

// Encode serializes the record for storage.
func (r GuestRecord) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Identity converts the record into a guest identity.
func (r GuestRecord) Identity() Identity {
	id := Identity{
		Kind:        KindGuest,
		ID:          r.Identifier,
		DisplayName: r.DisplayName,
	}
	if id.DisplayName == "" {
		id.DisplayName = GuestDisplayName
	}
	if r.AvatarRef != nil {
		id.AvatarURL = *r.AvatarRef
	}
	return id
}
