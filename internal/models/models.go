package models

import "time"

// User represents an account within the Bix platform.
type User struct {
	ID          string
	Email       string
	Password    string
	DisplayName string
	AvatarURL   string
	Disabled    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VideoRecord is a catalog entry describing one video and its engagement counters.
type VideoRecord struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"ownerId,omitempty"`
	Username   string    `json:"username"`
	UserImage  string    `json:"userImage"`
	Caption    string    `json:"caption"`
	VideoURL   string    `json:"videoUrl"`
	AudioTitle string    `json:"audioTitle,omitempty"`
	Likes      int       `json:"likes"`
	Comments   int       `json:"comments"`
	Shares     int       `json:"shares"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// Profile is the public view of a creator.
type Profile struct {
	Username    string        `json:"username"`
	DisplayName string        `json:"displayName"`
	Bio         string        `json:"bio"`
	Avatar      string        `json:"avatar"`
	Followers   int           `json:"followers"`
	Following   int           `json:"following"`
	Verified    bool          `json:"isVerified"`
	Videos      []VideoRecord `json:"videos"`
}

// Conversation is a direct-message thread between two users.
type Conversation struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	PeerUsername  string    `json:"username"`
	PeerAvatar    string    `json:"avatar"`
	LastMessage   string    `json:"lastMessage"`
	UnreadCount   int       `json:"unread"`
	LastMessageAt time.Time `json:"lastMessageAt"`
}

// Message is a single entry in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Notification is an activity entry shown in the inbox.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"type"`
	Actor     string    `json:"username"`
	Text      string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

const (
	NotificationLike    = "like"
	NotificationFollow  = "follow"
	NotificationComment = "comment"
	NotificationMention = "mention"
)

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
