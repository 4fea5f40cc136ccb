package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bixapp/bix/internal/db"
	"github.com/bixapp/bix/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresUserRepository provides PostgreSQL-backed persistence for users.
type PostgresUserRepository struct {
	pool db.Pool
}

// NewPostgresUserRepository constructs a user repository backed by PostgreSQL.
func NewPostgresUserRepository(pool db.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Create persists a new user record.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, display_name, avatar_url, disabled, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, user.ID, user.Email, user.Password, user.DisplayName, user.AvatarURL, user.Disabled, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail fetches a user by their email address.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID fetches a user by primary key.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *PostgresUserRepository) findOne(ctx context.Context, column, value string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	// column is one of two literals chosen above, never caller input.
	row := conn.QueryRow(ctx, `
        SELECT id, email, password_hash, display_name, avatar_url, disabled, created_at, updated_at
        FROM users
        WHERE `+column+` = $1
    `, value)

	var user models.User
	if err := row.Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.AvatarURL, &user.Disabled, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("select user by %s: %w", column, err)
	}

	return user, nil
}

// PostgresVideoRepository is the document store for uploaded video records.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.VideoRecord) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tags := video.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (id, owner_id, username, user_image, caption, video_url, audio_title, tags, likes, comments, shares, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    `, video.ID, video.OwnerID, video.Username, video.UserImage, video.Caption, video.VideoURL, video.AudioTitle,
		tags, video.Likes, video.Comments, video.Shares, video.CreatedAt)
	if err != nil {
		if isPgCode(err, pgUniqueViolation) {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// List returns the newest limit uploads, ordered oldest first so appending
// them to the seed catalog keeps a stable order.
func (r *PostgresVideoRepository) List(ctx context.Context, limit int) ([]models.VideoRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, username, user_image, caption, video_url, audio_title, tags, likes, comments, shares, created_at
        FROM (
            SELECT id, owner_id, username, user_image, caption, video_url, audio_title, tags, likes, comments, shares, created_at
            FROM videos
            ORDER BY created_at DESC, id DESC
            LIMIT $1
        ) AS recent
        ORDER BY created_at ASC, id ASC
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.VideoRecord
	for rows.Next() {
		var v models.VideoRecord
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Username, &v.UserImage, &v.Caption, &v.VideoURL, &v.AudioTitle,
			&v.Tags, &v.Likes, &v.Comments, &v.Shares, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		v.CreatedAt = v.CreatedAt.UTC()
		videos = append(videos, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// PostgresInboxRepository provides PostgreSQL-backed conversations, messages and notifications.
type PostgresInboxRepository struct {
	pool db.Pool
}

// NewPostgresInboxRepository constructs an inbox repository backed by PostgreSQL.
func NewPostgresInboxRepository(pool db.Pool) *PostgresInboxRepository {
	return &PostgresInboxRepository{pool: pool}
}

// ListConversations returns the owner's threads, most recent first.
func (r *PostgresInboxRepository) ListConversations(ctx context.Context, ownerID string) ([]models.Conversation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, owner_id, peer_username, peer_avatar, unread_count, last_message, last_message_at
        FROM conversations
        WHERE owner_id = $1
        ORDER BY last_message_at DESC
    `, ownerID)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}

	return conversations, nil
}

// FindConversation loads one thread, scoped to its owner.
func (r *PostgresInboxRepository) FindConversation(ctx context.Context, ownerID, conversationID string) (models.Conversation, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT id, owner_id, peer_username, peer_avatar, unread_count, last_message, last_message_at
        FROM conversations
        WHERE id = $1 AND owner_id = $2
    `, conversationID, ownerID)

	c, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, ErrNotFound
		}
		return models.Conversation{}, err
	}
	return c, nil
}

// ListMessages returns a thread's messages, oldest first.
func (r *PostgresInboxRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, conversation_id, sender_id, body, created_at
        FROM messages
        WHERE conversation_id = $1
        ORDER BY created_at ASC, id ASC
    `, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = m.CreatedAt.UTC()
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// AppendMessage inserts the message and bumps the thread preview in one transaction.
func (r *PostgresInboxRepository) AppendMessage(ctx context.Context, message models.Message) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
        INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, message.ID, message.ConversationID, message.SenderID, message.Text, message.CreatedAt); err != nil {
		switch {
		case isPgCode(err, pgUniqueViolation):
			return ErrConflict
		case isPgCode(err, pgForeignKeyViolation):
			return ErrNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
        UPDATE conversations
        SET last_message = $2, last_message_at = $3
        WHERE id = $1
    `, message.ConversationID, message.Text, message.CreatedAt); err != nil {
		return fmt.Errorf("update conversation preview: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append message: %w", err)
	}

	return nil
}

// ListNotifications returns a user's activity, most recent first.
func (r *PostgresInboxRepository) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT id, user_id, kind, actor, body, created_at
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT 50
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Actor, &n.Text, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}

	return notifications, nil
}

func scanConversation(row pgx.Row) (models.Conversation, error) {
	var (
		c      models.Conversation
		lastAt time.Time
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.PeerUsername, &c.PeerAvatar, &c.UnreadCount, &c.LastMessage, &lastAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Conversation{}, err
		}
		return models.Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	c.LastMessageAt = lastAt.UTC()
	return c, nil
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

var _ UserRepository = (*PostgresUserRepository)(nil)
var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ InboxRepository = (*PostgresInboxRepository)(nil)
