package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/skillswap/chatsync/internal/models"
)

// PostgresStore persists the stub backend's data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects and ensures the schema exists.
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			avatar_url TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			user_id UUID NOT NULL REFERENCES users(id),
			PRIMARY KEY (conversation_id, user_id)
		);
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			sender_id UUID NOT NULL REFERENCES users(id),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation_created
			ON messages (conversation_id, created_at);
	`)
	return err
}

func (s *PostgresStore) CreateUser(username, displayName, avatarURL, passwordHash string) (*Account, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE username = $1", username).Scan(&count); err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	account := &Account{
		User: models.User{
			ID:          uuid.NewString(),
			Username:    username,
			DisplayName: displayName,
			AvatarURL:   avatarURL,
		},
		PasswordHash: passwordHash,
	}
	_, err := s.db.Exec(
		"INSERT INTO users (id, username, display_name, avatar_url, password_hash) VALUES ($1, $2, $3, $4, $5)",
		account.ID, account.Username, account.DisplayName, account.AvatarURL, account.PasswordHash,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *PostgresStore) GetAccountByUsername(username string) (*Account, error) {
	account := &Account{}
	err := s.db.QueryRow(
		"SELECT id, username, display_name, avatar_url, password_hash FROM users WHERE username = $1",
		username,
	).Scan(&account.ID, &account.Username, &account.DisplayName, &account.AvatarURL, &account.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *PostgresStore) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(
		"SELECT id, username, display_name, avatar_url FROM users WHERE id = $1",
		id,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.AvatarURL)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PostgresStore) CreateConversation(participantIDs ...string) (*models.Conversation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	if _, err := tx.Exec("INSERT INTO conversations (id) VALUES ($1)", id); err != nil {
		return nil, err
	}
	for _, userID := range participantIDs {
		_, err := tx.Exec(
			"INSERT INTO conversation_participants (conversation_id, user_id) VALUES ($1, $2)",
			id, userID,
		)
		if err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetConversation(id)
}

func (s *PostgresStore) ListConversations(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(`
		SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE p.user_id = $1
		GROUP BY c.id, c.created_at
		ORDER BY COALESCE(MAX(m.created_at), c.created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.GetConversation(id)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	return out, nil
}

func (s *PostgresStore) GetConversation(conversationID string) (*models.Conversation, error) {
	var exists bool
	err := s.db.QueryRow("SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)", conversationID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrConversationNotFound
	}

	conv := &models.Conversation{ID: conversationID}
	rows, err := s.db.Query(`
		SELECT u.id, u.username, u.display_name, u.avatar_url
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var username string
		var participant models.Participant
		if err := rows.Scan(&participant.ID, &username, &participant.DisplayName, &participant.AvatarURL); err != nil {
			return nil, err
		}
		if participant.DisplayName == "" {
			participant.DisplayName = username
		}
		conv.Participants = append(conv.Participants, participant)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var content string
	var createdAt time.Time
	err = s.db.QueryRow(
		"SELECT content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT 1",
		conversationID,
	).Scan(&content, &createdAt)
	if err == nil {
		conv.LastMessage = &models.MessagePreview{Content: content, CreatedAt: createdAt}
	} else if err != sql.ErrNoRows {
		return nil, err
	}
	return conv, nil
}

func (s *PostgresStore) ListMessages(conversationID string) ([]models.Message, error) {
	if _, err := s.GetConversation(conversationID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(
		"SELECT id, conversation_id, sender_id, content, created_at FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC",
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Message{}
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateMessage(conversationID, senderID, content string) (*models.Message, error) {
	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	err := s.db.QueryRow(
		"INSERT INTO messages (id, conversation_id, sender_id, content) VALUES ($1, $2, $3, $4) RETURNING created_at",
		msg.ID, msg.ConversationID, msg.SenderID, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }
