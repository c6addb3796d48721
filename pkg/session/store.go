package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

const keyPrefix = "session:"

// Session is the server-side state behind one token.
type Session struct {
	Token     string     `json:"-"`
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	Role      authz.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

// Actor returns the authorization identity this session carries.
func (s *Session) Actor() authz.Actor {
	return authz.Actor{ID: s.UserID, Role: s.Role}
}

// Store keeps sessions in redis with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore creates a new session store
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Create opens a session for the user and returns it with a fresh token.
func (s *Store) Create(ctx context.Context, userID int64, username string, role authz.Role) (*Session, error) {
	sess := &Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+sess.Token, payload, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get looks a token up and slides its expiry forward. Unknown or
// expired tokens come back as ErrNotFound.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, fmt.Errorf("session token: %w", authz.ErrNotFound)
	}

	payload, err := s.client.Get(ctx, keyPrefix+token).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("session: %w", authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &Session{}
	if err := json.Unmarshal(payload, sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	sess.Token = token

	// Sliding expiry; a best-effort touch, losing it only shortens the
	// session to the original TTL.
	s.client.Expire(ctx, keyPrefix+token, s.ttl)

	return sess, nil
}

// Delete closes a session. Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
