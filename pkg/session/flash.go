package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const flashPrefix = "flash:"

// flashTTL bounds how long an unread outcome message survives. Flash
// state carries one redirect's worth of context, not durable data.
const flashTTL = 5 * time.Minute

// SetFlash records the one-shot outcome message for a session. A later
// PopFlash consumes it. Setting a new message replaces any unread one.
func (s *Store) SetFlash(ctx context.Context, token, message string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Set(ctx, flashPrefix+token, message, flashTTL).Err(); err != nil {
		return fmt.Errorf("failed to store flash message: %w", err)
	}
	return nil
}

// PopFlash returns and clears the session's pending message. No pending
// message comes back as an empty string, not an error.
func (s *Store) PopFlash(ctx context.Context, token string) (string, error) {
	msg, err := s.client.GetDel(ctx, flashPrefix+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load flash message: %w", err)
	}
	return msg, nil
}
