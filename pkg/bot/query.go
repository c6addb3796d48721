package bot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// QueryService answers mailbox questions for bot users. Every query is
// scoped to the authorized set of the user bound to the asking chat.
type QueryService struct {
	db *sql.DB
}

// NewQueryService creates a new bot query service
func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// BotUser is the panel identity behind a Telegram chat.
type BotUser struct {
	ID       int64
	Username string
}

// UserForChat resolves a chat id to the bound panel user.
func (s *QueryService) UserForChat(ctx context.Context, chatID int64) (*BotUser, error) {
	user := &BotUser{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username FROM users WHERE telegram_chat_id = $1
	`, chatID).Scan(&user.ID, &user.Username)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat %d is not linked to any account: %w", chatID, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat %d: %w", chatID, err)
	}
	return user, nil
}

// AuthorizedEmails lists the user's mailboxes, optionally filtered by a
// substring.
func (s *QueryService) AuthorizedEmails(ctx context.Context, userID int64, filter string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ae.email
		FROM user_authorized_emails uae
		JOIN authorized_emails ae ON ae.id = uae.authorized_email_id
		WHERE uae.user_id = $1
		  AND ($2 = '' OR ae.email ILIKE '%' || $2 || '%')
		ORDER BY ae.email ASC
	`, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorized emails: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// PlatformKeywords lists the subject keywords the user holds on the
// named platform.
func (s *QueryService) PlatformKeywords(ctx context.Context, userID int64, platformName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT psa.subject_keyword
		FROM platform_subject_assignments psa
		JOIN platforms p ON p.id = psa.platform_id
		WHERE psa.user_id = $1 AND p.name ILIKE $2
		ORDER BY psa.subject_keyword ASC
	`, userID, platformName)
	if err != nil {
		return nil, fmt.Errorf("failed to list platform keywords: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

// PlatformsForKeyword lists the platforms on which the user holds the
// given subject keyword.
func (s *QueryService) PlatformsForKeyword(ctx context.Context, userID int64, keyword string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.name
		FROM platform_subject_assignments psa
		JOIN platforms p ON p.id = psa.platform_id
		WHERE psa.user_id = $1 AND psa.subject_keyword ILIKE $2
		ORDER BY p.name ASC
	`, userID, keyword)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms for keyword: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var result []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return result, nil
}
