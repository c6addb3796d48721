package emails

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// AuthorizedEmail is a catalog entry
type AuthorizedEmail struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides read access to the authorized-email catalog.
type Store struct {
	db *sql.DB
}

// NewStore creates a new email catalog store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a catalog entry by id.
func (s *Store) Get(ctx context.Context, emailID int64) (*AuthorizedEmail, error) {
	query := `SELECT id, email, created_at FROM authorized_emails WHERE id = $1`

	email := &AuthorizedEmail{}
	err := s.db.QueryRowContext(ctx, query, emailID).Scan(&email.ID, &email.Email, &email.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("authorized email %d: %w", emailID, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorized email %d: %w", emailID, err)
	}
	return email, nil
}

// List returns catalog entries matching the query, paged and constrained
// to the actor's scope. The scope applies inside the SQL so pages stay
// full for restricted admins. hasMore reports whether another page
// exists.
func (s *Store) List(ctx context.Context, scope authz.Scope, query string, limit, offset int) ([]*AuthorizedEmail, bool, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// An admin delegated nothing sees an empty catalog.
	if !scope.Unrestricted() && scope.Size() == 0 {
		return nil, false, nil
	}

	// Fetch one extra row to detect a further page.
	var rows *sql.Rows
	var err error
	if scope.Unrestricted() {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, email, created_at
			FROM authorized_emails
			WHERE ($1 = '' OR email ILIKE '%' || $1 || '%')
			ORDER BY email ASC
			LIMIT $2 OFFSET $3
		`, query, limit+1, offset)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, email, created_at
			FROM authorized_emails
			WHERE id = ANY($1)
			AND ($2 = '' OR email ILIKE '%' || $2 || '%')
			ORDER BY email ASC
			LIMIT $3 OFFSET $4
		`, pq.Array(scope.IDs()), query, limit+1, offset)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to list authorized emails: %w", err)
	}
	defer rows.Close()

	var result []*AuthorizedEmail
	for rows.Next() {
		email := &AuthorizedEmail{}
		if err := rows.Scan(&email.ID, &email.Email, &email.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to scan authorized email: %w", err)
		}
		result = append(result, email)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read authorized emails: %w", err)
	}

	hasMore := len(result) > limit
	if hasMore {
		result = result[:limit]
	}
	return result, hasMore, nil
}

// GetByIDs loads the catalog entries for the given ids. Missing ids are
// silently absent from the result; an empty input short-circuits without
// touching the database.
func (s *Store) GetByIDs(ctx context.Context, ids []int64) ([]*AuthorizedEmail, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, email, created_at
		FROM authorized_emails
		WHERE id = ANY($1)
		ORDER BY email ASC
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load authorized emails: %w", err)
	}
	defer rows.Close()

	var result []*AuthorizedEmail
	for rows.Next() {
		email := &AuthorizedEmail{}
		if err := rows.Scan(&email.ID, &email.Email, &email.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan authorized email: %w", err)
		}
		result = append(result, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read authorized emails: %w", err)
	}
	return result, nil
}

// ListDelegated returns the catalog entries delegated to an admin. Zero
// rows means the admin is unrestricted, which callers must distinguish
// via the scope resolver, not this list.
func (s *Store) ListDelegated(ctx context.Context, adminUserID int64) ([]*AuthorizedEmail, error) {
	query := `
		SELECT ae.id, ae.email, ae.created_at
		FROM authorized_emails ae
		JOIN admin_allowed_emails aae ON aae.authorized_email_id = ae.id
		WHERE aae.admin_user_id = $1
		ORDER BY ae.email ASC
	`
	rows, err := s.db.QueryContext(ctx, query, adminUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list delegated emails: %w", err)
	}
	defer rows.Close()

	var result []*AuthorizedEmail
	for rows.Next() {
		email := &AuthorizedEmail{}
		if err := rows.Scan(&email.ID, &email.Email, &email.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delegated email: %w", err)
		}
		result = append(result, email)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read delegated emails: %w", err)
	}
	return result, nil
}
