package platform

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
)

// Platform is one catalog entry (Netflix, Disney+, ...).
type Platform struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SubjectGrant is one (user, platform, keyword) row.
type SubjectGrant struct {
	PlatformID   int64  `json:"platform_id"`
	PlatformName string `json:"platform_name"`
	Keyword      string `json:"keyword"`
}

// ReplaceGrantsRequest is the payload for replacing a user's keywords on
// one platform. An empty list clears them.
type ReplaceGrantsRequest struct {
	Keywords []string `json:"keywords"`
}

// Validate normalizes the keywords: trimmed, lowercased, deduplicated,
// none empty.
func (r *ReplaceGrantsRequest) Validate() error {
	seen := make(map[string]struct{}, len(r.Keywords))
	deduped := r.Keywords[:0]
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			return fmt.Errorf("subject keyword cannot be empty: %w", authz.ErrValidation)
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		deduped = append(deduped, kw)
	}
	r.Keywords = deduped
	return nil
}

// Store persists platforms and subject grants.
type Store struct {
	db    *sql.DB
	audit audit.Logger
}

// NewStore creates a new platform store
func NewStore(db *sql.DB, auditLog audit.Logger) *Store {
	return &Store{db: db, audit: auditLog}
}

// requireManager gates grant access on role alone. Deliberately coarser
// than the email engine: no ownership or delegation filter applies to
// subject grants.
func requireManager(actor authz.Actor) error {
	if actor.Role != authz.RoleSuperadmin && actor.Role != authz.RoleAdmin {
		return fmt.Errorf("subject grants require a managing role: %w", authz.ErrForbidden)
	}
	return nil
}

// ListPlatforms returns the catalog ordered by name.
func (s *Store) ListPlatforms(ctx context.Context) ([]*Platform, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM platforms ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list platforms: %w", err)
	}
	defer rows.Close()

	var result []*Platform
	for rows.Next() {
		p := &Platform{}
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan platform: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read platforms: %w", err)
	}
	return result, nil
}

// GetPlatform returns one catalog entry.
func (s *Store) GetPlatform(ctx context.Context, id int64) (*Platform, error) {
	p := &Platform{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM platforms WHERE id = $1`, id).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("platform %d: %w", id, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get platform %d: %w", id, err)
	}
	return p, nil
}

// CreatePlatform adds a catalog entry. Superadmin only.
func (s *Store) CreatePlatform(ctx context.Context, actor authz.Actor, name string) (*Platform, error) {
	if actor.Role != authz.RoleSuperadmin {
		return nil, fmt.Errorf("only a superadmin may manage the platform catalog: %w", authz.ErrForbidden)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("platform name is required: %w", authz.ErrValidation)
	}

	p := &Platform{Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO platforms (name) VALUES ($1) RETURNING id`, name,
	).Scan(&p.ID)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, fmt.Errorf("platform %q already exists: %w", name, authz.ErrValidation)
		}
		return nil, fmt.Errorf("failed to create platform: %w", err)
	}
	return p, nil
}

// UserGrants returns the target user's grants across all platforms.
// Readable by the user themselves or by any managing role.
func (s *Store) UserGrants(ctx context.Context, actor authz.Actor, targetUserID int64) ([]*SubjectGrant, error) {
	if actor.ID != targetUserID {
		if err := requireManager(actor); err != nil {
			return nil, err
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT psa.platform_id, p.name, psa.subject_keyword
		FROM platform_subject_assignments psa
		JOIN platforms p ON p.id = psa.platform_id
		WHERE psa.user_id = $1
		ORDER BY p.name ASC, psa.subject_keyword ASC
	`, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subject grants: %w", err)
	}
	defer rows.Close()

	var result []*SubjectGrant
	for rows.Next() {
		g := &SubjectGrant{}
		if err := rows.Scan(&g.PlatformID, &g.PlatformName, &g.Keyword); err != nil {
			return nil, fmt.Errorf("failed to scan subject grant: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read subject grants: %w", err)
	}
	return result, nil
}

// ReplaceGrants swaps the target user's keyword set on one platform for
// the requested one, inside a single transaction.
func (s *Store) ReplaceGrants(ctx context.Context, actor authz.Actor, targetUserID, platformID int64, req ReplaceGrantsRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := requireManager(actor); err != nil {
		return nil, err
	}
	if _, err := s.GetPlatform(ctx, platformID); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", authz.ErrTransaction)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM platform_subject_assignments
		WHERE user_id = $1 AND platform_id = $2
	`, targetUserID, platformID); err != nil {
		return nil, fmt.Errorf("%w: failed to clear subject grants: %v", authz.ErrTransaction, err)
	}

	if len(req.Keywords) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO platform_subject_assignments (user_id, platform_id, subject_keyword)
			SELECT $1, $2, unnest($3::text[])
		`, targetUserID, platformID, pq.Array(req.Keywords)); err != nil {
			return nil, fmt.Errorf("%w: failed to insert subject grants: %v", authz.ErrTransaction, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit failed: %v", authz.ErrTransaction, err)
	}

	s.audit.Log(ctx, &actor.ID, audit.EventPlatformReplace, audit.StatusSuccess, map[string]interface{}{
		"target_user_id": targetUserID,
		"platform_id":    platformID,
		"keywords":       req.Keywords,
	})

	return req.Keywords, nil
}
