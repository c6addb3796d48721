package assignment

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/emails"
)

// GetUserAssignments returns the target user's current assignment set,
// joined with the catalog. Actors may read their own set; anything else
// requires manageability.
func (e *Engine) GetUserAssignments(ctx context.Context, actor authz.Actor, targetUserID int64) ([]*Assignment, error) {
	if actor.ID != targetUserID {
		if _, err := e.resolver.CanManage(ctx, actor, targetUserID); err != nil {
			return nil, err
		}
	}

	rows, err := e.db.QueryContext(ctx, `
		SELECT uae.authorized_email_id, ae.email, uae.assigned_by, uae.assigned_at
		FROM user_authorized_emails uae
		JOIN authorized_emails ae ON ae.id = uae.authorized_email_id
		WHERE uae.user_id = $1
		ORDER BY ae.email ASC
	`, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var result []*Assignment
	for rows.Next() {
		a := &Assignment{}
		var assignedBy *int64
		if err := rows.Scan(&a.EmailID, &a.Email, &assignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.AssignedBy = assignedBy
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assignments: %w", err)
	}
	return result, nil
}

// SearchAvailableEmails pages through the catalog entries the actor may
// assign to the target user that the user does not already hold. hasMore
// reports whether another page exists.
func (e *Engine) SearchAvailableEmails(ctx context.Context, actor authz.Actor, targetUserID int64, query string, limit, offset int) ([]*emails.AuthorizedEmail, bool, error) {
	if _, err := e.resolver.CanManage(ctx, actor, targetUserID); err != nil {
		return nil, false, err
	}

	scope, err := e.resolver.AllowedScope(ctx, actor)
	if err != nil {
		return nil, false, err
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows *sql.Rows
	if scope.Unrestricted() {
		rows, err = e.db.QueryContext(ctx, `
			SELECT ae.id, ae.email, ae.created_at
			FROM authorized_emails ae
			WHERE ($1 = '' OR ae.email ILIKE '%' || $1 || '%')
			  AND NOT EXISTS (
				SELECT 1 FROM user_authorized_emails uae
				WHERE uae.user_id = $2 AND uae.authorized_email_id = ae.id
			  )
			ORDER BY ae.email ASC
			LIMIT $3 OFFSET $4
		`, query, targetUserID, limit+1, offset)
	} else {
		scopeIDs := scope.IDs()
		if len(scopeIDs) == 0 {
			// An explicitly empty scope has nothing to offer; skip the query.
			return []*emails.AuthorizedEmail{}, false, nil
		}
		rows, err = e.db.QueryContext(ctx, `
			SELECT ae.id, ae.email, ae.created_at
			FROM authorized_emails ae
			WHERE ae.id = ANY($1)
			  AND ($2 = '' OR ae.email ILIKE '%' || $2 || '%')
			  AND NOT EXISTS (
				SELECT 1 FROM user_authorized_emails uae
				WHERE uae.user_id = $3 AND uae.authorized_email_id = ae.id
			  )
			ORDER BY ae.email ASC
			LIMIT $4 OFFSET $5
		`, pq.Array(scopeIDs), query, targetUserID, limit+1, offset)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to search available emails: %w", err)
	}
	defer rows.Close()

	var result []*emails.AuthorizedEmail
	for rows.Next() {
		email := &emails.AuthorizedEmail{}
		if err := rows.Scan(&email.ID, &email.Email, &email.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("failed to scan email: %w", err)
		}
		result = append(result, email)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to read emails: %w", err)
	}

	hasMore := len(result) > limit
	if hasMore {
		result = result[:limit]
	}
	return result, hasMore, nil
}

// RemoveAssignment deletes a single assignment row, re-checking
// manageability first.
func (e *Engine) RemoveAssignment(ctx context.Context, actor authz.Actor, targetUserID, emailID int64) error {
	if _, err := e.resolver.CanManage(ctx, actor, targetUserID); err != nil {
		return err
	}

	result, err := e.db.ExecContext(ctx, `
		DELETE FROM user_authorized_emails
		WHERE user_id = $1 AND authorized_email_id = $2
	`, targetUserID, emailID)
	if err != nil {
		return fmt.Errorf("failed to remove assignment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("assignment of email %d to user %d: %w", emailID, targetUserID, authz.ErrNotFound)
	}

	e.audit.Log(ctx, &actor.ID, audit.EventAssignmentRemove, audit.StatusSuccess, map[string]interface{}{
		"target_user_id": targetUserID,
		"email_id":       emailID,
	})
	return nil
}
