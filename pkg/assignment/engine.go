package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/observability"
)

// Engine executes assignment replacements.
type Engine struct {
	db       *sql.DB
	resolver *authz.Resolver
	audit    audit.Logger
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewEngine creates a new assignment engine
func NewEngine(db *sql.DB, resolver *authz.Resolver, auditLog audit.Logger, metrics *observability.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		db:       db,
		resolver: resolver,
		audit:    auditLog,
		metrics:  metrics,
		logger:   logger,
	}
}

// Assign replaces the target user's assignment set with the requested
// emails, filtered to the actor's delegated scope. All checks run before
// the first write; any failure after that rolls the whole transaction
// back.
func (e *Engine) Assign(ctx context.Context, actor authz.Actor, targetUserID int64, req AssignRequest) (*AssignResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	target, err := e.resolver.CanManage(ctx, actor, targetUserID)
	if err != nil {
		return nil, err
	}

	scope, err := e.resolver.AllowedScope(ctx, actor)
	if err != nil {
		return nil, err
	}

	filtered := scope.Filter(req.EmailIDs)
	if len(filtered) == 0 && len(req.EmailIDs) > 0 {
		// A request that names emails but keeps none after filtering is
		// an attempt to reach outside the delegation, not a clear.
		e.metrics.ScopeViolationsTotal.Inc()
		return nil, fmt.Errorf("none of the %d requested emails are within the delegated scope: %w",
			len(req.EmailIDs), authz.ErrScopeViolation)
	}

	if err := e.checkEmailsExist(ctx, filtered); err != nil {
		return nil, err
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", authz.ErrTransaction)
	}
	defer tx.Rollback()

	result, err := e.replaceInTx(ctx, tx, actor, target, filtered)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", authz.ErrTransaction, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit failed: %v", authz.ErrTransaction, err)
	}

	e.metrics.AssignmentsReplacedTotal.WithLabelValues(string(actor.Role)).Inc()
	if n := len(result.CascadeRemovedIDs); n > 0 {
		e.metrics.CascadeRemovalsTotal.Add(float64(n))
	}

	e.logger.Info("assignments replaced",
		"actor_id", actor.ID,
		"target_user_id", targetUserID,
		"assigned", len(result.AssignedIDs),
		"previous", len(result.PreviousIDs),
		"cascade_removed", len(result.CascadeRemovedIDs),
	)
	e.audit.Log(ctx, &actor.ID, audit.EventAssignmentReplace, audit.StatusSuccess, map[string]interface{}{
		"target_user_id":      targetUserID,
		"assigned_ids":        result.AssignedIDs,
		"previous_ids":        result.PreviousIDs,
		"cascade_removed_ids": result.CascadeRemovedIDs,
	})

	return result, nil
}

func (e *Engine) replaceInTx(ctx context.Context, tx *sql.Tx, actor authz.Actor, target *authz.ManagedUser, emailIDs []int64) (*AssignResult, error) {
	previous, err := snapshotAssignments(ctx, tx, target.ID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM user_authorized_emails WHERE user_id = $1`, target.ID,
	); err != nil {
		return nil, fmt.Errorf("failed to clear assignments: %w", err)
	}

	if len(emailIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_authorized_emails (user_id, authorized_email_id, assigned_by)
			SELECT $1, unnest($2::bigint[]), $3
		`, target.ID, pq.Array(emailIDs), actor.ID); err != nil {
			return nil, fmt.Errorf("failed to insert assignments: %w", err)
		}
	}

	result := &AssignResult{
		AssignedIDs: emailIDs,
		PreviousIDs: previous,
	}

	// Shrinking an admin's set revokes the removed emails from every
	// user that admin owns, in the same transaction.
	if actor.Role == authz.RoleSuperadmin && target.Role == authz.RoleAdmin {
		removed := difference(previous, emailIDs)
		if len(removed) > 0 {
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM user_authorized_emails
				WHERE authorized_email_id = ANY($1)
				  AND user_id IN (SELECT id FROM users WHERE created_by_admin_id = $2)
			`, pq.Array(removed), target.ID); err != nil {
				return nil, fmt.Errorf("failed to cascade removals: %w", err)
			}
			result.CascadeRemovedIDs = removed
		}
	}

	return result, nil
}

// checkEmailsExist verifies every requested id against the catalog so a
// bad id fails cleanly before the transaction instead of as an FK error
// inside it. Empty input skips the query.
func (e *Engine) checkEmailsExist(ctx context.Context, emailIDs []int64) error {
	if len(emailIDs) == 0 {
		return nil
	}

	rows, err := e.db.QueryContext(ctx,
		`SELECT id FROM authorized_emails WHERE id = ANY($1)`, pq.Array(emailIDs),
	)
	if err != nil {
		return fmt.Errorf("failed to verify emails: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]struct{}, len(emailIDs))
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan email id: %w", err)
		}
		found[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to verify emails: %w", err)
	}

	for _, id := range emailIDs {
		if _, ok := found[id]; !ok {
			return fmt.Errorf("authorized email %d: %w", id, authz.ErrNotFound)
		}
	}
	return nil
}

func snapshotAssignments(ctx context.Context, tx *sql.Tx, userID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT authorized_email_id
		FROM user_authorized_emails
		WHERE user_id = $1
		ORDER BY authorized_email_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot assignments: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assignments: %w", err)
	}
	return ids, nil
}

// difference returns the elements of a not present in b, preserving a's
// order.
func difference(a, b []int64) []int64 {
	keep := make(map[int64]struct{}, len(b))
	for _, id := range b {
		keep[id] = struct{}{}
	}
	var out []int64
	for _, id := range a {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
