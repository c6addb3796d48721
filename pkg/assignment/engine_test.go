package assignment

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/observability"
)

type recordingAudit struct {
	events []audit.EventType
}

func (r *recordingAudit) Log(ctx context.Context, userID *int64, eventType audit.EventType, status audit.EventStatus, detail map[string]interface{}) {
	r.events = append(r.events, eventType)
}

func newMockEngine(t *testing.T) (*Engine, sqlmock.Sqlmock, *sql.DB, *recordingAudit) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	auditLog := &recordingAudit{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEngine(db, authz.NewResolver(db), auditLog, metrics, logger), mock, db, auditLog
}

func expectTargetUser(mock sqlmock.Sqlmock, id int64, role authz.Role, createdBy interface{}) {
	mock.ExpectQuery(`SELECT id, username, role, created_by_admin_id
		FROM users
		WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "role", "created_by_admin_id"}).
			AddRow(id, "someone", role, createdBy))
}

func expectDelegation(mock sqlmock.Sqlmock, adminID int64, ids ...int64) {
	rows := sqlmock.NewRows([]string{"authorized_email_id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT authorized_email_id
		FROM admin_allowed_emails
		WHERE admin_user_id = \$1`).
		WithArgs(adminID).
		WillReturnRows(rows)
}

func expectCatalog(mock sqlmock.Sqlmock, requested []int64, found ...int64) {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range found {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT id FROM authorized_emails WHERE id = ANY\(\$1\)`).
		WithArgs(pq.Array(requested)).
		WillReturnRows(rows)
}

func expectSnapshot(mock sqlmock.Sqlmock, userID int64, ids ...int64) {
	rows := sqlmock.NewRows([]string{"authorized_email_id"})
	for _, id := range ids {
		rows.AddRow(id)
	}
	mock.ExpectQuery(`SELECT authorized_email_id
		FROM user_authorized_emails
		WHERE user_id = \$1
		ORDER BY authorized_email_id ASC`).
		WithArgs(userID).
		WillReturnRows(rows)
}

func TestAssign(t *testing.T) {
	ctx := context.Background()
	superadmin := authz.Actor{ID: 1, Role: authz.RoleSuperadmin}

	t.Run("replaces the set and reports the previous one", func(t *testing.T) {
		engine, mock, db, auditLog := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)
		expectCatalog(mock, []int64{10, 11}, 10, 11)

		mock.ExpectBegin()
		expectSnapshot(mock, 8, 10, 12)
		mock.ExpectExec(`DELETE FROM user_authorized_emails WHERE user_id = \$1`).
			WithArgs(int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO user_authorized_emails \(user_id, authorized_email_id, assigned_by\)
			SELECT \$1, unnest\(\$2::bigint\[\]\), \$3`).
			WithArgs(int64(8), pq.Array([]int64{10, 11}), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		result, err := engine.Assign(ctx, superadmin, 8, AssignRequest{EmailIDs: []int64{10, 11}})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 11}, result.AssignedIDs)
		assert.Equal(t, []int64{10, 12}, result.PreviousIDs)
		assert.Empty(t, result.CascadeRemovedIDs)
		assert.Equal(t, []audit.EventType{audit.EventAssignmentReplace}, auditLog.events)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty request clears the set", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)

		mock.ExpectBegin()
		expectSnapshot(mock, 8, 10, 11)
		mock.ExpectExec(`DELETE FROM user_authorized_emails WHERE user_id = \$1`).
			WithArgs(int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		result, err := engine.Assign(ctx, superadmin, 8, AssignRequest{})
		require.NoError(t, err)
		assert.Empty(t, result.AssignedIDs)
		assert.Equal(t, []int64{10, 11}, result.PreviousIDs)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin request is filtered to the delegated scope", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()
		admin := authz.Actor{ID: 5, Role: authz.RoleAdmin}

		expectTargetUser(mock, 8, authz.RoleUser, int64(5))
		expectDelegation(mock, 5, 10, 11)
		expectCatalog(mock, []int64{10}, 10)

		mock.ExpectBegin()
		expectSnapshot(mock, 8)
		mock.ExpectExec(`DELETE FROM user_authorized_emails`).
			WithArgs(int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO user_authorized_emails`).
			WithArgs(int64(8), pq.Array([]int64{10}), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		// 99 is outside the delegation; the surviving subset proceeds.
		result, err := engine.Assign(ctx, admin, 8, AssignRequest{EmailIDs: []int64{10, 99}})
		require.NoError(t, err)
		assert.Equal(t, []int64{10}, result.AssignedIDs)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fully out-of-scope request is a violation before any write", func(t *testing.T) {
		engine, mock, db, auditLog := newMockEngine(t)
		defer db.Close()
		admin := authz.Actor{ID: 5, Role: authz.RoleAdmin}

		expectTargetUser(mock, 8, authz.RoleUser, int64(5))
		expectDelegation(mock, 5, 10, 11)

		_, err := engine.Assign(ctx, admin, 8, AssignRequest{EmailIDs: []int64{98, 99}})
		require.ErrorIs(t, err, authz.ErrScopeViolation)
		assert.Empty(t, auditLog.events)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("shrinking an admin cascades to owned users", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 5, authz.RoleAdmin, nil)
		expectCatalog(mock, []int64{10}, 10)

		mock.ExpectBegin()
		expectSnapshot(mock, 5, 10, 11, 12)
		mock.ExpectExec(`DELETE FROM user_authorized_emails WHERE user_id = \$1`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`INSERT INTO user_authorized_emails`).
			WithArgs(int64(5), pq.Array([]int64{10}), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM user_authorized_emails
			WHERE authorized_email_id = ANY\(\$1\)
			AND user_id IN \(SELECT id FROM users WHERE created_by_admin_id = \$2\)`).
			WithArgs(pq.Array([]int64{11, 12}), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 4))
		mock.ExpectCommit()

		result, err := engine.Assign(ctx, superadmin, 5, AssignRequest{EmailIDs: []int64{10}})
		require.NoError(t, err)
		assert.Equal(t, []int64{11, 12}, result.CascadeRemovedIDs)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("repeating an identical assign is idempotent", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		// First replace shrinks the admin's set and cascades.
		expectTargetUser(mock, 5, authz.RoleAdmin, nil)
		expectCatalog(mock, []int64{10, 11}, 10, 11)
		mock.ExpectBegin()
		expectSnapshot(mock, 5, 10, 11, 12)
		mock.ExpectExec(`DELETE FROM user_authorized_emails WHERE user_id = \$1`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`INSERT INTO user_authorized_emails`).
			WithArgs(int64(5), pq.Array([]int64{10, 11}), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`DELETE FROM user_authorized_emails
			WHERE authorized_email_id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{12}), int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		first, err := engine.Assign(ctx, superadmin, 5, AssignRequest{EmailIDs: []int64{10, 11}})
		require.NoError(t, err)
		assert.Equal(t, []int64{10, 11}, first.AssignedIDs)
		assert.Equal(t, []int64{12}, first.CascadeRemovedIDs)

		// Second identical replace yields the same set with nothing left
		// to cascade, so no cascade statement runs at all.
		expectTargetUser(mock, 5, authz.RoleAdmin, nil)
		expectCatalog(mock, []int64{10, 11}, 10, 11)
		mock.ExpectBegin()
		expectSnapshot(mock, 5, 10, 11)
		mock.ExpectExec(`DELETE FROM user_authorized_emails WHERE user_id = \$1`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec(`INSERT INTO user_authorized_emails`).
			WithArgs(int64(5), pq.Array([]int64{10, 11}), int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		second, err := engine.Assign(ctx, superadmin, 5, AssignRequest{EmailIDs: []int64{10, 11}})
		require.NoError(t, err)
		assert.Equal(t, first.AssignedIDs, second.AssignedIDs)
		assert.Empty(t, second.CascadeRemovedIDs)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when the insert fails", func(t *testing.T) {
		engine, mock, db, auditLog := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)
		expectCatalog(mock, []int64{10}, 10)

		mock.ExpectBegin()
		expectSnapshot(mock, 8)
		mock.ExpectExec(`DELETE FROM user_authorized_emails`).
			WithArgs(int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`INSERT INTO user_authorized_emails`).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		_, err := engine.Assign(ctx, superadmin, 8, AssignRequest{EmailIDs: []int64{10}})
		require.ErrorIs(t, err, authz.ErrTransaction)
		assert.Empty(t, auditLog.events)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown catalog id is rejected before the transaction", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)
		expectCatalog(mock, []int64{10, 404}, 10)

		_, err := engine.Assign(ctx, superadmin, 8, AssignRequest{EmailIDs: []int64{10, 404}})
		require.ErrorIs(t, err, authz.ErrNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superadmin cannot touch an owned user", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, int64(5))

		_, err := engine.Assign(ctx, superadmin, 8, AssignRequest{EmailIDs: []int64{10}})
		require.ErrorIs(t, err, authz.ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate ids collapse before filtering", func(t *testing.T) {
		req := AssignRequest{EmailIDs: []int64{3, 1, 3, 2, 1}}
		require.NoError(t, req.Validate())
		assert.Equal(t, []int64{3, 1, 2}, req.EmailIDs)
	})

	t.Run("non-positive ids fail validation", func(t *testing.T) {
		req := AssignRequest{EmailIDs: []int64{1, 0}}
		require.ErrorIs(t, req.Validate(), authz.ErrValidation)
	})
}

func TestGetUserAssignments(t *testing.T) {
	ctx := context.Background()

	t.Run("user reads own assignments without a manage check", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		now := time.Now()
		mock.ExpectQuery(`SELECT uae.authorized_email_id, ae.email, uae.assigned_by, uae.assigned_at`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"authorized_email_id", "email", "assigned_by", "assigned_at"}).
				AddRow(10, "ana@example.com", 5, now).
				AddRow(11, "luis@example.com", nil, now))

		list, err := engine.GetUserAssignments(ctx, authz.Actor{ID: 8, Role: authz.RoleUser}, 8)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "ana@example.com", list[0].Email)
		require.NotNil(t, list[0].AssignedBy)
		assert.Equal(t, int64(5), *list[0].AssignedBy)
		assert.Nil(t, list[1].AssignedBy)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reading another user requires manageability", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 9, authz.RoleUser, int64(3))

		_, err := engine.GetUserAssignments(ctx, authz.Actor{ID: 8, Role: authz.RoleUser}, 9)
		require.ErrorIs(t, err, authz.ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSearchAvailableEmails(t *testing.T) {
	ctx := context.Background()

	t.Run("restricted scope constrains the search", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()
		admin := authz.Actor{ID: 5, Role: authz.RoleAdmin}

		expectTargetUser(mock, 8, authz.RoleUser, int64(5))
		expectDelegation(mock, 5, 10, 11, 12)

		now := time.Now()
		mock.ExpectQuery(`SELECT ae.id, ae.email, ae.created_at
			FROM authorized_emails ae
			WHERE ae.id = ANY\(\$1\)`).
			WithArgs(pq.Array([]int64{10, 11, 12}), "ana", int64(8), 3, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at"}).
				AddRow(10, "ana@example.com", now).
				AddRow(11, "anabel@example.com", now).
				AddRow(12, "anita@example.com", now))

		list, hasMore, err := engine.SearchAvailableEmails(ctx, admin, 8, "ana", 2, 0)
		require.NoError(t, err)
		assert.Len(t, list, 2)
		assert.True(t, hasMore)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unrestricted scope searches the whole catalog", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)

		now := time.Now()
		mock.ExpectQuery(`SELECT ae.id, ae.email, ae.created_at
			FROM authorized_emails ae
			WHERE \(\$1 = '' OR ae.email ILIKE`).
			WithArgs("", int64(8), 51, 0).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at"}).
				AddRow(10, "ana@example.com", now))

		list, hasMore, err := engine.SearchAvailableEmails(ctx, authz.Actor{ID: 1, Role: authz.RoleSuperadmin}, 8, "", 0, 0)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		assert.False(t, hasMore)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRemoveAssignment(t *testing.T) {
	ctx := context.Background()
	superadmin := authz.Actor{ID: 1, Role: authz.RoleSuperadmin}

	t.Run("removes a single row", func(t *testing.T) {
		engine, mock, db, auditLog := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)
		mock.ExpectExec(`DELETE FROM user_authorized_emails
		WHERE user_id = \$1 AND authorized_email_id = \$2`).
			WithArgs(int64(8), int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, engine.RemoveAssignment(ctx, superadmin, 8, 10))
		assert.Equal(t, []audit.EventType{audit.EventAssignmentRemove}, auditLog.events)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row is not found", func(t *testing.T) {
		engine, mock, db, _ := newMockEngine(t)
		defer db.Close()

		expectTargetUser(mock, 8, authz.RoleUser, nil)
		mock.ExpectExec(`DELETE FROM user_authorized_emails`).
			WithArgs(int64(8), int64(10)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := engine.RemoveAssignment(ctx, superadmin, 8, 10)
		require.ErrorIs(t, err, authz.ErrNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
