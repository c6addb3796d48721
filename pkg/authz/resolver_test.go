package authz

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockResolver(t *testing.T) (*Resolver, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewResolver(db), mock, db
}

func expectUserRow(mock sqlmock.Sqlmock, id int64, username string, role Role, createdBy interface{}) {
	rows := sqlmock.NewRows([]string{"id", "username", "role", "created_by_admin_id"}).
		AddRow(id, username, role, createdBy)
	mock.ExpectQuery(`SELECT id, username, role, created_by_admin_id
		FROM users
		WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestCanManage_Superadmin(t *testing.T) {
	resolver, mock, db := newMockResolver(t)
	defer db.Close()

	ctx := context.Background()
	superadmin := Actor{ID: 1, Role: RoleSuperadmin}

	t.Run("manages admins", func(t *testing.T) {
		expectUserRow(mock, 5, "admin_a", RoleAdmin, nil)

		target, err := resolver.CanManage(ctx, superadmin, 5)
		require.NoError(t, err)
		assert.Equal(t, RoleAdmin, target.Role)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("manages unowned users", func(t *testing.T) {
		expectUserRow(mock, 7, "direct_user", RoleUser, nil)

		target, err := resolver.CanManage(ctx, superadmin, 7)
		require.NoError(t, err)
		assert.Nil(t, target.CreatedByAdminID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied on admin-owned users", func(t *testing.T) {
		expectUserRow(mock, 8, "owned_user", RoleUser, int64(5))

		target, err := resolver.CanManage(ctx, superadmin, 8)
		require.Error(t, err)
		assert.Nil(t, target)
		assert.ErrorIs(t, err, ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCanManage_Admin(t *testing.T) {
	resolver, mock, db := newMockResolver(t)
	defer db.Close()

	ctx := context.Background()
	admin := Actor{ID: 5, Role: RoleAdmin}

	t.Run("manages own users", func(t *testing.T) {
		expectUserRow(mock, 8, "owned_user", RoleUser, int64(5))

		target, err := resolver.CanManage(ctx, admin, 8)
		require.NoError(t, err)
		assert.Equal(t, int64(8), target.ID)
		require.NotNil(t, target.CreatedByAdminID)
		assert.Equal(t, int64(5), *target.CreatedByAdminID)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied on another admin's users", func(t *testing.T) {
		expectUserRow(mock, 9, "foreign_user", RoleUser, int64(6))

		_, err := resolver.CanManage(ctx, admin, 9)
		assert.ErrorIs(t, err, ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied on unowned users", func(t *testing.T) {
		expectUserRow(mock, 7, "direct_user", RoleUser, nil)

		_, err := resolver.CanManage(ctx, admin, 7)
		assert.ErrorIs(t, err, ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("denied on other admins", func(t *testing.T) {
		expectUserRow(mock, 6, "admin_b", RoleAdmin, nil)

		_, err := resolver.CanManage(ctx, admin, 6)
		assert.ErrorIs(t, err, ErrForbidden)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCanManage_UserRoleDenied(t *testing.T) {
	resolver, mock, db := newMockResolver(t)
	defer db.Close()

	expectUserRow(mock, 7, "direct_user", RoleUser, nil)

	_, err := resolver.CanManage(context.Background(), Actor{ID: 3, Role: RoleUser}, 7)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCanManage_TargetMissing(t *testing.T) {
	resolver, mock, db := newMockResolver(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id, username, role, created_by_admin_id
		FROM users
		WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := resolver.CanManage(context.Background(), Actor{ID: 1, Role: RoleSuperadmin}, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllowedScope(t *testing.T) {
	resolver, mock, db := newMockResolver(t)
	defer db.Close()

	ctx := context.Background()

	t.Run("superadmin is unrestricted without a query", func(t *testing.T) {
		scope, err := resolver.AllowedScope(ctx, Actor{ID: 1, Role: RoleSuperadmin})
		require.NoError(t, err)
		assert.True(t, scope.Unrestricted())

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin with delegation rows gets a restricted scope", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"authorized_email_id"}).
			AddRow(10).
			AddRow(11).
			AddRow(12)
		mock.ExpectQuery(`SELECT authorized_email_id
		FROM admin_allowed_emails
		WHERE admin_user_id = \$1`).
			WithArgs(int64(5)).
			WillReturnRows(rows)

		scope, err := resolver.AllowedScope(ctx, Actor{ID: 5, Role: RoleAdmin})
		require.NoError(t, err)
		assert.False(t, scope.Unrestricted())
		assert.Equal(t, 3, scope.Size())
		assert.True(t, scope.Allows(11))
		assert.False(t, scope.Allows(99))

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("admin with no delegation rows is unrestricted", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"authorized_email_id"})
		mock.ExpectQuery(`SELECT authorized_email_id
		FROM admin_allowed_emails
		WHERE admin_user_id = \$1`).
			WithArgs(int64(6)).
			WillReturnRows(rows)

		scope, err := resolver.AllowedScope(ctx, Actor{ID: 6, Role: RoleAdmin})
		require.NoError(t, err)
		assert.True(t, scope.Unrestricted())

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("query error", func(t *testing.T) {
		mock.ExpectQuery(`SELECT authorized_email_id
		FROM admin_allowed_emails
		WHERE admin_user_id = \$1`).
			WithArgs(int64(5)).
			WillReturnError(fmt.Errorf("connection lost"))

		_, err := resolver.AllowedScope(ctx, Actor{ID: 5, Role: RoleAdmin})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load delegated emails")

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
