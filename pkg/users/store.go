package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// Store provides user persistence over PostgreSQL.
type Store struct {
	db       *sql.DB
	resolver *authz.Resolver
}

// NewStore creates a new user store
func NewStore(db *sql.DB, resolver *authz.Resolver) *Store {
	return &Store{db: db, resolver: resolver}
}

// Create creates a user under the actor's authority. Admins may only
// create plain users, which they then own; superadmins create admins and
// unowned users.
func (s *Store) Create(ctx context.Context, actor authz.Actor, req CreateUserRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var createdBy *int64
	switch actor.Role {
	case authz.RoleSuperadmin:
		if req.Role == authz.RoleSuperadmin {
			return nil, fmt.Errorf("cannot create superadmin accounts: %w", authz.ErrForbidden)
		}
	case authz.RoleAdmin:
		if req.Role != authz.RoleUser {
			return nil, fmt.Errorf("admins may only create users: %w", authz.ErrForbidden)
		}
		id := actor.ID
		createdBy = &id
	default:
		return nil, fmt.Errorf("role %q cannot create users: %w", actor.Role, authz.ErrForbidden)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:         req.Username,
		Role:             req.Role,
		CreatedByAdminID: createdBy,
	}

	query := `
		INSERT INTO users (username, password_hash, role, created_by_admin_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err = s.db.QueryRowContext(ctx, query, req.Username, string(hash), req.Role, createdBy).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, fmt.Errorf("username %q already taken: %w", req.Username, authz.ErrValidation)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// Get retrieves a user by id.
func (s *Store) Get(ctx context.Context, userID int64) (*User, error) {
	query := `
		SELECT id, username, role, created_by_admin_id, telegram_chat_id, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, userID), userID)
}

// GetByUsername retrieves a user by username.
func (s *Store) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, role, created_by_admin_id, telegram_chat_id, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	user := &User{}
	var createdBy, chatID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Role, &createdBy, &chatID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", username, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %q: %w", username, err)
	}
	unwrapNullable(user, createdBy, chatID)
	return user, nil
}

// List returns the users visible to the actor: everything for a
// superadmin, only owned users for an admin.
func (s *Store) List(ctx context.Context, actor authz.Actor) ([]*User, error) {
	var query string
	var args []interface{}

	switch actor.Role {
	case authz.RoleSuperadmin:
		query = `
			SELECT id, username, role, created_by_admin_id, telegram_chat_id, created_at, updated_at
			FROM users
			ORDER BY username ASC
		`
	case authz.RoleAdmin:
		query = `
			SELECT id, username, role, created_by_admin_id, telegram_chat_id, created_at, updated_at
			FROM users
			WHERE created_by_admin_id = $1
			ORDER BY username ASC
		`
		args = append(args, actor.ID)
	default:
		return nil, fmt.Errorf("role %q cannot list users: %w", actor.Role, authz.ErrForbidden)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var result []*User
	for rows.Next() {
		user := &User{}
		var createdBy, chatID sql.NullInt64
		if err := rows.Scan(
			&user.ID, &user.Username, &user.Role, &createdBy, &chatID,
			&user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		unwrapNullable(user, createdBy, chatID)
		result = append(result, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return result, nil
}

// Update applies the non-nil fields of req to the target user, gated on
// the management hierarchy.
func (s *Store) Update(ctx context.Context, actor authz.Actor, userID int64, req UpdateUserRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := s.resolver.CanManage(ctx, actor, userID); err != nil {
		return err
	}

	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if err := s.exec(ctx,
			`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
			string(hash), userID,
		); err != nil {
			return err
		}
	}

	if req.TelegramChatID != nil {
		if err := s.exec(ctx,
			`UPDATE users SET telegram_chat_id = $1, updated_at = NOW() WHERE id = $2`,
			*req.TelegramChatID, userID,
		); err != nil {
			return err
		}
	}

	return nil
}

// Delete removes a user. Their assignment rows go with them via the
// schema's cascades; activity log rows keep the event but lose the user
// reference.
func (s *Store) Delete(ctx context.Context, actor authz.Actor, userID int64) error {
	if _, err := s.resolver.CanManage(ctx, actor, userID); err != nil {
		return err
	}
	if actor.ID == userID {
		return fmt.Errorf("cannot delete own account: %w", authz.ErrForbidden)
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %d: %w", userID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, authz.ErrNotFound)
	}
	return nil
}

// Authenticate verifies a username/password pair and returns the user.
// Wrong username and wrong password produce the same error.
func (s *Store) Authenticate(ctx context.Context, username, password string) (*User, error) {
	query := `
		SELECT id, username, password_hash, role, created_by_admin_id, telegram_chat_id, created_at, updated_at
		FROM users
		WHERE username = $1
	`
	user := &User{}
	var hash string
	var createdBy, chatID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &hash, &user.Role, &createdBy, &chatID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invalid credentials: %w", authz.ErrForbidden)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %q: %w", username, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", authz.ErrForbidden)
	}

	unwrapNullable(user, createdBy, chatID)
	return user, nil
}

// EnsureSuperadmin creates the bootstrap superadmin account if no
// superadmin exists yet. Run once at startup.
func (s *Store) EnsureSuperadmin(ctx context.Context, username, password string) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, authz.RoleSuperadmin,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count superadmins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role) VALUES ($1, $2, $3)`,
		username, string(hash), authz.RoleSuperadmin,
	)
	if err != nil {
		return fmt.Errorf("failed to create superadmin: %w", err)
	}
	return nil
}

func (s *Store) scanUser(row *sql.Row, userID int64) (*User, error) {
	user := &User{}
	var createdBy, chatID sql.NullInt64
	err := row.Scan(
		&user.ID, &user.Username, &user.Role, &createdBy, &chatID,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d: %w", userID, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}
	unwrapNullable(user, createdBy, chatID)
	return user, nil
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user: %w", authz.ErrNotFound)
	}
	return nil
}

func unwrapNullable(user *User, createdBy, chatID sql.NullInt64) {
	if createdBy.Valid {
		id := createdBy.Int64
		user.CreatedByAdminID = &id
	}
	if chatID.Valid {
		id := chatID.Int64
		user.TelegramChatID = &id
	}
}
