package users

import (
	"fmt"
	"time"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// User represents a panel user
type User struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	Role             authz.Role `json:"role"`
	CreatedByAdminID *int64     `json:"created_by_admin_id,omitempty"`
	TelegramChatID   *int64     `json:"telegram_chat_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CreateUserRequest is the payload for creating a user.
type CreateUserRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     authz.Role `json:"role"`
}

// Validate checks the request fields before any store access.
func (r *CreateUserRequest) Validate() error {
	if r.Username == "" {
		return fmt.Errorf("username is required: %w", authz.ErrValidation)
	}
	if len(r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", authz.ErrValidation)
	}
	if r.Role == "" {
		r.Role = authz.RoleUser
	}
	if !r.Role.Valid() {
		return fmt.Errorf("unknown role %q: %w", r.Role, authz.ErrValidation)
	}
	return nil
}

// UpdateUserRequest is the payload for updating a user. Nil fields are
// left unchanged.
type UpdateUserRequest struct {
	Password       *string `json:"password,omitempty"`
	TelegramChatID *int64  `json:"telegram_chat_id,omitempty"`
}

// Validate checks the request fields before any store access.
func (r *UpdateUserRequest) Validate() error {
	if r.Password == nil && r.TelegramChatID == nil {
		return fmt.Errorf("nothing to update: %w", authz.ErrValidation)
	}
	if r.Password != nil && len(*r.Password) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", authz.ErrValidation)
	}
	return nil
}
