package templates

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// Template is a named bundle of authorized-email ids.
type Template struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	EmailIDs    []int64   `json:"email_ids"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateTemplateRequest is the payload for creating a template.
type CreateTemplateRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	EmailIDs    []int64 `json:"email_ids"`
}

// Validate checks the create payload.
func (r *CreateTemplateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return fmt.Errorf("template name is required: %w", authz.ErrValidation)
	}
	for _, id := range r.EmailIDs {
		if id <= 0 {
			return fmt.Errorf("email id %d must be positive: %w", id, authz.ErrValidation)
		}
	}
	if r.EmailIDs == nil {
		r.EmailIDs = []int64{}
	}
	return nil
}

// UpdateTemplateRequest is the payload for updating a template. Nil
// fields are left unchanged.
type UpdateTemplateRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	EmailIDs    *[]int64 `json:"email_ids,omitempty"`
}

// Validate checks the update payload.
func (r *UpdateTemplateRequest) Validate() error {
	if r.Name == nil && r.Description == nil && r.EmailIDs == nil {
		return fmt.Errorf("no fields to update: %w", authz.ErrValidation)
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return fmt.Errorf("template name cannot be empty: %w", authz.ErrValidation)
	}
	if r.EmailIDs != nil {
		for _, id := range *r.EmailIDs {
			if id <= 0 {
				return fmt.Errorf("email id %d must be positive: %w", id, authz.ErrValidation)
			}
		}
	}
	return nil
}

// Store persists templates. The email id list is stored as a JSONB
// column rather than a join table; templates are read whole and applied
// whole, so there is nothing to join against.
type Store struct {
	db *sql.DB
}

// NewStore creates a new template store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a template owned by the actor.
func (s *Store) Create(ctx context.Context, actor authz.Actor, req CreateTemplateRequest) (*Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(req.EmailIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode email ids: %w", err)
	}

	tmpl := &Template{
		Name:        req.Name,
		Description: req.Description,
		EmailIDs:    req.EmailIDs,
		CreatedBy:   &actor.ID,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO permission_templates (name, description, email_ids, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, req.Name, req.Description, payload, actor.ID).Scan(&tmpl.ID, &tmpl.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return tmpl, nil
}

// Get returns a template by id.
func (s *Store) Get(ctx context.Context, id int64) (*Template, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, email_ids, created_by, created_at
		FROM permission_templates
		WHERE id = $1
	`, id)
	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %d: %w", id, authz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template %d: %w", id, err)
	}
	return tmpl, nil
}

// List returns all templates ordered by name.
func (s *Store) List(ctx context.Context) ([]*Template, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, email_ids, created_by, created_at
		FROM permission_templates
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var result []*Template
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		result = append(result, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read templates: %w", err)
	}
	return result, nil
}

// Update modifies a template in place.
func (s *Store) Update(ctx context.Context, id int64, req UpdateTemplateRequest) (*Template, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sets := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)
	if req.Name != nil {
		args = append(args, strings.TrimSpace(*req.Name))
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if req.Description != nil {
		args = append(args, *req.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if req.EmailIDs != nil {
		payload, err := json.Marshal(*req.EmailIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode email ids: %w", err)
		}
		args = append(args, payload)
		sets = append(sets, fmt.Sprintf("email_ids = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE permission_templates SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update template %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("template %d: %w", id, authz.ErrNotFound)
	}

	return s.Get(ctx, id)
}

// Delete removes a template.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM permission_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("template %d: %w", id, authz.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	tmpl := &Template{}
	var description sql.NullString
	var createdBy sql.NullInt64
	var payload []byte

	if err := row.Scan(&tmpl.ID, &tmpl.Name, &description, &payload, &createdBy, &tmpl.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		tmpl.Description = description.String
	}
	if createdBy.Valid {
		id := createdBy.Int64
		tmpl.CreatedBy = &id
	}
	if err := json.Unmarshal(payload, &tmpl.EmailIDs); err != nil {
		return nil, fmt.Errorf("failed to decode email ids: %w", err)
	}
	if tmpl.EmailIDs == nil {
		tmpl.EmailIDs = []int64{}
	}
	return tmpl, nil
}
