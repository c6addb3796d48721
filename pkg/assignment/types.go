package assignment

import (
	"fmt"
	"time"

	"github.com/buzonshare/buzonshare/pkg/authz"
)

// Assignment is one user↔email row joined with the catalog entry.
type Assignment struct {
	EmailID    int64     `json:"email_id"`
	Email      string    `json:"email"`
	AssignedBy *int64    `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

// AssignRequest is the payload for replacing a user's assignment set.
// An empty EmailIDs list clears the set.
type AssignRequest struct {
	EmailIDs []int64 `json:"email_ids"`
}

// Validate checks and normalizes the request: ids must be positive and
// duplicates collapse to the first occurrence.
func (r *AssignRequest) Validate() error {
	seen := make(map[int64]struct{}, len(r.EmailIDs))
	deduped := r.EmailIDs[:0]
	for _, id := range r.EmailIDs {
		if id <= 0 {
			return fmt.Errorf("email id %d must be positive: %w", id, authz.ErrValidation)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	r.EmailIDs = deduped
	return nil
}

// AssignResult describes a completed replace.
type AssignResult struct {
	AssignedIDs       []int64 `json:"assigned_ids"`
	PreviousIDs       []int64 `json:"previous_ids"`
	CascadeRemovedIDs []int64 `json:"cascade_removed_ids,omitempty"`
}
