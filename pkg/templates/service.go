package templates

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/buzonshare/buzonshare/pkg/assignment"
	"github.com/buzonshare/buzonshare/pkg/audit"
	"github.com/buzonshare/buzonshare/pkg/authz"
	"github.com/buzonshare/buzonshare/pkg/observability"
)

// ApplyRequest names the users a template should be applied to.
type ApplyRequest struct {
	UserIDs []int64 `json:"user_ids"`
}

// Validate checks the apply payload.
func (r *ApplyRequest) Validate() error {
	if len(r.UserIDs) == 0 {
		return fmt.Errorf("at least one user id is required: %w", authz.ErrValidation)
	}
	seen := make(map[int64]struct{}, len(r.UserIDs))
	deduped := r.UserIDs[:0]
	for _, id := range r.UserIDs {
		if id <= 0 {
			return fmt.Errorf("user id %d must be positive: %w", id, authz.ErrValidation)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	r.UserIDs = deduped
	return nil
}

// ApplyFailure records why one user was skipped.
type ApplyFailure struct {
	UserID int64  `json:"user_id"`
	Reason string `json:"reason"`
}

// ApplyResult is the per-user accounting of a template application.
type ApplyResult struct {
	TemplateID     int64          `json:"template_id"`
	AppliedUserIDs []int64        `json:"applied_user_ids"`
	Failures       []ApplyFailure `json:"failures,omitempty"`
	Message        string         `json:"message"`
}

// Partial reports whether some but not all users got the template.
func (r *ApplyResult) Partial() bool {
	return len(r.AppliedUserIDs) > 0 && len(r.Failures) > 0
}

// Service applies templates through the assignment engine.
type Service struct {
	store   *Store
	engine  *assignment.Engine
	audit   audit.Logger
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates a new template service
func NewService(store *Store, engine *assignment.Engine, auditLog audit.Logger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		engine:  engine,
		audit:   auditLog,
		metrics: metrics,
		logger:  logger,
	}
}

// Apply replaces each target user's assignment set with the template's
// email list. Users are processed independently: scope filtering,
// manageability, and transaction boundaries all apply per user, so one
// failure never undoes another user's replacement.
func (s *Service) Apply(ctx context.Context, actor authz.Actor, templateID int64, req ApplyRequest) (*ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tmpl, err := s.store.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{TemplateID: templateID}
	for _, userID := range req.UserIDs {
		_, err := s.engine.Assign(ctx, actor, userID, assignment.AssignRequest{EmailIDs: tmpl.EmailIDs})
		if err != nil {
			s.logger.Warn("template application failed for user",
				"template_id", templateID,
				"user_id", userID,
				"error", err,
			)
			result.Failures = append(result.Failures, ApplyFailure{UserID: userID, Reason: err.Error()})
			continue
		}
		result.AppliedUserIDs = append(result.AppliedUserIDs, userID)
	}

	total := len(req.UserIDs)
	applied := len(result.AppliedUserIDs)
	result.Message = fmt.Sprintf("Plantilla %q aplicada a %d de %d usuarios", tmpl.Name, applied, total)

	outcome := "success"
	status := audit.StatusSuccess
	switch {
	case applied == 0:
		outcome = "failure"
		status = audit.StatusFailure
	case applied < total:
		outcome = "partial"
		status = audit.StatusPartial
	}
	s.metrics.TemplateApplicationsTotal.WithLabelValues(outcome).Inc()

	s.audit.Log(ctx, &actor.ID, audit.EventTemplateApply, status, map[string]interface{}{
		"template_id":      templateID,
		"applied_user_ids": result.AppliedUserIDs,
		"failed_count":     len(result.Failures),
	})

	return result, nil
}
