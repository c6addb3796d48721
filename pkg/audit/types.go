package audit

import "time"

// EventType identifies the mutation being recorded
type EventType string

const (
	EventAssignmentReplace EventType = "assignment.replace"
	EventAssignmentRemove  EventType = "assignment.remove"
	EventTemplateApply     EventType = "template.apply"
	EventPlatformReplace   EventType = "platform.replace"
	EventUserLogin         EventType = "user.login"
	EventUserCreate        EventType = "user.create"
	EventUserDelete        EventType = "user.delete"
)

// EventStatus is the recorded outcome
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusPartial EventStatus = "partial"
	StatusFailure EventStatus = "failure"
)

// Event is one activity log row. UserID is the acting user and may be
// nil after that user is deleted.
type Event struct {
	ID        int64                  `json:"id"`
	UserID    *int64                 `json:"user_id,omitempty"`
	Type      EventType              `json:"event_type"`
	Status    EventStatus            `json:"status"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
