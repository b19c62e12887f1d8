package audit

import (
	"time"
)

// Event constants define the types of events that can be logged.
const (
	EventResponseRevealed = "response.revealed"
	EventResponsesListed  = "responses.listed"
	EventAccessPurged     = "access.purged"
	EventRoomDeleted      = "room.deleted"
	EventError            = "error"
)

// AuditEntry represents a single audit log record.
type AuditEntry struct {
	// Sequence is a monotonically increasing sequence number for ordering entries.
	Sequence int64 `json:"sequence"`

	Timestamp time.Time `json:"timestamp"`

	// TraceID correlates entries written while serving the same request.
	TraceID string `json:"traceId,omitempty"`

	Event string `json:"event"`

	// Actor is the user who caused the event.
	Actor *ActorInfo `json:"actor,omitempty"`

	Room *RoomInfo `json:"room,omitempty"`

	// Subjects are the users whose data was touched.
	Subjects []SubjectInfo `json:"subjects,omitempty"`

	Error *ErrorInfo `json:"error,omitempty"`
}

// ActorInfo identifies the user performing an action.
type ActorInfo struct {
	UserID     string `json:"userId"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
}

// RoomInfo identifies the room an event concerns.
type RoomInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
}

// SubjectInfo identifies a member whose filled form was involved.
type SubjectInfo struct {
	UserID   string `json:"userId"`
	AccessID string `json:"accessId,omitempty"`
	FormID   string `json:"formId,omitempty"`
}

// ErrorInfo captures a failure associated with the event.
type ErrorInfo struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// NewAuditEntry creates an entry stamped with the current time.
func NewAuditEntry(event string, traceID string) *AuditEntry {
	return &AuditEntry{
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Event:     event,
	}
}

func (e *AuditEntry) WithActor(actor *ActorInfo) *AuditEntry {
	e.Actor = actor
	return e
}

func (e *AuditEntry) WithRoom(room *RoomInfo) *AuditEntry {
	e.Room = room
	return e
}

// WithSubject appends a subject to the entry.
func (e *AuditEntry) WithSubject(subject SubjectInfo) *AuditEntry {
	e.Subjects = append(e.Subjects, subject)
	return e
}

func (e *AuditEntry) WithError(err *ErrorInfo) *AuditEntry {
	e.Error = err
	return e
}
