package rooms

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oneform/formroom/pkg/validation"
)

var (
	ErrNotFound       = errors.New("room not found")
	ErrAccessNotFound = errors.New("room access not found")
	ErrForbidden      = errors.New("room belongs to another user")
	ErrInvalidRoom    = errors.New("invalid room")
	ErrInvalidWindow  = errors.New("invalid access window")

	// ErrPlanLimit is returned when the relevant plan does not allow the action.
	ErrPlanLimit = errors.New("plan limit reached")

	// ErrNoTemplate is returned when a room has no template to fill.
	ErrNoTemplate = errors.New("room has no template")

	// ErrSchemaViolation is matched by *SchemaError.
	ErrSchemaViolation = errors.New("form does not satisfy the room schema")

	// ErrWindowClosed is returned when the owner reads a response outside its window.
	ErrWindowClosed = errors.New("response is outside its access window")
)

// SchemaError lists the fields of a form that violate a room schema.
type SchemaError struct {
	Errors []*validation.FieldError
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("%s: %s", ErrSchemaViolation, strings.Join(msgs, "; "))
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// RoomInput is what an owner supplies when creating or editing a room.
type RoomInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Template    string          `json:"template"`
	Recommended Window          `json:"recommended"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// Room is a decrypted file room.
type Room struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Template    string          `json:"template"`
	Recommended Window          `json:"recommended"`
	Schema      json.RawMessage `json:"schema,omitempty"`

	// ConnectedUsers is only populated for the room owner.
	ConnectedUsers []string `json:"connectedUsers,omitempty"`

	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
	DecryptionError bool      `json:"decryptionError,omitempty"`
}

// Access is a member's join of a room, as the member sees it.
type Access struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	RoomName  string    `json:"roomName,omitempty"`
	UserID    string    `json:"userId"`
	FormID    string    `json:"selectedForm"`
	Text      string    `json:"text"`
	Window    Window    `json:"window"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Preview is a room template filled with one form, before joining.
type Preview struct {
	Text       string   `json:"text"`
	Resolved   []string `json:"resolved"`
	Unresolved []string `json:"unresolved"`
}

// Response is a member's filled text as the room owner sees it. Text is
// empty unless Available.
type Response struct {
	AccessID        string    `json:"accessId"`
	UserID          string    `json:"userId"`
	DisplayName     string    `json:"displayName"`
	FormID          string    `json:"selectedForm"`
	Window          Window    `json:"window"`
	Available       bool      `json:"available"`
	Text            string    `json:"text,omitempty"`
	SubmittedAt     time.Time `json:"submittedAt"`
	DecryptionError bool      `json:"decryptionError,omitempty"`
}
