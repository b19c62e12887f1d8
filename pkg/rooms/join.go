package rooms

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oneform/formroom/internal/id"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/validation"
)

// fill checks form against the room schema and resolves the room template.
func (s *Service) fill(ctx context.Context, room *Room, userID, formID string) (*forms.Form, string, error) {
	if room.Template == "" {
		return nil, "", ErrNoTemplate
	}
	form, err := s.forms.Get(ctx, userID, formID)
	if err != nil {
		return nil, "", err
	}
	if len(room.Schema) > 0 {
		schema, err := validation.Compile([]byte(room.Schema))
		if err != nil {
			return nil, "", fmt.Errorf("room %s: schema: %w", room.ID, err)
		}
		if res := schema.Validate(form.Data); !res.Valid {
			return nil, "", &SchemaError{Errors: res.Errors}
		}
	}
	return form, s.engine.Fill(room.Template, form.Data).Text, nil
}

// Join fills the room template with one of userID's forms and stores the
// result as a new access. A zero window takes the room's recommended one.
func (s *Service) Join(ctx context.Context, userID, roomID, formID string, w Window) (*Access, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lock("room:" + roomID)
	defer unlock()

	roomDoc, room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	form, text, err := s.fill(ctx, room, userID, formID)
	if err != nil {
		return nil, err
	}
	if w.IsZero() {
		w = room.Recommended
	}

	connected := room.ConnectedUsers
	isNew := !slices.Contains(connected, userID)
	if isNew {
		plan, err := s.accounts.Plan(ctx, room.OwnerID)
		if err != nil {
			return nil, err
		}
		allowed, err := s.gate.Allow(ctx, plans.FeatureJoinRoom, plan, plans.Usage{Users: len(connected)})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("%w: room %s is full", ErrPlanLimit, roomID)
		}
	}

	blob, err := s.seal(text)
	if err != nil {
		return nil, err
	}
	doc := &store.Document{
		ID: id.Access(userID),
		Fields: map[string]any{
			fieldRoomID:       roomID,
			fieldUserID:       userID,
			fieldSelectedForm: form.ID,
			fieldEncrypted:    blob,
		},
	}
	setAccessWindow(doc, w)
	if err := s.access.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save access: %w", err)
	}

	if isNew {
		roomDoc.Fields[fieldConnectedUsers] = toAny(append(connected, userID))
		if err := s.rooms.Put(ctx, roomDoc); err != nil {
			return nil, fmt.Errorf("failed to update room members: %w", err)
		}
	}

	s.log.Info("room joined", "room", roomID, "access", doc.ID)
	return &Access{
		ID:        doc.ID,
		RoomID:    roomID,
		RoomName:  room.Name,
		UserID:    userID,
		FormID:    form.ID,
		Text:      text,
		Window:    w,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

// ownedAccess loads an access and checks that userID is its member.
func (s *Service) ownedAccess(ctx context.Context, userID, accessID string) (*store.Document, error) {
	doc, err := s.access.Get(ctx, accessID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access %s: %w", accessID, err)
	}
	if accessUser(doc) != userID {
		return nil, ErrForbidden
	}
	return doc, nil
}

// toAccess decodes an access document. roomName may be empty.
func (s *Service) toAccess(doc *store.Document, roomName string) (*Access, error) {
	text, legacy, err := decodeAccessText(doc, s.keyring)
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", doc.ID, err)
	}
	if legacy {
		s.log.Warn("access is not encrypted; run migrate to seal it", "id", doc.ID)
	}
	w, err := accessWindow(doc)
	if err != nil {
		return nil, fmt.Errorf("access %s: %w", doc.ID, err)
	}
	return &Access{
		ID:        doc.ID,
		RoomID:    doc.String(fieldRoomID),
		RoomName:  roomName,
		UserID:    accessUser(doc),
		FormID:    doc.String(fieldSelectedForm),
		Text:      text,
		Window:    w,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}, nil
}

func (s *Service) roomName(ctx context.Context, roomID string) string {
	_, room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return ""
	}
	return room.Name
}

// SetAccessWindow changes when the room owner may read an access.
func (s *Service) SetAccessWindow(ctx context.Context, userID, accessID string, w Window) (*Access, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.ownedAccess(ctx, userID, accessID)
	if err != nil {
		return nil, err
	}
	setAccessWindow(doc, w)
	if err := s.access.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save access: %w", err)
	}
	return s.toAccess(doc, s.roomName(ctx, doc.String(fieldRoomID)))
}

// ListJoined returns every access of userID, oldest first.
func (s *Service) ListJoined(ctx context.Context, userID string) ([]*Access, error) {
	docs, err := s.access.Query(ctx, store.Where(fieldUserID, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}
	names := map[string]string{}
	result := make([]*Access, 0, len(docs))
	for _, doc := range docs {
		roomID := doc.String(fieldRoomID)
		name, ok := names[roomID]
		if !ok {
			name = s.roomName(ctx, roomID)
			names[roomID] = name
		}
		a, err := s.toAccess(doc, name)
		if err != nil {
			s.log.Error("failed to decode access", "id", doc.ID, "error", err)
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

// UpdateJoined re-fills an access from a form. An empty formID keeps the
// selected form and a zero window keeps the current one.
func (s *Service) UpdateJoined(ctx context.Context, userID, accessID, formID string, w Window) (*Access, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.ownedAccess(ctx, userID, accessID)
	if err != nil {
		return nil, err
	}
	_, room, err := s.loadRoom(ctx, doc.String(fieldRoomID))
	if err != nil {
		return nil, err
	}
	if formID == "" {
		formID = doc.String(fieldSelectedForm)
	}
	form, text, err := s.fill(ctx, room, userID, formID)
	if err != nil {
		return nil, err
	}
	blob, err := s.seal(text)
	if err != nil {
		return nil, err
	}

	doc.Fields[fieldSelectedForm] = form.ID
	doc.Fields[fieldEncrypted] = blob
	doc.Fields[fieldUserID] = userID
	delete(doc.Fields, fieldFilledForm)
	if !w.IsZero() {
		setAccessWindow(doc, w)
	}
	if err := s.access.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save access: %w", err)
	}
	return s.toAccess(doc, room.Name)
}

// Leave deletes an access. The member is dropped from the room's connected
// users once none of their accesses to it remain.
func (s *Service) Leave(ctx context.Context, userID, accessID string) error {
	doc, err := s.ownedAccess(ctx, userID, accessID)
	if err != nil {
		return err
	}
	roomID := doc.String(fieldRoomID)

	unlock := s.lock("room:" + roomID)
	defer unlock()

	if err := s.access.Delete(ctx, accessID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete access %s: %w", accessID, err)
	}
	return s.disconnectIfGone(ctx, roomID, userID)
}

// disconnectIfGone removes userID from the room's connected users when
// they hold no access to it. The caller holds the room lock.
func (s *Service) disconnectIfGone(ctx context.Context, roomID, userID string) error {
	remaining, err := s.access.Query(ctx, store.Where(fieldRoomID, roomID), store.Where(fieldUserID, userID))
	if err != nil {
		return fmt.Errorf("failed to list accesses: %w", err)
	}
	if len(remaining) > 0 {
		return nil
	}

	roomDoc, err := s.rooms.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	users := roomDoc.Strings(fieldConnectedUsers)
	kept := removeUser(slices.Clone(users), userID)
	if len(kept) == len(users) {
		return nil
	}
	roomDoc.Fields[fieldConnectedUsers] = toAny(kept)
	if err := s.rooms.Put(ctx, roomDoc); err != nil {
		return fmt.Errorf("failed to update room members: %w", err)
	}
	return nil
}
