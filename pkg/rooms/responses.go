package rooms

import (
	"context"
	"errors"
	"fmt"

	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/store"
)

// toResponse builds the owner's view of an access. Text is only decoded
// while the window is open.
func (s *Service) toResponse(ctx context.Context, doc *store.Document) *Response {
	userID := accessUser(doc)
	r := &Response{
		AccessID:    doc.ID,
		UserID:      userID,
		DisplayName: s.displayName(ctx, userID),
		FormID:      doc.String(fieldSelectedForm),
		SubmittedAt: doc.CreatedAt,
	}
	w, err := accessWindow(doc)
	if err != nil {
		s.log.Warn("access has a malformed window", "id", doc.ID, "error", err)
		return r
	}
	r.Window = w
	if !w.Contains(s.now()) {
		return r
	}
	r.Available = true
	text, _, err := decodeAccessText(doc, s.keyring)
	if err != nil {
		s.log.Error("failed to decrypt access", "id", doc.ID, "error", err)
		r.DecryptionError = true
		return r
	}
	r.Text = text
	return r
}

// Responses lists every member response to a room for its owner.
func (s *Service) Responses(ctx context.Context, ownerID, roomID string) ([]*Response, error) {
	_, room, err := s.ownedRoom(ctx, ownerID, roomID)
	if err != nil {
		return nil, err
	}
	docs, err := s.access.Query(ctx, store.Where(fieldRoomID, roomID))
	if err != nil {
		return nil, fmt.Errorf("failed to list accesses: %w", err)
	}

	entry := s.revealEntry(ctx, audit.EventResponsesListed, ownerID, room)
	result := make([]*Response, 0, len(docs))
	for _, doc := range docs {
		r := s.toResponse(ctx, doc)
		if r.Available && !r.DecryptionError {
			entry.WithSubject(audit.SubjectInfo{UserID: r.UserID, AccessID: r.AccessID, FormID: r.FormID})
		}
		result = append(result, r)
	}
	if len(entry.Subjects) > 0 {
		s.writeAudit(entry)
	}
	return result, nil
}

// Response returns one member response to a room, or ErrWindowClosed when
// its window is not open.
func (s *Service) Response(ctx context.Context, ownerID, roomID, accessID string) (*Response, error) {
	_, room, err := s.ownedRoom(ctx, ownerID, roomID)
	if err != nil {
		return nil, err
	}
	doc, err := s.access.Get(ctx, accessID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccessNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load access %s: %w", accessID, err)
	}
	if doc.String(fieldRoomID) != roomID {
		return nil, ErrAccessNotFound
	}

	r := s.toResponse(ctx, doc)
	if !r.Available {
		return nil, ErrWindowClosed
	}
	if r.DecryptionError {
		return nil, fmt.Errorf("access %s: unable to decrypt response", accessID)
	}
	s.writeAudit(s.revealEntry(ctx, audit.EventResponseRevealed, ownerID, room).
		WithSubject(audit.SubjectInfo{UserID: r.UserID, AccessID: r.AccessID, FormID: r.FormID}))
	return r, nil
}

func (s *Service) revealEntry(ctx context.Context, event, ownerID string, room *Room) *audit.AuditEntry {
	return audit.NewAuditEntry(event, audit.TraceID(ctx)).
		WithActor(&audit.ActorInfo{UserID: ownerID}).
		WithRoom(&audit.RoomInfo{ID: room.ID, Name: room.Name, OwnerID: room.OwnerID})
}

// PurgeExpired deletes every access whose window closed before now and
// disconnects members left with no access. It returns how many accesses
// were deleted.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	docs, err := s.access.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accesses: %w", err)
	}

	now := s.now()
	type member struct{ room, user string }
	touched := map[member]bool{}
	purged := 0
	for _, doc := range docs {
		w, err := accessWindow(doc)
		if err != nil || !w.Expired(now) {
			continue
		}
		if err := s.access.Delete(ctx, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return purged, fmt.Errorf("failed to delete access %s: %w", doc.ID, err)
		}
		purged++
		touched[member{doc.String(fieldRoomID), accessUser(doc)}] = true

		s.writeAudit(audit.NewAuditEntry(audit.EventAccessPurged, audit.TraceID(ctx)).
			WithRoom(&audit.RoomInfo{ID: doc.String(fieldRoomID)}).
			WithSubject(audit.SubjectInfo{UserID: accessUser(doc), AccessID: doc.ID}))
	}

	for m := range touched {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		unlock := s.lock("room:" + m.room)
		err := s.disconnectIfGone(ctx, m.room, m.user)
		unlock()
		if err != nil {
			return purged, err
		}
	}
	if purged > 0 {
		s.log.Info("purged expired accesses", "count", purged)
	}
	return purged, nil
}
