package rooms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oneform/formroom/internal/id"
	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/logging"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/template"
	"github.com/oneform/formroom/pkg/validation"
)

// Deps are the collaborators of a Service. Store, Keyring and Forms are
// required; the rest have defaults.
type Deps struct {
	Store    store.DocumentStore
	Keyring  *crypto.Keyring
	Forms    *forms.Service
	Accounts *plans.Accounts
	Gate     *plans.Gate
	Audit    audit.AuditLogger
	Logger   *slog.Logger

	// PublicBaseURL prefixes invite links, e.g. "https://formroom.example".
	PublicBaseURL string
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithEngine sets the template engine used to fill rooms.
func WithEngine(e *template.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// Service manages rooms and their accesses.
type Service struct {
	rooms    *store.Collection
	access   *store.Collection
	users    *store.Collection
	keyring  *crypto.Keyring
	forms    *forms.Service
	accounts *plans.Accounts
	gate     *plans.Gate
	audit    audit.AuditLogger
	log      *slog.Logger
	engine   *template.Engine
	baseURL  string
	now      func() time.Time

	// locks serialises membership changes per room and room creation per owner.
	locks sync.Map
}

// NewService creates a room service.
func NewService(d Deps, opts ...Option) (*Service, error) {
	if d.Store == nil || d.Keyring == nil || d.Forms == nil {
		return nil, errors.New("rooms: store, keyring and forms service are required")
	}
	if d.Accounts == nil {
		d.Accounts = plans.NewAccounts(d.Store)
	}
	if d.Gate == nil {
		g, err := plans.NewGate(nil)
		if err != nil {
			return nil, err
		}
		d.Gate = g
	}
	if d.Audit == nil {
		d.Audit = &audit.NoOpLogger{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}

	s := &Service{
		rooms:    store.NewCollection(d.Store, store.CollectionRooms),
		access:   store.NewCollection(d.Store, store.CollectionUserAccess),
		users:    store.NewCollection(d.Store, store.CollectionUsers),
		keyring:  d.Keyring,
		forms:    d.Forms,
		accounts: d.Accounts,
		gate:     d.Gate,
		audit:    d.Audit,
		log:      d.Logger.With("component", "rooms"),
		engine:   template.New(),
		baseURL:  strings.TrimRight(d.PublicBaseURL, "/"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) lock(key string) func() {
	v, _ := s.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// normalize checks a room input and converts it to a payload.
func normalize(in RoomInput) (roomPayload, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return roomPayload{}, fmt.Errorf("%w: name is required", ErrInvalidRoom)
	}
	if err := template.Validate(in.Template); err != nil {
		return roomPayload{}, fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	if err := in.Recommended.Validate(); err != nil {
		return roomPayload{}, err
	}

	p := roomPayload{
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		FormContent: in.Template,
	}
	p.setWindow(in.Recommended)

	if len(in.Schema) > 0 && string(in.Schema) != "null" {
		if _, err := validation.Compile([]byte(in.Schema)); err != nil {
			return roomPayload{}, fmt.Errorf("%w: schema: %v", ErrInvalidRoom, err)
		}
		p.Schema = in.Schema
	}
	return p, nil
}

func (s *Service) seal(v any) (string, error) {
	blob, err := s.keyring.Seal(v)
	if err != nil {
		return "", fmt.Errorf("failed to seal: %w", err)
	}
	return blob, nil
}

// loadRoom fetches and decodes a room document.
func (s *Service) loadRoom(ctx context.Context, roomID string) (*store.Document, *Room, error) {
	doc, err := s.rooms.Get(ctx, roomID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load room %s: %w", roomID, err)
	}
	room, err := s.toRoom(doc)
	if err != nil {
		return nil, nil, err
	}
	return doc, room, nil
}

func (s *Service) toRoom(doc *store.Document) (*Room, error) {
	p, legacy, err := decodeRoom(doc, s.keyring)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", doc.ID, err)
	}
	if legacy {
		s.log.Warn("room is not encrypted; run migrate to seal it", "id", doc.ID)
	}
	w, err := p.window()
	if err != nil {
		s.log.Warn("ignoring malformed recommended window", "id", doc.ID, "error", err)
		w = Window{}
	}
	return &Room{
		ID:             doc.ID,
		OwnerID:        doc.String(fieldOwnerID),
		Name:           p.Name,
		Description:    p.Description,
		Template:       p.FormContent,
		Recommended:    w,
		Schema:         p.Schema,
		ConnectedUsers: doc.Strings(fieldConnectedUsers),
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}, nil
}

// ownedRoom loads a room and checks that ownerID owns it.
func (s *Service) ownedRoom(ctx context.Context, ownerID, roomID string) (*store.Document, *Room, error) {
	doc, room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, nil, err
	}
	if room.OwnerID != ownerID {
		return nil, nil, ErrForbidden
	}
	return doc, room, nil
}

// Create stores a new room owned by ownerID, subject to the owner's plan.
func (s *Service) Create(ctx context.Context, ownerID string, in RoomInput) (*Room, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRoom)
	}
	p, err := normalize(in)
	if err != nil {
		return nil, err
	}

	unlock := s.lock("owner:" + ownerID)
	defer unlock()

	owned, err := s.rooms.Query(ctx, store.Where(fieldOwnerID, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to count rooms: %w", err)
	}
	plan, err := s.accounts.Plan(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.gate.Allow(ctx, plans.FeatureCreateRoom, plan, plans.Usage{Rooms: len(owned)})
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: the %s plan allows %d rooms", ErrPlanLimit, plans.DisplayName(plan.Name), plan.MaxRooms)
	}

	blob, err := s.seal(p)
	if err != nil {
		return nil, err
	}
	doc := &store.Document{
		ID: id.ULID(),
		Fields: map[string]any{
			fieldOwnerID:        ownerID,
			fieldConnectedUsers: []any{},
			fieldEncrypted:      blob,
		},
	}
	if err := s.rooms.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}
	s.log.Info("room created", "id", doc.ID, "owner", ownerID)
	return s.toRoom(doc)
}

// Get returns a room. Anyone may read a room so they can join it, but only
// the owner sees who is connected.
func (s *Service) Get(ctx context.Context, userID, roomID string) (*Room, error) {
	_, room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.OwnerID != userID {
		room.ConnectedUsers = nil
	}
	return room, nil
}

// ListOwned returns the rooms owned by ownerID, oldest first. Rooms that
// fail to decrypt are listed with DecryptionError set.
func (s *Service) ListOwned(ctx context.Context, ownerID string) ([]*Room, error) {
	docs, err := s.rooms.Query(ctx, store.Where(fieldOwnerID, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	result := make([]*Room, 0, len(docs))
	for _, doc := range docs {
		room, err := s.toRoom(doc)
		if err != nil {
			s.log.Error("failed to decrypt room", "id", doc.ID, "error", err)
			room = &Room{
				ID:              doc.ID,
				OwnerID:         ownerID,
				Name:            fmt.Sprintf("Error: Unable to decrypt (%s)", doc.ID),
				ConnectedUsers:  doc.Strings(fieldConnectedUsers),
				CreatedAt:       doc.CreatedAt,
				UpdatedAt:       doc.UpdatedAt,
				DecryptionError: true,
			}
		}
		result = append(result, room)
	}
	return result, nil
}

// Update replaces a room's content. Membership is kept.
func (s *Service) Update(ctx context.Context, ownerID, roomID string, in RoomInput) (*Room, error) {
	p, err := normalize(in)
	if err != nil {
		return nil, err
	}
	unlock := s.lock("room:" + roomID)
	defer unlock()

	doc, _, err := s.ownedRoom(ctx, ownerID, roomID)
	if err != nil {
		return nil, err
	}
	blob, err := s.seal(p)
	if err != nil {
		return nil, err
	}
	doc.Fields[fieldEncrypted] = blob
	if err := s.rooms.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}
	return s.toRoom(doc)
}

// SetRecommendedWindow changes the window new members get by default.
func (s *Service) SetRecommendedWindow(ctx context.Context, ownerID, roomID string, w Window) (*Room, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	unlock := s.lock("room:" + roomID)
	defer unlock()

	doc, _, err := s.ownedRoom(ctx, ownerID, roomID)
	if err != nil {
		return nil, err
	}
	p, _, err := decodeRoom(doc, s.keyring)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}
	p.setWindow(w)
	blob, err := s.seal(p)
	if err != nil {
		return nil, err
	}
	doc.Fields[fieldEncrypted] = blob
	if err := s.rooms.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save room: %w", err)
	}
	return s.toRoom(doc)
}

// Delete removes a room and every access to it.
func (s *Service) Delete(ctx context.Context, ownerID, roomID string) error {
	unlock := s.lock("room:" + roomID)
	defer unlock()

	_, room, err := s.ownedRoom(ctx, ownerID, roomID)
	if err != nil {
		return err
	}
	accesses, err := s.access.Query(ctx, store.Where(fieldRoomID, roomID))
	if err != nil {
		return fmt.Errorf("failed to list accesses: %w", err)
	}

	entry := audit.NewAuditEntry(audit.EventRoomDeleted, audit.TraceID(ctx)).
		WithActor(&audit.ActorInfo{UserID: ownerID}).
		WithRoom(&audit.RoomInfo{ID: roomID, Name: room.Name, OwnerID: ownerID})
	for _, doc := range accesses {
		if err := s.access.Delete(ctx, doc.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to delete access %s: %w", doc.ID, err)
		}
		entry.WithSubject(audit.SubjectInfo{UserID: accessUser(doc), AccessID: doc.ID})
	}
	if err := s.rooms.Delete(ctx, roomID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	s.writeAudit(entry)
	s.log.Info("room deleted", "id", roomID, "accesses", len(accesses))
	return nil
}

// InviteLink returns the URL members open to join room.
func (s *Service) InviteLink(room *Room) string {
	return s.baseURL + "/join-room/" + url.PathEscape(room.ID)
}

// Preview fills the room template with one of userID's forms without
// joining.
func (s *Service) Preview(ctx context.Context, userID, roomID, formID string) (*Preview, error) {
	_, room, err := s.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(room.Template) == "" {
		return nil, ErrNoTemplate
	}
	form, err := s.forms.Get(ctx, userID, formID)
	if err != nil {
		return nil, err
	}
	res := s.engine.Fill(room.Template, form.Data)
	return &Preview{Text: res.Text, Resolved: res.Resolved, Unresolved: res.Unresolved}, nil
}

func (s *Service) writeAudit(entry *audit.AuditEntry) {
	if err := s.audit.Log(*entry); err != nil {
		s.log.Error("failed to write audit entry", "event", entry.Event, "error", err)
	}
}

// displayName returns a user's display name from the users collection.
func (s *Service) displayName(ctx context.Context, userID string) string {
	doc, err := s.users.Get(ctx, userID)
	if err != nil {
		return unknownUser
	}
	if name := strings.TrimSpace(doc.String(fieldDisplayName)); name != "" {
		return name
	}
	return unknownUser
}

func removeUser(users []string, userID string) []string {
	return slices.DeleteFunc(users, func(u string) bool { return u == userID })
}

func toAny(users []string) []any {
	out := make([]any, len(users))
	for i, u := range users {
		out[i] = u
	}
	return out
}
