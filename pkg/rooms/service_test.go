package rooms

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/internal/storage"
	"github.com/oneform/formroom/pkg/audit"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/forms"
	"github.com/oneform/formroom/pkg/plans"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/template"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type capturingAudit struct {
	mu      sync.Mutex
	entries []audit.AuditEntry
}

func (c *capturingAudit) Log(e audit.AuditEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *capturingAudit) Close() error { return nil }

func (c *capturingAudit) Events() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, e := range c.entries {
		out = append(out, e.Event)
	}
	return out
}

type fixture struct {
	svc   *Service
	forms *forms.Service
	store *storage.MemoryStore
	audit *capturingAudit
	now   time.Time
}

type fixtureOption func(*Deps)

func withGate(g *plans.Gate) fixtureOption {
	return func(d *Deps) { d.Gate = g }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	s := storage.NewMemoryStore()
	kr, err := crypto.NewKeyring("k1", map[string][]byte{"k1": bytes.Repeat([]byte{7}, crypto.KeySize)})
	require.NoError(t, err)

	f := &fixture{store: s, audit: &capturingAudit{}, now: testNow}
	f.forms = forms.NewService(s, kr, nil)
	deps := Deps{
		Store:         s,
		Keyring:       kr,
		Forms:         f.forms,
		Audit:         f.audit,
		PublicBaseURL: "https://formroom.example/",
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.svc, err = NewService(deps, WithClock(func() time.Time { return f.now }))
	require.NoError(t, err)

	_, err = plans.NewAccounts(s).SetPlan(context.Background(), "owner", plans.Premium)
	require.NoError(t, err)
	return f
}

func (f *fixture) form(t *testing.T, userID string, data template.Record) *forms.Form {
	t.Helper()
	form, err := f.forms.Create(context.Background(), userID, "Medical", data)
	require.NoError(t, err)
	return form
}

func (f *fixture) room(t *testing.T, in RoomInput) *Room {
	t.Helper()
	if in.Name == "" {
		in.Name = "Clinic intake"
	}
	if in.Template == "" {
		in.Template = "Patient: {{name}}, donor: {{organDonor}}, contact: {{emergencyContacts[0].name}}"
	}
	room, err := f.svc.Create(context.Background(), "owner", in)
	require.NoError(t, err)
	return room
}

func memberRecord() template.Record {
	return template.Record{
		"name":       "Ann Lee",
		"organDonor": true,
		"emergencyContacts": []any{
			map[string]any{"name": "Jane Doe"},
		},
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(Deps{})
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	room := f.room(t, RoomInput{Name: "  Clinic  ", Description: "Walk-in"})
	assert.Equal(t, "Clinic", room.Name)
	assert.Equal(t, "owner", room.OwnerID)
	assert.Empty(t, room.ConnectedUsers)

	doc, err := f.store.Get(ctx, store.CollectionRooms, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", doc.String("ownerId"))
	assert.True(t, crypto.IsSealed(doc.String("encryptedData")))
	assert.NotContains(t, doc.String("encryptedData"), "Clinic")
	assert.NotContains(t, doc.Fields, "name")
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RoomInput
		want error
	}{
		{"no name", RoomInput{Template: "{{a}}"}, ErrInvalidRoom},
		{"bad template", RoomInput{Name: "x", Template: "{{a} and {{"}, ErrInvalidRoom},
		{"bad schema", RoomInput{Name: "x", Schema: json.RawMessage(`{"type": 12}`)}, ErrInvalidRoom},
		{"bad window", RoomInput{Name: "x", Recommended: mustWindow(t, "2026-02-02", "2026-02-01")}, ErrInvalidWindow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, "owner", tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := f.svc.Create(ctx, "", RoomInput{Name: "x"})
	assert.ErrorIs(t, err, ErrInvalidRoom)
}

func mustWindow(t *testing.T, start, end string) Window {
	t.Helper()
	var w Window
	var err error
	if w.Start, err = parseBound(start, false); err != nil {
		t.Fatal(err)
	}
	if w.End, err = parseBound(end, true); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestCreatePlanLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	accounts := plans.NewAccounts(f.store)

	_, err := f.svc.Create(ctx, "basic-user", RoomInput{Name: "x"})
	assert.ErrorIs(t, err, ErrPlanLimit)

	_, err = accounts.SetPlan(ctx, "pro-user", plans.Pro)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.svc.Create(ctx, "pro-user", RoomInput{Name: "x"})
		require.NoError(t, err)
	}
	_, err = f.svc.Create(ctx, "pro-user", RoomInput{Name: "x"})
	assert.ErrorIs(t, err, ErrPlanLimit)
	assert.Contains(t, err.Error(), "Pro plan allows 2 rooms")
}

func TestGetHidesMembersFromOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{})
	form := f.form(t, "member", memberRecord())
	_, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, "owner", room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, got.ConnectedUsers)

	got, err = f.svc.Get(ctx, "member", room.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ConnectedUsers)
	assert.Equal(t, room.Template, got.Template)

	_, err = f.svc.Get(ctx, "owner", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateAndRecommendedWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{})

	_, err := f.svc.Update(ctx, "intruder", room.ID, RoomInput{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := f.svc.Update(ctx, "owner", room.ID, RoomInput{Name: "Renamed", Template: "{{name}}"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "{{name}}", updated.Template)

	w := mustWindow(t, "2026-04-01", "2026-04-30")
	updated, err = f.svc.SetRecommendedWindow(ctx, "owner", room.ID, w)
	require.NoError(t, err)
	assert.Equal(t, *w.Start, *updated.Recommended.Start)
	assert.Equal(t, *w.End, *updated.Recommended.End)
	assert.Equal(t, "Renamed", updated.Name)

	_, err = f.svc.SetRecommendedWindow(ctx, "owner", room.ID, mustWindow(t, "2026-04-02", "2026-04-01"))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestListOwned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.room(t, RoomInput{Name: "A"})
	f.room(t, RoomInput{Name: "B"})

	require.NoError(t, f.store.Put(ctx, store.CollectionRooms, &store.Document{
		ID:     "broken",
		Fields: map[string]any{"ownerId": "owner", "encryptedData": "fr1.k9.AAAA"},
	}))

	rooms, err := f.svc.ListOwned(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, first.ID, rooms[0].ID)
	assert.True(t, rooms[2].DecryptionError)
	assert.Equal(t, "Error: Unable to decrypt (broken)", rooms[2].Name)

	rooms, err = f.svc.ListOwned(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestLegacyPlaintextRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Put(ctx, store.CollectionRooms, &store.Document{
		ID: "legacy",
		Fields: map[string]any{
			"ownerId":              "owner",
			"name":                 "Old room",
			"formContent":          "Hi {{name}}",
			"recommendedStartDate": "2026-01-01",
			"recommendedEndDate":   "2026-12-31",
		},
	}))

	room, err := f.svc.Get(ctx, "owner", "legacy")
	require.NoError(t, err)
	assert.Equal(t, "Old room", room.Name)
	assert.Equal(t, "Hi {{name}}", room.Template)
	require.NotNil(t, room.Recommended.End)
	assert.True(t, room.Recommended.Contains(testNow))
}

func TestInviteLink(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "https://formroom.example/join-room/abc", f.svc.InviteLink(&Room{ID: "abc"}))
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{Template: "{{name}} / {{bloodType}}"})
	form := f.form(t, "member", memberRecord())

	p, err := f.svc.Preview(ctx, "member", room.ID, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann Lee / {{bloodType}}", p.Text)
	assert.Equal(t, []string{"name"}, p.Resolved)
	assert.Equal(t, []string{"bloodType"}, p.Unresolved)

	_, err = f.svc.Preview(ctx, "someone-else", room.ID, form.ID)
	assert.ErrorIs(t, err, forms.ErrForbidden)

	empty, err := f.svc.Create(ctx, "owner", RoomInput{Name: "empty"})
	require.NoError(t, err)
	_, err = f.svc.Preview(ctx, "member", empty.ID, form.ID)
	assert.ErrorIs(t, err, ErrNoTemplate)
}

func TestJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	recommended := mustWindow(t, "2026-03-01", "2026-03-31")
	room := f.room(t, RoomInput{Recommended: recommended})
	form := f.form(t, "member", memberRecord())

	access, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)
	assert.Equal(t, "Patient: Ann Lee, donor: true, contact: Jane Doe", access.Text)
	assert.Equal(t, "Clinic intake", access.RoomName)
	assert.Equal(t, form.ID, access.FormID)
	assert.Equal(t, *recommended.End, *access.Window.End)
	assert.Regexp(t, `^member_[0-9a-f-]{36}$`, access.ID)

	doc, err := f.store.Get(ctx, store.CollectionUserAccess, access.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, doc.String("roomId"))
	assert.True(t, crypto.IsSealed(doc.String("encryptedData")))
	assert.NotContains(t, doc.String("encryptedData"), "Ann")

	// A second join by the same member does not duplicate membership.
	_, err = f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)
	got, err := f.svc.Get(ctx, "owner", room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, got.ConnectedUsers)

	_, err = f.svc.Join(ctx, "member", room.ID, form.ID, mustWindow(t, "2026-03-05", "2026-03-04"))
	assert.ErrorIs(t, err, ErrInvalidWindow)
	_, err = f.svc.Join(ctx, "member", "missing", form.ID, Window{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJoinSchemaViolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{Schema: json.RawMessage(`{
		"type": "object",
		"required": ["name", "bloodType"],
		"properties": {"name": {"type": "string"}}
	}`)})
	form := f.form(t, "member", memberRecord())

	_, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.ErrorIs(t, err, ErrSchemaViolation)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Errors)
	assert.Contains(t, err.Error(), "bloodType")

	ok := memberRecord()
	ok["bloodType"] = "O+"
	good := f.form(t, "member", ok)
	_, err = f.svc.Join(ctx, "member", room.ID, good.ID, Window{})
	assert.NoError(t, err)
}

func TestJoinPlanLimit(t *testing.T) {
	gate, err := plans.NewGate(map[string]string{plans.FeatureJoinRoom: "usage.users < 1"})
	require.NoError(t, err)
	f := newFixture(t, withGate(gate))
	ctx := context.Background()
	room := f.room(t, RoomInput{})

	first := f.form(t, "first", memberRecord())
	second := f.form(t, "second", memberRecord())

	_, err = f.svc.Join(ctx, "first", room.ID, first.ID, Window{})
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "second", room.ID, second.ID, Window{})
	assert.ErrorIs(t, err, ErrPlanLimit)

	// Members already connected may join again.
	_, err = f.svc.Join(ctx, "first", room.ID, first.ID, Window{})
	assert.NoError(t, err)
}

func TestAccessLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{})
	form := f.form(t, "member", memberRecord())

	a1, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)
	a2, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)

	joined, err := f.svc.ListJoined(ctx, "member")
	require.NoError(t, err)
	require.Len(t, joined, 2)
	assert.Equal(t, "Clinic intake", joined[0].RoomName)

	w := mustWindow(t, "2026-03-01", "2026-03-20")
	updated, err := f.svc.SetAccessWindow(ctx, "member", a1.ID, w)
	require.NoError(t, err)
	assert.Equal(t, *w.End, *updated.Window.End)

	_, err = f.svc.SetAccessWindow(ctx, "intruder", a1.ID, w)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.SetAccessWindow(ctx, "member", "nope", w)
	assert.ErrorIs(t, err, ErrAccessNotFound)
	_, err = f.svc.SetAccessWindow(ctx, "member", a1.ID, mustWindow(t, "2026-03-21", "2026-03-20"))
	assert.ErrorIs(t, err, ErrInvalidWindow)

	rec := memberRecord()
	rec["name"] = "Ann Park"
	newForm := f.form(t, "member", rec)
	refilled, err := f.svc.UpdateJoined(ctx, "member", a1.ID, newForm.ID, Window{})
	require.NoError(t, err)
	assert.Contains(t, refilled.Text, "Ann Park")
	assert.Equal(t, newForm.ID, refilled.FormID)
	assert.Equal(t, *w.End, *refilled.Window.End, "zero window keeps the current one")

	require.NoError(t, f.svc.Leave(ctx, "member", a1.ID))
	got, err := f.svc.Get(ctx, "owner", room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"member"}, got.ConnectedUsers, "member still holds a2")

	assert.ErrorIs(t, f.svc.Leave(ctx, "intruder", a2.ID), ErrForbidden)
	require.NoError(t, f.svc.Leave(ctx, "member", a2.ID))
	got, err = f.svc.Get(ctx, "owner", room.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ConnectedUsers)
}

func TestResponses(t *testing.T) {
	f := newFixture(t)
	ctx := audit.WithTraceID(context.Background(), "trace-1")
	room := f.room(t, RoomInput{})

	ann := f.form(t, "ann", memberRecord())
	bob := f.form(t, "bob", memberRecord())
	require.NoError(t, f.store.Put(ctx, store.CollectionUsers, &store.Document{
		ID: "ann", Fields: map[string]any{"displayName": "Ann Lee"},
	}))

	open, err := f.svc.Join(ctx, "ann", room.ID, ann.ID, mustWindow(t, "2026-03-01", ""))
	require.NoError(t, err)
	closed, err := f.svc.Join(ctx, "bob", room.ID, bob.ID, mustWindow(t, "2026-04-01", ""))
	require.NoError(t, err)

	_, err = f.svc.Responses(ctx, "ann", room.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	responses, err := f.svc.Responses(ctx, "owner", room.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	assert.Equal(t, open.ID, responses[0].AccessID)
	assert.True(t, responses[0].Available)
	assert.Equal(t, "Ann Lee", responses[0].DisplayName)
	assert.Contains(t, responses[0].Text, "Ann Lee")

	assert.Equal(t, closed.ID, responses[1].AccessID)
	assert.False(t, responses[1].Available)
	assert.Empty(t, responses[1].Text)
	assert.Equal(t, "Unknown User", responses[1].DisplayName)

	r, err := f.svc.Response(ctx, "owner", room.ID, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.Text, r.Text)

	_, err = f.svc.Response(ctx, "owner", room.ID, closed.ID)
	assert.ErrorIs(t, err, ErrWindowClosed)
	_, err = f.svc.Response(ctx, "owner", room.ID, "missing")
	assert.ErrorIs(t, err, ErrAccessNotFound)

	// The window opens once the clock moves.
	f.now = time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	_, err = f.svc.Response(ctx, "owner", room.ID, closed.ID)
	assert.NoError(t, err)

	assert.Equal(t, []string{
		audit.EventResponsesListed,
		audit.EventResponseRevealed,
		audit.EventResponseRevealed,
	}, f.audit.Events())
	f.audit.mu.Lock()
	listed := f.audit.entries[0]
	f.audit.mu.Unlock()
	assert.Equal(t, "trace-1", listed.TraceID)
	assert.Equal(t, "owner", listed.Actor.UserID)
	require.Len(t, listed.Subjects, 1)
	assert.Equal(t, open.ID, listed.Subjects[0].AccessID)
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{})
	form := f.form(t, "member", memberRecord())
	access, err := f.svc.Join(ctx, "member", room.ID, form.ID, Window{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, "member", room.ID), ErrForbidden)
	require.NoError(t, f.svc.Delete(ctx, "owner", room.ID))

	_, err = f.store.Get(ctx, store.CollectionUserAccess, access.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.Get(ctx, "owner", room.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.audit.Events(), audit.EventRoomDeleted)
}

func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	room := f.room(t, RoomInput{})
	ann := f.form(t, "ann", memberRecord())
	bob := f.form(t, "bob", memberRecord())

	expired, err := f.svc.Join(ctx, "ann", room.ID, ann.ID, mustWindow(t, "2026-01-01", "2026-02-01"))
	require.NoError(t, err)
	live, err := f.svc.Join(ctx, "bob", room.ID, bob.ID, mustWindow(t, "2026-01-01", "2026-12-31"))
	require.NoError(t, err)

	// Older documents carry the member only in the ID prefix.
	legacyID := "carol_" + "0b8f1f4e-3c1d-4a7e-9c55-0f2f6f0c1a11"
	require.NoError(t, f.store.Put(ctx, store.CollectionUserAccess, &store.Document{
		ID:     legacyID,
		Fields: map[string]any{"roomId": room.ID, "endDate": "2026-01-15", "filledForm": "old"},
	}))

	n, err := f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = f.store.Get(ctx, store.CollectionUserAccess, expired.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.Get(ctx, store.CollectionUserAccess, live.ID)
	assert.NoError(t, err)

	got, err := f.svc.Get(ctx, "owner", room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.ConnectedUsers)

	n, err = f.svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
