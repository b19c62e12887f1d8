package forms

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/internal/storage"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/template"
)

func testKeyring(t *testing.T, active string) *crypto.Keyring {
	t.Helper()
	kr, err := crypto.NewKeyring(active, map[string][]byte{
		"k1": bytes.Repeat([]byte{1}, crypto.KeySize),
		"k2": bytes.Repeat([]byte{2}, crypto.KeySize),
	})
	require.NoError(t, err)
	return kr
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	s := storage.NewMemoryStore()
	return NewService(s, testKeyring(t, "k1"), nil), s
}

func medicalRecord() template.Record {
	return template.Record{
		"name":       "Ann Lee",
		"organDonor": false,
		"emergencyContacts": []any{
			map[string]any{"name": "Jane Doe", "relationship": "Mother"},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	form, err := svc.Create(ctx, "u1", "  Medical  ", medicalRecord())
	require.NoError(t, err)
	assert.NotEmpty(t, form.ID)
	assert.Equal(t, "Medical", form.Name)
	assert.Equal(t, "u1", form.OwnerID)
	assert.Equal(t, "Ann Lee", form.Data["name"])
	assert.False(t, form.CreatedAt.IsZero())

	doc, err := s.Get(ctx, store.CollectionForms, form.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", doc.String("userId"))
	assert.True(t, crypto.IsSealed(doc.String("encryptedData")))
	assert.NotContains(t, doc.String("encryptedData"), "Ann")
	assert.Len(t, doc.Fields, 2)

	got, err := svc.Get(ctx, "u1", form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Emergency: Jane Doe", template.Resolve("Emergency: {{emergencyContacts[0].name}}", got.Data))

	_, err = svc.Get(ctx, "u2", form.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Get(ctx, "u1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := svc.Load(ctx, form.ID)
	require.NoError(t, err)
	assert.Equal(t, form.ID, loaded.ID)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", "   ", medicalRecord())
	assert.ErrorIs(t, err, ErrInvalidForm)
	_, err = svc.Create(ctx, "", "Medical", medicalRecord())
	assert.ErrorIs(t, err, ErrInvalidForm)

	form, err := svc.Create(ctx, "u1", "Empty", nil)
	require.NoError(t, err)
	assert.NotNil(t, form.Data)
	assert.Empty(t, form.Data)
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	form, err := svc.Create(ctx, "u1", "Medical", medicalRecord())
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "u1", form.ID, "Medical v2", template.Record{"name": "Ann Park"})
	require.NoError(t, err)
	assert.Equal(t, "Medical v2", updated.Name)
	assert.Equal(t, "Ann Park", updated.Data["name"])
	assert.True(t, updated.CreatedAt.Equal(form.CreatedAt))

	_, err = svc.Update(ctx, "u2", form.ID, "Stolen", nil)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, "u1", "missing", "x", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Update(ctx, "u1", form.ID, "", nil)
	assert.ErrorIs(t, err, ErrInvalidForm)

	assert.ErrorIs(t, svc.Delete(ctx, "u2", form.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, "u1", form.ID))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", form.ID), ErrNotFound)
}

func TestListFlagsUndecryptableForms(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	good, err := svc.Create(ctx, "u1", "Medical", medicalRecord())
	require.NoError(t, err)
	_, err = svc.Create(ctx, "u2", "Other user", nil)
	require.NoError(t, err)

	foreign, err := crypto.NewKeyring("gone", map[string][]byte{"gone": bytes.Repeat([]byte{9}, crypto.KeySize)})
	require.NoError(t, err)
	blob, err := foreign.Seal(payload{FormName: "Lost"})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
		ID:     "zz-broken",
		Fields: map[string]any{"userId": "u1", "encryptedData": blob},
	}))

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, good.ID, list[0].ID)
	assert.False(t, list[0].DecryptionError)

	assert.Equal(t, "zz-broken", list[1].ID)
	assert.True(t, list[1].DecryptionError)
	assert.Equal(t, "Error: Unable to decrypt (zz-broken)", list[1].Name)

	_, err = svc.Load(ctx, "zz-broken")
	assert.ErrorIs(t, err, crypto.ErrUnknownKey)
}

func TestLegacyPlaintextForms(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
		ID:     "inline",
		Fields: map[string]any{"userId": "u1", "formName": "Inline", "name": "Ann"},
	}))
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
		ID:     "json-string",
		Fields: map[string]any{"userId": "u1", "encryptedData": `{"formName":"Stringy","data":{"name":"Bo"}}`},
	}))
	require.NoError(t, s.Put(ctx, store.CollectionForms, &store.Document{
		ID:     "garbage",
		Fields: map[string]any{"userId": "u1", "encryptedData": "U2FsdGVkX1+not-ours"},
	}))

	inline, err := svc.Get(ctx, "u1", "inline")
	require.NoError(t, err)
	assert.Equal(t, "Inline", inline.Name)
	assert.Equal(t, template.Record{"name": "Ann"}, inline.Data)

	stringy, err := svc.Get(ctx, "u1", "json-string")
	require.NoError(t, err)
	assert.Equal(t, "Stringy", stringy.Name)
	assert.Equal(t, "Bo", stringy.Data["name"])

	_, err = svc.Get(ctx, "u1", "garbage")
	assert.ErrorIs(t, err, crypto.ErrDecrypt)
}
