package forms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oneform/formroom/internal/id"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/logging"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/template"
)

var (
	// ErrNotFound is returned when a form does not exist.
	ErrNotFound = errors.New("form not found")

	// ErrForbidden is returned when a user touches someone else's form.
	ErrForbidden = errors.New("form belongs to another user")

	// ErrInvalidForm is returned for missing or malformed input.
	ErrInvalidForm = errors.New("invalid form")
)

// Service implements form CRUD over a document store.
type Service struct {
	forms   *store.Collection
	store   store.DocumentStore
	keyring *crypto.Keyring
	log     *slog.Logger
}

// NewService creates a form service.
func NewService(s store.DocumentStore, kr *crypto.Keyring, log *slog.Logger) *Service {
	if log == nil {
		log = logging.Nop()
	}
	return &Service{
		forms:   store.NewCollection(s, store.CollectionForms),
		store:   s,
		keyring: kr,
		log:     log.With("component", "forms"),
	}
}

func validateInput(ownerID, name string) (string, error) {
	if ownerID == "" {
		return "", fmt.Errorf("%w: owner is required", ErrInvalidForm)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidForm)
	}
	return name, nil
}

func (s *Service) seal(name string, data template.Record) (string, error) {
	if data == nil {
		data = template.Record{}
	}
	blob, err := s.keyring.Seal(payload{FormName: name, Data: data})
	if err != nil {
		return "", fmt.Errorf("failed to seal form: %w", err)
	}
	return blob, nil
}

// Create stores a new form owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID, name string, data template.Record) (*Form, error) {
	name, err := validateInput(ownerID, name)
	if err != nil {
		return nil, err
	}
	blob, err := s.seal(name, data)
	if err != nil {
		return nil, err
	}

	doc := &store.Document{
		ID: id.ULID(),
		Fields: map[string]any{
			fieldUserID:    ownerID,
			fieldEncrypted: blob,
		},
	}
	if err := s.forms.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save form: %w", err)
	}

	s.log.Debug("form created", "id", doc.ID, "owner", ownerID)
	return s.Load(ctx, doc.ID)
}

// Load fetches and decrypts a form without an ownership check. Room joins
// use it after they have checked ownership themselves.
func (s *Service) Load(ctx context.Context, formID string) (*Form, error) {
	doc, err := s.forms.Get(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}

	p, legacy, err := decodePayload(doc, s.keyring)
	if err != nil {
		return nil, fmt.Errorf("form %s: %w", formID, err)
	}
	if legacy {
		s.log.Warn("form is not encrypted; run migrate to seal it", "id", formID)
	}
	return toForm(doc, p), nil
}

// Get returns a form owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, formID string) (*Form, error) {
	doc, err := s.forms.Get(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	if doc.String(fieldUserID) != ownerID {
		return nil, ErrForbidden
	}
	return s.Load(ctx, formID)
}

// List returns every form owned by ownerID, oldest first. A form that fails
// to decrypt is still listed, flagged with DecryptionError.
func (s *Service) List(ctx context.Context, ownerID string) ([]*Form, error) {
	docs, err := s.forms.Query(ctx, store.Where(fieldUserID, ownerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}

	result := make([]*Form, 0, len(docs))
	for _, doc := range docs {
		p, legacy, err := decodePayload(doc, s.keyring)
		if err != nil {
			s.log.Error("failed to decrypt form", "id", doc.ID, "error", err)
			result = append(result, &Form{
				ID:              doc.ID,
				OwnerID:         ownerID,
				Name:            undecryptableName(doc.ID),
				CreatedAt:       doc.CreatedAt,
				UpdatedAt:       doc.UpdatedAt,
				DecryptionError: true,
			})
			continue
		}
		if legacy {
			s.log.Warn("form is not encrypted; run migrate to seal it", "id", doc.ID)
		}
		result = append(result, toForm(doc, p))
	}
	return result, nil
}

// Update replaces a form's name and record.
func (s *Service) Update(ctx context.Context, ownerID, formID, name string, data template.Record) (*Form, error) {
	name, err := validateInput(ownerID, name)
	if err != nil {
		return nil, err
	}

	doc, err := s.forms.Get(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	if doc.String(fieldUserID) != ownerID {
		return nil, ErrForbidden
	}

	blob, err := s.seal(name, data)
	if err != nil {
		return nil, err
	}
	doc.Fields = map[string]any{
		fieldUserID:    ownerID,
		fieldEncrypted: blob,
	}
	if err := s.forms.Put(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save form: %w", err)
	}
	return s.Load(ctx, formID)
}

// Delete removes a form owned by ownerID.
func (s *Service) Delete(ctx context.Context, ownerID, formID string) error {
	doc, err := s.forms.Get(ctx, formID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load form %s: %w", formID, err)
	}
	if doc.String(fieldUserID) != ownerID {
		return ErrForbidden
	}
	if err := s.forms.Delete(ctx, formID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	s.log.Debug("form deleted", "id", formID, "owner", ownerID)
	return nil
}
