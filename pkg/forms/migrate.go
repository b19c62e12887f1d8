package forms

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/store"
)

// MigrationReport counts what Migrate did to each document.
type MigrationReport struct {
	Sealed   int                `json:"sealed"`
	Resealed int                `json:"resealed"`
	Skipped  int                `json:"skipped"`
	Failed   int                `json:"failed"`
	Failures []MigrationFailure `json:"failures,omitempty"`
}

// MigrationFailure names a document Migrate could not convert.
type MigrationFailure struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Error      string `json:"error"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSealed
	outcomeResealed
)

// legacyFields lists, per collection, the plaintext fields that older
// documents carried outside encryptedData. Migrate folds them into the
// sealed payload and removes them. A nil entry means "everything except the
// owner field".
var legacyFields = map[string][]string{
	store.CollectionForms:      nil,
	store.CollectionRooms:      {"name", "description", "formContent", "recommendedStartDate", "recommendedEndDate", "schema"},
	store.CollectionUserAccess: {"filledForm"},
}

// Migrate seals plaintext payloads and re-seals payloads sealed under a
// retired key, across forms, rooms and room accesses. It keeps going past
// per-document failures and reports them; the returned error is reserved
// for store failures.
func (s *Service) Migrate(ctx context.Context) (MigrationReport, error) {
	var (
		mu     sync.Mutex
		report MigrationReport
	)
	record := func(collection, id string, o outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, MigrationFailure{Collection: collection, ID: id, Error: err.Error()})
			return
		}
		switch o {
		case outcomeSealed:
			report.Sealed++
		case outcomeResealed:
			report.Resealed++
		default:
			report.Skipped++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range []string{store.CollectionForms, store.CollectionRooms, store.CollectionUserAccess} {
		g.Go(func() error {
			docs, err := s.store.Query(gctx, collection)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", collection, err)
			}
			for _, doc := range docs {
				if err := gctx.Err(); err != nil {
					return err
				}
				o, err := s.migrateDocument(gctx, collection, doc)
				if err != nil {
					s.log.Error("migration failed", "collection", collection, "id", doc.ID, "error", err)
				} else if o != outcomeSkipped {
					s.log.Info("document migrated", "collection", collection, "id", doc.ID)
				}
				record(collection, doc.ID, o, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	s.log.Info("migration complete",
		"sealed", report.Sealed, "resealed", report.Resealed,
		"skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}

func (s *Service) migrateDocument(ctx context.Context, collection string, doc *store.Document) (outcome, error) {
	raw, present := doc.Fields[fieldEncrypted]
	blob, isString := raw.(string)

	var (
		value  any
		result = outcomeSealed
	)
	switch {
	case present && isString && crypto.IsSealed(blob):
		if !s.keyring.NeedsReseal(blob) {
			return outcomeSkipped, nil
		}
		if err := s.keyring.Open(blob, &value); err != nil {
			return outcomeSkipped, err
		}
		result = outcomeResealed
	case present:
		value = legacyValue(collection, raw)
	default:
		var ok bool
		if value, ok = foldLegacyFields(collection, doc.Fields); !ok {
			return outcomeSkipped, nil
		}
	}

	sealed, err := s.keyring.Seal(value)
	if err != nil {
		return outcomeSkipped, err
	}
	stripLegacyFields(collection, doc.Fields)
	doc.Fields[fieldEncrypted] = sealed
	if err := s.store.Put(ctx, collection, doc); err != nil {
		return outcomeSkipped, err
	}
	return result, nil
}

// legacyValue normalises an unsealed encryptedData value. Access payloads
// are filled text and stay as they are. Other JSON strings are decoded, and
// forms are brought into the current payload layout.
func legacyValue(collection string, raw any) any {
	if collection == store.CollectionUserAccess {
		return raw
	}
	value := raw
	if s, ok := raw.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &decoded); err == nil {
			value = decoded
		}
	}
	if collection == store.CollectionForms {
		if m, ok := value.(map[string]any); ok {
			return legacyPayload(m)
		}
	}
	return value
}

// foldLegacyFields collects plaintext fields of a document that has no
// encryptedData. It reports false when there is nothing to seal.
func foldLegacyFields(collection string, fields map[string]any) (any, bool) {
	names, known := legacyFields[collection]
	if !known {
		return nil, false
	}

	switch collection {
	case store.CollectionForms:
		p := legacyPayload(fields)
		if p.FormName == "" && len(p.Data) == 0 {
			return nil, false
		}
		return p, true
	case store.CollectionUserAccess:
		text, ok := fields["filledForm"].(string)
		return text, ok
	}

	folded := map[string]any{}
	for _, name := range names {
		if v, ok := fields[name]; ok {
			folded[name] = v
		}
	}
	return folded, len(folded) > 0
}

func stripLegacyFields(collection string, fields map[string]any) {
	names := legacyFields[collection]
	if collection == store.CollectionForms {
		for k := range fields {
			if k != fieldUserID {
				delete(fields, k)
			}
		}
		return
	}
	for _, name := range names {
		delete(fields, name)
	}
}
