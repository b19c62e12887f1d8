package forms

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/store"
	"github.com/oneform/formroom/pkg/template"
)

// Document field names.
const (
	fieldUserID    = "userId"
	fieldEncrypted = "encryptedData"
	fieldFormName  = "formName"
)

// Form is a decrypted personal-data form.
type Form struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Name            string          `json:"name"`
	Data            template.Record `json:"data"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	DecryptionError bool            `json:"decryptionError,omitempty"`
}

// payload is the sealed part of a form document.
type payload struct {
	FormName string         `json:"formName"`
	Data     map[string]any `json:"data"`
}

// undecryptableName is shown in listings for forms that cannot be opened.
func undecryptableName(id string) string {
	return fmt.Sprintf("Error: Unable to decrypt (%s)", id)
}

// legacyPayload converts a plaintext form record into a payload. Old records
// kept formName next to the fields; newer ones nest them under "data".
func legacyPayload(m map[string]any) payload {
	p := payload{Data: map[string]any{}}
	if name, ok := m[fieldFormName].(string); ok {
		p.FormName = name
	}
	if data, ok := m["data"].(map[string]any); ok {
		p.Data = data
		return p
	}
	for k, v := range m {
		switch k {
		case fieldFormName, fieldUserID, fieldEncrypted, "id":
			continue
		}
		p.Data[k] = v
	}
	return p
}

// decodePayload extracts the form payload from a document, opening sealed
// data and accepting the legacy plaintext layouts. legacy reports whether
// the document still needs sealing.
func decodePayload(doc *store.Document, kr *crypto.Keyring) (p payload, legacy bool, err error) {
	raw, present := doc.Fields[fieldEncrypted]
	if !present {
		return legacyPayload(doc.Fields), true, nil
	}

	switch v := raw.(type) {
	case string:
		if crypto.IsSealed(v) {
			if err := kr.Open(v, &p); err != nil {
				return payload{}, false, err
			}
			if p.Data == nil {
				p.Data = map[string]any{}
			}
			return p, false, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &m); err != nil {
			return payload{}, true, fmt.Errorf("%w: unrecognised form payload", crypto.ErrDecrypt)
		}
		return legacyPayload(m), true, nil
	case map[string]any:
		return legacyPayload(v), true, nil
	default:
		return payload{}, true, fmt.Errorf("%w: unexpected payload type %T", crypto.ErrDecrypt, raw)
	}
}

func toForm(doc *store.Document, p payload) *Form {
	return &Form{
		ID:        doc.ID,
		OwnerID:   doc.String(fieldUserID),
		Name:      p.FormName,
		Data:      template.Record(p.Data),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}
