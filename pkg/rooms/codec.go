package rooms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oneform/formroom/internal/id"
	"github.com/oneform/formroom/pkg/crypto"
	"github.com/oneform/formroom/pkg/store"
)

// Document field names.
const (
	fieldOwnerID        = "ownerId"
	fieldConnectedUsers = "connectedUsers"
	fieldEncrypted      = "encryptedData"
	fieldRoomID         = "roomId"
	fieldUserID         = "userId"
	fieldSelectedForm   = "selectedForm"
	fieldStartDate      = "startDate"
	fieldEndDate        = "endDate"
	fieldFilledForm     = "filledForm"
	fieldDisplayName    = "displayName"
)

const unknownUser = "Unknown User"

// roomPayload is the sealed part of a room document.
type roomPayload struct {
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	FormContent          string          `json:"formContent"`
	RecommendedStartDate string          `json:"recommendedStartDate,omitempty"`
	RecommendedEndDate   string          `json:"recommendedEndDate,omitempty"`
	Schema               json.RawMessage `json:"schema,omitempty"`
}

func (p roomPayload) window() (Window, error) {
	return ParseWindow(p.RecommendedStartDate, p.RecommendedEndDate)
}

func (p *roomPayload) setWindow(w Window) {
	p.RecommendedStartDate = formatBound(w.Start)
	p.RecommendedEndDate = formatBound(w.End)
}

// decodeRoom extracts the room payload, opening sealed data and accepting
// plaintext rooms written before encryption. legacy reports whether the
// document still needs sealing.
func decodeRoom(doc *store.Document, kr *crypto.Keyring) (p roomPayload, legacy bool, err error) {
	raw, present := doc.Fields[fieldEncrypted]
	if !present {
		err = remarshal(doc.Fields, &p)
		return p, true, err
	}
	switch v := raw.(type) {
	case string:
		if crypto.IsSealed(v) {
			err = kr.Open(v, &p)
			return p, false, err
		}
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &p); err != nil {
			return roomPayload{}, true, fmt.Errorf("%w: unrecognised room payload", crypto.ErrDecrypt)
		}
		return p, true, nil
	case map[string]any:
		err = remarshal(v, &p)
		return p, true, err
	default:
		return roomPayload{}, true, fmt.Errorf("%w: unexpected payload type %T", crypto.ErrDecrypt, raw)
	}
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// decodeAccessText returns the filled text of an access document.
func decodeAccessText(doc *store.Document, kr *crypto.Keyring) (text string, legacy bool, err error) {
	raw, present := doc.Fields[fieldEncrypted]
	if !present {
		text, _ = doc.Fields[fieldFilledForm].(string)
		return text, true, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", true, fmt.Errorf("%w: unexpected payload type %T", crypto.ErrDecrypt, raw)
	}
	if !crypto.IsSealed(s) {
		return s, true, nil
	}
	if err := kr.Open(s, &text); err != nil {
		return "", false, err
	}
	return text, false, nil
}

// accessWindow reads the plaintext window bounds of an access document.
func accessWindow(doc *store.Document) (Window, error) {
	return ParseWindow(doc.String(fieldStartDate), doc.String(fieldEndDate))
}

func setAccessWindow(doc *store.Document, w Window) {
	delete(doc.Fields, fieldStartDate)
	delete(doc.Fields, fieldEndDate)
	if w.Start != nil {
		doc.Fields[fieldStartDate] = formatBound(w.Start)
	}
	if w.End != nil {
		doc.Fields[fieldEndDate] = formatBound(w.End)
	}
}

// accessUser returns the member of an access document. Older documents
// carry the member only in the ID prefix.
func accessUser(doc *store.Document) string {
	if u := doc.String(fieldUserID); u != "" {
		return u
	}
	if u, ok := id.AccessOwner(doc.ID); ok {
		return u
	}
	if i := strings.Index(doc.ID, "_"); i > 0 {
		return doc.ID[:i]
	}
	return ""
}
