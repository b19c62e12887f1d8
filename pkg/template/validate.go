package template

import (
	"fmt"
	"unicode/utf8"
)

// SyntaxError describes a placeholder that can never resolve.
type SyntaxError struct {
	Offset int    `json:"offset"`
	Text   string `json:"text"`
	Msg    string `json:"message"`
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("template: offset %d: %s", e.Offset, e.Msg)
}

// maxErrorText bounds SyntaxError.Text.
const maxErrorText = 40

// Check reports every malformed placeholder in tmpl. It is meant for
// authoring tools; Fill accepts any input and never consults it.
func Check(tmpl string) []*SyntaxError {
	var errs []*SyntaxError
	s := scanner{src: tmpl}
	for {
		kind, p := s.next()
		switch kind {
		case tokenEOF:
			return errs
		case tokenUnterminated:
			return append(errs, newSyntaxError(p, "unterminated placeholder"))
		case tokenBroken:
			errs = append(errs, newSyntaxError(p, "placeholder spans a line break"))
		case tokenPlaceholder:
			if p.Path == "" {
				errs = append(errs, newSyntaxError(p, "empty placeholder"))
				continue
			}
			if _, ok := ParsePath(p.Path); !ok {
				errs = append(errs, newSyntaxError(p, fmt.Sprintf("malformed path %q", p.Path)))
			}
		}
	}
}

// Validate returns the first problem Check finds, or nil.
func Validate(tmpl string) error {
	if errs := Check(tmpl); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func newSyntaxError(p Placeholder, msg string) *SyntaxError {
	text := p.Raw
	if len(text) > maxErrorText {
		cut := maxErrorText
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return &SyntaxError{Offset: p.Start, Text: text, Msg: msg}
}
