package template

import (
	"strings"
)

// Engine fills templates from records. The zero value is ready to use.
// An Engine is stateless between calls and safe for concurrent use.
type Engine struct {
	onMissing func(path string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithMissing registers a callback invoked once per placeholder that is left
// unresolved. The callback must be safe for concurrent use if the engine is
// shared.
func WithMissing(fn func(path string)) Option {
	return func(e *Engine) {
		e.onMissing = fn
	}
}

// New creates a template engine.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Resolve fills tmpl from record with the default engine.
func Resolve(tmpl string, record any) string {
	return defaultEngine.Fill(tmpl, record).Text
}

// Result is the outcome of filling one template.
type Result struct {
	// Text is the filled template.
	Text string `json:"text"`
	// Resolved lists distinct paths that were substituted.
	Resolved []string `json:"resolved"`
	// Unresolved lists distinct paths left verbatim in Text.
	Unresolved []string `json:"unresolved"`
}

// Complete reports whether every placeholder was substituted.
func (r Result) Complete() bool {
	return len(r.Unresolved) == 0
}

// Process fills tmpl from record. The error is always nil; missing data is
// never a failure.
func (e *Engine) Process(tmpl string, record any) (string, error) {
	return e.Fill(tmpl, record).Text, nil
}

// Fill scans tmpl once and replaces every placeholder whose path resolves
// to a scalar in record. Other placeholders are copied unchanged. Resolved
// and Unresolved are never nil.
func (e *Engine) Fill(tmpl string, record any) Result {
	res := Result{Resolved: []string{}, Unresolved: []string{}}
	if !strings.Contains(tmpl, openDelim) {
		res.Text = tmpl
		return res
	}

	var (
		b        strings.Builder
		last     int
		resolved = make(map[string]struct{})
		missing  = make(map[string]struct{})
	)
	b.Grow(len(tmpl))

	s := scanner{src: tmpl}
	for {
		kind, p := s.next()
		if kind == tokenEOF || kind == tokenUnterminated {
			break
		}
		if kind != tokenPlaceholder {
			continue
		}

		b.WriteString(tmpl[last:p.Start])
		last = p.End

		if text, ok := e.resolve(p.Path, record); ok {
			b.WriteString(text)
			if _, dup := resolved[p.Path]; !dup {
				resolved[p.Path] = struct{}{}
				res.Resolved = append(res.Resolved, p.Path)
			}
			continue
		}

		b.WriteString(p.Raw)
		if _, dup := missing[p.Path]; !dup {
			missing[p.Path] = struct{}{}
			res.Unresolved = append(res.Unresolved, p.Path)
		}
		if e.onMissing != nil {
			e.onMissing(p.Path)
		}
	}
	b.WriteString(tmpl[last:])

	res.Text = b.String()
	return res
}

// resolve returns the text form of the node at path, or false when the
// node is absent or has no text form.
func (e *Engine) resolve(path string, record any) (string, bool) {
	v, ok := Lookup(record, path)
	if !ok {
		return "", false
	}
	return formatValue(v)
}
