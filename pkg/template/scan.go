package template

import (
	"strings"
	"unicode/utf8"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	// lineBreaks end a placeholder candidate.
	lineBreaks = "\r\n\u2028\u2029"
)

// Placeholder is one {{...}} occurrence in a template.
type Placeholder struct {
	// Start and End are byte offsets of the full match; End is exclusive.
	Start int
	End   int
	// Raw is the matched text including delimiters.
	Raw string
	// Path is the trimmed body.
	Path string
}

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenPlaceholder
	// tokenBroken is an opening delimiter whose body hits a line break
	// before the next closing delimiter.
	tokenBroken
	// tokenUnterminated is an opening delimiter with no closing delimiter
	// anywhere after it.
	tokenUnterminated
)

// scanner walks a template left to right, one placeholder candidate at a
// time. Each byte is examined a bounded number of times.
type scanner struct {
	src string
	pos int
}

func (s *scanner) next() (tokenKind, Placeholder) {
	if s.pos >= len(s.src) {
		return tokenEOF, Placeholder{}
	}
	open := strings.Index(s.src[s.pos:], openDelim)
	if open < 0 {
		s.pos = len(s.src)
		return tokenEOF, Placeholder{}
	}
	open += s.pos
	bodyStart := open + len(openDelim)

	close := strings.Index(s.src[bodyStart:], closeDelim)
	if close < 0 {
		s.pos = len(s.src)
		return tokenUnterminated, Placeholder{Start: open, End: len(s.src), Raw: s.src[open:]}
	}
	body := s.src[bodyStart : bodyStart+close]

	if nl := strings.IndexAny(body, lineBreaks); nl >= 0 {
		// Every opening delimiter up to the line break shares the same
		// first closing delimiter, so none of them can match.
		_, size := utf8.DecodeRuneInString(body[nl:])
		s.pos = bodyStart + nl + size
		return tokenBroken, Placeholder{Start: open, End: s.pos, Raw: s.src[open:s.pos]}
	}

	end := bodyStart + close + len(closeDelim)
	s.pos = end
	return tokenPlaceholder, Placeholder{
		Start: open,
		End:   end,
		Raw:   s.src[open:end],
		Path:  strings.TrimSpace(body),
	}
}

// Placeholders lists the placeholders of tmpl in order of appearance.
func Placeholders(tmpl string) []Placeholder {
	var out []Placeholder
	s := scanner{src: tmpl}
	for {
		kind, p := s.next()
		switch kind {
		case tokenEOF, tokenUnterminated:
			return out
		case tokenPlaceholder:
			out = append(out, p)
		}
	}
}

// Paths returns the distinct placeholder paths of tmpl in order of first
// appearance.
func Paths(tmpl string) []string {
	var paths []string
	seen := make(map[string]struct{})
	for _, p := range Placeholders(tmpl) {
		if _, dup := seen[p.Path]; dup {
			continue
		}
		seen[p.Path] = struct{}{}
		paths = append(paths, p.Path)
	}
	return paths
}
