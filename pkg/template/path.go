package template

import (
	"strconv"
	"strings"
)

// Segment is one dot-separated step of a Path.
type Segment struct {
	Key     string
	Index   int
	Indexed bool
}

func (s Segment) String() string {
	if s.Indexed {
		return s.Key + "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// Path is a parsed placeholder body, resolved left to right.
type Path []Segment

// ParsePath splits a placeholder body into segments. ok is false for an
// empty body or an index segment whose brackets hold anything other than a
// base-10 integer; such a path never resolves.
func ParsePath(s string) (Path, bool) {
	if s == "" {
		return nil, false
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		seg, ok := parseSegment(part)
		if !ok {
			return nil, false
		}
		path = append(path, seg)
	}
	return path, true
}

// parseSegment recognises key[n]. Anything else with brackets in it is
// taken as a literal key.
func parseSegment(s string) (Segment, bool) {
	open := strings.IndexByte(s, '[')
	if open < 0 || !strings.HasSuffix(s, "]") ||
		strings.Count(s, "[") != 1 || strings.Count(s, "]") != 1 {
		return Segment{Key: s}, true
	}
	key := s[:open]
	if key == "" {
		return Segment{}, false
	}
	idx, ok := parseIndex(s[open+1 : len(s)-1])
	if !ok {
		return Segment{}, false
	}
	return Segment{Key: key, Index: idx, Indexed: true}, true
}

func parseIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Lookup walks the path from root. It stops at the first absent key,
// out-of-range index or non-container node.
func (p Path) Lookup(root any) (any, bool) {
	if len(p) == 0 {
		return nil, false
	}
	current := root
	for _, seg := range p {
		next, ok := field(current, seg.Key)
		if !ok {
			return nil, false
		}
		if seg.Indexed {
			if next, ok = element(next, seg.Index); !ok {
				return nil, false
			}
		}
		current = next
	}
	return current, true
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}

// Lookup resolves a dotted path such as "emergencyContacts[0].name" against
// record. The returned node may be a mapping or sequence; ok is false when
// the path is malformed or any step is missing.
func Lookup(record any, path string) (any, bool) {
	p, ok := ParsePath(path)
	if !ok {
		return nil, false
	}
	return p.Lookup(record)
}
