package template

import (
	"encoding/json"
	"strconv"
)

// Record is a filled-in form: string keys mapped to scalars, nested records
// or sequences.
type Record = map[string]any

// Kind classifies a single node of a Record.
type Kind int

// Node kinds.
const (
	KindInvalid Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindMapping
	KindSequence
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindNull:     "null",
	KindString:   "string",
	KindNumber:   "number",
	KindBool:     "bool",
	KindMapping:  "mapping",
	KindSequence: "sequence",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Scalar reports whether nodes of this kind have a text form.
func (k Kind) Scalar() bool {
	switch k {
	case KindNull, KindString, KindNumber, KindBool:
		return true
	}
	return false
}

// KindOf returns the kind of v. Values that cannot come out of a decoded
// document (funcs, channels, structs) are KindInvalid.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case bool:
		return KindBool
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return KindNumber
	case map[string]any, map[string]string:
		return KindMapping
	case []any, []map[string]any, []string:
		return KindSequence
	}
	return KindInvalid
}

// formatValue renders a scalar node. ok is false for mappings, sequences
// and invalid nodes.
func formatValue(val any) (string, bool) {
	switch v := val.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		if v == 0 {
			return "0", true
		}
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case float64:
		if v == 0 {
			return "0", true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case json.Number:
		return v.String(), true
	}
	return "", false
}

// field performs a mapping lookup.
func field(node any, key string) (any, bool) {
	switch m := node.(type) {
	case map[string]any:
		v, ok := m[key]
		return v, ok
	case map[string]string:
		v, ok := m[key]
		return v, ok
	}
	return nil, false
}

// element performs an index lookup into a sequence.
func element(node any, i int) (any, bool) {
	switch s := node.(type) {
	case []any:
		if i < len(s) {
			return s[i], true
		}
	case []map[string]any:
		if i < len(s) {
			return s[i], true
		}
	case []string:
		if i < len(s) {
			return s[i], true
		}
	}
	return nil, false
}
