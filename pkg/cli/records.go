package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// namedRecord is a decoded record and where it came from.
type namedRecord struct {
	Name   string
	Fields map[string]any
}

// stdinName labels a record read from standard input.
const stdinName = "-"

// expandRecords turns paths and doublestar patterns into a sorted,
// de-duplicated file list. A literal path is kept even if it does not
// exist so the read reports the real error.
func expandRecords(patterns []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, p := range patterns {
		if p == stdinName || !strings.ContainsAny(p, "*?[{") {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
			continue
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad record pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("%w %q", ErrNoRecordsMatch, p)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// readRecords loads each path, or stdin for "-".
func readRecords(paths []string, stdin io.Reader) ([]namedRecord, error) {
	records := make([]namedRecord, 0, len(paths))
	for _, p := range paths {
		var (
			data []byte
			err  error
		)
		if p == stdinName {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(p)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		fields, err := decodeRecord(data, filepath.Ext(p))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		records = append(records, namedRecord{Name: p, Fields: fields})
	}
	return records, nil
}

// decodeRecord parses a JSON or YAML mapping. JSON numbers keep their
// literal text; anything else is parsed as YAML, which also accepts JSON.
func decodeRecord(data []byte, ext string) (map[string]any, error) {
	var fields map[string]any
	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if fields == nil {
		return nil, ErrNotMapping
	}
	return fields, nil
}

// readTemplate returns the template text from --template or the single
// file argument, and a label for messages.
func readTemplate(inline string, args []string) (text, name string, err error) {
	switch {
	case inline != "" && len(args) > 0:
		return "", "", ErrTwoTemplates
	case inline != "":
		return inline, "<template>", nil
	case len(args) == 0:
		return "", "", ErrNoTemplate
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), args[0], nil
}
