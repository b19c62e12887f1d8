package rooms

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateLayout is the date-only form accepted from date pickers.
const dateLayout = "2006-01-02"

// Window bounds when a response is readable. A nil bound is open.
type Window struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// ParseWindow builds a window from two optional bounds, each RFC 3339 or
// YYYY-MM-DD. A date-only end covers that whole day.
func ParseWindow(start, end string) (Window, error) {
	var w Window
	var err error
	if w.Start, err = parseBound(start, false); err != nil {
		return Window{}, fmt.Errorf("%w: start: %v", ErrInvalidWindow, err)
	}
	if w.End, err = parseBound(end, true); err != nil {
		return Window{}, fmt.Errorf("%w: end: %v", ErrInvalidWindow, err)
	}
	return w, w.Validate()
}

func parseBound(s string, end bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%q is neither RFC 3339 nor YYYY-MM-DD", s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// UnmarshalJSON accepts either bound as RFC 3339 or YYYY-MM-DD.
func (w *Window) UnmarshalJSON(b []byte) error {
	var raw struct {
		Start *string `json:"start"`
		End   *string `json:"end"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var start, end string
	if raw.Start != nil {
		start = *raw.Start
	}
	if raw.End != nil {
		end = *raw.End
	}
	parsed, err := ParseWindow(start, end)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// Validate rejects a window that ends before it starts.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidWindow,
			formatBound(w.End), formatBound(w.Start))
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && t.After(*w.End) {
		return false
	}
	return true
}

// Expired reports whether the window closed before t.
func (w Window) Expired(t time.Time) bool {
	return w.End != nil && w.End.Before(t)
}

func (w Window) IsZero() bool {
	return w.Start == nil && w.End == nil
}
