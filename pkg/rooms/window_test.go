package rooms

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		w, err := ParseWindow("", " ")
		require.NoError(t, err)
		assert.True(t, w.IsZero())
	})

	t.Run("date only end covers the day", func(t *testing.T) {
		w, err := ParseWindow("2026-03-01", "2026-03-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), *w.Start)
		assert.True(t, w.Contains(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)))
		assert.False(t, w.Contains(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("rfc3339 normalised to utc", func(t *testing.T) {
		w, err := ParseWindow("2026-03-01T10:00:00+02:00", "")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), *w.Start)
		assert.Nil(t, w.End)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseWindow("yesterday", "")
		assert.ErrorIs(t, err, ErrInvalidWindow)

		_, err = ParseWindow("2026-03-02", "2026-03-01T00:00:00Z")
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})
}

func TestWindowContains(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		w    Window
		at   time.Time
		want bool
	}{
		{"unbounded", Window{}, start, true},
		{"on start", Window{Start: &start, End: &end}, start, true},
		{"on end", Window{Start: &start, End: &end}, end, true},
		{"before", Window{Start: &start}, start.Add(-time.Second), false},
		{"after", Window{End: &end}, end.Add(time.Second), false},
		{"open start", Window{End: &end}, start.AddDate(-5, 0, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.Contains(tt.at))
		})
	}

	w := Window{End: &end}
	assert.False(t, w.Expired(end))
	assert.True(t, w.Expired(end.Add(time.Nanosecond)))
	assert.False(t, Window{}.Expired(end))
}

func TestWindowJSON(t *testing.T) {
	var in RoomInput
	err := json.Unmarshal([]byte(`{"name":"x","recommended":{"start":"2026-05-01","end":null}}`), &in)
	require.NoError(t, err)
	require.NotNil(t, in.Recommended.Start)
	assert.Nil(t, in.Recommended.End)

	out, err := json.Marshal(in.Recommended)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"2026-05-01T00:00:00Z"}`, string(out))

	err = json.Unmarshal([]byte(`{"start":"2026-05-02","end":"2026-05-01"}`), &Window{})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}
