package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterMatch(t *testing.T) {
	fields := map[string]any{
		"userId":         "u1",
		"connectedUsers": []any{"u2", "u3"},
		"count":          float64(3),
		"owner":          map[string]any{"plan": "pro"},
		"selectedForm":   "form-9",
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"bare path eq", Where("userId", "u1"), true},
		{"json path eq", Where("$.userId", "u1"), true},
		{"eq mismatch", Where("userId", "u2"), false},
		{"nested eq", Where("owner.plan", "pro"), true},
		{"numeric eq across types", Where("count", 3), true},
		{"missing field", Where("absent", "x"), false},
		{"contains", Filter{Path: "connectedUsers", Op: Contains, Value: "u3"}, true},
		{"contains miss", Filter{Path: "connectedUsers", Op: Contains, Value: "u1"}, false},
		{"contains on scalar", Filter{Path: "userId", Op: Contains, Value: "u1"}, false},
		{"prefix", Filter{Path: "selectedForm", Op: Prefix, Value: "form-"}, true},
		{"prefix miss", Filter{Path: "selectedForm", Op: Prefix, Value: "room-"}, false},
		{"prefix non-string", Filter{Path: "count", Op: Prefix, Value: "3"}, false},
		{"empty op means eq", Filter{Path: "userId", Value: "u1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.filter.Compile()
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Match(fields))
		})
	}
}

func TestCompileFiltersErrors(t *testing.T) {
	_, err := CompileFilters([]Filter{{Path: "userId", Op: "like", Value: "x"}})
	assert.Error(t, err)

	_, err = CompileFilters([]Filter{{Path: "$.a[?(@.x ==", Op: Eq}})
	assert.Error(t, err)
}

func TestMatchIsConjunction(t *testing.T) {
	fields := map[string]any{"roomId": "r1", "userId": "u1"}
	filters, err := CompileFilters([]Filter{Where("roomId", "r1"), Where("userId", "u1")})
	require.NoError(t, err)
	assert.True(t, Match(fields, filters))

	filters, err = CompileFilters([]Filter{Where("roomId", "r1"), Where("userId", "u2")})
	require.NoError(t, err)
	assert.False(t, Match(fields, filters))

	assert.True(t, Match(fields, nil))
}

func TestStamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	doc := &Document{ID: "a"}
	Stamp(doc, nil, now)
	assert.Equal(t, now, doc.CreatedAt)
	assert.Equal(t, now, doc.UpdatedAt)

	later := now.Add(time.Hour)
	update := &Document{ID: "a"}
	Stamp(update, doc, later)
	assert.Equal(t, now, update.CreatedAt)
	assert.Equal(t, later, update.UpdatedAt)

	imported := &Document{ID: "b", CreatedAt: now.Add(-time.Hour)}
	Stamp(imported, nil, now)
	assert.Equal(t, now.Add(-time.Hour), imported.CreatedAt)
}

func TestCloneNormalisesValues(t *testing.T) {
	doc := &Document{
		ID:     "a",
		Fields: map[string]any{"n": 1, "list": []string{"x"}},
	}
	c, err := Clone(doc)
	require.NoError(t, err)
	assert.Equal(t, float64(1), c.Fields["n"])
	assert.Equal(t, []any{"x"}, c.Fields["list"])

	c.Fields["n"] = 2
	assert.Equal(t, 1, doc.Fields["n"])

	_, err = Clone(&Document{ID: "bad", Fields: map[string]any{"f": func() {}}})
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestSortDocuments(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []*Document{
		{ID: "c", CreatedAt: t0.Add(time.Second)},
		{ID: "b", CreatedAt: t0},
		{ID: "a", CreatedAt: t0},
	}
	SortDocuments(docs)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestDocumentAccessors(t *testing.T) {
	doc := &Document{Fields: map[string]any{
		"name":  "x",
		"users": []any{"a", 1, "b"},
		"typed": []string{"c"},
		"num":   1,
	}}
	assert.Equal(t, "x", doc.String("name"))
	assert.Equal(t, "", doc.String("num"))
	assert.Equal(t, []string{"a", "b"}, doc.Strings("users"))
	assert.Equal(t, []string{"c"}, doc.Strings("typed"))
	assert.Nil(t, doc.Strings("missing"))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{}.Validate())

	assert.Error(t, Config{Backend: BackendSQLite}.Validate())
	assert.NoError(t, Config{Backend: BackendSQLite, SQLite: SQLiteConfig{Path: "x.db"}}.Validate())
	assert.Error(t, Config{Backend: BackendRedis}.Validate())
	assert.ErrorIs(t, Config{Backend: "mongo"}.Validate(), ErrUnknownBackend)
}

func TestCheckPut(t *testing.T) {
	assert.ErrorIs(t, CheckPut("", &Document{ID: "a"}), ErrInvalidDocument)
	assert.ErrorIs(t, CheckPut("forms", nil), ErrInvalidDocument)
	assert.ErrorIs(t, CheckPut("forms", &Document{}), ErrInvalidDocument)
	assert.NoError(t, CheckPut("forms", &Document{ID: "a"}))
}

func TestDefaultDataDirHonoursXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	assert.Equal(t, "/tmp/xdg-data/formroom", DefaultDataDir())

	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/xdg-data/formroom/formroom.db", cfg.SQLite.Path)
	assert.Equal(t, "/tmp/xdg-data/formroom/data.json", cfg.File.Path)
	assert.NoError(t, Config{Backend: BackendFile, File: cfg.File}.Validate())
	assert.Error(t, Config{Backend: BackendFile}.Validate())
}
