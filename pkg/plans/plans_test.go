package plans

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oneform/formroom/internal/storage"
	"github.com/oneform/formroom/pkg/store"
)

func TestPlanTable(t *testing.T) {
	pro, err := Get("Pro")
	require.NoError(t, err)
	assert.Equal(t, Plan{Name: Pro, MaxRooms: 2, MaxUsers: 250, MaxUploads: 1}, pro)

	premium := Resolve(" premium ")
	assert.Equal(t, 10, premium.MaxRooms)
	assert.Equal(t, 750, premium.MaxUsers)
	assert.True(t, premium.Assistant)

	assert.Equal(t, Unlimited, Resolve(Enterprise).MaxRooms)

	_, err = Get("gold")
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.Equal(t, Basic, Resolve("gold").Name)
	assert.Equal(t, Basic, Resolve("").Name)

	assert.Equal(t, []string{Basic, Pro, Premium, Enterprise}, Names())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Premium", DisplayName("premium"))
	assert.Equal(t, "Enterprise", DisplayName("ENTERPRISE"))
	assert.Equal(t, "Basic", DisplayName("unknown"))
}

func TestGateDefaults(t *testing.T) {
	g, err := NewGate(nil)
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name    string
		feature string
		plan    string
		usage   Usage
		want    bool
	}{
		{"basic cannot create rooms", FeatureCreateRoom, Basic, Usage{}, false},
		{"pro first room", FeatureCreateRoom, Pro, Usage{Rooms: 0}, true},
		{"pro second room", FeatureCreateRoom, Pro, Usage{Rooms: 1}, true},
		{"pro third room", FeatureCreateRoom, Pro, Usage{Rooms: 2}, false},
		{"premium tenth room", FeatureCreateRoom, Premium, Usage{Rooms: 9}, true},
		{"enterprise unlimited rooms", FeatureCreateRoom, Enterprise, Usage{Rooms: 100000}, true},
		{"pro user 250 rejected", FeatureJoinRoom, Pro, Usage{Users: 250}, false},
		{"pro user 249 allowed", FeatureJoinRoom, Pro, Usage{Users: 249}, true},
		{"basic owner has no seats", FeatureJoinRoom, Basic, Usage{}, false},
		{"assistant on premium", FeatureAssistant, Premium, Usage{}, true},
		{"assistant not on pro", FeatureAssistant, Pro, Usage{}, false},
		{"pro single upload", FeatureUploads, Pro, Usage{Uploads: 0}, true},
		{"pro second upload", FeatureUploads, Pro, Usage{Uploads: 1}, false},
		{"enterprise uploads", FeatureUploads, Enterprise, Usage{Uploads: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Allow(ctx, tt.feature, Resolve(tt.plan), tt.usage)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateOverridesAndErrors(t *testing.T) {
	g, err := NewGate(map[string]string{
		FeatureCreateRoom: `plan.name != "basic"`,
		"export":          `plan.name == "enterprise"`,
	})
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := g.Allow(ctx, FeatureCreateRoom, Resolve(Pro), Usage{Rooms: 99})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Allow(ctx, "export", Resolve(Premium), Usage{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = g.Allow(ctx, "teleport", Resolve(Pro), Usage{})
	assert.ErrorIs(t, err, ErrUnknownFeature)

	assert.Contains(t, g.Features(), "export")
	rule, ok := g.Rule("export")
	assert.True(t, ok)
	assert.Equal(t, `plan.name == "enterprise"`, rule)

	_, err = NewGate(map[string]string{"bad": `plan.maxRooms +`})
	assert.Error(t, err)

	// Non-boolean rules fail either when compiled or when evaluated.
	ng, err := NewGate(map[string]string{"notbool": `plan.maxRooms`})
	if err == nil {
		_, err = ng.Allow(ctx, "notbool", Resolve(Pro), Usage{})
	}
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rooms.create: \"usage.rooms < 1\"\n"), 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"rooms.create": "usage.rooms < 1"}, rules)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStore()
	accounts := NewAccounts(s)

	p, err := accounts.Plan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Basic, p.Name)

	p, err = accounts.SetPlan(ctx, "u1", "Premium")
	require.NoError(t, err)
	assert.Equal(t, Premium, p.Name)

	p, err = accounts.Plan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Premium, p.Name)

	_, err = accounts.SetPlan(ctx, "u1", "platinum")
	assert.ErrorIs(t, err, ErrUnknownPlan)
	_, err = accounts.SetPlan(ctx, "", Pro)
	assert.Error(t, err)

	require.NoError(t, s.Put(ctx, store.CollectionUsers, &store.Document{
		ID:     "legacy",
		Fields: map[string]any{"plan": "gold"},
	}))
	p, err = accounts.Plan(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, Basic, p.Name)
}
