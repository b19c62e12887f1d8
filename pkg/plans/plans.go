// Package plans models subscription tiers and decides which features a
// tier allows.
//
// Limits come from the pricing table; the decisions themselves are expr-lang
// rules evaluated by a Gate, so operators can tune them without a rebuild.
package plans

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unlimited marks a limit with no ceiling.
const Unlimited = -1

// Plan names.
const (
	Basic      = "basic"
	Pro        = "pro"
	Premium    = "premium"
	Enterprise = "enterprise"
)

// ErrUnknownPlan is returned when a plan name is not in the table.
var ErrUnknownPlan = errors.New("unknown plan")

// Plan is a subscription tier and its limits.
type Plan struct {
	Name       string `json:"name" yaml:"name"`
	MaxRooms   int    `json:"maxRooms" yaml:"maxRooms"`
	MaxUsers   int    `json:"maxUsers" yaml:"maxUsers"`
	Assistant  bool   `json:"assistant" yaml:"assistant"`
	MaxUploads int    `json:"maxUploads" yaml:"maxUploads"`
}

var table = map[string]Plan{
	Basic:      {Name: Basic, MaxRooms: 0, MaxUsers: 0, Assistant: false, MaxUploads: 0},
	Pro:        {Name: Pro, MaxRooms: 2, MaxUsers: 250, Assistant: false, MaxUploads: 1},
	Premium:    {Name: Premium, MaxRooms: 10, MaxUsers: 750, Assistant: true, MaxUploads: 5},
	Enterprise: {Name: Enterprise, MaxRooms: Unlimited, MaxUsers: Unlimited, Assistant: true, MaxUploads: Unlimited},
}

// Get returns the plan with the given name.
func Get(name string) (Plan, error) {
	p, ok := table[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// Resolve returns the named plan, falling back to basic for unknown or
// empty names.
func Resolve(name string) Plan {
	p, err := Get(name)
	if err != nil {
		return table[Basic]
	}
	return p
}

// Names lists every plan name in ascending order of capability.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return rank(names[i]) < rank(names[j])
	})
	return names
}

func rank(name string) int {
	switch name {
	case Basic:
		return 0
	case Pro:
		return 1
	case Premium:
		return 2
	default:
		return 3
	}
}

// DisplayName returns the plan name in title case, e.g. "Premium".
func DisplayName(name string) string {
	return cases.Title(language.English).String(Resolve(name).Name)
}

// Usage is what a user currently consumes against their plan.
type Usage struct {
	Rooms   int `json:"rooms"`
	Users   int `json:"users"`
	Uploads int `json:"uploads"`
}
