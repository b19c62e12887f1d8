package plans

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// Features checked by the platform.
const (
	FeatureCreateRoom = "rooms.create"
	FeatureJoinRoom   = "rooms.join"
	FeatureAssistant  = "assistant"
	FeatureUploads    = "uploads"
)

// ErrUnknownFeature is returned by Allow for a feature with no rule.
var ErrUnknownFeature = errors.New("unknown feature")

// DefaultRules are the built-in feature rules. A rule sees "plan" and
// "usage" maps whose keys match the JSON names of Plan and Usage, and must
// evaluate to a boolean.
var DefaultRules = map[string]string{
	FeatureCreateRoom: `plan.maxRooms < 0 || usage.rooms < plan.maxRooms`,
	FeatureJoinRoom:   `plan.maxUsers < 0 || usage.users < plan.maxUsers`,
	FeatureAssistant:  `plan.assistant`,
	FeatureUploads:    `plan.maxUploads < 0 || usage.uploads < plan.maxUploads`,
}

// Gate evaluates feature rules. It is safe for concurrent use.
type Gate struct {
	mu       sync.RWMutex
	rules    map[string]string
	programs map[string]*vm.Program
}

// NewGate compiles the default rules with overrides applied on top.
func NewGate(overrides map[string]string) (*Gate, error) {
	g := &Gate{
		rules:    make(map[string]string),
		programs: make(map[string]*vm.Program),
	}
	for feature, rule := range DefaultRules {
		if err := g.SetRule(feature, rule); err != nil {
			return nil, err
		}
	}
	for feature, rule := range overrides {
		if err := g.SetRule(feature, rule); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// LoadRules reads a YAML mapping of feature name to rule.
func LoadRules(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules := map[string]string{}
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return rules, nil
}

func ruleEnv(p Plan, u Usage) map[string]any {
	return map[string]any{
		"plan": map[string]any{
			"name":       p.Name,
			"maxRooms":   p.MaxRooms,
			"maxUsers":   p.MaxUsers,
			"assistant":  p.Assistant,
			"maxUploads": p.MaxUploads,
		},
		"usage": map[string]any{
			"rooms":   u.Rooms,
			"users":   u.Users,
			"uploads": u.Uploads,
		},
	}
}

// SetRule compiles and installs a rule, replacing any previous one.
func (g *Gate) SetRule(feature, rule string) error {
	program, err := expr.Compile(rule, expr.Env(ruleEnv(Plan{}, Usage{})), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile rule for %q: %w", feature, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules[feature] = rule
	g.programs[feature] = program
	return nil
}

// Rule returns the rule text for a feature.
func (g *Gate) Rule(feature string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rule, ok := g.rules[feature]
	return rule, ok
}

// Features lists the features with rules, sorted.
func (g *Gate) Features() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	features := make([]string, 0, len(g.rules))
	for f := range g.rules {
		features = append(features, f)
	}
	sort.Strings(features)
	return features
}

// Allow reports whether plan p with usage u may use feature.
func (g *Gate) Allow(_ context.Context, feature string, p Plan, u Usage) (bool, error) {
	g.mu.RLock()
	program, ok := g.programs[feature]
	g.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownFeature, feature)
	}

	out, err := expr.Run(program, ruleEnv(p, u))
	if err != nil {
		return false, fmt.Errorf("eval rule for %q: %w", feature, err)
	}
	allowed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule for %q returned %T, want bool", feature, out)
	}
	return allowed, nil
}
