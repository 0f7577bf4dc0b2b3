package cachekey

import (
	"fmt"
	"time"

	"golang.org/x/exp/slices"
)

// RuleSpec is the authored form of a cache rule.
type RuleSpec struct {
	Key        string   `yaml:"key" json:"key"`
	TTLMinutes int      `yaml:"ttl_minutes" json:"ttl_minutes"`
	Triggers   []string `yaml:"triggers" json:"triggers"`
}

// Rule is a parsed cache rule.
type Rule struct {
	Key      Pattern
	TTL      time.Duration
	Triggers []Pattern
}

// Registry is the immutable set of cache rules, in authoring order.
type Registry struct {
	rules []Rule
}

// NewRegistry parses and checks specs. Every placeholder of a key must also
// appear in one of the rule's triggers, otherwise the key could never be
// evicted.
func NewRegistry(specs []RuleSpec) (*Registry, error) {
	rules := make([]Rule, 0, len(specs))
	seen := make(map[string]struct{}, len(specs))

	for _, spec := range specs {
		key, err := ParsePattern(spec.Key)
		if err != nil {
			return nil, fmt.Errorf("cache rule %q: %w", spec.Key, err)
		}
		if _, dup := seen[spec.Key]; dup {
			return nil, fmt.Errorf("cache rule %q: duplicate key", spec.Key)
		}
		seen[spec.Key] = struct{}{}
		if spec.TTLMinutes <= 0 {
			return nil, fmt.Errorf("cache rule %q: ttl must be positive", spec.Key)
		}
		if len(spec.Triggers) == 0 {
			return nil, fmt.Errorf("cache rule %q: no triggers", spec.Key)
		}

		rule := Rule{Key: key, TTL: time.Duration(spec.TTLMinutes) * time.Minute}
		var raw []string
		for _, t := range spec.Triggers {
			if slices.Contains(raw, t) {
				continue
			}
			trigger, err := ParsePattern(t)
			if err != nil {
				return nil, fmt.Errorf("cache rule %q: trigger: %w", spec.Key, err)
			}
			raw = append(raw, t)
			rule.Triggers = append(rule.Triggers, trigger)
		}

		for _, name := range key.Placeholders() {
			if !rule.hasTemplatedTrigger(name) {
				return nil, fmt.Errorf("cache rule %q: placeholder {%s} has no matching templated trigger", spec.Key, name)
			}
		}
		rules = append(rules, rule)
	}
	return &Registry{rules: rules}, nil
}

func (r Rule) hasTemplatedTrigger(name string) bool {
	for _, t := range r.Triggers {
		if slices.Contains(t.Placeholders(), name) {
			return true
		}
	}
	return false
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(specs []RuleSpec) *Registry {
	r, err := NewRegistry(specs)
	if err != nil {
		panic(err)
	}
	return r
}

// Rules returns the rules in authoring order.
func (r *Registry) Rules() []Rule {
	return slices.Clone(r.rules)
}

// TTLFor returns the TTL of the first rule whose key pattern matches the
// concrete key.
func (r *Registry) TTLFor(key string) (time.Duration, bool) {
	for _, rule := range r.rules {
		if rule.Key.Matches(key) {
			return rule.TTL, true
		}
	}
	return 0, false
}

// DefaultRules is the rule table of the corporate site.
func DefaultRules() []RuleSpec {
	return []RuleSpec{
		{Key: "home:v1", TTLMinutes: 60, Triggers: []string{"home", "media", "division", "product", "milestone"}},
		{Key: "nav:menu", TTLMinutes: 720, Triggers: []string{"division", "product", "technology"}},
		{Key: "divisions:index", TTLMinutes: 60, Triggers: []string{"division"}},
		{Key: "division:{slug}", TTLMinutes: 120, Triggers: []string{"division.{slug}", "product.{slug}"}},
		{Key: "products:index", TTLMinutes: 60, Triggers: []string{"product"}},
		{Key: "product:{slug}", TTLMinutes: 120, Triggers: []string{"product.{slug}"}},
		{Key: "technologies:index", TTLMinutes: 120, Triggers: []string{"technology", "machine"}},
		{Key: "technology:{slug}", TTLMinutes: 120, Triggers: []string{"technology.{slug}"}},
		{Key: "timeline:v1", TTLMinutes: 240, Triggers: []string{"milestone"}},
		{Key: "page:{slug}", TTLMinutes: 360, Triggers: []string{"page.{slug}"}},
	}
}

// Default returns the registry built from DefaultRules.
func Default() *Registry {
	return MustNewRegistry(DefaultRules())
}
