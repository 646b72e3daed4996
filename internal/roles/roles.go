// Package roles holds the role table: which feature flags each user role
// turns on.
package roles

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var rolesYAML []byte

// Role is a named role and the flags it grants.
type Role struct {
	Key   string          `yaml:"-" json:"key"`
	Name  string          `yaml:"name" json:"name"`
	Flags map[string]bool `yaml:"flags" json:"flags"`
}

var (
	loadOnce sync.Once
	builtin  map[string]Role
	loadErr  error
)

// Parse decodes a role table document.
func Parse(data []byte) (map[string]Role, error) {
	var raw map[string]Role
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	for key, r := range raw {
		r.Key = key
		if r.Flags == nil {
			r.Flags = map[string]bool{}
		}
		raw[key] = r
	}
	return raw, nil
}

func load() (map[string]Role, error) {
	loadOnce.Do(func() {
		builtin, loadErr = Parse(rolesYAML)
	})
	return builtin, loadErr
}

// Lookup returns the built-in role with the given key.
func Lookup(key string) (Role, bool) {
	table, err := load()
	if err != nil {
		return Role{}, false
	}
	r, ok := table[key]
	return r, ok
}

// All returns the built-in roles sorted by key.
func All() ([]Role, error) {
	table, err := load()
	if err != nil {
		return nil, err
	}
	items := make([]Role, 0, len(table))
	for _, r := range table {
		items = append(items, r)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return items, nil
}

// FlagTable returns role key -> flags in the shape the override resolver
// takes. The result is a fresh copy.
func FlagTable() (map[string]map[string]bool, error) {
	table, err := load()
	if err != nil {
		return nil, err
	}
	return flagTable(table), nil
}

func flagTable(table map[string]Role) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(table))
	for key, r := range table {
		flags := make(map[string]bool, len(r.Flags))
		for k, v := range r.Flags {
			flags[k] = v
		}
		out[key] = flags
	}
	return out
}
