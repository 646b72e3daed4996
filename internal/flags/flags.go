package flags

import (
	"sort"
	"strings"
	"sync"
)

// Flag describes a named feature flag.
type Flag struct {
	Name        string
	Default     bool
	Description string
}

var (
	// AuthenticationV2 switches sign-in to the provider picker dialog.
	AuthenticationV2 = Flag{
		Name:        "AUTHENTICATION_V2",
		Default:     false,
		Description: "Use the multi-provider sign-in dialog",
	}

	// Geotag enables the street location dialog.
	Geotag = Flag{
		Name:        "GEOTAG",
		Default:     true,
		Description: "Enable geotagging streets",
	}

	// SaveAsImageCustomDPI exposes the DPI control on image export.
	SaveAsImageCustomDPI = Flag{
		Name:        "SAVE_AS_IMAGE_CUSTOM_DPI",
		Default:     false,
		Description: "Allow custom DPI when saving a street as an image",
	}

	// Analytics gates the analytics view.
	Analytics = Flag{
		Name:        "ANALYTICS",
		Default:     false,
		Description: "Show street analytics",
	}

	// InfoBubbleUnits shows unit toggles in the info bubble.
	InfoBubbleUnits = Flag{
		Name:        "INFO_BUBBLE_UNITS",
		Default:     false,
		Description: "Show units in the segment info bubble",
	}
)

var allFlags = []Flag{
	Analytics,
	AuthenticationV2,
	Geotag,
	InfoBubbleUnits,
	SaveAsImageCustomDPI,
}

// ListAll returns all known flags sorted by name.
func ListAll() []Flag {
	items := make([]Flag, len(allFlags))
	copy(items, allFlags)
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

// IsKnownFlag returns true when the flag exists in the registry.
func IsKnownFlag(name string) bool {
	canonical := NormalizeName(name)
	for _, f := range allFlags {
		if f.Name == canonical {
			return true
		}
	}
	return false
}

// NormalizeName returns the canonical (upper-case) flag name.
func NormalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// SourceDefault marks a flag value that no override has touched.
const SourceDefault = "default"

// State is a flag's resolved value and the override scope that set it.
type State struct {
	Name   string `json:"name"`
	Value  bool   `json:"value"`
	Source string `json:"source"`
}

// Table is the global flag table. It starts from registry defaults and is
// mutated only by Apply. Safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	states map[string]State
}

// NewTable returns a table holding registry defaults.
func NewTable() *Table {
	t := &Table{}
	t.Reset()
	return t
}

// Reset restores registry defaults and drops unknown flags.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]State, len(allFlags))
	for _, f := range allFlags {
		t.states[f.Name] = State{Name: f.Name, Value: f.Default, Source: SourceDefault}
	}
}

// Apply applies overrides in order; a later override wins over an earlier
// one for the same flag. Flags the registry does not know are still recorded.
func (t *Table) Apply(overrides ...Override) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range overrides {
		names := make([]string, 0, len(o.Values))
		for name := range o.Values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			canonical := NormalizeName(name)
			t.states[canonical] = State{Name: canonical, Value: o.Values[name], Source: o.Scope}
		}
	}
}

// Value returns a flag's value; unknown flags are false.
func (t *Table) Value(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[NormalizeName(name)].Value
}

// Source returns the scope that set a flag, or "" for unknown flags.
func (t *Table) Source(name string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[NormalizeName(name)].Source
}

// List returns every flag state sorted by name.
func (t *Table) List() []State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	items := make([]State, 0, len(t.states))
	for _, s := range t.states {
		items = append(items, s)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}
