// Package settings persists per-user client settings in durable storage.
package settings

import (
	"encoding/json"
	"fmt"

	"github.com/streetmix/sx/internal/localstore"
)

// Settings are the user's local preferences and the last street they worked on.
type Settings struct {
	LastStreetID           string `json:"lastStreetId,omitempty"`
	LastStreetNamespacedID string `json:"lastStreetNamespacedId,omitempty"`
	LastStreetCreatorID    string `json:"lastStreetCreatorId,omitempty"`
	Locale                 string `json:"locale,omitempty"`
	Units                  string `json:"units,omitempty"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	LastStreetID           *string
	LastStreetNamespacedID *string
	LastStreetCreatorID    *string
	Locale                 *string
	Units                  *string
}

// ClearLastStreet returns a patch that forgets the last street.
func ClearLastStreet() Patch {
	empty := ""
	return Patch{
		LastStreetID:           &empty,
		LastStreetNamespacedID: &empty,
		LastStreetCreatorID:    &empty,
	}
}

// Apply returns s with p applied.
func (s Settings) Apply(p Patch) Settings {
	if p.LastStreetID != nil {
		s.LastStreetID = *p.LastStreetID
	}
	if p.LastStreetNamespacedID != nil {
		s.LastStreetNamespacedID = *p.LastStreetNamespacedID
	}
	if p.LastStreetCreatorID != nil {
		s.LastStreetCreatorID = *p.LastStreetCreatorID
	}
	if p.Locale != nil {
		s.Locale = *p.Locale
	}
	if p.Units != nil {
		s.Units = *p.Units
	}
	return s
}

// KeyValue is the storage the settings live in.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Load reads settings. Unset or empty storage yields zero settings.
func Load(kv KeyValue) (Settings, error) {
	raw, ok, err := kv.Get(localstore.KeySettings)
	if err != nil {
		return Settings{}, err
	}
	if !ok || raw == "" {
		return Settings{}, nil
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save writes settings.
func Save(kv KeyValue, s Settings) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return kv.Set(localstore.KeySettings, string(data))
}
