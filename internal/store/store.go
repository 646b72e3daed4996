// Package store holds the client's in-memory application state: sign-in
// data, settings, the working street, feature flags, and what the user has
// been shown. Components receive a *Store rather than reaching for globals.
package store

import (
	"sync"

	"github.com/streetmix/sx/internal/apperr"
	"github.com/streetmix/sx/internal/flags"
	"github.com/streetmix/sx/internal/settings"
	"github.com/streetmix/sx/internal/signin"
)

// Dialog names.
const (
	DialogSignIn = "SIGN_IN"
)

// Street is the metadata of the working street.
type Street struct {
	ID           string
	NamespacedID string
	CreatorID    string
	Name         string
	UpdatedAt    string
}

// SettingsSink persists settings after an update.
type SettingsSink func(settings.Settings) error

// Store is the application state. Safe for concurrent use; getters return
// copies.
type Store struct {
	mu sync.Mutex

	signInData *signin.Data
	signedIn   bool
	profiles   map[string]signin.UserDetails

	settings     settings.Settings
	settingsSink SettingsSink

	street  Street
	promote bool

	flags *flags.Table

	errors  []apperr.Error
	dialogs []string
	notices []string
}

// New returns an empty store with a default flag table.
func New() *Store {
	return &Store{
		profiles: make(map[string]signin.UserDetails),
		flags:    flags.NewTable(),
	}
}

// SetSettingsSink sets where UpdateSettings persists to.
func (s *Store) SetSettingsSink(sink SettingsSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settingsSink = sink
}

// --- Sign-in ---

// SetSignInData replaces the sign-in data and marks the user signed in.
func (s *Store) SetSignInData(data *signin.Data) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signInData = data.Clone()
	s.signedIn = data != nil
}

// ClearSignInData drops the in-memory sign-in data.
func (s *Store) ClearSignInData() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signInData = nil
	s.signedIn = false
}

// SignInData returns a copy of the sign-in data, or nil.
func (s *Store) SignInData() *signin.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signInData.Clone()
}

// SignedIn reports whether sign-in data is held.
func (s *Store) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signedIn
}

// RememberUserProfile caches a user's profile so it need not be requested
// again.
func (s *Store) RememberUserProfile(details signin.UserDetails) {
	if details.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[details.ID] = details
}

// Profile returns a cached profile.
func (s *Store) Profile(userID string) (signin.UserDetails, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	return p, ok
}

// --- Settings ---

// LoadSettings replaces the settings without persisting them.
func (s *Store) LoadSettings(st settings.Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = st
}

// Settings returns the current settings.
func (s *Store) Settings() settings.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies p and persists the result through the sink, if any.
// The in-memory update stands even when persisting fails.
func (s *Store) UpdateSettings(p settings.Patch) error {
	s.mu.Lock()
	s.settings = s.settings.Apply(p)
	updated, sink := s.settings, s.settingsSink
	s.mu.Unlock()

	if sink == nil {
		return nil
	}
	return sink(updated)
}

// --- Street ---

// Street returns the working street metadata.
func (s *Store) Street() Street {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.street
}

// UpdateStreetIDMetadata sets the working street's identity and owner,
// keeping its name and timestamp.
func (s *Store) UpdateStreetIDMetadata(id, namespacedID, creatorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.street.ID = id
	s.street.NamespacedID = namespacedID
	s.street.CreatorID = creatorID
}

// SetStreet replaces the working street.
func (s *Store) SetStreet(st Street) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.street = st
}

// PromoteStreet reports whether the anonymous working street is to be adopted
// by the signed-in user.
func (s *Store) PromoteStreet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promote
}

// SetPromoteStreet sets the promotion mark.
func (s *Store) SetPromoteStreet(promote bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.promote = promote
}

// --- Flags ---

// Flags returns the flag table.
func (s *Store) Flags() *flags.Table {
	return s.flags
}

// --- User-visible output ---

// ShowError records a user-visible error.
func (s *Store) ShowError(e apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, e)
}

// Errors returns the errors shown so far, oldest first.
func (s *Store) Errors() []apperr.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apperr.Error(nil), s.errors...)
}

// FatalError returns the first fatal error shown, if any.
func (s *Store) FatalError() (apperr.Error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.errors {
		if e.Fatal {
			return e, true
		}
	}
	return apperr.Error{}, false
}

// ShowDialog records a request to show a named dialog.
func (s *Store) ShowDialog(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialogs = append(s.dialogs, name)
}

// Dialogs returns the dialogs requested so far.
func (s *Store) Dialogs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.dialogs...)
}

// Notify records a transient confirmation for the user.
func (s *Store) Notify(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, msg)
}

// Notices returns the notices recorded so far.
func (s *Store) Notices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.notices...)
}
