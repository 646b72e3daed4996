// Package signin defines the session data held by the client and the adapter
// that persists it to cookies and durable local storage.
package signin

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/streetmix/sx/internal/cookiejar"
	"github.com/streetmix/sx/internal/localstore"
)

// ErrMalformed is returned when durable storage holds content that does not
// decode.
var ErrMalformed = errors.New("malformed stored data")

// UserDetails is the user profile returned by the users endpoint. It is
// replaced wholesale on every fetch.
type UserDetails struct {
	ID              string          `json:"id,omitempty"`
	DisplayName     string          `json:"displayName,omitempty"`
	ProfileImageURL string          `json:"profileImageUrl,omitempty"`
	Flags           map[string]bool `json:"flags"`
	Roles           []string        `json:"roles"`
}

// Data is the client's sign-in state.
type Data struct {
	Token   string       `json:"token"`
	UserID  string       `json:"userId"`
	Details *UserDetails `json:"details,omitempty"`
}

// Complete reports whether both token and user id are present.
func (d *Data) Complete() bool {
	return d != nil && d.Token != "" && d.UserID != ""
}

// AuthHeader returns the Authorization header value for d: "Bearer <token>"
// when d is complete, otherwise "".
func (d *Data) AuthHeader() string {
	if !d.Complete() {
		return ""
	}
	return "Bearer " + d.Token
}

// Clone returns a copy safe to hand to callers.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := *d
	if d.Details != nil {
		details := *d.Details
		details.Flags = make(map[string]bool, len(d.Details.Flags))
		for k, v := range d.Details.Flags {
			details.Flags[k] = v
		}
		details.Roles = append([]string(nil), d.Details.Roles...)
		out.Details = &details
	}
	return &out
}

// CookieStore is the cookie half of the persistence adapter.
type CookieStore interface {
	Get(name string) (string, bool)
	Remove(name string) error
}

// KeyValue is the durable local storage half of the persistence adapter.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Persistence reads and writes sign-in state. It has no side effects beyond
// the cookie store and the durable storage it wraps.
type Persistence struct {
	Cookies CookieStore
	Storage KeyValue
}

// ReadSignInCookies returns the sign-in cookie pair. Both cookies must be
// present.
func (p *Persistence) ReadSignInCookies() (*Data, bool) {
	token, ok := p.Cookies.Get(cookiejar.SignInTokenCookie)
	if !ok || token == "" {
		return nil, false
	}
	userID, ok := p.Cookies.Get(cookiejar.UserIDCookie)
	if !ok || userID == "" {
		return nil, false
	}
	return &Data{Token: token, UserID: userID}, true
}

// RemoveSignInCookies deletes both sign-in cookies. Missing cookies are fine.
func (p *Persistence) RemoveSignInCookies() error {
	if err := p.Cookies.Remove(cookiejar.SignInTokenCookie); err != nil {
		return fmt.Errorf("remove %s cookie: %w", cookiejar.SignInTokenCookie, err)
	}
	if err := p.Cookies.Remove(cookiejar.UserIDCookie); err != nil {
		return fmt.Errorf("remove %s cookie: %w", cookiejar.UserIDCookie, err)
	}
	return nil
}

// PersistLocally writes data to durable storage. A nil data writes the empty
// string, which is distinct from the key never having been set.
func (p *Persistence) PersistLocally(data *Data) error {
	if data == nil {
		return p.Storage.Set(localstore.KeySignIn, "")
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode sign-in data: %w", err)
	}
	return p.Storage.Set(localstore.KeySignIn, string(encoded))
}

// ReadPersisted returns the durable copy of the sign-in data, or nil when the
// key is unset or empty.
func (p *Persistence) ReadPersisted() (*Data, error) {
	raw, ok, err := p.Storage.Get(localstore.KeySignIn)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", localstore.KeySignIn, ErrMalformed, err)
	}
	return &data, nil
}

// HasMarker reports whether durable storage holds a non-empty sign-in record.
func (p *Persistence) HasMarker() (bool, error) {
	raw, ok, err := p.Storage.Get(localstore.KeySignIn)
	if err != nil {
		return false, err
	}
	return ok && raw != "", nil
}

// RemoveMarker deletes the durable sign-in record.
func (p *Persistence) RemoveMarker() error {
	return p.Storage.Remove(localstore.KeySignIn)
}

// ReadSessionFlags returns the per-session flag choices stored under the
// flags key. Unset or empty means no choices.
func (p *Persistence) ReadSessionFlags() (map[string]bool, error) {
	raw, ok, err := p.Storage.Get(localstore.KeyFlags)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" || raw == "null" {
		return nil, nil
	}
	var values map[string]bool
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", localstore.KeyFlags, ErrMalformed, err)
	}
	return values, nil
}
