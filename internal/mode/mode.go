// Package mode holds the client's "what happens next" state and the pure
// transition that runs once sign-in has been resolved.
package mode

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/streetmix/sx/internal/apperr"
)

// ErrUnknownMode is returned by Parse for unrecognized names.
var ErrUnknownMode = errors.New("unknown mode")

// Mode is the client mode.
type Mode int

const (
	Unset Mode = iota
	NewStreet
	NewStreetCopyLast
	ExistingStreet
	Continue
	JustSignedIn
	UserGallery
	GlobalGallery
	SignOut
	ForceReloadSignIn
	ForceReloadSignOut
)

var names = map[Mode]string{
	Unset:              "UNSET",
	NewStreet:          "NEW_STREET",
	NewStreetCopyLast:  "NEW_STREET_COPY_LAST",
	ExistingStreet:     "EXISTING_STREET",
	Continue:           "CONTINUE",
	JustSignedIn:       "JUST_SIGNED_IN",
	UserGallery:        "USER_GALLERY",
	GlobalGallery:      "GLOBAL_GALLERY",
	SignOut:            "SIGN_OUT",
	ForceReloadSignIn:  "FORCE_RELOAD_SIGN_IN",
	ForceReloadSignOut: "FORCE_RELOAD_SIGN_OUT",
}

func (m Mode) String() string {
	if n, ok := names[m]; ok {
		return n
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Parse accepts the canonical name in any case, with '-' for '_'.
func Parse(s string) (Mode, error) {
	canonical := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	for m, n := range names {
		if m != Unset && n == canonical {
			return m, nil
		}
	}
	return Unset, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Set implements pflag.Value.
func (m *Mode) Set(s string) error {
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements pflag.Value.
func (m *Mode) Type() string {
	return "mode"
}

// StreetRef identifies a street and its owner.
type StreetRef struct {
	ID           string
	NamespacedID string
	CreatorID    string
}

// EffectKind is a side effect the caller must perform.
type EffectKind int

const (
	// RestoreStreet copies the saved street ref into the working street.
	RestoreStreet EffectKind = iota + 1
	// PromoteStreet marks the anonymous working street for adoption by the
	// newly signed-in user.
	PromoteStreet
	FetchStreet
	CreateStreet
	ShowError
	// ClearSignIn drops sign-in state in memory, durable storage, and cookies.
	ClearSignIn
	Reload
)

var effectNames = map[EffectKind]string{
	RestoreStreet: "RESTORE_STREET",
	PromoteStreet: "PROMOTE_STREET",
	FetchStreet:   "FETCH_STREET",
	CreateStreet:  "CREATE_STREET",
	ShowError:     "SHOW_ERROR",
	ClearSignIn:   "CLEAR_SIGN_IN",
	Reload:        "RELOAD",
}

func (k EffectKind) String() string {
	if n, ok := effectNames[k]; ok {
		return n
	}
	return fmt.Sprintf("EffectKind(%d)", int(k))
}

// Effect is one side effect. Street is set for RestoreStreet; Error for ShowError.
type Effect struct {
	Kind   EffectKind
	Street StreetRef
	Error  apperr.Error
}

// Input is everything the transition looks at.
type Input struct {
	Mode Mode
	// Saved is the last street recorded in user settings; empty ID means none.
	Saved StreetRef
	// CurrentCreatorID is the owner of the working street, "" if anonymous.
	CurrentCreatorID string
	ReadOnly         bool
}

// Decision is the mode after the transition and the effects to perform, in order.
type Decision struct {
	Mode    Mode
	Effects []Effect
}

func isEntryMode(m Mode) bool {
	switch m {
	case Continue, JustSignedIn, UserGallery, GlobalGallery:
		return true
	}
	return false
}

// Transition runs the post-sign-in step and then dispatches the resulting
// mode. It is pure: no state is read or written outside its arguments.
func Transition(in Input) Decision {
	next := in.Mode
	var effects []Effect

	if isEntryMode(in.Mode) {
		if in.Saved.ID != "" {
			effects = append(effects, Effect{Kind: RestoreStreet, Street: in.Saved})
			if in.Mode == JustSignedIn && in.CurrentCreatorID == "" {
				effects = append(effects, Effect{Kind: PromoteStreet})
			}
			if in.Mode == JustSignedIn {
				next = Continue
			}
		} else {
			next = NewStreet
		}
	}

	return Decision{
		Mode:    next,
		Effects: append(effects, Dispatch(next, in.ReadOnly)...),
	}
}

// Dispatch returns the terminal side effects of m.
func Dispatch(m Mode, readOnly bool) []Effect {
	switch m {
	case ExistingStreet, Continue, UserGallery, GlobalGallery:
		return []Effect{{Kind: FetchStreet}}
	case NewStreet, NewStreetCopyLast:
		if readOnly {
			return []Effect{{
				Kind:  ShowError,
				Error: apperr.Error{Code: apperr.CannotCreateNewStreetOnPhone, Fatal: true},
			}}
		}
		return []Effect{{Kind: CreateStreet}}
	case ForceReloadSignOut:
		return []Effect{{Kind: ClearSignIn}, {Kind: Reload}}
	case ForceReloadSignIn:
		return []Effect{{Kind: Reload}}
	}
	return nil
}

// Machine holds the process-wide current mode. Safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	current Mode
}

// NewMachine returns a machine starting in initial, which is derived by the
// caller from how the client was invoked.
func NewMachine(initial Mode) *Machine {
	return &Machine{current: initial}
}

// Current returns the current mode.
func (m *Machine) Current() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Set replaces the current mode.
func (m *Machine) Set(next Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = next
}

// Step runs Transition against the current mode, stores the new mode, and
// returns the decision. in.Mode is ignored.
func (m *Machine) Step(in Input) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	in.Mode = m.current
	d := Transition(in)
	m.current = d.Mode
	return d
}
