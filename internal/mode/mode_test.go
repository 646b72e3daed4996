package mode

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/streetmix/sx/internal/apperr"
)

var saved = StreetRef{ID: "s1", NamespacedID: "3", CreatorID: "alice"}

func kinds(effects []Effect) []EffectKind {
	out := make([]EffectKind, len(effects))
	for i, e := range effects {
		out[i] = e.Kind
	}
	return out
}

func equalKinds(a, b []EffectKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		wantMode Mode
		want     []EffectKind
	}{
		{
			name:     "continue with saved street fetches it",
			in:       Input{Mode: Continue, Saved: saved},
			wantMode: Continue,
			want:     []EffectKind{RestoreStreet, FetchStreet},
		},
		{
			name:     "continue without saved street creates one",
			in:       Input{Mode: Continue},
			wantMode: NewStreet,
			want:     []EffectKind{CreateStreet},
		},
		{
			name:     "just signed in with anonymous working street promotes",
			in:       Input{Mode: JustSignedIn, Saved: saved},
			wantMode: Continue,
			want:     []EffectKind{RestoreStreet, PromoteStreet, FetchStreet},
		},
		{
			name:     "just signed in with owned working street does not promote",
			in:       Input{Mode: JustSignedIn, Saved: saved, CurrentCreatorID: "bob"},
			wantMode: Continue,
			want:     []EffectKind{RestoreStreet, FetchStreet},
		},
		{
			name:     "just signed in without saved street",
			in:       Input{Mode: JustSignedIn},
			wantMode: NewStreet,
			want:     []EffectKind{CreateStreet},
		},
		{
			name:     "user gallery keeps mode",
			in:       Input{Mode: UserGallery, Saved: saved},
			wantMode: UserGallery,
			want:     []EffectKind{RestoreStreet, FetchStreet},
		},
		{
			name:     "global gallery without saved street",
			in:       Input{Mode: GlobalGallery},
			wantMode: NewStreet,
			want:     []EffectKind{CreateStreet},
		},
		{
			name:     "existing street is not an entry mode",
			in:       Input{Mode: ExistingStreet, Saved: saved},
			wantMode: ExistingStreet,
			want:     []EffectKind{FetchStreet},
		},
		{
			name:     "new street copy last creates",
			in:       Input{Mode: NewStreetCopyLast},
			wantMode: NewStreetCopyLast,
			want:     []EffectKind{CreateStreet},
		},
		{
			name:     "read-only client cannot create",
			in:       Input{Mode: NewStreet, ReadOnly: true},
			wantMode: NewStreet,
			want:     []EffectKind{ShowError},
		},
		{
			name:     "force reload sign out clears then reloads",
			in:       Input{Mode: ForceReloadSignOut, Saved: saved},
			wantMode: ForceReloadSignOut,
			want:     []EffectKind{ClearSignIn, Reload},
		},
		{
			name:     "force reload sign in reloads",
			in:       Input{Mode: ForceReloadSignIn},
			wantMode: ForceReloadSignIn,
			want:     []EffectKind{Reload},
		},
		{
			name:     "sign out does nothing",
			in:       Input{Mode: SignOut, Saved: saved},
			wantMode: SignOut,
			want:     []EffectKind{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Transition(tt.in)
			if d.Mode != tt.wantMode {
				t.Errorf("mode: got %s, want %s", d.Mode, tt.wantMode)
			}
			if got := kinds(d.Effects); !equalKinds(got, tt.want) {
				t.Errorf("effects: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransitionRestoreCarriesRef(t *testing.T) {
	d := Transition(Input{Mode: Continue, Saved: saved})
	if d.Effects[0].Street != saved {
		t.Fatalf("restore ref: got %+v, want %+v", d.Effects[0].Street, saved)
	}
}

func TestReadOnlyErrorIsFatal(t *testing.T) {
	effects := Dispatch(NewStreetCopyLast, true)
	if len(effects) != 1 || effects[0].Error.Code != apperr.CannotCreateNewStreetOnPhone || !effects[0].Error.Fatal {
		t.Fatalf("got %+v", effects)
	}
}

func TestMachineStep(t *testing.T) {
	m := NewMachine(JustSignedIn)
	d := m.Step(Input{Mode: SignOut, Saved: saved})

	if d.Mode != Continue {
		t.Fatalf("step should use the machine's mode, got %s", d.Mode)
	}
	if m.Current() != Continue {
		t.Fatalf("current: got %s, want CONTINUE", m.Current())
	}

	m.Set(ForceReloadSignIn)
	if m.Current() != ForceReloadSignIn {
		t.Fatalf("set: got %s", m.Current())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"CONTINUE", Continue},
		{"continue", Continue},
		{"new-street", NewStreet},
		{" force_reload_sign_out ", ForceReloadSignOut},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = (%s, %v), want %s", tt.in, got, err, tt.want)
		}
	}

	if _, err := Parse("UNSET"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("UNSET should not parse, got %v", err)
	}
	if _, err := Parse("bogus"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("bogus: got %v", err)
	}
}

func TestModeIsPflagValue(t *testing.T) {
	var m Mode = Continue
	var v pflag.Value = &m

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(v, "mode", "initial mode")
	if err := fs.Parse([]string{"--mode", "user-gallery"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if m != UserGallery {
		t.Fatalf("flag value: got %s", m)
	}
	if v.String() != "USER_GALLERY" || v.Type() != "mode" {
		t.Fatalf("pflag view: %s %s", v.String(), v.Type())
	}
}

func TestStrings(t *testing.T) {
	if Mode(99).String() != "Mode(99)" {
		t.Errorf("unknown mode string: %s", Mode(99))
	}
	if Reload.String() != "RELOAD" || EffectKind(42).String() != "EffectKind(42)" {
		t.Error("effect kind strings")
	}
}
