package store

import (
	"errors"
	"testing"

	"github.com/streetmix/sx/internal/apperr"
	"github.com/streetmix/sx/internal/flags"
	"github.com/streetmix/sx/internal/settings"
	"github.com/streetmix/sx/internal/signin"
)

func TestSignInData(t *testing.T) {
	s := New()
	if s.SignedIn() || s.SignInData() != nil {
		t.Fatal("new store should be signed out")
	}

	in := &signin.Data{Token: "t", UserID: "u"}
	s.SetSignInData(in)
	if !s.SignedIn() {
		t.Fatal("expected signed in")
	}

	in.Token = "mutated"
	if got := s.SignInData().Token; got != "t" {
		t.Fatalf("store kept caller's pointer: token %q", got)
	}

	s.ClearSignInData()
	if s.SignedIn() || s.SignInData() != nil {
		t.Fatal("expected signed out after clear")
	}
}

func TestSetNilSignInData(t *testing.T) {
	s := New()
	s.SetSignInData(&signin.Data{Token: "t", UserID: "u"})
	s.SetSignInData(nil)
	if s.SignedIn() {
		t.Fatal("nil data should not count as signed in")
	}
}

func TestRememberUserProfile(t *testing.T) {
	s := New()
	s.RememberUserProfile(signin.UserDetails{ID: "alice", ProfileImageURL: "https://img/alice.png"})
	s.RememberUserProfile(signin.UserDetails{})

	p, ok := s.Profile("alice")
	if !ok || p.ProfileImageURL != "https://img/alice.png" {
		t.Fatalf("profile: got %+v, %v", p, ok)
	}
	if _, ok := s.Profile(""); ok {
		t.Fatal("profile without id should not be cached")
	}
}

func TestUpdateSettingsPersists(t *testing.T) {
	s := New()
	s.LoadSettings(settings.Settings{LastStreetID: "s1", Locale: "de"})

	var saved []settings.Settings
	s.SetSettingsSink(func(st settings.Settings) error {
		saved = append(saved, st)
		return nil
	})

	if err := s.UpdateSettings(settings.ClearLastStreet()); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(saved) != 1 {
		t.Fatalf("sink calls: got %d, want 1", len(saved))
	}
	if saved[0].LastStreetID != "" || saved[0].Locale != "de" {
		t.Fatalf("persisted: got %+v", saved[0])
	}
	if s.Settings() != saved[0] {
		t.Fatalf("in-memory %+v differs from persisted %+v", s.Settings(), saved[0])
	}
}

func TestUpdateSettingsSinkError(t *testing.T) {
	s := New()
	boom := errors.New("disk full")
	s.SetSettingsSink(func(settings.Settings) error { return boom })

	id := "s9"
	if err := s.UpdateSettings(settings.Patch{LastStreetID: &id}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if s.Settings().LastStreetID != "s9" {
		t.Fatal("in-memory update should stand")
	}
}

func TestStreetMetadata(t *testing.T) {
	s := New()
	s.SetStreet(Street{ID: "old", Name: "Main St", UpdatedAt: "2024-01-01T00:00:00Z"})
	s.UpdateStreetIDMetadata("s1", "7", "alice")

	got := s.Street()
	want := Street{ID: "s1", NamespacedID: "7", CreatorID: "alice", Name: "Main St", UpdatedAt: "2024-01-01T00:00:00Z"}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	s.SetPromoteStreet(true)
	if !s.PromoteStreet() {
		t.Fatal("promote mark not set")
	}
}

func TestErrorsDialogsNotices(t *testing.T) {
	s := New()
	if _, ok := s.FatalError(); ok {
		t.Fatal("no fatal error yet")
	}

	s.ShowError(apperr.Error{Code: apperr.NoStreet})
	s.ShowError(apperr.Error{Code: apperr.SignIn401, Fatal: true})
	s.ShowDialog(DialogSignIn)
	s.Notify("signed out")

	if got := len(s.Errors()); got != 2 {
		t.Fatalf("errors: got %d, want 2", got)
	}
	fatal, ok := s.FatalError()
	if !ok || fatal.Code != apperr.SignIn401 {
		t.Fatalf("fatal: got %+v, %v", fatal, ok)
	}
	if d := s.Dialogs(); len(d) != 1 || d[0] != DialogSignIn {
		t.Fatalf("dialogs: got %v", d)
	}
	if n := s.Notices(); len(n) != 1 {
		t.Fatalf("notices: got %v", n)
	}
}

func TestFlagsTableDefaults(t *testing.T) {
	s := New()
	if s.Flags().Value(flags.AuthenticationV2.Name) {
		t.Fatal("AUTHENTICATION_V2 defaults off")
	}
	if !s.Flags().Value(flags.Geotag.Name) {
		t.Fatal("GEOTAG defaults on")
	}
}
