package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/streetmix/sx/internal/auth"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/localstore"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/signin"
)

// TestFollowSessionSeesSignOutDuringBootstrap signs out from a second
// process while the users request is in flight. The watcher must still
// report it and force a reload.
func TestFollowSessionSeesSignOutDuringBootstrap(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())

	dbPath, err := config.StorageDBPath()
	if err != nil {
		t.Fatalf("storage path: %v", err)
	}
	other, err := localstore.Open(dbPath)
	if err != nil {
		t.Fatalf("open other store: %v", err)
	}
	defer other.Close()

	persist := &signin.Persistence{Storage: other}
	if err := persist.PersistLocally(&signin.Data{Token: "tok", UserID: "alice"}); err != nil {
		t.Fatalf("persist: %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/users/") {
			if err := other.Remove(localstore.KeySignIn); err != nil {
				t.Errorf("remove marker: %v", err)
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	t.Setenv("SX_API_URL", srv.URL)

	reload := make(chan struct{}, 1)
	a, err := newApp(appOptions{
		mode: mode.SignOut,
		reloader: auth.ReloaderFunc(func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		}),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded, err := followSession(ctx, a, 20*time.Millisecond, reload)
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if !reloaded {
		t.Fatal("sign-out made during the bootstrap did not force a reload")
	}
	if a.session.IsSignedIn() {
		t.Fatal("session should be cleared before the reload")
	}
	if got := a.machine.Current(); got != mode.ForceReloadSignOut {
		t.Fatalf("mode: got %s, want FORCE_RELOAD_SIGN_OUT", got)
	}
}

func TestFollowSessionStopsOnCancel(t *testing.T) {
	t.Setenv("SX_CONFIG_DIR", t.TempDir())
	t.Setenv("SX_API_URL", "http://127.0.0.1:1/")

	a, err := newApp(appOptions{mode: mode.SignOut})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	reloaded, err := followSession(ctx, a, 10*time.Millisecond, make(chan struct{}))
	if err != nil {
		t.Fatalf("follow: %v", err)
	}
	if reloaded {
		t.Fatal("no reload expected when nothing changed")
	}
}
