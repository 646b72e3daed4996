package cookiejar

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// HandoffTTL bounds how long an unconsumed sign-in cookie pair stays valid.
const HandoffTTL = 10 * time.Minute

// Handoff receives the external sign-in redirect on a loopback listener and
// stores the login_token/user_id pair in the jar. The pair may arrive as query
// parameters or as cookies on the redirected request.
type Handoff struct {
	jar  *Jar
	once sync.Once
	done chan struct{}
}

// NewHandoff returns a handler storing into jar.
func NewHandoff(jar *Jar) *Handoff {
	return &Handoff{jar: jar, done: make(chan struct{})}
}

// Done is closed after the first complete cookie pair has been stored.
func (h *Handoff) Done() <-chan struct{} {
	return h.done
}

func (h *Handoff) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := lookup(r, SignInTokenCookie)
	userID := lookup(r, UserIDCookie)
	if token == "" || userID == "" {
		http.Error(w, "missing sign-in parameters", http.StatusBadRequest)
		return
	}

	expires := h.jar.now().Add(HandoffTTL)
	if err := h.jar.Set(Cookie{Name: SignInTokenCookie, Value: token, Expires: expires}); err != nil {
		slog.Error("handoff: store token", "err", err)
		http.Error(w, "could not store sign-in", http.StatusInternalServerError)
		return
	}
	if err := h.jar.Set(Cookie{Name: UserIDCookie, Value: userID, Expires: expires}); err != nil {
		slog.Error("handoff: store user id", "err", err)
		http.Error(w, "could not store sign-in", http.StatusInternalServerError)
		return
	}

	slog.Debug("handoff: stored sign-in cookies", "user", userID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "Signed in. You can close this window and return to the terminal.")

	h.once.Do(func() { close(h.done) })
}

func lookup(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if c, err := r.Cookie(name); err == nil {
		return c.Value
	}
	return ""
}
