// Package cookiejar holds the sign-in cookie pair handed to the client by the
// external sign-in redirect. Cookies are a one-shot handoff: the session
// bootstrap reads them once and deletes them.
package cookiejar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Sign-in handoff cookie names.
const (
	SignInTokenCookie = "login_token"
	UserIDCookie      = "user_id"
)

// Cookie is a stored cookie value.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func (c Cookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// Jar is a file-backed cookie jar. It is safe for concurrent use within one
// process; writes are atomic on disk (temp file + rename).
type Jar struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// Open returns a Jar stored at path. The file is created on first write.
func Open(path string) *Jar {
	return &Jar{path: path, now: time.Now}
}

// Get returns the named cookie's value. Missing, empty, and expired cookies
// are reported as absent.
func (j *Jar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	cookies, err := j.load()
	if err != nil {
		return "", false
	}
	c, ok := cookies[name]
	if !ok || c.Value == "" || c.expired(j.now()) {
		return "", false
	}
	return c.Value, true
}

// Set stores a cookie, replacing any cookie with the same name.
func (j *Jar) Set(c Cookie) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cookies, err := j.load()
	if err != nil {
		return err
	}
	cookies[c.Name] = c
	return j.save(cookies)
}

// Remove deletes the named cookie. Removing a missing cookie is not an error.
func (j *Jar) Remove(name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cookies, err := j.load()
	if err != nil {
		return err
	}
	if _, ok := cookies[name]; !ok {
		return nil
	}
	delete(cookies, name)
	return j.save(cookies)
}

func (j *Jar) load() (map[string]Cookie, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Cookie{}, nil
		}
		return nil, fmt.Errorf("read cookie jar: %w", err)
	}

	var list []Cookie
	if len(data) > 0 {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse cookie jar: %w", err)
		}
	}

	cookies := make(map[string]Cookie, len(list))
	now := j.now()
	for _, c := range list {
		if c.expired(now) {
			continue
		}
		cookies[c.Name] = c
	}
	return cookies, nil
}

func (j *Jar) save(cookies map[string]Cookie) error {
	list := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		list = append(list, c)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Atomic write: temp file in same dir, then rename
	tmp, err := os.CreateTemp(dir, "cookies-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, j.path)
}
