// Package auth stores named cookie sessions that runs can reuse.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "scrape-cli"
	// FallbackDir is the directory, relative to the home directory, for
	// file-based session storage when the keyring is unavailable.
	FallbackDir = ".scrape/sessions"

	manifestKey = "_manifest"
)

var (
	ErrEmptyName      = errors.New("session name cannot be empty")
	ErrSessionExpired = errors.New("session expired")
)

// SessionData represents a stored authentication session
type SessionData struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   []Cookie          `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Expired reports whether the session has an expiry in the past.
func (s *SessionData) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// HTTPCookies converts the stored cookies for use in a cookie jar.
func (s *SessionData) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		out = append(out, c.HTTPCookie())
	}
	return out
}

// Cookie represents a browser cookie. Expires is seconds since the epoch,
// zero for session cookies.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// HTTPCookie converts c to a net/http cookie.
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if hc.Path == "" {
		hc.Path = "/"
	}
	if c.Expires > 0 {
		hc.Expires = time.Unix(int64(c.Expires), 0)
	}
	switch strings.ToLower(c.SameSite) {
	case "strict":
		hc.SameSite = http.SameSiteStrictMode
	case "lax":
		hc.SameSite = http.SameSiteLaxMode
	case "none":
		hc.SameSite = http.SameSiteNoneMode
	}
	return hc
}

// EarliestExpiry returns the soonest expiry among persistent cookies, or
// the zero time when all are session cookies.
func EarliestExpiry(cookies []Cookie) time.Time {
	var earliest time.Time
	for _, c := range cookies {
		if c.Expires <= 0 {
			continue
		}
		t := time.Unix(int64(c.Expires), 0)
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

// Store persists sessions in the OS keyring, or in a directory of JSON
// files where no keyring is available (Codespaces, CI).
type Store struct {
	dir     string
	keyring bool
}

// NewKeyringStore stores sessions in the OS keyring.
func NewKeyringStore() *Store {
	return &Store{keyring: true}
}

// NewFileStore stores sessions as files under dir.
func NewFileStore(dir string) *Store {
	return &Store{dir: dir}
}

// NewStore uses the keyring when it accepts writes and falls back to ~/.scrape/sessions.
func NewStore() (*Store, error) {
	if os.Getenv("CODESPACES") == "" && os.Getenv("CI") == "" && keyringUsable() {
		return NewKeyringStore(), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to locate home directory: %w", err)
	}
	log.Debug().Msg("Keyring unavailable, using file-based session storage")
	return NewFileStore(filepath.Join(home, FallbackDir)), nil
}

func keyringUsable() bool {
	const key = "_test_keyring_access_"
	if err := keyring.Set(KeyringService, key, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, key)
	return true
}

// UsesKeyring reports whether sessions go to the OS keyring.
func (s *Store) UsesKeyring() bool {
	return s.keyring
}

// Location names where sessions are kept, for display.
func (s *Store) Location() string {
	if s.keyring {
		return "OS keyring"
	}
	return s.dir
}

// Save writes the session, replacing any session of the same name.
func (s *Store) Save(session *SessionData) error {
	if session == nil || session.Name == "" {
		return ErrEmptyName
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if !s.keyring {
		if err := os.MkdirAll(s.dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session dir: %w", err)
		}
		if err := os.WriteFile(s.path(session.Name), data, 0o600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(session.Name, true)
}

// Load reads a session. Expired sessions return ErrSessionExpired.
func (s *Store) Load(name string) (*SessionData, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var data string
	if !s.keyring {
		raw, err := os.ReadFile(s.path(name))
		if err != nil {
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
		data = string(raw)
	} else {
		v, err := keyring.Get(KeyringService, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = v
	}

	var session SessionData
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}
	if session.Expired(time.Now()) {
		return &session, fmt.Errorf("%w: %s", ErrSessionExpired, name)
	}
	return &session, nil
}

// Delete removes a session. Missing sessions are not an error for file
// storage.
func (s *Store) Delete(name string) error {
	if name == "" {
		return ErrEmptyName
	}

	if !s.keyring {
		if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(name, false)
}

// List returns the stored session names, sorted.
func (s *Store) List() ([]string, error) {
	if !s.keyring {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}
		names := []string{}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
		sort.Strings(names)
		return names, nil
	}

	// The keyring cannot enumerate entries, so names are tracked in a manifest.
	raw, err := keyring.Get(KeyringService, manifestKey)
	if err != nil {
		return []string{}, nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) updateManifest(name string, add bool) error {
	names, err := s.List()
	if err != nil {
		return err
	}

	idx := slices.Index(names, name)
	switch {
	case add && idx < 0:
		names = append(names, name)
	case !add && idx >= 0:
		names = slices.Delete(names, idx, idx+1)
	default:
		return nil
	}

	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
