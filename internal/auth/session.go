// internal/auth/session.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "dommap"
	// FallbackDir is the directory for file-based session storage (when keyring fails)
	FallbackDir = ".dommap/sessions"

	manifestKey = "_manifest"
)

// ErrSessionExpired is returned when a stored session is past its expiry.
var ErrSessionExpired = errors.New("session expired")

// SessionData is a named set of cookies and headers applied to both the raw
// fetch and the rendered fetch.
type SessionData struct {
	Name      string            `json:"name"`
	URL       string            `json:"url"`
	Cookies   []Cookie          `json:"cookies"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// Cookie represents a browser cookie
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

// HTTPCookies converts the session cookies for net/http.
func (s *SessionData) HTTPCookies() []*http.Cookie {
	out := make([]*http.Cookie, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HttpOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out
}

// Expired reports whether the session has an expiry in the past.
func (s *SessionData) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// Loader is what the fetchers need from a session store.
type Loader interface {
	Load(name string) (*SessionData, error)
}

// Store persists sessions in the OS keyring, or as JSON files when no
// keyring is available (Codespaces, CI, headless servers).
type Store struct {
	dir        string
	useKeyring bool
	mu         sync.Mutex
}

var (
	defaultStore     *Store
	defaultStoreOnce sync.Once
)

// DefaultStore returns the process-wide store, probing the keyring once.
func DefaultStore() *Store {
	defaultStoreOnce.Do(func() {
		dir := ""
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, FallbackDir)
		}
		defaultStore = &Store{dir: dir, useKeyring: keyringAvailable()}
	})
	return defaultStore
}

// NewFileStore returns a store that keeps sessions as files under dir.
func NewFileStore(dir string) *Store {
	return &Store{dir: dir}
}

// NewKeyringStore returns a store backed by the OS keyring.
func NewKeyringStore() *Store {
	return &Store{useKeyring: true}
}

func keyringAvailable() bool {
	if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
		return false
	}
	testKey := "_test_keyring_access_"
	if err := keyring.Set(KeyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(KeyringService, testKey)
	return true
}

// Backend names the storage in use.
func (s *Store) Backend() string {
	if s.useKeyring {
		return "keyring"
	}
	return "file:" + s.dir
}

func (s *Store) path(name string) (string, error) {
	if s.dir == "" {
		return "", fmt.Errorf("no session directory configured")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name+".json"), nil
}

// Save stores a session, replacing any session with the same name.
func (s *Store) Save(session *SessionData) error {
	if session == nil || session.Name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useKeyring {
		path, err := s.path(session.Name)
		if err != nil {
			return fmt.Errorf("failed to get session path: %w", err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(KeyringService, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(session.Name, true)
}

// Load returns a stored session. Expired sessions yield ErrSessionExpired.
func (s *Store) Load(name string) (*SessionData, error) {
	if name == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	var data string
	if !s.useKeyring {
		path, err := s.path(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get session path: %w", err)
		}
		raw, err := os.ReadFile(path)
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
	if session.Expired() {
		return nil, fmt.Errorf("%s: %w", name, ErrSessionExpired)
	}
	return &session, nil
}

// Delete removes a session. Deleting a missing file session is not an error.
func (s *Store) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.useKeyring {
		path, err := s.path(name)
		if err != nil {
			return fmt.Errorf("failed to get session path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(KeyringService, name); err != nil {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(name, false)
}

// List returns the stored session names in sorted order.
func (s *Store) List() ([]string, error) {
	if !s.useKeyring {
		if s.dir == "" {
			return []string{}, nil
		}
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}
		sessions := []string{}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				sessions = append(sessions, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
		sort.Strings(sessions)
		return sessions, nil
	}

	return s.manifest()
}

func (s *Store) manifest() ([]string, error) {
	raw, err := keyring.Get(KeyringService, manifestKey)
	if err != nil {
		// No manifest exists yet
		return []string{}, nil
	}
	var sessions []string
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	sort.Strings(sessions)
	return sessions, nil
}

// must be called with s.mu held
func (s *Store) updateManifest(name string, add bool) error {
	sessions, err := s.manifest()
	if err != nil {
		return err
	}

	next := make([]string, 0, len(sessions)+1)
	for _, existing := range sessions {
		if existing != name {
			next = append(next, existing)
		}
	}
	if add {
		next = append(next, name)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return keyring.Set(KeyringService, manifestKey, string(data))
}
