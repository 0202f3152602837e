// Package session manages the user's API session: logging in and out,
// and persisting the session across restarts through the credential
// store.
package session

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/yllada/vpn-client/common"
)

// Credential store keys.
const (
	tokenKey    = "session-token"
	usernameKey = "username"
	tierKey     = "user-tier"
)

// authAPI is the slice of the API client the session manager uses.
type authAPI interface {
	Login(ctx context.Context, username, password string) error
	Logout(ctx context.Context) error
	SetToken(token string)
	Token() string
	Tier() int
}

// Manager owns the user session lifecycle. A loaded session means the
// API client carries a token and authenticated endpoints can be called.
type Manager struct {
	api   authAPI
	store common.CredentialStore

	mu       sync.Mutex
	loaded   bool
	username string
	tier     int
}

// NewManager creates a session manager persisting sessions in the given
// credential store.
func NewManager(api authAPI, store common.CredentialStore) *Manager {
	return &Manager{api: api, store: store}
}

// Loaded reports whether a session is currently loaded.
func (m *Manager) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Username returns the logged-in username, or the empty string.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

// Tier returns the account tier of the loaded session: 0 for free
// accounts, higher values for paid plans.
func (m *Manager) Tier() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tier
}

// Login authenticates against the API and persists the session so it
// survives application restarts.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if err := m.api.Login(ctx, username, password); err != nil {
		return err
	}

	tier := m.api.Tier()
	if err := m.store.Store(tokenKey, m.api.Token()); err != nil {
		common.LogWarn("Could not persist session token: %v", err)
	}
	if err := m.store.Store(usernameKey, username); err != nil {
		common.LogWarn("Could not persist username: %v", err)
	}
	if err := m.store.Store(tierKey, strconv.Itoa(tier)); err != nil {
		common.LogWarn("Could not persist account tier: %v", err)
	}

	m.mu.Lock()
	m.loaded = true
	m.username = username
	m.tier = tier
	m.mu.Unlock()

	common.LogInfo("Logged in as %s.", username)
	return nil
}

// Logout invalidates the session remotely, clears the API client token
// and removes the persisted session. The local session is cleared even
// when the remote call fails.
func (m *Manager) Logout(ctx context.Context) error {
	if !m.Loaded() {
		return common.ErrNotLoggedIn
	}

	err := m.api.Logout(ctx)
	if err != nil {
		common.LogWarn("Remote logout failed: %v", err)
	}

	if deleteErr := m.store.Delete(tokenKey); deleteErr != nil {
		common.LogWarn("Could not remove persisted session token: %v", deleteErr)
	}
	if deleteErr := m.store.Delete(usernameKey); deleteErr != nil {
		common.LogWarn("Could not remove persisted username: %v", deleteErr)
	}
	if deleteErr := m.store.Delete(tierKey); deleteErr != nil {
		common.LogWarn("Could not remove persisted account tier: %v", deleteErr)
	}

	m.mu.Lock()
	m.loaded = false
	m.username = ""
	m.tier = 0
	m.mu.Unlock()

	common.LogInfo("Logged out.")
	return err
}

// Restore loads a previously persisted session from the credential
// store. Returns common.ErrNotLoggedIn when there is none.
func (m *Manager) Restore() error {
	token, err := m.store.Get(tokenKey)
	if err != nil {
		if errors.Is(err, common.ErrCredentialsNotFound) {
			return common.ErrNotLoggedIn
		}
		return err
	}
	if token == "" {
		return common.ErrNotLoggedIn
	}

	username, err := m.store.Get(usernameKey)
	if err != nil && !errors.Is(err, common.ErrCredentialsNotFound) {
		return err
	}

	tier := 0
	if stored, tierErr := m.store.Get(tierKey); tierErr == nil {
		if parsed, parseErr := strconv.Atoi(stored); parseErr == nil {
			tier = parsed
		}
	}

	m.api.SetToken(token)

	m.mu.Lock()
	m.loaded = true
	m.username = username
	m.tier = tier
	m.mu.Unlock()

	common.LogInfo("Session restored for %s.", username)
	return nil
}
