package session

import (
	"context"
	"errors"
	"testing"

	"github.com/yllada/vpn-client/common"
)

type fakeAPI struct {
	token     string
	tier      int
	loginErr  error
	logoutErr error
	logouts   int
}

func (a *fakeAPI) Login(ctx context.Context, username, password string) error {
	if a.loginErr != nil {
		return a.loginErr
	}
	a.token = "token-for-" + username
	a.tier = 2
	return nil
}

func (a *fakeAPI) Logout(ctx context.Context) error {
	a.logouts++
	a.token = ""
	return a.logoutErr
}

func (a *fakeAPI) SetToken(token string) { a.token = token }
func (a *fakeAPI) Token() string         { return a.token }
func (a *fakeAPI) Tier() int             { return a.tier }

type memoryStore struct {
	secrets map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{secrets: map[string]string{}}
}

func (s *memoryStore) Store(key, secret string) error {
	s.secrets[key] = secret
	return nil
}

func (s *memoryStore) Get(key string) (string, error) {
	secret, ok := s.secrets[key]
	if !ok {
		return "", common.ErrCredentialsNotFound
	}
	return secret, nil
}

func (s *memoryStore) Delete(key string) error {
	delete(s.secrets, key)
	return nil
}

func (s *memoryStore) Clear() error {
	s.secrets = map[string]string{}
	return nil
}

func TestManager_LoginPersistsSession(t *testing.T) {
	api := &fakeAPI{}
	store := newMemoryStore()
	manager := NewManager(api, store)

	if err := manager.Login(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatalf("Login() returned error: %v", err)
	}

	if !manager.Loaded() {
		t.Error("Loaded() = false after login")
	}
	if manager.Username() != "alice" {
		t.Errorf("Username() = %q, want alice", manager.Username())
	}
	if store.secrets[tokenKey] != "token-for-alice" {
		t.Errorf("persisted token = %q", store.secrets[tokenKey])
	}
	if manager.Tier() != 2 {
		t.Errorf("Tier() = %d, want 2", manager.Tier())
	}
	if store.secrets[tierKey] != "2" {
		t.Errorf("persisted tier = %q, want 2", store.secrets[tierKey])
	}
}

func TestManager_LoginFailureLeavesNoSession(t *testing.T) {
	api := &fakeAPI{loginErr: common.ErrNotLoggedIn}
	store := newMemoryStore()
	manager := NewManager(api, store)

	if err := manager.Login(context.Background(), "alice", "wrong"); err == nil {
		t.Fatal("Login() returned no error")
	}
	if manager.Loaded() {
		t.Error("Loaded() = true after failed login")
	}
	if _, ok := store.secrets[tokenKey]; ok {
		t.Error("failed login persisted a token")
	}
}

func TestManager_LogoutClearsLocalStateEvenOnRemoteFailure(t *testing.T) {
	api := &fakeAPI{logoutErr: common.ErrAPIUnreachable}
	store := newMemoryStore()
	manager := NewManager(api, store)

	if err := manager.Login(context.Background(), "alice", "hunter2"); err != nil {
		t.Fatal(err)
	}

	err := manager.Logout(context.Background())
	if !errors.Is(err, common.ErrAPIUnreachable) {
		t.Errorf("Logout() = %v, want ErrAPIUnreachable passed through", err)
	}
	if manager.Loaded() {
		t.Error("Loaded() = true after logout")
	}
	if _, ok := store.secrets[tokenKey]; ok {
		t.Error("token still persisted after logout")
	}
}

func TestManager_LogoutWithoutSession(t *testing.T) {
	manager := NewManager(&fakeAPI{}, newMemoryStore())

	if err := manager.Logout(context.Background()); !errors.Is(err, common.ErrNotLoggedIn) {
		t.Errorf("Logout() = %v, want ErrNotLoggedIn", err)
	}
}

func TestManager_Restore(t *testing.T) {
	store := newMemoryStore()
	store.secrets[tokenKey] = "persisted-token"
	store.secrets[usernameKey] = "alice"
	store.secrets[tierKey] = "1"

	api := &fakeAPI{}
	manager := NewManager(api, store)

	if err := manager.Restore(); err != nil {
		t.Fatalf("Restore() returned error: %v", err)
	}
	if api.Token() != "persisted-token" {
		t.Errorf("api token = %q, want persisted-token", api.Token())
	}
	if manager.Username() != "alice" {
		t.Errorf("Username() = %q, want alice", manager.Username())
	}
	if manager.Tier() != 1 {
		t.Errorf("Tier() = %d, want 1", manager.Tier())
	}
}

func TestManager_RestoreWithoutPersistedSession(t *testing.T) {
	manager := NewManager(&fakeAPI{}, newMemoryStore())

	if err := manager.Restore(); !errors.Is(err, common.ErrNotLoggedIn) {
		t.Errorf("Restore() = %v, want ErrNotLoggedIn", err)
	}
	if manager.Loaded() {
		t.Error("Loaded() = true without a persisted session")
	}
}
