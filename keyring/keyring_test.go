package keyring

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"

	"github.com/yllada/vpn-client/common"
)

func newMockedStore(t *testing.T) *Store {
	t.Helper()
	keyring.MockInit()
	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore() returned error: %v", err)
	}
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	store := newMockedStore(t)

	if err := store.Store("session", "secret-token"); err != nil {
		t.Fatalf("Store() returned error: %v", err)
	}

	secret, err := store.Get("session")
	if err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if secret != "secret-token" {
		t.Errorf("Get() = %q, want %q", secret, "secret-token")
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := newMockedStore(t)

	if _, err := store.Get("nope"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get() = %v, want ErrCredentialsNotFound", err)
	}
	if _, err := store.Get(""); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get(\"\") = %v, want ErrCredentialsNotFound", err)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newMockedStore(t)

	if err := store.Store("session", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("session"); err != nil {
		t.Fatalf("Delete() returned error: %v", err)
	}
	if _, err := store.Get("session"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get() after Delete = %v, want ErrCredentialsNotFound", err)
	}

	// Deleting a missing key is fine.
	if err := store.Delete("session"); err != nil {
		t.Errorf("Delete() of missing key returned error: %v", err)
	}
}

func TestStore_Clear(t *testing.T) {
	store := newMockedStore(t)

	store.Store("session", "a")
	store.Store("username", "b")

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() returned error: %v", err)
	}
	if _, err := store.Get("session"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get(session) after Clear = %v, want ErrCredentialsNotFound", err)
	}
	if _, err := store.Get("username"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get(username) after Clear = %v, want ErrCredentialsNotFound", err)
	}
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	store := newMockedStore(t)

	if err := store.Store("", "secret"); !errors.Is(err, common.ErrCredentialStorage) {
		t.Errorf("Store(\"\") = %v, want ErrCredentialStorage", err)
	}
}

func newFallbackStore(t *testing.T) *Store {
	t.Helper()
	return &Store{
		service:     "vpn-client-test",
		useFallback: true,
		filePath:    filepath.Join(t.TempDir(), ".credentials"),
		key:         deriveKey("vpn-client-test"),
		secrets:     make(map[string]string),
	}
}

func TestFallbackStore_PersistsAcrossInstances(t *testing.T) {
	store := newFallbackStore(t)

	if err := store.Store("session", "fallback-secret"); err != nil {
		t.Fatalf("Store() returned error: %v", err)
	}

	reopened := &Store{
		service:     store.service,
		useFallback: true,
		filePath:    store.filePath,
		key:         store.key,
		secrets:     make(map[string]string),
	}
	reopened.loadFallback()

	secret, err := reopened.Get("session")
	if err != nil {
		t.Fatalf("Get() after reload returned error: %v", err)
	}
	if secret != "fallback-secret" {
		t.Errorf("Get() = %q, want %q", secret, "fallback-secret")
	}
}

func TestFallbackStore_WrongKeyCannotDecrypt(t *testing.T) {
	store := newFallbackStore(t)
	if err := store.Store("session", "secret"); err != nil {
		t.Fatal(err)
	}

	intruder := &Store{
		service:     store.service,
		useFallback: true,
		filePath:    store.filePath,
		key:         deriveKey("some-other-service"),
		secrets:     make(map[string]string),
	}
	intruder.loadFallback()

	if _, err := intruder.Get("session"); !errors.Is(err, common.ErrCredentialsNotFound) {
		t.Errorf("Get() with wrong key = %v, want ErrCredentialsNotFound", err)
	}
}

func TestEncryptDecrypt(t *testing.T) {
	key := deriveKey("roundtrip")
	plaintext := []byte(`{"user":"pass"}`)

	encrypted, err := encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt() returned error: %v", err)
	}
	if string(encrypted) == string(plaintext) {
		t.Fatal("encrypt() returned plaintext")
	}

	decrypted, err := decrypt(key, encrypted)
	if err != nil {
		t.Fatalf("decrypt() returned error: %v", err)
	}
	if string(decrypted) != string(plaintext) {
		t.Errorf("decrypt() = %q, want %q", decrypted, plaintext)
	}

	if _, err := decrypt(key, []byte("not base64 at all!!")); err == nil {
		t.Error("decrypt() of garbage returned no error")
	}
}
