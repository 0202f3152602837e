// Package keyring provides secure credential storage.
// It uses the system keyring when available, falling back to
// encrypted local file storage when not.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"github.com/yllada/vpn-client/common"
)

const (
	// serviceName is the identifier used in the system keyring.
	serviceName = "vpn-client"

	fallbackFileName = ".credentials"
	pbkdf2Iterations = 4096
	keyLength        = 32
)

// Store is a credential store backed by the system keyring, with an
// encrypted local file as fallback when no keyring service is running.
// It implements common.CredentialStore.
type Store struct {
	service string

	mu          sync.Mutex
	useFallback bool
	filePath    string
	key         []byte
	secrets     map[string]string
}

// NewStore creates a credential store. It probes the system keyring once
// and commits to the fallback file when the keyring is unavailable. An
// error means neither backend can store credentials.
func NewStore() (*Store, error) {
	s := &Store{service: serviceName}

	probeKey := s.service + "-probe"
	if err := keyring.Set(s.service, probeKey, "probe"); err == nil {
		_ = keyring.Delete(s.service, probeKey)
		return s, nil
	}

	common.LogWarn("System keyring unavailable, falling back to encrypted file storage.")
	if err := s.initFallback(); err != nil {
		return nil, common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return s, nil
}

// Store saves a secret under the given key.
func (s *Store) Store(key, secret string) error {
	if key == "" {
		return common.WrapError(common.ErrCredentialStorage, "key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useFallback {
		s.secrets[key] = secret
		return s.saveFallbackLocked()
	}

	if err := keyring.Set(s.service, key, secret); err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return nil
}

// Get retrieves the secret stored under the given key.
func (s *Store) Get(key string) (string, error) {
	if key == "" {
		return "", common.ErrCredentialsNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useFallback {
		secret, ok := s.secrets[key]
		if !ok {
			return "", common.ErrCredentialsNotFound
		}
		return secret, nil
	}

	secret, err := keyring.Get(s.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", common.ErrCredentialsNotFound
		}
		return "", common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return secret, nil
}

// Delete removes the secret stored under the given key. Deleting a
// missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useFallback {
		delete(s.secrets, key)
		return s.saveFallbackLocked()
	}

	if err := keyring.Delete(s.service, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return nil
}

// Clear removes all secrets stored by this application.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.useFallback {
		s.secrets = make(map[string]string)
		return s.saveFallbackLocked()
	}

	if err := keyring.DeleteAll(s.service); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return nil
}

func (s *Store) initFallback() error {
	configDir, err := common.GetConfigDir()
	if err != nil {
		return err
	}

	s.useFallback = true
	s.filePath = filepath.Join(configDir, fallbackFileName)
	s.key = deriveKey(s.service)
	s.secrets = make(map[string]string)
	s.loadFallback()
	return nil
}

// deriveKey derives the file encryption key from machine-specific data.
// The fallback file only resists casual inspection; a user's own machine
// holds everything needed to decrypt it.
func deriveKey(service string) []byte {
	hostname, _ := os.Hostname()
	secret := fmt.Sprintf("%s-%s-%s-%d", service, hostname, machineID(), os.Getuid())
	return pbkdf2.Key([]byte(secret), []byte(service), pbkdf2Iterations, keyLength, sha256.New)
}

func machineID() string {
	data, err := os.ReadFile("/etc/machine-id")
	if err != nil {
		return "default-machine-id"
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) loadFallback() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return
	}
	decrypted, err := decrypt(s.key, data)
	if err != nil {
		common.LogWarn("Could not decrypt stored credentials, starting fresh.")
		return
	}
	_ = json.Unmarshal(decrypted, &s.secrets)
}

func (s *Store) saveFallbackLocked() error {
	data, err := json.Marshal(s.secrets)
	if err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	encrypted, err := encrypt(s.key, data)
	if err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	if err := os.WriteFile(s.filePath, encrypted, 0600); err != nil {
		return common.WrapError(common.ErrCredentialStorage, err.Error())
	}
	return nil
}

func encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return []byte(base64.StdEncoding.EncodeToString(ciphertext)), nil
}

func decrypt(key, data []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
