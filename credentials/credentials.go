// Package credentials stores the database password for dupdetect outside the
// config file.
//
// Password lookup order:
//  1. DUPDETECT_DB_PASSWORD environment variable (for CI/cron)
//  2. System keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
package credentials

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService is the service name used in the system keyring.
	keyringService = "dupdetect"

	// EnvPassword overrides the keyring.
	EnvPassword = "DUPDETECT_DB_PASSWORD"
)

var (
	// ErrNoPassword is returned when no password is stored for an account.
	ErrNoPassword = errors.New("no database password stored")
	// ErrKeyringUnavailable indicates the system keyring is not available.
	ErrKeyringUnavailable = errors.New("system keyring unavailable")
)

// PasswordProvider looks up database passwords.
type PasswordProvider interface {
	// Password returns the password for account, or ErrNoPassword.
	Password(account string) (string, error)

	// Description returns a human-readable description of the storage mechanism.
	Description() string
}

// Account returns the keyring account name for a database user and host.
func Account(user, host string) string {
	return fmt.Sprintf("db:%s@%s", user, host)
}

// KeyringStore keeps passwords in the system keyring.
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore creates a new KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

// Password retrieves the password for account from the keyring.
func (s *KeyringStore) Password(account string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pw, err := keyring.Get(keyringService, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w for %s", ErrNoPassword, account)
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return pw, nil
}

// SetPassword stores the password for account, replacing any existing one.
func (s *KeyringStore) SetPassword(account, password string) error {
	if password == "" {
		return errors.New("password is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(keyringService, account, password); err != nil {
		return fmt.Errorf("%w: storing password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// DeletePassword removes the password for account. Deleting a missing
// password is not an error.
func (s *KeyringStore) DeletePassword(account string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(keyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: deleting password: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description returns a description of this store.
func (s *KeyringStore) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// EnvProvider reads the password from an environment variable for every account.
type EnvProvider struct {
	envVar string
}

// NewEnvProvider creates an EnvProvider reading envVar.
func NewEnvProvider(envVar string) *EnvProvider {
	return &EnvProvider{envVar: envVar}
}

// Password returns the environment variable's value.
func (p *EnvProvider) Password(string) (string, error) {
	pw := os.Getenv(p.envVar)
	if pw == "" {
		return "", fmt.Errorf("%w: environment variable %s not set", ErrNoPassword, p.envVar)
	}
	return pw, nil
}

// Description returns a description of this provider.
func (p *EnvProvider) Description() string {
	return fmt.Sprintf("Environment variable (%s)", p.envVar)
}

// DefaultProvider returns the environment provider when DUPDETECT_DB_PASSWORD
// is set, and the system keyring otherwise.
func DefaultProvider() PasswordProvider {
	if os.Getenv(EnvPassword) != "" {
		return NewEnvProvider(EnvPassword)
	}
	return NewKeyringStore()
}

// Lookup returns the stored password for user@host. A missing password
// returns "" with no error so that trust or peer authentication still works.
func Lookup(p PasswordProvider, user, host string) (string, error) {
	pw, err := p.Password(Account(user, host))
	if errors.Is(err, ErrNoPassword) {
		return "", nil
	}
	return pw, err
}
