package cmd

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/dupdetect/credentials"
)

type fakePasswordStore struct {
	passwords map[string]string
	err       error
}

func newFakePasswordStore() *fakePasswordStore {
	return &fakePasswordStore{passwords: make(map[string]string)}
}

func (s *fakePasswordStore) Password(account string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	pw, ok := s.passwords[account]
	if !ok {
		return "", credentials.ErrNoPassword
	}
	return pw, nil
}

func (s *fakePasswordStore) SetPassword(account, password string) error {
	if s.err != nil {
		return s.err
	}
	s.passwords[account] = password
	return nil
}

func (s *fakePasswordStore) DeletePassword(account string) error {
	delete(s.passwords, account)
	return s.err
}

func (s *fakePasswordStore) Description() string { return "fake keyring" }

func runCredentials(t *testing.T, deps *CredentialsCommandDeps, args ...string) (string, error) {
	t.Helper()
	cmd := newCredentialsCommand(deps)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCredentials_SetStatusDelete(t *testing.T) {
	store := newFakePasswordStore()
	deps := &CredentialsCommandDeps{
		Store:        store,
		ReadPassword: func(io.Writer) (string, error) { return "s3cret", nil },
	}

	out, err := runCredentials(t, deps, "set", "--user", "analyst", "--host", "db.internal")
	require.NoError(t, err)
	assert.Equal(t, "Stored password for db:analyst@db.internal in fake keyring.\n", out)
	assert.Equal(t, "s3cret", store.passwords["db:analyst@db.internal"])

	out, err = runCredentials(t, deps, "status", "--user", "analyst", "--host", "db.internal")
	require.NoError(t, err)
	assert.Equal(t, "db:analyst@db.internal: stored in fake keyring\n", out)

	out, err = runCredentials(t, deps, "delete", "--user", "analyst", "--host", "db.internal")
	require.NoError(t, err)
	assert.Equal(t, "Removed password for db:analyst@db.internal.\n", out)

	out, err = runCredentials(t, deps, "status", "--user", "analyst", "--host", "db.internal")
	require.NoError(t, err)
	assert.Equal(t, "db:analyst@db.internal: not stored\n", out)
}

func TestCredentials_AccountDefaultsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_USER", "etl")
	t.Setenv("DB_HOST", "pg.example.org")

	store := newFakePasswordStore()
	deps := &CredentialsCommandDeps{
		Store:        store,
		ReadPassword: func(io.Writer) (string, error) { return "pw", nil },
	}

	_, err := runCredentials(t, deps, "set")
	require.NoError(t, err)
	assert.Contains(t, store.passwords, "db:etl@pg.example.org")
}

func TestCredentials_Errors(t *testing.T) {
	deps := &CredentialsCommandDeps{
		Store:        newFakePasswordStore(),
		ReadPassword: func(io.Writer) (string, error) { return "", errors.New("reading password: EOF") },
	}
	_, err := runCredentials(t, deps, "set", "--user", "u", "--host", "h")
	assert.EqualError(t, err, "reading password: EOF")

	store := newFakePasswordStore()
	store.err = credentials.ErrKeyringUnavailable
	deps.Store = store
	_, err = runCredentials(t, deps, "status", "--user", "u", "--host", "h")
	assert.ErrorIs(t, err, credentials.ErrKeyringUnavailable)
}
