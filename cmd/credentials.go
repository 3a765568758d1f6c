package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/otherjamesbrown/dupdetect/credentials"
	"github.com/otherjamesbrown/dupdetect/pkg/db"
)

// PasswordStore is the keyring surface used by the credentials command.
type PasswordStore interface {
	credentials.PasswordProvider
	SetPassword(account, password string) error
	DeletePassword(account string) error
}

// CredentialsCommandDeps holds the dependencies for credentials commands.
type CredentialsCommandDeps struct {
	Store        PasswordStore
	ReadPassword func(out io.Writer) (string, error)
}

// DefaultCredentialsDeps returns the default dependencies for production use.
func DefaultCredentialsDeps() *CredentialsCommandDeps {
	return &CredentialsCommandDeps{
		Store:        credentials.NewKeyringStore(),
		ReadPassword: promptPassword,
	}
}

// promptPassword reads a password without echo, falling back to a plain
// line read when stdin is not a terminal.
func promptPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Database password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

type credentialsTarget struct {
	user string
	host string
}

// account resolves the keyring account from flags, defaulting to DB_USER and DB_HOST.
func (t credentialsTarget) account() string {
	dbCfg := db.ConfigFromEnv()
	user, host := t.user, t.host
	if user == "" {
		user = dbCfg.User
	}
	if host == "" {
		host = dbCfg.Host
	}
	return credentials.Account(user, host)
}

// NewCredentialsCommand creates the credentials command.
func NewCredentialsCommand() *cobra.Command {
	return newCredentialsCommand(DefaultCredentialsDeps())
}

func newCredentialsCommand(deps *CredentialsCommandDeps) *cobra.Command {
	var target credentialsTarget

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the database password in the system keyring",
		Long: `Manage the database password stored in the system keyring.

When neither DATABASE_URL nor DB_PASSWORD is set, dupdetect reads the
password for DB_USER@DB_HOST from the keyring. Set DUPDETECT_DB_PASSWORD to
bypass the keyring on hosts without one.`,
		Aliases: []string{"creds"},
	}
	cmd.PersistentFlags().StringVar(&target.user, "user", "", "Database user (default: DB_USER)")
	cmd.PersistentFlags().StringVar(&target.host, "host", "", "Database host (default: DB_HOST)")

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the database password",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := deps.ReadPassword(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			account := target.account()
			if err := deps.Store.SetPassword(account, pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored password for %s in %s.\n", account, deps.Store.Description())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the stored database password",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := target.account()
			if err := deps.Store.DeletePassword(account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed password for %s.\n", account)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a database password is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := target.account()
			_, err := deps.Store.Password(account)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: stored in %s\n", account, deps.Store.Description())
			case errors.Is(err, credentials.ErrNoPassword):
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not stored\n", account)
			default:
				return err
			}
			return nil
		},
	})

	return cmd
}
