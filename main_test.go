package main

import (
	"testing"
)

func TestRootCommand_Subcommands(t *testing.T) {
	want := []string{"detect", "pairs", "runs", "db", "credentials", "config", "version"}

	for _, name := range want {
		sub, _, err := rootCmd.Find([]string{name})
		if err != nil {
			t.Errorf("subcommand %q not found: %v", name, err)
			continue
		}
		if sub.Name() != name {
			t.Errorf("Find(%q) returned %q", name, sub.Name())
		}
	}
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"timeout", "output", "debug", "log-level", "log-format"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("--%s flag not found on root command", name)
		}
	}

	if f := rootCmd.PersistentFlags().ShorthandLookup("o"); f == nil || f.Name != "output" {
		t.Error("-o should be shorthand for --output")
	}
}

func TestRootCommand_Silences(t *testing.T) {
	if !rootCmd.SilenceUsage || !rootCmd.SilenceErrors {
		t.Error("root command should silence usage and errors; main prints them")
	}
}

func TestRootCommand_Aliases(t *testing.T) {
	tests := []struct {
		alias string
		want  string
	}{
		{"duplicates", "pairs"},
		{"creds", "credentials"},
		{"migrations", "db"},
	}

	for _, tt := range tests {
		sub, _, err := rootCmd.Find([]string{tt.alias})
		if err != nil {
			t.Errorf("alias %q not found: %v", tt.alias, err)
			continue
		}
		if sub.Name() != tt.want {
			t.Errorf("alias %q resolved to %q, want %q", tt.alias, sub.Name(), tt.want)
		}
	}
}
