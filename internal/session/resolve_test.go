package session

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolvePrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvSession, "")

	if got := Resolve(""); got != DefaultSessionName {
		t.Errorf("no overrides: got %q, want %q", got, DefaultSessionName)
	}

	if err := os.MkdirAll(filepath.Dir(ConfigPath()), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ConfigPath(), []byte("default_session = \"fromconfig\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "fromconfig" {
		t.Errorf("config: got %q, want fromconfig", got)
	}

	t.Setenv(EnvSession, "fromenv")
	if got := Resolve(""); got != "fromenv" {
		t.Errorf("env: got %q, want fromenv", got)
	}
	if got := Resolve("fromflag"); got != "fromflag" {
		t.Errorf("flag: got %q, want fromflag", got)
	}
}
