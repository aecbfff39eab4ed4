package session

import (
	"os"

	"github.com/matheus3301/tabsync/internal/config"
)

const DefaultSessionName = "main"

// EnvSession names the environment variable that selects a session.
const EnvSession = "TABSYNC_SESSION"

// Resolve determines the active session name using precedence:
// 1. flagOverride (--session flag)
// 2. $TABSYNC_SESSION
// 3. config.toml default_session
// 4. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if env := os.Getenv(EnvSession); env != "" {
		return env
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
