package testsupport

import (
	"path/filepath"
	"testing"

	"bookclub/internal/config"
)

// ConfigOption adjusts a test configuration after defaults are applied.
type ConfigOption func(*config.Config)

// NewConfig returns defaults rooted in a fresh temp directory, with an
// ephemeral API port, no env file and no CORS origins.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.EnvFile = ""
	cfg.API.CORSAllowedOrigins = nil
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) { c.Paths.APIToken = token }
}

func WithMaxMembers(n int) ConfigOption {
	return func(c *config.Config) { c.Groups.MaxMembers = n }
}

func WithProgressMembership(required bool) ConfigOption {
	return func(c *config.Config) { c.Interaction.RequireMembershipForProgress = required }
}

// WithNtfy points notifications at baseURL, usually an httptest server.
func WithNtfy(baseURL, topic string) ConfigOption {
	return func(c *config.Config) {
		c.Notifications.BaseURL = baseURL
		c.Notifications.NtfyTopic = topic
	}
}
