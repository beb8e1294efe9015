package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCfg() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", BaseURL: "http://localhost:8080", SessionTTL: time.Hour},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "enty.db"},
		Model:    ModelConfig{LinkageMode: LinkageBoth, TemporalScoping: true},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, DefaultSessionTTL, cfg.Server.SessionTTL)
	assert.Equal(t, LinkageBoth, cfg.Model.LinkageMode)
	assert.True(t, cfg.Model.TemporalScoping)
	assert.False(t, cfg.OIDC.Enabled())
	assert.Equal(t, []string{"openid", "email", "profile"}, cfg.OIDC.Scopes())
}

func TestLoadFileThenEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "enty.yaml")
	body := `
database:
  driver: postgres
  dsn: postgres://enty@localhost/enty
model:
  linkage_mode: relation
  temporal_scoping: false
server:
  session_ttl: 30m
oidc:
  metadata_url: https://idp.example/.well-known/openid-configuration
  client_id: from-file
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("OIDC_CLIENT_ID", "from-env")
	t.Setenv("ENTY_SERVER_ADDR", ":9090")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, LinkageRelation, cfg.Model.LinkageMode)
	assert.False(t, cfg.Model.TemporalScoping)
	assert.Equal(t, 30*time.Minute, cfg.Server.SessionTTL)
	assert.Equal(t, "from-env", cfg.OIDC.ClientID)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.OIDC.Enabled())
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsUnknownLinkageMode(t *testing.T) {
	cfg := validCfg()
	cfg.Model.LinkageMode = "graph"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "linkage_mode")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := validCfg()
	cfg.Database.Driver = "mysql"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}

func TestValidateRequiresClientIDWithProvider(t *testing.T) {
	cfg := validCfg()
	cfg.OIDC.MetadataURL = "https://idp.example/.well-known/openid-configuration"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oidc.client_id")
}

func TestOIDCStringMasksSecret(t *testing.T) {
	c := OIDCConfig{ClientID: "app", ClientSecret: "supersecretvalue"}
	assert.NotContains(t, c.String(), "supersecretvalue")
	assert.Contains(t, c.String(), "supe****alue")
}

func TestRedirectURL(t *testing.T) {
	cfg := validCfg()
	cfg.Server.BaseURL = "https://enty.example/"
	assert.Equal(t, "https://enty.example/auth/callback", cfg.RedirectURL())
}
