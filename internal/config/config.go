package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	LinkageAttribute = "attribute"
	LinkageRelation  = "relation"
	LinkageBoth      = "both"

	// DefaultSessionTTL is how long a browser session issued after OIDC login stays valid.
	DefaultSessionTTL = 12 * time.Hour
)

// Config holds all configuration for the enty server.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OIDC      OIDCConfig      `mapstructure:"oidc"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Model     ModelConfig     `mapstructure:"model"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds listener settings for the HTTP API and the JSON-RPC socket.
type ServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	RPCSocket    string        `mapstructure:"rpc_socket"`
	BaseURL      string        `mapstructure:"base_url"`
	SessionTTL   time.Duration `mapstructure:"session_ttl"`
	CookieSecure bool          `mapstructure:"cookie_secure"`
}

// DatabaseConfig selects the storage driver. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// OIDCConfig holds the external identity provider settings. An empty
// MetadataURL disables browser login.
type OIDCConfig struct {
	MetadataURL  string `mapstructure:"metadata_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Scope        string `mapstructure:"scope"`
	ProviderName string `mapstructure:"provider_name"`
}

// Enabled reports whether browser login through the provider is configured.
func (c OIDCConfig) Enabled() bool {
	return strings.TrimSpace(c.MetadataURL) != ""
}

// Scopes splits the space separated scope setting.
func (c OIDCConfig) Scopes() []string {
	return strings.Fields(c.Scope)
}

// String returns a safe representation with the client secret masked.
func (c OIDCConfig) String() string {
	return fmt.Sprintf("OIDCConfig{MetadataURL:%s, ClientID:%s, ClientSecret:%s, Scope:%s, ProviderName:%s}",
		c.MetadataURL, c.ClientID, maskSecret(c.ClientSecret), c.Scope, c.ProviderName)
}

func maskSecret(s string) string {
	const visible = 4
	if len(s) <= visible*2 {
		return "***"
	}
	return s[:visible] + "****" + s[len(s)-visible:]
}

// BootstrapConfig holds the break-glass administrator created on an empty database.
type BootstrapConfig struct {
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`
}

// ModelConfig chooses how entity references are modeled and whether reads
// are scoped to an as-of date.
type ModelConfig struct {
	LinkageMode     string `mapstructure:"linkage_mode"`
	TemporalScoping bool   `mapstructure:"temporal_scoping"`
}

type LoggingConfig struct {
	Mode string `mapstructure:"mode"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. When configFile is empty, enty.yaml is looked up in
// ~/.enty and the working directory.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rpc_socket", "/tmp/enty.sock")
	v.SetDefault("server.base_url", "http://127.0.0.1:8080")
	v.SetDefault("server.session_ttl", DefaultSessionTTL)
	v.SetDefault("server.cookie_secure", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "enty.db")

	v.SetDefault("oidc.metadata_url", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.scope", "openid email profile")
	v.SetDefault("oidc.provider_name", "OpenID Connect")

	v.SetDefault("bootstrap.admin_email", "admin@enty.local")
	v.SetDefault("bootstrap.admin_password", "admin")

	v.SetDefault("model.linkage_mode", LinkageBoth)
	v.SetDefault("model.temporal_scoping", true)

	v.SetDefault("logging.mode", "development")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("enty")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".enty"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ENTY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider settings keep their conventional unprefixed names.
	_ = v.BindEnv("oidc.metadata_url", "ENTY_OIDC_METADATA_URL", "OIDC_METADATA_URL")
	_ = v.BindEnv("oidc.client_id", "ENTY_OIDC_CLIENT_ID", "OIDC_CLIENT_ID")
	_ = v.BindEnv("oidc.client_secret", "ENTY_OIDC_CLIENT_SECRET", "OIDC_CLIENT_SECRET")
	_ = v.BindEnv("oidc.scope", "ENTY_OIDC_SCOPE", "OIDC_SCOPE")
	_ = v.BindEnv("oidc.provider_name", "ENTY_OIDC_PROVIDER_NAME", "OIDC_PROVIDER_NAME")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be greater than 0")
	}
	switch c.Model.LinkageMode {
	case LinkageAttribute, LinkageRelation, LinkageBoth:
	default:
		return fmt.Errorf("model.linkage_mode must be one of attribute, relation, both, got %q", c.Model.LinkageMode)
	}
	if c.OIDC.Enabled() {
		if strings.TrimSpace(c.OIDC.ClientID) == "" {
			return fmt.Errorf("oidc.client_id must be set when oidc.metadata_url is set")
		}
		if strings.TrimSpace(c.Server.BaseURL) == "" {
			return fmt.Errorf("server.base_url must be set when oidc.metadata_url is set")
		}
	}
	return nil
}

// RedirectURL is the callback the identity provider returns the browser to.
func (c *Config) RedirectURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/auth/callback"
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
