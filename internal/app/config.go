package app

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/corvidchat/authkit/pkg/authz"
)

// Config is the environment-driven configuration for the authkit client.
type Config struct {
	// ProviderURL is the identity provider base, e.g.
	// https://id.example.com. Required.
	ProviderURL string `env:"AUTHKIT_PROVIDER_URL"`

	// Realm selects the provider realm the endpoints are derived from.
	Realm string `env:"AUTHKIT_REALM" envDefault:"corvid"`

	ClientID     string   `env:"AUTHKIT_CLIENT_ID" envDefault:"corvid-desktop"`
	ClientSecret string   `env:"AUTHKIT_CLIENT_SECRET"`
	Scopes       []string `env:"AUTHKIT_SCOPES" envSeparator:" " envDefault:"openid profile email"`
	RedirectURL  string   `env:"AUTHKIT_REDIRECT_URL" envDefault:"corvid://oauth/callback"`

	RequiredRoles  []string `env:"AUTHKIT_REQUIRED_ROLES" envSeparator:" "`
	RequiredGroups []string `env:"AUTHKIT_REQUIRED_GROUPS" envSeparator:" "`

	// FeatureMapJSON maps roles to feature names, e.g.
	// {"signal_user":["messaging","calls"]}. Empty means no features.
	FeatureMapJSON string `env:"AUTHKIT_FEATURE_MAP"`

	// StoreBackend selects where the session keyring lives: "file"
	// (encrypted flat file), "sqlite", or "memory".
	StoreBackend    string `env:"AUTHKIT_STORE_BACKEND" envDefault:"file"`
	StoreFile       string `env:"AUTHKIT_STORE_FILE" envDefault:"authkit.keyring"`
	StoreDatabase   string `env:"AUTHKIT_STORE_DATABASE" envDefault:"authkit.db"`
	StorePassphrase string `env:"AUTHKIT_STORE_PASSPHRASE"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadConfig parses the environment into a Config and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be defaulted.
func (c Config) Validate() error {
	if c.ProviderURL == "" {
		return fmt.Errorf("AUTHKIT_PROVIDER_URL is required")
	}
	u, err := url.Parse(c.ProviderURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("AUTHKIT_PROVIDER_URL must be an absolute URL")
	}
	if c.Realm == "" {
		return fmt.Errorf("AUTHKIT_REALM must not be empty")
	}
	switch c.StoreBackend {
	case "file", "sqlite", "memory":
	default:
		return fmt.Errorf("AUTHKIT_STORE_BACKEND must be file, sqlite, or memory (got %q)", c.StoreBackend)
	}
	if c.StoreBackend == "file" && c.StorePassphrase == "" {
		return fmt.Errorf("AUTHKIT_STORE_PASSPHRASE is required with the file backend")
	}
	if _, err := c.FeatureMap(); err != nil {
		return err
	}
	return nil
}

// realmURL derives a realm-scoped OpenID-Connect endpoint from the provider
// base.
func (c Config) realmURL(suffix string) string {
	base := strings.TrimRight(c.ProviderURL, "/")
	return base + "/realms/" + url.PathEscape(c.Realm) + "/protocol/openid-connect/" + suffix
}

// AuthorizationEndpoint is the realm's authorization endpoint.
func (c Config) AuthorizationEndpoint() string { return c.realmURL("auth") }

// TokenEndpoint is the realm's token endpoint.
func (c Config) TokenEndpoint() string { return c.realmURL("token") }

// UserInfoEndpoint is the realm's userinfo endpoint.
func (c Config) UserInfoEndpoint() string { return c.realmURL("userinfo") }

// FeatureMap decodes the configured role→features mapping.
func (c Config) FeatureMap() (authz.FeatureMap, error) {
	if c.FeatureMapJSON == "" {
		return authz.FeatureMap{}, nil
	}

	var fm authz.FeatureMap
	if err := json.Unmarshal([]byte(c.FeatureMapJSON), &fm); err != nil {
		return nil, fmt.Errorf("AUTHKIT_FEATURE_MAP is not valid JSON: %w", err)
	}
	return fm, nil
}
