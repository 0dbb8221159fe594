package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spiffcs/gqlc/internal/constants"
	"github.com/spiffcs/gqlc/internal/duration"
	"github.com/spiffcs/gqlc/internal/store"
)

// Config represents the application configuration
type Config struct {
	Endpoint             string            `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SubscriptionEndpoint string            `yaml:"subscription_endpoint,omitempty" json:"subscription_endpoint,omitempty"`
	Headers              map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Timeout              string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Output               string            `yaml:"output,omitempty" json:"output,omitempty"`

	Cache *CacheConfig `yaml:"cache,omitempty" json:"cache,omitempty"`
	Auth  *AuthConfig  `yaml:"auth,omitempty" json:"auth,omitempty"`
}

// CacheConfig selects the response store
type CacheConfig struct {
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`
	Dir     string `yaml:"dir,omitempty" json:"dir,omitempty"`
	TTL     string `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// AuthConfig says where bearer tokens come from. Secrets are never stored in
// the file, only the names of the environment variables holding them.
type AuthConfig struct {
	TokenEnv string        `yaml:"token_env,omitempty" json:"token_env,omitempty"`
	OAuth2   *OAuth2Config `yaml:"oauth2,omitempty" json:"oauth2,omitempty"`
}

// OAuth2Config enables the client-credentials flow
type OAuth2Config struct {
	ClientID        string   `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecretEnv string   `yaml:"client_secret_env,omitempty" json:"client_secret_env,omitempty"`
	TokenURL        string   `yaml:"token_url,omitempty" json:"token_url,omitempty"`
	Scopes          []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}

// Output formats
const (
	OutputJSON = "json"
	OutputRaw  = "raw"
	OutputYAML = "yaml"
)

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".gqlc"
	}
	return filepath.Join(configDir, "gqlc")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".gqlc.yaml"
}

// Load loads the configuration from disk.
// It first loads the global config from XDG config directory, then merges
// any local .gqlc.yaml config on top (local values take precedence).
func Load() (*Config, error) {
	cfg := &Config{}

	global, err := readFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}
	if global != nil {
		cfg = global
	}

	local, err := readFile(LocalConfigPath())
	if err != nil {
		return nil, fmt.Errorf("local config: %w", err)
	}
	if local != nil {
		cfg = mergeConfig(cfg, local)
	}

	if cfg.Output == "" {
		cfg.Output = OutputJSON
	}
	return cfg, nil
}

// LoadGlobal loads only the global config file, the one Save writes.
func LoadGlobal() (*Config, error) {
	cfg, err := readFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("global config: %w", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg, nil
}

// readFile returns nil when path does not exist.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeConfig merges local config on top of global config.
// Local values take precedence; unset local values preserve global values.
func mergeConfig(global, local *Config) *Config {
	result := &Config{
		Endpoint:             pick(local.Endpoint, global.Endpoint),
		SubscriptionEndpoint: pick(local.SubscriptionEndpoint, global.SubscriptionEndpoint),
		Timeout:              pick(local.Timeout, global.Timeout),
		Output:               pick(local.Output, global.Output),
	}

	// Headers merge per key
	if len(global.Headers)+len(local.Headers) > 0 {
		result.Headers = make(map[string]string, len(global.Headers)+len(local.Headers))
		for k, v := range global.Headers {
			result.Headers[k] = v
		}
		for k, v := range local.Headers {
			result.Headers[k] = v
		}
	}

	result.Cache = mergeCache(global.Cache, local.Cache)
	result.Auth = mergeAuth(global.Auth, local.Auth)

	return result
}

func mergeCache(global, local *CacheConfig) *CacheConfig {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &CacheConfig{}
	}
	if local == nil {
		local = &CacheConfig{}
	}
	return &CacheConfig{
		Backend: pick(local.Backend, global.Backend),
		Dir:     pick(local.Dir, global.Dir),
		TTL:     pick(local.TTL, global.TTL),
	}
}

func mergeAuth(global, local *AuthConfig) *AuthConfig {
	if global == nil && local == nil {
		return nil
	}
	if global == nil {
		global = &AuthConfig{}
	}
	if local == nil {
		local = &AuthConfig{}
	}

	result := &AuthConfig{TokenEnv: pick(local.TokenEnv, global.TokenEnv)}

	// The OAuth2 block is taken whole; mixing client IDs and token URLs from
	// two files never makes sense.
	if local.OAuth2 != nil {
		result.OAuth2 = local.OAuth2
	} else {
		result.OAuth2 = global.OAuth2
	}
	return result
}

func pick(local, global string) string {
	if local != "" {
		return local
	}
	return global
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return SaveTo(ConfigPath(), string(data))
}

// Validate checks the values Load cannot check while parsing.
func (c *Config) Validate() error {
	if _, err := c.GetTimeout(); err != nil {
		return err
	}
	if _, err := c.GetCacheTTL(); err != nil {
		return err
	}
	switch c.Output {
	case "", OutputJSON, OutputRaw, OutputYAML:
	default:
		return fmt.Errorf("invalid output format %q (use json, raw or yaml)", c.Output)
	}
	switch c.GetCacheBackend() {
	case store.BackendMemory, store.BackendFile, store.BackendBadger:
	default:
		return fmt.Errorf("invalid cache backend %q (use memory, file or badger)", c.GetCacheBackend())
	}
	return nil
}

// GetTimeout returns the HTTP timeout, defaulting to constants.DefaultTimeout.
func (c *Config) GetTimeout() (time.Duration, error) {
	d, err := duration.ParseOr(c.Timeout, constants.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout: %w", err)
	}
	return d, nil
}

// GetCacheBackend returns the configured store backend, "memory" by default.
func (c *Config) GetCacheBackend() string {
	if c.Cache != nil && c.Cache.Backend != "" {
		return c.Cache.Backend
	}
	return store.BackendMemory
}

// GetCacheDir returns the configured store directory, empty for the backend default.
func (c *Config) GetCacheDir() string {
	if c.Cache == nil {
		return ""
	}
	return c.Cache.Dir
}

// GetCacheTTL returns the persisted entry lifetime.
func (c *Config) GetCacheTTL() (time.Duration, error) {
	var ttl string
	if c.Cache != nil {
		ttl = c.Cache.TTL
	}
	d, err := duration.ParseOr(ttl, constants.DefaultCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl: %w", err)
	}
	return d, nil
}

// GetTokenEnv returns the name of the environment variable holding the bearer token.
func (c *Config) GetTokenEnv() string {
	if c.Auth != nil && c.Auth.TokenEnv != "" {
		return c.Auth.TokenEnv
	}
	return constants.DefaultTokenEnv
}

// GetOAuth2 returns the client-credentials settings, or nil when not configured.
func (c *Config) GetOAuth2() *OAuth2Config {
	if c.Auth == nil {
		return nil
	}
	return c.Auth.OAuth2
}

// GetClientSecret reads the OAuth2 client secret from the environment.
func (o *OAuth2Config) GetClientSecret() string {
	if o.ClientSecretEnv == "" {
		return ""
	}
	return os.Getenv(o.ClientSecretEnv)
}

// HTTPHeaders returns the configured extra headers.
func (c *Config) HTTPHeaders() http.Header {
	h := make(http.Header, len(c.Headers))
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	return h
}

// Set assigns a single value addressed by its YAML path, e.g. "cache.backend".
func (c *Config) Set(key, value string) error {
	switch strings.ToLower(key) {
	case "endpoint":
		c.Endpoint = value
	case "subscription_endpoint":
		c.SubscriptionEndpoint = value
	case "timeout":
		c.Timeout = value
	case "output":
		c.Output = value
	case "cache.backend":
		c.cache().Backend = value
	case "cache.dir":
		c.cache().Dir = value
	case "cache.ttl":
		c.cache().TTL = value
	case "auth.token_env":
		c.auth().TokenEnv = value
	case "auth.oauth2.client_id":
		c.oauth2().ClientID = value
	case "auth.oauth2.client_secret_env":
		c.oauth2().ClientSecretEnv = value
	case "auth.oauth2.token_url":
		c.oauth2().TokenURL = value
	case "auth.oauth2.scopes":
		c.oauth2().Scopes = splitList(value)
	default:
		if name, ok := strings.CutPrefix(key, "headers."); ok && name != "" {
			if c.Headers == nil {
				c.Headers = make(map[string]string)
			}
			c.Headers[name] = value
			return nil
		}
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}

func (c *Config) cache() *CacheConfig {
	if c.Cache == nil {
		c.Cache = &CacheConfig{}
	}
	return c.Cache
}

func (c *Config) auth() *AuthConfig {
	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	return c.Auth
}

func (c *Config) oauth2() *OAuth2Config {
	a := c.auth()
	if a.OAuth2 == nil {
		a.OAuth2 = &OAuth2Config{}
	}
	return a.OAuth2
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultConfig returns a fully populated config with all default values.
// This is useful for generating a complete config file template.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8080/graphql",
		Timeout:  constants.DefaultTimeout.String(),
		Output:   OutputJSON,
		Cache: &CacheConfig{
			Backend: store.BackendMemory,
			TTL:     constants.DefaultCacheTTL.String(),
		},
		Auth: &AuthConfig{
			TokenEnv: constants.DefaultTokenEnv,
		},
	}
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	// Get absolute path for local config
	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# gqlc configuration file
# See: gqlc config show --defaults  (for all available options)

# GraphQL endpoint
endpoint: http://localhost:8080/graphql

# Output format: json, raw or yaml
output: json

# Bearer token is read from this environment variable
# auth:
#   token_env: GQLC_TOKEN

# Persist responses between runs (memory, file or badger)
# cache:
#   backend: file
#   ttl: 24h

# Extra request headers (optional)
# headers:
#   X-Client-Name: gqlc
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}
