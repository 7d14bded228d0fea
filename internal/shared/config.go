package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Encoding is the request body encoding a provider's import endpoint accepts.
type Encoding string

const (
	EncodingURLEncoded Encoding = "urlencoded"
	EncodingMultipart  Encoding = "multipart"
)

// TransportKind selects the push channel used for progress events.
type TransportKind string

const (
	TransportSSE       TransportKind = "sse"
	TransportWebSocket TransportKind = "websocket"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server    ServerConfig              `toml:"server"`
	Database  DatabaseConfig            `toml:"database"`
	Log       LogConfig                 `toml:"log"`
	Providers map[string]ProviderConfig `toml:"providers"`
}

// ServerConfig points at the web service that runs imports.
type ServerConfig struct {
	BaseURL       string `toml:"base_url"`
	SessionCookie string `toml:"session_cookie"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig controls the default log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// ProviderConfig describes one listening-history source: where to submit, where to subscribe and
// which vocabulary the progress panel uses.
type ProviderConfig struct {
	Name                  string        `toml:"-"`
	Endpoint              string        `toml:"endpoint"`
	SubscriptionURLPrefix string        `toml:"subscription_url_prefix"`
	DisplayName           string        `toml:"display_name"`
	UnitLabel             string        `toml:"unit_label"`
	Encoding              Encoding      `toml:"encoding"`
	Transport             TransportKind `toml:"transport"`
	PanelPrefix           string        `toml:"panel_prefix"`
	UploadField           string        `toml:"upload_field"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ProviderNames returns the configured provider names in sorted order.
func (c *Config) ProviderNames() []string {
	names := make([]string, 0, len(c.Providers))
	for name := range c.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the validated configuration for the named provider.
//
// Encoding must be declared explicitly. Transport defaults to SSE, and the display name and panel
// prefix default to the provider name.
func (c *Config) Provider(name string) (ProviderConfig, error) {
	p, ok := c.Providers[name]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownProvider, name, strings.Join(c.ProviderNames(), ", "))
	}
	p.Name = name

	if p.Endpoint == "" {
		return ProviderConfig{}, fmt.Errorf("%w: providers.%s.endpoint is empty", ErrInvalidConfig, name)
	}
	if p.SubscriptionURLPrefix == "" {
		return ProviderConfig{}, fmt.Errorf("%w: providers.%s.subscription_url_prefix is empty", ErrInvalidConfig, name)
	}

	switch p.Encoding {
	case EncodingURLEncoded, EncodingMultipart:
	case "":
		return ProviderConfig{}, fmt.Errorf("%w: providers.%s.encoding must be declared", ErrInvalidConfig, name)
	default:
		return ProviderConfig{}, fmt.Errorf("%w: %q for provider %s", ErrUnknownEncoding, p.Encoding, name)
	}

	switch p.Transport {
	case "":
		p.Transport = TransportSSE
	case TransportSSE, TransportWebSocket:
	default:
		return ProviderConfig{}, fmt.Errorf("%w: %q for provider %s", ErrUnknownTransport, p.Transport, name)
	}

	if p.DisplayName == "" {
		p.DisplayName = name
	}
	if p.UnitLabel == "" {
		p.UnitLabel = "page"
	}
	if p.PanelPrefix == "" {
		p.PanelPrefix = name
	}
	if p.UploadField == "" {
		p.UploadField = "files"
	}

	return p, nil
}

// EndpointURL resolves the submission endpoint against base.
func (p ProviderConfig) EndpointURL(base string) (string, error) {
	return resolveURL(base, p.Endpoint)
}

// SubscriptionURL builds the push channel URL for jobID by appending the escaped identifier to the
// configured prefix and resolving the result against base.
func (p ProviderConfig) SubscriptionURL(base, jobID string) (string, error) {
	if jobID == "" {
		return "", fmt.Errorf("%w: empty job id", ErrInvalidArgument)
	}
	return resolveURL(base, p.SubscriptionURLPrefix+url.QueryEscape(jobID))
}

func resolveURL(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if refURL.IsAbs() {
		return refURL.String(), nil
	}
	if base == "" {
		return "", fmt.Errorf("%w: relative URL %q needs server.base_url", ErrInvalidConfig, ref)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
