// Package config loads the service configuration from config.yaml and EUROFEEDS_* variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/eurofeeds/pkg/filesystem"
	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
)

// DefaultPath is the configuration file looked up when none is given
const DefaultPath = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. EUROFEEDS_SERVER_ADDR
const EnvPrefix = "EUROFEEDS"

// Config holds the central application configuration
type Config struct {
	Server struct {
		Addr    string `mapstructure:"addr"`     // Listen address
		BaseURL string `mapstructure:"base_url"` // Public URL used for self links
	} `mapstructure:"server"`

	Cache struct {
		Expiry        time.Duration `mapstructure:"expiry"`
		CacheFallback bool          `mapstructure:"cache_fallback"` // Also cache placeholder feeds
	} `mapstructure:"cache"`

	Fetch struct {
		Timeout      time.Duration `mapstructure:"timeout"`
		MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
		MaxRedirects int           `mapstructure:"max_redirects"`
		HostInterval time.Duration `mapstructure:"host_interval"` // Minimum spacing between requests to one host
		UserAgent    string        `mapstructure:"user_agent"`
		BrowserHosts []string      `mapstructure:"browser_hosts"` // Hosts fetched with browser-like headers
	} `mapstructure:"fetch"`

	Sites struct {
		Path string `mapstructure:"path"` // Local site definitions replacing the built-in set
		URL  string `mapstructure:"url"`  // Remote site definitions, tried before Path
	} `mapstructure:"sites"`

	Feed struct {
		Generator string `mapstructure:"generator"`
		Language  string `mapstructure:"language"`
		Creator   string `mapstructure:"creator"`
		// TemplateDir holds an optional rss.tmpl replacing the embedded one
		TemplateDir string `mapstructure:"template_dir"`
	} `mapstructure:"feed"`
}

func setDefaults(v *viper.Viper) {
	client := httputil.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("cache.expiry", 30*time.Minute)
	v.SetDefault("cache.cache_fallback", false)

	v.SetDefault("fetch.timeout", client.Timeout)
	v.SetDefault("fetch.max_body_bytes", client.MaxBodySize)
	v.SetDefault("fetch.max_redirects", client.MaxRedirects)
	v.SetDefault("fetch.host_interval", client.HostInterval)
	v.SetDefault("fetch.user_agent", httputil.GenericUserAgent)
	v.SetDefault("fetch.browser_hosts", client.BrowserHosts)

	v.SetDefault("sites.path", "")
	v.SetDefault("sites.url", "")

	v.SetDefault("feed.generator", "European RSS Generator")
	v.SetDefault("feed.language", "en-us")
	v.SetDefault("feed.creator", "RSS Generator")
	v.SetDefault("feed.template_dir", "templates")
}

// LoadConfig loads the configuration from a file. An empty path looks for
// config.yaml in the working directory, then next to the executable; a missing
// default file is not an error and leaves the defaults in place.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolved, found := filesystem.ResolvePath(path)
	switch {
	case found:
		v.SetConfigFile(resolved)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("Loaded config file", "path", resolved)
	case explicit:
		return nil, fmt.Errorf("error reading config file: %s does not exist", path)
	default:
		slog.Debug("No config file found, using defaults", "path", path)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects values the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.Cache.Expiry <= 0 {
		errs = append(errs, fmt.Errorf("cache.expiry must be positive, got %s", c.Cache.Expiry))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_body_bytes must be positive, got %d", c.Fetch.MaxBodyBytes))
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_redirects must not be negative, got %d", c.Fetch.MaxRedirects))
	}
	if c.Fetch.HostInterval < 0 {
		errs = append(errs, fmt.Errorf("fetch.host_interval must not be negative, got %s", c.Fetch.HostInterval))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ClientConfig returns the outbound HTTP client settings
func (c *Config) ClientConfig() *httputil.ClientConfig {
	cc := httputil.DefaultConfig()
	cc.Timeout = c.Fetch.Timeout
	cc.MaxBodySize = c.Fetch.MaxBodyBytes
	cc.MaxRedirects = c.Fetch.MaxRedirects
	cc.HostInterval = c.Fetch.HostInterval
	cc.UserAgent = c.Fetch.UserAgent
	cc.BrowserHosts = c.Fetch.BrowserHosts
	return cc
}

// SelfURL returns the public URL of the feed with the given key
func (c *Config) SelfURL(key string) string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/" + key
}
