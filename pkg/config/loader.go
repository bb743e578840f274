// Package config loads YAML or JSON documents from a remote URL, a local file or an embedded default.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
)

// Source tells where a loaded document came from
type Source string

const (
	SourceRemote   Source = "remote"
	SourceLocal    Source = "local"
	SourceEmbedded Source = "embedded"
	SourceNone     Source = ""
)

// ErrNoSource is returned when every configured source failed and there is no default
var ErrNoSource = errors.New("failed to load configuration from any source")

// LoaderConfig represents configuration loading options
type LoaderConfig struct {
	RemoteURL string
	LocalPath string
	Timeout   time.Duration
	// Default is used when neither the remote nor the local source loads
	Default     []byte
	DefaultName string
	// Strict rejects unknown fields
	Strict bool
}

// DefaultLoaderConfig returns default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Timeout: 10 * time.Second,
	}
}

// Load decodes the first source that succeeds into target, trying remote, local, then the default.
func Load(ctx context.Context, cfg *LoaderConfig, target any) (Source, error) {
	if cfg.RemoteURL != "" {
		err := loadFromURL(ctx, cfg.RemoteURL, cfg.Timeout, cfg.Strict, target)
		if err == nil {
			return SourceRemote, nil
		}
		slog.Warn("Failed to load remote configuration", "url", cfg.RemoteURL, "error", err)
	}

	if cfg.LocalPath != "" {
		err := loadFromFile(cfg.LocalPath, cfg.Strict, target)
		if err == nil {
			return SourceLocal, nil
		}
		slog.Warn("Failed to load local configuration", "path", cfg.LocalPath, "error", err)
	}

	if cfg.Default != nil {
		if err := decode(cfg.DefaultName, cfg.Default, cfg.Strict, target); err != nil {
			return SourceNone, fmt.Errorf("embedded %s: %w", cfg.DefaultName, err)
		}
		return SourceEmbedded, nil
	}

	return SourceNone, ErrNoSource
}

// loadFromURL loads configuration from a remote URL using the shared fetcher
func loadFromURL(ctx context.Context, rawURL string, timeout time.Duration, strict bool, target any) error {
	httpConfig := httputil.DefaultConfig()
	httpConfig.Timeout = timeout
	httpConfig.HostInterval = 0

	body, err := httputil.NewClient(httpConfig).Fetch(ctx, rawURL, httputil.FetchOptions{})
	if err != nil {
		return fmt.Errorf("failed to fetch config from URL: %w", err)
	}

	name := rawURL
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if err := decode(path.Base(name), []byte(body), strict, target); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	return nil
}

// loadFromFile loads configuration from a local file
func loadFromFile(filePath string, strict bool, target any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	return decode(filePath, data, strict, target)
}

func decode(name string, data []byte, strict bool, target any) error {
	switch detectFormat(name, data) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		if strict {
			dec.DisallowUnknownFields()
		}
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(strict)
		if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	return nil
}

// detectFormat picks json or yaml from the file extension, then from the content
func detectFormat(name string, data []byte) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "json"
	}
	return "yaml"
}
