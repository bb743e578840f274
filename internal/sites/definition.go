// Package sites turns declarative site definitions into registered feed providers.
package sites

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lepinkainen/eurofeeds/configs"
	"github.com/lepinkainen/eurofeeds/pkg/config"
	"github.com/lepinkainen/eurofeeds/pkg/extract"
	"github.com/lepinkainen/eurofeeds/pkg/feed"
	httputil "github.com/lepinkainen/eurofeeds/pkg/http"
	"github.com/lepinkainen/eurofeeds/pkg/providers"
	"github.com/lepinkainen/eurofeeds/pkg/urlutils"
)

// DefaultMaxItems caps a feed when its definition sets no limit
const DefaultMaxItems = 20

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// File is the top-level document holding site definitions
type File struct {
	Sites []Definition `yaml:"sites" json:"sites"`
}

// Definition describes one feed
type Definition struct {
	Org          string         `yaml:"org" json:"org"`
	Feed         string         `yaml:"feed" json:"feed"`
	Organization string         `yaml:"organization" json:"organization"`
	Kind         providers.Kind `yaml:"kind" json:"kind"`

	Title       string `yaml:"title" json:"title"`
	Link        string `yaml:"link" json:"link"`
	Description string `yaml:"description" json:"description"`
	Language    string `yaml:"language" json:"language"`
	Category    string `yaml:"category" json:"category"`
	MaxItems    int    `yaml:"max_items" json:"max_items"`

	Sources []string `yaml:"sources" json:"sources"`
	Profile string   `yaml:"profile" json:"profile"`
	Referer string   `yaml:"referer" json:"referer"`

	Rule     extract.Rule           `yaml:"rule" json:"rule"`
	Items    []providers.StaticItem `yaml:"items" json:"items"`
	Fallback []providers.StaticItem `yaml:"fallback" json:"fallback"`
}

// Key returns "org/feed"
func (d *Definition) Key() string {
	return d.Org + "/" + d.Feed
}

// Metadata converts the definition to provider metadata
func (d *Definition) Metadata() providers.Metadata {
	source := d.Link
	if len(d.Sources) > 0 {
		source = d.Sources[0]
	}

	organization := d.Organization
	if organization == "" {
		organization = d.Org
	}

	return providers.Metadata{
		Key:          d.Key(),
		Organization: organization,
		Kind:         d.Kind,
		Channel: feed.Channel{
			Title:       d.Title,
			Link:        d.Link,
			Description: d.Description,
			Language:    d.Language,
			Category:    d.Category,
		},
		MaxItems:  d.MaxItems,
		SourceURL: source,
	}
}

// applyDefaults fills optional fields
func (d *Definition) applyDefaults(language string) {
	if d.MaxItems == 0 {
		d.MaxItems = DefaultMaxItems
	}
	if d.Language == "" {
		d.Language = language
	}
	if d.Description == "" {
		d.Description = d.Title
	}
	if d.Rule.BaseURL == "" && len(d.Sources) > 0 {
		d.Rule.BaseURL = d.Sources[0]
	}
}

// Validate checks the definition and compiles its extraction rule
func (d *Definition) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !slugPattern.MatchString(d.Org) {
		fail("org %q must be a lowercase slug", d.Org)
	}
	if !slugPattern.MatchString(d.Feed) {
		fail("feed %q must be a lowercase slug", d.Feed)
	}
	if d.Title == "" {
		fail("title is required")
	}
	if !urlutils.IsHTTPURL(d.Link) {
		fail("link %q must be an absolute http(s) URL", d.Link)
	}
	if d.MaxItems < 0 {
		fail("max_items must not be negative")
	}
	if _, err := httputil.ParseProfile(d.Profile); err != nil {
		errs = append(errs, err)
	}

	switch d.Kind {
	case providers.KindHTML, providers.KindFeed:
		if len(d.Sources) == 0 {
			fail("%s sites need at least one source", d.Kind)
		}
		for _, src := range d.Sources {
			if !urlutils.IsHTTPURL(src) {
				fail("source %q must be an absolute http(s) URL", src)
			}
		}
		if d.Kind == providers.KindHTML && len(d.Rule.Strategies) == 0 {
			fail("html sites need at least one extraction strategy")
		}
		if err := d.Rule.Compile(); err != nil {
			errs = append(errs, fmt.Errorf("rule: %w", err))
		}
	case providers.KindStatic:
		if len(d.Items) == 0 {
			fail("static sites need at least one item")
		}
	default:
		fail("unknown kind %q", d.Kind)
	}

	for i, item := range d.Items {
		if err := validateStatic(item); err != nil {
			fail("items[%d]: %w", i, err)
		}
	}
	for i, item := range d.Fallback {
		if err := validateStatic(item); err != nil {
			fail("fallback[%d]: %w", i, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("site %s: %w", d.Key(), err)
	}
	return nil
}

func validateStatic(item providers.StaticItem) error {
	if item.Title == "" {
		return errors.New("title is required")
	}
	if !urlutils.IsHTTPURL(item.Link) {
		return fmt.Errorf("link %q must be an absolute http(s) URL", item.Link)
	}
	if item.AgeDays < 0 || item.AgeHours < 0 {
		return errors.New("age must not be negative")
	}
	return nil
}

// LoadOptions selects where definitions come from
type LoadOptions struct {
	Path     string
	URL      string
	Language string
}

// Load reads, defaults and validates site definitions. Without a path or URL,
// or when both fail, the embedded definitions are used.
func Load(ctx context.Context, opts LoadOptions) ([]Definition, error) {
	loaderConfig := config.DefaultLoaderConfig()
	loaderConfig.RemoteURL = opts.URL
	loaderConfig.LocalPath = opts.Path
	loaderConfig.Default = configs.Sites
	loaderConfig.DefaultName = configs.SitesFile
	loaderConfig.Strict = true

	var file File
	source, err := config.Load(ctx, loaderConfig, &file)
	if err != nil {
		return nil, fmt.Errorf("loading site definitions: %w", err)
	}

	defs, err := Prepare(file.Sites, opts.Language)
	if err != nil {
		return nil, err
	}

	slog.Debug("Loaded site definitions", "source", source, "sites", len(defs))
	return defs, nil
}

// Prepare applies defaults, validates every definition and rejects duplicate keys
func Prepare(defs []Definition, language string) ([]Definition, error) {
	if language == "" {
		language = "en-us"
	}

	var errs []error
	seen := make(map[string]bool, len(defs))
	for i := range defs {
		d := &defs[i]
		d.applyDefaults(language)

		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[d.Key()] {
			errs = append(errs, fmt.Errorf("site %s: duplicate key", d.Key()))
			continue
		}
		seen[d.Key()] = true
	}

	if len(defs) == 0 {
		errs = append(errs, errors.New("no site definitions"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid site definitions: %w", err)
	}
	return defs, nil
}
