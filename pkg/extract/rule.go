// Package extract turns fetched markup into feed items using declarative, per-site rules.
package extract

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"
)

// DefaultMaxDescriptionLength bounds plain-text descriptions when a rule sets none
const DefaultMaxDescriptionLength = 200

// ErrExtractionEmpty classifies a pass that produced no items. It is not a failure:
// feed generation serves fallback items for it instead of an error item.
var ErrExtractionEmpty = errors.New("no items extracted")

// FieldRule locates one field inside a block. Selector empty means the block itself.
// Ancestor searches the nearest enclosing element matching it instead of the block.
// Attr reads an attribute instead of text. Pattern narrows the value to its first
// capture group (or the whole match). Format overrides the rule's date format.
type FieldRule struct {
	Selector string     `yaml:"selector" json:"selector"`
	Ancestor string     `yaml:"ancestor" json:"ancestor"`
	Attr     string     `yaml:"attr" json:"attr"`
	Pattern  string     `yaml:"pattern" json:"pattern"`
	Format   DateFormat `yaml:"format" json:"format"`

	sel      cascadia.Selector
	ancestor cascadia.Selector
	re       *regexp.Regexp
}

// Strategy is one way of finding item blocks on a page
type Strategy struct {
	Name        string      `yaml:"name" json:"name"`
	Block       string      `yaml:"block" json:"block"`
	Title       []FieldRule `yaml:"title" json:"title"`
	Link        []FieldRule `yaml:"link" json:"link"`
	Date        []FieldRule `yaml:"date" json:"date"`
	Description []FieldRule `yaml:"description" json:"description"`
	Category    []FieldRule `yaml:"category" json:"category"`
	// DefaultLink is used when no link rule matches
	DefaultLink string `yaml:"default_link" json:"default_link"`

	block cascadia.Selector
}

// Rule is one site's extraction configuration. Strategies are tried in order and
// the first one yielding at least one item wins.
type Rule struct {
	BaseURL              string     `yaml:"base_url" json:"base_url"`
	DateFormat           DateFormat `yaml:"date_format" json:"date_format"`
	Category             string     `yaml:"category" json:"category"`
	MinTitleLength       int        `yaml:"min_title_length" json:"min_title_length"`
	MaxDescriptionLength int        `yaml:"max_description_length" json:"max_description_length"`
	DescriptionHTML      bool       `yaml:"description_html" json:"description_html"`
	Dedupe               bool       `yaml:"dedupe" json:"dedupe"`
	Strategies           []Strategy `yaml:"strategies" json:"strategies"`

	compiled bool
}

// Compile validates the rule and prepares its selectors and patterns.
// It must be called before the rule is shared between goroutines.
func (r *Rule) Compile() error {
	if r.DateFormat != "" && !r.DateFormat.Valid() {
		return fmt.Errorf("unknown date format %q", r.DateFormat)
	}

	for i := range r.Strategies {
		st := &r.Strategies[i]
		name := st.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}

		if st.Block == "" {
			return fmt.Errorf("strategy %s: block selector is required", name)
		}
		sel, err := cascadia.Compile(st.Block)
		if err != nil {
			return fmt.Errorf("strategy %s: block selector %q: %w", name, st.Block, err)
		}
		st.block = sel

		fields := []struct {
			name  string
			rules []FieldRule
		}{
			{"title", st.Title},
			{"link", st.Link},
			{"date", st.Date},
			{"description", st.Description},
			{"category", st.Category},
		}
		for _, field := range fields {
			for j := range field.rules {
				if err := field.rules[j].compile(); err != nil {
					return fmt.Errorf("strategy %s: %s rule %d: %w", name, field.name, j, err)
				}
			}
		}

		if len(st.Title) == 0 {
			return fmt.Errorf("strategy %s: at least one title rule is required", name)
		}
	}

	r.compiled = true
	return nil
}

func (f *FieldRule) compile() error {
	if f.Selector != "" {
		sel, err := cascadia.Compile(f.Selector)
		if err != nil {
			return fmt.Errorf("selector %q: %w", f.Selector, err)
		}
		f.sel = sel
	}

	if f.Ancestor != "" {
		sel, err := cascadia.Compile(f.Ancestor)
		if err != nil {
			return fmt.Errorf("ancestor %q: %w", f.Ancestor, err)
		}
		f.ancestor = sel
	}

	if f.Pattern != "" {
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return fmt.Errorf("pattern %q: %w", f.Pattern, err)
		}
		f.re = re
	}

	if f.Format != "" && !f.Format.Valid() {
		return fmt.Errorf("unknown date format %q", f.Format)
	}

	return nil
}

func (r *Rule) maxDescription() int {
	if r.MaxDescriptionLength == 0 {
		return DefaultMaxDescriptionLength
	}
	return r.MaxDescriptionLength
}
