package feed

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"

	"github.com/lepinkainen/eurofeeds/templates"
)

// templateLayers resolves template files from an operator directory first and
// the set compiled into the binary second.
type templateLayers struct {
	mu       sync.RWMutex
	override fs.FS
	embedded fs.FS
}

var layers = &templateLayers{embedded: templates.EmbeddedTemplates}

// SetTemplateOverrideFS makes templates found in f take precedence over the
// embedded ones. nil disables overrides.
func SetTemplateOverrideFS(f fs.FS) {
	layers.mu.Lock()
	defer layers.mu.Unlock()
	layers.override = f
}

// read returns the named file and the layer it was found in. An override that
// is missing or unreadable falls through to the embedded set.
func (l *templateLayers) read(name string) (data []byte, layer string, err error) {
	l.mu.RLock()
	override, embedded := l.override, l.embedded
	l.mu.RUnlock()

	if override != nil {
		data, err := fs.ReadFile(override, name)
		if err == nil {
			return data, "override", nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Failed to read template override, using embedded", "template", name, "error", err)
		}
	}

	if embedded == nil {
		return nil, "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}
	data, err = fs.ReadFile(embedded, name)
	if err != nil {
		return nil, "", err
	}
	return data, "embedded", nil
}
