// Package prompts loads the instruction templates sent to the model backend.
package prompts

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"car-advisor/internal/common/errors"
)

// Template names used by the stages.
const (
	Intent            = "intent"
	Suggest           = "suggest"
	Elaborate         = "elaborate"
	TranslateAnalysis = "translate-analysis"
	TranslateCar      = "translate-car"
	VerifyImage       = "verify-image"
	AskAboutCar       = "ask-about-car"
	CompareCars       = "compare-cars"
)

// All lists every template the service needs at startup.
var All = []string{Intent, Suggest, Elaborate, TranslateAnalysis, TranslateCar, VerifyImage, AskAboutCar, CompareCars}

// Source is what stages depend on.
type Source interface {
	Load(name string) (string, error)
}

// Loader reads <dir>/<name>.txt once and serves it from memory afterwards.
type Loader struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]string
}

func NewLoader(dir string) *Loader {
	return NewLoaderFS(os.DirFS(filepath.Clean(dir)))
}

// NewLoaderFS reads templates from any fs.FS (embed.FS, fstest.MapFS).
func NewLoaderFS(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys, cache: make(map[string]string)}
}

func (l *Loader) Load(name string) (string, error) {
	l.mu.RLock()
	text, ok := l.cache[name]
	l.mu.RUnlock()
	if ok {
		return text, nil
	}

	data, err := fs.ReadFile(l.fsys, name+".txt")
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return "", errors.NewTemplateNotFoundError(name)
		}
		return "", fmt.Errorf("read template %s: %w", name, err)
	}

	text = strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.NewTemplateNotFoundError(name)
	}

	l.mu.Lock()
	l.cache[name] = text
	l.mu.Unlock()
	return text, nil
}

// Preload fails on the first missing template.
func (l *Loader) Preload(names ...string) error {
	for _, name := range names {
		if _, err := l.Load(name); err != nil {
			return err
		}
	}
	return nil
}

// Static serves templates from a map; tests use it.
type Static map[string]string

func (s Static) Load(name string) (string, error) {
	text, ok := s[name]
	if !ok {
		return "", errors.NewTemplateNotFoundError(name)
	}
	return text, nil
}
