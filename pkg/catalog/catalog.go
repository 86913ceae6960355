// Package catalog keeps a directory of rule descriptions compiled and ready
// to execute, keyed by rule id.
//
// The rule id is the description name, or the file stem when the
// description has no name. Files ending in .yaml, .yml or .json are loaded;
// everything else is ignored. Reloads are atomic: when any file fails to
// load, the previous set stays in place and the error is reported.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/ruleflow/pkg/compiler"
	"github.com/aretw0/ruleflow/pkg/domain"
	"github.com/aretw0/ruleflow/pkg/pipeline"
	"github.com/aretw0/ruleflow/pkg/registry"
)

// Extensions lists the file extensions read as descriptions.
var Extensions = []string{".yaml", ".yml", ".json"}

// Entry is one loaded rule.
type Entry struct {
	*compiler.Rule
	Path string
}

// Catalog implements ports.RuleSource and ports.Watchable over a directory.
type Catalog struct {
	dir      string
	reg      *registry.Registry
	logger   *slog.Logger
	debounce time.Duration
	prepare  []func(*pipeline.Pipeline)
	opts     []pipeline.Option

	mu      sync.RWMutex
	entries map[string]*Entry
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger for reload reports.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		c.logger = logger
	}
}

// WithPipelineOptions are passed to every compiled pipeline.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(c *Catalog) {
		c.opts = append(c.opts, opts...)
	}
}

// WithPrepare registers fn to run on every pipeline after it is compiled
// and before it becomes visible, e.g. to attach listeners.
func WithPrepare(fn func(*pipeline.Pipeline)) Option {
	return func(c *Catalog) {
		c.prepare = append(c.prepare, fn)
	}
}

// WithDebounce sets how long Watch waits for a burst of file events to
// settle before reloading. Defaults to 100ms.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) {
		c.debounce = d
	}
}

// New creates an empty catalog over dir. A nil reg means the built-in
// handlers only. Call Load to read the directory.
func New(dir string, reg *registry.Registry, opts ...Option) *Catalog {
	if reg == nil {
		reg = registry.NewWithBuiltins()
	}
	c := &Catalog{
		dir:      dir,
		reg:      reg,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
		debounce: 100 * time.Millisecond,
		entries:  make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir is the directory the catalog reads.
func (c *Catalog) Dir() string { return c.dir }

// Load reads every description in the directory and replaces the current
// set only when all of them compile and their ids are unique.
func (c *Catalog) Load() error {
	files, err := c.Files()
	if err != nil {
		return err
	}

	entries := make(map[string]*Entry, len(files))
	var errs []error
	for _, path := range files {
		rule, err := compiler.LoadFile(path, c.reg, c.opts...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := entries[rule.ID()]; dup {
			errs = append(errs, fmt.Errorf("%s: rule %q already defined in %s", path, rule.ID(), prev.Path))
			continue
		}
		for _, fn := range c.prepare {
			fn(rule.Pipeline)
		}
		entries[rule.ID()] = &Entry{Rule: rule, Path: path}
	}
	if len(errs) > 0 {
		return fmt.Errorf("load %s: %w", c.dir, errors.Join(errs...))
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.logger.Info("Rules loaded", "dir", c.dir, "rules", len(entries))
	return nil
}

// Files lists the description files of the directory in name order.
// Hidden files are skipped.
func (c *Catalog) Files() ([]string, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("read rules directory: %w", err)
	}
	var files []string
	for _, e := range dirEntries {
		if e.IsDir() || !isDescription(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(c.dir, e.Name()))
	}
	return files, nil
}

func isDescription(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(name)))
}

// Get returns the pipeline of rule id.
func (c *Catalog) Get(id string) (*pipeline.Pipeline, error) {
	e, err := c.Entry(id)
	if err != nil {
		return nil, err
	}
	return e.Pipeline, nil
}

// Entry returns the loaded rule id with its description and file.
func (c *Catalog) Entry(id string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
	}
	return e, nil
}

// IDs returns the loaded rule ids in sorted order.
func (c *Catalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.entries))
}
