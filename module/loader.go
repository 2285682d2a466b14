// Package module implements the C8 module-loader hook: resolving a
// non-`.ember` import against a flat JSON registry of installed packages.
// The registry's storage format is out of scope for the core (spec §4.8);
// this package only reads it.
package module

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"
)

// Status is the result of resolving one import path.
type Status int

const (
	NotInstalled Status = iota
	Installed
)

// Package is one entry in the registry document.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Registry is the `{"packages": [...]}` document C8 consults.
type Registry struct {
	Packages []Package `json:"packages"`
}

// Loader resolves import paths against an in-memory registry, loaded once
// from a JSON file.
type Loader struct {
	installed map[string]bool
}

// Load reads the registry JSON at path.
func Load(path string) (*Loader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module registry: %w", err)
	}
	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parsing module registry: %w", err)
	}
	installed := make(map[string]bool, len(reg.Packages))
	for _, p := range reg.Packages {
		installed[p.Name] = true
	}
	return &Loader{installed: installed}, nil
}

// Resolve reports whether path is installed. A nil Loader (no registry
// configured) resolves everything as NotInstalled.
func (l *Loader) Resolve(path string) Status {
	if l != nil && l.installed[path] {
		return Installed
	}
	return NotInstalled
}

// ResolveAll validates every import path in paths concurrently, bounded
// by len(paths), and returns the first NotInstalled path encountered (or
// ""). This is the one place the single-threaded VM's sibling tooling is
// allowed to fan out, since validating N independent registry lookups has
// no shared mutable state between them.
func (l *Loader) ResolveAll(ctx context.Context, paths []string) (string, error) {
	g, _ := errgroup.WithContext(ctx)
	results := make([]Status, len(paths))
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			results[i] = l.Resolve(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	for i, st := range results {
		if st == NotInstalled {
			return paths[i], nil
		}
	}
	return "", nil
}
