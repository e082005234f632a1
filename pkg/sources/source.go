// Package sources defines the parser interface raw input files are read
// through and a registry that dispatches files to parsers by extension.
//
// Parsers turn one file into raw records of a single source kind. They are
// expected to skip unusable rows or messages with a warning and only fail
// when the file as a whole cannot be read.
//
// Example usage:
//
//	reg := sources.NewRegistry()
//	reg.Set(".csv", tabular.New(cfg))
//	reg.Set(".fit", binary.New(cfg))
//
//	parser, ok := reg.For("scale-2025-03.csv")
//	if ok {
//	    records, err := parser.Parse(ctx, path, fileID)
//	}
package sources

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/agentstation/bodymap/pkg/measurements"
)

// Parser reads one raw file into records.
type Parser interface {
	// Kind returns the source kind every produced record carries.
	Kind() measurements.SourceKind

	// Parse reads the file at path. fileID is an opaque identifier of the
	// file in its origin store and is copied onto every record.
	Parse(ctx context.Context, path, fileID string) ([]measurements.RawRecord, error)
}

// Registry is a thread-safe container mapping file extensions to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		parsers: make(map[string]Parser),
	}
}

// Get returns the parser registered for an extension.
func (r *Registry) Get(ext string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, found := r.parsers[normalizeExt(ext)]
	return p, found
}

// For returns the parser responsible for a file name.
func (r *Registry) For(name string) (Parser, bool) {
	return r.Get(filepath.Ext(name))
}

// Set registers a parser for an extension, replacing any previous one.
func (r *Registry) Set(ext string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normalizeExt(ext)] = p
}

// Delete removes the parser registered for an extension.
func (r *Registry) Delete(ext string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.parsers, normalizeExt(ext))
}

// Len returns the number of registered extensions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parsers)
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	slices.Sort(exts)
	return exts
}

// normalizeExt lower-cases an extension and makes sure it has a leading dot.
func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
