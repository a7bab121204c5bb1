package sol

import (
	"os"
	"path/filepath"
	"strings"
)

// ErrFileNotFound is the message handed back to the compiler when an import
// cannot be resolved.
const ErrFileNotFound = "File not found"

// DefaultImportPrefixes are the third-party namespaces resolved from the
// local root when no prefixes are configured.
var DefaultImportPrefixes = []string{"@openzeppelin"}

// ImportResult is the structured outcome of resolving a single import path.
// Exactly one of Contents or Error is set.
type ImportResult struct {
	Contents string `json:"contents,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (r ImportResult) Failed() bool {
	return len(r.Error) > 0
}

// ImportResolver resolves import paths found in the source while compiling.
// Implementations must not panic; failures are reported through ImportResult.Error.
type ImportResolver interface {
	ResolveImport(path string) ImportResult
}

type ImportResolverFunc func(path string) ImportResult

func (fn ImportResolverFunc) ResolveImport(path string) ImportResult {
	return fn(path)
}

// PrefixResolver substitutes known namespace prefixes with a local root dir
// and reads the resulting file.
type PrefixResolver struct {
	Prefixes []string
	Root     string
}

// NewPrefixResolver creates a resolver rooted at root. An empty root means the
// current working directory, empty prefixes means DefaultImportPrefixes.
func NewPrefixResolver(root string, prefixes ...string) *PrefixResolver {
	if len(root) == 0 {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}

	if len(prefixes) == 0 {
		prefixes = DefaultImportPrefixes
	}

	return &PrefixResolver{
		Prefixes: prefixes,
		Root:     root,
	}
}

func (p *PrefixResolver) ResolveImport(path string) ImportResult {
	for _, prefix := range p.Prefixes {
		if !strings.HasPrefix(path, prefix) {
			continue
		}

		localPath := filepath.Join(p.Root, filepath.FromSlash(strings.TrimPrefix(path, prefix)))
		contents, err := os.ReadFile(localPath)
		if err != nil {
			return ImportResult{Error: ErrFileNotFound}
		}

		return ImportResult{Contents: string(contents)}
	}

	return ImportResult{Error: ErrFileNotFound}
}

// NoImports rejects every import.
var NoImports = ImportResolverFunc(func(string) ImportResult {
	return ImportResult{Error: ErrFileNotFound}
})
