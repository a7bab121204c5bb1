package sol

import (
	"path"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	commentsRx = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)

	// import "a.sol"; import "a.sol" as A; import * as A from "a.sol"; import {A, B as C} from "a.sol";
	importRx = regexp.MustCompile(`(?m)\bimport\s+(?:[^;"']*?\s*from\s+)?["']([^"']+)["']`)
)

// ImportPaths returns import paths in order of appearance, comments ignored.
func ImportPaths(source string) []string {
	stripped := commentsRx.ReplaceAllString(source, "")
	matches := importRx.FindAllStringSubmatch(stripped, -1)

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		paths = append(paths, m[1])
	}

	return paths
}

// importUnitName computes the source unit name solc uses for an import
// directive found in the unit named importer.
func importUnitName(importer, importPath string) string {
	if strings.HasPrefix(importPath, "./") || strings.HasPrefix(importPath, "../") {
		return path.Join(path.Dir(importer), importPath)
	}

	return importPath
}

func escapeJSONPathKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '#', '|', '@', ':', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}

	return b.String()
}

type pendingUnit struct {
	name    string
	content string
}

// expandImports walks import directives of every source in the standard-JSON
// input and asks the resolver for each unit not yet present. Resolved contents
// are added to the input, failures come back as import diagnostics.
func expandImports(input []byte, imports ImportResolver) ([]byte, []Diagnostic, error) {
	if imports == nil {
		imports = NoImports
	}

	var (
		queue []pendingUnit
		diags []Diagnostic
		known = make(map[string]struct{})
	)

	gjson.GetBytes(input, "sources").ForEach(func(key, value gjson.Result) bool {
		known[key.String()] = struct{}{}
		queue = append(queue, pendingUnit{
			name:    key.String(),
			content: value.Get("content").String(),
		})
		return true
	})

	for len(queue) > 0 {
		unit := queue[0]
		queue = queue[1:]

		for _, importPath := range ImportPaths(unit.content) {
			unitName := importUnitName(unit.name, importPath)
			if _, ok := known[unitName]; ok {
				continue
			}
			known[unitName] = struct{}{}

			res := imports.ResolveImport(unitName)
			if res.Failed() {
				diags = append(diags, importDiagnostic(unit.name, unitName, res.Error))
				continue
			}

			var err error
			input, err = sjson.SetBytes(input, "sources."+escapeJSONPathKey(unitName)+".content", res.Contents)
			if err != nil {
				err = errors.Wrapf(err, "failed to add resolved import %s to compiler input", unitName)
				return nil, nil, err
			}

			queue = append(queue, pendingUnit{
				name:    unitName,
				content: res.Contents,
			})
		}
	}

	return input, diags, nil
}

// mergeImportDiagnostics drops the compiler's own "not found" errors for
// imports that already carry a resolver diagnostic.
func mergeImportDiagnostics(compilerDiags, importDiags []Diagnostic) []Diagnostic {
	if len(importDiags) == 0 {
		return compilerDiags
	}

	merged := make([]Diagnostic, 0, len(compilerDiags)+len(importDiags))
	merged = append(merged, importDiags...)

	for _, d := range compilerDiags {
		duplicate := false
		for _, imp := range importDiags {
			if strings.HasPrefix(d.Message, notFoundPrefix(imp.importPath)) {
				duplicate = true
				break
			}
		}

		if !duplicate {
			merged = append(merged, d)
		}
	}

	return merged
}
