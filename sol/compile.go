package sol

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	log "github.com/xlab/suplog"
)

var ErrEmptySource = errors.New("empty source code provided")

// CompileSource compiles literal source text as the single virtual source unit,
// resolving imports through imports. Error diagnostics fail the whole call with
// a *CompilationError, shape problems with a *ValidationError.
func CompileSource(
	ctx context.Context,
	compiler Compiler,
	imports ImportResolver,
	source string,
	settings CompileSettings,
) (*CompilationResult, error) {
	input, importDiags, err := StandardJSON(source, settings, imports)
	if err != nil {
		return nil, err
	}

	result, err := CompileInput(ctx, compiler, input, importDiags)
	if err != nil {
		return nil, err
	}

	result.SourceHash = SourceHash(source)
	return result, nil
}

// CompileInput runs the compiler on an already expanded standard-JSON input.
// importDiags are the resolver failures returned by StandardJSON.
func CompileInput(
	ctx context.Context,
	compiler Compiler,
	input []byte,
	importDiags []Diagnostic,
) (*CompilationResult, error) {
	ts := time.Now()

	output, err := compiler.CompileStandardJSON(ctx, input)
	if err != nil {
		err = errors.Wrap(err, "failed to invoke compiler")
		return nil, err
	}

	log.WithField("took", time.Since(ts)).Debugln("compiler finished")

	diagnostics := mergeImportDiagnostics(ParseDiagnostics(output), importDiags)
	errs, warnings := Partition(diagnostics)

	for _, w := range warnings {
		log.WithField("source", w.SourceFile).Warningln(w.String())
	}

	if len(errs) > 0 {
		for _, e := range errs {
			log.WithField("source", e.SourceFile).Errorln(e.String())
		}

		return nil, &CompilationError{
			Diagnostics: diagnostics,
		}
	}

	result, err := ExtractContracts(output, compiler.Version())
	if err != nil {
		return nil, err
	}

	result.Diagnostics = diagnostics

	for _, c := range result.Contracts {
		log.WithField("kind", c.Kind).Debugln("found", c.Name, "contract")
	}

	return result, nil
}

// StandardJSON builds the complete compiler input for source, with every
// resolvable import added as a source unit. Imports that failed to resolve
// are returned as diagnostics.
func StandardJSON(source string, settings CompileSettings, imports ImportResolver) ([]byte, []Diagnostic, error) {
	if len(source) == 0 {
		return nil, nil, ErrEmptySource
	}

	input, err := NewStandardJSONInput(source, settings).Marshal()
	if err != nil {
		err = errors.Wrap(err, "failed to marshal compiler input")
		return nil, nil, err
	}

	return expandImports(input, imports)
}

// ParseDiagnostics reads the top-level errors array of a standard-JSON output.
func ParseDiagnostics(output []byte) []Diagnostic {
	var diagnostics []Diagnostic

	gjson.GetBytes(output, "errors").ForEach(func(_, value gjson.Result) bool {
		e := StandardJSONError{
			Severity:         value.Get("severity").String(),
			Type:             value.Get("type").String(),
			Component:        value.Get("component").String(),
			Message:          value.Get("message").String(),
			FormattedMessage: value.Get("formattedMessage").String(),
		}

		if loc := value.Get("sourceLocation"); loc.Exists() {
			e.SourceLocation = &SourceLocation{
				File:  loc.Get("file").String(),
				Start: int(loc.Get("start").Int()),
				End:   int(loc.Get("end").Int()),
			}
		}

		diagnostics = append(diagnostics, newDiagnostic(e))
		return true
	})

	return diagnostics
}

// InputHash is the Keccak-256 of a complete compiler input document, so it
// changes with any imported file as well as the settings.
func InputHash(input []byte) string {
	return crypto.Keccak256Hash(input).Hex()[2:]
}

// SourceHash is the Keccak-256 of the source text, hex without prefix.
func SourceHash(source string) string {
	return crypto.Keccak256Hash([]byte(source)).Hex()[2:]
}
