package sol

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a single compiler (or import resolution) message.
type Diagnostic struct {
	Severity         Severity `json:"severity"`
	Type             string   `json:"type,omitempty"`
	Message          string   `json:"message"`
	FormattedMessage string   `json:"formattedMessage,omitempty"`
	SourceFile       string   `json:"sourceFile,omitempty"`

	importPath string
}

const diagnosticTypeImport = "ImportError"

func (d Diagnostic) String() string {
	if len(d.FormattedMessage) > 0 {
		return strings.TrimSpace(d.FormattedMessage)
	}

	return d.Message
}

func (d Diagnostic) IsError() bool {
	return d.Severity == SeverityError
}

func newDiagnostic(e StandardJSONError) Diagnostic {
	d := Diagnostic{
		Severity:         Severity(strings.ToLower(e.Severity)),
		Type:             e.Type,
		Message:          e.Message,
		FormattedMessage: e.FormattedMessage,
	}
	if e.SourceLocation != nil {
		d.SourceFile = e.SourceLocation.File
	}

	return d
}

func notFoundPrefix(path string) string {
	return fmt.Sprintf("Source %q not found", path)
}

func importDiagnostic(importingFile, path, reason string) Diagnostic {
	msg := notFoundPrefix(path) + ": " + reason

	return Diagnostic{
		Severity:         SeverityError,
		Type:             diagnosticTypeImport,
		Message:          msg,
		FormattedMessage: fmt.Sprintf("%s: %s", importingFile, msg),
		SourceFile:       importingFile,
		importPath:       path,
	}
}

// Partition splits diagnostics into errors and warnings. Info entries are dropped.
func Partition(diagnostics []Diagnostic) (errs, warnings []Diagnostic) {
	for _, d := range diagnostics {
		switch d.Severity {
		case SeverityError:
			errs = append(errs, d)
		case SeverityWarning:
			warnings = append(warnings, d)
		}
	}

	return errs, warnings
}

// CompilationError aggregates every error-severity diagnostic of a failed compilation.
// Warnings reported alongside are kept in Diagnostics too.
type CompilationError struct {
	Diagnostics []Diagnostic
}

func (e *CompilationError) Errors() []Diagnostic {
	errs, _ := Partition(e.Diagnostics)
	return errs
}

func (e *CompilationError) Warnings() []Diagnostic {
	_, warnings := Partition(e.Diagnostics)
	return warnings
}

func (e *CompilationError) Error() string {
	var merr *multierror.Error
	for _, d := range e.Errors() {
		merr = multierror.Append(merr, errors.New(d.String()))
	}

	if merr == nil {
		return "compilation errors"
	}

	merr.ErrorFormat = func(errs []error) string {
		lines := make([]string, 0, len(errs))
		for _, err := range errs {
			lines = append(lines, err.Error())
		}

		return "compilation errors:\n" + strings.Join(lines, "\n")
	}

	return merr.Error()
}

var ErrNoContracts = errors.New("no contracts found")

// ValidationError is raised when the compiler output lacks the expected shape.
type ValidationError struct {
	Contract string
	Reason   string
	Err      error
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func noContractsError(reason string) error {
	return &ValidationError{
		Reason: reason,
		Err:    ErrNoContracts,
	}
}
