// Package sol provides a convenient interface for calling the 'solc' Solidity Compiler from Go.
package sol

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	log "github.com/xlab/suplog"
)

// MinSolcVersion is the oldest compiler with a usable --standard-json mode.
const MinSolcVersion = ">= 0.5.0"

// Compiler takes a standard-JSON input document and returns the standard-JSON
// output document. Diagnostics are part of the output, not of the error.
type Compiler interface {
	Version() string
	CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error)
}

func NewSolCompiler(solcPath string) (Compiler, error) {
	s := &solCompiler{
		solcPath: solcPath,
	}
	if err := s.verify(); err != nil {
		return nil, err
	}
	return s, nil
}

type solCompiler struct {
	solcPath string
	version  *semver.Version
}

var versionRx = regexp.MustCompile(`\d+\.\d+\.\d+`)

func (s *solCompiler) verify() error {
	out, err := exec.Command(s.solcPath, "--version").CombinedOutput()
	if err != nil {
		err = fmt.Errorf("solc verify: failed to exec solc: %v", err)
		return err
	}
	hasPrefix := strings.HasPrefix(string(out), "solc, the solidity compiler")
	if !hasPrefix {
		err := fmt.Errorf("solc verify: executable output was unexpected (output: %s)", out)
		return err
	}

	v, err := ParseSolcVersion(string(out))
	if err != nil {
		return err
	}

	constraint, _ := semver.NewConstraint(MinSolcVersion)
	if !constraint.Check(v) {
		err := errors.Errorf("solc verify: version %s does not satisfy %s", v, MinSolcVersion)
		return err
	}

	s.version = v
	return nil
}

// ParseSolcVersion extracts the semantic version from 'solc --version' output.
func ParseSolcVersion(out string) (*semver.Version, error) {
	versionStr := versionRx.FindString(out)
	if versionStr == "" {
		return nil, errors.New("solc verify: could not parse version from 'solc --version'")
	}

	return semver.NewVersion(versionStr)
}

func (s *solCompiler) Version() string {
	if s.version == nil {
		return ""
	}

	return s.version.String()
}

func (s *solCompiler) CompileStandardJSON(ctx context.Context, input []byte) ([]byte, error) {
	stderr := new(bytes.Buffer)
	cmd := exec.CommandContext(ctx, s.solcPath, "--standard-json")
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stderr = stderr

	log.Debugln("Running solc compiler:", cmd.String())

	out, err := cmd.Output()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Wrap(ctxErr, "solc: compiler invocation aborted")
			return nil, err
		}

		// solc still prints a JSON document with the errors on most failures
		if len(out) > 0 && gjson.ValidBytes(out) {
			return out, nil
		}

		err = fmt.Errorf("solc: failed to compile contract: %v (stderr: %s)", err, strings.TrimSpace(stderr.String()))
		return nil, err
	}

	if !gjson.ValidBytes(out) {
		err = errors.New("solc: compiler returned malformed JSON output")
		return nil, err
	}

	return out, nil
}

func WhichSolc() (string, error) {
	out, err := exec.Command("which", "solc").Output()
	if err != nil {
		return "", errors.New("solc executable file not found in $PATH")
	}
	return string(bytes.TrimSpace(out)), nil
}
