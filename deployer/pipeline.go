package deployer

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

var ErrEmptySourceCode = errors.New("source code is empty")

// CompileAndDeployRequest is a single compile-and-deploy run. ConstructorArgs
// holds textual values keyed by contract name, mapped through the ABI.
type CompileAndDeployRequest struct {
	SourceCode      string
	SignerKey       string
	ConstructorArgs map[string][]string
}

// CompileAndDeploy validates the credential, compiles the source and deploys
// every resulting contract in order. Nothing is submitted when compilation fails.
func (d *deployer) CompileAndDeploy(
	ctx context.Context,
	req CompileAndDeployRequest,
) (*DeploymentReport, error) {
	if len(strings.TrimSpace(req.SourceCode)) == 0 {
		return nil, ErrEmptySourceCode
	}

	if _, err := d.signerKey(req.SignerKey); err != nil {
		return nil, err
	}

	result, err := d.Build(ctx, req.SourceCode)
	if err != nil {
		log.WithError(err).Errorln("compilation failed, nothing deployed")
		return nil, err
	}

	log.WithField("contracts", strings.Join(result.Names(), ",")).Debugln("compiled source")

	deployOpts := ContractDeployOpts{
		SignerKey: req.SignerKey,
	}

	if req.ConstructorArgs != nil {
		deployOpts.ConstructorInputMapper = StringArgsMapper(req.ConstructorArgs)
	}

	return d.Deploy(ctx, result, deployOpts)
}
