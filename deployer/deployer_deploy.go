package deployer

import (
	"context"
	"crypto/ecdsa"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/InjectiveLabs/solpipe/sol"
)

var (
	ErrNoChainID       = errors.New("failed to get valid Chain ID")
	ErrNoNonce         = errors.New("failed to get latest from nonce")
	ErrNothingToDeploy = errors.New("compilation result has no contracts to deploy")
)

type ContractDeployOpts struct {
	// SignerKey is a raw hex private key, 0x prefix optional. Falls back to
	// the default signer key option when empty.
	SignerKey string

	// ConstructorArgs are ABI-ready values keyed by contract name.
	ConstructorArgs map[string][]interface{}

	// ConstructorInputMapper is consulted for contracts missing from ConstructorArgs.
	ConstructorInputMapper AbiMethodInputMapperFunc
}

func (d *deployer) Deploy(
	ctx context.Context,
	result *sol.CompilationResult,
	deployOpts ContractDeployOpts,
) (*DeploymentReport, error) {
	if result == nil || result.Len() == 0 {
		return nil, ErrNothingToDeploy
	}

	pk, err := d.signerKey(deployOpts.SignerKey)
	if err != nil {
		return nil, err
	}

	from := crypto.PubkeyToAddress(pk.PublicKey)

	client, err := d.Backend()
	if err != nil {
		return nil, err
	}

	chainCtx, cancelFn := context.WithTimeout(ctx, d.options.RPCTimeout)
	defer cancelFn()

	chainId, err := client.ChainID(chainCtx)
	if err != nil {
		log.WithError(err).Errorln("failed get valid chain ID")
		return nil, ErrNoChainID
	}

	signerFn, err := getSignerFn(d.options.SignerType, chainId, from, pk)
	if err != nil {
		log.WithError(err).Errorln("failed to get signer function")
		return nil, err
	}

	lock := d.accountLock(from.Hex())
	lock.Lock()
	defer lock.Unlock()

	nonceCtx, cancelFn := context.WithTimeout(ctx, d.options.RPCTimeout)
	defer cancelFn()

	nonce, err := client.PendingNonceAt(nonceCtx, from)
	if err != nil {
		log.WithField("from", from.Hex()).WithError(err).Errorln("failed to get most recent nonce")
		return nil, ErrNoNonce
	}

	report := &DeploymentReport{
		RunID:   uuid.NewString(),
		ChainID: chainId.String(),
		From:    from.Hex(),
	}

	runLog := log.WithFields(log.Fields{
		"run":  report.RunID,
		"from": report.From,
	})

	if len(d.options.UniformConstructorArgs) > 0 {
		runLog.Warningln("applying the same constructor arguments to every contract without its own")
	}

	params := deployTxParams{
		From:     from,
		GasPrice: d.options.GasPrice,
		GasLimit: d.options.GasLimit,
		SignerFn: signerFn,
	}

	for _, contract := range result.Contracts {
		rec := report.newRecord(contract.Name)
		params.Nonce = nonce

		if d.deployContract(ctx, client, contract, params, deployOpts, rec) {
			nonce++
		}

		runLog.WithFields(log.Fields{
			"contract": rec.ContractName,
			"status":   rec.Status,
			"txHash":   rec.TransactionHash,
		}).Infoln("contract deployment attempted")
	}

	return report, nil
}

// deployContract fills rec with the outcome of a single contract creation and
// reports whether the nonce was consumed.
func (d *deployer) deployContract(
	ctx context.Context,
	client Backend,
	contract *sol.Contract,
	params deployTxParams,
	deployOpts ContractDeployOpts,
	rec *DeploymentRecord,
) (nonceUsed bool) {
	contractLog := log.WithField("contract", contract.Name)

	args, err := d.constructorArgs(contract, deployOpts)
	if err != nil {
		_ = rec.finalize(StatusError, err)
		return false
	}

	input, err := packDeployment(contract, args)
	if err != nil {
		_ = rec.finalize(StatusError, err)
		return false
	}

	txCtx, cancelFn := context.WithTimeout(ctx, d.options.RPCTimeout)
	defer cancelFn()

	tx, err := newDeployTx(txCtx, client, params, input)
	if err != nil {
		contractLog.WithError(err).Errorln("failed to prepare deployment transaction")
		_ = rec.finalize(StatusError, err)
		return false
	}

	contractLog.WithFields(log.Fields{
		"nonce":    params.Nonce,
		"gasPrice": tx.GasPrice().String(),
		"gasLimit": tx.Gas(),
	}).Debugln("deploying contract")

	txHash, err := sendTx(txCtx, client, tx)
	if err != nil {
		contractLog.WithError(err).WithField("txHash", txHash.Hex()).Errorln("failed to deploy contract")
		rec.TransactionHash = txHash.Hex()
		_ = rec.finalize(StatusError, errors.Wrap(err, "failed to submit transaction"))
		return false
	}

	rec.submitted(txHash)
	if !d.options.Await {
		return true
	}

	awaitCtx, cancelFn := context.WithTimeout(ctx, d.options.TxTimeout)
	defer cancelFn()

	receipt, err := awaitTx(awaitCtx, client, txHash, d.options.PollInterval)
	if err != nil {
		_ = rec.finalize(StatusError, err)
		return true
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		address := receipt.ContractAddress
		if address == (common.Address{}) {
			address = crypto.CreateAddress(params.From, params.Nonce)
		}

		_ = rec.succeeded(address, blockNumber(receipt), receipt.GasUsed)
		return true
	}

	rec.BlockNumber = blockNumber(receipt)
	rec.GasUsed = receipt.GasUsed

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	revertErr := errors.New("execution reverted")
	if reason, err := getRevertReason(callCtx, params.From, client, input, receipt.BlockNumber); err == nil {
		revertErr = errors.Errorf("execution reverted: %s", reason)
	} else {
		contractLog.WithError(err).Debugln("no revert reason obtained")
	}

	_ = rec.finalize(StatusReverted, revertErr)
	return true
}

func (d *deployer) constructorArgs(contract *sol.Contract, deployOpts ContractDeployOpts) ([]interface{}, error) {
	if args, ok := deployOpts.ConstructorArgs[contract.Name]; ok {
		return args, nil
	}

	if deployOpts.ConstructorInputMapper != nil {
		parsedABI, err := parseABI(contract)
		if err != nil {
			return nil, err
		}

		args, err := deployOpts.ConstructorInputMapper(contract.Name, parsedABI.Constructor.Inputs)
		if errors.Is(err, ErrNoConstructorArgs) && len(d.options.UniformConstructorArgs) > 0 {
			return d.options.UniformConstructorArgs, nil
		}

		return args, err
	}

	return d.options.UniformConstructorArgs, nil
}

// signerKey picks the request key or the configured default and parses it.
// Runs before any network call.
func (d *deployer) signerKey(key string) (*ecdsa.PrivateKey, error) {
	if len(key) == 0 {
		key = d.options.DefaultSignerKey
	}

	if len(key) == 0 {
		return nil, ErrNoSignerKey
	}

	return ParsePrivateKey(key)
}

func blockNumber(receipt *types.Receipt) uint64 {
	if receipt.BlockNumber == nil {
		return 0
	}

	return receipt.BlockNumber.Uint64()
}
