package deployer

import (
	"bytes"
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/InjectiveLabs/solpipe/sol"
)

var (
	ErrAwaitTimeout   = errors.New("await timeout")
	ErrNoRevertReason = errors.New("no revert reason")
)

func getRevertReason(
	ctx context.Context,
	from common.Address,
	client Backend,
	txData []byte,
	blockNum *big.Int,
) (reason string, err error) {
	// contract creation is replayed with To left nil
	callMsg := ethereum.CallMsg{
		From:     from,
		GasPrice: big.NewInt(0),
		Gas:      1000000,
		Data:     txData,
	}

	result, err := client.CallContract(ctx, callMsg, blockNum)
	if err != nil {
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) {
			if hexData, ok := dataErr.ErrorData().(string); ok {
				result, _ = hexutil.Decode(hexData)
			}
		}

		if len(result) == 0 {
			err = errors.Wrap(err, "failed to get revert reason, call errored")
			return "", err
		}
	}

	if len(result) == 0 {
		return "", ErrNoRevertReason
	}

	reason, err = abi.UnpackRevert(result)
	if err != nil {
		return "", ErrNoRevertReason
	}

	return reason, nil
}

// awaitTx polls for the receipt until it shows up or ctx expires. A receipt
// with failed status is returned as is, it is up to the caller to map it.
func awaitTx(ctx context.Context, client Backend, txHash common.Hash, pollInterval time.Duration) (*types.Receipt, error) {
	awaitLog := log.WithField("hash", txHash.Hex())
	awaitLog.Debugln("awaiting transaction")

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		if !errors.Is(err, ethereum.NotFound) {
			if ctx.Err() != nil {
				return nil, ErrAwaitTimeout
			}

			awaitLog.WithError(err).Errorln("failed to await transaction")
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrAwaitTimeout
		case <-ticker.C:
		}
	}
}

type deployTxParams struct {
	From     common.Address
	Nonce    uint64
	GasPrice *big.Int
	GasLimit uint64
	SignerFn bind.SignerFn
}

func parseABI(contract *sol.Contract) (abi.ABI, error) {
	parsedABI, err := abi.JSON(bytes.NewReader(contract.ABI))
	if err != nil {
		err = errors.Wrap(err, "failed to parse contract ABI")
		return abi.ABI{}, err
	}

	return parsedABI, nil
}

// packDeployment returns creation bytecode with ABI-encoded constructor args appended.
func packDeployment(contract *sol.Contract, args []interface{}) ([]byte, error) {
	parsedABI, err := parseABI(contract)
	if err != nil {
		return nil, err
	}

	packedArgs, err := parsedABI.Pack("", args...)
	if err != nil {
		err = errors.Wrap(err, "failed to ABI-encode constructor values")
		return nil, err
	}

	bytecode, err := hexutil.Decode(contract.Bin)
	if err != nil {
		err = errors.Wrap(err, "failed to decode contract bytecode")
		return nil, err
	}

	return append(bytecode, packedArgs...), nil
}

// newDeployTx creates and signs a contract creation transaction, filling in
// gas price and gas limit from the node when not fixed.
func newDeployTx(ctx context.Context, ec Backend, params deployTxParams, input []byte) (*types.Transaction, error) {
	var err error

	gasPrice := params.GasPrice
	if gasPrice == nil {
		gasPrice, err = ec.SuggestGasPrice(ctx)
		if err != nil {
			err = errors.Wrap(err, "failed to suggest gas price")
			return nil, err
		}
	}

	gasLimit := params.GasLimit
	if gasLimit == 0 {
		msg := ethereum.CallMsg{From: params.From, GasPrice: gasPrice, Value: new(big.Int), Data: input}
		gasLimit, err = ec.EstimateGas(ctx, msg)
		if err != nil {
			err = errors.Wrap(err, "failed to estimate gas needed")
			return nil, err
		}
	}

	rawTx := types.NewContractCreation(params.Nonce, new(big.Int), gasLimit, gasPrice, input)
	if params.SignerFn == nil {
		return nil, errors.New("no signer to authorize the transaction with")
	}

	signedTx, err := params.SignerFn(params.From, rawTx)
	if err != nil {
		err = errors.Wrap(err, "failed to sign transaction")
		return nil, err
	}

	return signedTx, nil
}
