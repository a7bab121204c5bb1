package deployer

import (
	"context"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/xlab/suplog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidTxHash  = errors.New("invalid transaction hash")
	ErrTxNotFound     = errors.New("transaction not found")
)

type Balance struct {
	Address string          `json:"address"`
	Wei     *big.Int        `json:"wei"`
	Ether   decimal.Decimal `json:"ether"`
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, errors.Wrap(ErrInvalidAddress, address)
	}

	return common.HexToAddress(address), nil
}

func (d *deployer) GetBalance(ctx context.Context, address string) (*Balance, error) {
	account, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	client, err := d.Backend()
	if err != nil {
		return nil, err
	}

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	wei, err := client.BalanceAt(callCtx, account, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to get balance")
		return nil, err
	}

	return &Balance{
		Address: account.Hex(),
		Wei:     wei,
		Ether:   decimal.NewFromBigInt(wei, -18),
	}, nil
}

func (d *deployer) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return nil, errors.Wrap(ErrInvalidTxHash, txHash)
	}

	client, err := d.Backend()
	if err != nil {
		return nil, err
	}

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	callLog := log.WithField("txHash", txHash)
	receipt, err := client.TransactionReceipt(callCtx, common.BytesToHash(raw))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, ErrTxNotFound
		}

		callLog.WithError(err).Errorln("failed to get transaction receipt")
		return nil, err
	}

	return receipt, nil
}

// GetCode returns the runtime bytecode at address, "0x" when there is none.
func (d *deployer) GetCode(ctx context.Context, address string) (string, error) {
	account, err := parseAddress(address)
	if err != nil {
		return "", err
	}

	client, err := d.Backend()
	if err != nil {
		return "", err
	}

	callCtx, cancelFn := context.WithTimeout(ctx, d.options.CallTimeout)
	defer cancelFn()

	code, err := client.CodeAt(callCtx, account, nil)
	if err != nil {
		err = errors.Wrap(err, "failed to get code")
		return "", err
	}

	return hexutil.Encode(code), nil
}

func (d *deployer) IsContract(ctx context.Context, address string) (bool, error) {
	code, err := d.GetCode(ctx, address)
	if err != nil {
		return false, err
	}

	return len(strings.TrimPrefix(code, "0x")) > 0, nil
}

func (d *deployer) GetChainID(ctx context.Context) (*big.Int, error) {
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

	return chainId, nil
}
