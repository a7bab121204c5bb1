package deployer

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"
)

// Backend is the part of an EVM node the deployer talks to. Satisfied by
// *Client, *ethclient.Client and the go-ethereum simulated backend client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// rawTxSender is implemented by backends that report the hash assigned by the node.
type rawTxSender interface {
	SendTransactionWithRet(ctx context.Context, tx *types.Transaction) (common.Hash, error)
}

type Client struct {
	*ethclient.Client

	rc *rpc.Client
}

func NewClient(rc *rpc.Client) *Client {
	return &Client{
		Client: ethclient.NewClient(rc),
		rc:     rc,
	}
}

func (ec *Client) SendTransactionWithRet(ctx context.Context, tx *types.Transaction) (txHash common.Hash, err error) {
	data, err := rlp.EncodeToBytes(tx)
	if err != nil {
		return common.Hash{}, err
	}

	if err := ec.rc.CallContext(ctx, &txHash, "eth_sendRawTransaction", hexutil.Encode(data)); err != nil {
		return tx.Hash(), err
	}

	return txHash, nil
}

var ErrClientNotAvailable = errors.New("EVM RPC client is not available due to connection issue")

func (d *deployer) Backend() (Backend, error) {
	d.initClientOnce.Do(func() {
		if d.client != nil {
			return
		}

		dialCtx, cancelFn := context.WithTimeout(context.Background(), d.options.RPCTimeout)
		defer cancelFn()

		rc, err := rpc.DialContext(dialCtx, d.options.EVMRPCEndpoint)
		if err != nil {
			log.WithField("endpoint", d.options.EVMRPCEndpoint).WithError(err).Errorln("failed to dial EVM RPC endpoint")
			return
		}

		d.client = NewClient(rc)
	})

	if d.client == nil {
		return nil, ErrClientNotAvailable
	}

	return d.client, nil
}

// sendTx submits a signed transaction and returns its hash. The hash is known
// even when submission fails, so callers can reconcile manually.
func sendTx(ctx context.Context, backend Backend, tx *types.Transaction) (common.Hash, error) {
	if sender, ok := backend.(rawTxSender); ok {
		return sender.SendTransactionWithRet(ctx, tx)
	}

	if err := backend.SendTransaction(ctx, tx); err != nil {
		return tx.Hash(), err
	}

	return tx.Hash(), nil
}
