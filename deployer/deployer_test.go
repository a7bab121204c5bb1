package deployer

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/InjectiveLabs/solpipe/sol"
)

const (
	testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

	// creation code returning a single STOP byte as runtime code
	testBytecode = "0x6001600c60003960016000f300"
)

var testFrom = crypto.PubkeyToAddress(mustKey(testKey).PublicKey)

func mustKey(key string) *ecdsa.PrivateKey {
	pk, err := crypto.HexToECDSA(key)
	if err != nil {
		panic(err)
	}

	return pk
}

type fakeBackend struct {
	mux sync.Mutex

	chainID  *big.Int
	nonce    uint64
	calls    int
	attempts int

	failSend   map[int]error
	receiptErr map[int]error
	unmined    map[int]bool
	revert     map[int]bool
	revertData []byte

	sent        []*types.Transaction
	receipts    map[common.Hash]*types.Receipt
	receiptErrs map[common.Hash]error
	balances    map[common.Address]*big.Int
	code        map[common.Address][]byte
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:  big.NewInt(1337),
		failSend:    make(map[int]error),
		receiptErr:  make(map[int]error),
		unmined:     make(map[int]bool),
		revert:      make(map[int]bool),
		receipts:    make(map[common.Hash]*types.Receipt),
		receiptErrs: make(map[common.Hash]error),
		balances:    make(map[common.Address]*big.Int),
		code:        make(map[common.Address][]byte),
	}
}

func (f *fakeBackend) touch() {
	f.mux.Lock()
	f.calls++
	f.mux.Unlock()
}

func (f *fakeBackend) Calls() int {
	f.mux.Lock()
	defer f.mux.Unlock()
	return f.calls
}

func (f *fakeBackend) ChainID(_ context.Context) (*big.Int, error) {
	f.touch()
	return f.chainID, nil
}

func (f *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	f.touch()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	f.touch()
	return big.NewInt(1000000000), nil
}

func (f *fakeBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	f.touch()
	return 100000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.touch()

	f.mux.Lock()
	defer f.mux.Unlock()

	idx := f.attempts
	f.attempts++

	if err := f.failSend[idx]; err != nil {
		return err
	}

	f.sent = append(f.sent, tx)

	if err := f.receiptErr[idx]; err != nil {
		f.receiptErrs[tx.Hash()] = err
		return nil
	} else if f.unmined[idx] {
		return nil
	}

	status := types.ReceiptStatusSuccessful
	if f.revert[idx] {
		status = types.ReceiptStatusFailed
	}

	f.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(int64(len(f.sent))),
		GasUsed:     53000,
	}

	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.touch()

	f.mux.Lock()
	defer f.mux.Unlock()

	if err, ok := f.receiptErrs[txHash]; ok {
		return nil, err
	} else if receipt, ok := f.receipts[txHash]; ok {
		return receipt, nil
	}

	return nil, ethereum.NotFound
}

func (f *fakeBackend) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.touch()

	if len(f.revertData) == 0 {
		return nil, errors.New("execution reverted")
	}

	return f.revertData, nil
}

func (f *fakeBackend) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.touch()

	if b, ok := f.balances[account]; ok {
		return b, nil
	}

	return new(big.Int), nil
}

func (f *fakeBackend) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	f.touch()
	return f.code[account], nil
}

func (f *fakeBackend) sentNonces() []uint64 {
	nonces := make([]uint64, 0, len(f.sent))
	for _, tx := range f.sent {
		nonces = append(nonces, tx.Nonce())
	}

	return nonces
}

func testResult(names ...string) *sol.CompilationResult {
	result := &sol.CompilationResult{}
	for _, name := range names {
		result.Contracts = append(result.Contracts, &sol.Contract{
			Name: name,
			ABI:  json.RawMessage(`[]`),
			Bin:  testBytecode,
		})
	}

	return result
}

func newTestDeployer(t *testing.T, backend Backend, opts ...Option) Deployer {
	opts = append([]Option{
		OptionBackend(backend),
		OptionPollInterval(time.Millisecond),
	}, opts...)

	d, err := New(opts...)
	require.NoError(t, err)
	return d
}

// revertData encodes Error(string) the way solc does for require messages.
func revertData(t *testing.T, reason string) []byte {
	stringTy, err := abi.NewType("string", "", nil)
	require.NoError(t, err)

	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	require.NoError(t, err)

	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func TestDeployRecordsInOrder(t *testing.T) {
	assert := assert.New(t)

	backend := newFakeBackend()
	backend.nonce = 5
	d := newTestDeployer(t, backend)

	report, err := d.Deploy(context.Background(), testResult("Gamma", "Alpha", "Beta"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)

	assert.NotEmpty(report.RunID)
	assert.Equal("1337", report.ChainID)
	assert.Equal(testFrom.Hex(), report.From)
	require.Len(t, report.Records, 3)
	assert.True(report.AllSucceeded())

	for i, name := range []string{"Gamma", "Alpha", "Beta"} {
		rec := report.Records[i]
		assert.Equal(name, rec.ContractName)
		assert.Equal(StatusSuccess, rec.Status)
		assert.Equal(backend.sent[i].Hash().Hex(), rec.TransactionHash)
		assert.Equal(crypto.CreateAddress(testFrom, 5+uint64(i)).Hex(), rec.DeployedAddress)
		assert.Empty(rec.Error)
	}

	assert.Equal([]uint64{5, 6, 7}, backend.sentNonces())
}

func TestDeployRevertIsolated(t *testing.T) {
	assert := assert.New(t)

	backend := newFakeBackend()
	backend.revert[1] = true
	backend.revertData = revertData(t, "boom")
	d := newTestDeployer(t, backend)

	report, err := d.Deploy(context.Background(), testResult("A", "B", "C"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	assert.Equal(StatusSuccess, report.Records[0].Status)

	reverted := report.Records[1]
	assert.Equal(StatusReverted, reverted.Status)
	assert.Empty(reverted.DeployedAddress)
	assert.NotEmpty(reverted.TransactionHash)
	assert.Equal("execution reverted: boom", reverted.Error)
	assert.Equal(uint64(2), reverted.BlockNumber)

	assert.Equal(StatusSuccess, report.Records[2].Status)
	assert.Equal([]uint64{0, 1, 2}, backend.sentNonces())
	assert.Equal(1, report.CountByStatus(StatusReverted))
	assert.False(report.AllSucceeded())
}

func TestDeployRevertWithoutReason(t *testing.T) {
	backend := newFakeBackend()
	backend.revert[0] = true
	d := newTestDeployer(t, backend)

	report, err := d.Deploy(context.Background(), testResult("A"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusReverted, report.Records[0].Status)
	assert.Equal(t, "execution reverted", report.Records[0].Error)
}

func TestDeploySubmissionErrorIsolated(t *testing.T) {
	assert := assert.New(t)

	backend := newFakeBackend()
	backend.failSend[1] = errors.New("insufficient funds for gas * price + value")
	d := newTestDeployer(t, backend)

	report, err := d.Deploy(context.Background(), testResult("A", "B", "C"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	failed := report.Records[1]
	assert.Equal(StatusError, failed.Status)
	assert.NotEmpty(failed.TransactionHash)
	assert.Contains(failed.Error, "insufficient funds")
	assert.Empty(failed.DeployedAddress)

	assert.Equal(StatusSuccess, report.Records[0].Status)
	assert.Equal(StatusSuccess, report.Records[2].Status)

	// the failed submission does not consume a nonce
	assert.Equal([]uint64{0, 1}, backend.sentNonces())
	assert.Equal(crypto.CreateAddress(testFrom, 1).Hex(), report.Records[2].DeployedAddress)
}

func TestDeployAwaitErrorIsolated(t *testing.T) {
	assert := assert.New(t)

	backend := newFakeBackend()
	backend.receiptErr[1] = errors.New("connection reset by peer")
	d := newTestDeployer(t, backend)

	report, err := d.Deploy(context.Background(), testResult("A", "B", "C"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	failed := report.Records[1]
	assert.Equal(StatusError, failed.Status)
	assert.Equal(backend.sent[1].Hash().Hex(), failed.TransactionHash)
	assert.Contains(failed.Error, "connection reset by peer")
	assert.Empty(failed.DeployedAddress)

	// the submitted transaction consumed its nonce
	assert.Equal(StatusSuccess, report.Records[2].Status)
	assert.Equal([]uint64{0, 1, 2}, backend.sentNonces())
	assert.Equal(crypto.CreateAddress(testFrom, 2).Hex(), report.Records[2].DeployedAddress)
}

func TestDeployAwaitTimeout(t *testing.T) {
	assert := assert.New(t)

	backend := newFakeBackend()
	backend.unmined[0] = true
	d := newTestDeployer(t, backend, OptionTxTimeout(50*time.Millisecond))

	report, err := d.Deploy(context.Background(), testResult("A", "B"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 2)

	assert.Equal(StatusError, report.Records[0].Status)
	assert.NotEmpty(report.Records[0].TransactionHash)
	assert.Equal(ErrAwaitTimeout.Error(), report.Records[0].Error)

	assert.Equal(StatusSuccess, report.Records[1].Status)
	assert.Equal([]uint64{0, 1}, backend.sentNonces())
}

func TestDeployInvalidKey(t *testing.T) {
	for _, key := range []string{"not-a-key", "0xzz", "0x1234"} {
		backend := newFakeBackend()
		d := newTestDeployer(t, backend)

		report, err := d.Deploy(context.Background(), testResult("A"), ContractDeployOpts{
			SignerKey: key,
		})
		assert.Nil(t, report, key)
		assert.True(t, errors.Is(err, ErrInvalidKey), key)
		assert.Zero(t, backend.Calls(), key)
	}
}

func TestDeployKeyPrefixOptional(t *testing.T) {
	for _, key := range []string{testKey, "0x" + testKey} {
		backend := newFakeBackend()
		d := newTestDeployer(t, backend)

		report, err := d.Deploy(context.Background(), testResult("A"), ContractDeployOpts{
			SignerKey: key,
		})
		require.NoError(t, err, key)
		assert.Equal(t, testFrom.Hex(), report.From)
	}
}

func TestDeployDefaultSignerKey(t *testing.T) {
	backend := newFakeBackend()

	d := newTestDeployer(t, backend)
	_, err := d.Deploy(context.Background(), testResult("A"), ContractDeployOpts{})
	assert.Equal(t, ErrNoSignerKey, err)
	assert.Zero(t, backend.Calls())

	d = newTestDeployer(t, backend, OptionDefaultSignerKey("0x"+testKey))
	report, err := d.Deploy(context.Background(), testResult("A"), ContractDeployOpts{})
	require.NoError(t, err)
	assert.Equal(t, testFrom.Hex(), report.From)

	_, err = New(OptionDefaultSignerKey("bogus"))
	assert.Error(t, err)
}

func TestDeployNothing(t *testing.T) {
	d := newTestDeployer(t, newFakeBackend())

	_, err := d.Deploy(context.Background(), &sol.CompilationResult{}, ContractDeployOpts{SignerKey: testKey})
	assert.Equal(t, ErrNothingToDeploy, err)
}

func TestDeployWithoutAwait(t *testing.T) {
	backend := newFakeBackend()
	d := newTestDeployer(t, backend, OptionAwait(false))

	report, err := d.Deploy(context.Background(), testResult("A", "B"), ContractDeployOpts{
		SignerKey: testKey,
	})
	require.NoError(t, err)

	for _, rec := range report.Records {
		assert.Equal(t, StatusPending, rec.Status)
		assert.NotEmpty(t, rec.TransactionHash)
		assert.Empty(t, rec.DeployedAddress)
	}

	assert.Equal(t, []uint64{0, 1}, backend.sentNonces())
}

func TestDeployConstructorArgs(t *testing.T) {
	assert := assert.New(t)

	withArgs := `[{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"x","type":"uint256"}]}]`
	result := testResult("Plain", "WithArgs", "Forgotten")
	result.Contracts[1].ABI = json.RawMessage(withArgs)
	result.Contracts[2].ABI = json.RawMessage(withArgs)

	backend := newFakeBackend()
	d := newTestDeployer(t, backend, OptionGasLimit(500000), OptionGasPrice(big.NewInt(7)))

	report, err := d.Deploy(context.Background(), result, ContractDeployOpts{
		SignerKey: testKey,
		ConstructorArgs: map[string][]interface{}{
			"WithArgs": {big.NewInt(42)},
		},
	})
	require.NoError(t, err)
	require.Len(t, report.Records, 3)

	assert.Equal(StatusSuccess, report.Records[0].Status)
	assert.Equal(StatusSuccess, report.Records[1].Status)
	assert.Equal(StatusError, report.Records[2].Status)
	assert.Empty(report.Records[2].TransactionHash)

	require.Len(t, backend.sent, 2)
	expected := append(hexutil.MustDecode(testBytecode), common.LeftPadBytes(big.NewInt(42).Bytes(), 32)...)
	assert.Equal(expected, backend.sent[1].Data())
	assert.Equal(uint64(500000), backend.sent[1].Gas())
	assert.Equal(int64(7), backend.sent[1].GasPrice().Int64())
}

func TestDeployUniformConstructorArgs(t *testing.T) {
	result := testResult("A")
	result.Contracts[0].ABI = json.RawMessage(`[{"type":"constructor","inputs":[{"name":"ok","type":"bool"}]}]`)

	backend := newFakeBackend()
	d := newTestDeployer(t, backend, OptionConstructorArgsUniform(true))

	report, err := d.Deploy(context.Background(), result, ContractDeployOpts{SignerKey: testKey})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, report.Records[0].Status)
}

func TestAccountLockSerializesRuns(t *testing.T) {
	backend := newFakeBackend()
	d := newTestDeployer(t, backend)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := d.Deploy(context.Background(), testResult("A", "B"), ContractDeployOpts{SignerKey: testKey})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	// each run reads nonce 0 from the fake, but submissions never interleave
	nonces := backend.sentNonces()
	require.Len(t, nonces, 8)
	for i := 0; i < len(nonces); i += 2 {
		assert.Equal(t, []uint64{0, 1}, nonces[i:i+2])
	}
}

func TestRecordFinalizeOnce(t *testing.T) {
	assert := assert.New(t)

	report := &DeploymentReport{}
	rec := report.newRecord("A")
	assert.Equal(StatusPending, rec.Status)

	rec.submitted(common.HexToHash("0x01"))
	assert.Error(rec.finalize(StatusPending, nil))
	assert.NoError(rec.succeeded(common.HexToAddress("0x02"), 10, 21000))

	assert.Equal(ErrRecordFinalized, rec.finalize(StatusError, errors.New("late")))
	assert.Equal(StatusSuccess, rec.Status)
	assert.Empty(rec.Error)

	found, ok := report.Record("A")
	assert.True(ok)
	assert.Same(rec, found)

	_, ok = report.Record("B")
	assert.False(ok)
}
