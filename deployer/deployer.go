package deployer

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/sol"
)

var (
	ErrCompilerNotFound = errors.New("unable to locate Solidity compiler")
)

type Option func(o *options) error

func New(opts ...Option) (Deployer, error) {
	d := &deployer{
		options: defaultOptions(),
	}

	for _, o := range opts {
		if err := o(d.options); err != nil {
			err = errors.Wrap(err, "error in deployer Option")
			return nil, err
		}
	}

	if d.options.Compiler != nil {
		d.compiler = d.options.Compiler
	}

	if d.options.Backend != nil {
		d.client = d.options.Backend
	}

	return d, nil
}

type Deployer interface {
	// Build compiles literal source text into an ordered set of artifacts.
	Build(
		ctx context.Context,
		source string,
	) (*sol.CompilationResult, error)

	// Deploy submits one contract creation per artifact, strictly in order.
	// Per-contract failures end up in the report, not in the error.
	Deploy(
		ctx context.Context,
		result *sol.CompilationResult,
		deployOpts ContractDeployOpts,
	) (*DeploymentReport, error)

	CompileAndDeploy(
		ctx context.Context,
		req CompileAndDeployRequest,
	) (*DeploymentReport, error)

	GetBalance(ctx context.Context, address string) (*Balance, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error)
	GetCode(ctx context.Context, address string) (string, error)
	IsContract(ctx context.Context, address string) (bool, error)
	GetChainID(ctx context.Context) (*big.Int, error)

	Backend() (Backend, error)
	Compiler() (sol.Compiler, error)
}

type deployer struct {
	options *options

	initClientOnce sync.Once
	client         Backend

	initCompilerOnce sync.Once
	compiler         sol.Compiler

	accountLocks sync.Map
}

type options struct {
	RPCTimeout     time.Duration
	TxTimeout      time.Duration
	CallTimeout    time.Duration
	CompileTimeout time.Duration
	PollInterval   time.Duration

	EVMRPCEndpoint string
	SignerType     SignerType
	GasPrice       *big.Int
	GasLimit       uint64
	Await          bool

	DefaultSignerKey       string
	UniformConstructorArgs []interface{}

	NoCache        bool
	BuildCacheDir  string
	SolcPath       string
	SolcPathSet    bool
	OptimizerRuns  int
	EVMVersion     sol.EVMVersion
	ImportRoot     string
	ImportPrefixes []string
	ImportResolver sol.ImportResolver

	Compiler sol.Compiler
	Backend  Backend
}

func defaultOptions() *options {
	return &options{
		RPCTimeout:     10 * time.Second,
		TxTimeout:      60 * time.Second,
		CallTimeout:    10 * time.Second,
		CompileTimeout: 60 * time.Second,
		PollInterval:   time.Second,

		EVMRPCEndpoint: "http://localhost:8545",
		SignerType:     SignerEIP155,
		Await:          true,
		NoCache:        true,
		BuildCacheDir:  "build/",
		OptimizerRuns:  200,
	}
}

func OptionRPCTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.RPCTimeout = dur
		}

		return nil
	}
}

func OptionTxTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.TxTimeout = dur
		}

		return nil
	}
}

func OptionCallTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.CallTimeout = dur
		}

		return nil
	}
}

func OptionCompileTimeout(dur time.Duration) Option {
	return func(o *options) error {
		if dur > time.Millisecond {
			o.CompileTimeout = dur
		}

		return nil
	}
}

// OptionPollInterval sets how often a pending receipt is polled.
func OptionPollInterval(dur time.Duration) Option {
	return func(o *options) error {
		if dur <= 0 {
			return errors.New("poll interval must be positive")
		}

		o.PollInterval = dur
		return nil
	}
}

func OptionEVMRPCEndpoint(endpoint string) Option {
	return func(o *options) error {
		if len(endpoint) == 0 {
			return errors.New("empty EVM RPC endpoint provided")
		}

		o.EVMRPCEndpoint = endpoint
		return nil
	}
}

func OptionSignerType(signerType SignerType) Option {
	return func(o *options) error {
		if len(signerType) == 0 {
			return errors.New("signer type not specified")
		}

		o.SignerType = signerType
		return nil
	}
}

// OptionGasPrice fixes the gas price, otherwise it is suggested by the node.
func OptionGasPrice(price *big.Int) Option {
	return func(o *options) error {
		if price != nil && price.Sign() > 0 {
			o.GasPrice = price
		}

		return nil
	}
}

// OptionGasLimit fixes the gas limit, otherwise it is estimated per contract.
func OptionGasLimit(gasLimit uint64) Option {
	return func(o *options) error {
		if gasLimit == 0 {
			o.GasLimit = 0
			return nil
		} else if gasLimit < 21000 {
			return errors.New("gas limit too low")
		}

		o.GasLimit = gasLimit
		return nil
	}
}

func OptionAwait(await bool) Option {
	return func(o *options) error {
		o.Await = await
		return nil
	}
}

// OptionDefaultSignerKey sets the credential used when a deployment request
// carries none.
func OptionDefaultSignerKey(key string) Option {
	return func(o *options) error {
		if len(key) == 0 {
			return nil
		}

		if _, err := NormalizeKey(key); err != nil {
			return errors.Wrap(err, "default signer key")
		}

		o.DefaultSignerKey = key
		return nil
	}
}

// OptionConstructorArgsUniform applies the same constructor arguments to every
// contract lacking its own. Kept for callers relying on the old behaviour.
func OptionConstructorArgsUniform(args ...interface{}) Option {
	return func(o *options) error {
		o.UniformConstructorArgs = args
		return nil
	}
}

func OptionNoCache(noCache bool) Option {
	return func(o *options) error {
		o.NoCache = noCache
		return nil
	}
}

func OptionBuildCacheDir(dir string) Option {
	return func(o *options) error {
		if len(dir) == 0 {
			return errors.New("empty build cache dir provided")
		}

		o.BuildCacheDir = dir
		return nil
	}
}

func OptionSolcPath(dir string) Option {
	return func(o *options) error {
		if len(dir) == 0 {
			o.SolcPathSet = false
		} else {
			o.SolcPathSet = true
		}

		o.SolcPath = dir
		return nil
	}
}

func OptionOptimizerRuns(runs int) Option {
	return func(o *options) error {
		if runs < 0 {
			return errors.New("optimizer runs cannot be negative")
		}

		o.OptimizerRuns = runs
		return nil
	}
}

func OptionEVMVersion(version sol.EVMVersion) Option {
	return func(o *options) error {
		o.EVMVersion = version
		return nil
	}
}

// OptionImportPaths configures the namespace prefixes resolved from root.
func OptionImportPaths(root string, prefixes ...string) Option {
	return func(o *options) error {
		o.ImportRoot = root
		o.ImportPrefixes = prefixes
		return nil
	}
}

func OptionImportResolver(resolver sol.ImportResolver) Option {
	return func(o *options) error {
		o.ImportResolver = resolver
		return nil
	}
}

func OptionCompiler(compiler sol.Compiler) Option {
	return func(o *options) error {
		o.Compiler = compiler
		return nil
	}
}

func OptionBackend(backend Backend) Option {
	return func(o *options) error {
		o.Backend = backend
		return nil
	}
}

func (d *deployer) Compiler() (sol.Compiler, error) {
	d.initCompilerOnce.Do(func() {
		if d.compiler != nil {
			return
		}

		solcPath := d.options.SolcPath
		if !d.options.SolcPathSet {
			solcPathFound, err := sol.WhichSolc()
			if err != nil {
				log.WithError(err).Errorln("failed to find solc compiler")
				return
			}

			solcPath = solcPathFound
		}

		solc, err := sol.NewSolCompiler(solcPath)
		if err != nil {
			log.WithField("path", solcPath).WithError(err).Errorln("failed to find solc compiler at path")
			return
		}

		d.compiler = solc
	})

	if d.compiler == nil {
		return nil, ErrCompilerNotFound
	}

	return d.compiler, nil
}

func (d *deployer) importResolver() sol.ImportResolver {
	if d.options.ImportResolver != nil {
		return d.options.ImportResolver
	}

	return sol.NewPrefixResolver(d.options.ImportRoot, d.options.ImportPrefixes...)
}

func (d *deployer) compileSettings() sol.CompileSettings {
	return sol.CompileSettings{
		OptimizerRuns: d.options.OptimizerRuns,
		EVMVersion:    d.options.EVMVersion,
	}
}

// accountLock serializes deployment runs signed by the same account.
func (d *deployer) accountLock(key string) *sync.Mutex {
	mux, _ := d.accountLocks.LoadOrStore(key, new(sync.Mutex))
	return mux.(*sync.Mutex)
}
