package main

import (
	"io"
	"math/big"
	"os"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/deployer"
	"github.com/InjectiveLabs/solpipe/sol"
)

const (
	defaultRPCTimeout     = 10 * time.Second
	defaultTxTimeout      = 60 * time.Second
	defaultCallTimeout    = 10 * time.Second
	defaultCompileTimeout = 60 * time.Second
)

var (
	solcPathSet bool
	solcPath    = app.String(cli.StringOpt{
		Name:      "solc-path",
		Desc:      "Set path solc executable. Found using 'which' otherwise",
		EnvVar:    "SOLPIPE_SOLC_PATH",
		Value:     "",
		SetByUser: &solcPathSet,
	})

	solSource = app.String(cli.StringOpt{
		Name:   "S source",
		Desc:   "Set path for .sol source file, '-' reads the source text from stdin.",
		EnvVar: "SOLPIPE_SOL_SOURCE_FILE",
		Value:  "-",
	})

	evmEndpoint = app.String(cli.StringOpt{
		Name:   "E endpoint",
		Desc:   "Specify the JSON-RPC endpoint for accessing Ethereum node",
		EnvVar: "SOLPIPE_RPC_URI",
		Value:  "http://localhost:8545",
	})

	gasPriceSet bool
	gasPrice    = app.Int(cli.IntOpt{
		Name:      "G gas-price",
		Desc:      "Override estimated gas price with this option (wei).",
		EnvVar:    "SOLPIPE_TX_GAS_PRICE",
		Value:     0,
		SetByUser: &gasPriceSet,
	})

	gasLimit = app.Int(cli.IntOpt{
		Name:   "L gas-limit",
		Desc:   "Set the maximum gas for tx. Estimated per contract when 0.",
		EnvVar: "SOLPIPE_TX_GAS_LIMIT",
		Value:  0,
	})

	signerType = app.String(cli.StringOpt{
		Name:   "signer",
		Desc:   "Transaction signer to use (eip155 or homestead).",
		EnvVar: "SOLPIPE_SIGNER_TYPE",
		Value:  string(deployer.SignerEIP155),
	})

	buildCacheDir = app.String(cli.StringOpt{
		Name:   "cache-dir",
		Desc:   "Set cache dir for build artifacts.",
		EnvVar: "SOLPIPE_CACHE_DIR",
		Value:  "build/",
	})

	noCache = app.Bool(cli.BoolOpt{
		Name:   "no-cache",
		Desc:   "Disables build cache completely.",
		EnvVar: "SOLPIPE_DISABLE_CACHE",
		Value:  false,
	})

	optimizerRuns = app.Int(cli.IntOpt{
		Name:   "optimizer-runs",
		Desc:   "Optimizer runs, 0 disables the optimizer.",
		EnvVar: "SOLPIPE_OPTIMIZER_RUNS",
		Value:  200,
	})

	evmVersion = app.String(cli.StringOpt{
		Name:   "evm-version",
		Desc:   "Target EVM version, compiler default when empty.",
		EnvVar: "SOLPIPE_EVM_VERSION",
		Value:  "",
	})

	importRoot = app.String(cli.StringOpt{
		Name:   "import-root",
		Desc:   "Local dir that known import prefixes resolve to. Current dir when empty.",
		EnvVar: "SOLPIPE_IMPORT_ROOT",
		Value:  "",
	})

	importPrefixes = app.Strings(cli.StringsOpt{
		Name:   "import-prefix",
		Desc:   "Import namespace prefix resolved from the import root.",
		EnvVar: "SOLPIPE_IMPORT_PREFIXES",
		Value:  sol.DefaultImportPrefixes,
	})

	rpcTimeout = app.String(cli.StringOpt{
		Name:   "rpc-timeout",
		Desc:   "Timeout of a single RPC request.",
		EnvVar: "SOLPIPE_RPC_TIMEOUT",
		Value:  defaultRPCTimeout.String(),
	})

	txTimeout = app.String(cli.StringOpt{
		Name:   "tx-timeout",
		Desc:   "How long to await a transaction receipt.",
		EnvVar: "SOLPIPE_TX_TIMEOUT",
		Value:  defaultTxTimeout.String(),
	})

	callTimeout = app.String(cli.StringOpt{
		Name:   "call-timeout",
		Desc:   "Timeout of read-only calls.",
		EnvVar: "SOLPIPE_CALL_TIMEOUT",
		Value:  defaultCallTimeout.String(),
	})

	compileTimeout = app.String(cli.StringOpt{
		Name:   "compile-timeout",
		Desc:   "Timeout of a single compiler run.",
		EnvVar: "SOLPIPE_COMPILE_TIMEOUT",
		Value:  defaultCompileTimeout.String(),
	})
)

func duration(s string, defaults time.Duration) time.Duration {
	dur, err := time.ParseDuration(s)
	if err != nil {
		log.WithError(err).Warningln("failed to parse duration, using default", defaults)
		return defaults
	}

	return dur
}

func newDeployer(extra ...deployer.Option) deployer.Deployer {
	opts := []deployer.Option{
		deployer.OptionRPCTimeout(duration(*rpcTimeout, defaultRPCTimeout)),
		deployer.OptionTxTimeout(duration(*txTimeout, defaultTxTimeout)),
		deployer.OptionCallTimeout(duration(*callTimeout, defaultCallTimeout)),
		deployer.OptionCompileTimeout(duration(*compileTimeout, defaultCompileTimeout)),

		deployer.OptionEVMRPCEndpoint(*evmEndpoint),
		deployer.OptionSignerType(deployer.SignerType(*signerType)),
		deployer.OptionGasLimit(uint64(*gasLimit)),

		deployer.OptionNoCache(*noCache),
		deployer.OptionBuildCacheDir(*buildCacheDir),
		deployer.OptionOptimizerRuns(*optimizerRuns),
		deployer.OptionEVMVersion(sol.EVMVersion(*evmVersion)),
		deployer.OptionImportPaths(*importRoot, *importPrefixes...),
	}

	if solcPathSet {
		opts = append(opts, deployer.OptionSolcPath(*solcPath))
	}

	if gasPriceSet {
		opts = append(opts, deployer.OptionGasPrice(big.NewInt(int64(*gasPrice))))
	}

	d, err := deployer.New(append(opts, extra...)...)
	if err != nil {
		log.WithError(err).Fatalln("failed to init deployer")
	}

	return d
}

func readSource() (string, error) {
	var (
		body []byte
		err  error
	)

	if *solSource == "-" {
		body, err = io.ReadAll(os.Stdin)
	} else {
		body, err = os.ReadFile(*solSource)
	}

	if err != nil {
		err = errors.Wrap(err, "failed to read Solidity source")
		return "", err
	}

	return string(body), nil
}
