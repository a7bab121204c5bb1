package main

import (
	"fmt"
	"os"

	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"
)

var app = cli.App("solpipe", "Compiles Solidity source text with solc and deploys every contract in it to an EVM network. Requires solc >= 0.5.0")

func main() {
	app.Action = func() {
		fmt.Println("You should use either build, deploy or one of the query commands. See --help for more info.")
	}

	app.Command("build", "Compiles given source and caches build artefacts. Optional step.", onBuild)
	app.Command("deploy", "Compiles given source and deploys all its contracts in order. Prints JSON report.", onDeploy)
	app.Command("balance", "Prints balance of an account.", onBalance)
	app.Command("receipt", "Prints receipt of a transaction.", onReceipt)
	app.Command("code", "Prints runtime bytecode deployed at address.", onCode)
	app.Command("chain-id", "Prints chain ID of the EVM endpoint.", onChainID)

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
