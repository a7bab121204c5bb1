package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/sol"
)

func onBuild(cmd *cli.Cmd) {
	standardJSON := cmd.BoolOpt("j standard-json", false, "Output standard JSON for use in --standard-json of solc, also Etherscan verification")
	full := cmd.BoolOpt("full", false, "Output the whole compilation result as JSON instead of bytecode only")

	cmd.Action = func() {
		source, err := readSource()
		if err != nil {
			log.Fatalln(err)
		}

		if *standardJSON {
			input, importDiags, err := sol.StandardJSON(source, sol.CompileSettings{
				OptimizerRuns: *optimizerRuns,
				EVMVersion:    sol.EVMVersion(*evmVersion),
			}, sol.NewPrefixResolver(*importRoot, *importPrefixes...))
			if err != nil {
				log.Fatalln(err)
			}

			for _, d := range importDiags {
				log.Warningln(d.String())
			}

			var pretty json.RawMessage = input
			out, _ := json.MarshalIndent(pretty, "", "\t")
			fmt.Println(string(out))
			return
		}

		result, err := newDeployer().Build(context.Background(), source)
		if err != nil {
			log.Fatalln(err)
		}

		if *full {
			out, _ := json.MarshalIndent(result, "", "\t")
			fmt.Println(string(out))
			return
		}

		for _, contract := range result.Contracts {
			fmt.Printf("%s: %s\n", contract.Name, contract.Bin)
		}
	}
}
