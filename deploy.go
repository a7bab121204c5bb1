package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	log "github.com/xlab/suplog"

	"github.com/InjectiveLabs/solpipe/deployer"
)

func onDeploy(cmd *cli.Cmd) {
	await := cmd.BoolOpt("await", true, "Await transaction confirmation from the RPC.")
	contractArgs := cmd.StringsOpt("A arg", []string{}, "Constructor arguments as Contract=arg1,arg2. Will be ABI-encoded.")

	cmd.Action = func() {
		source, err := readSource()
		if err != nil {
			log.Fatalln(err)
		}

		key, err := resolveSignerKey()
		if err != nil {
			log.WithError(err).Fatalln("failed to get signer key")
		}

		args, err := parseConstructorArgs(*contractArgs)
		if err != nil {
			log.Fatalln(err)
		}

		d := newDeployer(
			deployer.OptionAwait(*await),
			deployer.OptionDefaultSignerKey(key),
		)

		report, err := d.CompileAndDeploy(context.Background(), deployer.CompileAndDeployRequest{
			SourceCode:      source,
			ConstructorArgs: args,
		})
		if err != nil {
			log.Fatalln(err)
		}

		out, _ := json.MarshalIndent(report, "", "\t")
		fmt.Println(string(out))

		if failed := len(report.Records) - report.CountByStatus(deployer.StatusSuccess) - report.CountByStatus(deployer.StatusPending); failed > 0 {
			log.WithField("run", report.RunID).Warningf("%d of %d contracts failed to deploy", failed, len(report.Records))
		}
	}
}

// parseConstructorArgs turns Contract=a,b,c values into per-contract argument lists.
func parseConstructorArgs(values []string) (map[string][]string, error) {
	args := make(map[string][]string, len(values))

	for _, v := range values {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 || len(parts[0]) == 0 {
			return nil, errors.Errorf("malformed constructor args %q, expected Contract=arg1,arg2", v)
		}

		if len(parts[1]) == 0 {
			args[parts[0]] = []string{}
			continue
		}

		args[parts[0]] = strings.Split(parts[1], ",")
	}

	return args, nil
}
