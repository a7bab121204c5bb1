package main

import (
	"fmt"
	"os"
	"strings"

	cli "github.com/jawher/mow.cli"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/InjectiveLabs/solpipe/deployer"
)

var signerKey = app.String(cli.StringOpt{
	Name:   "P signer-key",
	Desc:   "Provide a raw Ethereum private key in hex used to sign deployments.",
	EnvVar: "SOLPIPE_SIGNER_KEY",
})

// resolveSignerKey returns the configured key, asking on the terminal when none
// is set and stdin is interactive. The key is validated before use.
func resolveSignerKey() (string, error) {
	key := strings.TrimSpace(*signerKey)

	if len(key) == 0 {
		if *solSource == "-" || !term.IsTerminal(int(os.Stdin.Fd())) {
			return "", deployer.ErrNoSignerKey
		}

		var err error
		if key, err = signerKeyFromTerminal(); err != nil {
			return "", err
		}
	}

	if _, err := deployer.NormalizeKey(key); err != nil {
		return "", err
	}

	return key, nil
}

func signerKeyFromTerminal() (string, error) {
	fmt.Fprint(os.Stderr, "Private key of the deploying account: ")
	defer fmt.Fprintln(os.Stderr)

	keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		err = errors.Wrap(err, "failed to read private key from stdin")
		return "", err
	}

	return strings.TrimSpace(string(keyBytes)), nil
}
