package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/jawher/mow.cli"
	log "github.com/xlab/suplog"
)

func onBalance(cmd *cli.Cmd) {
	address := cmd.StringArg("ADDRESS", "", "Account address.")

	cmd.Action = func() {
		balance, err := newDeployer().GetBalance(context.Background(), *address)
		if err != nil {
			log.Fatalln(err)
		}

		fmt.Printf("%s ETH (%s wei)\n", balance.Ether.String(), balance.Wei.String())
	}
}

func onReceipt(cmd *cli.Cmd) {
	txHash := cmd.StringArg("TX_HASH", "", "Transaction hash.")

	cmd.Action = func() {
		receipt, err := newDeployer().GetTransactionReceipt(context.Background(), *txHash)
		if err != nil {
			log.Fatalln(err)
		}

		out, _ := json.MarshalIndent(receipt, "", "\t")
		fmt.Println(string(out))
	}
}

func onCode(cmd *cli.Cmd) {
	address := cmd.StringArg("ADDRESS", "", "Contract address.")

	cmd.Action = func() {
		d := newDeployer()

		code, err := d.GetCode(context.Background(), *address)
		if err != nil {
			log.Fatalln(err)
		}

		if code == "0x" {
			log.Warningln("no contract deployed at", *address)
		}

		fmt.Println(code)
	}
}

func onChainID(cmd *cli.Cmd) {
	cmd.Action = func() {
		chainID, err := newDeployer().GetChainID(context.Background())
		if err != nil {
			log.Fatalln(err)
		}

		fmt.Println(chainID.String())
	}
}
