package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/brojonat/ledgerbridge/service/contract"
	"github.com/brojonat/ledgerbridge/service/evm"
	"github.com/urfave/cli/v2"
)

func contractCommands() *cli.Command {
	return &cli.Command{
		Name:  "contract",
		Usage: "Contract call encoding helpers",
		Subcommands: []*cli.Command{
			contractSelectorCommand(),
			contractEncodeCommand(),
		},
	}
}

func contractSelectorCommand() *cli.Command {
	return &cli.Command{
		Name:      "selector",
		Usage:     "Print the 4-byte selector of a function signature",
		ArgsUsage: "SIGNATURE",
		Description: `Example:
  ledgerbridge contract selector "transfer(address,uint256)"`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("function signature is required")
			}
			return printOutput(c, hex.EncodeToString(contract.Selector(c.Args().First())))
		},
	}
}

type encodeOutput struct {
	Signature string   `json:"signature"`
	Types     []string `json:"types"`
	CallData  string   `json:"callData"`
}

func contractEncodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "Encode a parameter descriptor list into call data",
		ArgsUsage: "FUNCTION_NAME [PARAMS_JSON]",
		Description: `Account ids in address parameters are resolved through the mirror node.

Example:
  ledgerbridge contract encode transfer '[{"type":"address","value":["0.0.1234"]},{"type":"uint256","value":["10"]}]'`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "params-file",
				Aliases: []string{"f"},
				Usage:   "Read the descriptor list from a file instead of an argument",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("function name is required")
			}
			functionName := c.Args().Get(0)

			var data []byte
			switch {
			case c.String("params-file") != "":
				b, err := os.ReadFile(c.String("params-file"))
				if err != nil {
					return fmt.Errorf("failed to read params file: %w", err)
				}
				data = b
			case c.NArg() >= 2:
				data = []byte(c.Args().Get(1))
			default:
				data = []byte("[]")
			}

			mc, err := newMirrorClient(c)
			if err != nil {
				return err
			}
			call, err := contract.ParseAndEncode(c.Context, data, evm.NewResolver(mc))
			if err != nil {
				return err
			}
			callData, err := contract.CallData(functionName, call)
			if err != nil {
				return err
			}
			return printOutput(c, encodeOutput{
				Signature: call.Signature(functionName),
				Types:     call.Types,
				CallData:  hex.EncodeToString(callData),
			})
		},
	}
}
