package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/brojonat/ledgerbridge/service/keys"
	"github.com/urfave/cli/v2"
)

func keysCommands() *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Private key and recovery phrase helpers",
		Subcommands: []*cli.Command{
			keysShowCommand(),
			keysSignCommand(),
			keysMnemonicCommand(),
		},
	}
}

type keyInfo struct {
	Type       keys.KeyType `json:"type"`
	PublicKey  string       `json:"publicKey"`
	EVMAddress string       `json:"evmAddress,omitempty"`
}

func keysShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the public key and EVM address of a private key",
		ArgsUsage: "PRIVATE_KEY_HEX",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("private key is required")
			}
			key, err := keys.ParsePrivateKey(c.Args().First())
			if err != nil {
				return err
			}
			info := keyInfo{Type: key.Type(), PublicKey: key.PublicKeyHex()}
			if addr, ok := key.EVMAddress(); ok {
				info.EVMAddress = addr
			}
			return printOutput(c, info)
		},
	}
}

func keysSignCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "Sign a message and print the hex signature",
		ArgsUsage: "PRIVATE_KEY_HEX MESSAGE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "base64",
				Usage: "MESSAGE is base64 encoded",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return fmt.Errorf("private key and message are required")
			}
			key, err := keys.ParsePrivateKey(c.Args().Get(0))
			if err != nil {
				return err
			}
			message := []byte(c.Args().Get(1))
			if c.Bool("base64") {
				message, err = base64.StdEncoding.DecodeString(c.Args().Get(1))
				if err != nil {
					return fmt.Errorf("message is not base64: %w", err)
				}
			}
			sig, err := key.Sign(message)
			if err != nil {
				return err
			}
			return printOutput(c, hex.EncodeToString(sig))
		},
	}
}

func keysMnemonicCommand() *cli.Command {
	return &cli.Command{
		Name:  "mnemonic",
		Usage: "Generate a 24-word recovery phrase",
		Action: func(c *cli.Context) error {
			m, err := keys.NewMnemonic()
			if err != nil {
				return err
			}
			return printOutput(c, m)
		},
	}
}
