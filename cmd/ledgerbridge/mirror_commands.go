package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/brojonat/ledgerbridge/service/evm"
	"github.com/brojonat/ledgerbridge/service/mirror"
	"github.com/brojonat/ledgerbridge/service/network"
	"github.com/brojonat/ledgerbridge/service/transport"
	"github.com/urfave/cli/v2"
)

// newMirrorClient builds a mirror client for the --network flag, honouring
// --mirror-url when set.
func newMirrorClient(c *cli.Context) (*mirror.Client, error) {
	endpoint, err := network.Parse(c.String("network"))
	if err != nil {
		return nil, err
	}
	baseURL := endpoint.MirrorURL()
	if u := c.String("mirror-url"); u != "" {
		baseURL = u
	}

	logger := setupLogger(c.String("log-level"))
	httpClient := transport.NewClient(transport.Options{
		Service:    "mirror",
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Logger:     logger,
	})
	return mirror.NewClient(httpClient, mirror.Options{
		BaseURL: baseURL,
		Network: endpoint.Name(),
		Logger:  logger,
	}), nil
}

func mirrorCommands() *cli.Command {
	return &cli.Command{
		Name:  "mirror",
		Usage: "Query the mirror node directly",
		Subcommands: []*cli.Command{
			mirrorAccountsCommand(),
			mirrorBalanceCommand(),
			mirrorTransactionsCommand(),
			mirrorTokenCommand(),
		},
	}
}

func mirrorAccountsCommand() *cli.Command {
	return &cli.Command{
		Name:      "accounts",
		Usage:     "List accounts keyed by a public key",
		ArgsUsage: "PUBLIC_KEY_HEX",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("public key is required")
			}
			mc, err := newMirrorClient(c)
			if err != nil {
				return err
			}
			return printOutput(c, mc.AccountsForPublicKey(c.Context, c.Args().First()))
		},
	}
}

func mirrorBalanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show an account's hbar and token balances",
		ArgsUsage: "ACCOUNT_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("account id is required")
			}
			mc, err := newMirrorClient(c)
			if err != nil {
				return err
			}
			balance, err := mc.Balance(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printOutput(c, balance)
		},
	}
}

func mirrorTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "transactions",
		Aliases:   []string{"txns", "tx"},
		Usage:     "List one page of an account's transactions, newest first",
		ArgsUsage: "ACCOUNT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "next-page",
				Usage: "Cursor returned as nextPage by a previous call",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Only return transactions of this type, e.g. CRYPTOTRANSFER",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("account id is required")
			}
			mc, err := newMirrorClient(c)
			if err != nil {
				return err
			}
			page, err := mc.TransactionsForAccount(c.Context, c.Args().First(), c.String("next-page"), c.String("type"))
			if err != nil {
				return err
			}
			return printOutput(c, page)
		},
	}
}

func mirrorTokenCommand() *cli.Command {
	return &cli.Command{
		Name:      "token",
		Usage:     "Show token metadata",
		ArgsUsage: "TOKEN_ID",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("token id is required")
			}
			mc, err := newMirrorClient(c)
			if err != nil {
				return err
			}
			info, err := mc.Token(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printOutput(c, info)
		},
	}
}

func evmCommands() *cli.Command {
	return &cli.Command{
		Name:  "evm",
		Usage: "EVM address helpers",
		Subcommands: []*cli.Command{
			{
				Name:      "address",
				Usage:     "Resolve an account id to its EVM address",
				ArgsUsage: "ACCOUNT_ID",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("account id is required")
					}
					mc, err := newMirrorClient(c)
					if err != nil {
						return err
					}
					addr, err := evm.NewResolver(mc).ToEVMAddress(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return printOutput(c, addr)
				},
			},
			{
				Name:      "solidity-address",
				Usage:     "Encode shard.realm.num as a 20-byte address without a mirror lookup",
				ArgsUsage: "ACCOUNT_ID",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("account id is required")
					}
					addr, err := evm.SolidityAddress(c.Args().First())
					if err != nil {
						return err
					}
					return printOutput(c, addr)
				},
			},
		},
	}
}
