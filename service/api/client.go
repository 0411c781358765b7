// Package api calls the primary wallet API for operations that need its
// credentials: account creation and fee-paid contract calls.
package api

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/brojonat/ledgerbridge/service/config"
	"github.com/brojonat/ledgerbridge/service/transport"
)

// ErrMissingCredentials is returned before any request when the SDK token or
// dApp code is not configured.
var ErrMissingCredentials = errors.New("primary API credentials are not configured")

// Options configures a Client.
type Options struct {
	BaseURL     string
	Network     string // X-NETWORK value: "Mainnet" or "Testnet"
	SDKToken    string
	DAppCode    string
	Fingerprint string
	Logger      *slog.Logger
}

// OptionsFromConfig builds Options for the configured network.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BaseURL:     cfg.Network.APIURL(),
		Network:     cfg.Network.Header(),
		SDKToken:    cfg.SDKToken,
		DAppCode:    cfg.DAppCode,
		Fingerprint: cfg.Fingerprint,
	}
}

// Client is a primary API client.
type Client struct {
	opts   Options
	http   *transport.Client
	logger *slog.Logger
}

// NewClient creates a primary API client on top of a retrying transport.
func NewClient(httpClient *transport.Client, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{opts: opts, http: httpClient, logger: logger}
}

// Account is the primary API's account creation response.
type Account struct {
	ID                            string `json:"id"`
	TransactionID                 string `json:"transactionId,omitempty"`
	TransactionBytes              string `json:"transactionBytes,omitempty"`
	UpdateAccountTransactionBytes string `json:"updateAccountTransactionBytes,omitempty"`
	Status                        string `json:"status,omitempty"`
}

type createAccountRequest struct {
	PublicKey string `json:"publicKey"`
}

// CreateAccount asks the primary API to create an account for publicKey.
func (c *Client) CreateAccount(ctx context.Context, publicKey string) (*Account, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	if c.opts.Fingerprint == "" {
		return nil, fmt.Errorf("%w: device fingerprint is required for account creation", ErrMissingCredentials)
	}

	headers := c.headers()
	headers["X-FINGERPRINT"] = c.opts.Fingerprint

	var account Account
	if err := c.http.PostJSON(ctx, c.opts.BaseURL+"/accounts", headers, createAccountRequest{PublicKey: publicKey}, &account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	c.logger.InfoContext(ctx, "account created",
		"account_id", account.ID,
		"network", c.opts.Network,
	)
	return &account, nil
}

type signRequest struct {
	FunctionParametersHash string `json:"functionParametersHash"`
	ContractID             string `json:"contractId"`
	Gas                    uint64 `json:"gas"`
}

type signResponse struct {
	TransactionBytes string `json:"transactionBytes"`
}

// SignContractCall has the primary API prepare a fee-paid contract call and
// returns the prepared transaction bytes.
func (c *Client) SignContractCall(ctx context.Context, contractID string, callData []byte, gas uint64) ([]byte, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}

	req := signRequest{
		FunctionParametersHash: base64.StdEncoding.EncodeToString(callData),
		ContractID:             contractID,
		Gas:                    gas,
	}
	var resp signResponse
	if err := c.http.PostJSON(ctx, c.opts.BaseURL+"/smart/contract/sign", c.headers(), req, &resp); err != nil {
		return nil, fmt.Errorf("sign contract call: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.TransactionBytes)
	if err != nil {
		return nil, fmt.Errorf("sign contract call: invalid transactionBytes: %w", err)
	}
	if len(raw) == 0 {
		return nil, errors.New("sign contract call: empty transactionBytes")
	}
	return raw, nil
}

func (c *Client) checkCredentials() error {
	if c.opts.SDKToken == "" || c.opts.DAppCode == "" {
		return ErrMissingCredentials
	}
	return nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"X-SDK-TOKEN": c.opts.SDKToken,
		"X-NETWORK":   c.opts.Network,
		"X-DAPP-CODE": c.opts.DAppCode,
	}
}
