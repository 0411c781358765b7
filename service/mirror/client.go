// Package mirror reads accounts, tokens and transactions from a ledger mirror
// node and normalizes them for the host.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/brojonat/ledgerbridge/service/metrics"
	"github.com/brojonat/ledgerbridge/service/transport"
)

const defaultConcurrency = 10

// Options configures a Client.
type Options struct {
	// BaseURL is the mirror node root, e.g. https://testnet.mirrornode.hedera.com.
	BaseURL string
	// Network labels metrics and logs.
	Network string
	// Concurrency caps in-flight transaction detail queries per page.
	Concurrency int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Client queries one mirror node. Mirror endpoints are read-only and
// unauthenticated, so no headers are sent.
type Client struct {
	baseURL     string
	network     string
	concurrency int
	http        *transport.Client
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// NewClient creates a mirror client on top of a retrying transport.
func NewClient(httpClient *transport.Client, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		network:     opts.Network,
		concurrency: concurrency,
		http:        httpClient,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// Get fetches {baseURL}/{path} and decodes the JSON body into out.
// A leading slash on path is ignored so pagination links can be passed as-is.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	u := c.baseURL + "/" + strings.TrimPrefix(path, "/")
	if err := c.http.GetJSON(ctx, u, nil, out); err != nil {
		return fmt.Errorf("mirror GET %s: %w", path, err)
	}
	return nil
}

// AccountsForPublicKey returns the ids of accounts whose key matches the raw
// public key hex. Name lookup is optional, so any failure yields an empty list.
func (c *Client) AccountsForPublicKey(ctx context.Context, publicKeyHex string) []string {
	ids, err := c.accountsForPublicKey(ctx, publicKeyHex)
	if err != nil {
		c.logger.WarnContext(ctx, "account lookup by public key failed, returning empty list",
			"public_key", publicKeyHex,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordSoftFailure("accounts_for_public_key")
		}
		return []string{}
	}
	return ids
}

func (c *Client) accountsForPublicKey(ctx context.Context, publicKeyHex string) ([]string, error) {
	var resp accountsResponse
	path := "api/v1/accounts?account.publickey=" + url.QueryEscape(publicKeyHex)
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		ids = append(ids, a.Account)
	}
	return ids, nil
}

// Account fetches account info, including its EVM address and key.
func (c *Client) Account(ctx context.Context, accountID string) (*AccountInfo, error) {
	var info AccountInfo
	if err := c.Get(ctx, "api/v1/accounts/"+url.PathEscape(accountID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Balance returns the account's hbar balance in display units plus its
// token balances.
func (c *Client) Balance(ctx context.Context, accountID string) (*Balance, error) {
	info, err := c.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	b := &Balance{AccountID: info.Account, Tokens: []TokenBalance{}}
	if info.Balance != nil {
		b.Balance = toDisplayUnits(info.Balance.Balance)
		if info.Balance.Tokens != nil {
			b.Tokens = info.Balance.Tokens
		}
	}
	return b, nil
}

// Token fetches token metadata.
func (c *Client) Token(ctx context.Context, tokenID string) (*TokenInfo, error) {
	var info TokenInfo
	if err := c.Get(ctx, "api/v1/tokens/"+url.PathEscape(tokenID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}
