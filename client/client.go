package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/ledgerbridge/service/api"
	"github.com/brojonat/ledgerbridge/service/bridge"
	"github.com/brojonat/ledgerbridge/service/contract"
	"github.com/brojonat/ledgerbridge/service/mirror"
	"github.com/google/uuid"
)

// Caller delivers one bridge request and returns its response.
type Caller interface {
	Call(ctx context.Context, req bridge.Request) (*bridge.RawResponse, error)
}

// ResponseError is an error response returned by the bridge.
type ResponseError struct {
	CorrelationID string `json:"correlationId"`
	bridge.ErrorPayload
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Reason)
}

// Client is the Go client for the ledger bridge.
type Client struct {
	caller Caller
	logger *slog.Logger
}

// NewClient creates a client that calls the bridge's HTTP endpoint.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Contract calls wait for receipts.
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return NewClientWithCaller(&httpCaller{baseURL: baseURL, httpClient: httpClient}, logger)
}

// NewClientWithCaller creates a client over any transport, e.g. a NATS
// requester.
func NewClientWithCaller(caller Caller, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{caller: caller, logger: logger}
}

// Call sends method with params under a fresh correlation id and returns the
// raw data. A bridge error response is returned as *ResponseError.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := bridge.Request{
		CorrelationID: uuid.NewString(),
		Method:        method,
	}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		req.Params = raw
	}

	resp, err := c.caller.Call(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &ResponseError{CorrelationID: resp.CorrelationID, ErrorPayload: *resp.Error}
	}

	c.logger.Debug("bridge call completed", "method", method, "correlation_id", resp.CorrelationID)
	return resp.Data, nil
}

func (c *Client) callInto(ctx context.Context, method string, params, out any) error {
	data, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

// CreateAccount creates an account for a public key through the primary API.
func (c *Client) CreateAccount(ctx context.Context, publicKey string) (*api.Account, error) {
	var out api.Account
	if err := c.callInto(ctx, bridge.MethodCreateAccount, map[string]string{"publicKey": publicKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetBalance returns an account's balances.
func (c *Client) GetBalance(ctx context.Context, accountID string) (*mirror.Balance, error) {
	var out mirror.Balance
	if err := c.callInto(ctx, bridge.MethodGetBalance, map[string]string{"accountId": accountID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountsByPublicKey lists accounts keyed by a raw public key.
func (c *Client) GetAccountsByPublicKey(ctx context.Context, publicKeyHex string) ([]string, error) {
	var out []string
	if err := c.callInto(ctx, bridge.MethodGetAccountsByPublicKey, map[string]string{"publicKey": publicKeyHex}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetEVMAddress resolves an account id to its EVM address.
func (c *Client) GetEVMAddress(ctx context.Context, accountID string) (string, error) {
	var out string
	if err := c.callInto(ctx, bridge.MethodGetEVMAddress, map[string]string{"accountId": accountID}, &out); err != nil {
		return "", err
	}
	return out, nil
}

// GetTransactions returns one page of history. Pass the previous page's
// NextPage to continue.
func (c *Client) GetTransactions(ctx context.Context, accountID, nextPage, txType string) (*mirror.TransactionPage, error) {
	params := map[string]string{
		"accountId":       accountID,
		"nextPage":        nextPage,
		"transactionType": txType,
	}
	var out mirror.TransactionPage
	if err := c.callInto(ctx, bridge.MethodGetTransactions, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ContractCallFunction runs a contract call to its receipt.
func (c *Client) ContractCallFunction(ctx context.Context, params bridge.ContractCallParams) (*contract.CallResult, error) {
	var out contract.CallResult
	if err := c.callInto(ctx, bridge.MethodContractCallFunction, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignMessage signs a base64 message with a hex private key.
func (c *Client) SignMessage(ctx context.Context, messageBase64, privateKeyHex string) (*bridge.Signature, error) {
	params := map[string]string{"messageString": messageBase64, "privateKey": privateKeyHex}
	var out bridge.Signature
	if err := c.callInto(ctx, bridge.MethodSignMessage, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateMnemonic returns a new 24-word recovery phrase.
func (c *Client) GenerateMnemonic(ctx context.Context) (string, error) {
	var out bridge.Mnemonic
	if err := c.callInto(ctx, bridge.MethodGenerateMnemonic, nil, &out); err != nil {
		return "", err
	}
	return out.Mnemonic, nil
}

// httpCaller posts requests to /api/v1/bridge.
type httpCaller struct {
	baseURL    string
	httpClient *http.Client
}

func (h *httpCaller) Call(ctx context.Context, breq bridge.Request) (*bridge.RawResponse, error) {
	body, err := json.Marshal(breq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.baseURL+"/api/v1/bridge", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	var out bridge.RawResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

// parseErrorResponse attempts to parse an error response from the server.
func parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
