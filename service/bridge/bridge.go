// Package bridge exposes ledger account and contract operations to a host
// application through flat parameters and a single response channel.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/brojonat/ledgerbridge/service/api"
	"github.com/brojonat/ledgerbridge/service/config"
	"github.com/brojonat/ledgerbridge/service/contract"
	"github.com/brojonat/ledgerbridge/service/keys"
	"github.com/brojonat/ledgerbridge/service/metrics"
	"github.com/brojonat/ledgerbridge/service/mirror"
)

// Method names accepted by Dispatch.
const (
	MethodCreateAccount          = "createAccount"
	MethodGetAccountsByPublicKey = "getAccountsByPublicKey"
	MethodGetBalance             = "getBalance"
	MethodGetEVMAddress          = "getEvmAddress"
	MethodGetTransactions        = "getTransactions"
	MethodContractCallFunction   = "contractCallFunction"
	MethodSignMessage            = "sign"
	MethodGenerateMnemonic       = "generateMnemonic"
)

// MirrorService is the mirror-node surface the bridge uses.
type MirrorService interface {
	AccountsForPublicKey(ctx context.Context, publicKeyHex string) []string
	Balance(ctx context.Context, accountID string) (*mirror.Balance, error)
	TransactionsForAccount(ctx context.Context, accountID, cursor, txType string) (*mirror.TransactionPage, error)
}

// AccountCreator creates accounts through the primary API.
type AccountCreator interface {
	CreateAccount(ctx context.Context, publicKey string) (*api.Account, error)
}

// ContractCaller runs an encoded contract call to its receipt.
type ContractCaller interface {
	Call(ctx context.Context, req contract.CallRequest) (*contract.CallResult, error)
}

// Options holds a Bridge's collaborators. Accounts and Contracts may be nil;
// operations that need them then fail with a configuration error.
type Options struct {
	Mirror    MirrorService
	Resolver  contract.AddressResolver
	Accounts  AccountCreator
	Contracts ContractCaller
	Emitter   Emitter
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Bridge runs host operations. Every public operation emits exactly one
// Response and also returns its result to the Go caller.
type Bridge struct {
	cfg       *config.Config
	mirror    MirrorService
	resolver  contract.AddressResolver
	accounts  AccountCreator
	contracts ContractCaller
	emitter   Emitter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a bridge. cfg must already be loaded; it is only read.
func New(cfg *config.Config, opts Options) (*Bridge, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Mirror == nil || opts.Resolver == nil {
		return nil, errors.New("mirror service and address resolver are required")
	}
	if opts.Emitter == nil {
		return nil, errors.New("emitter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Bridge{
		cfg:       cfg,
		mirror:    opts.Mirror,
		resolver:  opts.Resolver,
		accounts:  opts.Accounts,
		contracts: opts.Contracts,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		logger:    logger,
	}, nil
}

// Signature is the result of SignMessage.
type Signature struct {
	SignedMessage string `json:"signedMessage"`
}

// Mnemonic is the result of GenerateMnemonic.
type Mnemonic struct {
	Mnemonic string `json:"mnemonic"`
}

// ContractCallParams are the flat parameters of a contract call.
type ContractCallParams struct {
	ContractID   string `json:"contractId"`
	FunctionName string `json:"functionName"`
	// ParamsEncoded is the JSON descriptor list.
	ParamsEncoded string `json:"paramsEncoded"`
	AccountID     string `json:"accountId"`
	PrivateKey    string `json:"accountPrivateKey"`
	Gas           uint64 `json:"gas"`
	PayFee        bool   `json:"payFee"`
}

// CreateAccount creates an account for publicKey through the primary API.
func (b *Bridge) CreateAccount(ctx context.Context, correlationID, publicKey string) (*api.Account, error) {
	account, err := b.createAccount(ctx, publicKey)
	b.finish(ctx, correlationID, MethodCreateAccount, account, err)
	return account, err
}

// GetAccountsByPublicKey lists accounts keyed by publicKeyHex. Lookup failures
// yield an empty list rather than an error.
func (b *Bridge) GetAccountsByPublicKey(ctx context.Context, correlationID, publicKeyHex string) []string {
	ids := b.mirror.AccountsForPublicKey(ctx, publicKeyHex)
	b.finish(ctx, correlationID, MethodGetAccountsByPublicKey, ids, nil)
	return ids
}

// GetBalance returns an account's hbar and token balances.
func (b *Bridge) GetBalance(ctx context.Context, correlationID, accountID string) (*mirror.Balance, error) {
	balance, err := b.getBalance(ctx, accountID)
	b.finish(ctx, correlationID, MethodGetBalance, balance, err)
	return balance, err
}

// GetEVMAddress resolves an account id to its EVM address.
func (b *Bridge) GetEVMAddress(ctx context.Context, correlationID, accountID string) (string, error) {
	addr, err := b.getEVMAddress(ctx, accountID)
	b.finish(ctx, correlationID, MethodGetEVMAddress, addr, err)
	return addr, err
}

// GetTransactions returns one page of an account's history. nextPage is the
// cursor from a previous page, or empty for the first page.
func (b *Bridge) GetTransactions(ctx context.Context, correlationID, accountID, nextPage, txType string) (*mirror.TransactionPage, error) {
	page, err := b.getTransactions(ctx, accountID, nextPage, txType)
	b.finish(ctx, correlationID, MethodGetTransactions, page, err)
	return page, err
}

// ContractCallFunction encodes and runs a contract call to its receipt.
func (b *Bridge) ContractCallFunction(ctx context.Context, correlationID string, params ContractCallParams) (*contract.CallResult, error) {
	result, err := b.contractCallFunction(ctx, params)
	b.finish(ctx, correlationID, MethodContractCallFunction, result, err)
	return result, err
}

// SignMessage signs the base64-encoded message with a hex private key and
// returns the signature as hex.
func (b *Bridge) SignMessage(ctx context.Context, correlationID, messageBase64, privateKeyHex string) (*Signature, error) {
	sig, err := b.signMessage(messageBase64, privateKeyHex)
	b.finish(ctx, correlationID, MethodSignMessage, sig, err)
	return sig, err
}

// GenerateMnemonic returns a new 24-word recovery phrase.
func (b *Bridge) GenerateMnemonic(ctx context.Context, correlationID string) (*Mnemonic, error) {
	m, err := b.generateMnemonic()
	b.finish(ctx, correlationID, MethodGenerateMnemonic, m, err)
	return m, err
}

func (b *Bridge) createAccount(ctx context.Context, publicKey string) (*api.Account, error) {
	if publicKey == "" {
		return nil, fmt.Errorf("%w: publicKey is required", ErrInvalidRequest)
	}
	if b.accounts == nil {
		return nil, api.ErrMissingCredentials
	}
	return b.accounts.CreateAccount(ctx, publicKey)
}

func (b *Bridge) getBalance(ctx context.Context, accountID string) (*mirror.Balance, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountId is required", ErrInvalidRequest)
	}
	return b.mirror.Balance(ctx, accountID)
}

func (b *Bridge) getEVMAddress(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", fmt.Errorf("%w: accountId is required", ErrInvalidRequest)
	}
	return b.resolver.ToEVMAddress(ctx, accountID)
}

func (b *Bridge) getTransactions(ctx context.Context, accountID, nextPage, txType string) (*mirror.TransactionPage, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountId is required", ErrInvalidRequest)
	}
	return b.mirror.TransactionsForAccount(ctx, accountID, nextPage, txType)
}

func (b *Bridge) contractCallFunction(ctx context.Context, p ContractCallParams) (*contract.CallResult, error) {
	if p.ContractID == "" || p.FunctionName == "" {
		return nil, fmt.Errorf("%w: contractId and functionName are required", ErrInvalidRequest)
	}
	if b.contracts == nil {
		return nil, ErrNoLedger
	}
	paramsJSON := p.ParamsEncoded
	if paramsJSON == "" {
		paramsJSON = "[]"
	}
	call, err := contract.ParseAndEncode(ctx, []byte(paramsJSON), b.resolver)
	if err != nil {
		return nil, err
	}
	gas := p.Gas
	if gas == 0 {
		gas = b.cfg.DefaultGas
	}
	return b.contracts.Call(ctx, contract.CallRequest{
		ContractID:   p.ContractID,
		FunctionName: p.FunctionName,
		Call:         call,
		Gas:          gas,
		Credentials:  contract.Credentials{AccountID: p.AccountID, PrivateKey: p.PrivateKey},
		PayFee:       p.PayFee,
	})
}

func (b *Bridge) signMessage(messageBase64, privateKeyHex string) (*Signature, error) {
	message, err := base64.StdEncoding.DecodeString(messageBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: message is not base64: %v", ErrInvalidRequest, err)
	}
	key, err := keys.ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}
	sig, err := key.Sign(message)
	if err != nil {
		return nil, err
	}
	return &Signature{SignedMessage: hex.EncodeToString(sig)}, nil
}

func (b *Bridge) generateMnemonic() (*Mnemonic, error) {
	phrase, err := keys.NewMnemonic()
	if err != nil {
		return nil, err
	}
	return &Mnemonic{Mnemonic: phrase}, nil
}

// finish builds the terminal response for an operation and emits it. Emit
// failures are logged; the host has no other channel to learn of them.
func (b *Bridge) finish(ctx context.Context, correlationID, method string, data any, err error) Response {
	resp := Response{CorrelationID: correlationID}
	status := "success"
	if err != nil {
		status = "error"
		payload := NormalizeError(err)
		resp.Error = &payload
		b.logger.WarnContext(ctx, "bridge operation failed",
			"method", method,
			"correlation_id", correlationID,
			"error_name", payload.Name,
			"error", err,
		)
	} else {
		resp.Data = data
		b.logger.DebugContext(ctx, "bridge operation completed",
			"method", method,
			"correlation_id", correlationID,
		)
	}

	if b.metrics != nil {
		b.metrics.RecordResponse(method, status)
	}

	if emitErr := b.emitter.Emit(ctx, resp); emitErr != nil {
		b.logger.ErrorContext(ctx, "failed to emit response",
			"method", method,
			"correlation_id", correlationID,
			"error", emitErr,
		)
	}
	return resp
}
