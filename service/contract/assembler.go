package contract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brojonat/ledgerbridge/service/metrics"
)

// Credentials identify the account that signs a call.
type Credentials struct {
	AccountID  string
	PrivateKey string
}

// Ledger is the subset of the ledger SDK used to prepare calls.
type Ledger interface {
	// ContractExecute builds an unsigned contract-execute transaction.
	ContractExecute(ctx context.Context, contractID string, gas uint64, callData []byte) (Transaction, error)
	// TransactionFromBytes rebuilds a transaction prepared elsewhere.
	TransactionFromBytes(raw []byte) (Transaction, error)
}

// Transaction is a prepared ledger transaction.
type Transaction interface {
	Sign(ctx context.Context, creds Credentials) (Transaction, error)
	Execute(ctx context.Context) (Execution, error)
}

// Execution is a submitted transaction awaiting its receipt.
type Execution interface {
	TransactionID() string
	Receipt(ctx context.Context) (*Receipt, error)
}

// FeePayer prepares calls whose fee is paid by the primary API.
type FeePayer interface {
	SignContractCall(ctx context.Context, contractID string, callData []byte, gas uint64) ([]byte, error)
}

// Receipt is the normalized transaction receipt. Optional fields are only
// set for the receipt kinds that carry them.
type Receipt struct {
	Status              string  `json:"status"`
	ContractID          *string `json:"contractId,omitempty"`
	TopicSequenceNumber *uint64 `json:"topicSequenceNumber,omitempty"`
	TotalSupply         *uint64 `json:"totalSupply,omitempty"`
	Serials             []int64 `json:"serials,omitempty"`
}

// CallResult is returned for a receipted call.
type CallResult struct {
	TransactionID string `json:"transactionId"`
	Receipt
}

// CallRequest is a fully resolved contract call.
type CallRequest struct {
	ContractID   string
	FunctionName string
	Call         *EncodedCall
	Gas          uint64
	Credentials  Credentials
	// PayFee routes preparation through the primary API, which pays the fee.
	PayFee bool
}

// State is a contract call's position in its pipeline.
type State string

const (
	StatePending   State = "pending"
	StateBuilt     State = "built"
	StateSigned    State = "signed"
	StateExecuted  State = "executed"
	StateReceipted State = "receipted"
	StateFailed    State = "failed"
)

// CallError reports the stage a call failed at. A failed call has no partial
// result.
type CallError struct {
	// Stage is the last state reached before failing.
	Stage State
	Err   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("contract call failed after %s: %v", e.Stage, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// ErrNoFeePayer is returned for PayFee calls when no primary API is configured.
var ErrNoFeePayer = errors.New("fee-paid calls require primary API credentials")

// Assembler builds call data and threads it through sign, execute and receipt.
// It does not retry.
type Assembler struct {
	ledger   Ledger
	feePayer FeePayer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAssembler creates an assembler. feePayer may be nil when fee-paid calls
// are not needed.
func NewAssembler(ledger Ledger, feePayer FeePayer, m *metrics.Metrics, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Assembler{
		ledger:   ledger,
		feePayer: feePayer,
		metrics:  m,
		logger:   logger,
	}
}

// Call runs Built → Signed → Executed → Receipted. The first failing stage
// moves the call to Failed and ends it.
func (a *Assembler) Call(ctx context.Context, req CallRequest) (*CallResult, error) {
	start := time.Now()
	logger := a.logger.With(
		"contract_id", req.ContractID,
		"function", req.FunctionName,
		"pay_fee", req.PayFee,
	)

	state := StatePending
	fail := func(err error) (*CallResult, error) {
		logger.ErrorContext(ctx, "contract call failed",
			"stage", state,
			"error", err,
		)
		a.recordStage(nextStage(state), err)
		if a.metrics != nil {
			a.metrics.RecordCallDuration(string(StateFailed), time.Since(start).Seconds())
		}
		return nil, &CallError{Stage: state, Err: err}
	}

	tx, err := a.build(ctx, req)
	if err != nil {
		return fail(err)
	}
	state = StateBuilt
	a.recordStage("build", nil)
	logger.DebugContext(ctx, "contract call built")

	signed, err := tx.Sign(ctx, req.Credentials)
	if err != nil {
		return fail(fmt.Errorf("sign: %w", err))
	}
	state = StateSigned
	a.recordStage("sign", nil)

	exec, err := signed.Execute(ctx)
	if err != nil {
		return fail(fmt.Errorf("execute: %w", err))
	}
	state = StateExecuted
	a.recordStage("execute", nil)
	logger = logger.With("transaction_id", exec.TransactionID())
	logger.DebugContext(ctx, "contract call executed")

	receipt, err := exec.Receipt(ctx)
	if err != nil {
		return fail(fmt.Errorf("receipt: %w", err))
	}
	if receipt == nil {
		return fail(errors.New("receipt: empty receipt"))
	}
	a.recordStage("receipt", nil)

	logger.InfoContext(ctx, "contract call receipted",
		"status", receipt.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if a.metrics != nil {
		a.metrics.RecordCallDuration(string(StateReceipted), time.Since(start).Seconds())
	}

	return &CallResult{
		TransactionID: exec.TransactionID(),
		Receipt:       *receipt,
	}, nil
}

// build produces the unsigned transaction: locally through the SDK, or from
// bytes prepared by the primary API when the fee is paid on the caller's behalf.
func (a *Assembler) build(ctx context.Context, req CallRequest) (Transaction, error) {
	if req.Call == nil {
		return nil, errors.New("build: missing encoded parameters")
	}
	callData, err := CallData(req.FunctionName, req.Call)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	if !req.PayFee {
		tx, err := a.ledger.ContractExecute(ctx, req.ContractID, req.Gas, callData)
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		return tx, nil
	}

	if a.feePayer == nil {
		return nil, fmt.Errorf("build: %w", ErrNoFeePayer)
	}
	raw, err := a.feePayer.SignContractCall(ctx, req.ContractID, callData, req.Gas)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	tx, err := a.ledger.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return tx, nil
}

func (a *Assembler) recordStage(stage string, err error) {
	if a.metrics != nil {
		a.metrics.RecordCallStage(stage, err)
	}
}

// nextStage names the stage attempted from state.
func nextStage(state State) string {
	switch state {
	case StateBuilt:
		return "sign"
	case StateSigned:
		return "execute"
	case StateExecuted:
		return "receipt"
	default:
		return "build"
	}
}
