package bridge

import (
	"context"
	"encoding/json"
	"fmt"
)

// Request is a host call carried over a transport.
type Request struct {
	CorrelationID string          `json:"correlationId"`
	Method        string          `json:"method"`
	Params        json.RawMessage `json:"params,omitempty"`
}

type accountParams struct {
	AccountID string `json:"accountId"`
}

type publicKeyParams struct {
	PublicKey string `json:"publicKey"`
}

type transactionsParams struct {
	AccountID       string `json:"accountId"`
	NextPage        string `json:"nextPage"`
	TransactionType string `json:"transactionType"`
}

type signParams struct {
	Message    string `json:"messageString"`
	PrivateKey string `json:"privateKey"`
}

// Dispatch runs the operation named by req.Method, emits its response and
// returns it. Unknown methods and undecodable params produce an error response.
func (b *Bridge) Dispatch(ctx context.Context, req Request) Response {
	data, err := b.dispatch(ctx, req)
	return b.finish(ctx, req.CorrelationID, req.Method, data, err)
}

func (b *Bridge) dispatch(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case MethodCreateAccount:
		var p publicKeyParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.createAccount(ctx, p.PublicKey)

	case MethodGetAccountsByPublicKey:
		var p publicKeyParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.mirror.AccountsForPublicKey(ctx, p.PublicKey), nil

	case MethodGetBalance:
		var p accountParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.getBalance(ctx, p.AccountID)

	case MethodGetEVMAddress:
		var p accountParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.getEVMAddress(ctx, p.AccountID)

	case MethodGetTransactions:
		var p transactionsParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.getTransactions(ctx, p.AccountID, p.NextPage, p.TransactionType)

	case MethodContractCallFunction:
		var p ContractCallParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.contractCallFunction(ctx, p)

	case MethodSignMessage:
		var p signParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		return b.signMessage(p.Message, p.PrivateKey)

	case MethodGenerateMnemonic:
		return b.generateMnemonic()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
}

func decodeParams(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: params: %v", ErrInvalidRequest, err)
	}
	return nil
}
