package mirror

import (
	"time"
)

// Key is a mirror-node key document.
type Key struct {
	Type string `json:"_type"`
	Key  string `json:"key"`
}

// Key types reported by the mirror node.
const (
	KeyTypeED25519        = "ED25519"
	KeyTypeECDSASecp256k1 = "ECDSA_SECP256K1"
)

// AccountInfo is the subset of /api/v1/accounts/{id} the bridge reads.
type AccountInfo struct {
	Account    string          `json:"account"`
	EVMAddress string          `json:"evm_address"`
	Key        *Key            `json:"key"`
	Memo       string          `json:"memo"`
	Balance    *AccountBalance `json:"balance"`
}

// AccountBalance is the balance block embedded in AccountInfo.
type AccountBalance struct {
	Balance   int64          `json:"balance"`
	Timestamp string         `json:"timestamp"`
	Tokens    []TokenBalance `json:"tokens"`
}

// TokenBalance is a per-token balance in the token's smallest unit.
type TokenBalance struct {
	TokenID string `json:"token_id"`
	Balance int64  `json:"balance"`
}

// Balance is the normalized balance returned to the host.
type Balance struct {
	AccountID string         `json:"accountId"`
	Balance   float64        `json:"balance"`
	Tokens    []TokenBalance `json:"tokens"`
}

// TokenInfo is the subset of /api/v1/tokens/{id} the bridge reads.
type TokenInfo struct {
	TokenID     string `json:"token_id"`
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    string `json:"decimals"`
	TotalSupply string `json:"total_supply"`
	Type        string `json:"type"`
	Treasury    string `json:"treasury_account_id"`
}

type links struct {
	Next *string `json:"next"`
}

type accountsResponse struct {
	Accounts []struct {
		Account string `json:"account"`
	} `json:"accounts"`
	Links links `json:"links"`
}

// rawTransfer is an hbar or fungible token transfer as the mirror reports it.
type rawTransfer struct {
	Account string `json:"account"`
	Amount  int64  `json:"amount"`
	TokenID string `json:"token_id,omitempty"`
}

// NFTTransfer is kept as reported; serials are never rescaled.
type NFTTransfer struct {
	TokenID           string `json:"token_id"`
	SerialNumber      int64  `json:"serial_number"`
	SenderAccountID   string `json:"sender_account_id"`
	ReceiverAccountID string `json:"receiver_account_id"`
	IsApproval        bool   `json:"is_approval"`
}

type rawTransaction struct {
	TransactionID      string        `json:"transaction_id"`
	ConsensusTimestamp string        `json:"consensus_timestamp"`
	Name               string        `json:"name"`
	MemoBase64         string        `json:"memo_base64"`
	ChargedTxFee       int64         `json:"charged_tx_fee"`
	Result             string        `json:"result"`
	Transfers          []rawTransfer `json:"transfers"`
	TokenTransfers     []rawTransfer `json:"token_transfers"`
	NFTTransfers       []NFTTransfer `json:"nft_transfers"`
}

type transactionsResponse struct {
	Transactions []rawTransaction `json:"transactions"`
	Links        links            `json:"links"`
}

// Transfer is one normalized balance change. Amount is in display units for
// hbar and in the token's smallest unit when TokenID is set.
type Transfer struct {
	Account string  `json:"account"`
	Amount  float64 `json:"amount"`
	TokenID string  `json:"token_id,omitempty"`
}

// TransactionRecord is the normalized view of one mirror transaction.
type TransactionRecord struct {
	Time          time.Time     `json:"time"`
	Transfers     []Transfer    `json:"transfers"`
	NFTTransfers  []NFTTransfer `json:"nftTransfers"`
	Memo          string        `json:"memo"`
	TransactionID string        `json:"transactionId"`
	Fee           int64         `json:"fee"`
	Type          string        `json:"type"`
}

// TransactionPage is one page of records, newest first. NextPage is the
// cursor for the following page, or nil when history is exhausted.
type TransactionPage struct {
	Transactions []TransactionRecord `json:"transactions"`
	NextPage     *string             `json:"nextPage"`
}
