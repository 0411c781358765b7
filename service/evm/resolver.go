// Package evm resolves ledger account ids to 20-byte EVM addresses.
package evm

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/brojonat/ledgerbridge/service/mirror"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// addressLikeLength is the input length from which a value is treated as
// already being an address. It is a length heuristic only: a malformed string
// of this length passes through unchanged.
const addressLikeLength = 32

// AccountSource provides mirror account info.
type AccountSource interface {
	Account(ctx context.Context, accountID string) (*mirror.AccountInfo, error)
}

// Resolver maps account ids to EVM addresses.
type Resolver struct {
	accounts AccountSource
}

// NewResolver creates a resolver backed by mirror account info.
func NewResolver(accounts AccountSource) *Resolver {
	return &Resolver{accounts: accounts}
}

// ToEVMAddress returns the 0x-prefixed EVM address for an account id. Values
// of 32 or more characters are returned unchanged. Otherwise the mirror's
// precomputed address wins, then a secp256k1 key derivation, then the
// long-zero encoding of the account id.
func (r *Resolver) ToEVMAddress(ctx context.Context, accountIDOrAddress string) (string, error) {
	if len(accountIDOrAddress) >= addressLikeLength {
		return accountIDOrAddress, nil
	}

	info, err := r.accounts.Account(ctx, accountIDOrAddress)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", accountIDOrAddress, err)
	}

	if info.EVMAddress != "" {
		return info.EVMAddress, nil
	}

	if info.Key != nil && info.Key.Type == mirror.KeyTypeECDSASecp256k1 {
		addr, err := AddressFromPublicKey(info.Key.Key)
		if err != nil {
			return "", fmt.Errorf("failed to derive address for %s: %w", accountIDOrAddress, err)
		}
		return addr, nil
	}

	return SolidityAddress(accountIDOrAddress)
}

// AddressFromPublicKey derives the EVM address of a secp256k1 public key given
// as hex, compressed (33 bytes) or uncompressed (65 bytes).
func AddressFromPublicKey(publicKeyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(publicKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid public key hex: %w", err)
	}

	switch len(raw) {
	case 33:
		pub, err := crypto.DecompressPubkey(raw)
		if err != nil {
			return "", fmt.Errorf("invalid compressed public key: %w", err)
		}
		return lowerHex(crypto.PubkeyToAddress(*pub)), nil
	case 65:
		pub, err := crypto.UnmarshalPubkey(raw)
		if err != nil {
			return "", fmt.Errorf("invalid uncompressed public key: %w", err)
		}
		return lowerHex(crypto.PubkeyToAddress(*pub)), nil
	default:
		return "", fmt.Errorf("unexpected public key length %d", len(raw))
	}
}

// SolidityAddress encodes shard.realm.num as shard(4) ‖ realm(8) ‖ num(8).
func SolidityAddress(accountID string) (string, error) {
	parts := strings.Split(accountID, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("invalid account id %q: expected shard.realm.num", accountID)
	}
	nums := make([]uint64, 3)
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid account id %q: %w", accountID, err)
		}
		nums[i] = n
	}
	if nums[0] > 0xffffffff {
		return "", fmt.Errorf("invalid account id %q: shard out of range", accountID)
	}

	var addr common.Address
	binary.BigEndian.PutUint32(addr[0:4], uint32(nums[0]))
	binary.BigEndian.PutUint64(addr[4:12], nums[1])
	binary.BigEndian.PutUint64(addr[12:20], nums[2])
	return lowerHex(addr), nil
}

func lowerHex(addr common.Address) string {
	return "0x" + hex.EncodeToString(addr.Bytes())
}
