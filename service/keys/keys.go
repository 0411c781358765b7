// Package keys parses account private keys, signs messages and generates
// recovery phrases.
package keys

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// KeyType identifies a key's curve.
type KeyType string

const (
	KeyTypeED25519   KeyType = "ED25519"
	KeyTypeSecp256k1 KeyType = "ECDSA_SECP256K1"
)

// DER headers preceding the 32-byte private scalar.
var (
	ed25519DERPrefix   = mustDecodeHex("302e020100300506032b657004220420")
	secp256k1DERPrefix = mustDecodeHex("3030020100300706052b8104000a04220420")
)

// ErrInvalidKey is returned for keys that are neither raw nor DER-encoded
// ed25519 or secp256k1 private keys.
var ErrInvalidKey = errors.New("invalid private key")

// PrivateKey is an ed25519 or secp256k1 account key.
type PrivateKey struct {
	keyType KeyType
	ed      ed25519.PrivateKey
	ec      *ecdsa.PrivateKey
}

// ParsePrivateKey parses hex key material: a raw 32-byte ed25519 seed or a
// DER-encoded ed25519 or secp256k1 key. A 0x prefix is ignored.
func ParsePrivateKey(keyHex string) (*PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	switch {
	case len(raw) == ed25519.SeedSize:
		return &PrivateKey{keyType: KeyTypeED25519, ed: ed25519.NewKeyFromSeed(raw)}, nil
	case len(raw) == len(ed25519DERPrefix)+ed25519.SeedSize && bytes.HasPrefix(raw, ed25519DERPrefix):
		return &PrivateKey{keyType: KeyTypeED25519, ed: ed25519.NewKeyFromSeed(raw[len(ed25519DERPrefix):])}, nil
	case len(raw) == len(secp256k1DERPrefix)+32 && bytes.HasPrefix(raw, secp256k1DERPrefix):
		ec, err := crypto.ToECDSA(raw[len(secp256k1DERPrefix):])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return &PrivateKey{keyType: KeyTypeSecp256k1, ec: ec}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized %d-byte encoding", ErrInvalidKey, len(raw))
	}
}

// Type returns the key's curve.
func (k *PrivateKey) Type() KeyType { return k.keyType }

// PublicKey returns the raw public key: 32 bytes for ed25519, 33 compressed
// bytes for secp256k1.
func (k *PrivateKey) PublicKey() []byte {
	if k.keyType == KeyTypeSecp256k1 {
		return crypto.CompressPubkey(&k.ec.PublicKey)
	}
	return []byte(k.ed.Public().(ed25519.PublicKey))
}

// PublicKeyHex is PublicKey as lowercase hex, the form mirror nodes index.
func (k *PrivateKey) PublicKeyHex() string {
	return hex.EncodeToString(k.PublicKey())
}

// EVMAddress returns the derived EVM address of a secp256k1 key. ed25519 keys
// have none.
func (k *PrivateKey) EVMAddress() (string, bool) {
	if k.keyType != KeyTypeSecp256k1 {
		return "", false
	}
	return strings.ToLower(crypto.PubkeyToAddress(k.ec.PublicKey).Hex()), true
}

// Sign signs message. ed25519 keys produce a pure signature of the message;
// secp256k1 keys sign its keccak256 digest and return r ‖ s.
func (k *PrivateKey) Sign(message []byte) ([]byte, error) {
	if k.keyType == KeyTypeSecp256k1 {
		sig, err := crypto.Sign(crypto.Keccak256(message), k.ec)
		if err != nil {
			return nil, fmt.Errorf("failed to sign: %w", err)
		}
		return sig[:64], nil
	}
	return ed25519.Sign(k.ed, message), nil
}

// NewMnemonic generates a 24-word BIP-39 recovery phrase.
func NewMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
