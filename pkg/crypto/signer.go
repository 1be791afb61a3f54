package crypto

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// WalletSigner is the signing capability the submission path depends on.
// Implementations may proxy to an external wallet where a signing call
// requires human approval, so every method takes a context and may block
// indefinitely; the engine imposes no internal timeout on signing.
type WalletSigner interface {
	// Address returns the account the signatures belong to.
	Address() common.Address

	// SignMessage signs an arbitrary text message (personal-sign style).
	SignMessage(ctx context.Context, message []byte) ([]byte, error)

	// SignTypedData signs an EIP-712 typed-data payload and returns the
	// 65-byte [R || S || V] signature.
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// LocalSigner is a WalletSigner backed by an in-process secp256k1 key.
// Used by the dev CLI and tests; production front-ends hand the engine a
// browser-wallet implementation instead.
type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateKey creates a LocalSigner with a fresh random key pair.
func GenerateKey() (*LocalSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newLocalSigner(privateKey)
}

// FromPrivateKeyHex creates a LocalSigner from a hex-encoded private key.
// Format: "0x1234..." or "1234..." (64 hex chars)
func FromPrivateKeyHex(hexKey string) (*LocalSigner, error) {
	if len(hexKey) >= 2 && hexKey[:2] == "0x" {
		hexKey = hexKey[2:]
	}
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newLocalSigner(privateKey)
}

func newLocalSigner(privateKey *ecdsa.PrivateKey) (*LocalSigner, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	return &LocalSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the Ethereum address derived from the public key
func (s *LocalSigner) Address() common.Address {
	return s.address
}

// SignMessage hashes the message with Keccak256 and signs the digest.
func (s *LocalSigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	hash := crypto.Keccak256Hash(message)
	return s.signDigest(hash.Bytes())
}

// SignTypedData computes the EIP-712 digest of the typed data and signs it.
func (s *LocalSigner) SignTypedData(_ context.Context, data apitypes.TypedData) ([]byte, error) {
	digest, err := HashTypedData(data)
	if err != nil {
		return nil, err
	}
	return s.signDigest(digest)
}

func (s *LocalSigner) signDigest(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}
	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signature, nil
}

// RecoverAddress recovers the signer's address from a digest and signature.
func RecoverAddress(digest []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(digest) != 32 {
		return common.Address{}, fmt.Errorf("invalid digest length: %d", len(digest))
	}

	publicKeyBytes, err := crypto.Ecrecover(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}

// VerifySignature reports whether signature over digest was produced by address.
func VerifySignature(address common.Address, digest []byte, signature []byte) bool {
	recovered, err := RecoverAddress(digest, signature)
	if err != nil {
		return false
	}
	return recovered == address
}
