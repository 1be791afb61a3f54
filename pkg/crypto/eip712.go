package crypto

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Domain is the EIP-712 domain separator for signed exchange actions.
// Prevents replay of a signed action across chains or venues.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

// DefaultDomain matches the local mock venue. Production callers set the
// venue's real chain id via params.Venue.ChainID.
func DefaultDomain() Domain {
	return Domain{Name: "HyperBasket", Version: "1", ChainID: big.NewInt(1337)}
}

// OrderAction is the typed-data shape a wallet signs for one basket order.
// Size and price travel as decimal strings, the venue's wire format, so the
// signed payload is byte-identical to what gets submitted.
type OrderAction struct {
	Symbol     string
	Side       uint8 // 1 = buy, 2 = sell
	MarketType uint8 // 1 = market, 2 = limit
	Size       string
	Price      string // empty for market orders
	ReduceOnly bool
	Nonce      uint64
	Cloid      string // client order id, idempotency handle
	Owner      common.Address
}

// CancelAction is the typed-data shape for cancelling a resting order.
type CancelAction struct {
	Symbol string
	Cloid  string
	Nonce  uint64
	Owner  common.Address
}

var domainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
}

// OrderTypedData builds the EIP-712 payload for an order action. The result
// is what a browser wallet receives for eth_signTypedData_v4 and what
// LocalSigner hashes directly.
func OrderTypedData(domain Domain, action OrderAction) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Order": []apitypes.Type{
				{Name: "symbol", Type: "string"},
				{Name: "side", Type: "uint8"},
				{Name: "marketType", Type: "uint8"},
				{Name: "size", Type: "string"},
				{Name: "price", Type: "string"},
				{Name: "reduceOnly", Type: "bool"},
				{Name: "nonce", Type: "uint256"},
				{Name: "cloid", Type: "string"},
				{Name: "owner", Type: "address"},
			},
		},
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:    domain.Name,
			Version: domain.Version,
			ChainId: (*math.HexOrDecimal256)(domain.ChainID),
		},
		Message: apitypes.TypedDataMessage{
			"symbol":     action.Symbol,
			"side":       fmt.Sprintf("%d", action.Side),
			"marketType": fmt.Sprintf("%d", action.MarketType),
			"size":       action.Size,
			"price":      action.Price,
			"reduceOnly": action.ReduceOnly,
			"nonce":      new(big.Int).SetUint64(action.Nonce).String(),
			"cloid":      action.Cloid,
			"owner":      action.Owner.Hex(),
		},
	}
}

// CancelTypedData builds the EIP-712 payload for a cancel action.
func CancelTypedData(domain Domain, action CancelAction) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Cancel": []apitypes.Type{
				{Name: "symbol", Type: "string"},
				{Name: "cloid", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "owner", Type: "address"},
			},
		},
		PrimaryType: "Cancel",
		Domain: apitypes.TypedDataDomain{
			Name:    domain.Name,
			Version: domain.Version,
			ChainId: (*math.HexOrDecimal256)(domain.ChainID),
		},
		Message: apitypes.TypedDataMessage{
			"symbol": action.Symbol,
			"cloid":  action.Cloid,
			"nonce":  new(big.Int).SetUint64(action.Nonce).String(),
			"owner":  action.Owner.Hex(),
		},
	}
}

// HashTypedData computes the EIP-712 digest:
// keccak256("\x19\x01" || domainSeparator || hashStruct(message))
func HashTypedData(data apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}
	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}
	raw := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	digest := crypto.Keccak256Hash(raw)
	return digest.Bytes(), nil
}

// VerifyOrderSignature reports whether signature over the order action was
// produced by the action's owner.
func VerifyOrderSignature(domain Domain, action OrderAction, signature []byte) (bool, error) {
	digest, err := HashTypedData(OrderTypedData(domain, action))
	if err != nil {
		return false, err
	}
	recovered, err := RecoverAddress(digest, signature)
	if err != nil {
		return false, fmt.Errorf("failed to recover address: %w", err)
	}
	return recovered == action.Owner, nil
}
