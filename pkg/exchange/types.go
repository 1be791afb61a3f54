package exchange

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/hyperbasket/pkg/basket"
)

// AssetMeta is one market's entry in the venue's metadata response.
// Prices and notionals travel as decimal strings on the wire.
type AssetMeta struct {
	Symbol      string          `json:"symbol"`
	MarkPx      decimal.Decimal `json:"markPx"`
	SzDecimals  int32           `json:"szDecimals"`
	MinOrderUsd decimal.Decimal `json:"minOrderUsd"`
	MaxLeverage int             `json:"maxLeverage"`
}

// MetaResponse is the body of an info request with type "meta".
type MetaResponse struct {
	Universe []AssetMeta `json:"universe"`
}

// MarketMetas converts the wire universe into the allocator's lookup map.
func (r MetaResponse) MarketMetas() map[string]basket.MarketMeta {
	metas := make(map[string]basket.MarketMeta, len(r.Universe))
	for _, a := range r.Universe {
		metas[a.Symbol] = basket.MarketMeta{
			Symbol:       a.Symbol,
			MarkPrice:    a.MarkPx,
			SizeDecimals: a.SzDecimals,
			MinOrderUsd:  a.MinOrderUsd,
			MaxLeverage:  a.MaxLeverage,
		}
	}
	return metas
}

// InfoRequest selects which read-only query to run against /info.
type InfoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// NonceResponse is the body of an info request with type "nonce".
type NonceResponse struct {
	User  string `json:"user"`
	Nonce uint64 `json:"nonce"`
}

// WireOrder is the action half of a signed submission. Field names and
// value encodings are fixed: the EIP-712 signature covers exactly these
// strings, so any re-encoding on the client side would break verification.
type WireOrder struct {
	Symbol     string `json:"symbol"`
	Side       uint8  `json:"side"`       // 1 = buy, 2 = sell
	MarketType uint8  `json:"marketType"` // 1 = market, 2 = limit
	Size       string `json:"size"`
	Price      string `json:"price,omitempty"`
	ReduceOnly bool   `json:"reduceOnly,omitempty"`
	Cloid      string `json:"cloid"`
	Owner      string `json:"owner"`
}

// BuilderInfo attributes an order to a front-end integrator. Fee is in
// tenths of a basis point, the venue's unit.
type BuilderInfo struct {
	Code        string `json:"b"`
	FeeTenthBps int    `json:"f"`
}

// SignedRequest is the POST /exchange body: the action, the account nonce
// it was signed with, and the 65-byte signature hex-encoded with 0x prefix.
// Builder attribution rides outside the signed action.
type SignedRequest struct {
	Action    WireOrder    `json:"action"`
	Nonce     uint64       `json:"nonce"`
	Signature string       `json:"signature"`
	Builder   *BuilderInfo `json:"builder,omitempty"`
}

// WireCancel is the action half of a signed cancel.
type WireCancel struct {
	Symbol string `json:"symbol"`
	Cloid  string `json:"cloid"`
	Owner  string `json:"owner"`
}

// SignedCancelRequest is the POST /cancel body.
type SignedCancelRequest struct {
	Action    WireCancel `json:"action"`
	Nonce     uint64     `json:"nonce"`
	Signature string     `json:"signature"`
}

// Order acknowledgement statuses returned by the venue.
const (
	StatusFilled    = "filled"
	StatusResting   = "resting"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// OrderAck is the venue's response to one submitted order.
type OrderAck struct {
	Status  string `json:"status"`
	Cloid   string `json:"cloid,omitempty"`
	OrderID uint64 `json:"oid,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Accepted reports whether the venue took the order (filled or resting).
func (a OrderAck) Accepted() bool {
	return a.Status == StatusFilled || a.Status == StatusResting
}

// errorBody is the venue's shape for non-2xx responses.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeErrorBody(b []byte) (errorBody, bool) {
	var body errorBody
	if err := json.Unmarshal(b, &body); err != nil || body.Message == "" {
		return errorBody{}, false
	}
	return body, true
}
