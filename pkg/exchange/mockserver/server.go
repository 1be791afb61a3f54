// Package mockserver is an in-process venue used by the dev CLI and the
// integration tests: it verifies EIP-712 signatures, enforces per-account
// nonces and streams mid prices the same way the real venue does.
package mockserver

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpdesk/hyperbasket/pkg/crypto"
	"github.com/perpdesk/hyperbasket/pkg/exchange"
)

// Server is a mock venue exposing the /info, /exchange and /ws surface.
type Server struct {
	domain  crypto.Domain
	router  *mux.Router
	hub     *Hub
	hubOnce sync.Once
	log     *zap.SugaredLogger

	mu       sync.Mutex
	universe []exchange.AssetMeta
	nonces   map[common.Address]uint64
	orders   map[string]exchange.OrderAck // by cloid
	nextOID  uint64
	failures int // pending injected 503s
}

// New creates a mock venue with the given universe. A nil universe gets
// a small default set.
func New(domain crypto.Domain, universe []exchange.AssetMeta, log *zap.SugaredLogger) *Server {
	if universe == nil {
		universe = DefaultUniverse()
	}
	s := &Server{
		domain:   domain,
		router:   mux.NewRouter(),
		hub:      NewHub(log),
		log:      log,
		universe: universe,
		nonces:   make(map[common.Address]uint64),
		orders:   make(map[string]exchange.OrderAck),
		nextOID:  1,
	}
	s.setupRoutes()
	return s
}

// DefaultUniverse is the market set the dev CLI runs against.
func DefaultUniverse() []exchange.AssetMeta {
	return []exchange.AssetMeta{
		{Symbol: "BTC", MarkPx: decimal.NewFromInt(50_000), SzDecimals: 5, MinOrderUsd: decimal.NewFromInt(10), MaxLeverage: 50},
		{Symbol: "ETH", MarkPx: decimal.NewFromInt(3_000), SzDecimals: 4, MinOrderUsd: decimal.NewFromInt(10), MaxLeverage: 50},
		{Symbol: "SOL", MarkPx: decimal.NewFromInt(150), SzDecimals: 2, MinOrderUsd: decimal.NewFromInt(10), MaxLeverage: 20},
	}
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/info", s.handleInfo).Methods("POST")
	s.router.HandleFunc("/exchange", s.handleExchange).Methods("POST")
	s.router.HandleFunc("/cancel", s.handleCancel).Methods("POST")
	s.router.HandleFunc("/ws", s.hub.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler, for mounting under httptest.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.hub.Run() })
	return s.router
}

// Start serves on addr. Blocks.
func (s *Server) Start(addr string) error {
	s.hubOnce.Do(func() { go s.hub.Run() })

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	s.log.Infow("mock_venue_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// FailNext makes the next n /exchange calls answer 503 before any
// processing. Used to exercise retry paths.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	s.failures = n
	s.mu.Unlock()
}

// SetNonce seeds the expected nonce for an account.
func (s *Server) SetNonce(addr common.Address, nonce uint64) {
	s.mu.Lock()
	s.nonces[addr] = nonce
	s.mu.Unlock()
}

// SetMarkPrice updates one market's mark and broadcasts the new mids.
func (s *Server) SetMarkPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	for i := range s.universe {
		if s.universe[i].Symbol == symbol {
			s.universe[i].MarkPx = price
		}
	}
	mids := s.midsLocked()
	s.mu.Unlock()
	s.hub.BroadcastMids(mids)
}

// OrderCount reports how many orders the venue accepted.
func (s *Server) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Server) midsLocked() map[string]string {
	mids := make(map[string]string, len(s.universe))
	for _, a := range s.universe {
		mids[a.Symbol] = a.MarkPx.String()
	}
	return mids
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req exchange.InfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}

	switch req.Type {
	case "meta":
		s.mu.Lock()
		resp := exchange.MetaResponse{Universe: append([]exchange.AssetMeta(nil), s.universe...)}
		s.mu.Unlock()
		respondJSON(w, resp)

	case "nonce":
		if !common.IsHexAddress(req.User) {
			respondError(w, http.StatusBadRequest, "bad_request", "invalid user address")
			return
		}
		addr := common.HexToAddress(req.User)
		s.mu.Lock()
		nonce := s.nonces[addr]
		s.mu.Unlock()
		respondJSON(w, exchange.NonceResponse{User: addr.Hex(), Nonce: nonce})

	default:
		respondError(w, http.StatusBadRequest, "bad_request", "unknown info type "+req.Type)
	}
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		respondError(w, http.StatusServiceUnavailable, "unavailable", "venue temporarily unavailable")
		return
	}
	s.mu.Unlock()

	var req exchange.SignedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !common.IsHexAddress(req.Action.Owner) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid owner address")
		return
	}
	owner := common.HexToAddress(req.Action.Owner)

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusBadRequest, "bad_signature", "signature must be 65 hex bytes")
		return
	}

	action := crypto.OrderAction{
		Symbol:     req.Action.Symbol,
		Side:       req.Action.Side,
		MarketType: req.Action.MarketType,
		Size:       req.Action.Size,
		Price:      req.Action.Price,
		ReduceOnly: req.Action.ReduceOnly,
		Nonce:      req.Nonce,
		Cloid:      req.Action.Cloid,
		Owner:      owner,
	}
	ok, err := crypto.VerifyOrderSignature(s.domain, action, sig)
	if err != nil || !ok {
		respondError(w, http.StatusUnauthorized, "bad_signature", "signature does not match owner")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expected := s.nonces[owner]; req.Nonce != expected {
		s.log.Warnw("nonce_mismatch", "owner", owner.Hex(), "got", req.Nonce, "want", expected)
		respondError(w, http.StatusBadRequest, "bad_nonce", "nonce out of sequence")
		return
	}

	// Duplicate cloid: acknowledge the original instead of re-executing.
	if prev, seen := s.orders[req.Action.Cloid]; seen && req.Action.Cloid != "" {
		respondJSON(w, prev)
		return
	}

	if !s.knownSymbol(req.Action.Symbol) {
		respondJSON(w, exchange.OrderAck{
			Status: exchange.StatusRejected,
			Cloid:  req.Action.Cloid,
			Error:  "unknown symbol " + req.Action.Symbol,
		})
		return
	}

	s.nonces[owner] = req.Nonce + 1

	status := exchange.StatusFilled
	if req.Action.MarketType == 2 {
		status = exchange.StatusResting
	}
	ack := exchange.OrderAck{Status: status, Cloid: req.Action.Cloid, OrderID: s.nextOID}
	s.nextOID++
	s.orders[req.Action.Cloid] = ack

	s.log.Infow("order_accepted",
		"symbol", req.Action.Symbol,
		"cloid", req.Action.Cloid,
		"oid", ack.OrderID,
		"status", status,
	)
	respondJSON(w, ack)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req exchange.SignedCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if !common.IsHexAddress(req.Action.Owner) {
		respondError(w, http.StatusBadRequest, "bad_request", "invalid owner address")
		return
	}
	owner := common.HexToAddress(req.Action.Owner)

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil || len(sig) != 65 {
		respondError(w, http.StatusBadRequest, "bad_signature", "signature must be 65 hex bytes")
		return
	}

	action := crypto.CancelAction{
		Symbol: req.Action.Symbol,
		Cloid:  req.Action.Cloid,
		Nonce:  req.Nonce,
		Owner:  owner,
	}
	digest, err := crypto.HashTypedData(crypto.CancelTypedData(s.domain, action))
	if err != nil || !crypto.VerifySignature(owner, digest, sig) {
		respondError(w, http.StatusUnauthorized, "bad_signature", "signature does not match owner")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if expected := s.nonces[owner]; req.Nonce != expected {
		respondError(w, http.StatusBadRequest, "bad_nonce", "nonce out of sequence")
		return
	}

	prev, ok := s.orders[req.Action.Cloid]
	if !ok {
		respondJSON(w, exchange.OrderAck{
			Status: exchange.StatusRejected,
			Cloid:  req.Action.Cloid,
			Error:  "unknown order " + req.Action.Cloid,
		})
		return
	}
	if prev.Status != exchange.StatusResting {
		respondJSON(w, exchange.OrderAck{
			Status: exchange.StatusRejected,
			Cloid:  req.Action.Cloid,
			Error:  "order is not resting",
		})
		return
	}

	s.nonces[owner] = req.Nonce + 1
	ack := exchange.OrderAck{Status: exchange.StatusCancelled, Cloid: req.Action.Cloid, OrderID: prev.OrderID}
	s.orders[req.Action.Cloid] = ack
	s.log.Infow("order_cancelled", "cloid", req.Action.Cloid, "oid", prev.OrderID)
	respondJSON(w, ack)
}

func (s *Server) knownSymbol(symbol string) bool {
	for _, a := range s.universe {
		if a.Symbol == symbol {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}
