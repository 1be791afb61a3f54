package main

import (
	"log"
	"math/big"
	"math/rand"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/hyperbasket/params"
	"github.com/perpdesk/hyperbasket/pkg/crypto"
	"github.com/perpdesk/hyperbasket/pkg/exchange/mockserver"
	"github.com/perpdesk/hyperbasket/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	addr := os.Getenv("MOCK_EXCHANGE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	domain := crypto.DefaultDomain()
	domain.ChainID = big.NewInt(cfg.Venue.ChainID)

	universe := mockserver.DefaultUniverse()
	srv := mockserver.New(domain, universe, sugar)

	// Drift mark prices so the feed has something to stream.
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			for _, a := range universe {
				bps := decimal.NewFromInt(int64(rand.Intn(21) - 10)) // ±10 bps
				drift := a.MarkPx.Mul(bps).Div(decimal.NewFromInt(10_000))
				srv.SetMarkPrice(a.Symbol, a.MarkPx.Add(drift))
			}
		}
	}()

	sugar.Infow("mock_exchange_ready", "addr", addr, "markets", len(universe), "chain_id", cfg.Venue.ChainID)
	if err := srv.Start(addr); err != nil {
		sugar.Fatalw("server_exited", "err", err)
	}
}
