// basket-plan builds a basket plan against a live venue and optionally
// submits it: the full preview -> risk -> sign -> submit path from the
// command line.
//
// Usage:
//
//	basket-plan -symbols BTC,ETH,SOL -usd 1000
//	basket-plan -symbols BTC,ETH -usd 2500 -side sell -slippage 50
//	PRIVATE_KEY=0x... basket-plan -symbols BTC -usd 100 -submit
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/hyperbasket/params"
	"github.com/perpdesk/hyperbasket/pkg/basket"
	"github.com/perpdesk/hyperbasket/pkg/crypto"
	"github.com/perpdesk/hyperbasket/pkg/exchange"
	"github.com/perpdesk/hyperbasket/pkg/nonce"
	"github.com/perpdesk/hyperbasket/pkg/submit"
	"github.com/perpdesk/hyperbasket/pkg/util"
)

func main() {
	var (
		symbolsFlag  = flag.String("symbols", "", "comma-separated symbols (required)")
		usdFlag      = flag.String("usd", "", "total USD to allocate (required)")
		sideFlag     = flag.String("side", "buy", "buy or sell")
		typeFlag     = flag.String("type", "market", "market or limit")
		slippageFlag = flag.Int("slippage", 0, "slippage tolerance in bps (market orders)")
		leverageFlag = flag.Int("leverage", 0, "requested leverage, 0 = venue default")
		raiseFlag    = flag.Bool("raise-to-min", false, "raise below-minimum allocations instead of dropping")
		submitFlag   = flag.Bool("submit", false, "sign and submit the plan (needs PRIVATE_KEY)")
	)
	flag.Parse()

	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if *symbolsFlag == "" || *usdFlag == "" {
		flag.Usage()
		os.Exit(2)
	}
	totalUsd, err := decimal.NewFromString(*usdFlag)
	if err != nil {
		sugar.Fatalw("bad_usd_flag", "value", *usdFlag, "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := exchange.NewClient(cfg.Venue.BaseURL, sugar)
	metas, err := client.Meta(ctx)
	if err != nil {
		sugar.Fatalw("meta_fetch_failed", "err", err)
	}

	input := basket.BasketInput{
		OrderType:   basket.OrderType(*typeFlag),
		Side:        basket.Side(*sideFlag),
		TotalUsd:    totalUsd,
		Symbols:     strings.Split(*symbolsFlag, ","),
		Leverage:    *leverageFlag,
		SlippageBps: *slippageFlag,
	}

	opts := basket.PlanOptions{Limits: riskLimits(cfg.Risk)}
	if *raiseFlag {
		opts.Policy = basket.RaiseToMinimum
	}

	plan, err := basket.Preview(input, metas, opts)
	if err != nil {
		sugar.Fatalw("preview_failed", "err", err)
	}

	out, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		sugar.Fatalw("encode_failed", "err", err)
	}
	fmt.Println(string(out))

	if !*submitFlag {
		return
	}
	if !plan.CanSubmit {
		sugar.Fatalw("plan_not_submittable", "errors", plan.Errors)
	}

	keyHex := os.Getenv("PRIVATE_KEY")
	if keyHex == "" {
		sugar.Fatalw("missing_private_key", "hint", "set PRIVATE_KEY to submit")
	}
	signer, err := crypto.FromPrivateKeyHex(keyHex)
	if err != nil {
		sugar.Fatalw("bad_private_key", "err", err)
	}

	store, err := nonce.OpenStore(cfg.NonceDBPath)
	if err != nil {
		sugar.Fatalw("nonce_store_failed", "path", cfg.NonceDBPath, "err", err)
	}
	defer store.Close()
	nonces := nonce.NewCache(store, client.AccountNonce, sugar)

	domain := crypto.DefaultDomain()
	domain.ChainID = big.NewInt(cfg.Venue.ChainID)

	var builder *exchange.BuilderInfo
	if cfg.Venue.BuilderCode != "" {
		builder = &exchange.BuilderInfo{Code: cfg.Venue.BuilderCode, FeeTenthBps: cfg.Venue.BuilderFeeTenthBps}
	}

	orch := submit.New(client, signer, nonces, domain, cfg.Submit, sugar, submit.Options{Builder: builder})
	result, err := orch.Submit(ctx, submit.Request{Plan: plan})
	if err != nil {
		sugar.Fatalw("submit_failed", "err", err)
	}

	sugar.Infow("basket_result", "key", result.Key, "state", result.State)
	for _, o := range result.Outcomes {
		if o.Err != nil {
			sugar.Warnw("order_outcome", "symbol", o.Symbol, "cloid", o.Cloid, "status", o.Status, "err", o.Err)
			continue
		}
		sugar.Infow("order_outcome", "symbol", o.Symbol, "cloid", o.Cloid, "status", o.Status, "oid", o.Ack.OrderID)
	}
	if result.State != submit.StateSucceeded {
		os.Exit(1)
	}
}

func riskLimits(r params.Risk) basket.Limits {
	return basket.Limits{
		MaxGrossExposureUsd:  r.MaxGrossExposureUsd,
		MaxPerAssetUsd:       r.MaxPerAssetUsd,
		MinPerAssetUsd:       r.MinPerAssetUsd,
		MaxLongPositions:     r.MaxLongPositions,
		MaxShortPositions:    r.MaxShortPositions,
		MaxTotalPositions:    r.MaxTotalPositions,
		MaxEffectiveLeverage: r.MaxEffectiveLeverage,
	}
}
