package feed_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perpdesk/hyperbasket/pkg/basket"
	"github.com/perpdesk/hyperbasket/pkg/crypto"
	"github.com/perpdesk/hyperbasket/pkg/exchange"
	"github.com/perpdesk/hyperbasket/pkg/exchange/mockserver"
	"github.com/perpdesk/hyperbasket/pkg/feed"
	"github.com/perpdesk/hyperbasket/pkg/util"
)

func TestFeed_TracksMarkPrices(t *testing.T) {
	srv := mockserver.New(crypto.DefaultDomain(), nil, util.NopLogger().Sugar())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := strings.Replace(ts.URL, "http://", "ws://", 1) + "/ws"

	client := exchange.NewClient(ts.URL, util.NopLogger().Sugar())
	seed, err := client.Meta(context.Background())
	if err != nil {
		t.Fatalf("Meta() error: %v", err)
	}

	f := feed.New(wsURL, seed, util.NopLogger().Sugar())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	// Seeded snapshot is available immediately.
	if got := f.Snapshot()["BTC"].MarkPrice; !got.Equal(decimal.NewFromInt(50_000)) {
		t.Fatalf("seeded BTC mark = %s, want 50000", got)
	}

	// Push a new mark and wait for the frame to land. The broadcast only
	// reaches subscribed clients, so retry until the subscription is live.
	want := decimal.NewFromInt(51_000)
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		srv.SetMarkPrice("BTC", want)
		if f.Snapshot()["BTC"].MarkPrice.Equal(want) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	got := f.Snapshot()["BTC"]
	if !got.MarkPrice.Equal(want) {
		t.Fatalf("BTC mark = %s, want %s after broadcast", got.MarkPrice, want)
	}
	// Static metadata survives price updates.
	if got.SizeDecimals != 5 || got.MaxLeverage != 50 {
		t.Errorf("BTC static meta lost: %+v", got)
	}
}

func TestFeed_SnapshotIsACopy(t *testing.T) {
	seed := map[string]basket.MarketMeta{
		"BTC": {Symbol: "BTC", MarkPrice: decimal.NewFromInt(50_000), SizeDecimals: 5, MaxLeverage: 50},
	}
	f := feed.New("ws://unused", seed, util.NopLogger().Sugar())

	snap := f.Snapshot()
	snap["BTC"] = basket.MarketMeta{Symbol: "BTC"}
	delete(snap, "BTC")

	if got := f.Snapshot()["BTC"].MarkPrice; !got.Equal(decimal.NewFromInt(50_000)) {
		t.Errorf("mutating a snapshot leaked into the feed: BTC mark = %s", got)
	}

	// The seed map is copied too.
	seed["BTC"] = basket.MarketMeta{Symbol: "BTC"}
	if got := f.Snapshot()["BTC"].MaxLeverage; got != 50 {
		t.Errorf("mutating the seed leaked into the feed: maxLeverage = %d", got)
	}
}
