// Package feed maintains a live snapshot of market metadata from the
// venue's allMids WebSocket channel. Planning code takes the snapshot map;
// nothing downstream ever touches the connection.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/perpdesk/hyperbasket/pkg/basket"
)

const (
	reconnectDelay = 2 * time.Second
	readTimeout    = 90 * time.Second
)

type subscribeMsg struct {
	Method       string `json:"method"`
	Subscription struct {
		Type string `json:"type"`
	} `json:"subscription"`
}

type midsFrame struct {
	Channel string            `json:"channel"`
	Data    map[string]string `json:"data"`
}

// Feed tracks mark prices over a WebSocket subscription. The seed snapshot
// (usually a /info meta fetch) supplies the static half of each MarketMeta;
// the feed only moves the mark prices.
type Feed struct {
	url string
	log *zap.SugaredLogger

	mu    sync.RWMutex
	metas map[string]basket.MarketMeta
}

// New creates a feed seeded with a metadata snapshot.
func New(wsURL string, seed map[string]basket.MarketMeta, log *zap.SugaredLogger) *Feed {
	metas := make(map[string]basket.MarketMeta, len(seed))
	for k, v := range seed {
		metas[k] = v
	}
	return &Feed{url: wsURL, log: log, metas: metas}
}

// Snapshot returns a copy of the current metadata map, safe to hand to the
// allocator.
func (f *Feed) Snapshot() map[string]basket.MarketMeta {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]basket.MarketMeta, len(f.metas))
	for k, v := range f.metas {
		out[k] = v
	}
	return out
}

// Run connects, subscribes and consumes frames until ctx is done,
// reconnecting and resubscribing after any failure.
func (f *Feed) Run(ctx context.Context) {
	for {
		if err := f.session(ctx); err != nil {
			f.log.Warnw("feed_disconnected", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *Feed) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Drop the read loop when the caller stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	var sub subscribeMsg
	sub.Method = "subscribe"
	sub.Subscription.Type = "allMids"
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	f.log.Infow("feed_subscribed", "url", f.url)

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame midsFrame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Channel != "allMids" {
			continue
		}
		f.applyMids(frame.Data)
	}
}

func (f *Feed) applyMids(mids map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for symbol, raw := range mids {
		px, err := decimal.NewFromString(raw)
		if err != nil || !px.IsPositive() {
			continue
		}
		meta, ok := f.metas[symbol]
		if !ok {
			// Unknown symbol: price alone is not enough metadata to trade on.
			continue
		}
		meta.MarkPrice = px
		f.metas[symbol] = meta
	}
}
