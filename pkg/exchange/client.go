package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/perpdesk/hyperbasket/pkg/basket"
)

const defaultRequestTimeout = 10 * time.Second

// Client talks to a venue's REST surface: /info for read-only queries and
// /exchange for signed order submission.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.SugaredLogger
}

// NewClient creates a client for the venue at baseURL.
func NewClient(baseURL string, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		log:     log,
	}
}

// Meta fetches the venue's market universe keyed by symbol.
func (c *Client) Meta(ctx context.Context) (map[string]basket.MarketMeta, error) {
	var resp MetaResponse
	if err := c.post(ctx, "/info", InfoRequest{Type: "meta"}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch meta: %w", err)
	}
	c.log.Infow("fetched_meta", "markets", len(resp.Universe))
	return resp.MarketMetas(), nil
}

// AccountNonce fetches the next expected nonce for an account. Used to
// seed the local nonce cache; the cache owns all increments after that.
func (c *Client) AccountNonce(ctx context.Context, address string) (uint64, error) {
	var resp NonceResponse
	if err := c.post(ctx, "/info", InfoRequest{Type: "nonce", User: address}, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch nonce for %s: %w", address, err)
	}
	return resp.Nonce, nil
}

// SubmitOrder posts one signed order. A venue-side rejection comes back as
// a rejected OrderAck with a nil error; transport and protocol failures
// come back as an error.
func (c *Client) SubmitOrder(ctx context.Context, req SignedRequest) (OrderAck, error) {
	var ack OrderAck
	if err := c.post(ctx, "/exchange", req, &ack); err != nil {
		return OrderAck{}, fmt.Errorf("failed to submit order %s: %w", req.Action.Cloid, err)
	}
	c.log.Infow("order_submitted",
		"symbol", req.Action.Symbol,
		"cloid", req.Action.Cloid,
		"status", ack.Status,
	)
	return ack, nil
}

// CancelOrder posts one signed cancel for a resting order.
func (c *Client) CancelOrder(ctx context.Context, req SignedCancelRequest) (OrderAck, error) {
	var ack OrderAck
	if err := c.post(ctx, "/cancel", req, &ack); err != nil {
		return OrderAck{}, fmt.Errorf("failed to cancel order %s: %w", req.Action.Cloid, err)
	}
	c.log.Infow("order_cancelled",
		"symbol", req.Action.Symbol,
		"cloid", req.Action.Cloid,
		"status", ack.Status,
	)
	return ack, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: httpResp.StatusCode, Message: string(body)}
		if parsed, ok := decodeErrorBody(body); ok {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("%w: %s %v", ErrMalformedResponse, path, err)
	}
	return nil
}
