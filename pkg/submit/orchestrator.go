// Package submit drives signed basket submission: one slot-queued worker per
// basket, per-order EIP-712 signing against the account's serialized nonce,
// sequential venue calls with a fixed inter-order delay, and transient-only
// retry with exponential backoff.
package submit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/perpdesk/hyperbasket/params"
	"github.com/perpdesk/hyperbasket/pkg/basket"
	"github.com/perpdesk/hyperbasket/pkg/crypto"
	"github.com/perpdesk/hyperbasket/pkg/exchange"
	"github.com/perpdesk/hyperbasket/pkg/metrics"
	"github.com/perpdesk/hyperbasket/pkg/nonce"
	"github.com/perpdesk/hyperbasket/pkg/util"
)

// State is a submission's lifecycle stage.
type State string

const (
	StateIdle            State = "idle"
	StateQueued          State = "queued"
	StateSigning         State = "signing"
	StateSubmitting      State = "submitting"
	StateSucceeded       State = "succeeded"
	StateFailed          State = "failed"
	StatePartiallyFailed State = "partially_failed"
)

// ErrPlanNotSubmittable rejects a submission whose plan failed risk
// validation or prepared nothing.
var ErrPlanNotSubmittable = errors.New("plan is not submittable")

// Venue is the submission surface of the exchange client.
type Venue interface {
	SubmitOrder(ctx context.Context, req exchange.SignedRequest) (exchange.OrderAck, error)
}

// Request is one basket handed to the orchestrator.
type Request struct {
	Plan *basket.BasketPlan

	// IdempotencyKey prefixes every order's cloid. Generated (uuid) when
	// empty. Advisory: the venue dedupes on cloid, the client keeps no
	// dedup store of its own.
	IdempotencyKey string

	// RetryAttempts/RetryDelay override the configured retry policy when
	// set (>0). Zero means use defaults.
	RetryAttempts int
	RetryDelay    time.Duration
}

// OrderOutcome is the terminal result for one prepared order.
type OrderOutcome struct {
	Symbol string
	Cloid  string
	Status string // filled | resting | rejected | failed
	Ack    exchange.OrderAck
	Err    error
}

// Result is the terminal result for one basket.
type Result struct {
	State    State
	Key      string
	Outcomes []OrderOutcome
}

// Orchestrator owns the slot queue and the signing/submission pipeline.
// Safe for concurrent Submit calls; baskets beyond the concurrency cap
// queue FIFO.
type Orchestrator struct {
	venue  Venue
	signer crypto.WalletSigner
	nonces *nonce.Cache
	domain crypto.Domain
	cfg    params.Submit
	bld    *exchange.BuilderInfo
	clock  util.Clock
	queue  *slotQueue
	log    *zap.SugaredLogger
}

// Options carries the optional collaborators; zero values get defaults.
type Options struct {
	Clock   util.Clock
	Builder *exchange.BuilderInfo
}

// New creates an orchestrator. cfg zero-values fall back to params.Default().
func New(venue Venue, signer crypto.WalletSigner, nonces *nonce.Cache, domain crypto.Domain, cfg params.Submit, log *zap.SugaredLogger, opts Options) *Orchestrator {
	def := params.Default().Submit
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = def.RetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Orchestrator{
		venue:  venue,
		signer: signer,
		nonces: nonces,
		domain: domain,
		cfg:    cfg,
		bld:    opts.Builder,
		clock:  clock,
		queue:  newSlotQueue(cfg.MaxConcurrent),
		log:    log,
	}
}

// Submit runs one basket to a terminal state. The returned error covers
// pre-flight failures only (unsubmittable plan, cancelled while queued);
// per-order failures land in Result.Outcomes with a Failed or
// PartiallyFailed state. There is no mid-flight cancellation: once an HTTP
// call is dispatched it completes, and a caller that stops waiting on ctx
// simply never sees the late outcomes.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	if req.Plan == nil || !req.Plan.CanSubmit || len(req.Plan.Prepared) == 0 {
		metrics.IncRiskRejection()
		return nil, ErrPlanNotSubmittable
	}
	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}
	for _, s := range req.Plan.Skipped {
		metrics.IncOrderSkipped(string(s.Code))
	}

	o.log.Infow("basket_queued", "key", key, "orders", len(req.Plan.Prepared), "queue_depth", o.queue.depth())
	metrics.SetQueueDepth(o.queue.depth())
	if err := o.queue.acquire(ctx); err != nil {
		return nil, fmt.Errorf("failed to enter submission queue: %w", err)
	}
	defer func() {
		o.queue.release()
		metrics.SetQueueDepth(o.queue.depth())
	}()

	result := &Result{State: StateSubmitting, Key: key}
	for i, order := range req.Plan.Prepared {
		if i > 0 && o.cfg.InterOrderDelay > 0 {
			select {
			case <-ctx.Done():
				// Remaining orders are never dispatched.
				for _, rest := range req.Plan.Prepared[i:] {
					result.Outcomes = append(result.Outcomes, OrderOutcome{
						Symbol: rest.Symbol,
						Status: "failed",
						Err:    ctx.Err(),
					})
				}
				result.State = finalState(result.Outcomes)
				metrics.IncSubmission(string(result.State))
				return result, nil
			case <-o.clock.After(o.cfg.InterOrderDelay):
			}
		}
		cloid := fmt.Sprintf("%s-%d", key, i)
		result.Outcomes = append(result.Outcomes, o.submitOne(ctx, req, order, cloid))
	}

	result.State = finalState(result.Outcomes)
	metrics.IncSubmission(string(result.State))
	o.log.Infow("basket_done", "key", key, "state", result.State)
	return result, nil
}

func (o *Orchestrator) submitOne(ctx context.Context, req Request, order basket.PreparedOrder, cloid string) OrderOutcome {
	outcome := OrderOutcome{Symbol: order.Symbol, Cloid: cloid}
	addr := o.signer.Address()

	n, err := o.nonces.Acquire(ctx, addr)
	if err != nil {
		outcome.Status = "failed"
		outcome.Err = fmt.Errorf("failed to acquire nonce: %w", err)
		metrics.IncOrderSubmitted(outcome.Status)
		return outcome
	}

	action := crypto.OrderAction{
		Symbol:     order.Symbol,
		Side:       sideCode(order.Side),
		MarketType: typeCode(order.Type),
		Size:       order.Size.String(),
		Nonce:      n,
		Cloid:      cloid,
		Owner:      addr,
	}
	if order.Type == basket.Limit {
		action.Price = order.Price.String()
	}

	sig, err := o.signer.SignTypedData(ctx, crypto.OrderTypedData(o.domain, action))
	if err != nil {
		o.nonces.Release(addr)
		outcome.Status = "failed"
		outcome.Err = fmt.Errorf("failed to sign order: %w", err)
		metrics.IncOrderSubmitted(outcome.Status)
		return outcome
	}

	wire := exchange.SignedRequest{
		Action: exchange.WireOrder{
			Symbol:     action.Symbol,
			Side:       action.Side,
			MarketType: action.MarketType,
			Size:       action.Size,
			Price:      action.Price,
			Cloid:      action.Cloid,
			Owner:      addr.Hex(),
		},
		Nonce:     n,
		Signature: "0x" + hex.EncodeToString(sig),
		Builder:   o.bld,
	}

	policy := retryPolicy{
		attempts: o.cfg.RetryAttempts,
		delay:    o.cfg.RetryDelay,
		clock:    o.clock,
		log:      o.log,
	}
	if req.RetryAttempts > 0 {
		policy.attempts = req.RetryAttempts
	}
	if req.RetryDelay > 0 {
		policy.delay = req.RetryDelay
	}

	var ack exchange.OrderAck
	err = policy.do(ctx, cloid, func() error {
		var subErr error
		ack, subErr = o.venue.SubmitOrder(ctx, wire)
		return subErr
	})
	if err != nil {
		o.nonces.Release(addr)
		var apiErr *exchange.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "bad_nonce" {
			// Our counter diverged from the venue's; re-seed on next use.
			o.nonces.Invalidate(addr)
		}
		outcome.Status = "failed"
		outcome.Err = err
		metrics.IncOrderSubmitted(outcome.Status)
		o.log.Errorw("order_failed", "cloid", cloid, "symbol", order.Symbol, "err", err)
		return outcome
	}

	outcome.Ack = ack
	outcome.Status = ack.Status
	if ack.Accepted() {
		if err := o.nonces.Confirm(addr, n); err != nil {
			// The order is live either way; log and carry on.
			o.log.Errorw("nonce_confirm_failed", "address", addr.Hex(), "err", err)
		}
	} else {
		// A venue-side rejection never consumed the nonce.
		o.nonces.Release(addr)
		outcome.Err = errors.New(ack.Error)
	}
	metrics.IncOrderSubmitted(outcome.Status)
	return outcome
}

func finalState(outcomes []OrderOutcome) State {
	accepted := 0
	for _, out := range outcomes {
		if out.Ack.Accepted() {
			accepted++
		}
	}
	switch accepted {
	case len(outcomes):
		return StateSucceeded
	case 0:
		return StateFailed
	default:
		return StatePartiallyFailed
	}
}

func sideCode(s basket.Side) uint8 {
	if s == basket.Sell {
		return 2
	}
	return 1
}

func typeCode(t basket.OrderType) uint8 {
	if t == basket.Limit {
		return 2
	}
	return 1
}
