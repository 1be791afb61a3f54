package submit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/perpdesk/hyperbasket/pkg/exchange"
	"github.com/perpdesk/hyperbasket/pkg/metrics"
	"github.com/perpdesk/hyperbasket/pkg/util"
)

// retryPolicy re-runs an operation after transient failures with
// exponential backoff: delay * 2^attempt. Fatal errors (rejections,
// malformed responses) surface immediately.
type retryPolicy struct {
	attempts int // retries after the first try
	delay    time.Duration
	clock    util.Clock
	log      *zap.SugaredLogger
}

func (p retryPolicy) do(ctx context.Context, label string, op func() error) error {
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if attempt >= p.attempts || !exchange.IsTransient(err) {
			return err
		}

		backoff := p.delay * (1 << attempt)
		metrics.IncOrderRetry()
		p.log.Warnw("order_retry",
			"label", label,
			"attempt", attempt+1,
			"backoff", backoff,
			"err", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.clock.After(backoff):
		}
	}
}
