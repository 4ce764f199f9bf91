package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/replaykit/replayd/internal/infrastructure/logging"
	"github.com/replaykit/replayd/internal/infrastructure/monitoring"
	"github.com/replaykit/replayd/internal/infrastructure/resilience"
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	RPS     float64
}

// Webhook posts each notification as JSON to a configured endpoint.
// Delivery is retried at the transport level and shielded by a circuit
// breaker; callers should wrap it in Async so slow endpoints never
// touch the controller.
type Webhook struct {
	emitter
	url     string
	client  *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewWebhook builds the sink. A non-positive RPS falls back to 5/s.
func NewWebhook(cfg WebhookConfig, logger *logging.Logger, metrics *monitoring.Metrics) *Webhook {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = nil

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "replayd/1.0").
		SetHeader("Content-Type", "application/json")
	client.SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("webhook", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	rps := cfg.RPS
	if rps <= 0 {
		rps = 5
	}

	w := &Webhook{
		url:     cfg.URL,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		breaker: breaker,
		logger:  logger.Named("webhook"),
		metrics: metrics,
	}
	w.emitter = emitter{emit: w.send}
	return w
}

// BreakerState exposes the breaker for health reporting.
func (w *Webhook) BreakerState() resilience.State {
	return w.breaker.State()
}

func (w *Webhook) send(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := w.limiter.Wait(ctx); err != nil {
		w.metrics.RecordNotification("webhook", string(ev.Kind), "throttled")
		return
	}

	err := w.breaker.Do(func() error {
		resp, err := w.client.R().
			SetContext(ctx).
			SetBody(ev).
			Post(w.url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("webhook returned %s", resp.Status())
		}
		return nil
	})

	switch err {
	case nil:
		w.metrics.RecordNotification("webhook", string(ev.Kind), "success")
	case resilience.ErrCircuitOpen, resilience.ErrTooManyRequests:
		w.metrics.RecordNotification("webhook", string(ev.Kind), "circuit_open")
		w.logger.Warn("Webhook circuit open, dropping notification",
			zap.String("kind", string(ev.Kind)))
	default:
		w.metrics.RecordNotification("webhook", string(ev.Kind), "error")
		w.logger.Warn("Webhook delivery failed",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}
