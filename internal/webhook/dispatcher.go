// Package webhook delivers events to configured HTTP endpoints in batches,
// with retry on transient failure: a dedicated goroutine per endpoint, an
// http.Client, exponential retry with a capped backoff, and a "4xx is
// permanent, 5xx/network is retryable" classification.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mgmacleod/claude-sessions/internal/backoff"
	"github.com/mgmacleod/claude-sessions/internal/config"
	"github.com/mgmacleod/claude-sessions/internal/event"
	"github.com/mgmacleod/claude-sessions/internal/logging"
)

// dropRecorder receives webhook_drop_total increments; the
// metrics Collector implements this without this package importing it
// directly, avoiding an import cycle.
type dropRecorder interface {
	RecordWebhookDrop(kind string)
}

// Endpoint runs one configured webhook delivery target: a queue, a batching
// worker, and a retrying HTTP sender.
type Endpoint struct {
	cfg    config.WebhookEndpoint
	client *http.Client
	logger *logging.Logger
	metric dropRecorder
	limit  *rate.Limiter
	policy backoff.Policy

	queue chan event.Event
	wg    sync.WaitGroup
}

// NewEndpoint creates an Endpoint for cfg. Call Start to begin its worker.
func NewEndpoint(cfg config.WebhookEndpoint, metric dropRecorder, logger *logging.Logger) *Endpoint {
	if logger == nil {
		logger = logging.Default()
	}
	var limiter *rate.Limiter
	if cfg.RateLimitPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), max(1, int(cfg.RateLimitPerSecond)))
	}
	return &Endpoint{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
		metric: metric,
		limit:  limiter,
		policy: backoff.WebhookPolicy(cfg.RetryBackoff),
		queue:  make(chan event.Event, 4096),
	}
}

// Enqueue queues ev for delivery. It never blocks the caller (the poll
// thread): a full queue drops the incoming event and logs rather than
// backpressuring the dispatch loop. Unlike the async facade, which drops
// its oldest queued event, the queued events are kept.
func (e *Endpoint) Enqueue(ev event.Event) {
	select {
	case e.queue <- ev:
	default:
		e.logger.Warn(context.Background(), "webhook queue full, dropping event", "url", e.cfg.URL)
	}
}

// Start runs the batching worker until ctx is cancelled. On cancellation
// the queue is drained with a 2*batch_timeout grace period.
func (e *Endpoint) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx)
	}()
}

// Stop waits for the worker to finish draining and exit.
func (e *Endpoint) Stop() {
	e.wg.Wait()
}

func (e *Endpoint) run(ctx context.Context) {
	batch := make([]event.Event, 0, e.cfg.BatchSize)
	timer := time.NewTimer(e.cfg.BatchTimeout)
	defer timer.Stop()
	firstSeen := false

	flush := func(flushCtx context.Context) {
		if len(batch) == 0 {
			return
		}
		e.send(flushCtx, batch)
		batch = batch[:0]
		firstSeen = false
	}

	for {
		select {
		case <-ctx.Done():
			grace, cancel := context.WithTimeout(context.Background(), 2*e.cfg.BatchTimeout)
			e.drainRemaining(grace, &batch)
			flush(grace)
			cancel()
			return

		case ev := <-e.queue:
			batch = append(batch, ev)
			if !firstSeen {
				firstSeen = true
				timer.Reset(e.cfg.BatchTimeout)
			}
			if len(batch) >= e.cfg.BatchSize {
				flush(ctx)
				timer.Stop()
				timer.Reset(e.cfg.BatchTimeout)
			}

		case <-timer.C:
			flush(ctx)
			timer.Reset(e.cfg.BatchTimeout)
		}
	}
}

// drainRemaining collects whatever is still queued, non-blocking, up to
// ctx's deadline, so a clean shutdown doesn't silently drop events still
// in the channel buffer.
func (e *Endpoint) drainRemaining(ctx context.Context, batch *[]event.Event) {
	for {
		select {
		case ev := <-e.queue:
			*batch = append(*batch, ev)
		case <-ctx.Done():
			return
		default:
			return
		}
	}
}

type batchBody struct {
	DeliveryID string        `json:"delivery_id"`
	Events     []event.Event `json:"events"`
}

// send POSTs one batch, retrying on 5xx/network error up to MaxRetries with
// exponential backoff; 4xx is permanent. Every batch gets a fresh delivery
// id, included on the wire and in logs, so a receiver can de-duplicate
// retried deliveries.
func (e *Endpoint) send(ctx context.Context, batch []event.Event) {
	deliveryID := uuid.New().String()
	body, err := json.Marshal(batchBody{DeliveryID: deliveryID, Events: batch})
	if err != nil {
		e.logger.Error(ctx, "webhook batch marshal failed", "url", e.cfg.URL, "delivery_id", deliveryID, "error", err)
		return
	}

	for attempt := 1; attempt <= e.cfg.MaxRetries+1; attempt++ {
		if e.limit != nil {
			if err := e.limit.Wait(ctx); err != nil {
				return
			}
		}

		status, err := e.post(ctx, deliveryID, body)
		if err == nil {
			return
		}
		if status >= 400 && status < 500 {
			e.logger.Warn(ctx, "webhook batch rejected, dropping", "url", e.cfg.URL, "delivery_id", deliveryID, "status", status)
			e.recordDrop("4xx")
			return
		}
		if attempt > e.cfg.MaxRetries {
			e.logger.Warn(ctx, "webhook batch exhausted retries, dropping", "url", e.cfg.URL, "delivery_id", deliveryID, "error", err)
			e.recordDrop("retry_exhausted")
			return
		}

		delay := e.policy.Compute(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

func (e *Endpoint) post(ctx context.Context, deliveryID string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	for k, v := range e.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}
	return resp.StatusCode, fmt.Errorf("webhook returned status %d", resp.StatusCode)
}

func (e *Endpoint) recordDrop(kind string) {
	if e.metric != nil {
		e.metric.RecordWebhookDrop(kind)
	}
}

// Dispatcher owns one Endpoint per configured webhook.
type Dispatcher struct {
	endpoints []*Endpoint
}

// NewDispatcher builds a Dispatcher from configuration.
func NewDispatcher(cfgs []config.WebhookEndpoint, metric dropRecorder, logger *logging.Logger) *Dispatcher {
	d := &Dispatcher{}
	for _, cfg := range cfgs {
		d.endpoints = append(d.endpoints, NewEndpoint(cfg, metric, logger))
	}
	return d
}

// Start begins every endpoint's worker.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, ep := range d.endpoints {
		ep.Start(ctx)
	}
}

// Stop waits for every endpoint's worker to finish draining.
func (d *Dispatcher) Stop() {
	for _, ep := range d.endpoints {
		ep.Stop()
	}
}

// Handle enqueues ev on every endpoint. Register this as an OnAny handler
// on the pipeline's Emitter.
func (d *Dispatcher) Handle(_ context.Context, ev event.Event) {
	for _, ep := range d.endpoints {
		ep.Enqueue(ev)
	}
}
