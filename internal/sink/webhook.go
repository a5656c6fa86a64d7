package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/typewatch/typewatch/internal/safeurl"
	"github.com/typewatch/typewatch/phase"
)

// Webhook POSTs JSON to a URL with retry and exponential backoff.
type Webhook struct {
	url        string
	client     *http.Client
	maxRetries int
	logger     *slog.Logger

	validate     func(string) error
	validateOnce sync.Once
	validateErr  error
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// WithWebhookValidator overrides the URL validator. The default accepts any
// well-formed http(s) URL, loopback included, because sink URLs come from
// operator config and the documented consumers (audio cue generators,
// status indicators) run locally. Deployments forwarding to URLs they do
// not control can install safeurl.Validate for the full private-address
// policy.
func WithWebhookValidator(fn func(string) error) WebhookOption {
	return func(w *Webhook) { w.validate = fn }
}

// NewWebhook creates a Webhook sink targeting the given URL.
func NewWebhook(url string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:        url,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		logger:     slog.Default(),
		validate:   safeurl.ValidateScheme,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

func (w *Webhook) SendPhase(ctx context.Context, ev phase.Event) error {
	return w.post(ctx, "phase", ev)
}

func (w *Webhook) SendPick(ctx context.Context, ev phase.PickEvent) error {
	return w.post(ctx, "pick", ev)
}

func (w *Webhook) Close() error { return nil }

func (w *Webhook) post(ctx context.Context, typ string, data any) error {
	// URL sanity check, applied once per sink lifetime.
	w.validateOnce.Do(func() { w.validateErr = w.validate(w.url) })
	if w.validateErr != nil {
		return fmt.Errorf("webhook: url rejected: %w", w.validateErr)
	}

	body, err := json.Marshal(envelope{Type: typ, Data: data})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("webhook: request failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook: status %d", resp.StatusCode)
		w.logger.Warn("webhook: bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}
