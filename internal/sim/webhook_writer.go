package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"vanara-sim/internal/telemetry"
)

const (
	webhookQueueSize = 256
	webhookTimeout   = 5 * time.Second
)

// ValidWebhookURL reports whether raw is an absolute http or https URL.
func ValidWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// WebhookWriter posts each event as JSON to a webhook. Delivery is
// fire-and-forget: events are queued without blocking, dropped when the
// queue is full, and never retried.
type WebhookWriter struct {
	mu     sync.RWMutex
	url    string
	closed bool

	client *http.Client
	queue  chan telemetry.Event
	done   chan struct{}
	log    *slog.Logger
}

// NewWebhookWriter starts the delivery goroutine. rawURL may be empty.
func NewWebhookWriter(rawURL string, log *slog.Logger) *WebhookWriter {
	if log == nil {
		log = slog.Default()
	}
	w := &WebhookWriter{
		url:    rawURL,
		client: &http.Client{Timeout: webhookTimeout},
		queue:  make(chan telemetry.Event, webhookQueueSize),
		done:   make(chan struct{}),
		log:    log,
	}
	go w.run()
	return w
}

// SetURL replaces the target URL.
func (w *WebhookWriter) SetURL(rawURL string) {
	w.mu.Lock()
	w.url = rawURL
	w.mu.Unlock()
}

// URL returns the target URL.
func (w *WebhookWriter) URL() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.url
}

// WriteEvent queues ev for delivery. It never blocks and never fails.
func (w *WebhookWriter) WriteEvent(ev telemetry.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed || !ValidWebhookURL(w.url) {
		return nil
	}
	select {
	case w.queue <- ev:
	default:
		sinkErrors.WithLabelValues("webhook_dropped").Inc()
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be sent.
func (w *WebhookWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return nil
}

func (w *WebhookWriter) run() {
	defer close(w.done)
	for ev := range w.queue {
		w.post(ev)
	}
}

func (w *WebhookWriter) post(ev telemetry.Event) {
	target := w.URL()
	if !ValidWebhookURL(target) {
		return
	}
	body, err := json.Marshal(ev)
	if err != nil {
		w.log.Error("webhook marshal failed", "event", ev.Name, "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		w.log.Error("webhook request failed", "event", ev.Name, "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		sinkErrors.WithLabelValues("webhook").Inc()
		w.log.Warn("webhook delivery failed", "event", ev.Name, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		sinkErrors.WithLabelValues("webhook").Inc()
		w.log.Warn("webhook rejected event", "event", ev.Name, "status", resp.StatusCode)
	}
}
