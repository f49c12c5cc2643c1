// Package webhook posts scrape outcomes to caller-supplied endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/json-iterator/go"

	"github.com/use-agent/profilr/config"
)

// Event types.
const (
	EventScraped = "profile.scraped"
	EventFailed  = "profile.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Profilr-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	ScrapeID  string `json:"scrape_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Notifier delivers events in the background with retries. A nil Notifier
// drops every event.
type Notifier struct {
	client *http.Client
	secret string
	delays []time.Duration // before each attempt

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

// New builds a Notifier from cfg.
func New(cfg config.WebhookConfig) *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: cfg.Timeout},
		secret: cfg.Secret,
		delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
		stop:   make(chan struct{}),
	}
}

// Deliver sends one event synchronously.
func (n *Notifier) Deliver(ctx context.Context, url string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Profilr-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Notify queues an event for url. Delivery is retried after 1s, 5s and 30s;
// Close abandons pending retries.
func (n *Notifier) Notify(url, eventType, scrapeID string, data any) {
	if n == nil || url == "" {
		return
	}
	event := &Event{
		Type:      eventType,
		ScrapeID:  scrapeID,
		Timestamp: time.Now().Unix(),
		Data:      data,
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		log := slog.With("url", url, "event", event.Type, "scrape_id", event.ScrapeID)
		for attempt, delay := range n.delays {
			if !n.wait(delay) {
				log.Warn("webhook delivery abandoned on shutdown", "attempt", attempt+1)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
			err := n.Deliver(ctx, url, event)
			cancel()
			if err == nil {
				log.Info("webhook delivered", "attempt", attempt+1)
				return
			}
			log.Warn("webhook delivery failed", "attempt", attempt+1, "error", err)
		}
		log.Error("webhook delivery exhausted all retries")
	}()
}

// wait sleeps for d and reports false when the Notifier closes first.
func (n *Notifier) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-n.stop:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-n.stop:
		return false
	case <-t.C:
		return true
	}
}

// Close abandons pending retries and waits for in-flight deliveries.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.once.Do(func() { close(n.stop) })
	n.wg.Wait()
	n.client.CloseIdleConnections()
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
