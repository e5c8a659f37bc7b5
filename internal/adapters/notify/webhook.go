package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// Webhook implementa ports.Channel enviando la alerta como JSON por POST
// a cada URL configurada.
type Webhook struct {
	urls   []string
	client *http.Client
}

// NewWebhook crea el canal con las URLs destino.
func NewWebhook(urls []string) *Webhook {
	return &Webhook{
		urls:   urls,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implementa ports.Channel.
func (w *Webhook) Name() string { return "webhook" }

// Deliver implementa ports.Channel. Si alguna URL falla se devuelve el
// primer error, pero se intenta entregar a todas.
func (w *Webhook) Deliver(ctx context.Context, intent domain.AlertIntent) error {
	body, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("notify.Webhook: encode alert %s: %w", intent.ID, err)
	}

	var firstErr error
	for _, url := range w.urls {
		if err := w.post(ctx, url, body); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *Webhook) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Webhook: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notify.Webhook: post %s: status %d", url, resp.StatusCode)
	}
	return nil
}
