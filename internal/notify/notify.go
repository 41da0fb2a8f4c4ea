// Package notify delivers best-effort event notifications. Delivery is not
// guaranteed; a failed send is logged and forgotten.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"
	"zback/internal/logger"

	"go.uber.org/zap"
)

// Notifier receives orchestration events worth telling an operator about.
type Notifier interface {
	Send(ctx context.Context, subject string, fields map[string]string)
}

// Noop discards every notification.
type Noop struct{}

func (Noop) Send(context.Context, string, map[string]string) {}

// Webhook posts events as JSON to a configured URL.
type Webhook struct {
	url string
	hc  *http.Client
}

func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type payload struct {
	Subject string            `json:"subject"`
	Time    time.Time         `json:"time"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (w *Webhook) Send(ctx context.Context, subject string, fields map[string]string) {
	body, err := json.Marshal(payload{
		Subject: subject,
		Time:    time.Now(),
		Fields:  fields,
	})
	if err != nil {
		logger.Log.Warn("failed to encode notification",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		logger.Log.Warn("failed to build notification request",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.hc.Do(req)
	if err != nil {
		logger.Log.Warn("failed to deliver notification",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		logger.Log.Warn("notification rejected",
			zap.String("subject", subject),
			zap.Int("status", resp.StatusCode))
	}
}

// ForURL returns a webhook notifier when url is set, otherwise Noop.
func ForURL(url string) Notifier {
	if url == "" {
		return Noop{}
	}
	return NewWebhook(url)
}
