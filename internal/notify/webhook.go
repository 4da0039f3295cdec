package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"livraison-be/internal/logger"

	"go.uber.org/zap"
)

type webhookNotifier struct {
	url        string
	httpClient *http.Client
}

// NewWebhookNotifier POSTs each event as JSON to url.
func NewWebhookNotifier(url string) Notifier {
	return &webhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *webhookNotifier) Notify(ctx context.Context, e Event) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "notify"),
		zap.String("method", "WebhookNotify"),
		zap.String("event", string(e.Type)),
	)

	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if id := logger.RequestIDFrom(ctx); id != "" {
		req.Header.Set(logger.RequestIDHeader, id)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
