package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/detector"
)

// Notification wraps a detected spike with the threshold that tripped it.
type Notification struct {
	Event        detector.AlertEvent
	ThresholdPct decimal.Decimal
}

// Notifier delivers a formatted alert to an external sink. Delivery is
// fire-and-forget: the caller logs failures, never retries mid-tick.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// WebhookNotifier POSTs alerts as a Slack-compatible text payload.
type WebhookNotifier struct {
	webhookURL string
	client     *http.Client
	logger     zerolog.Logger
}

// NewWebhookNotifier constructs a webhook notifier.
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "alert_webhook").Logger(),
	}
}

// Notify posts the rendered message to the configured webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, note Notification) error {
	if n.webhookURL == "" {
		return fmt.Errorf("webhook url not configured")
	}

	body, err := json.Marshal(map[string]string{"text": renderMessage(note)})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook rejected payload: status %d", resp.StatusCode)
	}

	n.logger.Info().
		Str("asset", note.Event.Asset.String()).
		Str("direction", string(note.Event.Direction)).
		Str("pct_change", note.Event.PctChange.String()).
		Msg("alert delivered")
	return nil
}

func renderMessage(note Notification) string {
	event := note.Event
	builder := strings.Builder{}
	builder.WriteString("🚨 Volatility alert\n")
	builder.WriteString(fmt.Sprintf("Asset: %s\n", event.Asset))
	builder.WriteString(fmt.Sprintf("Direction: %s\n", event.Direction))
	builder.WriteString(fmt.Sprintf("Change: %s%% (threshold %s%%)\n", event.PctChange.StringFixed(2), note.ThresholdPct.StringFixed(2)))
	builder.WriteString(fmt.Sprintf("Window: %s .. %s UTC\n", event.WindowStart.UTC().Format(time.RFC3339), event.WindowEnd.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Baseline: %s USD\n", event.Baseline.String()))
	builder.WriteString(fmt.Sprintf("Current: %s USD\n", event.Current.String()))
	return builder.String()
}

var _ Notifier = (*WebhookNotifier)(nil)
