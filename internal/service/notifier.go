package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bloodbank/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Notifier outbound shortage / expiry notices.
type Notifier interface {
	NotifyShortage(ctx context.Context, n domain.ShortageNotice) error
	NotifyExpiry(ctx context.Context, n domain.ExpiryNotice) error
}

// Publisher the subset of the MQTT client the notifier needs.
type Publisher interface {
	Publish(topic string, retained bool, payload []byte) error
}

// MQTTNotifier publishes JSON notices to <prefix>/shortage/<component> and
// <prefix>/expiry/<component>.
type MQTTNotifier struct {
	pub    Publisher
	prefix string
}

func NewMQTTNotifier(pub Publisher, topicPrefix string) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, prefix: strings.TrimSuffix(topicPrefix, "/")}
}

func (n *MQTTNotifier) topic(kind string, ct domain.ComponentType) string {
	return fmt.Sprintf("%s/%s/%s", n.prefix, kind, ct.Slug())
}

func (n *MQTTNotifier) NotifyShortage(_ context.Context, notice domain.ShortageNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal shortage notice: %w", err)
	}
	return n.pub.Publish(n.topic("shortage", notice.ComponentType), false, payload)
}

func (n *MQTTNotifier) NotifyExpiry(_ context.Context, notice domain.ExpiryNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal expiry notice: %w", err)
	}
	return n.pub.Publish(n.topic("expiry", notice.ComponentType), false, payload)
}

// webhookEnvelope body posted to the coordination endpoint
type webhookEnvelope struct {
	Type   string `json:"type"`
	SentAt int64  `json:"sent_at"`
	Notice any    `json:"notice"`
}

// WebhookNotifier posts notices to a regional coordination endpoint.
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

func NewWebhookNotifier(url, token string, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookNotifier{httpClient: client, url: url, logger: logger}
}

func (w *WebhookNotifier) post(ctx context.Context, kind string, notice any) error {
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(webhookEnvelope{Type: kind, SentAt: time.Now().Unix(), Notice: notice}).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}
	if resp.IsError() {
		w.logger.Warn("Webhook returned error status",
			zap.String("type", kind),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook error: status %d", resp.StatusCode())
	}
	return nil
}

func (w *WebhookNotifier) NotifyShortage(ctx context.Context, n domain.ShortageNotice) error {
	return w.post(ctx, "shortage", n)
}

func (w *WebhookNotifier) NotifyExpiry(ctx context.Context, n domain.ExpiryNotice) error {
	return w.post(ctx, "expiry", n)
}

// MultiNotifier fans a notice out to every notifier; all are attempted.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyShortage(ctx context.Context, n domain.ShortageNotice) error {
	var errs []error
	for _, x := range m {
		if err := x.NotifyShortage(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyExpiry(ctx context.Context, n domain.ExpiryNotice) error {
	var errs []error
	for _, x := range m {
		if err := x.NotifyExpiry(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
