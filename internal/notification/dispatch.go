// Package notification delivers run reports to operators.
// Messages are posted to Slack incoming webhooks, one per channel. A channel
// without a webhook falls back to the "log" route so reports are never lost.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single webhook post.
const DefaultTimeout = 30 * time.Second

// Channel selects the audience of a message.
type Channel string

const (
	// ChannelAdmin receives routine run summaries.
	ChannelAdmin Channel = "admin"
	// ChannelAlerts receives run failures.
	ChannelAlerts Channel = "alerts"
)

// Message is one notification.
type Message struct {
	Channel Channel
	Text    string
}

// DispatchResult records the outcome of a notification dispatch.
type DispatchResult struct {
	Channel string `json:"channel"` // e.g. "slack:admin", "log:alerts"
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Notifier is what the pipeline needs from a dispatcher.
type Notifier interface {
	Notify(ctx context.Context, msg Message) DispatchResult
}

// Dispatcher posts messages to the webhook configured for their channel.
// Delivery failures are logged and reported in the result, never returned.
type Dispatcher struct {
	webhooks   map[Channel]string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client used for webhook posts.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithLogger sets the logger used for the log route and delivery failures.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher. Either webhook may be empty.
func NewDispatcher(adminWebhook, alertsWebhook string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		webhooks: map[Channel]string{
			ChannelAdmin:  adminWebhook,
			ChannelAlerts: alertsWebhook,
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify delivers msg. An empty channel means ChannelAdmin.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) DispatchResult {
	if msg.Channel == "" {
		msg.Channel = ChannelAdmin
	}
	result := d.dispatchToChannel(ctx, msg)
	if !result.Success {
		d.logger.Warn("notification not delivered",
			zap.String("channel", result.Channel),
			zap.String("error", result.Error))
	}
	return result
}

// Alert sends text to the alerts channel.
func (d *Dispatcher) Alert(ctx context.Context, text string) DispatchResult {
	return d.Notify(ctx, Message{Channel: ChannelAlerts, Text: text})
}

func (d *Dispatcher) dispatchToChannel(ctx context.Context, msg Message) DispatchResult {
	webhook, known := d.webhooks[msg.Channel]
	if !known {
		return DispatchResult{
			Channel: string(msg.Channel),
			Error:   fmt.Sprintf("unknown channel: %s", msg.Channel),
		}
	}
	if webhook == "" {
		d.logNotification(msg)
		return DispatchResult{Channel: "log:" + string(msg.Channel), Success: true}
	}

	result := DispatchResult{Channel: "slack:" + string(msg.Channel)}
	err := slack.PostWebhookCustomHTTPContext(ctx, webhook, d.httpClient, &slack.WebhookMessage{Text: msg.Text})
	result.Success = err == nil
	if err != nil {
		result.Error = fmt.Sprintf("webhook post failed: %v", err)
	}
	return result
}

// logNotification writes the message to the log when no webhook is set.
func (d *Dispatcher) logNotification(msg Message) {
	d.logger.Info("notification",
		zap.String("channel", string(msg.Channel)),
		zap.String("text", msg.Text))
}
