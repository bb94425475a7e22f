// Package channels implements the guardian notification senders. Each
// provider is an HTTP POST behind its own circuit breaker; breaker state
// never mixes across providers.
package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/carepulse-systems/carepulse-stack/common/resilience"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/guardians"
	"github.com/carepulse-systems/carepulse-stack/notify/internal/template"
)

// Message is one alert's rendered content plus routing metadata.
type Message struct {
	Template template.Template
	AlertID  string
	WardID   string
	Severity string
}

// Channel defines the interface for guardian notification delivery.
type Channel interface {
	// Type names the channel ("email", "sms", "push", "telegram").
	Type() string

	// Reaches reports whether the guardian opted in to this channel and
	// has the address it needs.
	Reaches(g guardians.Guardian) bool

	// Content returns the body this channel delivers, for the audit trail.
	Content(tpl template.Template) string

	Send(ctx context.Context, g guardians.Guardian, msg Message) error
}

func postJSON(ctx context.Context, client *http.Client, url, channelType string, payload any) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channelType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channelType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "CarePulse-Notify/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", channelType, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resilience.NewStatusError(resp.StatusCode, fmt.Sprintf("%s provider returned status %d", channelType, resp.StatusCode))
	}

	return nil
}

// EmailChannel sends alert emails through the mail gateway's HTTP API.
type EmailChannel struct {
	URL    string
	client *http.Client
}

// NewEmailChannel creates an email notification channel.
func NewEmailChannel(url string, timeout time.Duration) *EmailChannel {
	return &EmailChannel{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (e *EmailChannel) Type() string { return "email" }

func (e *EmailChannel) Reaches(g guardians.Guardian) bool {
	return g.Preferences.Email && g.Email != ""
}

func (e *EmailChannel) Content(tpl template.Template) string { return tpl.Text }

func (e *EmailChannel) Send(ctx context.Context, g guardians.Guardian, msg Message) error {
	return postJSON(ctx, e.client, e.URL+"/send", "email", map[string]string{
		"to":      g.Email,
		"subject": msg.Template.Subject,
		"html":    msg.Template.HTML,
		"text":    msg.Template.Text,
	})
}

// SMSChannel sends text messages through the SMS gateway's HTTP API.
type SMSChannel struct {
	URL    string
	client *http.Client
}

// NewSMSChannel creates an SMS notification channel.
func NewSMSChannel(url string, timeout time.Duration) *SMSChannel {
	return &SMSChannel{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *SMSChannel) Type() string { return "sms" }

func (s *SMSChannel) Reaches(g guardians.Guardian) bool {
	return g.Preferences.SMS && g.Phone != ""
}

func (s *SMSChannel) Content(tpl template.Template) string { return tpl.SMS }

func (s *SMSChannel) Send(ctx context.Context, g guardians.Guardian, msg Message) error {
	return postJSON(ctx, s.client, s.URL+"/send", "sms", map[string]string{
		"to":      g.Phone,
		"message": msg.Template.SMS,
	})
}

// PushChannel sends mobile push notifications through the push gateway.
type PushChannel struct {
	URL    string
	client *http.Client
}

// NewPushChannel creates a push notification channel.
func NewPushChannel(url string, timeout time.Duration) *PushChannel {
	return &PushChannel{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *PushChannel) Type() string { return "push" }

func (p *PushChannel) Reaches(g guardians.Guardian) bool {
	return g.Preferences.Push && g.PushToken != ""
}

func (p *PushChannel) Content(tpl template.Template) string { return tpl.Text }

func (p *PushChannel) Send(ctx context.Context, g guardians.Guardian, msg Message) error {
	return postJSON(ctx, p.client, p.URL+"/send", "push", map[string]any{
		"token": g.PushToken,
		"title": msg.Template.Subject,
		"body":  msg.Template.Text,
		"data": map[string]string{
			"alertId":  msg.AlertID,
			"wardId":   msg.WardID,
			"severity": msg.Severity,
		},
	})
}

// TelegramChannel sends messages through the Telegram bot API.
type TelegramChannel struct {
	apiURL string
	client *http.Client
}

// NewTelegramChannel creates a Telegram notification channel. apiBase is
// usually "https://api.telegram.org"; tests point it at a local server.
func NewTelegramChannel(apiBase, botToken string, timeout time.Duration) *TelegramChannel {
	return &TelegramChannel{
		apiURL: fmt.Sprintf("%s/bot%s", apiBase, botToken),
		client: &http.Client{Timeout: timeout},
	}
}

func (t *TelegramChannel) Type() string { return "telegram" }

func (t *TelegramChannel) Reaches(g guardians.Guardian) bool {
	return g.Preferences.Telegram && g.TelegramChatID != ""
}

func (t *TelegramChannel) Content(tpl template.Template) string { return tpl.Telegram }

func (t *TelegramChannel) Send(ctx context.Context, g guardians.Guardian, msg Message) error {
	return postJSON(ctx, t.client, t.apiURL+"/sendMessage", "telegram", map[string]string{
		"chat_id":    g.TelegramChatID,
		"text":       msg.Template.Telegram,
		"parse_mode": "Markdown",
	})
}

// Resilient decorates a channel with its own named circuit breaker and a
// bounded-backoff retrier. Transient failures are retried first; an
// exhausted retry counts as one breaker failure.
type Resilient struct {
	Channel
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryOptions
}

// WrapResilient guards the channel with a breaker named after it.
func WrapResilient(ch Channel, breakerOpts resilience.BreakerOptions, retry resilience.RetryOptions) *Resilient {
	return &Resilient{
		Channel: ch,
		breaker: resilience.NewCircuitBreaker(ch.Type(), breakerOpts),
		retry:   retry,
	}
}

func (r *Resilient) Send(ctx context.Context, g guardians.Guardian, msg Message) error {
	return r.breaker.Execute(func() error {
		return resilience.Retry(ctx, r.retry, func() error {
			return r.Channel.Send(ctx, g, msg)
		})
	})
}

// BreakerStats exposes the channel's breaker state for diagnostics.
func (r *Resilient) BreakerStats() resilience.BreakerStats {
	return r.breaker.Stats()
}
