package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/smtp"
	"time"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/domain"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/logger"
)

// SMTPConfig holds the email provider settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// SMTPSender delivers email over plain SMTP.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP_HOST is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP_FROM is required")
	}
	return &SMTPSender{cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	fromHeader := fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.From)
	raw := []byte(fmt.Sprintf("From: %s\r\n", fromHeader) +
		fmt.Sprintf("To: %s\r\n", msg.Recipient) +
		fmt.Sprintf("Subject: %s\r\n", msg.Subject) +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		msg.Body + "\r\n")

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{msg.Recipient}, raw); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) Name() string { return "smtp" }

// WebhookSender posts the message as JSON to a provider endpoint. Used for
// the sms and push channels, whose providers expose HTTP APIs.
type WebhookSender struct {
	name     string
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewWebhookSender(name, endpoint, apiKey string) (*WebhookSender, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%s provider endpoint is required", name)
	}
	return &WebhookSender{
		name:     name,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"to":      msg.Recipient,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", w.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", w.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s provider request: %w", w.name, err)
	}
	defer resp.Body.Close()

	// 4xx means the provider rejected the message itself; retrying the same
	// payload cannot succeed. 5xx and everything else is transient.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ErrPermanent(fmt.Sprintf("%s provider rejected: status %d, body %s", w.name, resp.StatusCode, body), nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s provider error: status %d", w.name, resp.StatusCode)
	}
	return nil
}

func (w *WebhookSender) Name() string { return w.name }

// LogSender writes the message to the log instead of a provider. Dev-mode
// stand-in when provider credentials are absent.
type LogSender struct {
	name string
}

func NewLogSender(name string) *LogSender { return &LogSender{name: name} }

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	log := logger.WithComponent("notify")
	log.Info().
		Str("provider", l.Name()).
		Str("recipient", msg.Recipient).
		Str("subject", msg.Subject).
		Msg(msg.Body)
	return nil
}

func (l *LogSender) Name() string { return l.name + "-log" }
