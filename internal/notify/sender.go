package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// LogSender writes each SMS to the log instead of delivering it.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender. A nil logger uses slog.Default().
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, destination, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("sms", "to", destination, "body", body)
	return nil
}

// HTTPSenderConfig configures an HTTPSender.
type HTTPSenderConfig struct {
	URL      string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// HTTPSender posts each SMS as a form to an SMS provider. The API key is
// sent in the "apikey" header. Any non-2xx response is an error.
type HTTPSender struct {
	cfg    HTTPSenderConfig
	client *http.Client
}

// NewHTTPSender creates an HTTPSender.
func NewHTTPSender(cfg HTTPSenderConfig) (*HTTPSender, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid sms provider url %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPSender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, destination, body string) error {
	if destination == "" {
		return errors.New("sms destination is empty")
	}

	form := url.Values{}
	form.Set("to", destination)
	form.Set("message", body)
	if s.cfg.SenderID != "" {
		form.Set("sender", s.cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.cfg.APIKey != "" {
		req.Header.Set("apikey", s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
