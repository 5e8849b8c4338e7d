// Package email sends confirmation messages through the transactional
// email provider's HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ignite/newsletter/internal/config"
	"github.com/ignite/newsletter/internal/domain"
)

// HTTPDoer is the interface for executing HTTP requests.
// *http.Client satisfies it; tests substitute their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a provider API client. It is stateless across calls beyond its
// configuration and the underlying connection pool, and performs no
// retries: a dispatch failure is surfaced to the caller, who decides
// whether the subscriber retries via the resend endpoint.
type Client struct {
	emailURL    string
	sender      domain.Email
	serverToken string
	httpClient  HTTPDoer
}

// NewClient creates a provider client from configuration. The sender
// address goes through the same parser as subscriber input; a misconfigured
// sender fails at startup rather than on the first send.
func NewClient(cfg config.EmailConfig) (*Client, error) {
	sender, err := domain.ParseEmail(cfg.SenderEmail)
	if err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("email provider base URL is required")
	}

	return &Client{
		emailURL:    strings.TrimRight(cfg.BaseURL, "/") + "/email",
		sender:      sender,
		serverToken: cfg.ServerToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout(),
		},
	}, nil
}

// sendEmailRequest is the provider wire format. The provider expects
// PascalCase keys.
type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendEmail posts one message to the provider. Any non-2xx status,
// transport error, or timeout is returned as an error.
func (c *Client) SendEmail(ctx context.Context, recipient domain.Email, subject, htmlBody, textBody string) error {
	payload, err := json.Marshal(sendEmailRequest{
		From:     c.sender.String(),
		To:       recipient.String(),
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	})
	if err != nil {
		return fmt.Errorf("encoding send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.emailURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider error (status %d): %s", resp.StatusCode, string(body))
	}

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}
