package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mailer sends account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, name string) error
	SendPasswordReset(ctx context.Context, to, code string) error
}

// SendGridMailer sends mail through the SendGrid v3 API.
type SendGridMailer struct {
	APIKey      string
	FromEmail   string
	FrontendURL string
	HTTPClient  *http.Client
	Endpoint    string
}

func NewSendGridMailer(apiKey, fromEmail, frontendURL string) *SendGridMailer {
	return &SendGridMailer{
		APIKey:      strings.TrimSpace(apiKey),
		FromEmail:   strings.TrimSpace(fromEmail),
		FrontendURL: strings.TrimRight(strings.TrimSpace(frontendURL), "/"),
		Endpoint:    "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendGridEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridPersonalization struct {
	To      []sendGridEmailAddress `json:"to"`
	Subject string                 `json:"subject"`
}

type sendGridMailSendRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmailAddress      `json:"from"`
	Content          []sendGridContent         `json:"content"`
}

func (m *SendGridMailer) SendVerification(ctx context.Context, to, name string) error {
	greeting := "Hi"
	if n := strings.TrimSpace(name); n != "" {
		greeting = "Hi " + n
	}
	body := fmt.Sprintf("%s,\n\nWelcome to PlanPal! Sign in to start planning your next trip:\n%s/login\n", greeting, m.FrontendURL)
	return m.send(ctx, to, "Welcome to PlanPal", body)
}

func (m *SendGridMailer) SendPasswordReset(ctx context.Context, to, code string) error {
	link := m.FrontendURL + "/reset-password?oobCode=" + url.QueryEscape(code)
	body := fmt.Sprintf("Someone asked to reset the password for your PlanPal account.\n\nReset it here within the hour:\n%s\n\nIf this wasn't you, ignore this email.\n", link)
	return m.send(ctx, to, "Reset your PlanPal password", body)
}

func (m *SendGridMailer) send(ctx context.Context, to, subject, plain string) error {
	if m == nil {
		return fmt.Errorf("sendgrid mailer not configured")
	}
	if m.APIKey == "" {
		return fmt.Errorf("missing SENDGRID_API_KEY")
	}
	if m.FromEmail == "" {
		return fmt.Errorf("missing MAIL_FROM")
	}

	reqBody := sendGridMailSendRequest{
		Personalizations: []sendGridPersonalization{
			{
				To:      []sendGridEmailAddress{{Email: strings.TrimSpace(to)}},
				Subject: subject,
			},
		},
		From:    sendGridEmailAddress{Email: m.FromEmail, Name: "PlanPal"},
		Content: []sendGridContent{{Type: "text/plain", Value: plain}},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("sendgrid mail send http %d", resp.StatusCode)
	}
	return nil
}

// LogMailer stands in when SendGrid is not configured. Reset codes are
// logged so local runs can complete the flow.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendVerification(_ context.Context, to, _ string) error {
	m.Logger.Info("verification email skipped, mail not configured", "to", to)
	return nil
}

func (m LogMailer) SendPasswordReset(_ context.Context, to, code string) error {
	m.Logger.Info("password reset email skipped, mail not configured", "to", to, "code", code)
	return nil
}
