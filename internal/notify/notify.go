// Package notify delivers best-effort side effects: confirmation emails
// and the Discord announcement webhook. Delivery runs off the request
// path; failures are logged and never surfaced to the transactional core.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"time"

	"github.com/felicity-events/registration-core/internal/config"
)

// Notifier is the outbound side-effect boundary the services depend on.
// Implementations must not block the caller on delivery.
type Notifier interface {
	Notify(email, subject, body string)
	PostWebhook(url string, payload any)
}

// Sender sends email and webhooks asynchronously.
type Sender struct {
	smtp     config.SMTPConfig
	client   *http.Client
	logger   *log.Logger
	dispatch func(fn func()) // test seam; defaults to `go fn()`
}

// New constructs a Sender.
func New(smtpCfg config.SMTPConfig, logger *log.Logger) *Sender {
	if logger == nil {
		logger = log.Default()
	}
	return &Sender{
		smtp:     smtpCfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		dispatch: func(fn func()) { go fn() },
	}
}

// Notify sends an email without blocking the caller. Failure is logged,
// never retried synchronously, and never escalates.
func (s *Sender) Notify(email, subject, body string) {
	s.dispatch(func() {
		if err := s.sendMail(email, subject, body); err != nil {
			s.logger.Printf("WARN: email to %s failed: %v", email, err)
			return
		}
		s.logger.Printf("email sent to %s: %s", email, subject)
	})
}

func (s *Sender) sendMail(to, subject, body string) error {
	if s.smtp.MockMode || s.smtp.Host == "" {
		s.logger.Printf("mock email to=%s subject=%q", to, subject)
		return nil
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.smtp.From, to, subject, body,
	)
	addr := s.smtp.Host + ":" + s.smtp.Port
	auth := smtp.PlainAuth("", s.smtp.User, s.smtp.Password, s.smtp.Host)
	return smtp.SendMail(addr, auth, s.smtp.User, []string{to}, []byte(msg))
}

// PostWebhook POSTs a JSON payload without blocking the caller.
func (s *Sender) PostWebhook(url string, payload any) {
	if url == "" {
		return
	}
	s.dispatch(func() {
		if err := s.postWebhook(url, payload); err != nil {
			s.logger.Printf("WARN: webhook post failed: %v", err)
		}
	})
}

func (s *Sender) postWebhook(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
