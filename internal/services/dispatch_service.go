package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/gatepass/internal/models"
	"github.com/charlesng35/gatepass/pkg/logger"
	"github.com/charlesng35/gatepass/pkg/mail"
	"github.com/charlesng35/gatepass/pkg/metrics"
)

const (
	defaultDispatchTimeout = 15 * time.Second
	defaultEventName       = "Event"
	qrContentID            = "qrcode"
	testRecipientName      = "Test Recipient"
)

// DispatchOption customises the DispatchService.
type DispatchOption func(*DispatchService)

// WithDispatchTimeout bounds a single delivery attempt.
func WithDispatchTimeout(timeout time.Duration) DispatchOption {
	return func(s *DispatchService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithEventName sets the event title used in the email heading and the
// default subject line.
func WithEventName(name string) DispatchOption {
	return func(s *DispatchService) {
		if strings.TrimSpace(name) != "" {
			s.eventName = strings.TrimSpace(name)
		}
	}
}

// WithTicketSubject overrides the email subject line.
func WithTicketSubject(subject string) DispatchOption {
	return func(s *DispatchService) {
		if strings.TrimSpace(subject) != "" {
			s.subject = strings.TrimSpace(subject)
		}
	}
}

// DispatchService emails issued codes off the request path. Delivery failures
// are logged and counted but never reported to the caller.
type DispatchService struct {
	mailer    mail.Mailer
	timeout   time.Duration
	eventName string
	subject   string
	log       *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatchService constructs a dispatcher around the mailer.
func NewDispatchService(mailer mail.Mailer, opts ...DispatchOption) (*DispatchService, error) {
	if mailer == nil {
		return nil, errors.New("dispatch service: mailer is required")
	}
	svc := &DispatchService{
		mailer:    mailer,
		timeout:   defaultDispatchTimeout,
		eventName: defaultEventName,
		log:       logger.WithModule("dispatch"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.subject == "" {
		svc.subject = fmt.Sprintf("Your %s QR Code", svc.eventName)
	}
	return svc, nil
}

// Subject reports the subject line used for ticket emails.
func (s *DispatchService) Subject() string {
	return s.subject
}

// Dispatch starts delivery in the background and returns immediately.
func (s *DispatchService) Dispatch(attendee models.Attendee, png []byte) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(attendee, png)
	}()
}

// Wait blocks until every in-flight dispatch has finished or timed out.
func (s *DispatchService) Wait() {
	s.wg.Wait()
}

// SendTest synchronously delivers a sample ticket to the given address so
// operators can confirm the SMTP settings. Unlike Dispatch it returns the
// delivery error.
func (s *DispatchService) SendTest(ctx context.Context, to string, png []byte) error {
	ctx = ensureContext(ctx)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sample := models.Attendee{
		Name:      testRecipientName,
		Email:     strings.TrimSpace(to),
		Code:      "00000000-0000-4000-8000-000000000000",
		ExpiresAt: time.Now().UTC().Add(DefaultCodeTTL),
	}
	msg, err := s.buildMessage(sample, png)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	msg.Subject = "[Test] " + msg.Subject

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Warn("test email not delivered", zap.String("email", sample.Email), zap.Error(err))
		if errors.Is(err, mail.ErrSMTPDisabled) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}
	s.log.Info("test email sent", zap.String("email", sample.Email))
	return nil
}

func (s *DispatchService) deliver(attendee models.Attendee, png []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	msg, err := s.buildMessage(attendee, png)
	if err != nil {
		s.record(attendee, "failed", fmt.Errorf("%w: %v", ErrDispatchFailed, err))
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- s.mailer.Send(ctx, msg)
	}()

	select {
	case err := <-done:
		switch {
		case err == nil:
			s.record(attendee, "sent", nil)
		case errors.Is(err, mail.ErrSMTPDisabled):
			s.record(attendee, "disabled", err)
		case ctx.Err() != nil:
			s.record(attendee, "timeout", fmt.Errorf("%w: %v", ErrDispatchFailed, ctx.Err()))
		default:
			s.record(attendee, "failed", fmt.Errorf("%w: %v", ErrDispatchFailed, err))
		}
	case <-ctx.Done():
		s.record(attendee, "timeout", fmt.Errorf("%w: %v", ErrDispatchFailed, ctx.Err()))
	}
}

func (s *DispatchService) record(attendee models.Attendee, result string, err error) {
	metrics.Dispatches.WithLabelValues(result).Inc()

	fields := []zap.Field{
		zap.String("attendee_id", attendee.ID),
		zap.String("email", attendee.Email),
		zap.String("result", result),
	}
	switch result {
	case "sent":
		s.log.Info("ticket email sent", fields...)
	case "disabled":
		s.log.Warn("ticket email skipped, smtp disabled", fields...)
	default:
		s.log.Error("ticket email not delivered", append(fields, zap.Error(err))...)
	}
}

func (s *DispatchService) buildMessage(attendee models.Attendee, png []byte) (mail.Message, error) {
	view := ticketView{
		Event:     s.eventName,
		Name:      attendee.Name,
		Code:      attendee.Code,
		ExpiresOn: attendee.ExpiresAt.UTC().Format("Monday, January 2, 2006"),
		HasImage:  len(png) > 0,
		ContentID: qrContentID,
	}

	var html, text bytes.Buffer
	if err := ticketHTML.Execute(&html, view); err != nil {
		return mail.Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := ticketText.Execute(&text, view); err != nil {
		return mail.Message{}, fmt.Errorf("render text: %w", err)
	}

	msg := mail.Message{
		To:       []string{attendee.Email},
		Subject:  s.subject,
		Body:     text.String(),
		HTMLBody: html.String(),
	}
	if view.HasImage {
		msg.Inline = []mail.Attachment{{
			Filename:    "qr-code.png",
			ContentType: "image/png",
			ContentID:   qrContentID,
			Data:        png,
		}}
	}
	return msg, nil
}

type ticketView struct {
	Event     string
	Name      string
	Code      string
	ExpiresOn string
	HasImage  bool
	ContentID string
}

var ticketHTML = template.Must(template.New("ticket.html").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto;">
  <h1 style="background: #1a1a1a; color: #fff; padding: 20px; text-align: center;">{{.Event}} Confirmation</h1>
  <p>Hello {{.Name}},</p>
  <p>Thank you for registering. Your attendance has been confirmed.</p>
  {{if .HasImage}}<p style="text-align: center;"><img src="cid:{{.ContentID}}" alt="QR Code" style="max-width: 300px;"></p>{{end}}
  <p>For manual entry at the gate:</p>
  <p style="font-family: monospace; font-size: 14px; padding: 12px; border: 1px dashed #667eea;">{{.Code}}</p>
  <ul>
    <li>This code is unique to you and can only be used once.</li>
    <li>Do not share your code with others.</li>
    <li><strong>This code expires on: {{.ExpiresOn}}</strong></li>
  </ul>
  <p style="color: #666; font-size: 12px;">This is an automated message. Please do not reply to this email.</p>
</body>
</html>
`))

var ticketText = texttemplate.Must(texttemplate.New("ticket.txt").Parse(`Hello {{.Name}},

Thank you for registering for {{.Event}}. Your attendance has been confirmed.

Present the attached QR code at the entrance, or give this code for manual entry:

    {{.Code}}

This code can only be used once and expires on {{.ExpiresOn}}.
`))
