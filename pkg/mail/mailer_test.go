package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewSMTPMailerValidatesConfig(t *testing.T) {
	_, err := NewSMTPMailer(SMTPSettings{Enabled: true})
	require.ErrorContains(t, err, "host is required")

	_, err = NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com"})
	require.ErrorContains(t, err, "port is required")

	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, mailer)
}

func TestSMTPMailerSendDisabled(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: false})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{
		To:      []string{"test@example.com"},
		Subject: "Test",
		Body:    "Hello",
	})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSMTPMailerDefaultTimeout(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@example.com",
	})
	require.NoError(t, err)

	sm, ok := mailer.(*smtpMailer)
	require.True(t, ok)
	require.Equal(t, 10*time.Second, sm.cfg.Timeout)
}

func TestSMTPMailerSendValidatesAddresses(t *testing.T) {
	mailer, err := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "smtp.example.com", Port: 587})
	require.NoError(t, err)

	err = mailer.Send(context.Background(), Message{To: []string{"   ", "\t"}})
	require.ErrorContains(t, err, "at least one recipient")

	err = mailer.Send(context.Background(), Message{To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "sender address is required")

	err = mailer.Send(context.Background(), Message{From: "invalid-from", To: []string{"user@example.com"}})
	require.ErrorContains(t, err, "invalid from address")

	err = mailer.Send(context.Background(), Message{From: "a@example.com", To: []string{"user@example.com", "bad-address"}})
	require.ErrorContains(t, err, "invalid recipient address")
}

func TestFormatMessagePlainText(t *testing.T) {
	content, err := formatMessage("from@example.com", []string{"to@example.com"}, Message{Subject: "Subject\r\nBreak", Body: "Body\r\nsecond line"})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, "from@example.com", msg.Header.Get("From"))
	require.Equal(t, "to@example.com", msg.Header.Get("To"))
	require.Equal(t, "Subject  Break", msg.Header.Get("Subject"))
	require.Equal(t, "text/plain; charset=UTF-8", msg.Header.Get("Content-Type"))

	body, err := io.ReadAll(msg.Body)
	require.NoError(t, err)
	require.Equal(t, "Body\r\nsecond line", string(body))
}

func TestFormatMessageWithInlineImage(t *testing.T) {
	png := bytes.Repeat([]byte{0x89, 0x50, 0x4e, 0x47}, 40)
	content, err := formatMessage("from@example.com", []string{"to@example.com"}, Message{
		Subject:  "Your ticket",
		Body:     "plain",
		HTMLBody: `<img src="cid:qrcode">`,
		Inline: []Attachment{{
			Filename:    "qr-code.png",
			ContentType: "image/png",
			ContentID:   "qrcode",
			Data:        png,
		}},
	})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, "Your ticket", msg.Header.Get("Subject"))

	related := multipartReader(t, msg.Header.Get("Content-Type"), "multipart/related", msg.Body)

	altPart, err := related.NextPart()
	require.NoError(t, err)
	alternative := multipartReader(t, altPart.Header.Get("Content-Type"), "multipart/alternative", altPart)

	textPart, err := alternative.NextPart()
	require.NoError(t, err)
	require.Equal(t, "text/plain; charset=UTF-8", textPart.Header.Get("Content-Type"))
	require.Equal(t, "plain", readPart(t, textPart))

	htmlPart, err := alternative.NextPart()
	require.NoError(t, err)
	require.Equal(t, "text/html; charset=UTF-8", htmlPart.Header.Get("Content-Type"))
	require.Equal(t, `<img src="cid:qrcode">`, readPart(t, htmlPart))

	_, err = alternative.NextPart()
	require.ErrorIs(t, err, io.EOF)

	imagePart, err := related.NextPart()
	require.NoError(t, err)
	require.Equal(t, "<qrcode>", imagePart.Header.Get("Content-ID"))
	require.Equal(t, "base64", imagePart.Header.Get("Content-Transfer-Encoding"))
	require.Equal(t, "qr-code.png", imagePart.FileName())
	decoded, err := io.ReadAll(base64.NewDecoder(base64.StdEncoding, imagePart))
	require.NoError(t, err)
	require.Equal(t, png, decoded)

	_, err = related.NextPart()
	require.ErrorIs(t, err, io.EOF)
}

func TestFormatMessageHTMLOnlyUsesAlternative(t *testing.T) {
	content, err := formatMessage("from@example.com", []string{"to@example.com"}, Message{Body: "plain", HTMLBody: "<p>hi</p>"})
	require.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(content))
	require.NoError(t, err)
	alternative := multipartReader(t, msg.Header.Get("Content-Type"), "multipart/alternative", msg.Body)

	var bodies []string
	for {
		part, err := alternative.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		bodies = append(bodies, readPart(t, part))
	}
	require.Equal(t, []string{"plain", "<p>hi</p>"}, bodies)
}

func multipartReader(t *testing.T, contentType, wantType string, body io.Reader) *multipart.Reader {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	require.Equal(t, wantType, mediaType)
	require.NotEmpty(t, params["boundary"])
	return multipart.NewReader(body, params["boundary"])
}

func readPart(t *testing.T, part *multipart.Part) string {
	t.Helper()
	data, err := io.ReadAll(part)
	require.NoError(t, err)
	return string(data)
}

func TestUniqueAddresses(t *testing.T) {
	result := uniqueAddresses([]string{"alice@example.com", "bob@example.com", " alice@example.com ", "", "bob@example.com"})
	require.Equal(t, []string{"alice@example.com", "bob@example.com"}, result)
}

type recordingClient struct {
	from  string
	rcpts []string
	data  bytes.Buffer
	quit  bool
	fail  error
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (c *recordingClient) Mail(from string) error          { c.from = from; return c.fail }
func (c *recordingClient) Rcpt(to string) error            { c.rcpts = append(c.rcpts, to); return nil }
func (c *recordingClient) Data() (io.WriteCloser, error)   { return nopWriteCloser{&c.data}, nil }
func (c *recordingClient) Quit() error                     { c.quit = true; return nil }
func (c *recordingClient) Close() error                    { return nil }
func (c *recordingClient) StartTLS(*tls.Config) error      { return nil }
func (c *recordingClient) Auth(smtp.Auth) error            { return nil }
func (c *recordingClient) Extension(string) (bool, string) { return false, "" }

func newRecordingMailer(t *testing.T, client *recordingClient) *smtpMailer {
	t.Helper()
	mailer, err := NewSMTPMailer(SMTPSettings{
		Enabled:  true,
		Host:     "smtp.example.com",
		Port:     587,
		From:     "tickets@example.com",
		FromName: "Gatepass Tickets",
	})
	require.NoError(t, err)

	sm := mailer.(*smtpMailer)
	sm.dialFn = func(context.Context, SMTPSettings) (net.Conn, smtpClient, error) {
		local, remote := net.Pipe()
		t.Cleanup(func() { _ = remote.Close() })
		return local, client, nil
	}
	return sm
}

func TestSMTPMailerSendDeliversThroughClient(t *testing.T) {
	client := &recordingClient{}
	mailer := newRecordingMailer(t, client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"alice@example.com"},
		Subject: "Your ticket",
		Body:    "code: abc",
	})
	require.NoError(t, err)
	require.Equal(t, "tickets@example.com", client.from)
	require.Equal(t, []string{"alice@example.com"}, client.rcpts)
	require.True(t, client.quit)
	require.Contains(t, client.data.String(), `From: "Gatepass Tickets" <tickets@example.com>`)

	delivered, err := mail.ReadMessage(bytes.NewReader(client.data.Bytes()))
	require.NoError(t, err)
	body, err := io.ReadAll(delivered.Body)
	require.NoError(t, err)
	require.Equal(t, "code: abc", string(body))
}

func TestSMTPMailerSendSurfacesClientErrors(t *testing.T) {
	client := &recordingClient{fail: errors.New("mailbox unavailable")}
	mailer := newRecordingMailer(t, client)

	err := mailer.Send(context.Background(), Message{To: []string{"alice@example.com"}, Body: "x"})
	require.ErrorContains(t, err, "mail from")
	require.False(t, client.quit)
}
