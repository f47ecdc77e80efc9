package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var ErrNotConfigured = errors.New("smtp is not configured")

const (
	icsFilename    = "invite.ics"
	icsContentType = "text/calendar; charset=utf-8; method=REQUEST"
)

// Message is a single HTML e-mail with an optional calendar attachment.
type Message struct {
	To      string
	Subject string
	HTML    string
	ICS     string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type SMTPSender struct {
	cfg  Config
	log  *zerolog.Logger
	send sendFunc
	now  func() time.Time
}

func NewSMTPSender(cfg Config, log *zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:  cfg,
		log:  log,
		send: smtp.SendMail,
		now:  time.Now,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.cfg.Host == "" || s.cfg.From == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// The envelope takes bare addresses; the headers keep display names.
	from, err := mail.ParseAddress(s.cfg.From)
	if err != nil {
		return fmt.Errorf("%w: invalid from address %q", ErrNotConfigured, s.cfg.From)
	}
	rcpt, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	body, err := buildMIME(s.cfg.From, msg, s.now())
	if err != nil {
		return fmt.Errorf("build email: %w", err)
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	if err := s.send(addr, auth, from.Address, []string{rcpt.Address}, body); err != nil {
		s.log.Warn().Err(err).Str("to", msg.To).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	s.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	return nil
}

// buildMIME renders a multipart/mixed message: the HTML part first, then
// the calendar attachment when msg.ICS is set.
func buildMIME(from string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	headers := []struct{ k, v string }{
		{"From", from},
		{"To", msg.To},
		{"Subject", mime.QEncoding.Encode("utf-8", msg.Subject)},
		{"Date", now.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", `multipart/mixed; boundary="` + mw.Boundary() + `"`},
	}

	var head strings.Builder
	for _, h := range headers {
		head.WriteString(h.k + ": " + h.v + "\r\n")
	}
	head.WriteString("\r\n")

	htmlPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=utf-8"},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64(htmlPart, msg.HTML); err != nil {
		return nil, err
	}

	if msg.ICS != "" {
		icsPart, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {icsContentType},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {`attachment; filename="` + icsFilename + `"`},
		})
		if err != nil {
			return nil, err
		}
		if err := writeBase64(icsPart, msg.ICS); err != nil {
			return nil, err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}

	return append([]byte(head.String()), buf.Bytes()...), nil
}

// writeBase64 wraps encoded output at 76 columns.
func writeBase64(w interface{ Write([]byte) (int, error) }, s string) error {
	enc := base64.StdEncoding.EncodeToString([]byte(s))
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
