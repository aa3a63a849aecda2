// internal/app/system/mailer/mailer.go
package mailer

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Email is one outbound message. HTMLBody is optional.
type Email struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Pass     string
	From     string
	FromName string
}

// SendFunc matches smtp.SendMail; tests replace it.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers Email over SMTP.
type Mailer struct {
	cfg  Config
	log  *zap.Logger
	send SendFunc
	now  func() time.Time
}

// New creates a Mailer. It does not dial until Send is called.
func New(cfg Config, logger *zap.Logger) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &Mailer{cfg: cfg, log: logger, send: smtp.SendMail, now: time.Now}
}

// WithSendFunc swaps the transport. Intended for tests.
func (m *Mailer) WithSendFunc(f SendFunc) *Mailer {
	m.send = f
	return m
}

// Send delivers e. Callers treat failures as non-fatal.
func (m *Mailer) Send(e Email) error {
	if strings.TrimSpace(e.To) == "" {
		return errors.New("mailer: empty recipient")
	}
	if m.cfg.Host == "" || m.cfg.From == "" {
		return errors.New("mailer: smtp host or from address not configured")
	}

	msg, err := m.build(e)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	start := m.now()
	if err := m.send(addr, auth, m.cfg.From, []string{e.To}, msg); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", e.To, err)
	}
	m.log.Debug("mail sent",
		zap.String("to", e.To),
		zap.String("subject", e.Subject),
		zap.Duration("took", m.now().Sub(start)))
	return nil
}

func (m *Mailer) build(e Email) ([]byte, error) {
	from := mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}
	to := mail.Address{Address: e.To}

	var buf bytes.Buffer
	h := textproto.MIMEHeader{}
	h.Set("From", from.String())
	h.Set("To", to.String())
	h.Set("Subject", mime.QEncoding.Encode("utf-8", e.Subject))
	h.Set("Date", m.now().UTC().Format(time.RFC1123Z))
	h.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host))
	h.Set("MIME-Version", "1.0")

	if e.HTMLBody == "" {
		h.Set("Content-Type", `text/plain; charset="utf-8"`)
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		writeHeader(&buf, h)
		if err := writeQP(&buf, e.TextBody); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h.Set("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
	writeHeader(&buf, h)

	for _, part := range []struct{ ctype, content string }{
		{`text/plain; charset="utf-8"`, e.TextBody},
		{`text/html; charset="utf-8"`, e.HTMLBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, err
		}
		if err := writeQP(pw, part.content); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, h textproto.MIMEHeader) {
	for _, k := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"} {
		if v := h.Get(k); v != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", k, v)
		}
	}
	buf.WriteString("\r\n")
}

func writeQP(w interface{ Write([]byte) (int, error) }, s string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(s)); err != nil {
		return err
	}
	return qp.Close()
}
