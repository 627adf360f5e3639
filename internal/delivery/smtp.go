package delivery

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

// SMTPClient sends email through an SMTP relay with PLAIN auth
type SMTPClient struct {
	host     string
	port     int
	user     string
	password string
	sender   Sender
	timeout  time.Duration
}

// NewSMTPClient creates an SMTP client
func NewSMTPClient(host string, port int, user, password string, sender Sender, timeout time.Duration) (*SMTPClient, error) {
	if host == "" {
		return nil, fmt.Errorf("smtp: %w", ErrNotConfigured)
	}

	return &SMTPClient{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		sender:   sender,
		timeout:  timeout,
	}, nil
}

func (c *SMTPClient) Name() string {
	return "smtp"
}

// SendEmail runs one SMTP session; the connection carries the ctx deadline, so a stalled relay
// fails the call instead of outliving it
func (c *SMTPClient) SendEmail(ctx context.Context, to, subject, html string) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return c.wrapErr(ctx, "dial", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return c.wrapErr(ctx, "set deadline", err)
		}
	}
	// cancellation unblocks whatever read or write is in flight
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return c.wrapErr(ctx, "greeting", err)
	}
	defer client.Close()

	if err := c.session(client, to, buildMIMEMessage(c.sender, to, subject, html)); err != nil {
		return c.wrapErr(ctx, "send", err)
	}
	return nil
}

func (c *SMTPClient) session(client *smtp.Client, to string, msg []byte) error {
	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
			return err
		}
	}

	if c.user != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		if err := client.Auth(smtp.PlainAuth("", c.user, c.password, c.host)); err != nil {
			return err
		}
	}

	if err := client.Mail(c.sender.Address); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

func (c *SMTPClient) wrapErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("smtp: %s: %w", op, ctxErr)
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return fmt.Errorf("smtp: %s: %w", op, context.DeadlineExceeded)
	}
	return fmt.Errorf("smtp: %s: %w", op, err)
}

func buildMIMEMessage(sender Sender, to, subject, html string) []byte {
	from := sender.Address
	if sender.Name != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", sender.Name), sender.Address)
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(html)
	return []byte(b.String())
}
