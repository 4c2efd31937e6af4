// Package mail sends notification email over SMTP. Delivery is best effort:
// a missing SMTP configuration turns sends into logged no-ops, and transient
// failures are retried with backoff before being reported to the caller.
package mail

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"taskmate/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Result reports the outcome of a send. Skipped means SMTP is not configured;
// that is a degraded mode, not an error.
type Result struct {
	OK        bool
	Skipped   bool
	MessageID string
	Err       error
}

// Gateway dispatches email. The scheduler receives it injected at startup so
// tests can swap in a fake.
type Gateway interface {
	Send(ctx context.Context, msg Message) Result
}

const (
	maxAttempts = 3
	maxBackoff  = 5 * time.Second
)

// SMTPGateway implements Gateway over gomail.
type SMTPGateway struct {
	cfg    config.SMTPConfig
	dialer *gomail.Dialer

	// send and wait are swapped out in tests; send defaults to
	// dialer.DialAndSend, wait to a context-aware sleep.
	send func(m *gomail.Message) error
	wait func(ctx context.Context, d time.Duration)
}

// NewSMTPGateway builds a gateway from config. It never fails: an incomplete
// config yields a gateway that skips every send.
func NewSMTPGateway(cfg config.SMTPConfig) *SMTPGateway {
	g := &SMTPGateway{cfg: cfg, wait: sleep}
	if cfg.Configured() {
		d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
		d.SSL = cfg.Secure
		g.dialer = d
		g.send = func(m *gomail.Message) error { return d.DialAndSend(m) }
	}
	return g
}

// Send delivers msg with up to three attempts. Backoff grows with the attempt
// number (attempt * 2s, capped at 5s). The final error is logged and returned
// in the Result, never as a hard failure.
func (g *SMTPGateway) Send(ctx context.Context, msg Message) Result {
	if g.send == nil {
		log.Printf("[email] skipped (missing SMTP env) to=%s subject=%q", msg.To, msg.Subject)
		return Result{Skipped: true}
	}

	id := fmt.Sprintf("<%s@taskmate>", uuid.NewString())
	m := gomail.NewMessage()
	m.SetHeader("From", g.cfg.FromAddr())
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-Id", id)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}
		if err := g.send(m); err != nil {
			lastErr = err
			if attempt < maxAttempts {
				g.wait(ctx, backoff(attempt))
			}
			continue
		}
		return Result{OK: true, MessageID: id}
	}
	log.Printf("[email] failed after %d attempts to=%s subject=%q: %v", maxAttempts, msg.To, msg.Subject, lastErr)
	return Result{Err: lastErr}
}

func backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * 2 * time.Second
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
