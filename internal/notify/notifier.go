// Package notify turns "this user should hear about this" into at most one
// notification row and one email per recipient, type and correlation key per
// 24-hour window.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"taskmate/internal/domain"
	"taskmate/internal/mail"
	"taskmate/internal/repo"
)

// Window is the trailing dedup period.
const Window = 24 * time.Hour

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// placeholderDomain marks seeded/demo addresses that must never receive mail.
const placeholderDomain = "@example.com"

// Payload describes one notification to deliver.
type Payload struct {
	UserID int64
	Type   string
	Title  string
	Body   string
	Data   map[string]string
}

// Notifier persists notifications with dedup and dispatches best-effort email.
type Notifier struct {
	notifs repo.NotificationRepo
	users  repo.UserRepo
	mailer mail.Gateway
}

func New(notifs repo.NotificationRepo, users repo.UserRepo, mailer mail.Gateway) *Notifier {
	return &Notifier{notifs: notifs, users: users, mailer: mailer}
}

// NotifyOnce creates the notification unless an equivalent one exists within
// the window, then attempts email. It returns true only when a row was
// created. The row is persisted before the send on purpose: the durable
// "already notified" marker must survive a slow or failing network call, even
// though that can mean a marker without a delivered email.
func (n *Notifier) NotifyOnce(ctx context.Context, p Payload) (bool, error) {
	key := repo.DedupKey{
		UserID:    p.UserID,
		Type:      p.Type,
		Since:     time.Now().Add(-Window),
		TaskID:    p.Data[domain.DataTaskID],
		ProjectID: p.Data[domain.DataProjectID],
	}
	existing, err := n.notifs.FindRecent(ctx, key)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	user, err := n.users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("load recipient %d: %w", p.UserID, err)
	}
	if user.Status != domain.UserActive || !EligibleEmail(user.Email) {
		return false, nil
	}

	if _, err := n.notifs.Create(ctx, domain.Notification{
		UserID: p.UserID,
		Type:   p.Type,
		Title:  p.Title,
		Body:   p.Body,
		Data:   p.Data,
	}); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}

	res := n.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: p.Title,
		Text:    p.Body,
		HTML:    "<p>" + htmlEscape(p.Body) + "</p>",
	})
	if !res.OK && !res.Skipped {
		log.Printf("[notify] email dispatch failed type=%s user=%d: %v", p.Type, p.UserID, res.Err)
	}
	return true, nil
}

// EligibleEmail reports whether the address is syntactically plausible and
// not a seeded placeholder.
func EligibleEmail(email string) bool {
	if email == "" || !emailRe.MatchString(email) {
		return false
	}
	return !strings.HasSuffix(strings.ToLower(email), placeholderDomain)
}

func htmlEscape(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#39;")
	return r.Replace(s)
}
