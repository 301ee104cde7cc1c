package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"forumdigest/internal/domain"
	"forumdigest/internal/metrics"
)

// ContentLookup resolves display data for digest rendering. Implemented
// by the forum platform client.
type ContentLookup interface {
	TopicTitle(ctx context.Context, topicID int64) (string, error)
	TopicPermalink(ctx context.Context, topicID int64) (string, error)
	ReplyPermalink(ctx context.Context, replyID int64) (string, error)
	UserDisplayName(ctx context.Context, userID int64) (string, error)
	UserEmail(ctx context.Context, userID int64) (string, error)
	SiteName(ctx context.Context) (string, error)
}

// Sender dispatches one rendered digest email.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Store is the read-and-clear subset of the notification store.
type Store interface {
	UsersWithPending(ctx context.Context) ([]int64, error)
	PendingForUser(ctx context.Context, userID int64) (domain.Mailbox, error)
	ClearAllPending(ctx context.Context) error
}

// Cycle drains every pending mailbox into one digest email per user.
type Cycle struct {
	store   Store
	content ContentLookup
	sender  Sender
	log     *slog.Logger
}

func New(store Store, content ContentLookup, sender Sender, log *slog.Logger) *Cycle {
	return &Cycle{
		store:   store,
		content: content,
		sender:  sender,
		log:     log,
	}
}

// Run executes one digest cycle: scan pending users, send each their
// digest, then clear all pending state in one stroke. A user whose
// lookup, render or send fails is logged and skipped; the clear still
// covers them, so their notifications for this cycle are lost rather
// than retried. The returned error joins per-user failures and is
// informational, not a signal that the cycle aborted.
func (c *Cycle) Run(ctx context.Context) error {
	metrics.CyclesRun.Inc()

	userIDs, err := c.store.UsersWithPending(ctx)
	if err != nil {
		return fmt.Errorf("list users with pending notifications: %w", err)
	}

	var errs []error

	for _, userID := range userIDs {
		if err := c.sendDigest(ctx, userID); err != nil {
			metrics.MailFailures.Inc()
			c.log.ErrorContext(ctx, "Failed to send digest",
				"error", err,
				"userID", userID)
			errs = append(errs, fmt.Errorf("user %d: %w", userID, err))

			continue
		}

		metrics.DigestsSent.Inc()
	}

	// Global, not per-user: notifications appended between the scan
	// above and this clear are dropped with the rest.
	if err := c.store.ClearAllPending(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clear pending notifications: %w", err))
	}

	c.log.InfoContext(ctx, "Digest cycle finished",
		"userCount", len(userIDs),
		"failureCount", len(errs))

	return errors.Join(errs...)
}

func (c *Cycle) sendDigest(ctx context.Context, userID int64) error {
	mailbox, err := c.store.PendingForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch pending notifications: %w", err)
	}

	body, err := c.renderBody(ctx, mailbox)
	if err != nil {
		return fmt.Errorf("render digest body: %w", err)
	}

	email, err := c.content.UserEmail(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user email: %w", err)
	}

	siteName, err := c.content.SiteName(ctx)
	if err != nil {
		return fmt.Errorf("look up site name: %w", err)
	}

	subject := siteName + " digest"

	if err := c.sender.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("dispatch mail: %w", err)
	}

	return nil
}
