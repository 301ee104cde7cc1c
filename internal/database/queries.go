package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"forumdigest/internal/domain"
)

// AppendTopicNotification adds one topic entry to the user's mailbox and
// marks the user pending, in a single transaction. Calling twice appends
// twice; duplicates are accepted, not merged.
func (d *Database) AppendTopicNotification(
	ctx context.Context,
	userID int64,
	topicID int64,
) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		query := "insert into topic_notifications (user_id, topic_id) values (?, ?)"

		if _, err := tx.ExecContext(ctx, query, userID, topicID); err != nil {
			return fmt.Errorf("insert topic notification: %w", err)
		}

		return markPending(ctx, tx, userID)
	})
}

// AppendReplyNotification adds one reply entry to the user's mailbox and
// marks the user pending, in a single transaction.
func (d *Database) AppendReplyNotification(
	ctx context.Context,
	userID int64,
	topicID int64,
	replyID int64,
	authorID int64,
) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		query := `insert into reply_notifications (user_id, topic_id, reply_id, author_id)
		values (?, ?, ?, ?)`

		if _, err := tx.ExecContext(ctx, query, userID, topicID, replyID, authorID); err != nil {
			return fmt.Errorf("insert reply notification: %w", err)
		}

		return markPending(ctx, tx, userID)
	})
}

// UsersWithPending returns the ids of all users whose mailbox is
// non-empty at call time. No ordering guarantee.
func (d *Database) UsersWithPending(ctx context.Context) ([]int64, error) {
	query := "select user_id from pending_users"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", "UsersWithPending")
		}
	}()

	var userIDs []int64
	for rows.Next() {
		var userID int64
		if err = rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		userIDs = append(userIDs, userID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return userIDs, nil
}

// PendingForUser returns both notification sequences for the user in
// append order. An absent user yields an empty mailbox, not an error.
func (d *Database) PendingForUser(
	ctx context.Context,
	userID int64,
) (domain.Mailbox, error) {
	var mailbox domain.Mailbox

	topics, err := d.pendingTopics(ctx, userID)
	if err != nil {
		return mailbox, err
	}

	replies, err := d.pendingReplies(ctx, userID)
	if err != nil {
		return mailbox, err
	}

	mailbox.Topics = topics
	mailbox.Replies = replies

	return mailbox, nil
}

// ClearAllPending removes the pending state of every user in one
// transaction. It is deliberately global, not scoped to the users seen
// by a preceding scan: notifications appended between that scan and this
// clear are dropped. Callers accept that window.
func (d *Database) ClearAllPending(ctx context.Context) error {
	return d.withTx(ctx, func(tx *sql.Tx) error {
		for _, query := range []string{
			"delete from topic_notifications",
			"delete from reply_notifications",
			"delete from pending_users",
		} {
			if _, err := tx.ExecContext(ctx, query); err != nil {
				return fmt.Errorf("clear pending state: %w", err)
			}
		}

		return nil
	})
}

func (d *Database) pendingTopics(
	ctx context.Context,
	userID int64,
) ([]domain.TopicNotification, error) {
	query := "select topic_id from topic_notifications where user_id = ? order by id"

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "pendingTopics")
		}
	}()

	var topics []domain.TopicNotification
	for rows.Next() {
		var n domain.TopicNotification
		if err = rows.Scan(&n.TopicID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		topics = append(topics, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return topics, nil
}

func (d *Database) pendingReplies(
	ctx context.Context,
	userID int64,
) ([]domain.ReplyNotification, error) {
	query := `select topic_id, reply_id, author_id
	from reply_notifications
	where user_id = ?
	order by id`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"userID", userID,
				"operation", "pendingReplies")
		}
	}()

	var replies []domain.ReplyNotification
	for rows.Next() {
		var n domain.ReplyNotification
		if err = rows.Scan(&n.TopicID, &n.ReplyID, &n.AuthorID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		replies = append(replies, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return replies, nil
}

func markPending(ctx context.Context, tx *sql.Tx, userID int64) error {
	query := "insert or ignore into pending_users (user_id) values (?)"

	if _, err := tx.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mark user pending: %w", err)
	}

	return nil
}

func (d *Database) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err = fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil &&
			!errors.Is(rollbackErr, sql.ErrTxDone) {
			d.log.ErrorContext(ctx, "Failed to rollback transaction",
				"error", rollbackErr)
		}

		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
