package fanout

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"forumdigest/internal/domain"
	"forumdigest/internal/metrics"
	"forumdigest/internal/tasks"
)

// SubscriberResolver answers who is subscribed to a forum or topic.
// Implemented by the forum platform client.
type SubscriberResolver interface {
	ForumSubscribers(ctx context.Context, forumID int64) ([]int64, error)
	TopicSubscribers(ctx context.Context, topicID int64) ([]int64, error)
}

// ForumStateQuery answers precondition questions about forum content.
type ForumStateQuery interface {
	SubscriptionsActive(ctx context.Context) (bool, error)
	TopicPublished(ctx context.Context, topicID int64) (bool, error)
	ReplyPublished(ctx context.Context, replyID int64) (bool, error)
}

// Appender is the write-side subset of the notification store.
type Appender interface {
	AppendTopicNotification(ctx context.Context, userID, topicID int64) error
	AppendReplyNotification(ctx context.Context, userID, topicID, replyID, authorID int64) error
}

// Fanout turns one content-creation event into one pending notification
// per subscriber. The synchronous part only checks preconditions,
// resolves subscribers and schedules a task; all mailbox writes happen
// on the background runner so the content-creation path is never slowed
// by them.
type Fanout struct {
	store    Appender
	resolver SubscriberResolver
	state    ForumStateQuery
	runner   tasks.Runner
	log      *slog.Logger
}

func New(
	store Appender,
	resolver SubscriberResolver,
	state ForumStateQuery,
	runner tasks.Runner,
	log *slog.Logger,
) *Fanout {
	return &Fanout{
		store:    store,
		resolver: resolver,
		state:    state,
		runner:   runner,
		log:      log,
	}
}

// TopicCreated captures a new-topic event. Disabled subscriptions, an
// unpublished topic or an empty subscriber set make it a silent no-op;
// none of those are errors for the caller.
func (f *Fanout) TopicCreated(ctx context.Context, event domain.TopicEvent) error {
	active, err := f.state.SubscriptionsActive(ctx)
	if err != nil {
		return fmt.Errorf("check subscriptions active: %w", err)
	}
	if !active {
		return nil
	}

	published, err := f.state.TopicPublished(ctx, event.TopicID)
	if err != nil {
		return fmt.Errorf("check topic published: %w", err)
	}
	if !published {
		return nil
	}

	userIDs, err := f.resolver.ForumSubscribers(ctx, event.ForumID)
	if err != nil {
		return fmt.Errorf("resolve forum subscribers: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	f.scheduleAppends(ctx, "topic", event.AuthorID, userIDs, func(ctx context.Context, userID int64) error {
		return f.store.AppendTopicNotification(ctx, userID, event.TopicID)
	})

	return nil
}

// ReplyCreated captures a new-reply event. Subscribers of the topic are
// resolved, not of the forum, and both the topic and the reply must be
// published.
func (f *Fanout) ReplyCreated(ctx context.Context, event domain.ReplyEvent) error {
	active, err := f.state.SubscriptionsActive(ctx)
	if err != nil {
		return fmt.Errorf("check subscriptions active: %w", err)
	}
	if !active {
		return nil
	}

	published, err := f.state.TopicPublished(ctx, event.TopicID)
	if err != nil {
		return fmt.Errorf("check topic published: %w", err)
	}
	if !published {
		return nil
	}

	published, err = f.state.ReplyPublished(ctx, event.ReplyID)
	if err != nil {
		return fmt.Errorf("check reply published: %w", err)
	}
	if !published {
		return nil
	}

	userIDs, err := f.resolver.TopicSubscribers(ctx, event.TopicID)
	if err != nil {
		return fmt.Errorf("resolve topic subscribers: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	f.scheduleAppends(ctx, "reply", event.AuthorID, userIDs, func(ctx context.Context, userID int64) error {
		return f.store.AppendReplyNotification(
			ctx, userID, event.TopicID, event.ReplyID, event.AuthorID)
	})

	return nil
}

// scheduleAppends hands the per-subscriber writes to the background
// runner. The task skips the author and keeps going past per-user append
// failures: entries already written stay written, entries not reached
// are lost for this event. There is no rollback and no retry.
func (f *Fanout) scheduleAppends(
	ctx context.Context,
	kind string,
	authorID int64,
	userIDs []int64,
	appendFn func(ctx context.Context, userID int64) error,
) {
	task := tasks.Task{
		ID:   uuid.New(),
		Name: kind + "-fanout",
		Run: func(ctx context.Context) error {
			for _, userID := range userIDs {
				if userID == authorID {
					continue
				}

				if err := appendFn(ctx, userID); err != nil {
					f.log.ErrorContext(ctx, "Failed to append notification",
						"error", err,
						"kind", kind,
						"userID", userID)

					continue
				}

				metrics.NotificationsEnqueued.WithLabelValues(kind).Inc()
			}

			return nil
		},
	}

	if !f.runner.Schedule(task) {
		f.log.ErrorContext(ctx, "Failed to schedule fan-out task",
			"kind", kind,
			"taskID", task.ID,
			"subscriberCount", len(userIDs))

		return
	}

	metrics.FanoutTasksScheduled.WithLabelValues(kind).Inc()
}
