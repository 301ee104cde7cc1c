package fanout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"forumdigest/internal/domain"
	"forumdigest/internal/tasks"
)

// inlineRunner executes tasks synchronously so tests can observe the
// store right after the trigger returns.
type inlineRunner struct {
	mu        sync.Mutex
	scheduled int
}

func (r *inlineRunner) Schedule(task tasks.Task) bool {
	r.mu.Lock()
	r.scheduled++
	r.mu.Unlock()

	_ = task.Run(context.Background())

	return true
}

func (r *inlineRunner) scheduledCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.scheduled
}

type stubStore struct {
	mu      sync.Mutex
	topics  map[int64][]int64
	replies map[int64][]domain.ReplyNotification
	failFor map[int64]error
}

func newStubStore() *stubStore {
	return &stubStore{
		topics:  make(map[int64][]int64),
		replies: make(map[int64][]domain.ReplyNotification),
		failFor: make(map[int64]error),
	}
}

func (s *stubStore) AppendTopicNotification(_ context.Context, userID, topicID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failFor[userID]; err != nil {
		return err
	}

	s.topics[userID] = append(s.topics[userID], topicID)

	return nil
}

func (s *stubStore) AppendReplyNotification(
	_ context.Context,
	userID, topicID, replyID, authorID int64,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failFor[userID]; err != nil {
		return err
	}

	s.replies[userID] = append(s.replies[userID], domain.ReplyNotification{
		TopicID:  topicID,
		ReplyID:  replyID,
		AuthorID: authorID,
	})

	return nil
}

func (s *stubStore) topicsFor(userID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]int64(nil), s.topics[userID]...)
}

func (s *stubStore) repliesFor(userID int64) []domain.ReplyNotification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ReplyNotification(nil), s.replies[userID]...)
}

type stubResolver struct {
	forumSubscribers map[int64][]int64
	topicSubscribers map[int64][]int64
}

func (s *stubResolver) ForumSubscribers(_ context.Context, forumID int64) ([]int64, error) {
	return s.forumSubscribers[forumID], nil
}

func (s *stubResolver) TopicSubscribers(_ context.Context, topicID int64) ([]int64, error) {
	return s.topicSubscribers[topicID], nil
}

type stubState struct {
	active           bool
	publishedTopics  map[int64]bool
	publishedReplies map[int64]bool
}

func (s *stubState) SubscriptionsActive(_ context.Context) (bool, error) {
	return s.active, nil
}

func (s *stubState) TopicPublished(_ context.Context, topicID int64) (bool, error) {
	return s.publishedTopics[topicID], nil
}

func (s *stubState) ReplyPublished(_ context.Context, replyID int64) (bool, error) {
	return s.publishedReplies[replyID], nil
}

func newTestFanout(
	store *stubStore,
	resolver *stubResolver,
	state *stubState,
	runner tasks.Runner,
) *Fanout {
	return New(store, resolver, state, runner, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTopicCreatedNotifiesSubscribersExceptAuthor(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{10: {1, 2, 3}}},
		&stubState{active: true, publishedTopics: map[int64]bool{5: true}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 2}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("failed to fan out topic event: %v", err)
	}

	for _, userID := range []int64{1, 3} {
		topics := store.topicsFor(userID)
		if len(topics) != 1 || topics[0] != 5 {
			t.Fatalf("expected user %d to have topic [5], got %v", userID, topics)
		}
	}

	if topics := store.topicsFor(2); len(topics) != 0 {
		t.Fatalf("expected author mailbox to stay empty, got %v", topics)
	}
}

func TestTopicCreatedSkipsWhenSubscriptionsInactive(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{10: {1}}},
		&stubState{active: false, publishedTopics: map[int64]bool{5: true}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 2}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("expected disabled subscriptions to be a no-op, got error: %v", err)
	}

	if runner.scheduledCount() != 0 {
		t.Fatalf("expected no task to be scheduled")
	}
}

func TestTopicCreatedSkipsUnpublishedTopic(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{10: {1}}},
		&stubState{active: true, publishedTopics: map[int64]bool{}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 2}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("expected unpublished topic to be a no-op, got error: %v", err)
	}

	if runner.scheduledCount() != 0 {
		t.Fatalf("expected no task to be scheduled")
	}
}

func TestTopicCreatedWithNoSubscribersIsNoOp(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{}},
		&stubState{active: true, publishedTopics: map[int64]bool{5: true}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 2}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("expected empty subscriber set to be a no-op, got error: %v", err)
	}

	if runner.scheduledCount() != 0 {
		t.Fatalf("expected no observable background task side effect")
	}
}

func TestSelfSubscribedAuthorGetsNothing(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{10: {2}}},
		&stubState{active: true, publishedTopics: map[int64]bool{5: true}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 2}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("failed to fan out topic event: %v", err)
	}

	if topics := store.topicsFor(2); len(topics) != 0 {
		t.Fatalf("expected self-subscribed author to get nothing, got %v", topics)
	}
}

func TestReplyCreatedNotifiesTopicSubscribers(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{topicSubscribers: map[int64][]int64{5: {1, 7}}},
		&stubState{
			active:           true,
			publishedTopics:  map[int64]bool{5: true},
			publishedReplies: map[int64]bool{100: true},
		},
		runner,
	)

	event := domain.ReplyEvent{ReplyID: 100, TopicID: 5, ForumID: 10, AuthorID: 7}
	if err := fan.ReplyCreated(context.Background(), event); err != nil {
		t.Fatalf("failed to fan out reply event: %v", err)
	}

	replies := store.repliesFor(1)
	if len(replies) != 1 {
		t.Fatalf("expected one reply notification, got %v", replies)
	}

	want := domain.ReplyNotification{TopicID: 5, ReplyID: 100, AuthorID: 7}
	if replies[0] != want {
		t.Fatalf("expected %+v, got %+v", want, replies[0])
	}

	if replies := store.repliesFor(7); len(replies) != 0 {
		t.Fatalf("expected reply author mailbox to stay empty, got %v", replies)
	}
}

func TestReplyCreatedSkipsUnpublishedReply(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{topicSubscribers: map[int64][]int64{5: {1}}},
		&stubState{
			active:           true,
			publishedTopics:  map[int64]bool{5: true},
			publishedReplies: map[int64]bool{},
		},
		runner,
	)

	event := domain.ReplyEvent{ReplyID: 100, TopicID: 5, ForumID: 10, AuthorID: 7}
	if err := fan.ReplyCreated(context.Background(), event); err != nil {
		t.Fatalf("expected unpublished reply to be a no-op, got error: %v", err)
	}

	if runner.scheduledCount() != 0 {
		t.Fatalf("expected no task to be scheduled")
	}
}

func TestReplyCreatedSkipsUnpublishedTopic(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{topicSubscribers: map[int64][]int64{5: {1}}},
		&stubState{
			active:           true,
			publishedTopics:  map[int64]bool{},
			publishedReplies: map[int64]bool{100: true},
		},
		runner,
	)

	event := domain.ReplyEvent{ReplyID: 100, TopicID: 5, ForumID: 10, AuthorID: 7}
	if err := fan.ReplyCreated(context.Background(), event); err != nil {
		t.Fatalf("expected unpublished topic to be a no-op, got error: %v", err)
	}

	if runner.scheduledCount() != 0 {
		t.Fatalf("expected no task to be scheduled")
	}
}

func TestFanoutKeepsGoingPastFailedAppends(t *testing.T) {
	store := newStubStore()
	store.failFor[2] = errors.New("disk full")

	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{10: {1, 2, 3}}},
		&stubState{active: true, publishedTopics: map[int64]bool{5: true}},
		runner,
	)

	event := domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 9}
	if err := fan.TopicCreated(context.Background(), event); err != nil {
		t.Fatalf("failed to fan out topic event: %v", err)
	}

	for _, userID := range []int64{1, 3} {
		topics := store.topicsFor(userID)
		if len(topics) != 1 {
			t.Fatalf("expected user %d to be notified despite user 2 failing, got %v",
				userID, topics)
		}
	}
}

func TestEachSubscribedEventLandsOnce(t *testing.T) {
	store := newStubStore()
	runner := &inlineRunner{}
	fan := newTestFanout(store,
		&stubResolver{forumSubscribers: map[int64][]int64{
			10: {1, 2},
			20: {2, 3},
		}},
		&stubState{active: true, publishedTopics: map[int64]bool{5: true, 6: true}},
		runner,
	)

	ctx := context.Background()
	if err := fan.TopicCreated(ctx, domain.TopicEvent{TopicID: 5, ForumID: 10, AuthorID: 9}); err != nil {
		t.Fatalf("failed to fan out topic event: %v", err)
	}
	if err := fan.TopicCreated(ctx, domain.TopicEvent{TopicID: 6, ForumID: 20, AuthorID: 9}); err != nil {
		t.Fatalf("failed to fan out topic event: %v", err)
	}

	if got := store.topicsFor(1); len(got) != 1 {
		t.Fatalf("expected user 1 to have 1 notification, got %v", got)
	}
	if got := store.topicsFor(2); len(got) != 2 {
		t.Fatalf("expected user 2 to have 2 notifications, got %v", got)
	}
	if got := store.topicsFor(3); len(got) != 1 {
		t.Fatalf("expected user 3 to have 1 notification, got %v", got)
	}
}
