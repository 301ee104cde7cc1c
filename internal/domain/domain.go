package domain

// TopicNotification is one pending "new topic" entry in a user's mailbox.
type TopicNotification struct {
	TopicID int64
}

// ReplyNotification is one pending "new reply" entry in a user's mailbox.
type ReplyNotification struct {
	TopicID  int64
	ReplyID  int64
	AuthorID int64
}

// Mailbox is the pending state of a single user, in append order.
type Mailbox struct {
	Topics  []TopicNotification
	Replies []ReplyNotification
}

func (m Mailbox) Empty() bool {
	return len(m.Topics) == 0 && len(m.Replies) == 0
}

// TopicEvent is emitted by the forum platform when a topic is created.
type TopicEvent struct {
	TopicID  int64
	ForumID  int64
	AuthorID int64
}

// ReplyEvent is emitted by the forum platform when a reply is created.
type ReplyEvent struct {
	ReplyID  int64
	TopicID  int64
	ForumID  int64
	AuthorID int64
}
