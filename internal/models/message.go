package models

import (
	"sort"
	"time"
)

// Attachment describes a stored file bound to a message row.
type Attachment struct {
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
	FileType string `json:"file_type"`
	FileSize int64  `json:"file_size"`
}

// Message is a single entry of the message log. Text, Attachment or both are set.
type Message struct {
	ID         int64       `json:"id"`
	From       string      `json:"from"`
	To         string      `json:"to"`
	Text       *string     `json:"text,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// HasContent reports whether the message carries text or an attachment.
func (m *Message) HasContent() bool {
	return (m.Text != nil && *m.Text != "") || m.Attachment != nil
}

// SortMessages orders messages by timestamp ascending, ties broken by id.
func SortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	CounterpartyCode string    `json:"counterparty_code"`
	LastActivityAt   time.Time `json:"last_activity_at"`
}

// ConversationKey is the canonical, order-independent identity of a two-party conversation.
type ConversationKey struct {
	A string
	B string
}

// NewConversationKey sorts the two codes so (x, y) and (y, x) collapse to one key.
func NewConversationKey(x, y string) ConversationKey {
	if y < x {
		x, y = y, x
	}
	return ConversationKey{A: x, B: y}
}

// Other returns the participant that is not self.
func (k ConversationKey) Other(self string) string {
	if k.A == self {
		return k.B
	}
	return k.A
}

func (k ConversationKey) String() string {
	return k.A + ":" + k.B
}

// OrphanedAttachment records a stored object whose message append failed.
type OrphanedAttachment struct {
	Key        string    `json:"key" bson:"key"`
	URL        string    `json:"url" bson:"url"`
	From       string    `json:"from" bson:"from"`
	To         string    `json:"to" bson:"to"`
	FileName   string    `json:"file_name" bson:"file_name"`
	FileType   string    `json:"file_type" bson:"file_type"`
	FileSize   int64     `json:"file_size" bson:"file_size"`
	Reason     string    `json:"reason" bson:"reason"`
	RecordedAt time.Time `json:"recorded_at" bson:"recorded_at"`
}
