package core

import (
	"encoding/json"
	"strconv"
	"time"
)

// Source tags identify which channel produced a record. Records from
// different sources share the same envelope; source-specific extras ride
// along in the opaque Payload field.
const (
	SourceTelegram = "telegram"
	SourceGmail    = "gmail"
)

// Correlation carries the identifiers needed to deliver a reply into the
// exact chat or mail thread the trigger came from. All fields are optional;
// a channel falls back to new-message semantics when the threading fields
// for its source are absent.
type Correlation struct {
	// ChatID addresses a Telegram chat.
	ChatID int64 `json:"chat_id,omitempty"`

	// GmailMessageID / GmailThreadID address an existing mail thread.
	GmailMessageID string `json:"gmail_message_id,omitempty"`
	GmailThreadID  string `json:"gmail_thread_id,omitempty"`

	// To and Subject are used when composing a fresh email (no thread).
	To      string `json:"to,omitempty"`
	Subject string `json:"subject,omitempty"`
}

// Threaded reports whether the correlation is complete enough for a
// threaded reply on its channel.
func (c Correlation) Threaded() bool {
	return c.ChatID != 0 || (c.GmailMessageID != "" && c.GmailThreadID != "")
}

// ConversationKey returns a stable key for scoping conversational memory.
// Telegram chats key by chat id, mail by thread, then sender; an empty key
// means the record cannot participate in per-conversation memory.
func (c Correlation) ConversationKey() string {
	switch {
	case c.ChatID != 0:
		return "chat-" + strconv.FormatInt(c.ChatID, 10)
	case c.GmailThreadID != "":
		return "thread-" + c.GmailThreadID
	case c.To != "":
		return "addr-" + c.To
	}
	return ""
}

// Attachment describes inbound attachment metadata. The pipeline never
// fetches attachment bytes; it only forwards what the channel reported.
type Attachment struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Reply is the generated answer carried by a reply record.
type Reply struct {
	Text string `json:"text"`
}

// Record is one element of a persisted queue. The same envelope serves both
// trigger records (inbound message, no Reply) and reply records (same
// correlation plus Reply). Identity is the caller-supplied ID when present;
// otherwise position in the queue is the only identity.
//
// Correlation is embedded untagged so its fields flatten into the JSON
// object, matching the flat on-disk schema consumed by the stage commands.
type Record struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source,omitempty"`

	Correlation

	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`

	Reply *Reply `json:"reply,omitempty"`

	// Payload carries source-specific structure (raw Telegram update,
	// Gmail headers, ...) that the pipeline forwards without inspecting.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsReply reports whether the record carries a generated answer.
func (r Record) IsReply() bool { return r.Reply != nil && r.Reply.Text != "" }

// Same reports whether other denotes the same queue element. Records with
// ids compare by id; id-less records fall back to full value equality,
// which the queue uses to drop the first matching occurrence on commit.
func (r Record) Same(other Record) bool {
	if r.ID != "" || other.ID != "" {
		return r.ID == other.ID
	}
	a, errA := json.Marshal(r)
	b, errB := json.Marshal(other)
	return errA == nil && errB == nil && string(a) == string(b)
}
