// Package memory implements bounded per-conversation exchange history on the
// same durable-JSON pattern as the queue layer: one file per conversation
// key, written atomically, trimmed to the most recent max_pairs exchanges on
// every save.
package memory

import (
	"time"
)

// Exchange is one completed question/answer pair. It is the unit of
// trimming: memory never holds half a pair.
type Exchange struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the ordered exchange history for one conversation key,
// oldest first.
type Conversation []Exchange

// AppendExchange returns a new conversation with the pair appended. The
// input is not mutated; persistence is a separate Store.Save call so a
// failed generation never leaves a partial exchange on disk.
func AppendExchange(conv Conversation, question, answer string) Conversation {
	out := make(Conversation, len(conv), len(conv)+1)
	copy(out, conv)
	return append(out, Exchange{Question: question, Answer: answer, Timestamp: time.Now().UTC()})
}

// Trim returns the maxPairs most recent exchanges, dropping from the front.
// maxPairs 0 keeps nothing; a negative value keeps everything.
func (c Conversation) Trim(maxPairs int) Conversation {
	if maxPairs < 0 || len(c) <= maxPairs {
		return c
	}
	return c[len(c)-maxPairs:]
}
