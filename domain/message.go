package domain

import "time"

// Message is an immutable chat event. It is stored once in the sender's
// mailbox and once in the recipient's, under the same store-assigned ID,
// except for self-chat where a single copy is authoritative.
type Message struct {
	ID   string `json:"id,omitempty"` // store-assigned, absent before the first write
	Time int64  `json:"time"`         // epoch millis, server-assigned
	Body string `json:"message"`
	From string `json:"from"`
	To   string `json:"to"`
}

func NewMessage(from, to, body string, at time.Time) Message {
	return Message{
		Time: at.UnixMilli(),
		Body: body,
		From: from,
		To:   to,
	}
}

// SelfChat reports whether both mailboxes collapse into one.
func (m Message) SelfChat() bool {
	return m.From == m.To
}
