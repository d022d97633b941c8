package model

import "time"

// ChatMessage is a single support-chat line surfaced as a toast and kept
// in the session scrollback. It has no identity beyond its local ID,
// which only orders messages within a session.
type ChatMessage struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}
