package models

import "time"

// Conversation is a thread of messages owned by the signed-in user. The ID is
// server-issued when the conversation is created; the title defaults to the
// first message text unless the user entered one explicitly.
type Conversation struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
