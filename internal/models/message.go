package models

import (
	"fmt"
	"strings"
	"time"
)

// Message represents a single entry in a conversation. IDs are issued by the
// backend once a message is persisted; while a reply is still streaming, both
// the user message and the bot placeholder carry client-generated transient
// IDs which are swapped for the server-issued ones on stream completion.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	Sender         Sender    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Sender identifies which side of the conversation a message belongs to.
type Sender string

const (
	// SenderUser marks a message typed by the person using the chat.
	SenderUser Sender = "user"
	// SenderBot marks a message produced by the assistant backend.
	SenderBot Sender = "bot"
)

const (
	userIDPrefix = "user_"
	botIDPrefix  = "bot_"

	// GreetingMessageID is the fixed ID of the canned greeting bubble shown at
	// the top of every conversation view. It never leaves the client.
	GreetingMessageID = "initial_message"
)

// NewUserMessageID returns a transient ID for an optimistically inserted user
// message.
func NewUserMessageID(now time.Time) string {
	return fmt.Sprintf("%s%d", userIDPrefix, now.UnixMilli())
}

// NewBotMessageID returns a transient ID for the empty bot placeholder that
// receives streamed deltas.
func NewBotMessageID(now time.Time) string {
	return fmt.Sprintf("%s%d", botIDPrefix, now.UnixMilli())
}

// IsTransientID reports whether id is client-generated and still pending
// reconciliation against a server-issued ID.
func IsTransientID(id string) bool {
	return strings.HasPrefix(id, userIDPrefix) || strings.HasPrefix(id, botIDPrefix)
}

// Greeting builds the canned bot greeting for a conversation view.
func Greeting(conversationID, text string, now time.Time) Message {
	return Message{
		ID:             GreetingMessageID,
		ConversationID: conversationID,
		Sender:         SenderBot,
		Text:           text,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
