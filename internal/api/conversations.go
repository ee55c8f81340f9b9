package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

// ErrMissingConversationID is returned when the backend acknowledges a
// conversation create without issuing an ID.
var ErrMissingConversationID = errors.New("backend returned no conversation id")

type conversationCreated struct {
	models.Conversation
	ConversationID string `json:"conversationId"`
}

// CreateConversation creates a conversation titled title and returns it.
func (c *Client) CreateConversation(ctx context.Context, title string) (models.Conversation, error) {
	var created conversationCreated
	err := c.do(ctx, http.MethodPost, "/chat/conversation", map[string]string{"title": title}, &created)
	if err != nil {
		return models.Conversation{}, err
	}
	conv := created.Conversation
	if created.ConversationID != "" {
		conv.ID = created.ConversationID
	}
	if conv.ID == "" {
		return models.Conversation{}, ErrMissingConversationID
	}
	return conv, nil
}

// Conversations lists the user's conversations.
func (c *Client) Conversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	if err := c.do(ctx, http.MethodGet, "/chat/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// Messages returns the persisted history of one conversation, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	path := "/chat/messages/" + conversationID
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// DeleteConversation removes a conversation and its messages.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/conversation/"+conversationID, nil, nil)
}

type chatMessageRequest struct {
	ConversationID *string `json:"conversationId"`
	Text           string  `json:"text"`
}

// StreamMessage opens the chat-streaming endpoint for one user message and
// returns the raw SSE body for the stream parser. A non-2xx response whose
// content type is not text/event-stream is decoded as a JSON error body
// (tolerated as empty when malformed) and returned as *Error, so callers can
// detect the daily-limit rejection.
func (c *Client) StreamMessage(ctx context.Context, conversationID, text string) (io.ReadCloser, error) {
	body := chatMessageRequest{Text: text}
	if conversationID != "" {
		body.ConversationID = &conversationID
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "text/event-stream").
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/chat/message")
	if err != nil {
		return nil, fmt.Errorf("open chat stream: %w", err)
	}

	contentType := resp.Header().Get("Content-Type")
	if resp.StatusCode() >= 300 && !strings.Contains(contentType, "text/event-stream") {
		defer resp.RawBody().Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.RawBody(), 4*1024))
		var payload errorBody
		_ = json.Unmarshal(raw, &payload)
		return nil, &Error{Status: resp.StatusCode(), Message: payload.Message, Detail: payload.Detail}
	}

	return resp.RawBody(), nil
}
