package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/vaxassist/vax-web-ui/internal/api"
	"github.com/vaxassist/vax-web-ui/internal/chat"
)

// HandleChats processes a chat submission. It accepts a "message" form field
// and an optional "conversation_id"; without one, a conversation is created
// with the message text as its title. The user bubble and the empty bot
// placeholder are rendered into the response immediately, and the reply then
// streams in over the SSE channel.
//
// Exactly one stream runs per browser session: a submit racing an active one
// is rejected with 409, a submit while the daily limit is in force with 429.
func (m *Main) HandleChats(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	text := r.FormValue("message")
	conversationID := r.FormValue("conversation_id")
	if conversationID != "" && conversationID != st.view.Selected() {
		if err := st.view.SelectConversation(r.Context(), conversationID); err != nil {
			m.logger.Error("Failed to load conversation",
				slog.String("conversationID", conversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	session, err := st.view.Submit(r.Context(), text)
	if err != nil {
		var apiErr *api.Error
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			http.Error(w, "Message is required", http.StatusBadRequest)
		case errors.Is(err, chat.ErrStreamBusy):
			http.Error(w, "A reply is already streaming", http.StatusConflict)
		case errors.Is(err, chat.ErrLimitReached):
			http.Error(w, api.RateLimitMessage, http.StatusTooManyRequests)
		case errors.As(err, &apiErr):
			http.Error(w, apiErr.Error(), apiErr.Status)
		default:
			m.logger.Error("Failed to submit message", slog.String(errLoggerKey, err.Error()))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	_, botID := session.MessageIDs()
	msgs := st.view.Messages()
	viewMsgs := make([]message, len(msgs))
	for i, msg := range msgs {
		viewMsgs[i] = viewMessage(msg, msg.ID == botID)
	}

	data := homePageData{
		CurrentConversationID: session.ConversationID,
		Messages:              viewMsgs,
	}
	if err := m.templates.ExecuteTemplate(w, "chatbox", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleNewConversation creates an empty titled conversation from the sidebar
// modal and lands on it.
func (m *Main) HandleNewConversation(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	title := r.FormValue("title")
	conv, err := st.view.NewConversation(r.Context(), title)
	if err != nil {
		m.logger.Error("Failed to create conversation", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/?conversation_id="+conv.ID, http.StatusSeeOther)
}

// HandleDeleteConversation removes a conversation and returns to the empty
// chat view when it was the one on screen.
func (m *Main) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	conversationID := r.FormValue("conversation_id")
	if conversationID == "" {
		http.Error(w, "Conversation is required", http.StatusBadRequest)
		return
	}
	if err := st.view.DeleteConversation(r.Context(), conversationID); err != nil {
		m.logger.Error("Failed to delete conversation",
			slog.String("conversationID", conversationID),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	target := "/"
	if selected := st.view.Selected(); selected != "" {
		target = "/?conversation_id=" + selected
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
