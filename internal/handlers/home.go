package handlers

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/chat"
	"github.com/vaxassist/vax-web-ui/internal/models"
	"github.com/vaxassist/vax-web-ui/internal/services"
)

// message is the template view of one chat bubble. Content is the rendered
// markdown; StreamingState drives the typing indicator ("loading" while
// deltas are still arriving, "ended" otherwise).
type message struct {
	ID        string
	Sender    string
	Content   template.HTML
	Timestamp string

	StreamingState string
}

// conversation is the template view of one sidebar entry.
type conversation struct {
	ID    string
	Title string

	Active bool
}

type conversationListData struct {
	Today     []conversation
	Last7Days []conversation
	Older     []conversation
}

type homePageData struct {
	UserName              string
	IsAdmin               bool
	CurrentConversationID string
	Conversations         conversationListData
	Messages              []message
	Limited               bool
	Streaming             bool
}

func viewMessage(msg models.Message, streaming bool) message {
	state := "ended"
	if streaming {
		state = "loading"
	}
	return message{
		ID:             msg.ID,
		Sender:         string(msg.Sender),
		Content:        models.RenderText(msg.Text),
		Timestamp:      msg.CreatedAt.Format(time.Kitchen),
		StreamingState: state,
	}
}

func viewConversations(buckets chat.Buckets, activeID string) conversationListData {
	convert := func(convs []models.Conversation) []conversation {
		out := make([]conversation, len(convs))
		for i, c := range convs {
			out[i] = conversation{ID: c.ID, Title: c.Title, Active: c.ID == activeID}
		}
		return out
	}
	return conversationListData{
		Today:     convert(buckets.Today),
		Last7Days: convert(buckets.Last7Days),
		Older:     convert(buckets.Older),
	}
}

func (m *Main) renderMessagePartial(msg models.Message, streaming bool) (string, error) {
	name := "bot_message"
	if msg.Sender == models.SenderUser {
		name = "user_message"
	}
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, viewMessage(msg, streaming)); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (m *Main) renderConversationList(buckets chat.Buckets, activeID string) (string, error) {
	var sb strings.Builder
	err := m.templates.ExecuteTemplate(&sb, "conversation_list", viewConversations(buckets, activeID))
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// HandleHome renders the chat page: the bucketed sidebar and, when a
// conversation is selected via ?conversation_id=, its message history.
func (m *Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	st := stateFrom(r)

	if err := st.view.Refresh(r.Context()); err != nil {
		m.logger.Error("Failed to refresh conversations", slog.String(errLoggerKey, err.Error()))
	}

	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID != "" && conversationID != st.view.Selected() {
		if err := st.view.SelectConversation(r.Context(), conversationID); err != nil {
			m.logger.Error("Failed to load conversation",
				slog.String("conversationID", conversationID),
				slog.String(errLoggerKey, err.Error()))
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
	}
	if conversationID == "" && st.view.Selected() != "" && !st.view.Streaming() {
		st.view.ClearSelection()
	}

	msgs := st.view.Messages()
	viewMsgs := make([]message, len(msgs))
	for i, msg := range msgs {
		streaming := st.view.Streaming() && i == len(msgs)-1 && msg.Sender == models.SenderBot
		viewMsgs[i] = viewMessage(msg, streaming)
	}

	data := homePageData{
		UserName:              st.session.FullName,
		IsAdmin:               st.session.IsAdmin,
		CurrentConversationID: st.view.Selected(),
		Conversations:         viewConversations(st.view.ConversationBuckets(), st.view.Selected()),
		Messages:              viewMsgs,
		Limited:               st.view.Limited(),
		Streaming:             st.view.Streaming(),
	}
	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// setSessionCookie mirrors the stored session's lifetime onto the browser.
func setSessionCookie(w http.ResponseWriter, session services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
