// Package handlers serves the web UI: page rendering, form endpoints, and
// the server-sent-events channel that pushes live updates into the browser.
// All domain state lives in the assistant backend; handlers only hold the
// per-browser view of it.
package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/tmaxmax/go-sse"
	vaxwebui "github.com/vaxassist/vax-web-ui"
	"github.com/vaxassist/vax-web-ui/internal/api"
	"github.com/vaxassist/vax-web-ui/internal/chat"
	"github.com/vaxassist/vax-web-ui/internal/models"
	"github.com/vaxassist/vax-web-ui/internal/services"
)

const errLoggerKey = "err"

const sessionCookieName = "vax_session"

// SessionStore persists signed-in browser sessions across server restarts.
type SessionStore interface {
	CreateSession(ctx context.Context, session services.Session) (services.Session, error)
	Session(ctx context.Context, id string) (services.Session, error)
	UpdateSession(ctx context.Context, session services.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// Config carries everything Main needs besides the session store.
type Config struct {
	BackendURL string
	Greeting   string
	Logger     *slog.Logger
}

// userState is the in-memory half of one browser session: the credentialed
// backend client and the chat view built on it. It is created lazily on the
// first authenticated request and dropped on logout.
type userState struct {
	session services.Session
	api     *api.Client
	view    *chat.View
}

// Main wires the whole UI together: parsed templates, the SSE server pushing
// updates to connected browsers, and the map of live user states.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template
	logger    *slog.Logger

	backendURL string
	greeting   string
	sessions   SessionStore

	mu     sync.Mutex
	states map[string]*userState
}

// SSE event types for real-time updates.
var (
	messagesSSEType      = sse.Type("messages")
	conversationsSSEType = sse.Type("conversations")
	limitSSEType         = sse.Type("limit")
	noticeSSEType        = sse.Type("notice")
)

// NewMain creates a Main instance backed by the given session store. It
// parses the embedded HTML templates and configures the SSE server so each
// browser subscribes to its own session's topics plus, optionally, a single
// message's streaming topic.
func NewMain(cfg Config, sessions SessionStore) (*Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		vaxwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	m := &Main{
		templates:  tmpl,
		logger:     cfg.Logger.With(slog.String("module", "handlers")),
		backendURL: cfg.BackendURL,
		greeting:   cfg.Greeting,
		sessions:   sessions,
		states:     map[string]*userState{},
	}
	m.sseSrv = &sse.Server{
		OnSession: func(s *sse.Session) (sse.Subscription, bool) {
			topics := []string{sse.DefaultTopic}

			if cookie, err := s.Req.Cookie(sessionCookieName); err == nil {
				topics = append(topics,
					conversationsTopic(cookie.Value),
					limitTopic(cookie.Value),
					noticeTopic(cookie.Value),
					sessionMessagesTopic(cookie.Value),
				)
			}

			// A client streaming one reply also follows that message's own topic.
			messageID := s.Req.URL.Query().Get("message_id")
			if messageID != "" {
				topics = append(topics, messageIDTopic(messageID))
			}

			return sse.Subscription{
				Client:      s,
				LastEventID: s.LastEventID,
				Topics:      topics,
			}, true
		},
	}
	return m, nil
}

func messageIDTopic(messageID string) string {
	return fmt.Sprintf("message-%s", messageID)
}

func sessionMessagesTopic(sessionID string) string {
	return fmt.Sprintf("messages-%s", sessionID)
}

func conversationsTopic(sessionID string) string {
	return fmt.Sprintf("conversations-%s", sessionID)
}

func limitTopic(sessionID string) string {
	return fmt.Sprintf("limit-%s", sessionID)
}

func noticeTopic(sessionID string) string {
	return fmt.Sprintf("notice-%s", sessionID)
}

// Routes builds the HTTP handler tree: public auth pages, the authenticated
// chat UI, and the admin console behind a role check.
func (m *Main) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	staticFS, err := fs.Sub(vaxwebui.StaticFS, "static")
	if err != nil {
		panic(err)
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	r.Get("/sign-in", m.HandleSignInPage)
	r.Post("/sign-in", m.HandleSignIn)
	r.Get("/sign-up", m.HandleSignUpPage)
	r.Post("/sign-up", m.HandleSignUp)
	r.Get("/forgot-password", m.HandleForgotPasswordPage)
	r.Post("/forgot-password", m.HandleForgotPassword)

	r.Group(func(r chi.Router) {
		r.Use(m.RequireAuth)

		r.Get("/", m.HandleHome)
		r.Get("/sse", m.HandleSSE)
		r.Post("/chats", m.HandleChats)
		r.Post("/conversations", m.HandleNewConversation)
		r.Post("/conversations/delete", m.HandleDeleteConversation)

		r.Get("/profile", m.HandleProfilePage)
		r.Post("/profile", m.HandleProfileUpdate)
		r.Post("/profile/password", m.HandleChangePassword)
		r.Post("/invite", m.HandleInviteFriend)
		r.Post("/account/delete", m.HandleDeleteAccount)
		r.Get("/reports", m.HandleReportsPage)
		r.Post("/reports", m.HandleCreateReport)
		r.Post("/logout", m.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(m.RequireAdmin)

			r.Get("/admin/users", m.HandleAdminUsers)
			r.Post("/admin/users/role", m.HandleAdminUserRole)
			r.Post("/admin/users/delete", m.HandleAdminUserDelete)
			r.Get("/admin/reports", m.HandleAdminReports)
			r.Post("/admin/reports/status", m.HandleAdminReportStatus)
			r.Post("/admin/reports/delete", m.HandleAdminReportDelete)
			r.Get("/admin/models", m.HandleAdminModels)
			r.Post("/admin/models", m.HandleAdminModelSave)
			r.Post("/admin/models/delete", m.HandleAdminModelDelete)
			r.Post("/admin/models/activate", m.HandleAdminModelActivate)
			r.Get("/admin/export", m.HandleAdminExportPage)
			r.Post("/admin/export", m.HandleAdminExport)
		})
	})

	return r
}

// HandleSSE upgrades the request into the server-sent-events channel.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

type stateContextKey struct{}

// RequireAuth resolves the browser session cookie into a userState and puts
// it on the request context. Requests without a valid session are redirected
// to the sign-in page.
func (m *Main) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st, err := m.state(r)
		if err != nil {
			http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), stateContextKey{}, st)))
	})
}

// RequireAdmin gates the admin console on the session's stored role.
func (m *Main) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !stateFrom(r).session.IsAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func stateFrom(r *http.Request) *userState {
	st, _ := r.Context().Value(stateContextKey{}).(*userState)
	return st
}

// state resolves the request's session cookie into a live userState, creating
// the backend client and chat view on first use.
func (m *Main) state(r *http.Request) (*userState, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, services.ErrSessionNotFound
	}
	sess, err := m.sessions.Session(r.Context(), cookie.Value)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.states[sess.ID]; ok {
		return st, nil
	}

	cli := api.New(m.backendURL, m.logger)
	cli.SetCookies(sess.Cookies)
	st := &userState{
		session: sess,
		api:     cli,
		view:    chat.NewView(cli, sessionNotifier{m: m, sessionID: sess.ID}, m.greeting, m.logger),
	}
	m.states[sess.ID] = st
	return st, nil
}

// dropState removes a browser session's in-memory state, aborting any stream
// still running on its behalf.
func (m *Main) dropState(sessionID string) {
	m.mu.Lock()
	st := m.states[sessionID]
	delete(m.states, sessionID)
	m.mu.Unlock()
	if st != nil {
		st.view.Abort()
	}
}

// sessionNotifier adapts SSE publishing to the chat.Notifier interface. Every
// update is rendered server-side and pushed as a partial; message updates go
// to both the per-message topic and the session-wide one, so a browser keeps
// receiving updates after the message's ID is swapped mid-stream.
type sessionNotifier struct {
	m         *Main
	sessionID string
}

func (n sessionNotifier) MessageUpdated(msg models.Message, streaming bool) {
	html, err := n.m.renderMessagePartial(msg, streaming)
	if err != nil {
		n.m.logger.Error("Failed to render message partial", slog.String(errLoggerKey, err.Error()))
		return
	}
	e := &sse.Message{Type: messagesSSEType}
	e.AppendData(html)
	_ = n.m.sseSrv.Publish(e, messageIDTopic(msg.ID), sessionMessagesTopic(n.sessionID))
}

func (n sessionNotifier) ConversationsChanged(buckets chat.Buckets) {
	html, err := n.m.renderConversationList(buckets, "")
	if err != nil {
		n.m.logger.Error("Failed to render conversation list", slog.String(errLoggerKey, err.Error()))
		return
	}
	e := &sse.Message{Type: conversationsSSEType}
	e.AppendData(html)
	_ = n.m.sseSrv.Publish(e, conversationsTopic(n.sessionID))
}

func (n sessionNotifier) LimitChanged(limited bool) {
	e := &sse.Message{Type: limitSSEType}
	if limited {
		e.AppendData("limited")
	} else {
		e.AppendData("ok")
	}
	_ = n.m.sseSrv.Publish(e, limitTopic(n.sessionID))
}

func (n sessionNotifier) ErrorNotice(text string) {
	e := &sse.Message{Type: noticeSSEType}
	e.AppendData(text)
	_ = n.m.sseSrv.Publish(e, noticeTopic(n.sessionID))
}

func (n sessionNotifier) SessionFinished(botMessageID string) {
	e := &sse.Message{Type: sse.Type("closeMessage")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")
	_ = n.m.sseSrv.Publish(e, messageIDTopic(botMessageID), sessionMessagesTopic(n.sessionID))
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections
// to terminate; after the timeout, any remaining connections are forcefully
// closed. Streams still running on behalf of signed-in browsers are aborted.
func (m *Main) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, st := range m.states {
		st.view.Abort()
	}
	m.mu.Unlock()

	e := &sse.Message{Type: sse.Type("closeChat")}
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
