package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/api"
	"github.com/vaxassist/vax-web-ui/internal/models"
	"github.com/vaxassist/vax-web-ui/internal/stream"
)

// ErrorMarker is appended to whatever the bot bubble already holds when a
// stream fails; partial streamed content is kept.
const ErrorMarker = "\n\n[Error while streaming]"

var (
	// ErrEmptyMessage rejects a submit with no text after trimming.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrStreamBusy rejects a submit while another session is in flight.
	ErrStreamBusy = errors.New("a stream session is already active")
	// ErrLimitReached rejects a submit while the daily-limit flag is set.
	ErrLimitReached = errors.New("daily message limit reached")
)

// State is the lifecycle position of one stream session.
type State int

const (
	StateIdle State = iota
	StateAwaitingConversation
	StateStreaming
	StateReconciling
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingConversation:
		return "awaiting-conversation"
	case StateStreaming:
		return "streaming"
	case StateReconciling:
		return "reconciling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Backend is the slice of the assistant API a chat view consumes.
type Backend interface {
	CreateConversation(ctx context.Context, title string) (models.Conversation, error)
	Conversations(ctx context.Context) ([]models.Conversation, error)
	Messages(ctx context.Context, conversationID string) ([]models.Message, error)
	DeleteConversation(ctx context.Context, conversationID string) error
	StreamMessage(ctx context.Context, conversationID, text string) (io.ReadCloser, error)
}

// Notifier pushes view changes toward the browser. Implementations must be
// safe for calls from the streaming goroutine.
type Notifier interface {
	MessageUpdated(msg models.Message, streaming bool)
	ConversationsChanged(buckets Buckets)
	LimitChanged(limited bool)
	ErrorNotice(text string)
	SessionFinished(botMessageID string)
}

// Session is one submit/stream/reconcile cycle. It is created by View.Submit
// and reaches a terminal state (Done or Failed) exactly once; afterwards the
// owning view accepts submissions again.
type Session struct {
	ConversationID string

	mu            sync.Mutex
	state         State
	userMessageID string
	botMessageID  string
	cancel        context.CancelFunc
	err           error

	done     chan struct{}
	finished sync.Once
}

// Done is closed when the session reaches a terminal state and its finalizer
// has run.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure cause for a session in StateFailed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// MessageIDs returns the session's current user and bot message IDs. These
// start transient and are swapped for server-issued IDs on reconciliation.
func (s *Session) MessageIDs() (userID, botID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userMessageID, s.botMessageID
}

// Abort cancels the in-flight network operation, if any. The read loop
// observes the cancellation and stops without further delta or done
// dispatches; the finalizer still runs.
func (s *Session) Abort() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.err = err
	s.mu.Unlock()
}

func (s *Session) botID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.botMessageID
}

func (s *Session) clearCancel() {
	s.mu.Lock()
	s.cancel = nil
	s.mu.Unlock()
}

// View is the chat page state for one signed-in browser session: bucketed
// conversations, the message arena of the selected conversation, the sticky
// rate-limit flag, and at most one active stream session.
type View struct {
	backend  Backend
	notifier Notifier
	greeting string
	logger   *slog.Logger

	// streaming is the submit guard: checked-and-set atomically so two rapid
	// submits cannot both start a session.
	streaming atomic.Bool

	mu       sync.Mutex
	buckets  Buckets
	selected string
	limited  bool
	session  *Session

	arena *Arena
}

// NewView builds a view bound to a backend client and a notifier.
func NewView(backend Backend, notifier Notifier, greeting string, logger *slog.Logger) *View {
	v := &View{
		backend:  backend,
		notifier: notifier,
		greeting: greeting,
		logger:   logger.With(slog.String("module", "chat")),
		arena:    NewArena(),
	}
	v.arena.Append(models.Greeting("", greeting, time.Now()))
	return v
}

// Refresh reloads the conversation list and rebuilds the buckets.
func (v *View) Refresh(ctx context.Context) error {
	convs, err := v.backend.Conversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	v.mu.Lock()
	v.buckets = Bucketize(convs, time.Now())
	v.mu.Unlock()
	return nil
}

// SelectConversation loads a conversation's history into the arena, headed
// by the canned greeting.
func (v *View) SelectConversation(ctx context.Context, conversationID string) error {
	msgs, err := v.backend.Messages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}
	all := make([]models.Message, 0, len(msgs)+1)
	all = append(all, models.Greeting(conversationID, v.greeting, time.Now()))
	all = append(all, msgs...)

	v.mu.Lock()
	v.selected = conversationID
	v.mu.Unlock()
	v.arena.Reset(all)
	return nil
}

// ClearSelection returns the view to the empty state with just the greeting.
func (v *View) ClearSelection() {
	v.mu.Lock()
	v.selected = ""
	v.mu.Unlock()
	v.arena.Reset([]models.Message{models.Greeting("", v.greeting, time.Now())})
}

// NewConversation creates a titled conversation explicitly (the modal flow),
// selects it, and resets the arena.
func (v *View) NewConversation(ctx context.Context, title string) (models.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Conversation{}, errors.New("conversation title is required")
	}
	conv, err := v.backend.CreateConversation(ctx, title)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	v.mu.Lock()
	v.buckets.InsertToday(conv)
	v.selected = conv.ID
	v.mu.Unlock()
	v.arena.Reset([]models.Message{models.Greeting(conv.ID, v.greeting, time.Now())})
	v.notifier.ConversationsChanged(v.ConversationBuckets())
	return conv, nil
}

// DeleteConversation removes a conversation from the backend and from every
// bucket, and clears the selection if it was showing.
func (v *View) DeleteConversation(ctx context.Context, conversationID string) error {
	if err := v.backend.DeleteConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	v.mu.Lock()
	v.buckets.Remove(conversationID)
	wasSelected := v.selected == conversationID
	v.mu.Unlock()
	if wasSelected {
		v.ClearSelection()
	}
	v.notifier.ConversationsChanged(v.ConversationBuckets())
	return nil
}

// Submit starts a stream session for the trimmed text. It is a no-op error
// when text is empty, when the daily limit is in force, or when another
// session is already active; the guard is atomic, so concurrent submits
// race to exactly one session. When no conversation is selected, one is
// created first with the text as its title and head-inserted into Today.
//
// On success the placeholders are already inserted when Submit returns, and
// the stream is consumed on a background goroutine: the caller can render
// immediately while deltas arrive over the browser push channel.
func (v *View) Submit(ctx context.Context, text string) (*Session, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if v.Limited() {
		return nil, ErrLimitReached
	}
	if !v.streaming.CompareAndSwap(false, true) {
		return nil, ErrStreamBusy
	}

	s := &Session{state: StateIdle, done: make(chan struct{})}
	v.mu.Lock()
	v.session = s
	conversationID := v.selected
	v.mu.Unlock()

	if conversationID == "" {
		s.setState(StateAwaitingConversation)
		conv, err := v.backend.CreateConversation(ctx, text)
		if err != nil {
			// No placeholders were created; surface the failure and reopen
			// the view for submissions.
			s.fail(err)
			v.finish(s)
			v.notifier.ErrorNotice("Failed to create conversation")
			return nil, fmt.Errorf("create conversation: %w", err)
		}
		conversationID = conv.ID
		v.mu.Lock()
		v.buckets.InsertToday(conv)
		v.selected = conversationID
		v.mu.Unlock()
		v.arena.Reset([]models.Message{models.Greeting(conversationID, v.greeting, time.Now())})
		v.notifier.ConversationsChanged(v.ConversationBuckets())
	}
	s.ConversationID = conversationID

	now := time.Now()
	userMsg := models.Message{
		ID:             models.NewUserMessageID(now),
		ConversationID: conversationID,
		Sender:         models.SenderUser,
		Text:           text,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	botMsg := models.Message{
		ID:             models.NewBotMessageID(now),
		ConversationID: conversationID,
		Sender:         models.SenderBot,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	v.arena.Append(userMsg)
	v.arena.Append(botMsg)
	v.notifier.MessageUpdated(userMsg, false)
	v.notifier.MessageUpdated(botMsg, true)

	// The stream outlives the submitting HTTP request.
	streamCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.userMessageID = userMsg.ID
	s.botMessageID = botMsg.ID
	s.cancel = cancel
	s.state = StateStreaming
	s.mu.Unlock()

	go v.run(streamCtx, s, text)
	return s, nil
}

func (v *View) run(ctx context.Context, s *Session, text string) {
	defer v.finish(s)

	body, err := v.backend.StreamMessage(ctx, s.ConversationID, text)
	if err != nil {
		var apiErr *api.Error
		switch {
		case errors.As(err, &apiErr):
			// Only a limit response may raise the flag; anything else
			// leaves it for the next done frame to settle.
			if apiErr.RateLimited() {
				v.setLimited(true)
			}
			v.notifier.ErrorNotice(apiErr.Error())
		case errors.Is(err, context.Canceled):
			s.fail(err)
			return
		default:
			v.notifier.ErrorNotice("Failed to start stream")
		}
		v.logger.Error("Failed to open chat stream", slog.String("err", err.Error()))
		v.appendErrorMarker(s)
		s.fail(err)
		return
	}
	defer body.Close()

	err = stream.Read(ctx, body, stream.Handlers{
		OnDelta: func(chunk string) {
			if !v.arena.AppendText(s.botID(), chunk) {
				return
			}
			if msg, ok := v.arena.Get(s.botID()); ok {
				v.notifier.MessageUpdated(msg, true)
			}
		},
		OnDone: func(p stream.DonePayload) {
			s.setState(StateReconciling)
			v.reconcile(s, p)
			s.setState(StateDone)
		},
		OnError: func(p stream.ErrorPayload) {
			v.logger.Error("Stream reported failure", slog.String("err", p.DisplayMessage()))
			v.appendErrorMarker(s)
			s.setState(StateFailed)
		},
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.fail(err)
			return
		}
		v.logger.Error("Failed reading chat stream", slog.String("err", err.Error()))
		if s.State() != StateDone && s.State() != StateFailed {
			v.appendErrorMarker(s)
			s.fail(err)
		}
		return
	}
	// The server closed the stream without a terminal frame; the reply is
	// whatever arrived.
	if s.State() == StateStreaming {
		s.setState(StateDone)
	}
}

// reconcile swaps the transient message IDs for the server-issued ones. The
// two swaps are independent: a payload missing one ID leaves that message
// untouched. Later frames target the bot bubble by its new ID.
func (v *View) reconcile(s *Session, p stream.DonePayload) {
	s.mu.Lock()
	userID, botID := s.userMessageID, s.botMessageID
	s.mu.Unlock()

	if p.UserMessageID != "" && v.arena.SwapID(userID, p.UserMessageID) {
		s.mu.Lock()
		s.userMessageID = p.UserMessageID
		s.mu.Unlock()
	}
	if p.BotMessageID != "" && v.arena.SwapID(botID, p.BotMessageID) {
		s.mu.Lock()
		s.botMessageID = p.BotMessageID
		s.mu.Unlock()
	}
	if p.AttemptsLeft != nil {
		v.setLimited(*p.AttemptsLeft <= 0)
	}
}

func (v *View) appendErrorMarker(s *Session) {
	botID := s.botID()
	if botID == "" {
		return
	}
	if !v.arena.AppendText(botID, ErrorMarker) {
		return
	}
	if msg, ok := v.arena.Get(botID); ok {
		v.notifier.MessageUpdated(msg, false)
	}
}

// finish is the session finalizer: it runs exactly once per session (deferred
// in run, or called directly when the session dies before streaming), clears
// the active-session markers and the cancellation handle, and re-enables
// submission.
func (v *View) finish(s *Session) {
	s.clearCancel()
	v.mu.Lock()
	if v.session == s {
		v.session = nil
	}
	v.mu.Unlock()
	v.streaming.Store(false)
	// Sessions that died before placeholders were appended have no bot
	// bubble to close, so there is nothing to announce.
	if botID := s.botID(); botID != "" {
		v.notifier.SessionFinished(botID)
	}
	s.finished.Do(func() { close(s.done) })
}

// Abort cancels the active session's stream, if one is running. Used on
// teardown and navigation away.
func (v *View) Abort() {
	v.mu.Lock()
	s := v.session
	v.mu.Unlock()
	if s != nil {
		s.Abort()
	}
}

func (v *View) setLimited(limited bool) {
	v.mu.Lock()
	changed := v.limited != limited
	v.limited = limited
	v.mu.Unlock()
	if changed {
		v.notifier.LimitChanged(limited)
	}
}

// Limited reports the sticky daily-limit flag.
func (v *View) Limited() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.limited
}

// Streaming reports whether a session is currently in flight.
func (v *View) Streaming() bool { return v.streaming.Load() }

// Selected returns the selected conversation's ID, or empty.
func (v *View) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Messages returns the arena snapshot for rendering.
func (v *View) Messages() []models.Message { return v.arena.Messages() }

// ConversationBuckets returns a copy of the bucketed sidebar.
func (v *View) ConversationBuckets() Buckets {
	v.mu.Lock()
	defer v.mu.Unlock()
	b := v.buckets
	b.Today = append([]models.Conversation(nil), b.Today...)
	b.Last7Days = append([]models.Conversation(nil), b.Last7Days...)
	b.Older = append([]models.Conversation(nil), b.Older...)
	return b
}
