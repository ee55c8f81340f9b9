// Package chat holds the client-side conversation state: the id-keyed
// message arena, time-bucketed conversation lists, and the streaming chat
// session that drives one submit/stream/reconcile cycle against the
// assistant backend.
package chat

import (
	"sync"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

// Arena is the id-keyed, insertion-ordered message collection backing one
// conversation view. Every mutation targets a message by ID, never by
// position, so streaming appends and the done-frame ID swap cannot clobber
// an unrelated entry. The ID swap rewrites the key in place; the message
// keeps its slot, so "the currently streaming message" stays valid across
// reconciliation.
type Arena struct {
	mu       sync.RWMutex
	messages []models.Message
	index    map[string]int
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[string]int)}
}

// Reset replaces the arena contents with msgs, keeping their order.
func (a *Arena) Reset(msgs []models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = make([]models.Message, len(msgs))
	copy(a.messages, msgs)
	a.index = make(map[string]int, len(msgs))
	for i, m := range a.messages {
		a.index[m.ID] = i
	}
}

// Append adds a message at the end of the arena.
func (a *Arena) Append(msg models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.index[msg.ID] = len(a.messages)
	a.messages = append(a.messages, msg)
}

// Get returns the message with the given ID.
func (a *Arena) Get(id string) (models.Message, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i, ok := a.index[id]
	if !ok {
		return models.Message{}, false
	}
	return a.messages[i], true
}

// AppendText appends chunk to the text of the message with the given ID and
// reports whether the message exists. Text only ever grows through this
// method, so applying deltas in arrival order preserves the streamed reply
// exactly.
func (a *Arena) AppendText(id, chunk string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[id]
	if !ok {
		return false
	}
	a.messages[i].Text += chunk
	return true
}

// SwapID replaces a transient message ID with the server-issued one. The
// message keeps its position; only the key changes. Swapping to the same ID
// or from an unknown ID is a no-op.
func (a *Arena) SwapID(oldID, newID string) bool {
	if oldID == newID {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	i, ok := a.index[oldID]
	if !ok {
		return false
	}
	delete(a.index, oldID)
	a.index[newID] = i
	a.messages[i].ID = newID
	return true
}

// Messages returns a snapshot of the arena in insertion order.
func (a *Arena) Messages() []models.Message {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Len returns the number of messages held.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.messages)
}
