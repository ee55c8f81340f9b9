package chat

import (
	"sort"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/models"
)

// Buckets groups conversations for the sidebar: created today, within the
// last seven days, or older. Membership is recomputed from creation time at
// render, never stored.
type Buckets struct {
	Today     []models.Conversation
	Last7Days []models.Conversation
	Older     []models.Conversation
}

// Bucketize splits conversations by age relative to now. "Today" means the
// same calendar day as now; "Last7Days" a rolling seven-day window. Each
// bucket is sorted newest-first; equal timestamps keep their input order.
func Bucketize(conversations []models.Conversation, now time.Time) Buckets {
	var b Buckets
	for _, conv := range conversations {
		switch {
		case sameDay(conv.CreatedAt, now):
			b.Today = append(b.Today, conv)
		case now.Sub(conv.CreatedAt) < 7*24*time.Hour:
			b.Last7Days = append(b.Last7Days, conv)
		default:
			b.Older = append(b.Older, conv)
		}
	}
	sortNewestFirst(b.Today)
	sortNewestFirst(b.Last7Days)
	sortNewestFirst(b.Older)
	return b
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func sortNewestFirst(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}

// InsertToday puts a freshly created conversation at the head of the Today
// bucket.
func (b *Buckets) InsertToday(conv models.Conversation) {
	b.Today = append([]models.Conversation{conv}, b.Today...)
}

// Remove deletes the conversation from every bucket, wherever it currently
// lives.
func (b *Buckets) Remove(id string) {
	b.Today = removeConversation(b.Today, id)
	b.Last7Days = removeConversation(b.Last7Days, id)
	b.Older = removeConversation(b.Older, id)
}

func removeConversation(convs []models.Conversation, id string) []models.Conversation {
	out := convs[:0]
	for _, c := range convs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

// All returns every conversation across the three buckets, Today first.
func (b Buckets) All() []models.Conversation {
	out := make([]models.Conversation, 0, len(b.Today)+len(b.Last7Days)+len(b.Older))
	out = append(out, b.Today...)
	out = append(out, b.Last7Days...)
	out = append(out, b.Older...)
	return out
}

// Empty reports whether no conversations exist in any bucket.
func (b Buckets) Empty() bool {
	return len(b.Today) == 0 && len(b.Last7Days) == 0 && len(b.Older) == 0
}
