package chat_test

import (
	"testing"
	"time"

	"github.com/vaxassist/vax-web-ui/internal/chat"
	"github.com/vaxassist/vax-web-ui/internal/models"
)

func conv(id string, createdAt time.Time) models.Conversation {
	return models.Conversation{ID: id, Title: id, CreatedAt: createdAt}
}

func TestBucketize(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		createdAt time.Time
		want      string
	}{
		{"same moment", now, "today"},
		{"this morning", time.Date(2025, time.March, 10, 0, 1, 0, 0, time.UTC), "today"},
		{"yesterday just before midnight", time.Date(2025, time.March, 9, 23, 59, 0, 0, time.UTC), "last7"},
		{"three days ago", now.AddDate(0, 0, -3), "last7"},
		{"six days ago", now.AddDate(0, 0, -6), "last7"},
		{"ten days ago", now.AddDate(0, 0, -10), "older"},
		{"last month", now.AddDate(0, -1, 0), "older"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := chat.Bucketize([]models.Conversation{conv("c", tt.createdAt)}, now)
			got := "none"
			switch {
			case len(b.Today) == 1:
				got = "today"
			case len(b.Last7Days) == 1:
				got = "last7"
			case len(b.Older) == 1:
				got = "older"
			}
			if got != tt.want {
				t.Errorf("conversation from %s landed in %q, want %q", tt.createdAt, got, tt.want)
			}
		})
	}
}

func TestBucketizeSortsNewestFirst(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	convs := []models.Conversation{
		conv("old", now.Add(-4*time.Hour)),
		conv("new", now.Add(-1*time.Hour)),
		conv("mid", now.Add(-2*time.Hour)),
	}

	b := chat.Bucketize(convs, now)
	if len(b.Today) != 3 {
		t.Fatalf("Today size = %d, want 3", len(b.Today))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if b.Today[i].ID != want {
			t.Errorf("Today[%d] = %q, want %q", i, b.Today[i].ID, want)
		}
	}
}

func TestBucketsInsertTodayHead(t *testing.T) {
	now := time.Now()
	var b chat.Buckets
	b.InsertToday(conv("first", now))
	b.InsertToday(conv("second", now))

	if b.Today[0].ID != "second" || b.Today[1].ID != "first" {
		t.Errorf("Today order = [%s %s], want newest at head", b.Today[0].ID, b.Today[1].ID)
	}
}

func TestBucketsRemove(t *testing.T) {
	now := time.Now()
	b := chat.Bucketize([]models.Conversation{
		conv("t1", now),
		conv("w1", now.AddDate(0, 0, -3)),
		conv("o1", now.AddDate(0, 0, -30)),
	}, now)

	b.Remove("w1")
	if len(b.Last7Days) != 0 {
		t.Errorf("Last7Days size after remove = %d, want 0", len(b.Last7Days))
	}
	if len(b.Today) != 1 || len(b.Older) != 1 {
		t.Error("Remove touched other buckets")
	}

	b.Remove("t1")
	b.Remove("o1")
	if !b.Empty() {
		t.Error("Empty() = false after removing everything")
	}
}
