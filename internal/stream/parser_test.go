package stream_test

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/vaxassist/vax-web-ui/internal/stream"
)

type recorded struct {
	Kind    string
	Payload string
}

type recorder struct {
	events    []recorded
	finalized int
}

func (r *recorder) handlers() stream.Handlers {
	return stream.Handlers{
		OnDelta: func(text string) {
			r.events = append(r.events, recorded{Kind: "delta", Payload: text})
		},
		OnDone: func(p stream.DonePayload) {
			r.events = append(r.events, recorded{Kind: "done", Payload: p.Raw})
		},
		OnError: func(p stream.ErrorPayload) {
			r.events = append(r.events, recorded{Kind: "error", Payload: p.DisplayMessage()})
		},
		OnFinally: func() { r.finalized++ },
	}
}

const wellFormedBody = "event: delta\ndata: \"Hé \"\n\n" +
	"event: delta\ndata: \"ré🌍ponse\"\n\n" +
	"event: done\ndata: {\"userMessageId\":\"u1\",\"botMessageId\":\"b1\"}\n\n"

func feedAll(t *testing.T, body string, chunkSize int) *recorder {
	t.Helper()
	rec := &recorder{}
	p := stream.NewParser(rec.handlers())
	raw := []byte(body)
	for start := 0; start < len(raw); start += chunkSize {
		end := start + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		p.Feed(raw[start:end])
	}
	p.Close()
	return rec
}

func TestParserChunkingEquivalence(t *testing.T) {
	want := feedAll(t, wellFormedBody, len(wellFormedBody)).events

	// Every chunk size down to a single byte must yield the same sequence,
	// including splits inside multi-byte characters and inside "\n\n".
	for size := 1; size < len(wellFormedBody); size++ {
		t.Run(fmt.Sprintf("chunkSize%d", size), func(t *testing.T) {
			got := feedAll(t, wellFormedBody, size).events
			if !reflect.DeepEqual(got, want) {
				t.Errorf("chunk size %d: events = %v, want %v", size, got, want)
			}
		})
	}

	if want[0].Payload != "Hé " || want[1].Payload != "ré🌍ponse" {
		t.Errorf("decoded deltas = %v", want[:2])
	}
}

func TestParserMalformedPayloadFallsBack(t *testing.T) {
	rec := feedAll(t, "event: delta\ndata: not-json\n\n", 1)

	wantEvents := []recorded{{Kind: "delta", Payload: "not-json"}}
	if !reflect.DeepEqual(rec.events, wantEvents) {
		t.Errorf("events = %v, want %v", rec.events, wantEvents)
	}
}

func TestParserDataLinesConcatenated(t *testing.T) {
	rec := feedAll(t, "event: delta\ndata: part one\ndata: part two\n\n", 7)

	if len(rec.events) != 1 || rec.events[0].Payload != "part onepart two" {
		t.Errorf("events = %v, want single concatenated delta", rec.events)
	}
}

func TestParserDefaultEventNameSkipped(t *testing.T) {
	// Frames without an event name default to "message", which has no
	// handler, as do unrecognized names.
	rec := feedAll(t, "data: ping\n\nevent: keepalive\ndata: x\n\nevent: delta\ndata: \"hi\"\n\n", 3)

	wantEvents := []recorded{{Kind: "delta", Payload: "hi"}}
	if !reflect.DeepEqual(rec.events, wantEvents) {
		t.Errorf("events = %v, want %v", rec.events, wantEvents)
	}
}

func TestParserStopsAfterTerminalFrame(t *testing.T) {
	body := "event: done\ndata: {}\n\nevent: delta\ndata: \"late\"\n\n"
	rec := feedAll(t, body, len(body))

	if len(rec.events) != 1 || rec.events[0].Kind != "done" {
		t.Errorf("events = %v, want only the done frame", rec.events)
	}
}

func TestParserTrailingPartialDiscarded(t *testing.T) {
	rec := &recorder{}
	p := stream.NewParser(rec.handlers())
	p.Feed([]byte("event: delta\ndata: \"kept\"\n\nevent: delta\ndata: \"cut off"))
	p.Close()

	wantEvents := []recorded{{Kind: "delta", Payload: "kept"}}
	if !reflect.DeepEqual(rec.events, wantEvents) {
		t.Errorf("events = %v, want %v", rec.events, wantEvents)
	}
	if rec.finalized != 1 {
		t.Errorf("finalized = %d, want 1", rec.finalized)
	}
}

func TestParserCloseIsIdempotent(t *testing.T) {
	rec := &recorder{}
	p := stream.NewParser(rec.handlers())
	p.Close()
	p.Close()
	p.Feed([]byte("event: delta\ndata: \"x\"\n\n"))

	if rec.finalized != 1 {
		t.Errorf("finalized = %d, want 1", rec.finalized)
	}
	if len(rec.events) != 0 {
		t.Errorf("events after close = %v, want none", rec.events)
	}
}

func TestParserErrorVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "error event with message",
			body: "event: error\ndata: {\"message\":\"boom\"}\n\n",
			want: "boom",
		},
		{
			name: "response.failed with detail",
			body: "event: response.failed\ndata: {\"detail\":\"upstream failed\"}\n\n",
			want: "upstream failed",
		},
		{
			name: "malformed error payload",
			body: "event: error\ndata: <garbage>\n\n",
			want: "<garbage>",
		},
		{
			name: "empty error payload",
			body: "event: error\ndata:\n\n",
			want: "Something went wrong while streaming",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := feedAll(t, tt.body, 2)
			if len(rec.events) != 1 || rec.events[0].Kind != "error" {
				t.Fatalf("events = %v, want one error", rec.events)
			}
			if rec.events[0].Payload != tt.want {
				t.Errorf("message = %q, want %q", rec.events[0].Payload, tt.want)
			}
		})
	}
}

func TestReadStopsOnTerminalFrame(t *testing.T) {
	rec := &recorder{}
	body := strings.NewReader("event: delta\ndata: \"a\"\n\nevent: done\ndata: {\"attemptsLeft\":3}\n\n")

	if err := stream.Read(context.Background(), body, rec.handlers()); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(rec.events) != 2 || rec.events[1].Kind != "done" {
		t.Errorf("events = %v, want delta then done", rec.events)
	}
	if rec.finalized != 1 {
		t.Errorf("finalized = %d, want 1", rec.finalized)
	}
}

func TestReadObservesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	body := strings.NewReader("event: delta\ndata: \"never\"\n\n")

	err := stream.Read(ctx, body, rec.handlers())
	if err == nil {
		t.Fatal("Read() error = nil, want context error")
	}
	if len(rec.events) != 0 {
		t.Errorf("events = %v, want none after cancellation", rec.events)
	}
	if rec.finalized != 1 {
		t.Errorf("finalized = %d, want 1 even when cancelled", rec.finalized)
	}
}

func TestReadDonePayloadFields(t *testing.T) {
	var done stream.DonePayload
	body := strings.NewReader("event: done\ndata: {\"userMessageId\":\"u9\",\"attemptsLeft\":0}\n\n")

	err := stream.Read(context.Background(), body, stream.Handlers{
		OnDone: func(p stream.DonePayload) { done = p },
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if done.UserMessageID != "u9" {
		t.Errorf("UserMessageID = %q, want %q", done.UserMessageID, "u9")
	}
	if done.BotMessageID != "" {
		t.Errorf("BotMessageID = %q, want empty", done.BotMessageID)
	}
	if done.AttemptsLeft == nil || *done.AttemptsLeft != 0 {
		t.Errorf("AttemptsLeft = %v, want 0", done.AttemptsLeft)
	}
}
