// Package stream implements the client side of the assistant backend's
// chat-streaming protocol: an incremental Server-Sent-Events frame parser
// that turns an arbitrarily chunked byte stream into delta, done, and error
// events.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// DonePayload is the terminal frame of a successful stream. It carries the
// server-issued IDs that replace the transient placeholder IDs, and the
// number of daily messages the user has left. Raw always holds the frame's
// data verbatim; the other fields are zero when it was not valid JSON.
type DonePayload struct {
	UserMessageID string `json:"userMessageId"`
	BotMessageID  string `json:"botMessageId"`
	AttemptsLeft  *int   `json:"attemptsLeft"`

	Raw string `json:"-"`
}

// ErrorPayload is the payload of an `error` or `response.failed` frame. Raw
// always holds the frame's data verbatim.
type ErrorPayload struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`

	Raw string `json:"-"`
}

// DisplayMessage picks the most specific human-readable text available.
func (p ErrorPayload) DisplayMessage() string {
	switch {
	case p.Message != "":
		return p.Message
	case p.Detail != "":
		return p.Detail
	case p.Raw != "":
		return p.Raw
	default:
		return "Something went wrong while streaming"
	}
}

// Handlers receives decoded frames. Every field is optional; frames with no
// handler are skipped. OnFinally runs exactly once when parsing ends, whether
// by normal stream end, terminal frame, error, or cancellation.
type Handlers struct {
	OnDelta   func(text string)
	OnDone    func(payload DonePayload)
	OnError   func(payload ErrorPayload)
	OnFinally func()
}

const (
	eventDelta  = "delta"
	eventDone   = "done"
	eventError  = "error"
	eventFailed = "response.failed"

	defaultEventName = "message"
)

var frameSeparator = []byte("\n\n")

// Parser assembles SSE frames from byte chunks. Chunks may split frames, and
// even multi-byte UTF-8 sequences, at any offset: bytes are buffered raw and
// only converted to text once a complete frame is available, so decoding
// state survives chunk boundaries. A trailing partial frame at end of stream
// is discarded, never delivered.
type Parser struct {
	handlers Handlers

	buf        []byte
	terminated bool
	finalized  bool
}

// NewParser returns a Parser delivering frames to h.
func NewParser(h Handlers) *Parser {
	return &Parser{handlers: h}
}

// Feed appends a chunk and dispatches every complete frame it now holds, in
// order. Frames after a terminal frame are dropped.
func (p *Parser) Feed(chunk []byte) {
	if p.finalized {
		return
	}
	p.buf = append(p.buf, chunk...)
	for {
		idx := bytes.Index(p.buf, frameSeparator)
		if idx < 0 {
			return
		}
		frame := p.buf[:idx]
		p.buf = p.buf[idx+len(frameSeparator):]
		if p.terminated {
			continue
		}
		p.dispatch(string(frame))
	}
}

// Terminated reports whether a done or error frame has been dispatched.
func (p *Parser) Terminated() bool { return p.terminated }

// Close finalizes the parser. Buffered partial data is discarded and the
// OnFinally handler runs; calling Close again is a no-op.
func (p *Parser) Close() {
	if p.finalized {
		return
	}
	p.finalized = true
	p.buf = nil
	if p.handlers.OnFinally != nil {
		p.handlers.OnFinally()
	}
}

func (p *Parser) dispatch(frame string) {
	event := defaultEventName
	var data strings.Builder
	for _, line := range strings.Split(frame, "\n") {
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	payload := data.String()

	switch event {
	case eventDelta:
		if p.handlers.OnDelta != nil {
			p.handlers.OnDelta(decodeDelta(payload))
		}
	case eventDone:
		p.terminated = true
		if p.handlers.OnDone != nil {
			p.handlers.OnDone(decodeDone(payload))
		}
	case eventError, eventFailed:
		p.terminated = true
		if p.handlers.OnError != nil {
			p.handlers.OnError(decodeError(payload))
		}
	}
}

// decodeDelta unwraps a JSON-encoded string payload; anything else degrades
// to the raw text, never to a failure.
func decodeDelta(raw string) string {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err == nil {
		return s
	}
	return raw
}

func decodeDone(raw string) DonePayload {
	var payload DonePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		payload = DonePayload{}
	}
	payload.Raw = raw
	return payload
}

func decodeError(raw string) ErrorPayload {
	var payload ErrorPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		payload = ErrorPayload{}
	}
	payload.Raw = raw
	return payload
}

// Read drives a Parser over an SSE response body until the body ends, a
// terminal frame is dispatched, or ctx is cancelled. Cancellation is checked
// between reads, so an aborted session stops promptly without further
// OnDelta or OnDone calls. OnFinally runs exactly once on every path.
func Read(ctx context.Context, r io.Reader, h Handlers) error {
	p := NewParser(h)
	defer p.Close()

	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			p.Feed(buf[:n])
			if p.Terminated() {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			// Cancellation wins over whatever the aborted read reported.
			if cerr := ctx.Err(); cerr != nil {
				return cerr
			}
			return err
		}
	}
}
