/*
MIT License

Copyright (c) 2026 netssh contributors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package netssh

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// sensitiveLogKeys are attribute-key substrings whose values are replaced
// with a fixed placeholder before reaching any downstream handler.
var sensitiveLogKeys = map[string]struct{}{
	"password": {},
	"pass":     {},
	"secret":   {},
	"token":    {},
	"key":      {},
	"hash":     {},
	"auth":     {},
	"ticket":   {},
	"cred":     {},
}

// redactingHandler wraps a slog.Handler and scrubs any attribute whose key
// contains a sensitive substring, recursively into groups. This guarantees
// that a stray slog.Any("password", ...) call anywhere in the tree can never
// leak a secret into a log sink, independent of what Credentials.String
// already does at the struct level.
type redactingHandler struct {
	next slog.Handler
}

func newRedactingHandler(next slog.Handler) *redactingHandler {
	return &redactingHandler{next: next}
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, r slog.Record) error {
	var attrs []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, redactLogAttr(a))
		return true
	})
	newRecord := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	newRecord.AddAttrs(attrs...)
	return h.next.Handle(ctx, newRecord)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactLogAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(redacted)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func redactLogAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, inner := range group {
			redacted[i] = redactLogAttr(inner)
		}
		return slog.Group(a.Key, redacted...)
	}
	lowerKey := strings.ToLower(a.Key)
	for sensitive := range sensitiveLogKeys {
		if strings.Contains(lowerKey, sensitive) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// loggers bundles the four independently toggleable streams: session
// lifecycle, high-level operation narration, the raw byte dump of the
// channel (noisiest), and the transport's socket-level events.
type loggers struct {
	Session    *slog.Logger
	ChannelCmd *slog.Logger
	ChannelRaw *slog.Logger
	Socket     *slog.Logger
}

// discardLoggers routes every stream to io.Discard, the zero-configuration
// default so a caller who never touches logging pays nothing.
func discardLoggers() *loggers {
	h := newRedactingHandler(slog.NewTextHandler(io.Discard, nil))
	return &loggers{
		Session:    slog.New(h).With("stream", "session"),
		ChannelCmd: slog.New(h).With("stream", "channel.admin"),
		ChannelRaw: slog.New(h).With("stream", "channel.raw"),
		Socket:     slog.New(h).With("stream", "socket"),
	}
}

// newLoggers wraps a caller-supplied base handler with redaction and splits
// it into the four named streams, each independently filterable by the
// caller's own handler (e.g. a level or attr filter keyed on "stream").
func newLoggers(base slog.Handler) *loggers {
	if base == nil {
		return discardLoggers()
	}
	h := newRedactingHandler(base)
	return &loggers{
		Session:    slog.New(h).With("stream", "session"),
		ChannelCmd: slog.New(h).With("stream", "channel.admin"),
		ChannelRaw: slog.New(h).With("stream", "channel.raw"),
		Socket:     slog.New(h).With("stream", "socket"),
	}
}
