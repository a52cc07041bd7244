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
	"bytes"
	"context"
	"net"
	"sync"
)

// fakeTransport is a scripted, in-memory stand-in for Transport used by the
// package's unit tests.
//
// Write/read semantics model a device that echoes whatever it is sent and,
// only once the configured return character is written, appends the canned
// response registered for whatever was written immediately before that
// return character: echo first, output only after the line is terminated.
type fakeTransport struct {
	mu sync.Mutex

	returnChar string
	responses  map[string]string   // keyed by the line just completed
	sequences  map[string][]string // optional FIFO override of responses, consumed in order
	pending    string

	readBuf bytes.Buffer

	authenticated bool
	sessionAlive  bool
	channelAlive  bool
	caps          TransportCapabilitySet

	// neverRespond, when set, makes every write a no-op so reads starve and
	// the retry/timeout plumbing is what the test is exercising.
	neverRespond bool

	closed bool
}

func newFakeTransport(returnChar string) *fakeTransport {
	return &fakeTransport{
		returnChar:    returnChar,
		responses:     map[string]string{},
		authenticated: true,
		sessionAlive:  true,
		channelAlive:  true,
		caps:          newCapabilitySet(CapabilityExecuteOnce, CapabilityStandardKeepalive),
	}
}

// respond registers the text emitted once line is sent with a trailing
// return character. An empty line key matches the common case of an empty
// sendInteract response or a bare prompt probe.
func (f *fakeTransport) respond(line, output string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = output
}

// respondSequence scripts a FIFO series of distinct outputs for repeated
// sends of the same line, used to model a device whose prompt changes
// across successive probes (e.g. a de-escalation followed by re-reading
// the resulting prompt). Once exhausted, lookups for line fall back to the
// static responses map.
func (f *fakeTransport) respondSequence(line string, outputs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sequences == nil {
		f.sequences = map[string][]string{}
	}
	f.sequences[line] = append([]string(nil), outputs...)
}

// lookupResponse returns the next scripted output for line, preferring an
// unconsumed entry in sequences over the static responses map.
func (f *fakeTransport) lookupResponse(line string) (string, bool) {
	if queue, ok := f.sequences[line]; ok && len(queue) > 0 {
		f.sequences[line] = queue[1:]
		return queue[0], true
	}
	out, ok := f.responses[line]
	return out, ok
}

func (f *fakeTransport) SetUser(user string) {}

func (f *fakeTransport) Connect(ctx context.Context, endpoint Endpoint) error { return nil }

func (f *fakeTransport) AuthenticateWithPublicKey(ctx context.Context, keyPath string) (bool, error) {
	return true, nil
}

func (f *fakeTransport) AuthenticateWithPassword(ctx context.Context, password string) (bool, error) {
	return true, nil
}

func (f *fakeTransport) AuthenticateWithKeyboardInteractive(ctx context.Context, creds Credentials) (bool, error) {
	return true, nil
}

func (f *fakeTransport) OpenChannel(ctx context.Context) error { return nil }
func (f *fakeTransport) InvokeShell(ctx context.Context) error { return nil }

func (f *fakeTransport) ExecuteOnce(ctx context.Context, cmd string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if out, ok := f.responses[cmd]; ok {
		return out, nil
	}
	return "", nil
}

func (f *fakeTransport) ChannelWrite(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.neverRespond {
		return nil
	}

	s := string(p)
	if s == f.returnChar {
		if out, ok := f.lookupResponse(f.pending); ok {
			f.readBuf.WriteString(out)
		}
		f.pending = ""
		return nil
	}

	f.pending = s
	f.readBuf.WriteString(s)
	return nil
}

func (f *fakeTransport) ChannelFlush() error { return nil }

func (f *fakeTransport) ChannelRead(bufHint int) (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readBuf.Len() == 0 {
		return 0, nil, &fakeTimeoutError{}
	}
	if bufHint <= 0 || bufHint > f.readBuf.Len() {
		bufHint = f.readBuf.Len()
	}
	buf := make([]byte, bufHint)
	n, _ := f.readBuf.Read(buf)
	return n, buf[:n], nil
}

func (f *fakeTransport) SetBlocking(blocking bool) {}
func (f *fakeTransport) SetReadTimeoutMs(ms int)   {}

func (f *fakeTransport) SendKeepalive(ctx context.Context) error {
	return requireCapability(f, CapabilityStandardKeepalive, "standard keepalive")
}

func (f *fakeTransport) IsAuthenticated() bool                { return f.authenticated }
func (f *fakeTransport) IsSessionAlive() bool                 { return f.sessionAlive && !f.closed }
func (f *fakeTransport) IsChannelAlive() bool                 { return f.channelAlive && !f.closed }
func (f *fakeTransport) Capabilities() TransportCapabilitySet { return f.caps }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeTimeoutError stands in for the read-deadline signal the inner retry
// loop watches for, so an empty scripted buffer behaves like a transport
// whose read deadline just elapsed rather than a hard failure.
type fakeTimeoutError struct{}

func (e *fakeTimeoutError) Error() string   { return "fake transport: no data queued" }
func (e *fakeTimeoutError) Timeout() bool   { return true }
func (e *fakeTimeoutError) Temporary() bool { return true }

var _ net.Error = (*fakeTimeoutError)(nil)
var _ Transport = (*fakeTransport)(nil)
