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

import "context"

// TransportCapability names an optional behavior that not every Transport
// backend can provide. Callers query instead of type-asserting, so a
// missing capability surfaces as a typed error rather than a panic.
type TransportCapability int

const (
	CapabilityExecuteOnce TransportCapability = iota
	CapabilityStandardKeepalive
)

// TransportCapabilitySet is a small bitset; two capabilities fit comfortably
// in a uint8 without reaching for a library.
type TransportCapabilitySet uint8

func newCapabilitySet(caps ...TransportCapability) TransportCapabilitySet {
	var s TransportCapabilitySet
	for _, c := range caps {
		s |= 1 << uint(c)
	}
	return s
}

// Has reports whether cap is present in the set.
func (s TransportCapabilitySet) Has(cap TransportCapability) bool {
	return s&(1<<uint(cap)) != 0
}

// Transport is the connect/authenticate/channel surface both backends
// (primary, built on golang.org/x/crypto/ssh, and fallback, a subprocess
// wrapping the system ssh binary) satisfy identically. The session
// coordinator and channel engine talk only to this interface; neither
// knows which backend is live.
type Transport interface {
	// SetUser records the username used by every subsequent Authenticate*
	// call. Separate from Connect since golang.org/x/crypto/ssh's
	// ClientConfig needs the username up front, before any one auth method
	// is chosen.
	SetUser(user string)

	// Connect dials the TCP socket and performs the SSH handshake. It does
	// not authenticate.
	Connect(ctx context.Context, endpoint Endpoint) error

	// AuthenticateWithPublicKey, AuthenticateWithPassword, and
	// AuthenticateWithKeyboardInteractive each attempt exactly one
	// authentication method and report whether it succeeded. They do not
	// raise on a rejected method; a rejection is reported via the bool so
	// the caller's auth-order loop can fall through to the next method.
	AuthenticateWithPublicKey(ctx context.Context, keyPath string) (bool, error)
	AuthenticateWithPassword(ctx context.Context, password string) (bool, error)
	AuthenticateWithKeyboardInteractive(ctx context.Context, creds Credentials) (bool, error)

	// OpenChannel opens the SSH channel substrate. InvokeShell requests a
	// PTY and starts an interactive shell on it.
	OpenChannel(ctx context.Context) error
	InvokeShell(ctx context.Context) error

	// ExecuteOnce opens a fresh, non-interactive exec channel, runs cmd,
	// reads its combined output to EOF, and closes the channel. Only
	// callable when Capabilities().Has(CapabilityExecuteOnce).
	ExecuteOnce(ctx context.Context, cmd string) (string, error)

	// ChannelRead reads at most bufHint bytes and reports how many were
	// read. A transport that cannot report a byte count returns (-1, data)
	// with data sized to what was actually read; the channel engine treats
	// the returned slice as authoritative either way. A zero-byte read is
	// legal and yields an empty slice.
	ChannelRead(bufHint int) (int, []byte, error)
	ChannelWrite(p []byte) error
	ChannelFlush() error

	SetBlocking(blocking bool)
	SetReadTimeoutMs(ms int)

	// SendKeepalive issues a transport-native keepalive. Only callable when
	// Capabilities().Has(CapabilityStandardKeepalive).
	SendKeepalive(ctx context.Context) error

	IsAuthenticated() bool
	IsSessionAlive() bool
	IsChannelAlive() bool

	Capabilities() TransportCapabilitySet

	// Close tears down channel, session, and socket, in that order,
	// tolerating a substrate that was never opened.
	Close() error
}

// requireCapability is the single place that turns a missing capability
// into a typed error.
func requireCapability(t Transport, cap TransportCapability, name string) error {
	if !t.Capabilities().Has(cap) {
		return newError(KindRequirementsNotSatisfied, nil, "%s is not available on this transport", name)
	}
	return nil
}
