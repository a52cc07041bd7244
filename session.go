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
	"sync"
	"sync/atomic"
	"time"
)

// sessionState names one node of the connection lifecycle:
// closed -> socket open -> session open -> authenticated -> channel open ->
// shell ready, torn down in reverse order.
type sessionState int32

const (
	stateClosed sessionState = iota
	stateSocketOpen
	stateSessionOpen
	stateAuthenticated
	stateChannelOpen
	stateShellReady
)

// SessionCoordinator owns the Transport lifecycle, the session mutex
// serializing every write to the wire, and the keepalive task.
type SessionCoordinator struct {
	transport Transport
	endpoint  Endpoint
	creds     Credentials
	options   SessionOptions
	log       *loggers

	state atomic.Int32
	mu    sync.Mutex

	missedKeepalives atomic.Int64
	keepaliveStop    chan struct{}
	keepaliveDone    chan struct{}
}

func newSessionCoordinator(transport Transport, endpoint Endpoint, creds Credentials, options SessionOptions, log *loggers) *SessionCoordinator {
	s := &SessionCoordinator{
		transport: transport,
		endpoint:  endpoint,
		creds:     creds,
		options:   options,
		log:       log,
	}
	s.state.Store(int32(stateClosed))
	return s
}

func (s *SessionCoordinator) setState(state sessionState) {
	s.state.Store(int32(state))
}

func (s *SessionCoordinator) currentState() sessionState {
	return sessionState(s.state.Load())
}

// isSocketAlive, isSessionAlive, isChannelAlive check the corresponding
// substrate; each is safe to call from any state, including closed.
func (s *SessionCoordinator) isSocketAlive() bool {
	return s.currentState() >= stateSocketOpen && s.transport.IsSessionAlive()
}

func (s *SessionCoordinator) isSessionAlive() bool {
	return s.currentState() >= stateSessionOpen && s.transport.IsSessionAlive()
}

func (s *SessionCoordinator) isChannelAlive() bool {
	return s.currentState() >= stateChannelOpen && s.transport.IsChannelAlive()
}

// IsAlive reports whether the connection has reached shell-ready and the
// underlying transport still reports its session alive.
func (s *SessionCoordinator) IsAlive() bool {
	return s.currentState() == stateShellReady && s.transport.IsSessionAlive()
}

// open drives socket -> handshake -> auth -> channel -> shell. On any
// failure the partial state is torn down before returning, so a caller
// never holds a half-opened connection.
func (s *SessionCoordinator) open(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	connectCtx := ctx
	var cancel context.CancelFunc
	if s.endpoint.ConnectTimeout > 0 {
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(s.endpoint.ConnectTimeout)*time.Second)
		defer cancel()
	}
	if err = s.transport.Connect(connectCtx, s.endpoint); err != nil {
		if connectCtx.Err() != nil {
			return newError(KindSetupTimeout, err, "connect to %s:%d exceeded %ds", s.endpoint.Host, s.endpoint.Port, s.endpoint.ConnectTimeout)
		}
		return err
	}
	s.setState(stateSocketOpen)
	s.transport.SetReadTimeoutMs(s.options.ReadTimeoutMs)
	s.setState(stateSessionOpen)

	if err = s.authenticate(ctx); err != nil {
		return err
	}
	s.setState(stateAuthenticated)

	if err = s.transport.OpenChannel(ctx); err != nil {
		return err
	}
	s.setState(stateChannelOpen)

	if err = s.transport.InvokeShell(ctx); err != nil {
		return err
	}
	s.setState(stateShellReady)

	if s.options.KeepaliveEnabled {
		s.startKeepalive()
	}
	return nil
}

// authenticate attempts each configured method in order — GSSAPI, public
// key, password, keyboard-interactive with the same password — stopping at
// the first success. A method that is not configured is skipped; exhausting
// every configured method is KindAuthenticationFailed.
func (s *SessionCoordinator) authenticate(ctx context.Context) error {
	s.transport.SetUser(s.creds.User)

	if s.creds.Kerberos != nil {
		ok, err := s.authenticateKerberos(ctx)
		if err != nil {
			return newError(KindAuthenticationFailed, err, "GSSAPI authentication errored")
		}
		if ok && s.transport.IsAuthenticated() {
			return nil
		}
	}

	if s.creds.PrivateKeyPath != "" {
		ok, err := s.transport.AuthenticateWithPublicKey(ctx, s.creds.PrivateKeyPath)
		if err != nil {
			return newError(KindAuthenticationFailed, err, "public key authentication errored")
		}
		if ok && s.transport.IsAuthenticated() {
			return nil
		}
	}
	if s.creds.Password != "" {
		ok, err := s.transport.AuthenticateWithPassword(ctx, s.creds.Password)
		if err != nil {
			return newError(KindAuthenticationFailed, err, "password authentication errored")
		}
		if ok && s.transport.IsAuthenticated() {
			return nil
		}

		ok, err = s.transport.AuthenticateWithKeyboardInteractive(ctx, s.creds)
		if err != nil {
			return newError(KindAuthenticationFailed, err, "keyboard-interactive authentication errored")
		}
		if ok && s.transport.IsAuthenticated() {
			return nil
		}
	}
	return newError(KindAuthenticationFailed, nil, "all configured authentication methods were exhausted")
}

// gssapiAuthenticator is an optional capability a Transport may implement.
// cryptoTransport drives a real GSSAPI exchange through it; execTransport's
// implementation always declines. Modeled as a narrow interface rather than
// a Transport method since GSSAPI is meaningless on the exec-subprocess
// fallback: the system ssh binary negotiates gssapi-with-mic on its own,
// independent of anything we could drive here.
type gssapiAuthenticator interface {
	AuthenticateWithGSSAPI(ctx context.Context, kerberos *KerberosCredentials) (bool, error)
}

func (s *SessionCoordinator) authenticateKerberos(ctx context.Context) (bool, error) {
	gssapi, ok := s.transport.(gssapiAuthenticator)
	if !ok {
		return false, nil
	}
	return gssapi.AuthenticateWithGSSAPI(ctx, s.creds.Kerberos)
}

// close tears down channel, session, and socket in that order, tolerating a
// substrate that was never opened, and stops the keepalive task if it is
// running. Safe to call multiple times.
func (s *SessionCoordinator) close() error {
	s.stopKeepalive()
	err := s.transport.Close()
	s.setState(stateClosed)
	return err
}

// MissedKeepalives reports how many network-kind keepalive intervals found
// the session mutex contended. Exposed as a counter a caller may poll;
// under heavy command traffic the keepalive can silently skip many
// intervals, and this is the only place that shows.
func (s *SessionCoordinator) MissedKeepalives() int64 {
	return s.missedKeepalives.Load()
}

func (s *SessionCoordinator) startKeepalive() {
	s.keepaliveStop = make(chan struct{})
	s.keepaliveDone = make(chan struct{})

	switch s.options.KeepaliveKind {
	case KeepaliveStandard:
		go s.runStandardKeepalive()
	default:
		go s.runNetworkKeepalive()
	}
}

func (s *SessionCoordinator) stopKeepalive() {
	if s.keepaliveStop == nil {
		return
	}
	select {
	case <-s.keepaliveStop:
	default:
		close(s.keepaliveStop)
	}
	<-s.keepaliveDone
	s.keepaliveStop = nil
	s.keepaliveDone = nil
}

// runNetworkKeepalive writes the keepalive pattern at most once per
// interval, checking session liveness at a tenth of the interval and using
// a non-blocking try-lock so it can never delay a caller's in-flight
// operation. A lost try-lock is retried on the next tick, never queued;
// each interval in which it stays lost counts as one miss.
func (s *SessionCoordinator) runNetworkKeepalive() {
	defer close(s.keepaliveDone)

	tickInterval := time.Duration(s.options.KeepaliveIntervalSec) * time.Second / 10
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	lastSent := time.Time{}
	lastMissed := time.Time{}
	contendedStreak := 0

	for {
		select {
		case <-s.keepaliveStop:
			return
		case <-ticker.C:
			if !s.transport.IsSessionAlive() {
				return
			}
			if time.Since(lastSent) < time.Duration(s.options.KeepaliveIntervalSec)*time.Second {
				continue
			}
			if !s.mu.TryLock() {
				if time.Since(lastMissed) >= time.Duration(s.options.KeepaliveIntervalSec)*time.Second {
					lastMissed = time.Now()
					contendedStreak++
					s.missedKeepalives.Add(1)
					if contendedStreak >= 3 && s.log != nil {
						s.log.Session.Warn("keepalive contended for 3 consecutive intervals")
					}
				}
				continue
			}
			writeErr := s.transport.ChannelWrite(s.options.KeepalivePattern)
			s.mu.Unlock()
			if writeErr == nil {
				lastSent = time.Now()
				contendedStreak = 0
			}
		}
	}
}

// runStandardKeepalive periodically invokes the transport's native
// keepalive RPC. Only meaningful for transports advertising
// CapabilityStandardKeepalive; validateKeepaliveKind rejects the
// combination at construction, not from inside this goroutine.
func (s *SessionCoordinator) runStandardKeepalive() {
	defer close(s.keepaliveDone)

	ticker := time.NewTicker(time.Duration(s.options.KeepaliveIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.keepaliveStop:
			return
		case <-ticker.C:
			if !s.transport.IsSessionAlive() {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = s.transport.SendKeepalive(ctx)
			cancel()
		}
	}
}

// validateKeepaliveKind rejects a keepalive kind the chosen transport
// cannot provide at construction time, rather than failing silently the
// first time the keepalive goroutine ticks.
func validateKeepaliveKind(transport Transport, options SessionOptions) error {
	if !options.KeepaliveEnabled {
		return nil
	}
	if options.KeepaliveKind == KeepaliveStandard {
		return requireCapability(transport, CapabilityStandardKeepalive, "standard keepalive")
	}
	return nil
}
