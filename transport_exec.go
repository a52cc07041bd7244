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
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"
)

// execTransport is the fallback Transport: it shells out to the system
// ssh binary and speaks the interactive protocol over its stdin/stdout
// pipes. It trades openAndExecute and standard-kind keepalive (neither is
// reachable once ssh is just another subprocess) for effortless
// keyboard-interactive support, since the real ssh binary negotiates that
// itself.
type execTransport struct {
	mu sync.Mutex

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	user string

	readTimeout time.Duration
	blocking    bool

	authenticated bool
	log           *loggers
}

func newExecTransport(log *loggers) *execTransport {
	return &execTransport{blocking: true, log: log}
}

func (t *execTransport) Capabilities() TransportCapabilitySet {
	return newCapabilitySet() // neither CapabilityExecuteOnce nor CapabilityStandardKeepalive
}

func (t *execTransport) SetUser(user string) {
	t.user = user
}

// Connect starts `ssh -tt user@host -p port`, forcing PTY allocation so the
// subprocess will still prompt for a password over a plain pipe the way it
// would on an interactive terminal.
func (t *execTransport) Connect(ctx context.Context, endpoint Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	args := []string{
		"-tt",
		"-p", strconv.Itoa(endpoint.Port),
		"-o", "StrictHostKeyChecking=accept-new",
	}
	target := endpoint.Host
	if t.user != "" {
		target = t.user + "@" + endpoint.Host
	}
	args = append(args, shellescape.Quote(target))

	cmd := exec.CommandContext(ctx, "ssh", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return newError(KindSetupTimeout, err, "open stdin pipe to ssh subprocess")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return newError(KindSetupTimeout, err, "open stdout pipe to ssh subprocess")
	}
	if err := cmd.Start(); err != nil {
		return newError(KindSetupTimeout, err, "start ssh subprocess")
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	if t.log != nil {
		t.log.Socket.Info("exec transport started", "target", target)
	}
	return nil
}

// waitForSubstring reads raw bytes from the subprocess looking for needle
// within timeout, used to detect a password/passphrase prompt before the
// channel engine takes over. Unlike ChannelRead, this runs before
// IsChannelAlive is meaningful, so it is not routed through the
// retry/operation-timeout wrappers that assume a live channel.
func (t *execTransport) waitForSubstring(needle string, timeout time.Duration) (string, error) {
	type readResult struct {
		buf []byte
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		buf := make([]byte, 4096)
		var accumulated []byte
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			n, err := t.stdout.Read(buf)
			if n > 0 {
				accumulated = append(accumulated, buf[:n]...)
				if strings.Contains(string(accumulated), needle) {
					done <- readResult{accumulated, nil}
					return
				}
			}
			if err != nil {
				done <- readResult{accumulated, err}
				return
			}
		}
		done <- readResult{accumulated, context.DeadlineExceeded}
	}()

	select {
	case r := <-done:
		return string(r.buf), r.err
	case <-time.After(timeout + time.Second):
		return "", newError(KindSetupTimeout, nil, "timed out waiting for %q", needle)
	}
}

// AuthenticateWithPublicKey does nothing and reports false, so the
// coordinator moves on to the next method: the system ssh binary already
// tried the user's default identities before emitting any prompt we could
// observe, and keyPath is not passed to it.
func (t *execTransport) AuthenticateWithPublicKey(ctx context.Context, keyPath string) (bool, error) {
	return false, nil
}

// AuthenticateWithPassword watches for the subprocess's password prompt
// and answers it.
func (t *execTransport) AuthenticateWithPassword(ctx context.Context, password string) (bool, error) {
	if _, err := t.waitForSubstring("assword:", 10*time.Second); err != nil {
		return false, nil
	}
	if _, err := t.stdin.Write([]byte(password + "\n")); err != nil {
		return false, err
	}
	t.authenticated = true
	return true, nil
}

// AuthenticateWithKeyboardInteractive answers the same way as
// AuthenticateWithPassword; the real ssh binary owns the keyboard-
// interactive negotiation and simply re-emits a textual prompt over the
// pipe indistinguishable from a password prompt in the general case.
func (t *execTransport) AuthenticateWithKeyboardInteractive(ctx context.Context, creds Credentials) (bool, error) {
	return t.AuthenticateWithPassword(ctx, creds.Password)
}

func (t *execTransport) AuthenticateWithGSSAPI(ctx context.Context, kerberos *KerberosCredentials) (bool, error) {
	return false, nil
}

// OpenChannel is a no-op: the subprocess's stdin/stdout pipes are already
// the channel.
func (t *execTransport) OpenChannel(ctx context.Context) error {
	return nil
}

// InvokeShell is a no-op: `-tt` already forced an interactive shell on a
// PTY before Connect returned.
func (t *execTransport) InvokeShell(ctx context.Context) error {
	t.authenticated = true
	return nil
}

func (t *execTransport) ExecuteOnce(ctx context.Context, cmd string) (string, error) {
	return "", requireCapability(t, CapabilityExecuteOnce, "openAndExecute")
}

func (t *execTransport) ChannelRead(bufHint int) (int, []byte, error) {
	if bufHint <= 0 {
		bufHint = 4096
	}
	buf := make([]byte, bufHint)

	type readResult struct {
		n   int
		err error
	}
	done := make(chan readResult, 1)
	go func() {
		n, err := t.stdout.Read(buf)
		done <- readResult{n, err}
	}()

	if t.readTimeout <= 0 {
		r := <-done
		if r.err != nil && r.n == 0 {
			return 0, nil, r.err
		}
		return r.n, buf[:r.n], nil
	}

	select {
	case r := <-done:
		if r.err != nil && r.n == 0 {
			return 0, nil, r.err
		}
		return r.n, buf[:r.n], nil
	case <-time.After(t.readTimeout):
		return 0, nil, &execReadTimeoutError{}
	}
}

func (t *execTransport) ChannelWrite(p []byte) error {
	_, err := t.stdin.Write(p)
	return err
}

func (t *execTransport) ChannelFlush() error {
	return nil
}

func (t *execTransport) SetBlocking(blocking bool) {
	t.blocking = blocking
}

func (t *execTransport) SetReadTimeoutMs(ms int) {
	if ms <= 0 {
		t.readTimeout = 0
		return
	}
	t.readTimeout = time.Duration(ms) * time.Millisecond
}

func (t *execTransport) SendKeepalive(ctx context.Context) error {
	return requireCapability(t, CapabilityStandardKeepalive, "standard keepalive")
}

func (t *execTransport) IsAuthenticated() bool {
	return t.authenticated
}

func (t *execTransport) IsSessionAlive() bool {
	return t.cmd != nil && t.cmd.ProcessState == nil
}

func (t *execTransport) IsChannelAlive() bool {
	return t.IsSessionAlive()
}

func (t *execTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin != nil {
		_ = t.stdin.Close()
	}
	if t.stdout != nil {
		_ = t.stdout.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.authenticated = false
	return nil
}

// execReadTimeoutError satisfies net.Error so the retry/timeout plumbing
// in retry.go recognizes a stalled read on the exec transport the same way
// it recognizes a deadline on a real net.Conn.
type execReadTimeoutError struct{}

func (e *execReadTimeoutError) Error() string   { return "exec transport: read timed out" }
func (e *execReadTimeoutError) Timeout() bool   { return true }
func (e *execReadTimeoutError) Temporary() bool { return true }
