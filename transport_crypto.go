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
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
)

// cryptoTransport is the primary Transport backend: golang.org/x/crypto/ssh
// used directly, with known_hosts verification and native keepalive
// support.
type cryptoTransport struct {
	mu sync.Mutex

	dialAddr  string
	dialer    net.Dialer
	hostKeyCB ssh.HostKeyCallback

	conn   net.Conn
	client *ssh.Client

	session    *ssh.Session
	stdin      io.WriteCloser
	stdout     io.Reader
	shellReady bool

	readTimeoutMs int
	blocking      bool
	user          string
	targetHost    string

	log *loggers
}

func newCryptoTransport(log *loggers) *cryptoTransport {
	return &cryptoTransport{blocking: true, log: log}
}

func (t *cryptoTransport) Capabilities() TransportCapabilitySet {
	return newCapabilitySet(CapabilityExecuteOnce, CapabilityStandardKeepalive)
}

// Connect resolves the known_hosts callback and dials the TCP socket. The
// SSH handshake itself happens inside the first Authenticate* call, since
// golang.org/x/crypto/ssh performs handshake and authentication as a
// single NewClientConn call over one net.Conn (see authenticate).
func (t *cryptoTransport) Connect(ctx context.Context, endpoint Endpoint) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cb, err := buildHostKeyCallback()
	if err != nil {
		return newError(KindSetupTimeout, err, "build host key callback")
	}
	t.hostKeyCB = cb
	t.dialAddr = net.JoinHostPort(endpoint.Host, strconv.Itoa(endpoint.Port))
	t.targetHost = endpoint.Host

	conn, err := t.dialer.DialContext(ctx, "tcp", t.dialAddr)
	if err != nil {
		return newError(KindSetupTimeout, err, "dial %s", t.dialAddr)
	}
	t.conn = conn
	if t.log != nil {
		t.log.Socket.Info("socket open", "addr", t.dialAddr)
	}
	return nil
}

// authenticate performs the actual handshake with a single ssh.AuthMethod.
// The session coordinator owns the attempt ordering; each call here is one
// method's try, and a rejected handshake reports false rather than an
// error so the coordinator can fall through.
func (t *cryptoTransport) authenticate(user string, method ssh.AuthMethod) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return true, nil
	}
	if t.dialAddr == "" {
		return false, newError(KindAuthenticationFailed, nil, "authenticate called before Connect")
	}
	// A failed NewClientConn attempt consumes the conn, so a retry with the
	// next method starts from a fresh dial.
	if t.conn == nil {
		conn, err := t.dialer.Dial("tcp", t.dialAddr)
		if err != nil {
			return false, newError(KindSetupTimeout, err, "redial %s", t.dialAddr)
		}
		t.conn = conn
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{method},
		HostKeyCallback: t.hostKeyCB,
		Timeout:         15 * time.Second,
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(t.conn, t.dialAddr, config)
	if err != nil {
		t.conn = nil
		return false, nil
	}
	t.client = ssh.NewClient(sshConn, chans, reqs)
	if t.log != nil {
		t.log.Session.Info("authenticated", "user", user)
	}
	return true, nil
}

func (t *cryptoTransport) AuthenticateWithPublicKey(ctx context.Context, keyPath string) (bool, error) {
	signer, err := loadPrivateKeySigner(keyPath)
	if err != nil {
		return false, nil
	}
	return t.authenticate(t.pendingUser(), ssh.PublicKeys(signer))
}

func (t *cryptoTransport) AuthenticateWithPassword(ctx context.Context, password string) (bool, error) {
	return t.authenticate(t.pendingUser(), ssh.Password(password))
}

// AuthenticateWithGSSAPI authenticates via GSSAPI-with-MIC, wiring the
// internal/krb5 initiator into ssh.GSSAPIWithMICAuthMethod.
func (t *cryptoTransport) AuthenticateWithGSSAPI(ctx context.Context, kerberos *KerberosCredentials) (bool, error) {
	if kerberos == nil {
		return false, nil
	}
	client, err := krb5NewClient(kerberos)
	if err != nil {
		return false, nil
	}
	method := ssh.GSSAPIWithMICAuthMethod(client, t.targetHost)
	return t.authenticate(t.pendingUser(), method)
}

func (t *cryptoTransport) AuthenticateWithKeyboardInteractive(ctx context.Context, creds Credentials) (bool, error) {
	answer := func(name, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i, q := range questions {
			switch {
			case creds.TOTPSecret != "" && looksLikeTOTPPrompt(q):
				answers[i] = totpCode(creds.TOTPSecret)
			default:
				answers[i] = creds.Password
			}
		}
		return answers, nil
	}
	return t.authenticate(t.pendingUser(), ssh.KeyboardInteractive(answer))
}

// pendingUser is set by the Session Coordinator via SetUser before its
// first Authenticate* call; stored here rather than threaded through every call
// since the Transport interface's auth methods take only the credential
// material relevant to that one method.
func (t *cryptoTransport) pendingUser() string {
	return t.user
}

func (t *cryptoTransport) OpenChannel(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return newError(KindAuthenticationFailed, nil, "OpenChannel called before authentication")
	}
	session, err := t.client.NewSession()
	if err != nil {
		return err
	}
	t.session = session
	return nil
}

func (t *cryptoTransport) InvokeShell(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return newError(KindAuthenticationFailed, nil, "InvokeShell called before OpenChannel")
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := t.session.RequestPty("xterm", 200, 512, modes); err != nil {
		return err
	}
	stdin, err := t.session.StdinPipe()
	if err != nil {
		return err
	}
	stdout, err := t.session.StdoutPipe()
	if err != nil {
		return err
	}
	if err := t.session.Shell(); err != nil {
		return err
	}
	t.stdin = stdin
	t.stdout = stdout
	t.shellReady = true
	return nil
}

func (t *cryptoTransport) ExecuteOnce(ctx context.Context, cmd string) (string, error) {
	if t.client == nil {
		return "", newError(KindAuthenticationFailed, nil, "ExecuteOnce called before authentication")
	}
	session, err := t.client.NewSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	out, err := session.CombinedOutput(cmd)
	if err != nil {
		if _, ok := err.(*ssh.ExitError); !ok {
			return "", err
		}
	}
	return string(out), nil
}

// ChannelRead races a single Read against the configured read timeout.
// golang.org/x/crypto/ssh's session pipes have no SetReadDeadline, so a
// timed-out read's goroutine is left to finish on its own once data or EOF
// eventually arrives. The fallback transport faces the same gap on an
// os.Pipe and solves it the same way.
func (t *cryptoTransport) ChannelRead(bufHint int) (int, []byte, error) {
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

	if t.readTimeoutMs <= 0 {
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
	case <-time.After(time.Duration(t.readTimeoutMs) * time.Millisecond):
		return 0, nil, &cryptoReadTimeoutError{}
	}
}

// cryptoReadTimeoutError satisfies net.Error so retry.go's isReadTimeout
// recognizes a stalled read on the primary transport the same way it
// recognizes one on the fallback transport or a real net.Conn deadline.
type cryptoReadTimeoutError struct{}

func (e *cryptoReadTimeoutError) Error() string   { return "crypto transport: read timed out" }
func (e *cryptoReadTimeoutError) Timeout() bool   { return true }
func (e *cryptoReadTimeoutError) Temporary() bool { return true }

func (t *cryptoTransport) ChannelWrite(p []byte) error {
	_, err := t.stdin.Write(p)
	return err
}

func (t *cryptoTransport) ChannelFlush() error {
	return nil
}

// SetBlocking is a no-op on this transport: golang.org/x/crypto/ssh channel
// reads already return as data arrives rather than requiring an explicit
// blocking-mode toggle the way a raw libssh2 channel does; the deadline set
// by SetReadTimeoutMs is what actually governs wait behavior.
func (t *cryptoTransport) SetBlocking(blocking bool) {
	t.blocking = blocking
}

func (t *cryptoTransport) SetReadTimeoutMs(ms int) {
	t.readTimeoutMs = ms
}

func (t *cryptoTransport) SendKeepalive(ctx context.Context) error {
	if t.client == nil {
		return newError(KindSetupTimeout, nil, "SendKeepalive called before authentication")
	}
	_, _, err := t.client.SendRequest("keepalive@netssh", true, nil)
	return err
}

func (t *cryptoTransport) IsAuthenticated() bool {
	return t.client != nil
}

func (t *cryptoTransport) IsSessionAlive() bool {
	if t.client == nil {
		return false
	}
	_, _, err := t.client.SendRequest("netssh-alive-check@netssh", true, nil)
	return err == nil
}

func (t *cryptoTransport) IsChannelAlive() bool {
	return t.shellReady
}

func (t *cryptoTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		_ = t.session.Close()
		t.session = nil
	}
	t.shellReady = false
	if t.client != nil {
		err := t.client.Close()
		t.client = nil
		return err
	}
	if t.conn != nil {
		err := t.conn.Close()
		t.conn = nil
		return err
	}
	return nil
}

func (t *cryptoTransport) SetUser(user string) {
	t.user = user
}

// loadPrivateKeySigner parses a private key file. No interactive
// passphrase prompting and no ssh-agent lookup; an automation library has
// no terminal to prompt on, so an encrypted key simply fails this method.
func loadPrivateKeySigner(path string) (ssh.Signer, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// buildHostKeyCallback wires github.com/skeema/knownhosts against
// ~/.ssh/known_hosts, with unknown hosts trusted on first use and appended
// rather than prompted interactively.
func buildHostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(home, ".ssh", "known_hosts")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND, 0600); err == nil {
		f.Close()
	}

	khosts, err := knownhosts.New(path)
	if err != nil {
		return nil, err
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := khosts(hostname, remote, key)
		if err == nil {
			return nil
		}
		if knownhosts.IsHostUnknown(err) {
			f, openErr := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
			if openErr != nil {
				return openErr
			}
			defer f.Close()
			line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
			if _, writeErr := f.WriteString(line + "\n"); writeErr != nil {
				return writeErr
			}
			return nil
		}
		return err
	}, nil
}

// looksLikeTOTPPrompt is a heuristic match against the kind of
// keyboard-interactive question a TOTP-gated device issues, used to decide
// whether to answer with a generated code rather than the password.
func looksLikeTOTPPrompt(question string) bool {
	lower := strings.ToLower(question)
	for _, needle := range []string{"verification code", "totp", "one-time", "authenticator"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
