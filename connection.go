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
	"fmt"
	"log/slog"
)

// Connection is the public handle: a Transport, a ChannelEngine, and an
// optional PrivilegeFSM composed behind one synchronous API. A Connection
// is not safe for concurrent use by multiple goroutines; callers serialize
// externally or open one Connection per goroutine.
type Connection struct {
	endpoint Endpoint
	creds    Credentials
	options  SessionOptions
	chanOpts ChannelOptions
	log      *loggers

	session  *SessionCoordinator
	channel  *ChannelEngine
	priv     *PrivilegeFSM
	platform string
	parser   StructuredParser
}

// ConnectionParams bundles the optional, platform-specific collaborators a
// caller may supply alongside the four required constructor arguments.
type ConnectionParams struct {
	// PrivilegeTable, if set, enables AcquirePrivilege, SendCommands'
	// privilege acquisition, and SendConfigs. Without it, SendCommands still
	// works as a plain send loop with no privilege negotiation.
	PrivilegeTable *PrivilegeTable
	// Platform identifies the device family for the structured-output hook,
	// e.g. "cisco_ios".
	Platform string
	// Parser is the optional structured-output hook.
	Parser StructuredParser
	// LogHandler, if set, backs the four named streams (session,
	// channel.admin, channel.raw, socket), wrapped in the redacting handler.
	// Nil routes every stream to io.Discard.
	LogHandler slog.Handler
}

// New validates every argument synchronously before any I/O occurs and
// returns an unopened Connection.
func New(endpoint Endpoint, creds Credentials, options SessionOptions, channelOptions ChannelOptions, params ConnectionParams) (*Connection, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, err
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if err := channelOptions.Validate(); err != nil {
		return nil, err
	}
	if err := applySSHConfig(endpoint.Host, &endpoint, &creds); err != nil {
		return nil, err
	}

	log := newLoggers(params.LogHandler)

	var transport Transport
	if options.UseFallbackTransport {
		transport = newExecTransport(log)
	} else {
		transport = newCryptoTransport(log)
	}

	if err := validateKeepaliveKind(transport, options); err != nil {
		return nil, err
	}

	conn := &Connection{
		endpoint: endpoint,
		creds:    creds,
		options:  options,
		chanOpts: channelOptions,
		log:      log,
		platform: params.Platform,
		parser:   params.Parser,
	}

	conn.session = newSessionCoordinator(transport, endpoint, creds, options, log)
	conn.channel = newChannelEngine(transport, &conn.chanOpts, &conn.session.mu, endpoint.Host, log, options.ReadTimeoutMs)
	if params.PrivilegeTable != nil {
		conn.priv = newPrivilegeFSM(conn.channel, params.PrivilegeTable, creds.SecondaryPassword)
	}
	return conn, nil
}

// Open drives the full connect/authenticate/channel/shell sequence and
// runs the configured pre-login hook and disable-paging directive once the
// shell is ready.
func (c *Connection) Open(ctx context.Context) error {
	if err := c.session.open(ctx); err != nil {
		return err
	}
	if c.chanOpts.PreLoginHook != nil {
		if err := c.chanOpts.PreLoginHook(c); err != nil {
			return err
		}
	}
	if dp := c.chanOpts.DisablePaging; dp != nil {
		if dp.Callback != nil {
			if err := dp.Callback(c); err != nil {
				return err
			}
		} else if dp.Command != "" {
			if _, err := c.channel.sendInput(ctx, dp.Command, true); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close tears down the connection. Safe to call on an already-closed or
// never-opened Connection.
func (c *Connection) Close() error {
	return c.session.close()
}

// IsAlive reports whether the shell is ready and the transport still
// reports its session alive.
func (c *Connection) IsAlive() bool {
	return c.session.IsAlive()
}

// MissedKeepalives exposes the network-kind keepalive's missed-interval
// counter.
func (c *Connection) MissedKeepalives() int64 {
	return c.session.MissedKeepalives()
}

// SendCommand sends a single input; shorthand for SendCommands with a
// one-element slice.
func (c *Connection) SendCommand(ctx context.Context, input string, stripPrompt, parseStructured bool) (*Result, error) {
	results, err := c.SendCommands(ctx, []string{input}, stripPrompt, parseStructured)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// SendCommands sends each input in order, optionally acquiring the
// platform's default operational privilege first when a PrivilegeTable was
// supplied at construction. A failed send returns no results.
func (c *Connection) SendCommands(ctx context.Context, inputs []string, stripPrompt, parseStructured bool) ([]*Result, error) {
	if c.priv != nil {
		return c.priv.sendCommands(ctx, inputs, stripPrompt, parseStructured, c.platform, c.parser)
	}
	results := make([]*Result, 0, len(inputs))
	for _, input := range inputs {
		result, err := c.channel.sendInput(ctx, input, stripPrompt)
		if err != nil {
			return nil, err
		}
		if parseStructured {
			result.StructuredOutput = runStructuredParser(c.parser, c.platform, input, result.RawOutput)
		}
		results = append(results, result)
	}
	return results, nil
}

// Interaction is one multi-step prompt exchange for SendInteract.
type Interaction struct {
	Input    string
	Expect   string
	Response string
	Finale   string
}

// SendInteract executes each Interaction in order, driving prompts inside
// prompts (confirmations, mid-session credential challenges).
func (c *Connection) SendInteract(ctx context.Context, interactions []Interaction, hideResponse bool) ([]*Result, error) {
	results := make([]*Result, 0, len(interactions))
	for _, step := range interactions {
		result, err := c.channel.sendInteract(ctx, step.Input, step.Expect, step.Response, step.Finale, hideResponse)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

// SendConfigs acquires the configuration privilege, sends each input, and
// re-acquires the default operational privilege before returning. Requires
// a PrivilegeTable.
func (c *Connection) SendConfigs(ctx context.Context, inputs []string, stripPrompt bool) ([]*Result, error) {
	if c.priv == nil {
		return nil, newError(KindValidation, nil, "sendConfigs requires a PrivilegeTable")
	}
	return c.priv.sendConfigs(ctx, inputs, stripPrompt)
}

// GetPrompt probes the device for its current prompt.
func (c *Connection) GetPrompt() (string, error) {
	return c.channel.getPrompt()
}

// OpenAndExecute runs cmd on a fresh one-shot channel; available only on
// the primary transport.
func (c *Connection) OpenAndExecute(ctx context.Context, cmd string) (string, error) {
	return c.channel.openAndExecute(ctx, cmd)
}

// AcquirePrivilege walks the device to the named privilege level. Requires
// a PrivilegeTable.
func (c *Connection) AcquirePrivilege(ctx context.Context, name string) error {
	if c.priv == nil {
		return newError(KindValidation, nil, "acquirePrivilege requires a PrivilegeTable")
	}
	return c.priv.acquirePrivilege(ctx, name)
}

// String renders a safe, non-secret summary for debugging.
func (c *Connection) String() string {
	return fmt.Sprintf("Connection{%s@%s:%d alive=%v}", c.creds.User, c.endpoint.Host, c.endpoint.Port, c.IsAlive())
}
