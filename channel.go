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
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
)

// ansiEscapeRegex removes two-byte escapes and CSI sequences at the byte
// level, so prompt matching never sees an ESC byte when stripping is on.
var ansiEscapeRegex = regexp.MustCompile("\x1b(?:[(@-Z\\\\-_]|\\[[0-?]*[ -/]*[@-~])")

// rstripLines decodes buf as UTF-8, right-trims each line of trailing
// whitespace, and rejoins with LF.
func rstripLines(buf []byte) string {
	lines := strings.Split(string(buf), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n")
}

func stripAnsiBytes(buf []byte) []byte {
	return ansiEscapeRegex.ReplaceAll(buf, nil)
}

// stripAnsiFast handles the sequences the byte regex does not model (OSC,
// DCS, and other string-terminated forms) via a compiled state machine.
func stripAnsiFast(s string) string {
	return ansi.Strip(s)
}

// restructure drops leading blank lines and, if stripPrompt, removes the
// final match of promptPattern from text together with the one line break
// that preceded it.
func restructure(text string, stripPrompt bool, promptPattern *regexp.Regexp) string {
	lines := strings.Split(text, "\n")
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	text = strings.Join(lines[start:], "\n")

	if stripPrompt && promptPattern != nil {
		if loc := promptPattern.FindAllStringIndex(text, -1); len(loc) > 0 {
			last := loc[len(loc)-1]
			text = text[:last[0]] + text[last[1]:]
			text = strings.TrimSuffix(text, "\n")
		}
	}
	return text
}

// ChannelEngine drives the interactive read/write primitives over a
// Transport. It owns no substrate itself; the session coordinator opens the
// Transport's channel and hands this engine a reference plus the session
// mutex so operation writes and keepalive writes never interleave.
type ChannelEngine struct {
	transport            Transport
	options              *ChannelOptions
	mu                   *sync.Mutex
	host                 string
	log                  *loggers
	defaultReadTimeoutMs int
}

func newChannelEngine(transport Transport, options *ChannelOptions, mu *sync.Mutex, host string, log *loggers, defaultReadTimeoutMs int) *ChannelEngine {
	return &ChannelEngine{
		transport:            transport,
		options:              options,
		mu:                   mu,
		host:                 host,
		log:                  log,
		defaultReadTimeoutMs: defaultReadTimeoutMs,
	}
}

// normalizeRead traces the raw chunk and, when StripAnsi is set, removes
// escape sequences in two passes: the byte regex for two-byte escapes and
// CSI, then the state machine for the string-terminated forms. With
// StripAnsi off the chunk passes through untouched and ESC bytes reach the
// caller's output.
func (c *ChannelEngine) normalizeRead(buf []byte) []byte {
	if c.log != nil && len(buf) > 0 {
		c.log.ChannelRaw.Debug("read", "n", len(buf), "data", string(buf))
	}
	if c.options.StripAnsi {
		buf = stripAnsiBytes(buf)
		buf = []byte(stripAnsiFast(string(buf)))
	}
	return buf
}

func (c *ChannelEngine) write(p []byte) error {
	if c.log != nil {
		c.log.ChannelRaw.Debug("write", "n", len(p))
	}
	return c.transport.ChannelWrite(p)
}

// clampReadTimeout bounds the transport's read deadline by the operation
// budget for the duration of one operation, so a single read can never
// outlive the budget even when the session read timeout is 0 (block
// indefinitely). The returned func restores the configured deadline.
func (c *ChannelEngine) clampReadTimeout(budgetSec int) func() {
	if budgetSec <= 0 {
		return func() {}
	}
	budgetMs := budgetSec * 1000
	if c.defaultReadTimeoutMs > 0 && c.defaultReadTimeoutMs <= budgetMs {
		return func() {}
	}
	c.transport.SetReadTimeoutMs(budgetMs)
	return func() { c.transport.SetReadTimeoutMs(c.defaultReadTimeoutMs) }
}

// readUntilInput suppresses the device's echo of expected so it never
// appears in a Result's output; on success it flushes the channel and
// writes the configured return character. The user never passes a newline
// with their input; line termination belongs to the engine.
func (c *ChannelEngine) readUntilInput(ctx context.Context, expected string) error {
	_, err := withReadRetry(ctx, func() (struct{}, error) {
		var buf bytes.Buffer
		for {
			if err := ctx.Err(); err != nil {
				return struct{}{}, err
			}
			_, chunk, err := c.transport.ChannelRead(4096)
			if err != nil {
				if isEOF(err) {
					return struct{}{}, newError(KindTimeout, err, "channel closed before echo of %q observed", expected)
				}
				return struct{}{}, err
			}
			buf.Write(c.normalizeRead(chunk))
			if strings.Contains(buf.String(), expected) {
				if err := c.transport.ChannelFlush(); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, c.write([]byte(c.options.ReturnChar))
			}
		}
	})
	return err
}

// readUntilPrompt reads until either the compiled prompt pattern or an
// explicit prompt override matches the CR-normalized buffer. An override
// beginning with "^" or ending with "$" is compiled as a regex under the
// same flags as the main pattern; anything else is substring-matched. The
// transport is switched to non-blocking mode for the duration so partial
// data can be observed, and restored on exit.
func (c *ChannelEngine) readUntilPrompt(ctx context.Context, prompt string) (string, error) {
	pattern := c.options.promptPattern
	var substr string
	if prompt != "" {
		if strings.HasPrefix(prompt, "^") || strings.HasSuffix(prompt, "$") {
			compiled, err := regexp.Compile("(?mi)" + prompt)
			if err != nil {
				return "", newError(KindValidation, err, "explicit prompt %q does not compile", prompt)
			}
			pattern = compiled
		} else {
			substr = prompt
		}
	}

	c.transport.SetBlocking(false)
	defer c.transport.SetBlocking(true)

	return withReadRetry(ctx, func() (string, error) {
		var buf bytes.Buffer
		for {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			_, chunk, err := c.transport.ChannelRead(4096)
			if err != nil {
				if isEOF(err) {
					return "", newError(KindTimeout, err, "channel closed before prompt observed")
				}
				return "", err
			}
			buf.Write(c.normalizeRead(chunk))

			normalized := strings.ReplaceAll(buf.String(), "\r\n", "\n")
			matched := false
			if substr != "" {
				matched = strings.Contains(normalized, substr)
			} else if pattern != nil {
				matched = pattern.MatchString(normalized)
			}
			if matched {
				return rstripLines(buf.Bytes()), nil
			}
		}
	})
}

// sendInput sends one command: acquire the session mutex for the entire
// round trip, write input, suppress its echo, read to the next prompt,
// release, and restructure the result.
func (c *ChannelEngine) sendInput(ctx context.Context, input string, stripPrompt bool) (*Result, error) {
	return withOperationTimeout(ctx, c.options.OperationTimeoutSec, func(ctx context.Context) (*Result, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.clampReadTimeout(c.options.OperationTimeoutSec)()

		result := newResult(c.host, input)
		if c.log != nil {
			c.log.ChannelCmd.Info("send", "input", input)
		}

		if err := c.transport.ChannelFlush(); err != nil {
			return nil, err
		}
		if err := c.write([]byte(input)); err != nil {
			return nil, err
		}
		if err := c.readUntilInput(ctx, input); err != nil {
			return nil, err
		}
		raw, err := c.readUntilPrompt(ctx, "")
		if err != nil {
			return nil, err
		}

		result.finish(restructure(raw, stripPrompt, c.options.promptPattern))
		return result, nil
	})
}

// sendInteract drives a multi-step prompt exchange, e.g. a confirm/deny or
// a mid-session authentication challenge: send input, wait for expect,
// answer with response, wait for finale. When response is empty or hidden,
// the rendered output still records that a return was sent.
func (c *ChannelEngine) sendInteract(ctx context.Context, input, expect, response, finale string, hideResponse bool) (*Result, error) {
	return withOperationTimeout(ctx, c.options.OperationTimeoutSec, func(ctx context.Context) (*Result, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		defer c.clampReadTimeout(c.options.OperationTimeoutSec)()

		result := newResult(c.host, input)
		if c.log != nil {
			c.log.ChannelCmd.Info("interact", "input", input, "expect", expect, "hideResponse", hideResponse)
		}

		if err := c.transport.ChannelFlush(); err != nil {
			return nil, err
		}
		if err := c.write([]byte(input)); err != nil {
			return nil, err
		}
		if err := c.readUntilInput(ctx, input); err != nil {
			return nil, err
		}
		expectOutput, err := c.readUntilPrompt(ctx, expect)
		if err != nil {
			return nil, err
		}

		if response == "" || hideResponse {
			expectOutput += c.options.ReturnChar
		}
		if err := c.write([]byte(response)); err != nil {
			return nil, err
		}
		if err := c.write([]byte(c.options.ReturnChar)); err != nil {
			return nil, err
		}

		finaleOutput, err := c.readUntilPrompt(ctx, finale)
		if err != nil {
			return nil, err
		}

		result.finish(restructure(expectOutput+finaleOutput, true, c.options.promptPattern))
		return result, nil
	})
}

// getPrompt temporarily lowers the read timeout to 1s, writes a bare return
// char, and reads until the prompt pattern matches, returning the matched
// substring. It holds the session mutex so the probe cannot interleave with
// a keepalive write.
func (c *ChannelEngine) getPrompt() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transport.SetReadTimeoutMs(1000)
	defer c.transport.SetReadTimeoutMs(c.defaultReadTimeoutMs)

	if err := c.write([]byte(c.options.ReturnChar)); err != nil {
		return "", err
	}
	raw, err := c.readUntilPrompt(context.Background(), "")
	if err != nil {
		return "", err
	}
	if loc := c.options.promptPattern.FindStringIndex(raw); loc != nil {
		return raw[loc[0]:loc[1]], nil
	}
	return "", newError(KindUnknownPrivLevel, nil, "no prompt match in %q", raw)
}

// openAndExecute runs cmd on a fresh non-interactive channel, reads its
// output to EOF, and closes the channel. Not available on transports
// lacking CapabilityExecuteOnce.
func (c *ChannelEngine) openAndExecute(ctx context.Context, cmd string) (string, error) {
	if err := requireCapability(c.transport, CapabilityExecuteOnce, "openAndExecute"); err != nil {
		return "", err
	}
	return c.transport.ExecuteOnce(ctx, cmd)
}
