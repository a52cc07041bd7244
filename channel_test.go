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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChannelOptions(t *testing.T) *ChannelOptions {
	t.Helper()
	opts := &ChannelOptions{
		PromptRegex:         `^[a-z0-9.\-@()/:]{1,32}[#>$]$`,
		OperationTimeoutSec: 2,
		ReturnChar:          "\n",
		StripAnsi:           true,
	}
	require.NoError(t, opts.Validate())
	return opts
}

func newTestEngine(t *testing.T, transport Transport) *ChannelEngine {
	t.Helper()
	var mu sync.Mutex
	return newChannelEngine(transport, testChannelOptions(t), &mu, "router1", nil, 5000)
}

// "show version" echoes, then the device emits its output followed by
// the prompt; RawOutput is the output alone.
func TestSendInputStripsEchoAndPrompt(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show version", "Cisco IOS XE Version 16.9.1\r\nRouter#")
	engine := newTestEngine(t, ft)

	result, err := engine.sendInput(context.Background(), "show version", true)
	require.NoError(t, err)
	assert.Equal(t, "show version", result.Input)
	assert.Equal(t, "Cisco IOS XE Version 16.9.1", result.RawOutput)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

// the echoed input never appears as the first
// non-empty line of rawOutput.
func TestSendInputNeverLeadsWithEcho(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show clock", "10:00:00 UTC\r\nRouter#")
	engine := newTestEngine(t, ft)

	result, err := engine.sendInput(context.Background(), "show clock", true)
	require.NoError(t, err)
	assert.NotEqual(t, "show clock", firstNonEmptyLine(result.RawOutput))
}

func firstNonEmptyLine(s string) string {
	for _, line := range splitLines(s) {
		if line != "" {
			return line
		}
	}
	return ""
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// no Result's RawOutput contains a full match of promptRegex when
// stripPrompt=true.
func TestSendInputStripPromptRemovesFullMatch(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show version", "output line one\r\nRouter#")
	engine := newTestEngine(t, ft)

	result, err := engine.sendInput(context.Background(), "show version", true)
	require.NoError(t, err)
	assert.False(t, engine.options.promptPattern.MatchString(result.RawOutput))
}

// a confirm-style interaction with an empty response still records that
// a return was sent, prompt stripped.
func TestSendInteractConfirmPrompt(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("clear logging", "Clear logging buffer [confirm]")
	ft.respond("", "\r\nRouter#")
	engine := newTestEngine(t, ft)

	result, err := engine.sendInteract(context.Background(), "clear logging", "[confirm]", "", "Router#", false)
	require.NoError(t, err)
	assert.Contains(t, result.RawOutput, "Clear logging buffer [confirm]\n")
	assert.False(t, engine.options.promptPattern.MatchString(result.RawOutput))
}

// with stripAnsi on, ANSI escape sequences are stripped before the prompt
// pattern is evaluated and never appear in the result.
func TestStripAnsiRemovesEscapeSequences(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show version", "\x1b[1m/\x1b[0;0mRouter#")
	engine := newTestEngine(t, ft)

	result, err := engine.sendInput(context.Background(), "show version", false)
	require.NoError(t, err)
	assert.NotContains(t, result.RawOutput, "\x1b")
}

// with stripAnsi off, escape bytes pass through to the raw output
// untouched.
func TestStripAnsiDisabledPreservesEscapeSequences(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show version", "\x1b[1mVersion 16.9.1\x1b[0m\r\nRouter#")
	engine := newTestEngine(t, ft)
	engine.options.StripAnsi = false

	result, err := engine.sendInput(context.Background(), "show version", true)
	require.NoError(t, err)
	assert.Contains(t, result.RawOutput, "\x1b[1m")
}

// getPrompt sends a bare returnChar with no preceding input and reports
// the prompt alone.
func TestGetPromptReturnsBarePrompt(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("", "Router#")
	engine := newTestEngine(t, ft)

	prompt, err := engine.getPrompt()
	require.NoError(t, err)
	assert.Equal(t, "Router#", prompt)
}

// a second input sent over the same engine is independent of the first:
// each call's result carries its own input and output, in order.
func TestSendInputSequentialCallsAreIndependent(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("show version", "16.9.1\r\nRouter#")
	ft.respond("show clock", "10:00:00 UTC\r\nRouter#")
	engine := newTestEngine(t, ft)

	first, err := engine.sendInput(context.Background(), "show version", true)
	require.NoError(t, err)
	second, err := engine.sendInput(context.Background(), "show clock", true)
	require.NoError(t, err)

	assert.Equal(t, "16.9.1", first.RawOutput)
	assert.Equal(t, "10:00:00 UTC", second.RawOutput)
}

// a prompt pattern that never matches means TimeoutError within the
// operation budget, not a deadlock.
func TestSendInputTimesOutWhenPromptNeverSeen(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.neverRespond = true
	engine := newTestEngine(t, ft)
	engine.options.OperationTimeoutSec = 1

	start := time.Now()
	_, err := engine.sendInput(context.Background(), "show version", true)
	elapsed := time.Since(start)

	require.Error(t, err)
	var netErr *Error
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, KindTimeout, netErr.Kind)
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRestructureDropsLeadingBlankLinesAndPrompt(t *testing.T) {
	pattern := testChannelOptions(t).promptPattern
	out := restructure("\n\nhello\r\nworld\nRouter#", true, pattern)
	assert.Equal(t, "hello\r\nworld", out)
}

func TestRstripLinesTrimsTrailingWhitespacePerLine(t *testing.T) {
	got := rstripLines([]byte("foo   \nbar\t\n"))
	assert.Equal(t, "foo\nbar\n", got)
}
