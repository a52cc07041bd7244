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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPrivilegeTable is a three-level ladder (exec -> privilegeExec ->
// configuration) modeled on netssh/drivers.CiscoIOSXE, duplicated locally
// rather than imported since drivers imports netssh and this test file
// compiles as part of package netssh.
func testPrivilegeTable() *PrivilegeTable {
	return &PrivilegeTable{
		DefaultOperational: "privilegeExec",
		Levels: map[string]*PrivilegeLevel{
			"exec": {
				Name:                 "exec",
				PromptPattern:        MustCompilePromptPattern(`^[a-z0-9.\-@()/:]{1,32}>$`),
				Level:                0,
				EscalateCmd:          "enable",
				EscalateRequiresAuth: true,
				EscalateAuthPrompt:   "Password:",
				IsRequestable:        true,
			},
			"privilegeExec": {
				Name:           "privilegeExec",
				PromptPattern:  MustCompilePromptPattern(`^[a-z0-9.\-@/:]{1,32}#$`),
				Level:          1,
				DeescalateCmd:  "disable",
				EscalateCmd:    "configure terminal",
				IsRequestable:  true,
			},
			"configuration": {
				Name:           "configuration",
				PromptPattern:  MustCompilePromptPattern(`^[a-z0-9.\-@/:]{1,32}\(config\)#$`),
				Level:          2,
				DeescalateCmd:  "end",
				IsRequestable:  true,
			},
		},
	}
}

func newTestFSM(t *testing.T, ft *fakeTransport) *PrivilegeFSM {
	t.Helper()
	var mu sync.Mutex
	engine := newChannelEngine(ft, testChannelOptions(t), &mu, "router1", nil, 5000)
	return newPrivilegeFSM(engine, testPrivilegeTable(), "enablesecret")
}

func TestDetermineCurrentPrivilegeMatchesFirstLevel(t *testing.T) {
	fsm := newTestFSM(t, newFakeTransport("\n"))

	level, err := fsm.determineCurrentPrivilege("Router>")
	require.NoError(t, err)
	assert.Equal(t, "exec", level.Name)

	level, err = fsm.determineCurrentPrivilege("Router#")
	require.NoError(t, err)
	assert.Equal(t, "privilegeExec", level.Name)

	level, err = fsm.determineCurrentPrivilege("Router(config)#")
	require.NoError(t, err)
	assert.Equal(t, "configuration", level.Name)
}

func TestDetermineCurrentPrivilegeUnknownPrompt(t *testing.T) {
	fsm := newTestFSM(t, newFakeTransport("\n"))

	_, err := fsm.determineCurrentPrivilege("not a prompt at all")
	require.Error(t, err)
	var netErr *Error
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, KindUnknownPrivLevel, netErr.Kind)
}

// walking from exec all the way to configuration: the FSM issues "enable",
// answers the hidden secondary-auth challenge, then issues "configure
// terminal", re-reading the prompt between each step.
func TestAcquirePrivilegeEscalatesThroughSecondaryAuth(t *testing.T) {
	ft := newFakeTransport("\n")
	// getPrompt writes a bare return char and reads until promptPattern
	// matches; script each step's prompt as the canned reply to "".
	ft.respondSequence("", "Router>", "Router#", "Router(config)#")
	ft.respond("enable", "Password:")
	ft.respond("enablesecret", "\r\nRouter#")
	ft.respond("configure terminal", "\r\nRouter(config)#")
	fsm := newTestFSM(t, ft)

	err := fsm.acquirePrivilege(context.Background(), "configuration")
	require.NoError(t, err)
}

func TestEscalateWithoutAuthSendsPlainCommand(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("configure terminal", "\r\nRouter(config)#")
	fsm := newTestFSM(t, ft)

	err := fsm.escalate(context.Background(), fsm.table.Levels["privilegeExec"], fsm.table.Levels["configuration"], "")
	require.NoError(t, err)
}

func TestDeescalateSendsPlainCommand(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("end", "\r\nRouter#")
	fsm := newTestFSM(t, ft)

	err := fsm.deescalate(context.Background(), fsm.table.Levels["configuration"])
	require.NoError(t, err)
}

func TestDeescalateNoopWhenNoCommand(t *testing.T) {
	fsm := newTestFSM(t, newFakeTransport("\n"))
	level := &PrivilegeLevel{Name: "exec"} // no DeescalateCmd
	require.NoError(t, fsm.deescalate(context.Background(), level))
}

// a device already at the target level: acquirePrivilege returns
// immediately without issuing any commands.
func TestAcquirePrivilegeNoopWhenAlreadyAtTarget(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("", "Router#")
	fsm := newTestFSM(t, ft)

	err := fsm.acquirePrivilege(context.Background(), "privilegeExec")
	require.NoError(t, err)
}

// acquirePrivilege fails with CouldNotAcquirePrivLevel once it exceeds
// the table's step bound, guarding against an unreachable or cyclic
// target.
func TestAcquirePrivilegeFailsAfterStepBound(t *testing.T) {
	ft := newFakeTransport("\n")
	// Each enable exchange completes, but the probed prompt never changes,
	// so every step re-detects "exec" and re-issues the same escalate
	// command without ever reaching "configuration".
	ft.respond("", "Router>")
	ft.respond("enable", "Password:")
	ft.respond("enablesecret", "\r\nRouter#")
	fsm := newTestFSM(t, ft)

	err := fsm.acquirePrivilege(context.Background(), "configuration")
	require.Error(t, err)
	var netErr *Error
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, KindCouldNotAcquirePrivLevel, netErr.Kind)
}

func TestAcquirePrivilegeUnknownTargetIsValidationError(t *testing.T) {
	fsm := newTestFSM(t, newFakeTransport("\n"))

	err := fsm.acquirePrivilege(context.Background(), "doesnotexist")
	require.Error(t, err)
	var netErr *Error
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, KindValidation, netErr.Kind)
}

// sendCommands' results are ordered by send order and each carries back
// the exact input that produced it.
func TestSendCommandsPreservesOrderAndInput(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("", "Router#")
	ft.respond("show version", "16.9.1\r\nRouter#")
	ft.respond("show clock", "10:00:00\r\nRouter#")
	fsm := newTestFSM(t, ft)

	results, err := fsm.sendCommands(context.Background(), []string{"show version", "show clock"}, true, false, "cisco_ios", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "show version", results[0].Input)
	assert.Equal(t, "show clock", results[1].Input)
	assert.Equal(t, "16.9.1", results[0].RawOutput)
	assert.Equal(t, "10:00:00", results[1].RawOutput)
}

// no parser configured: StructuredOutput is an empty map and RawOutput
// is unaffected.
func TestSendCommandsParseStructuredWithoutParserYieldsEmptyMap(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("", "Router#")
	ft.respond("show version", "16.9.1\r\nRouter#")
	fsm := newTestFSM(t, ft)

	results, err := fsm.sendCommands(context.Background(), []string{"show version"}, true, true, "cisco_ios", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, map[string]any{}, results[0].StructuredOutput)
	assert.Equal(t, "16.9.1", results[0].RawOutput)
}

func TestSendCommandsUsesConfiguredParser(t *testing.T) {
	ft := newFakeTransport("\n")
	ft.respond("", "Router#")
	ft.respond("show version", "16.9.1\r\nRouter#")
	fsm := newTestFSM(t, ft)

	parser := func(platform, command, rawOutput string) (any, error) {
		return map[string]any{"version": rawOutput}, nil
	}
	results, err := fsm.sendCommands(context.Background(), []string{"show version"}, true, true, "cisco_ios", parser)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"version": "16.9.1"}, results[0].StructuredOutput)
}

// sendConfigs acquires configuration, sends each command, then
// re-acquires the default operational privilege.
func TestSendConfigsReacquiresDefaultOperational(t *testing.T) {
	ft := newFakeTransport("\n")
	// First getPrompt (acquiring "configuration") sees the config prompt
	// already. Re-acquiring "privilegeExec" afterward takes two getPrompt
	// reads: one that still sees the config prompt (triggering "end"), and
	// one that sees the de-escalated prompt.
	ft.respondSequence("", "Router(config)#", "Router(config)#", "Router#")
	ft.respond("hostname edge1", "\r\nRouter(config)#")
	ft.respond("end", "\r\nRouter#")
	fsm := newTestFSM(t, ft)

	results, err := fsm.sendConfigs(context.Background(), []string{"hostname edge1"}, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hostname edge1", results[0].Input)
}
