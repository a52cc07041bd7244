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
	"regexp"
	"sort"
)

// PrivilegeLevel is one named rung on a platform's privilege ladder: how to
// recognize it from the prompt, and which commands move one step up or down
// from it. EscalateAuthPrompt is the match target for a mid-escalation
// credential challenge (an "enable" password). A level with IsRequestable
// false can be observed but never targeted directly, e.g. an interface
// sub-configuration mode entered by a config command rather than a mode
// switch.
type PrivilegeLevel struct {
	Name                 string
	PromptPattern        *regexp.Regexp
	Level                int
	EscalateFrom         string
	EscalateCmd          string
	EscalateRequiresAuth bool
	EscalateAuthPrompt   string
	DeescalateFrom       string
	DeescalateCmd        string
	IsRequestable        bool
}

// PrivilegeTable is a platform's complete ladder, keyed by level name.
// Level values impose a total order; scans walk the ladder bottom-up.
type PrivilegeTable struct {
	Levels             map[string]*PrivilegeLevel
	DefaultOperational string
}

// ordered returns the table's levels sorted ascending by Level, so scans
// are deterministic regardless of map iteration order.
func (t *PrivilegeTable) ordered() []*PrivilegeLevel {
	levels := make([]*PrivilegeLevel, 0, len(t.Levels))
	for _, level := range t.Levels {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level < levels[j].Level })
	return levels
}

// nextLevelUp returns the adjacent level above current on the ladder, or
// current itself at the top (where EscalateCmd is empty and escalation is
// a no-op anyway).
func (t *PrivilegeTable) nextLevelUp(current *PrivilegeLevel) *PrivilegeLevel {
	for _, level := range t.ordered() {
		if level.Level > current.Level {
			return level
		}
	}
	return current
}

// MustCompilePromptPattern compiles pattern with the multiline,
// case-insensitive flags every PrivilegeLevel prompt uses, panicking on an
// invalid pattern — intended for package-level table literals (see the
// drivers package) where a bad regex is a programming error caught at init,
// not at runtime.
func MustCompilePromptPattern(pattern string) *regexp.Regexp {
	return regexp.MustCompile("(?mi)" + pattern)
}

// PrivilegeFSM walks a device between privilege levels over a ChannelEngine,
// driven entirely by one PrivilegeTable.
type PrivilegeFSM struct {
	channel           *ChannelEngine
	table             *PrivilegeTable
	secondaryPassword string
}

func newPrivilegeFSM(channel *ChannelEngine, table *PrivilegeTable, secondaryPassword string) *PrivilegeFSM {
	return &PrivilegeFSM{channel: channel, table: table, secondaryPassword: secondaryPassword}
}

// determineCurrentPrivilege scans the ladder bottom-up for the first level
// whose prompt pattern matches prompt. No match is KindUnknownPrivLevel.
func (f *PrivilegeFSM) determineCurrentPrivilege(prompt string) (*PrivilegeLevel, error) {
	for _, level := range f.table.ordered() {
		if level.PromptPattern.MatchString(prompt) {
			return level, nil
		}
	}
	return nil, newError(KindUnknownPrivLevel, nil, "prompt %q matches no level in the active table", prompt)
}

// escalate issues the current level's escalate command, performing the
// secondary-auth interaction if the level requires it. next is the level
// one rung up, whose prompt terminates the auth exchange.
func (f *PrivilegeFSM) escalate(ctx context.Context, current, next *PrivilegeLevel, secondaryPassword string) error {
	if current.EscalateCmd == "" {
		return nil
	}
	if current.EscalateRequiresAuth {
		_, err := f.channel.sendInteract(ctx, current.EscalateCmd, current.EscalateAuthPrompt, secondaryPassword, next.buildPromptSource(), true)
		return err
	}
	_, err := f.channel.sendInput(ctx, current.EscalateCmd, true)
	return err
}

// deescalate issues the current level's de-escalate command; always a
// plain sendInput, symmetric with escalate's auth-free branch.
func (f *PrivilegeFSM) deescalate(ctx context.Context, current *PrivilegeLevel) error {
	if current.DeescalateCmd == "" {
		return nil
	}
	_, err := f.channel.sendInput(ctx, current.DeescalateCmd, true)
	return err
}

// buildPromptSource renders a level's prompt as an explicit override for
// readUntilPrompt; the compiled pattern's source ends in "$", so regex
// dispatch kicks in automatically.
func (l *PrivilegeLevel) buildPromptSource() string {
	if l.PromptPattern == nil {
		return ""
	}
	return l.PromptPattern.String()
}

// acquirePrivilege walks the device to targetName: read the current prompt,
// determine the level it represents, escalate or de-escalate one step
// toward target, and repeat until matched. More steps than the table has
// levels means the target is unreachable or the ladder is cyclic, so the
// loop fails rather than spinning.
func (f *PrivilegeFSM) acquirePrivilege(ctx context.Context, targetName string) error {
	target, ok := f.table.Levels[targetName]
	if !ok {
		return newError(KindValidation, nil, "unknown privilege level %q", targetName)
	}

	maxSteps := len(f.table.Levels)
	for step := 0; step < maxSteps; step++ {
		prompt, err := f.channel.getPrompt()
		if err != nil {
			return err
		}
		current, err := f.determineCurrentPrivilege(prompt)
		if err != nil {
			return err
		}
		if current.Name == target.Name {
			return nil
		}
		if current.Level > target.Level {
			if err := f.deescalate(ctx, current); err != nil {
				return err
			}
		} else {
			if err := f.escalate(ctx, current, f.table.nextLevelUp(current), f.secondaryPassword); err != nil {
				return err
			}
		}
	}
	return newError(KindCouldNotAcquirePrivLevel, nil, "could not reach %q within %d steps", targetName, maxSteps)
}

// sendCommands acquires the platform's default operational privilege, sends
// each input in order, and optionally runs the structured-output hook over
// each raw output.
func (f *PrivilegeFSM) sendCommands(ctx context.Context, cmds []string, stripPrompt, parseStructured bool, platform string, parser StructuredParser) ([]*Result, error) {
	if err := f.acquirePrivilege(ctx, f.table.DefaultOperational); err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(cmds))
	for _, cmd := range cmds {
		result, err := f.channel.sendInput(ctx, cmd, stripPrompt)
		if err != nil {
			return nil, err
		}
		if parseStructured {
			result.StructuredOutput = runStructuredParser(parser, platform, cmd, result.RawOutput)
		}
		results = append(results, result)
	}
	return results, nil
}

// sendConfigs acquires the configuration privilege, sends each command,
// then re-acquires the default operational privilege before returning,
// success or failure.
func (f *PrivilegeFSM) sendConfigs(ctx context.Context, cmds []string, stripPrompt bool) ([]*Result, error) {
	if err := f.acquirePrivilege(ctx, "configuration"); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(cmds))
	var sendErr error
	for _, cmd := range cmds {
		result, err := f.channel.sendInput(ctx, cmd, stripPrompt)
		if err != nil {
			sendErr = err
			break
		}
		results = append(results, result)
	}

	if err := f.acquirePrivilege(ctx, f.table.DefaultOperational); err != nil && sendErr == nil {
		sendErr = err
	}
	if sendErr != nil {
		return nil, sendErr
	}
	return results, nil
}
