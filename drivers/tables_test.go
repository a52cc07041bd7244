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

package drivers

import (
	"testing"

	"github.com/netssh/netssh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTables() map[string]*netssh.PrivilegeTable {
	return map[string]*netssh.PrivilegeTable{
		"cisco_iosxe":   CiscoIOSXE(),
		"cisco_nxos":    CiscoNXOS(),
		"cisco_iosxr":   CiscoIOSXR(),
		"arista_eos":    AristaEOS(),
		"juniper_junos": JuniperJunos(),
	}
}

// every shipped table is internally consistent: unique level values
// forming a total order, names matching their map keys, a resolvable
// default operational level, and escalate/deescalate references that point
// at existing levels.
func TestAllTablesAreWellFormed(t *testing.T) {
	for platform, table := range allTables() {
		t.Run(platform, func(t *testing.T) {
			_, ok := table.Levels[table.DefaultOperational]
			require.True(t, ok, "default operational level must exist")

			seen := map[int]string{}
			for name, level := range table.Levels {
				assert.Equal(t, name, level.Name)
				require.NotNil(t, level.PromptPattern)
				if prev, dup := seen[level.Level]; dup {
					t.Fatalf("levels %q and %q share value %d", prev, name, level.Level)
				}
				seen[level.Level] = name

				if level.EscalateFrom != "" {
					_, ok := table.Levels[level.EscalateFrom]
					assert.True(t, ok, "escalateFrom %q must exist", level.EscalateFrom)
				}
				if level.DeescalateFrom != "" {
					_, ok := table.Levels[level.DeescalateFrom]
					assert.True(t, ok, "deescalateFrom %q must exist", level.DeescalateFrom)
				}
			}
		})
	}
}

// prompt patterns within a table are mutually exclusive against a corpus
// of recorded device prompts, so the FSM can never misclassify the
// current level.
func TestPromptPatternsAreMutuallyExclusive(t *testing.T) {
	prompts := []string{
		"router1>",
		"router1#",
		"router1(config)#",
		"router1(config-if)#",
		"core-sw.lab>",
		"core-sw.lab#",
		"edge@re0:rtr1>",
	}
	for platform, table := range allTables() {
		t.Run(platform, func(t *testing.T) {
			for _, prompt := range prompts {
				matches := 0
				for _, level := range table.Levels {
					if level.PromptPattern.MatchString(prompt) {
						matches++
					}
				}
				assert.LessOrEqual(t, matches, 1, "prompt %q matches %d levels", prompt, matches)
			}
		})
	}
}

func TestDefaultOperationalPerPlatform(t *testing.T) {
	assert.Equal(t, "privilegeExec", CiscoIOSXE().DefaultOperational)
	assert.Equal(t, "privilegeExec", CiscoNXOS().DefaultOperational)
	assert.Equal(t, "privilegeExec", CiscoIOSXR().DefaultOperational)
	assert.Equal(t, "privilegeExec", AristaEOS().DefaultOperational)
	assert.Equal(t, "exec", JuniperJunos().DefaultOperational)
}

func TestJuniperJunosHasTwoLevels(t *testing.T) {
	table := JuniperJunos()
	require.Len(t, table.Levels, 2)

	assert.True(t, table.Levels["exec"].PromptPattern.MatchString("edge@re0:rtr1>"))
	assert.True(t, table.Levels["configuration"].PromptPattern.MatchString("edge@re0:rtr1#"))
	assert.False(t, table.Levels["exec"].EscalateRequiresAuth)
	assert.Equal(t, "configure", table.Levels["exec"].EscalateCmd)
	assert.Equal(t, "exit configuration-mode", table.Levels["configuration"].DeescalateCmd)
}
