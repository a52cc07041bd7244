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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCiscoIOSXEHasFourLevels(t *testing.T) {
	table := CiscoIOSXE()
	require.Len(t, table.Levels, 4)
	assert.Equal(t, "privilegeExec", table.DefaultOperational)

	for name, level := range table.Levels {
		assert.Equal(t, name, level.Name)
		require.NotNil(t, level.PromptPattern)
	}
}

func TestCiscoIOSXEPromptsMatchExpectedShapes(t *testing.T) {
	table := CiscoIOSXE()

	assert.True(t, table.Levels["exec"].PromptPattern.MatchString("Router>"))
	assert.True(t, table.Levels["privilegeExec"].PromptPattern.MatchString("Router#"))
	assert.True(t, table.Levels["configuration"].PromptPattern.MatchString("Router(config)#"))
	assert.True(t, table.Levels["specialConfiguration"].PromptPattern.MatchString("Router(config-if)#"))

	assert.False(t, table.Levels["exec"].PromptPattern.MatchString("Router#"))
	assert.False(t, table.Levels["privilegeExec"].PromptPattern.MatchString("Router(config)#"))
}

func TestCiscoIOSXEOnlySpecialConfigurationIsNotRequestable(t *testing.T) {
	table := CiscoIOSXE()
	for name, level := range table.Levels {
		if name == "specialConfiguration" {
			assert.False(t, level.IsRequestable)
		} else {
			assert.True(t, level.IsRequestable)
		}
	}
}
