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

import "github.com/netssh/netssh"

// JuniperJunosPromptRegex is the default prompt pattern for the Junos ladder.
const JuniperJunosPromptRegex = `^[a-z0-9.\-@()/:]{1,32}[#>$]$`

// JuniperJunos returns the two-level privilege ladder for Juniper Junos
// devices: exec and configuration. Junos has no enable-style secondary
// authentication; "configure" moves straight into configuration mode.
func JuniperJunos() *netssh.PrivilegeTable {
	return &netssh.PrivilegeTable{
		DefaultOperational: "exec",
		Levels: map[string]*netssh.PrivilegeLevel{
			"exec": {
				Name:          "exec",
				PromptPattern: netssh.MustCompilePromptPattern(`^[a-z0-9.\-@()/:]{1,32}>$`),
				Level:         0,
				EscalateCmd:   "configure",
				IsRequestable: true,
			},
			"configuration": {
				Name:           "configuration",
				PromptPattern:  netssh.MustCompilePromptPattern(`^[a-z0-9.\-@()/:]{1,32}#$`),
				Level:          1,
				EscalateFrom:   "exec",
				DeescalateFrom: "exec",
				DeescalateCmd:  "exit configuration-mode",
				IsRequestable:  true,
			},
		},
	}
}
