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

// CiscoIOSXRPromptRegex is the default prompt pattern for the IOS-XR ladder.
const CiscoIOSXRPromptRegex = `^[a-z0-9.\-@()/:]{1,32}[#>$]$`

// CiscoIOSXR returns the privilege ladder for Cisco IOS-XR devices: exec,
// privilegeExec, configuration, and specialConfiguration.
func CiscoIOSXR() *netssh.PrivilegeTable {
	return &netssh.PrivilegeTable{
		DefaultOperational: "privilegeExec",
		Levels: map[string]*netssh.PrivilegeLevel{
			"exec": {
				Name:                 "exec",
				PromptPattern:        netssh.MustCompilePromptPattern(`^[a-z0-9.\-@()/:]{1,32}>$`),
				Level:                0,
				EscalateCmd:          "enable",
				EscalateRequiresAuth: true,
				EscalateAuthPrompt:   "Password:",
				IsRequestable:        true,
			},
			"privilegeExec": {
				Name:           "privilegeExec",
				PromptPattern:  netssh.MustCompilePromptPattern(`^[a-z0-9.\-@/:]{1,32}#$`),
				Level:          1,
				EscalateFrom:   "exec",
				EscalateCmd:    "configure terminal",
				DeescalateFrom: "exec",
				DeescalateCmd:  "disable",
				IsRequestable:  true,
			},
			"configuration": {
				Name:           "configuration",
				PromptPattern:  netssh.MustCompilePromptPattern(`^[a-z0-9.\-@/:]{1,32}\(config\)#$`),
				Level:          2,
				EscalateFrom:   "privilegeExec",
				DeescalateFrom: "privilegeExec",
				DeescalateCmd:  "end",
				IsRequestable:  true,
			},
			"specialConfiguration": {
				Name:           "specialConfiguration",
				PromptPattern:  netssh.MustCompilePromptPattern(`^[a-z0-9.\-@/:]{1,32}\(config[a-z0-9.\-@/:]{1,16}\)#$`),
				Level:          3,
				EscalateFrom:   "configuration",
				DeescalateFrom: "configuration",
				DeescalateCmd:  "end",
				IsRequestable:  false,
			},
		},
	}
}
