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

// StructuredParser is the optional structured-output hook: given a
// platform identifier, the command that was sent, and its raw output,
// return a parsed value (a slice, a map, or nil/empty map when nothing
// matched). The core ships no parser and requires none; absence of a hook
// yields an empty map, never an error.
type StructuredParser func(platform, command, rawOutput string) (any, error)

// runStructuredParser applies parser if set. A parse error or nil result
// yields an empty map rather than failing the whole command; the raw
// output is unaffected either way.
func runStructuredParser(parser StructuredParser, platform, command, rawOutput string) any {
	if parser == nil {
		return map[string]any{}
	}
	parsed, err := parser(platform, command, rawOutput)
	if err != nil || parsed == nil {
		return map[string]any{}
	}
	return parsed
}
