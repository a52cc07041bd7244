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

import "time"

// Result is the immutable per-command record produced by the channel
// engine. RawOutput is assigned once the command's prompt has been seen
// and never mutated afterward except to attach StructuredOutput.
type Result struct {
	Host             string
	Input            string
	RawOutput        string
	StructuredOutput any
	StartTime        time.Time
	EndTime          time.Time
}

func newResult(host, input string) *Result {
	return &Result{Host: host, Input: input, StartTime: now()}
}

func (r *Result) finish(rawOutput string) {
	r.RawOutput = rawOutput
	r.EndTime = now()
}

// now is a seam so tests can control timestamps deterministically.
var now = time.Now
