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

import "fmt"

// ErrorKind discriminates the typed failure modes a caller must be able to
// tell apart without parsing error strings.
type ErrorKind int

const (
	// KindValidation: a constructor argument failed schema/type/range checks.
	KindValidation ErrorKind = iota
	// KindSetupTimeout: the TCP connect exceeded the configured connect timeout.
	KindSetupTimeout
	// KindAuthenticationFailed: every configured authentication method was exhausted.
	KindAuthenticationFailed
	// KindTimeout: the outer operation budget elapsed during a send.
	KindTimeout
	// KindUnknownPrivLevel: the current prompt matched no entry in the active PrivilegeTable.
	KindUnknownPrivLevel
	// KindCouldNotAcquirePrivLevel: the privilege FSM exceeded its step bound.
	KindCouldNotAcquirePrivLevel
	// KindRequirementsNotSatisfied: the requested transport capability is unavailable.
	KindRequirementsNotSatisfied
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindSetupTimeout:
		return "SetupTimeout"
	case KindAuthenticationFailed:
		return "AuthenticationFailed"
	case KindTimeout:
		return "TimeoutError"
	case KindUnknownPrivLevel:
		return "UnknownPrivLevel"
	case KindCouldNotAcquirePrivLevel:
		return "CouldNotAcquirePrivLevel"
	case KindRequirementsNotSatisfied:
		return "RequirementsNotSatisfied"
	default:
		return "Error"
	}
}

// Error is the single error type the core raises; Kind lets callers branch
// with a switch instead of string matching, Unwrap preserves whatever
// transport-level error caused it.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func newError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is allows errors.Is(err, netssh.ErrTimeout) style sentinel checks keyed off Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	if other.Kind != e.Kind {
		return false
	}
	// a bare sentinel (no message, no cause) matches any error of the same Kind.
	return other.Message == "" && other.cause == nil
}

// Sentinels for errors.Is comparisons, one per ErrorKind.
var (
	ErrValidation               = &Error{Kind: KindValidation}
	ErrSetupTimeout             = &Error{Kind: KindSetupTimeout}
	ErrAuthenticationFailed     = &Error{Kind: KindAuthenticationFailed}
	ErrTimeout                  = &Error{Kind: KindTimeout}
	ErrUnknownPrivLevel         = &Error{Kind: KindUnknownPrivLevel}
	ErrCouldNotAcquirePrivLevel = &Error{Kind: KindCouldNotAcquirePrivLevel}
	ErrRequirementsNotSatisfied = &Error{Kind: KindRequirementsNotSatisfied}
)
