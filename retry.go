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
	"errors"
	"io"
	"net"
	"time"
)

const (
	readRetryAttempts     = 5
	readRetryInitialDelay = 100 * time.Millisecond
	readRetryBackoff      = 2
)

// isReadTimeout reports whether err is the kind of transient deadline
// expiry the inner retry loop should absorb, as opposed to a hard failure
// it must surface immediately.
func isReadTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// withReadRetry wraps a read primitive (readUntilInput, readUntilPrompt)
// with the inner retry policy: up to readRetryAttempts tries, sleeping an
// exponentially doubling delay starting at readRetryInitialDelay between
// timeouts. A non-timeout error or a cancelled ctx aborts immediately. The
// last attempt's error, timeout or not, propagates.
func withReadRetry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	delay := readRetryInitialDelay
	var zero T
	var lastErr error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isReadTimeout(err) {
			return zero, err
		}
		if attempt == readRetryAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return zero, lastErr
		case <-time.After(delay):
		}
		delay *= readRetryBackoff
	}
	return zero, lastErr
}

// withOperationTimeout wraps sendInput/sendInteract with the outer
// per-operation budget: if timeoutSec is zero, fn runs untouched; else fn
// is raced against a context carrying that deadline, and a deadline loss is
// reported as KindTimeout. The engine clamps the transport read deadline to
// the budget before its first read, so fn always returns shortly after the
// context fires and the drain below cannot hang.
func withOperationTimeout(parent context.Context, timeoutSec int, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	if timeoutSec <= 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithTimeout(parent, time.Duration(timeoutSec)*time.Second)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := fn(ctx)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindTimeout, o.err, "operation exceeded %ds budget", timeoutSec)
		}
		return o.result, o.err
	case <-ctx.Done():
		<-done // fn returns once its next read hits the clamped deadline
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(KindTimeout, ctx.Err(), "operation exceeded %ds budget", timeoutSec)
		}
		return nil, ctx.Err()
	}
}

// isEOF reports whether err signals a closed channel rather than a
// transient absence of data.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed)
}
