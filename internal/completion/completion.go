// Licensed to the Apache Software Foundation (ASF) under one
// or more contributor license agreements.  See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership.  The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License.  You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Package completion turns native futures into plain outcomes.
package completion

import (
	"context"
	"errors"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/internal/handles"
	"github.com/cassbridge/cassbridge/native"
)

// Outcome is the settled state of a future.
type Outcome struct {
	// Status is StatusOK, StatusOperationFailed, StatusCancelled or
	// StatusTimeout.
	Status cassbridge.Status
	// Code is the native error code of a failed operation.
	Code native.ErrorCode
	// Message is the native diagnostic text, or the context error for
	// abandoned waits.
	Message string
}

func (o Outcome) OK() bool { return o.Status == cassbridge.StatusOK }

// Err converts the outcome of op into an error, nil on success.
func (o Outcome) Err(helper driverbase.ErrorHelper, op string) error {
	switch o.Status {
	case cassbridge.StatusOK:
		return nil
	case cassbridge.StatusCancelled, cassbridge.StatusTimeout:
		return helper.Errorf(o.Status, "%s: %s", op, o.Message)
	default:
		return helper.NativeErrorf(o.Status, o.Code, o.Message, "%s", op)
	}
}

const notReadyMessage = "operation did not complete"

// Await blocks until fut is resolved and releases it on every path.
//
// On success take, when non-nil, runs before the future is released; it
// is the only place a result may be pulled out of the future. On failure
// the native error code and message are captured.
//
// When ctx can be cancelled the native wait happens on a separate
// goroutine. If ctx ends first Await returns a cancelled or timed out
// outcome straight away and that goroutine keeps the future, releasing
// it once the native side resolves; take is never called in that case.
func Await(ctx context.Context, fut *handles.Future, take func(*handles.Future)) Outcome {
	if ctx.Done() == nil {
		return settle(fut, take, false)
	}

	owned := fut.Detach()
	if owned == nil {
		return Outcome{Status: cassbridge.StatusInvalidState, Code: native.LibInvalidState, Message: "future already released"}
	}
	lib := owned.Library()

	waited := make(chan struct{})
	go func() {
		lib.FutureWait(owned.Ptr())
		close(waited)
	}()

	select {
	case <-waited:
		return settle(owned, take, true)
	case <-ctx.Done():
	}

	// prefer a completion that raced with the cancellation
	select {
	case <-waited:
		return settle(owned, take, true)
	default:
	}

	go func() {
		<-waited
		owned.Release()
	}()
	return abandoned(ctx.Err())
}

func settle(fut *handles.Future, take func(*handles.Future), waited bool) Outcome {
	defer fut.Release()

	lib, ptr := fut.Library(), fut.Ptr()
	if !waited {
		lib.FutureWait(ptr)
	}
	if !lib.FutureReady(ptr) {
		return Outcome{Status: cassbridge.StatusOperationFailed, Code: native.LibInvalidState, Message: notReadyMessage}
	}
	if code := lib.FutureErrorCode(ptr); code != native.OK {
		return Outcome{Status: cassbridge.StatusOperationFailed, Code: code, Message: lib.FutureErrorMessage(ptr)}
	}
	if take != nil {
		take(fut)
	}
	return Outcome{Status: cassbridge.StatusOK}
}

func abandoned(err error) Outcome {
	status := cassbridge.StatusCancelled
	if errors.Is(err, context.DeadlineExceeded) {
		status = cassbridge.StatusTimeout
	}
	return Outcome{Status: status, Message: err.Error()}
}
