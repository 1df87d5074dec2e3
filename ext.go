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

package cassbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SessionLogging is a Session that also supports logging information to an
// application-supplied log sink.
type SessionLogging interface {
	SetLogger(*slog.Logger)
}

// OptionGetter is a Session that can report the current value of an option.
//
// GetOption should return an error with StatusNotImplemented for
// unsupported options.
type OptionGetter interface {
	GetOption(key string) (string, error)
}

// OTelTracing is an interface that supports instrumentation of [OpenTelementry tracing].
//
// [OpenTelementry tracing]: https://opentelemetry.io/docs/concepts/signals/traces/
type OTelTracing interface {
	// Sets the trace parent from an external trace span. A blank value, removes the parent relationship.
	SetTraceParent(string)
	// Gets the trace parent from an external trace span. A blank value, indicates no parent relationship.
	GetTraceParent() string
	// Starts a new [span] and returns a [trace.Span] which can be used to
	// set the status, add attributes, add events, etc. Implementers should enhance
	// the [context.Context] with the provided trace parent value, if it exists
	//
	// [span]: https://opentelemetry.io/docs/concepts/signals/traces/#span-context
	StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span)

	// Gets the initial span attributes for any newly started span.
	GetInitialSpanAttributes() []attribute.KeyValue
}

// ExecuteScript is a helper that runs each statement in order on a
// connected session, stopping at the first failure. It returns the
// outcomes of the statements that ran.
//
// This is a convenience for schema setup and is not transactional.
func ExecuteScript(ctx context.Context, sess Session, statements ...string) ([]QueryOutcome, error) {
	out := make([]QueryOutcome, 0, len(statements))
	for i, stmt := range statements {
		res, err := sess.Query(ctx, stmt)
		if err != nil {
			return out, fmt.Errorf("ExecuteScript: statement %d: %w", i, err)
		}
		out = append(out, res.Rows)
	}
	return out, nil
}

// IsStatus reports whether err is an Error with the given code.
func IsStatus(err error, code Status) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	var pe *Error
	if errors.As(err, &pe) && pe != nil {
		return pe.Code == code
	}
	return false
}
