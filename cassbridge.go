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

// Package cassbridge defines the interfaces for driving a handle-based,
// asynchronous Cassandra client library from Go.
//
// A Session owns the native cluster configuration and session handles,
// turns native futures into plain return values and materializes the
// dynamically typed rows of a result set into an ordered, JSON
// serializable QueryOutcome.
//
// The native call surface itself lives in the native package and is
// implemented by the drivermgr (libcassandra via purego) and
// driver/gocql (pure Go) packages.
//
// Sessions allow serialized access from multiple goroutines; every
// lifecycle operation holds a per-session lock for its whole duration.
package cassbridge

import (
	"context"
	"fmt"
)

//go:generate go run golang.org/x/tools/cmd/stringer -type Status -linecomment

// Error is the detailed error for an operation
type Error struct {
	// Msg is a string representing a human readable error message
	Msg string
	// Code is the status representing this error
	Code Status
	// NativeCode is the error code reported by the native library, if any.
	// Zero when the error originated on the Go side.
	NativeCode uint32
}

func (e Error) Error() string {
	if e.NativeCode != 0 {
		return fmt.Sprintf("%s: %s (native 0x%08X)", e.Code, e.Msg, e.NativeCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Status represents an error code for operations that may fail
type Status uint8

const (
	// No Error
	StatusOK Status = iota // OK
	// An unknown error occurred.
	StatusUnknown // Unknown
	// A native resource could not be created. Fatal to the session,
	// never retried.
	StatusDriverUnavailable // Driver Unavailable
	// The operation requires a connected session.
	StatusNotConnected // Not Connected
	// A native asynchronous call completed with a non-OK status.
	StatusOperationFailed // Operation Failed
	// A single cell or column could not be decoded precisely and a
	// placeholder was substituted. Never returned as an error from
	// Execute; reported through Result.Fallbacks.
	StatusDecodeFallback // Decode Fallback
	// The arguments are invalid, likely a programming error.
	StatusInvalidArgument // Invalid Argument
	// The preconditions for the operation are not met, for instance
	// connecting before configuring or after Dispose.
	StatusInvalidState // Invalid State
	// The option or operation is not supported.
	StatusNotImplemented // Not Implemented
	// The operation was cancelled, not due to a timeout.
	StatusCancelled // Cancelled
	// The operation was cancelled due to a timeout.
	StatusTimeout // Timeout
)

// Canonical option keys
const (
	// Comma-separated host names or addresses.
	OptionKeyContactPoints = "cassbridge.cluster.contact_points"
	OptionKeyPort          = "cassbridge.cluster.port"
	OptionKeyUsername      = "cassbridge.cluster.username"
	OptionKeyPassword      = "cassbridge.cluster.password"
	// Milliseconds.
	OptionKeyConnectTimeout = "cassbridge.cluster.connect_timeout_ms"
	// Milliseconds.
	OptionKeyRequestTimeout = "cassbridge.cluster.request_timeout_ms"
	// Keyspace used when connecting. Empty means none.
	OptionKeyKeyspace = "cassbridge.session.keyspace"
	// Upper bound on a single awaited native operation, as a Go duration
	// string ("5s"). Empty or "0" waits indefinitely.
	OptionKeyWaitTimeout = "cassbridge.session.wait_timeout"
	// Sets/Gets the trace parent on OpenTelemetry traces
	OptionKeyTelemetryTraceParent = "cassbridge.telemetry.trace_parent"
)

// DefaultPort is the CQL native protocol port.
const DefaultPort = 9042

// Result is the materialized outcome of a single Query.
type Result struct {
	// Columns holds the result set's column names in result order,
	// including synthetic column_<index> names.
	Columns []string
	// Rows holds one DecodedRow per native row in iteration order.
	Rows QueryOutcome
	// Fallbacks lists every lossy substitution made while decoding.
	Fallbacks []DecodeFallback
}

// DecodeFallback describes one cell or column name that could not be
// decoded precisely. Row is -1 for column metadata fallbacks.
type DecodeFallback struct {
	Row        int
	Column     int
	Name       string
	ValueType  uint16
	NativeCode uint32
	Reason     string
}

func (f DecodeFallback) String() string {
	if f.Row < 0 {
		return fmt.Sprintf("column %d (%s): %s", f.Column, f.Name, f.Reason)
	}
	return fmt.Sprintf("row %d column %d (%s): %s", f.Row, f.Column, f.Name, f.Reason)
}

// Session is a connection to a cluster through a native library.
//
// A query may only execute while the session is connected. Dispose may be
// called from any state and is the terminal safety net; it always
// succeeds and releases every native handle still owned.
type Session interface {
	// Configure sets the contact points and port of the cluster
	// configuration, creating it on first use. No network activity.
	Configure(contactPoints string, port int) error

	// SetOptions applies cluster or session options. See the OptionKey
	// constants.
	SetOptions(map[string]string) error

	// Connect opens the native session. It reports false along with an
	// error carrying the native diagnostic when the connection fails.
	Connect(ctx context.Context) (bool, error)

	// Execute runs a CQL statement and returns its rows as a JSON array.
	// Statements that return no rows yield "[]".
	Execute(ctx context.Context, cql string) (string, error)

	// Query runs a CQL statement and returns the decoded rows together
	// with the decode fallbacks that occurred.
	Query(ctx context.Context, cql string) (*Result, error)

	// Close closes the native session. Closing a session that is not
	// connected is a no-op reporting true.
	Close(ctx context.Context) (bool, error)

	// Dispose releases all native handles regardless of state.
	Dispose()

	// IsConnected reports whether the session is connected.
	IsConnected() bool
}
