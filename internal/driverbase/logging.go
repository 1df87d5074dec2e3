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

package driverbase

import (
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NilLogger returns a logger that discards everything.
func NilLogger() *slog.Logger {
	h := slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}
	return slog.New(slog.NewTextHandler(io.Discard, &h))
}

// LoggerOrNil returns logger, or NilLogger when logger is nil.
func LoggerOrNil(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return NilLogger()
	}
	return logger
}

// NilTracer returns a tracer whose spans are never recorded.
func NilTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("")
}
