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

// Package session implements cassbridge.Session on top of any
// native.Library.
//
// A Driver binds a library to the settings shared by its sessions. Each
// Session owns its cluster configuration and session handles and
// serializes every lifecycle operation behind its own lock:
//
//	drv := session.NewDriver(lib)
//	sess, err := drv.NewSession(ctx, map[string]string{
//		cassbridge.OptionKeyContactPoints: "127.0.0.1",
//	})
//	...
//	defer sess.Dispose()
//	if ok, err := sess.Connect(ctx); !ok {
//		...
//	}
//	rows, err := sess.Execute(ctx, "SELECT * FROM ks.users")
package session

import (
	"context"
	"log/slog"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/native"
	"go.opentelemetry.io/otel/trace"
)

const defaultDriverName = "cassbridge"

// Driver creates sessions over one native library.
type Driver struct {
	lib    native.Library
	name   string
	extra  []infoValue
	info   *driverbase.DriverInfo
	logger *slog.Logger
	// err holds an invalid option; NewSession reports it.
	err error

	tracerProvider trace.TracerProvider
}

type infoValue struct {
	code  driverbase.InfoCode
	value any
}

// Option configures a Driver.
type Option func(*Driver)

// WithName sets the name used in error messages and tracer names.
func WithName(name string) Option {
	return func(d *Driver) { d.name = name }
}

// WithLogger sets the logger new sessions start with.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithTracerProvider makes sessions trace to tp instead of the provider
// selected by OTEL_TRACES_EXPORTER.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Driver) { d.tracerProvider = tp }
}

// WithInfo records driver metadata reported on every span. A value of
// the wrong type for a standard code makes NewSession fail.
func WithInfo(code driverbase.InfoCode, value any) Option {
	return func(d *Driver) { d.extra = append(d.extra, infoValue{code, value}) }
}

// NewDriver returns a Driver for lib. The library is shared read-only
// by every session of the driver.
func NewDriver(lib native.Library, opts ...Option) *Driver {
	d := &Driver{lib: lib, name: defaultDriverName}
	for _, opt := range opts {
		opt(d)
	}
	d.info = driverbase.DefaultDriverInfo(d.name)
	for _, v := range d.extra {
		if err := d.info.RegisterInfoCode(v.code, v.value); err != nil && d.err == nil {
			d.err = driverbase.ErrorHelper{DriverName: d.name}.Errorf(cassbridge.StatusInvalidArgument, "WithInfo: %s", err)
		}
	}
	d.logger = driverbase.LoggerOrNil(d.logger)
	return d
}

func (d *Driver) Library() native.Library { return d.lib }

func (d *Driver) Info() *driverbase.DriverInfo { return d.info }

// NewSession returns an unconnected session with options applied.
func (d *Driver) NewSession(ctx context.Context, options map[string]string) (*Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	s := newSession(d)
	if d.tracerProvider != nil {
		s.tracing.Tracer = d.tracerProvider.Tracer(defaultDriverName+"."+d.info.GetName(),
			trace.WithInstrumentationVersion(driverVersion(d.info)))
	} else if err := s.tracing.InitTracing(ctx, d.info.GetName(), driverVersion(d.info)); err != nil {
		return nil, err
	}
	if err := s.SetOptions(options); err != nil {
		s.Dispose()
		return nil, err
	}
	return s, nil
}

func driverVersion(info *driverbase.DriverInfo) string {
	if v, ok := info.GetInfoForInfoCode(driverbase.InfoDriverVersion); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return driverbase.UnknownVersion
}
