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
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cassbridge/cassbridge"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	driverNamespace    = "cassbridge"
	otelTracesExporter = "OTEL_TRACES_EXPORTER"
)

// Values accepted in OTEL_TRACES_EXPORTER.
const (
	TelemetryExporterNone    = "none"
	TelemetryExporterOtlp    = "otlp"
	TelemetryExporterConsole = "console"
	TelemetryExporterFile    = "file"
)

type traceExporterType int

const (
	TraceExporterNone traceExporterType = iota
	TraceExporterOtlp
	TraceExporterConsole
	TraceExporterFile
)

var traceExporterNames = map[string]traceExporterType{
	TelemetryExporterNone:    TraceExporterNone,
	TelemetryExporterOtlp:    TraceExporterOtlp,
	TelemetryExporterConsole: TraceExporterConsole,
	TelemetryExporterFile:    TraceExporterFile,
}

func (te traceExporterType) String() string {
	return [...]string{
		TelemetryExporterNone,
		TelemetryExporterOtlp,
		TelemetryExporterConsole,
		TelemetryExporterFile,
	}[te]
}

const (
	MessageOtelTracesExporterOptionUnknown = "Unknown " + otelTracesExporter + " option"
	MessageNoOtelTracesExporters           = "No trace exporters added"
)

var getExporterName = sync.OnceValue(func() string {
	return os.Getenv(otelTracesExporter)
})

// Tracing carries the tracer of a session together with the trace
// parent supplied by the application.
type Tracing struct {
	ErrorHelper ErrorHelper
	DriverInfo  *DriverInfo
	Tracer      trace.Tracer

	traceParent        string
	tracerShutdownFunc func(context.Context) error
}

// NewTracing returns a Tracing that records nothing until InitTracing
// is called.
func NewTracing(info *DriverInfo) *Tracing {
	return &Tracing{
		ErrorHelper: ErrorHelper{DriverName: info.GetName()},
		DriverInfo:  info,
		Tracer:      NilTracer(),
	}
}

func (t *Tracing) GetInitialSpanAttributes() []attribute.KeyValue {
	return t.DriverInfo.Attributes()
}

func (t *Tracing) GetTraceParent() string { return t.traceParent }

func (t *Tracing) SetTraceParent(traceParent string) { t.traceParent = traceParent }

func (t *Tracing) StartSpan(
	ctx context.Context,
	spanName string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	ctx, _ = maybeAddTraceParent(ctx, t.traceParent)
	opts = append(opts, trace.WithAttributes(t.GetInitialSpanAttributes()...))
	return t.Tracer.Start(ctx, spanName, opts...)
}

// maybeAddTraceParent returns ctx carrying the remote span context
// described by traceParent, when it is a valid W3C traceparent value.
func maybeAddTraceParent(ctx context.Context, traceParent string) (context.Context, bool) {
	if strings.TrimSpace(traceParent) == "" {
		return ctx, false
	}
	if trace.SpanContextFromContext(ctx).IsValid() {
		return ctx, false
	}
	carrier := propagation.MapCarrier{"traceparent": traceParent}
	out := propagation.TraceContext{}.Extract(ctx, carrier)
	if !trace.SpanContextFromContext(out).IsValid() {
		return ctx, false
	}
	return out, true
}

// Shutdown flushes and stops the tracer provider created by InitTracing.
func (t *Tracing) Shutdown(ctx context.Context) (err error) {
	if t.tracerShutdownFunc != nil {
		err = t.tracerShutdownFunc(ctx)
		t.tracerShutdownFunc = nil
	}
	return
}

// InitTracing sets up the tracer from the OTEL_TRACES_EXPORTER
// environment variable. When it is unset the global tracer provider is
// used.
func (t *Tracing) InitTracing(ctx context.Context, driverName string, driverVersion string) (err error) {
	fullyQualifiedDriverName := driverNamespace + "." + driverName

	exporterName := getExporterName()

	// Empty exporter
	if exporterName == "" {
		t.Tracer = otel.Tracer(fullyQualifiedDriverName)
		return
	}

	exporters, exporterType, err := getExporters(ctx, exporterName, t.ErrorHelper, driverName)
	if err != nil {
		return
	}
	if exporterType == TraceExporterNone {
		t.Tracer = NilTracer()
		return
	}
	if len(exporters) < 1 {
		err = t.ErrorHelper.Errorf(
			cassbridge.StatusInvalidState,
			"%s '%s'",
			MessageNoOtelTracesExporters,
			exporterType.String(),
		)
		return
	}

	var tracerProvider *sdktrace.TracerProvider
	tracerProvider, err = newTracerProvider(exporters...)
	if err != nil {
		return
	}
	t.tracerShutdownFunc = tracerProvider.Shutdown
	t.Tracer = tracerProvider.Tracer(
		fullyQualifiedDriverName,
		trace.WithInstrumentationVersion(driverVersion),
		trace.WithSchemaURL(semconv.SchemaURL),
	)
	return
}

func getExporters(
	ctx context.Context,
	exporterName string,
	helper ErrorHelper,
	driverName string,
) (exporters []sdktrace.SpanExporter, exporterType traceExporterType, err error) {
	var exporter sdktrace.SpanExporter
	exporterType, ok := tryParseTraceExporterType(exporterName)
	if !ok {
		err = helper.Errorf(
			cassbridge.StatusInvalidArgument,
			"%s '%s'",
			MessageOtelTracesExporterOptionUnknown,
			exporterName,
		)
		return
	}
	switch exporterType {
	case TraceExporterNone:
	case TraceExporterConsole:
		exporter, err = stdouttrace.New()
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	case TraceExporterOtlp:
		exporters, err = newOtlpTraceExporters(ctx)
	case TraceExporterFile:
		exporter, err = newFileExporter(driverName)
		if err != nil {
			return
		}
		exporters = append(exporters, exporter)
	}
	return
}

func tryParseTraceExporterType(value string) (traceExporterType, bool) {
	if te, ok := traceExporterNames[strings.ToLower(strings.TrimSpace(value))]; ok {
		return te, true
	}
	return TraceExporterNone, false
}

func newOtlpTraceExporters(ctx context.Context) ([]sdktrace.SpanExporter, error) {
	// Both exporters are configured through the standard OTEL_EXPORTER_OTLP_*
	// environment variables.
	grpcExporter, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, err
	}
	httpExporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithRetry(otlptracehttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 5 * time.Second,
			MaxInterval:     30 * time.Second,
		}),
	)
	if err != nil {
		return nil, err
	}

	return []sdktrace.SpanExporter{grpcExporter, httpExporter}, nil
}

func newFileExporter(driverName string) (*stdouttrace.Exporter, error) {
	prefix := strings.ToLower(driverNamespace + "." + driverName)
	fileWriter, err := NewRotatingFileWriter(WithLogNamePrefix(prefix))
	if err != nil {
		return nil, err
	}
	return stdouttrace.New(stdouttrace.WithWriter(fileWriter))
}

func newTracerProvider(exporters ...sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	tracerResource, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(driverNamespace),
		),
	)
	if err != nil {
		if !errors.Is(err, resource.ErrSchemaURLConflict) {
			return nil, err
		}
		tracerResource = resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(driverNamespace),
		)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(tracerResource),
	}
	for _, exporter := range exporters {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}
