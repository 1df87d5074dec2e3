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

package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/completion"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/internal/handles"
	"github.com/cassbridge/cassbridge/internal/materialize"
	"github.com/cassbridge/cassbridge/native"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "invalid"
}

// Session is a cassbridge.Session over a native.Library.
//
// Configure, SetOptions, Connect, Execute, Query, Close and Dispose hold
// the session lock for their whole duration, including the native wait.
// IsConnected and State never block.
type Session struct {
	mu sync.Mutex

	lib         native.Library
	errorHelper driverbase.ErrorHelper
	tracing     *driverbase.Tracing
	logger      *slog.Logger

	cluster *handles.Cluster
	session *handles.Session

	state    atomic.Int32
	disposed bool

	cfg config
}

var (
	_ cassbridge.Session        = (*Session)(nil)
	_ cassbridge.SessionLogging = (*Session)(nil)
	_ cassbridge.OptionGetter   = (*Session)(nil)
	_ cassbridge.OTelTracing    = (*Session)(nil)
)

func newSession(d *Driver) *Session {
	s := &Session{
		lib:         d.lib,
		errorHelper: driverbase.ErrorHelper{DriverName: d.info.GetName()},
		tracing:     driverbase.NewTracing(d.info),
		logger:      d.logger,
		cfg:         config{port: cassbridge.DefaultPort},
	}
	s.setState(StateUnconnected)
	return s
}

func (s *Session) setState(st State) { s.state.Store(int32(st)) }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) IsConnected() bool { return s.State() == StateConnected }

func (s *Session) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = driverbase.LoggerOrNil(logger)
}

func (s *Session) SetTraceParent(traceParent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracing.SetTraceParent(traceParent)
}

func (s *Session) GetTraceParent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracing.GetTraceParent()
}

func (s *Session) StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return s.tracing.StartSpan(ctx, spanName, opts...)
}

func (s *Session) GetInitialSpanAttributes() []attribute.KeyValue {
	return s.tracing.GetInitialSpanAttributes()
}

func (s *Session) Configure(contactPoints string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.configure(contactPoints, port)
}

// configure requires s.mu.
func (s *Session) configure(contactPoints string, port int) error {
	if s.disposed {
		return s.errorHelper.Errorf(cassbridge.StatusInvalidState, "Configure: session is disposed")
	}
	contactPoints = strings.TrimSpace(contactPoints)
	if contactPoints == "" {
		return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "Configure: contact points must not be empty")
	}
	if port < 1 || port > 65535 {
		return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "Configure: port %d out of range", port)
	}
	if err := s.ensureCluster(); err != nil {
		return err
	}
	if code := s.lib.ClusterSetContactPoints(s.cluster.Ptr(), contactPoints); code != native.OK {
		return s.errorHelper.NativeErrorf(cassbridge.StatusInvalidArgument, code, "", "Configure: contact points %q", contactPoints)
	}
	if code := s.lib.ClusterSetPort(s.cluster.Ptr(), port); code != native.OK {
		return s.errorHelper.NativeErrorf(cassbridge.StatusInvalidArgument, code, "", "Configure: port %d", port)
	}
	s.cfg.contactPoints, s.cfg.port = contactPoints, port
	s.logger.Debug("configured cluster", "contact_points", contactPoints, "port", port)
	return nil
}

// ensureCluster creates the cluster configuration on first use and
// applies the stored credentials and timeouts to it.
func (s *Session) ensureCluster() error {
	if s.cluster != nil {
		return nil
	}
	cluster, err := handles.NewCluster(s.lib)
	if err != nil {
		return s.wrapErr("Configure", err)
	}
	s.cluster = cluster
	s.applyClusterSettings()
	return nil
}

func (s *Session) applyClusterSettings() {
	if s.cluster == nil {
		return
	}
	if s.cfg.username != "" || s.cfg.password != "" {
		s.lib.ClusterSetCredentials(s.cluster.Ptr(), s.cfg.username, s.cfg.password)
	}
	if s.cfg.connectTimeout > 0 {
		s.lib.ClusterSetConnectTimeout(s.cluster.Ptr(), s.cfg.connectTimeout)
	}
	if s.cfg.requestTimeout > 0 {
		s.lib.ClusterSetRequestTimeout(s.cluster.Ptr(), s.cfg.requestTimeout)
	}
}

// wrapErr prefixes an error from a lower layer with op, keeping its
// status.
func (s *Session) wrapErr(op string, err error) error {
	var cerr cassbridge.Error
	if errors.As(err, &cerr) {
		return s.errorHelper.Errorf(cerr.Code, "%s: %s", op, cerr.Msg)
	}
	return s.errorHelper.Errorf(cassbridge.StatusUnknown, "%s: %s", op, err)
}

// waitContext bounds ctx by the wait timeout option.
func (s *Session) waitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.waitTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.waitTimeout)
	}
	return ctx, func() {}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Session) Connect(ctx context.Context) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return false, s.errorHelper.Errorf(cassbridge.StatusInvalidState, "Connect: session is disposed")
	}
	if s.State() == StateConnected {
		return true, nil
	}
	if s.cluster == nil {
		return false, s.errorHelper.Errorf(cassbridge.StatusInvalidState, "Connect: cluster is not configured")
	}

	ctx, span := s.tracing.StartSpan(ctx, "Connect", trace.WithAttributes(
		attribute.String("db.system", "cassandra"),
		attribute.String("server.address", s.cfg.contactPoints),
		attribute.Int("server.port", s.cfg.port),
	))
	defer func() { endSpan(span, err) }()

	sess, err := handles.NewSession(s.lib)
	if err != nil {
		return false, s.wrapErr("Connect", err)
	}

	var ptr native.FuturePtr
	if s.cfg.keyspace != "" {
		ptr = s.lib.SessionConnectKeyspace(sess.Ptr(), s.cluster.Ptr(), s.cfg.keyspace)
	} else {
		ptr = s.lib.SessionConnect(sess.Ptr(), s.cluster.Ptr())
	}
	fut, err := handles.WrapFuture(s.lib, ptr)
	if err != nil {
		sess.Release()
		return false, s.wrapErr("Connect", err)
	}

	waitCtx, cancel := s.waitContext(ctx)
	defer cancel()
	out := completion.Await(waitCtx, fut, nil)
	if !out.OK() {
		sess.Release()
		s.setState(StateUnconnected)
		err = out.Err(s.errorHelper, "Connect")
		s.logger.Warn("connect failed", "contact_points", s.cfg.contactPoints, "error", err)
		return false, err
	}

	s.session = sess
	s.setState(StateConnected)
	s.logger.Debug("connected", "contact_points", s.cfg.contactPoints, "port", s.cfg.port, "keyspace", s.cfg.keyspace)
	return true, nil
}

func (s *Session) Execute(ctx context.Context, cql string) (string, error) {
	res, err := s.Query(ctx, cql)
	if err != nil {
		return "", err
	}
	return res.Rows.JSON()
}

func (s *Session) Query(ctx context.Context, cql string) (*cassbridge.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.query(ctx, cql)
	if err != nil {
		return nil, err
	}
	return res.Public(), nil
}

// QueryResult is Query returning the column types along with the rows,
// for callers that export results to Arrow.
func (s *Session) QueryResult(ctx context.Context, cql string) (*materialize.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query(ctx, cql)
}

func (s *Session) query(ctx context.Context, cql string) (_ *materialize.Result, err error) {
	if s.State() != StateConnected {
		return nil, s.errorHelper.Errorf(cassbridge.StatusNotConnected, "Execute: session is not connected")
	}
	if strings.TrimSpace(cql) == "" {
		return nil, s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "Execute: statement is empty")
	}

	ctx, span := s.tracing.StartSpan(ctx, "Execute", trace.WithAttributes(
		attribute.String("db.system", "cassandra"),
		attribute.String("db.query.text", cql),
	))
	defer func() { endSpan(span, err) }()

	stmt, err := handles.NewStatement(s.lib, cql)
	if err != nil {
		return nil, s.wrapErr("Execute", err)
	}
	defer stmt.Release()

	fut, err := handles.WrapFuture(s.lib, s.lib.SessionExecute(s.session.Ptr(), stmt.Ptr()))
	if err != nil {
		return nil, s.wrapErr("Execute", err)
	}

	var (
		res     *handles.Result
		takeErr error
	)
	waitCtx, cancel := s.waitContext(ctx)
	defer cancel()
	out := completion.Await(waitCtx, fut, func(f *handles.Future) {
		res, takeErr = handles.WrapResult(s.lib, s.lib.FutureGetResult(f.Ptr()))
	})
	if !out.OK() {
		err = out.Err(s.errorHelper, "Execute")
		s.logger.Warn("execute failed", "error", err)
		return nil, err
	}
	if takeErr != nil {
		return nil, s.wrapErr("Execute", takeErr)
	}

	decoded, err := materialize.Materializer{Lib: s.lib, Logger: s.logger}.Materialize(ctx, res)
	if err != nil {
		return nil, s.wrapErr("Execute", err)
	}
	span.SetAttributes(attribute.Int("db.response.returned_rows", len(decoded.Rows)))
	return decoded, nil
}

func (s *Session) Close(ctx context.Context) (ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateConnected {
		return true, nil
	}

	ctx, span := s.tracing.StartSpan(ctx, "Close")
	defer func() { endSpan(span, err) }()

	fut, err := handles.WrapFuture(s.lib, s.lib.SessionClose(s.session.Ptr()))
	if err != nil {
		return false, s.wrapErr("Close", err)
	}
	waitCtx, cancel := s.waitContext(ctx)
	defer cancel()
	if out := completion.Await(waitCtx, fut, nil); !out.OK() {
		err = out.Err(s.errorHelper, "Close")
		s.logger.Warn("close failed", "error", err)
		return false, err
	}

	s.releaseHandles()
	s.setState(StateClosed)
	s.logger.Debug("closed")
	return true, nil
}

// releaseHandles frees the session before the cluster it was connected
// with.
func (s *Session) releaseHandles() {
	s.session.Release()
	s.session = nil
	s.cluster.Release()
	s.cluster = nil
}

// Dispose releases every native handle still held, in any state. The
// session cannot be configured or connected again afterwards.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.releaseHandles()
	s.disposed = true
	s.setState(StateClosed)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.tracing.Shutdown(ctx); err != nil {
		s.logger.Warn("tracer shutdown failed", "error", err)
	}
	s.logger.Debug("disposed")
}
