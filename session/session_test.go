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

package session_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/native"
	"github.com/cassbridge/cassbridge/native/nativetest"
	"github.com/cassbridge/cassbridge/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/sync/errgroup"
)

const (
	insertUser = "INSERT INTO ks.users (id, username, email, age) VALUES (uuid(), 'a', 'a@x', 1)"
	selectUser = "SELECT * FROM ks.users"
)

var userID = [16]byte{0x5b, 0x6e, 0x2c, 0x1a, 0x11, 0x22, 0x43, 0x44, 0x85, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb, 0xcc}

func usersTable() nativetest.Table {
	return nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "id", Type: native.ValueTypeUUID},
			{Name: "username", Type: native.ValueTypeText},
			{Name: "email", Type: native.ValueTypeText},
			{Name: "age", Type: native.ValueTypeInt},
		},
		Rows: [][]nativetest.Cell{{
			nativetest.UUID(userID),
			nativetest.Text("a"),
			nativetest.Text("a@x"),
			nativetest.Int(1),
		}},
	}
}

type SessionTests struct {
	suite.Suite

	ctx  context.Context
	lib  *nativetest.Library
	drv  *session.Driver
	sess *session.Session
}

func (s *SessionTests) SetupTest() {
	s.ctx = context.Background()
	s.lib = nativetest.New()
	s.lib.SetResult(selectUser, usersTable())
	s.drv = session.NewDriver(s.lib, session.WithName("Test"))

	var err error
	s.sess, err = s.drv.NewSession(s.ctx, nil)
	s.Require().NoError(err)
}

func (s *SessionTests) TearDownTest() {
	s.sess.Dispose()
	s.Zero(s.lib.Live(), "leaked handles: %v", s.lib.Outstanding())
	s.Zero(s.lib.BadFrees())
}

func (s *SessionTests) connect() {
	s.Require().NoError(s.sess.Configure("127.0.0.1", 9042))
	ok, err := s.sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
}

func (s *SessionTests) TestUsersScenario() {
	s.Require().NoError(s.sess.Configure("127.0.0.1", 9042))
	clusters := s.lib.Clusters()
	s.Require().Len(clusters, 1)
	points, port, ok := s.lib.Cluster(clusters[0])
	s.Require().True(ok)
	s.Equal("127.0.0.1", points)
	s.Equal(9042, port)

	ok, err := s.sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.True(s.sess.IsConnected())

	out, err := s.sess.Execute(s.ctx, insertUser)
	s.Require().NoError(err)
	s.Equal("[]", out)

	out, err = s.sess.Execute(s.ctx, selectUser)
	s.Require().NoError(err)
	s.JSONEq(`[{"id":"5b6e2c1a-1122-4344-8566-778899aabbcc","username":"a","email":"a@x","age":1}]`, out)

	res, err := s.sess.Query(s.ctx, selectUser)
	s.Require().NoError(err)
	s.Equal([]string{"id", "username", "email", "age"}, res.Columns)
	s.Require().Len(res.Rows, 1)
	s.Equal([]string{"id", "username", "email", "age"}, res.Rows[0].Names())
	username, ok := res.Rows[0].Get("username")
	s.True(ok)
	s.Equal("a", username)
	s.Empty(res.Fallbacks)

	ok, err = s.sess.Close(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.False(s.sess.IsConnected())
	s.Equal(session.StateClosed, s.sess.State())
	s.Zero(s.lib.Live())
}

func (s *SessionTests) TestExecuteNotConnected() {
	s.Require().NoError(s.sess.Configure("127.0.0.1", 9042))
	s.lib.ResetCalls()

	_, err := s.sess.Execute(s.ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusNotConnected), err)
	s.Empty(s.lib.Calls())

	_, err = s.sess.Query(s.ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusNotConnected), err)
	s.Zero(s.lib.CallCount("StatementNew"))
	s.Zero(s.lib.CallCount("SessionExecute"))
}

func (s *SessionTests) TestExecuteEmptyStatement() {
	s.connect()
	s.lib.ResetCalls()
	_, err := s.sess.Execute(s.ctx, "  ")
	s.True(cassbridge.IsStatus(err, cassbridge.StatusInvalidArgument), err)
	s.Empty(s.lib.Calls())
}

func (s *SessionTests) TestExecuteFailure() {
	s.connect()
	s.lib.FailQuery("SELEC x", native.ServerSyntaxError, "line 1:0 no viable alternative at input 'SELEC'")

	_, err := s.sess.Execute(s.ctx, "SELEC x")
	s.Require().Error(err)
	var cerr cassbridge.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(cassbridge.StatusOperationFailed, cerr.Code)
	s.Equal(uint32(native.ServerSyntaxError), cerr.NativeCode)
	s.Contains(cerr.Msg, "[Test]")
	s.Contains(cerr.Msg, "no viable alternative")

	// the session stays usable
	s.True(s.sess.IsConnected())
	out, err := s.sess.Execute(s.ctx, insertUser)
	s.NoError(err)
	s.Equal("[]", out)
	s.Zero(s.lib.Outstanding()[nativetest.KindStatement])
	s.Zero(s.lib.Outstanding()[nativetest.KindFuture])
}

func (s *SessionTests) TestConnectFailure() {
	s.lib.Fail(nativetest.OpConnect, native.LibNoHostsAvailable, "All connections on all I/O threads are busy")
	s.Require().NoError(s.sess.Configure("10.0.0.1", 9042))

	ok, err := s.sess.Connect(s.ctx)
	s.False(ok)
	s.Require().Error(err)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusOperationFailed))
	s.Contains(err.Error(), "All connections on all I/O threads are busy")
	s.Equal(session.StateUnconnected, s.sess.State())
	s.Zero(s.lib.Outstanding()[nativetest.KindSession])
	s.Zero(s.lib.Outstanding()[nativetest.KindFuture])
	s.Equal(1, s.lib.Outstanding()[nativetest.KindCluster])

	s.lib.Succeed(nativetest.OpConnect)
	ok, err = s.sess.Connect(s.ctx)
	s.NoError(err)
	s.True(ok)
}

func (s *SessionTests) TestConnectBeforeConfigure() {
	ok, err := s.sess.Connect(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusInvalidState), err)
	s.Zero(s.lib.Created(nativetest.KindSession))
}

func (s *SessionTests) TestConnectTwice() {
	s.connect()
	ok, err := s.sess.Connect(s.ctx)
	s.NoError(err)
	s.True(ok)
	s.Equal(1, s.lib.Created(nativetest.KindSession))
}

func (s *SessionTests) TestConnectWithKeyspace() {
	s.Require().NoError(s.sess.SetOptions(map[string]string{
		cassbridge.OptionKeyContactPoints: "127.0.0.1",
		cassbridge.OptionKeyKeyspace:      "ks",
	}))
	ok, err := s.sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, s.lib.CallCount("SessionConnectKeyspace"))
	s.Zero(s.lib.CallCount("SessionConnect"))
}

func (s *SessionTests) TestNullSessionHandle() {
	s.Require().NoError(s.sess.Configure("127.0.0.1", 9042))
	s.lib.NullOn("SessionNew")
	ok, err := s.sess.Connect(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusDriverUnavailable), err)
	s.Equal(session.StateUnconnected, s.sess.State())
}

func (s *SessionTests) TestNullStatementHandle() {
	s.connect()
	s.lib.NullOn("StatementNew")
	_, err := s.sess.Execute(s.ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusDriverUnavailable), err)
	s.Zero(s.lib.CallCount("SessionExecute"))
}

func (s *SessionTests) TestCloseNotConnected() {
	s.lib.ResetCalls()
	ok, err := s.sess.Close(s.ctx)
	s.NoError(err)
	s.True(ok)
	s.Empty(s.lib.Calls())

	s.connect()
	ok, err = s.sess.Close(s.ctx)
	s.Require().NoError(err)
	s.True(ok)

	s.lib.ResetCalls()
	ok, err = s.sess.Close(s.ctx)
	s.NoError(err)
	s.True(ok)
	s.Empty(s.lib.Calls())
}

func (s *SessionTests) TestCloseFailureKeepsSession() {
	s.connect()
	s.lib.Fail(nativetest.OpClose, native.LibUnableToClose, "Already closing or closed")

	ok, err := s.sess.Close(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusOperationFailed), err)
	s.True(s.sess.IsConnected())
	s.Equal(1, s.lib.Outstanding()[nativetest.KindSession])

	s.lib.Succeed(nativetest.OpClose)
	ok, err = s.sess.Close(s.ctx)
	s.NoError(err)
	s.True(ok)
}

func (s *SessionTests) TestReconnectAfterClose() {
	s.connect()
	ok, err := s.sess.Close(s.ctx)
	s.Require().True(ok)
	s.Require().NoError(err)

	// the cluster was released along with the session
	ok, err = s.sess.Connect(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusInvalidState), err)

	s.connect()
	s.Equal(2, s.lib.Created(nativetest.KindCluster))
}

func (s *SessionTests) TestDispose() {
	s.connect()
	_, err := s.sess.Execute(s.ctx, selectUser)
	s.Require().NoError(err)

	s.sess.Dispose()
	s.Zero(s.lib.Live())
	s.False(s.sess.IsConnected())
	s.Equal(session.StateClosed, s.sess.State())

	s.lib.ResetCalls()
	s.sess.Dispose()
	s.Empty(s.lib.Calls())

	s.True(cassbridge.IsStatus(s.sess.Configure("127.0.0.1", 9042), cassbridge.StatusInvalidState))
	ok, err := s.sess.Connect(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusInvalidState), err)
	_, err = s.sess.Execute(s.ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusNotConnected), err)
	s.True(cassbridge.IsStatus(s.sess.SetOptions(map[string]string{cassbridge.OptionKeyKeyspace: "ks"}), cassbridge.StatusInvalidState))
}

func (s *SessionTests) TestDisposeUnconfigured() {
	s.lib.ResetCalls()
	s.sess.Dispose()
	s.Empty(s.lib.Calls())
}

func (s *SessionTests) TestHandleAccounting() {
	s.connect()
	for i := 0; i < 10; i++ {
		_, err := s.sess.Execute(s.ctx, selectUser)
		s.Require().NoError(err)
	}
	outstanding := s.lib.Outstanding()
	s.Equal(1, outstanding[nativetest.KindCluster])
	s.Equal(1, outstanding[nativetest.KindSession])
	s.Zero(outstanding[nativetest.KindStatement])
	s.Zero(outstanding[nativetest.KindFuture])
	s.Zero(outstanding[nativetest.KindResult])
	s.Zero(outstanding[nativetest.KindIterator])
	s.Equal(10, s.lib.Released(nativetest.KindStatement))
	s.Equal(11, s.lib.Released(nativetest.KindFuture))
}

func (s *SessionTests) TestWaitTimeout() {
	s.Require().NoError(s.sess.SetOptions(map[string]string{
		cassbridge.OptionKeyWaitTimeout: "20ms",
	}))
	s.connect()

	unblock := s.lib.Block(nativetest.OpExecute)
	_, err := s.sess.Execute(s.ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusTimeout), err)
	s.True(s.sess.IsConnected())

	// the abandoned future is released once the native call resolves
	s.Equal(1, s.lib.Outstanding()[nativetest.KindFuture])
	unblock()
	s.Eventually(func() bool {
		return s.lib.Outstanding()[nativetest.KindFuture] == 0
	}, time.Second, 5*time.Millisecond)
	s.Zero(s.lib.Outstanding()[nativetest.KindResult])
}

func (s *SessionTests) TestContextCancel() {
	s.connect()
	unblock := s.lib.Block(nativetest.OpExecute)
	defer unblock()

	ctx, cancel := context.WithCancel(s.ctx)
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := s.sess.Execute(ctx, selectUser)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusCancelled), err)

	unblock()
	s.Eventually(func() bool {
		return s.lib.Outstanding()[nativetest.KindFuture] == 0
	}, time.Second, 5*time.Millisecond)
}

func (s *SessionTests) TestConcurrentCallers() {
	s.connect()

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			out, err := s.sess.Execute(s.ctx, selectUser)
			if err != nil {
				return err
			}
			if out == "[]" {
				return fmt.Errorf("expected rows")
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(16, s.lib.Released(nativetest.KindStatement))
	s.Zero(s.lib.BadFrees())
}

func (s *SessionTests) TestConcurrentCloseAndExecute() {
	s.connect()

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := s.sess.Execute(s.ctx, selectUser)
			if err != nil && !cassbridge.IsStatus(err, cassbridge.StatusNotConnected) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		_, err := s.sess.Close(s.ctx)
		return err
	})
	s.Require().NoError(g.Wait())
	s.False(s.sess.IsConnected())
	s.Zero(s.lib.BadFrees())
}

func (s *SessionTests) TestQueryResultRecord() {
	s.connect()
	res, err := s.sess.QueryResult(s.ctx, selectUser)
	s.Require().NoError(err)

	rec, err := res.Record(nil)
	s.Require().NoError(err)
	defer rec.Release()
	s.EqualValues(1, rec.NumRows())
	s.EqualValues(4, rec.NumCols())
	s.Equal("age", rec.ColumnName(3))
}

func TestSessions(t *testing.T) {
	suite.Run(t, new(SessionTests))
}

func TestOptions(t *testing.T) {
	lib := nativetest.New()
	drv := session.NewDriver(lib)
	sess, err := drv.NewSession(context.Background(), map[string]string{
		cassbridge.OptionKeyPort:           "9142",
		cassbridge.OptionKeyContactPoints:  "10.0.0.1,10.0.0.2",
		cassbridge.OptionKeyUsername:       "cassandra",
		cassbridge.OptionKeyPassword:       "secret",
		cassbridge.OptionKeyConnectTimeout: "2500",
		cassbridge.OptionKeyRequestTimeout: "12000",
		cassbridge.OptionKeyWaitTimeout:    "30s",
	})
	require.NoError(t, err)
	defer sess.Dispose()

	for key, want := range map[string]string{
		cassbridge.OptionKeyContactPoints:  "10.0.0.1,10.0.0.2",
		cassbridge.OptionKeyPort:           "9142",
		cassbridge.OptionKeyUsername:       "cassandra",
		cassbridge.OptionKeyConnectTimeout: "2500",
		cassbridge.OptionKeyRequestTimeout: "12000",
		cassbridge.OptionKeyKeyspace:       "",
		cassbridge.OptionKeyWaitTimeout:    "30s",
	} {
		got, err := sess.GetOption(key)
		assert.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}

	_, err = sess.GetOption(cassbridge.OptionKeyPassword)
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusNotImplemented))
	_, err = sess.GetOption("cassbridge.unknown")
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusNotImplemented))

	// password and username are applied as they arrive
	assert.Equal(t, 2, lib.CallCount("ClusterSetCredentials"))
	assert.Equal(t, 1, lib.CallCount("ClusterSetConnectTimeout"))
	assert.Equal(t, 1, lib.CallCount("ClusterSetRequestTimeout"))
}

func TestOptionErrors(t *testing.T) {
	lib := nativetest.New()
	drv := session.NewDriver(lib)
	sess, err := drv.NewSession(context.Background(), nil)
	require.NoError(t, err)
	defer sess.Dispose()

	for _, tc := range []struct {
		key, val string
		code     cassbridge.Status
	}{
		{cassbridge.OptionKeyPort, "ninety", cassbridge.StatusInvalidArgument},
		{cassbridge.OptionKeyPort, "0", cassbridge.StatusInvalidArgument},
		{cassbridge.OptionKeyPort, "70000", cassbridge.StatusInvalidArgument},
		{cassbridge.OptionKeyContactPoints, "", cassbridge.StatusInvalidArgument},
		{cassbridge.OptionKeyConnectTimeout, "-1", cassbridge.StatusInvalidArgument},
		{cassbridge.OptionKeyWaitTimeout, "soon", cassbridge.StatusInvalidArgument},
		{"cassbridge.unknown", "x", cassbridge.StatusNotImplemented},
	} {
		err := sess.SetOptions(map[string]string{tc.key: tc.val})
		assert.Truef(t, cassbridge.IsStatus(err, tc.code), "%s=%q: %v", tc.key, tc.val, err)
	}

	err = sess.SetOptions(map[string]string{"cassbridge.unknown": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown session option 'cassbridge.unknown'")
}

func TestNewSessionInvalidOptions(t *testing.T) {
	lib := nativetest.New()
	drv := session.NewDriver(lib)
	_, err := drv.NewSession(context.Background(), map[string]string{
		cassbridge.OptionKeyContactPoints: "127.0.0.1",
		"cassbridge.unknown":              "x",
	})
	require.Error(t, err)
	assert.Zero(t, lib.Live())
}

func TestConfigureValidation(t *testing.T) {
	lib := nativetest.New()
	sess, err := session.NewDriver(lib).NewSession(context.Background(), nil)
	require.NoError(t, err)
	defer sess.Dispose()

	lib.ResetCalls()
	assert.True(t, cassbridge.IsStatus(sess.Configure("", 9042), cassbridge.StatusInvalidArgument))
	assert.True(t, cassbridge.IsStatus(sess.Configure("127.0.0.1", 0), cassbridge.StatusInvalidArgument))
	assert.Empty(t, lib.Calls())

	lib.NullOn("ClusterNew")
	assert.True(t, cassbridge.IsStatus(sess.Configure("127.0.0.1", 9042), cassbridge.StatusDriverUnavailable))
}

func TestDriverInfo(t *testing.T) {
	drv := session.NewDriver(nativetest.New(),
		session.WithName("Fake"),
		session.WithInfo(driverbase.InfoDriverNativeVersion, "2.17.1"))

	name, ok := drv.Info().GetInfoForInfoCode(driverbase.InfoDriverName)
	require.True(t, ok)
	assert.Equal(t, "cassbridge Fake Driver - Go", name)
	nativeVersion, ok := drv.Info().GetInfoForInfoCode(driverbase.InfoDriverNativeVersion)
	require.True(t, ok)
	assert.Equal(t, "2.17.1", nativeVersion)
}

func TestDriverInfoInvalid(t *testing.T) {
	lib := nativetest.New()
	drv := session.NewDriver(lib,
		session.WithName("Fake"),
		session.WithInfo(driverbase.InfoDriverNativeVersion, 2))

	sess, err := drv.NewSession(context.Background(), map[string]string{
		cassbridge.OptionKeyContactPoints: "127.0.0.1",
	})
	assert.Nil(t, sess)
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusInvalidArgument), err)
	assert.Contains(t, err.Error(), "[Fake] WithInfo")
	assert.Empty(t, lib.Calls())
}

// MockedHandler is a mock.Mock that implements the slog.Handler interface.
type MockedHandler struct {
	mock.Mock
}

func (h *MockedHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (h *MockedHandler) WithAttrs(attrs []slog.Attr) slog.Handler           { return h }
func (h *MockedHandler) WithGroup(name string) slog.Handler                 { return h }
func (h *MockedHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := map[string]any{}
	r.Attrs(func(attr slog.Attr) bool {
		fields[attr.Key] = attr.Value.Any()
		return true
	})
	h.Called(ctx, r.Level, r.Message, fields)
	return nil
}

func TestLogging(t *testing.T) {
	var handler MockedHandler
	handler.On("Handle", mock.Anything, slog.LevelDebug, mock.Anything, mock.Anything).Return()
	handler.On("Handle", mock.Anything, slog.LevelWarn, "connect failed", mock.MatchedBy(func(f map[string]any) bool {
		return f["contact_points"] == "127.0.0.1"
	})).Return().Once()

	lib := nativetest.New()
	lib.Fail(nativetest.OpConnect, native.LibNoHostsAvailable, "no hosts")
	sess, err := session.NewDriver(lib).NewSession(context.Background(), nil)
	require.NoError(t, err)
	defer sess.Dispose()
	sess.SetLogger(slog.New(&handler))

	require.NoError(t, sess.Configure("127.0.0.1", 9042))
	ok, err := sess.Connect(context.Background())
	require.False(t, ok)
	require.Error(t, err)

	handler.AssertCalled(t, "Handle", mock.Anything, slog.LevelDebug, "configured cluster", mock.Anything)
	handler.AssertExpectations(t)
}

func TestSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	lib := nativetest.New()
	lib.SetResult(selectUser, usersTable())
	lib.FailQuery("DROP TABLE ks.nope", native.ServerInvalidQuery, "unconfigured table nope")
	drv := session.NewDriver(lib, session.WithTracerProvider(provider))
	sess, err := drv.NewSession(context.Background(), map[string]string{
		cassbridge.OptionKeyContactPoints:        "127.0.0.1",
		cassbridge.OptionKeyTelemetryTraceParent: "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01",
	})
	require.NoError(t, err)
	defer sess.Dispose()

	ok, err := sess.Connect(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	_, err = sess.Execute(context.Background(), selectUser)
	require.NoError(t, err)
	_, err = sess.Execute(context.Background(), "DROP TABLE ks.nope")
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "Connect", spans[0].Name)
	assert.Equal(t, "Execute", spans[1].Name)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[1].SpanContext.TraceID().String())
	assert.Equal(t, codes.Unset, spans[1].Status.Code)
	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.Contains(t, spans[2].Status.Description, "unconfigured table nope")

	var rows int64 = -1
	for _, attr := range spans[1].Attributes {
		if attr.Key == "db.response.returned_rows" {
			rows = attr.Value.AsInt64()
		}
	}
	assert.EqualValues(t, 1, rows)
}
