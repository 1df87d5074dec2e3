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

// Package cassandra implements native.Library in pure Go on top of
// gocql, so that sessions can run without libcassandra.
//
// Handles are plain integers looked up in a registry. Futures are
// resolved by goroutines; a whole result set is read into memory before
// its future completes, and rows and values stay borrowed from the
// iterator that produced them.
package cassandra

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/native"
	"github.com/cassbridge/cassbridge/session"
	"github.com/gocql/gocql"
)

type cluster struct {
	cfg *gocql.ClusterConfig
}

type cassSession struct {
	mu         sync.Mutex
	gs         *gocql.Session
	connecting bool
	// freed is set by SessionFree; a connect completing afterwards
	// closes its session instead of storing it.
	freed bool
}

type statement struct {
	query string
}

type future struct {
	done   chan struct{}
	cancel context.CancelFunc

	// set before done is closed
	code   native.ErrorCode
	msg    string
	result *result
}

type result struct {
	columns []gocql.ColumnInfo
	rows    [][]cell
}

type iterator struct {
	res      *result
	pos      int
	row      []cell
	children []uintptr
}

// Library is a native.Library backed by gocql. Create one with New.
type Library struct {
	mu       sync.Mutex
	next     uintptr
	objects  map[uintptr]any
	borrowed map[uintptr]any

	logger    *slog.Logger
	configure []func(*gocql.ClusterConfig)

	createSession func(*gocql.ClusterConfig) (*gocql.Session, error)
	closeSession  func(*gocql.Session)
}

var _ native.Library = (*Library)(nil)

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger used for connection and query failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) { l.logger = logger }
}

// WithClusterConfig registers fn to adjust every cluster configuration
// just before a session connects with it, for settings the native call
// surface does not cover such as consistency or TLS.
func WithClusterConfig(fn func(*gocql.ClusterConfig)) Option {
	return func(l *Library) { l.configure = append(l.configure, fn) }
}

func New(opts ...Option) *Library {
	l := &Library{
		objects:       make(map[uintptr]any),
		borrowed:      make(map[uintptr]any),
		createSession: (*gocql.ClusterConfig).CreateSession,
		closeSession:  (*gocql.Session).Close,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = driverbase.LoggerOrNil(l.logger)
	return l
}

// NewDriver returns a session driver over a new Library.
func NewDriver(libOpts []Option, opts ...session.Option) *session.Driver {
	opts = append([]session.Option{
		session.WithName("gocql"),
		session.WithInfo(driverbase.InfoDriverNativeVersion, driverbase.ModuleVersion("github.com/gocql/gocql")),
	}, opts...)
	return session.NewDriver(New(libOpts...), opts...)
}

// Live returns the number of owned handles that have not been freed.
func (l *Library) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.objects)
}

// all callers hold l.mu
func (l *Library) alloc(o any) uintptr {
	l.next += 8
	l.objects[l.next] = o
	return l.next
}

func lookup[T any](l *Library, p uintptr) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.objects[p].(T)
	return o, ok
}

func free[T any](l *Library, p uintptr) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.objects[p].(T)
	if ok {
		delete(l.objects, p)
	}
	return o, ok
}

func (l *Library) ClusterNew() native.ClusterPtr {
	cfg := gocql.NewCluster()
	cfg.Port = 9042
	cfg.ConnectTimeout = 5 * time.Second
	cfg.Timeout = 12 * time.Second
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.ClusterPtr(l.alloc(&cluster{cfg: cfg}))
}

func (l *Library) ClusterFree(c native.ClusterPtr) { free[*cluster](l, uintptr(c)) }

func (l *Library) ClusterSetContactPoints(c native.ClusterPtr, contactPoints string) native.ErrorCode {
	cl, ok := lookup[*cluster](l, uintptr(c))
	if !ok {
		return native.LibBadParams
	}
	var hosts []string
	for _, h := range strings.Split(contactPoints, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return native.LibBadParams
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.cfg.Hosts = hosts
	return native.OK
}

func (l *Library) ClusterSetPort(c native.ClusterPtr, port int) native.ErrorCode {
	cl, ok := lookup[*cluster](l, uintptr(c))
	if !ok || port <= 0 || port > 65535 {
		return native.LibBadParams
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cl.cfg.Port = port
	return native.OK
}

func (l *Library) ClusterSetCredentials(c native.ClusterPtr, username, password string) {
	if cl, ok := lookup[*cluster](l, uintptr(c)); ok {
		l.mu.Lock()
		defer l.mu.Unlock()
		cl.cfg.Authenticator = gocql.PasswordAuthenticator{
			Username: username,
			Password: password,
		}
	}
}

func (l *Library) ClusterSetConnectTimeout(c native.ClusterPtr, timeoutMs uint32) {
	if cl, ok := lookup[*cluster](l, uintptr(c)); ok {
		l.mu.Lock()
		defer l.mu.Unlock()
		cl.cfg.ConnectTimeout = time.Duration(timeoutMs) * time.Millisecond
	}
}

func (l *Library) ClusterSetRequestTimeout(c native.ClusterPtr, timeoutMs uint32) {
	if cl, ok := lookup[*cluster](l, uintptr(c)); ok {
		l.mu.Lock()
		defer l.mu.Unlock()
		cl.cfg.Timeout = time.Duration(timeoutMs) * time.Millisecond
	}
}

func (l *Library) SessionNew() native.SessionPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.SessionPtr(l.alloc(&cassSession{}))
}

// SessionFree closes the session if it is still open.
func (l *Library) SessionFree(s native.SessionPtr) {
	sess, ok := free[*cassSession](l, uintptr(s))
	if !ok {
		return
	}
	sess.mu.Lock()
	gs := sess.gs
	sess.gs = nil
	sess.freed = true
	sess.mu.Unlock()
	if gs != nil {
		l.closeSession(gs)
	}
}

// spawn allocates a future and resolves it with fn on a new goroutine.
func (l *Library) spawn(fn func(ctx context.Context, f *future)) native.FuturePtr {
	ctx, cancel := context.WithCancel(context.Background())
	f := &future{done: make(chan struct{}), cancel: cancel}
	l.mu.Lock()
	p := l.alloc(f)
	l.mu.Unlock()
	go func() {
		defer close(f.done)
		fn(ctx, f)
	}()
	return native.FuturePtr(p)
}

func (f *future) fail(code native.ErrorCode, msg string) {
	f.code, f.msg = code, msg
}

func (l *Library) SessionConnect(s native.SessionPtr, c native.ClusterPtr) native.FuturePtr {
	return l.connect(s, c, "")
}

func (l *Library) SessionConnectKeyspace(s native.SessionPtr, c native.ClusterPtr, keyspace string) native.FuturePtr {
	return l.connect(s, c, keyspace)
}

func (l *Library) connect(s native.SessionPtr, c native.ClusterPtr, keyspace string) native.FuturePtr {
	sess, sok := lookup[*cassSession](l, uintptr(s))
	cl, cok := lookup[*cluster](l, uintptr(c))

	// the session connects with a snapshot of the cluster configuration
	var cfg gocql.ClusterConfig
	if cok {
		l.mu.Lock()
		cfg = *cl.cfg
		cfg.Hosts = slices.Clone(cl.cfg.Hosts)
		l.mu.Unlock()
		cfg.Keyspace = keyspace
		for _, fn := range l.configure {
			fn(&cfg)
		}
	}

	return l.spawn(func(ctx context.Context, f *future) {
		switch {
		case !sok || !cok:
			f.fail(native.LibBadParams, "Invalid session or cluster")
			return
		case len(cfg.Hosts) == 0:
			f.fail(native.LibNoHostsAvailable, "No hosts provided or no hosts resolved")
			return
		}

		sess.mu.Lock()
		if sess.freed {
			sess.mu.Unlock()
			f.fail(native.LibBadParams, "Invalid session")
			return
		}
		if sess.gs != nil || sess.connecting {
			sess.mu.Unlock()
			f.fail(native.LibUnableToConnect, "Already connecting, connected or closed")
			return
		}
		sess.connecting = true
		sess.mu.Unlock()

		gs, err := l.createSession(&cfg)

		sess.mu.Lock()
		sess.connecting = false
		orphaned := err == nil && sess.freed
		if err == nil && !orphaned {
			sess.gs = gs
		}
		sess.mu.Unlock()

		if orphaned {
			l.closeSession(gs)
			f.fail(native.LibUnableToConnect, "Session was freed while connecting")
			return
		}
		if err != nil {
			code := errorCode(err, native.LibNoHostsAvailable)
			l.logger.Debug("gocql connect failed", "hosts", cfg.Hosts, "port", cfg.Port, "error", err)
			f.fail(code, err.Error())
		}
	})
}

func (l *Library) SessionExecute(s native.SessionPtr, st native.StatementPtr) native.FuturePtr {
	sess, sok := lookup[*cassSession](l, uintptr(s))
	stmt, tok := lookup[*statement](l, uintptr(st))
	var query string
	if tok {
		query = stmt.query
	}

	return l.spawn(func(ctx context.Context, f *future) {
		if !sok || !tok {
			f.fail(native.LibBadParams, "Invalid session or statement")
			return
		}
		sess.mu.Lock()
		gs := sess.gs
		sess.mu.Unlock()
		if gs == nil {
			f.fail(native.LibNoHostsAvailable, "Session is not connected")
			return
		}

		res, err := readAll(gs.Query(query).WithContext(ctx).Iter())
		if err != nil {
			l.logger.Debug("gocql query failed", "error", err)
			f.fail(errorCode(err, native.LibInternalError), err.Error())
			return
		}
		f.result = res
	})
}

// readAll drains iter, following pages, into a result.
func readAll(iter *gocql.Iter) (*result, error) {
	res := &result{columns: iter.Columns()}

	// tuple columns scan into one destination per element
	width := 0
	for _, col := range res.columns {
		if tuple, ok := col.TypeInfo.(gocql.TupleTypeInfo); ok {
			width += len(tuple.Elems)
		} else {
			width++
		}
	}

	for {
		flat := make([]cell, width)
		dest := make([]any, width)
		for i := range flat {
			dest[i] = &flat[i]
		}
		if !iter.Scan(dest...) {
			break
		}
		res.rows = append(res.rows, groupTuples(res.columns, flat))
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return res, nil
}

func groupTuples(columns []gocql.ColumnInfo, flat []cell) []cell {
	if len(flat) == len(columns) {
		return flat
	}
	row := make([]cell, len(columns))
	i := 0
	for c, col := range columns {
		tuple, ok := col.TypeInfo.(gocql.TupleTypeInfo)
		if !ok {
			row[c] = flat[i]
			i++
			continue
		}
		elems := flat[i : i+len(tuple.Elems)]
		i += len(tuple.Elems)
		row[c] = tupleCell(col.TypeInfo, elems)
	}
	return row
}

func (l *Library) SessionClose(s native.SessionPtr) native.FuturePtr {
	sess, ok := lookup[*cassSession](l, uintptr(s))
	return l.spawn(func(ctx context.Context, f *future) {
		if !ok {
			f.fail(native.LibBadParams, "Invalid session")
			return
		}
		sess.mu.Lock()
		gs := sess.gs
		sess.gs = nil
		sess.mu.Unlock()
		if gs == nil {
			f.fail(native.LibUnableToClose, "Already closing or closed")
			return
		}
		l.closeSession(gs)
	})
}

func (l *Library) StatementNew(query string, paramCount int) native.StatementPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.StatementPtr(l.alloc(&statement{query: query}))
}

func (l *Library) StatementFree(st native.StatementPtr) { free[*statement](l, uintptr(st)) }

func (l *Library) FutureWait(f native.FuturePtr) {
	if fut, ok := lookup[*future](l, uintptr(f)); ok {
		<-fut.done
	}
}

func (l *Library) FutureReady(f native.FuturePtr) bool {
	fut, ok := lookup[*future](l, uintptr(f))
	if !ok {
		return false
	}
	select {
	case <-fut.done:
		return true
	default:
		return false
	}
}

// resolved waits for f and returns it.
func (l *Library) resolved(f native.FuturePtr) (*future, bool) {
	fut, ok := lookup[*future](l, uintptr(f))
	if ok {
		<-fut.done
	}
	return fut, ok
}

func (l *Library) FutureErrorCode(f native.FuturePtr) native.ErrorCode {
	fut, ok := l.resolved(f)
	if !ok {
		return native.LibBadParams
	}
	return fut.code
}

func (l *Library) FutureErrorMessage(f native.FuturePtr) string {
	fut, ok := l.resolved(f)
	if !ok {
		return ""
	}
	return fut.msg
}

func (l *Library) FutureGetResult(f native.FuturePtr) native.ResultPtr {
	fut, ok := l.resolved(f)
	if !ok || fut.result == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.ResultPtr(l.alloc(fut.result))
}

// FutureFree cancels a request that is still running.
func (l *Library) FutureFree(f native.FuturePtr) {
	if fut, ok := free[*future](l, uintptr(f)); ok {
		fut.cancel()
	}
}

func (l *Library) ResultColumnCount(r native.ResultPtr) int {
	res, ok := lookup[*result](l, uintptr(r))
	if !ok {
		return 0
	}
	return len(res.columns)
}

func (l *Library) ResultColumnName(r native.ResultPtr, index int) (string, native.ErrorCode) {
	res, ok := lookup[*result](l, uintptr(r))
	if !ok {
		return "", native.LibBadParams
	}
	if index < 0 || index >= len(res.columns) {
		return "", native.LibIndexOutOfBounds
	}
	return res.columns[index].Name, native.OK
}

func (l *Library) ResultColumnType(r native.ResultPtr, index int) native.ValueType {
	res, ok := lookup[*result](l, uintptr(r))
	if !ok || index < 0 || index >= len(res.columns) {
		return native.ValueTypeUnknown
	}
	return valueType(res.columns[index].TypeInfo)
}

func (l *Library) ResultFree(r native.ResultPtr) { free[*result](l, uintptr(r)) }

func (l *Library) IteratorFromResult(r native.ResultPtr) native.IteratorPtr {
	res, ok := lookup[*result](l, uintptr(r))
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.IteratorPtr(l.alloc(&iterator{res: res, pos: -1}))
}

// all callers hold l.mu
func (l *Library) dropChildren(it *iterator) {
	for _, p := range it.children {
		delete(l.borrowed, p)
	}
	it.children = it.children[:0]
}

// all callers hold l.mu
func (l *Library) borrow(it *iterator, o any) uintptr {
	l.next += 8
	l.borrowed[l.next] = o
	it.children = append(it.children, l.next)
	return l.next
}

func (l *Library) IteratorNext(i native.IteratorPtr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.objects[uintptr(i)].(*iterator)
	if !ok {
		return false
	}
	l.dropChildren(it)
	it.row = nil
	if it.pos+1 >= len(it.res.rows) {
		it.pos = len(it.res.rows)
		return false
	}
	it.pos++
	it.row = it.res.rows[it.pos]
	return true
}

func (l *Library) IteratorGetRow(i native.IteratorPtr) native.RowPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	it, ok := l.objects[uintptr(i)].(*iterator)
	if !ok || it.row == nil {
		return 0
	}
	return native.RowPtr(l.borrow(it, &borrowedRow{it: it, cells: it.row}))
}

func (l *Library) IteratorFree(i native.IteratorPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if it, ok := l.objects[uintptr(i)].(*iterator); ok {
		l.dropChildren(it)
		delete(l.objects, uintptr(i))
	}
}

type borrowedRow struct {
	it    *iterator
	cells []cell
}

func (l *Library) RowGetColumn(r native.RowPtr, index int) native.ValuePtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	row, ok := l.borrowed[uintptr(r)].(*borrowedRow)
	if !ok || index < 0 || index >= len(row.cells) {
		return 0
	}
	return native.ValuePtr(l.borrow(row.it, &row.cells[index]))
}

func (l *Library) value(v native.ValuePtr) *cell {
	l.mu.Lock()
	defer l.mu.Unlock()
	c, _ := l.borrowed[uintptr(v)].(*cell)
	return c
}

func (l *Library) ValueIsNull(v native.ValuePtr) bool {
	c := l.value(v)
	return c == nil || c.isNull()
}

func (l *Library) ValueType(v native.ValuePtr) native.ValueType {
	c := l.value(v)
	if c == nil {
		return native.ValueTypeUnknown
	}
	return valueType(c.info)
}

func (l *Library) ValueGetString(v native.ValuePtr) (string, native.ErrorCode) {
	return l.value(v).text()
}

func (l *Library) ValueGetInt32(v native.ValuePtr) (int32, native.ErrorCode) {
	var out int32
	code := l.value(v).decode(&out, gocql.TypeInt)
	return out, code
}

func (l *Library) ValueGetInt64(v native.ValuePtr) (int64, native.ErrorCode) {
	var out int64
	code := l.value(v).decode(&out, gocql.TypeBigInt, gocql.TypeCounter, gocql.TypeTimestamp, gocql.TypeTime)
	return out, code
}

func (l *Library) ValueGetFloat(v native.ValuePtr) (float32, native.ErrorCode) {
	var out float32
	code := l.value(v).decode(&out, gocql.TypeFloat)
	return out, code
}

func (l *Library) ValueGetDouble(v native.ValuePtr) (float64, native.ErrorCode) {
	var out float64
	code := l.value(v).decode(&out, gocql.TypeDouble)
	return out, code
}

func (l *Library) ValueGetBool(v native.ValuePtr) (bool, native.ErrorCode) {
	var out bool
	code := l.value(v).decode(&out, gocql.TypeBoolean)
	return out, code
}

func (l *Library) ValueGetBytes(v native.ValuePtr) ([]byte, native.ErrorCode) {
	return l.value(v).bytes()
}
