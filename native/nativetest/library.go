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

// Package nativetest provides a scriptable, in-memory native.Library
// that keeps an account of every handle it hands out. It is meant for
// tests that need to prove handles are released exactly once.
package nativetest

import (
	"encoding/binary"
	"math"
	"slices"
	"sync"

	"github.com/cassbridge/cassbridge/native"
)

// Kind names an owned native entity.
type Kind string

const (
	KindCluster   Kind = "cluster"
	KindSession   Kind = "session"
	KindStatement Kind = "statement"
	KindFuture    Kind = "future"
	KindResult    Kind = "result"
	KindIterator  Kind = "iterator"
)

// Operation names used with Fail, Block and NotReady.
const (
	OpConnect = "connect"
	OpExecute = "execute"
	OpClose   = "close"
)

type object struct {
	kind Kind

	// cluster
	contactPoints  string
	port           int
	username       string
	password       string
	connectTimeout uint32
	requestTimeout uint32

	// session
	connected bool
	keyspace  string

	// statement
	query string

	// future
	op       string
	done     chan struct{}
	failure  *Failure
	notReady bool
	table    *Table

	// iterator
	pos      int
	children []uintptr
}

type borrowed struct {
	row  bool
	cell *Cell
}

// Library is an in-memory native.Library. The zero value is not usable;
// create one with New.
type Library struct {
	mu   sync.Mutex
	next uintptr

	live     map[uintptr]*object
	borrowed map[uintptr]borrowed
	owners   map[uintptr]uintptr // row -> iterator
	created  map[Kind]int
	released map[Kind]int
	badFrees int
	calls    []string

	tables       map[string]Table
	failures     map[string]Failure
	execFailures map[string]Failure
	nullCreate   map[string]bool
	gates        map[string]chan struct{}
	notReady     map[string]bool
}

var _ native.Library = (*Library)(nil)

func New() *Library {
	return &Library{
		next:         0x1000,
		live:         make(map[uintptr]*object),
		borrowed:     make(map[uintptr]borrowed),
		owners:       make(map[uintptr]uintptr),
		created:      make(map[Kind]int),
		released:     make(map[Kind]int),
		tables:       make(map[string]Table),
		failures:     make(map[string]Failure),
		execFailures: make(map[string]Failure),
		nullCreate:   make(map[string]bool),
		gates:        make(map[string]chan struct{}),
		notReady:     make(map[string]bool),
	}
}

// SetResult registers the table returned when query is executed.
// Queries without a registered table return no columns and no rows.
func (l *Library) SetResult(query string, t Table) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables[query] = t
}

// Fail makes every future of op complete with the given failure.
func (l *Library) Fail(op string, code native.ErrorCode, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = Failure{Code: code, Message: msg}
}

// FailQuery makes executing query fail.
func (l *Library) FailQuery(query string, code native.ErrorCode, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.execFailures[query] = Failure{Code: code, Message: msg}
}

// Succeed clears failures registered with Fail for op.
func (l *Library) Succeed(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, op)
}

// NullOn makes the named creation call (for instance "ClusterNew" or
// "FutureGetResult") return the null pointer.
func (l *Library) NullOn(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nullCreate[call] = true
}

// NotReady makes futures of op report not ready once waited on.
func (l *Library) NotReady(op string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notReady[op] = true
}

// Block holds futures of op created from now on until the returned
// function is called.
func (l *Library) Block(op string) (unblock func()) {
	gate := make(chan struct{})
	l.mu.Lock()
	l.gates[op] = gate
	l.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.gates[op] == gate {
				delete(l.gates, op)
			}
			l.mu.Unlock()
			close(gate)
		})
	}
}

// Outstanding returns the number of live handles per kind.
func (l *Library) Outstanding() map[Kind]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Kind]int)
	for _, o := range l.live {
		out[o.kind]++
	}
	return out
}

// Live returns the total number of live handles.
func (l *Library) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

func (l *Library) Created(k Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.created[k]
}

func (l *Library) Released(k Kind) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released[k]
}

// BadFrees counts frees of null, unknown or already freed handles.
func (l *Library) BadFrees() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.badFrees
}

// Calls returns the names of every call made so far, in order.
func (l *Library) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// CallCount returns how many times the named call was made.
func (l *Library) CallCount(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (l *Library) ResetCalls() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = nil
}

// Clusters returns the live cluster handles in creation order.
func (l *Library) Clusters() []native.ClusterPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []native.ClusterPtr
	for p, o := range l.live {
		if o.kind == KindCluster {
			out = append(out, native.ClusterPtr(p))
		}
	}
	slices.Sort(out)
	return out
}

// Cluster returns the settings of a live cluster handle.
func (l *Library) Cluster(c native.ClusterPtr) (contactPoints string, port int, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.get(uintptr(c), KindCluster)
	if !ok {
		return "", 0, false
	}
	return o.contactPoints, o.port, true
}

// all callers hold l.mu
func (l *Library) record(name string) { l.calls = append(l.calls, name) }

func (l *Library) alloc(call string, o *object) uintptr {
	l.record(call)
	if l.nullCreate[call] {
		return 0
	}
	l.next += 0x10
	l.live[l.next] = o
	l.created[o.kind]++
	return l.next
}

func (l *Library) free(call string, p uintptr, kind Kind) *object {
	l.record(call)
	o, ok := l.get(p, kind)
	if !ok {
		l.badFrees++
		return nil
	}
	delete(l.live, p)
	l.released[kind]++
	return o
}

func (l *Library) get(p uintptr, kind Kind) (*object, bool) {
	o, ok := l.live[p]
	if !ok || o.kind != kind {
		return nil, false
	}
	return o, true
}

func (l *Library) ClusterNew() native.ClusterPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.ClusterPtr(l.alloc("ClusterNew", &object{kind: KindCluster, port: 9042}))
}

func (l *Library) ClusterFree(c native.ClusterPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.free("ClusterFree", uintptr(c), KindCluster)
}

func (l *Library) ClusterSetContactPoints(c native.ClusterPtr, contactPoints string) native.ErrorCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ClusterSetContactPoints")
	o, ok := l.get(uintptr(c), KindCluster)
	if !ok {
		return native.LibBadParams
	}
	o.contactPoints = contactPoints
	return native.OK
}

func (l *Library) ClusterSetPort(c native.ClusterPtr, port int) native.ErrorCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ClusterSetPort")
	o, ok := l.get(uintptr(c), KindCluster)
	if !ok || port <= 0 || port > math.MaxUint16 {
		return native.LibBadParams
	}
	o.port = port
	return native.OK
}

func (l *Library) ClusterSetCredentials(c native.ClusterPtr, username, password string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ClusterSetCredentials")
	if o, ok := l.get(uintptr(c), KindCluster); ok {
		o.username, o.password = username, password
	}
}

func (l *Library) ClusterSetConnectTimeout(c native.ClusterPtr, timeoutMs uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ClusterSetConnectTimeout")
	if o, ok := l.get(uintptr(c), KindCluster); ok {
		o.connectTimeout = timeoutMs
	}
}

func (l *Library) ClusterSetRequestTimeout(c native.ClusterPtr, timeoutMs uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ClusterSetRequestTimeout")
	if o, ok := l.get(uintptr(c), KindCluster); ok {
		o.requestTimeout = timeoutMs
	}
}

func (l *Library) SessionNew() native.SessionPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.SessionPtr(l.alloc("SessionNew", &object{kind: KindSession}))
}

func (l *Library) SessionFree(s native.SessionPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.free("SessionFree", uintptr(s), KindSession)
}

func (l *Library) newFuture(call, op string) *object {
	f := &object{kind: KindFuture, op: op, notReady: l.notReady[op]}
	if fail, ok := l.failures[op]; ok {
		f.failure = &fail
	}
	if gate, ok := l.gates[op]; ok {
		f.done = gate
	} else {
		f.done = make(chan struct{})
		close(f.done)
	}
	return f
}

func (l *Library) SessionConnect(s native.SessionPtr, c native.ClusterPtr) native.FuturePtr {
	return l.connect("SessionConnect", s, c, "")
}

func (l *Library) SessionConnectKeyspace(s native.SessionPtr, c native.ClusterPtr, keyspace string) native.FuturePtr {
	return l.connect("SessionConnectKeyspace", s, c, keyspace)
}

func (l *Library) connect(call string, s native.SessionPtr, c native.ClusterPtr, keyspace string) native.FuturePtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.newFuture(call, OpConnect)
	sess, sok := l.get(uintptr(s), KindSession)
	cl, cok := l.get(uintptr(c), KindCluster)
	switch {
	case !sok || !cok:
		f.failure = &Failure{Code: native.LibBadParams, Message: "invalid session or cluster"}
	case cl.contactPoints == "":
		f.failure = &Failure{Code: native.LibNoHostsAvailable, Message: "No hosts provided or no hosts resolved"}
	case f.failure == nil:
		sess.connected = true
		sess.keyspace = keyspace
	}
	return native.FuturePtr(l.alloc(call, f))
}

func (l *Library) SessionExecute(s native.SessionPtr, st native.StatementPtr) native.FuturePtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.newFuture("SessionExecute", OpExecute)
	sess, sok := l.get(uintptr(s), KindSession)
	stmt, tok := l.get(uintptr(st), KindStatement)
	switch {
	case !sok || !tok:
		f.failure = &Failure{Code: native.LibBadParams, Message: "invalid session or statement"}
	case !sess.connected:
		f.failure = &Failure{Code: native.LibNoHostsAvailable, Message: "Session is not connected"}
	case f.failure == nil:
		if fail, ok := l.execFailures[stmt.query]; ok {
			f.failure = &fail
			break
		}
		t := l.tables[stmt.query]
		f.table = &t
	}
	return native.FuturePtr(l.alloc("SessionExecute", f))
}

func (l *Library) SessionClose(s native.SessionPtr) native.FuturePtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	f := l.newFuture("SessionClose", OpClose)
	sess, ok := l.get(uintptr(s), KindSession)
	switch {
	case !ok:
		f.failure = &Failure{Code: native.LibBadParams, Message: "invalid session"}
	case !sess.connected:
		f.failure = &Failure{Code: native.LibUnableToClose, Message: "Already closing or closed"}
	case f.failure == nil:
		sess.connected = false
	}
	return native.FuturePtr(l.alloc("SessionClose", f))
}

func (l *Library) StatementNew(query string, paramCount int) native.StatementPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return native.StatementPtr(l.alloc("StatementNew", &object{kind: KindStatement, query: query}))
}

func (l *Library) StatementFree(st native.StatementPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.free("StatementFree", uintptr(st), KindStatement)
}

func (l *Library) FutureWait(f native.FuturePtr) {
	l.mu.Lock()
	l.record("FutureWait")
	o, ok := l.get(uintptr(f), KindFuture)
	l.mu.Unlock()
	if ok {
		<-o.done
	}
}

func (l *Library) FutureReady(f native.FuturePtr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("FutureReady")
	o, ok := l.get(uintptr(f), KindFuture)
	if !ok || o.notReady {
		return false
	}
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (l *Library) FutureErrorCode(f native.FuturePtr) native.ErrorCode {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("FutureErrorCode")
	o, ok := l.get(uintptr(f), KindFuture)
	if !ok {
		return native.LibBadParams
	}
	if o.failure != nil {
		return o.failure.Code
	}
	return native.OK
}

func (l *Library) FutureErrorMessage(f native.FuturePtr) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("FutureErrorMessage")
	o, ok := l.get(uintptr(f), KindFuture)
	if !ok || o.failure == nil {
		return ""
	}
	return o.failure.Message
}

func (l *Library) FutureGetResult(f native.FuturePtr) native.ResultPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.get(uintptr(f), KindFuture)
	if !ok || o.table == nil {
		l.record("FutureGetResult")
		return 0
	}
	return native.ResultPtr(l.alloc("FutureGetResult", &object{kind: KindResult, table: o.table}))
}

func (l *Library) FutureFree(f native.FuturePtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.free("FutureFree", uintptr(f), KindFuture)
}

func (l *Library) ResultColumnCount(r native.ResultPtr) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ResultColumnCount")
	o, ok := l.get(uintptr(r), KindResult)
	if !ok {
		return 0
	}
	return len(o.table.Columns)
}

func (l *Library) column(r native.ResultPtr, index int) (*Column, bool) {
	o, ok := l.get(uintptr(r), KindResult)
	if !ok || index < 0 || index >= len(o.table.Columns) {
		return nil, false
	}
	return &o.table.Columns[index], true
}

func (l *Library) ResultColumnName(r native.ResultPtr, index int) (string, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ResultColumnName")
	col, ok := l.column(r, index)
	if !ok {
		return "", native.LibIndexOutOfBounds
	}
	if col.NameErr != native.OK {
		return "", col.NameErr
	}
	return col.Name, native.OK
}

func (l *Library) ResultColumnType(r native.ResultPtr, index int) native.ValueType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ResultColumnType")
	col, ok := l.column(r, index)
	if !ok {
		return native.ValueTypeUnknown
	}
	return col.Type
}

func (l *Library) ResultFree(r native.ResultPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.free("ResultFree", uintptr(r), KindResult)
}

func (l *Library) IteratorFromResult(r native.ResultPtr) native.IteratorPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.get(uintptr(r), KindResult)
	if !ok {
		l.record("IteratorFromResult")
		return 0
	}
	return native.IteratorPtr(l.alloc("IteratorFromResult", &object{kind: KindIterator, table: o.table, pos: -1}))
}

func (l *Library) dropChildren(it *object) {
	for _, c := range it.children {
		delete(l.borrowed, c)
		delete(l.owners, c)
	}
	it.children = nil
}

func (l *Library) IteratorNext(i native.IteratorPtr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("IteratorNext")
	o, ok := l.get(uintptr(i), KindIterator)
	if !ok {
		return false
	}
	l.dropChildren(o)
	if o.pos+1 >= len(o.table.Rows) {
		o.pos = len(o.table.Rows)
		return false
	}
	o.pos++
	return true
}

func (l *Library) borrow(it *object, b borrowed) uintptr {
	l.next += 0x10
	l.borrowed[l.next] = b
	it.children = append(it.children, l.next)
	return l.next
}

func (l *Library) IteratorGetRow(i native.IteratorPtr) native.RowPtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("IteratorGetRow")
	o, ok := l.get(uintptr(i), KindIterator)
	if !ok || o.pos < 0 || o.pos >= len(o.table.Rows) {
		return 0
	}
	row := l.borrow(o, borrowed{row: true})
	l.owners[row] = uintptr(i)
	return native.RowPtr(row)
}

func (l *Library) IteratorFree(i native.IteratorPtr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if o := l.free("IteratorFree", uintptr(i), KindIterator); o != nil {
		l.dropChildren(o)
	}
}

func (l *Library) RowGetColumn(r native.RowPtr, index int) native.ValuePtr {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("RowGetColumn")
	if b, ok := l.borrowed[uintptr(r)]; !ok || !b.row {
		return 0
	}
	it, ok := l.get(l.owners[uintptr(r)], KindIterator)
	if !ok || it.pos < 0 || it.pos >= len(it.table.Rows) {
		return 0
	}
	row := it.table.Rows[it.pos]
	if index < 0 || index >= len(row) {
		return 0
	}
	return native.ValuePtr(l.borrow(it, borrowed{cell: &row[index]}))
}

func (l *Library) cell(v native.ValuePtr) *Cell {
	b, ok := l.borrowed[uintptr(v)]
	if !ok || b.cell == nil {
		return nil
	}
	return b.cell
}

func (l *Library) ValueIsNull(v native.ValuePtr) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueIsNull")
	c := l.cell(v)
	return c == nil || c.Null
}

func (l *Library) ValueType(v native.ValuePtr) native.ValueType {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueType")
	c := l.cell(v)
	if c == nil {
		return native.ValueTypeUnknown
	}
	return c.Type
}

func (l *Library) ValueGetString(v native.ValuePtr) (string, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetString")
	c := l.cell(v)
	if c == nil {
		return "", native.LibBadParams
	}
	if code := c.check(); code != native.OK {
		return "", code
	}
	return string(c.Data), native.OK
}

func (l *Library) ValueGetInt32(v native.ValuePtr) (int32, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetInt32")
	c := l.cell(v)
	if c == nil {
		return 0, native.LibBadParams
	}
	data, code := c.fixed(4, native.ValueTypeInt)
	if code != native.OK {
		return 0, code
	}
	return int32(binary.BigEndian.Uint32(data)), native.OK
}

func (l *Library) ValueGetInt64(v native.ValuePtr) (int64, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetInt64")
	c := l.cell(v)
	if c == nil {
		return 0, native.LibBadParams
	}
	data, code := c.fixed(8, native.ValueTypeBigint, native.ValueTypeCounter, native.ValueTypeTimestamp)
	if code != native.OK {
		return 0, code
	}
	return int64(binary.BigEndian.Uint64(data)), native.OK
}

func (l *Library) ValueGetFloat(v native.ValuePtr) (float32, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetFloat")
	c := l.cell(v)
	if c == nil {
		return 0, native.LibBadParams
	}
	data, code := c.fixed(4, native.ValueTypeFloat)
	if code != native.OK {
		return 0, code
	}
	return math.Float32frombits(binary.BigEndian.Uint32(data)), native.OK
}

func (l *Library) ValueGetDouble(v native.ValuePtr) (float64, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetDouble")
	c := l.cell(v)
	if c == nil {
		return 0, native.LibBadParams
	}
	data, code := c.fixed(8, native.ValueTypeDouble)
	if code != native.OK {
		return 0, code
	}
	return math.Float64frombits(binary.BigEndian.Uint64(data)), native.OK
}

func (l *Library) ValueGetBool(v native.ValuePtr) (bool, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetBool")
	c := l.cell(v)
	if c == nil {
		return false, native.LibBadParams
	}
	data, code := c.fixed(1, native.ValueTypeBoolean)
	if code != native.OK {
		return false, code
	}
	return data[0] != 0, native.OK
}

func (l *Library) ValueGetBytes(v native.ValuePtr) ([]byte, native.ErrorCode) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.record("ValueGetBytes")
	c := l.cell(v)
	if c == nil {
		return nil, native.LibBadParams
	}
	if code := c.check(); code != native.OK {
		return nil, code
	}
	return append([]byte(nil), c.Data...), native.OK
}
