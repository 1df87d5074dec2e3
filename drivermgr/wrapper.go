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

// Package drivermgr binds the DataStax C/C++ driver (libcassandra) as a
// native.Library without cgo.
//
// The shared library is loaded at runtime with purego and every symbol
// used by cassbridge is resolved up front, so a library missing part of
// the API fails in Open rather than on first use.
package drivermgr

import (
	"runtime"
	"unsafe"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/native"
	"github.com/cassbridge/cassbridge/session"
	"github.com/ebitengine/purego"
)

// Library calls into a loaded libcassandra. size_t is represented as
// uintptr and cass_bool_t as uint32.
type Library struct {
	handle uintptr
	path   string

	clusterNew               func() uintptr
	clusterFree              func(uintptr)
	clusterSetContactPointsN func(cluster uintptr, points unsafe.Pointer, n uintptr) uint32
	clusterSetPort           func(cluster uintptr, port int32) uint32
	clusterSetCredentialsN   func(cluster uintptr, user unsafe.Pointer, userLen uintptr, pass unsafe.Pointer, passLen uintptr)
	clusterSetConnectTimeout func(cluster uintptr, ms uint32)
	clusterSetRequestTimeout func(cluster uintptr, ms uint32)

	sessionNew              func() uintptr
	sessionFree             func(uintptr)
	sessionConnect          func(session, cluster uintptr) uintptr
	sessionConnectKeyspaceN func(session, cluster uintptr, keyspace unsafe.Pointer, n uintptr) uintptr
	sessionExecute          func(session, statement uintptr) uintptr
	sessionClose            func(session uintptr) uintptr

	statementNewN func(query unsafe.Pointer, n uintptr, paramCount uintptr) uintptr
	statementFree func(uintptr)

	futureWait         func(uintptr)
	futureReady        func(uintptr) uint32
	futureErrorCode    func(uintptr) uint32
	futureErrorMessage func(future uintptr, msg **byte, n *uintptr)
	futureGetResult    func(uintptr) uintptr
	futureFree         func(uintptr)

	resultColumnCount func(uintptr) uintptr
	resultColumnName  func(result uintptr, index uintptr, name **byte, n *uintptr) uint32
	resultColumnType  func(result uintptr, index uintptr) uint32
	resultFree        func(uintptr)

	iteratorFromResult func(uintptr) uintptr
	iteratorNext       func(uintptr) uint32
	iteratorGetRow     func(uintptr) uintptr
	iteratorFree       func(uintptr)

	rowGetColumn func(row uintptr, index uintptr) uintptr

	valueIsNull    func(uintptr) uint32
	valueType      func(uintptr) uint32
	valueGetString func(value uintptr, out **byte, n *uintptr) uint32
	valueGetInt32  func(value uintptr, out *int32) uint32
	valueGetInt64  func(value uintptr, out *int64) uint32
	valueGetFloat  func(value uintptr, out *float32) uint32
	valueGetDouble func(value uintptr, out *float64) uint32
	valueGetBool   func(value uintptr, out *uint32) uint32
	valueGetBytes  func(value uintptr, out **byte, n *uintptr) uint32
}

var _ native.Library = (*Library)(nil)

var errorHelper = driverbase.ErrorHelper{DriverName: "libcassandra"}

func unavailable(format string, args ...any) error {
	return errorHelper.Errorf(cassbridge.StatusDriverUnavailable, format, args...)
}

// NewLibrary resolves the libcassandra symbols from an already opened
// library handle.
func NewLibrary(handle uintptr) (lib *Library, err error) {
	if handle == 0 {
		return nil, unavailable("library handle is null")
	}
	// RegisterLibFunc panics on a missing symbol
	defer func() {
		if r := recover(); r != nil {
			lib, err = nil, unavailable("%v", r)
		}
	}()

	l := &Library{handle: handle}
	purego.RegisterLibFunc(&l.clusterNew, handle, "cass_cluster_new")
	purego.RegisterLibFunc(&l.clusterFree, handle, "cass_cluster_free")
	purego.RegisterLibFunc(&l.clusterSetContactPointsN, handle, "cass_cluster_set_contact_points_n")
	purego.RegisterLibFunc(&l.clusterSetPort, handle, "cass_cluster_set_port")
	purego.RegisterLibFunc(&l.clusterSetCredentialsN, handle, "cass_cluster_set_credentials_n")
	purego.RegisterLibFunc(&l.clusterSetConnectTimeout, handle, "cass_cluster_set_connect_timeout")
	purego.RegisterLibFunc(&l.clusterSetRequestTimeout, handle, "cass_cluster_set_request_timeout")

	purego.RegisterLibFunc(&l.sessionNew, handle, "cass_session_new")
	purego.RegisterLibFunc(&l.sessionFree, handle, "cass_session_free")
	purego.RegisterLibFunc(&l.sessionConnect, handle, "cass_session_connect")
	purego.RegisterLibFunc(&l.sessionConnectKeyspaceN, handle, "cass_session_connect_keyspace_n")
	purego.RegisterLibFunc(&l.sessionExecute, handle, "cass_session_execute")
	purego.RegisterLibFunc(&l.sessionClose, handle, "cass_session_close")

	purego.RegisterLibFunc(&l.statementNewN, handle, "cass_statement_new_n")
	purego.RegisterLibFunc(&l.statementFree, handle, "cass_statement_free")

	purego.RegisterLibFunc(&l.futureWait, handle, "cass_future_wait")
	purego.RegisterLibFunc(&l.futureReady, handle, "cass_future_ready")
	purego.RegisterLibFunc(&l.futureErrorCode, handle, "cass_future_error_code")
	purego.RegisterLibFunc(&l.futureErrorMessage, handle, "cass_future_error_message")
	purego.RegisterLibFunc(&l.futureGetResult, handle, "cass_future_get_result")
	purego.RegisterLibFunc(&l.futureFree, handle, "cass_future_free")

	purego.RegisterLibFunc(&l.resultColumnCount, handle, "cass_result_column_count")
	purego.RegisterLibFunc(&l.resultColumnName, handle, "cass_result_column_name")
	purego.RegisterLibFunc(&l.resultColumnType, handle, "cass_result_column_type")
	purego.RegisterLibFunc(&l.resultFree, handle, "cass_result_free")

	purego.RegisterLibFunc(&l.iteratorFromResult, handle, "cass_iterator_from_result")
	purego.RegisterLibFunc(&l.iteratorNext, handle, "cass_iterator_next")
	purego.RegisterLibFunc(&l.iteratorGetRow, handle, "cass_iterator_get_row")
	purego.RegisterLibFunc(&l.iteratorFree, handle, "cass_iterator_free")

	purego.RegisterLibFunc(&l.rowGetColumn, handle, "cass_row_get_column")

	purego.RegisterLibFunc(&l.valueIsNull, handle, "cass_value_is_null")
	purego.RegisterLibFunc(&l.valueType, handle, "cass_value_type")
	purego.RegisterLibFunc(&l.valueGetString, handle, "cass_value_get_string")
	purego.RegisterLibFunc(&l.valueGetInt32, handle, "cass_value_get_int32")
	purego.RegisterLibFunc(&l.valueGetInt64, handle, "cass_value_get_int64")
	purego.RegisterLibFunc(&l.valueGetFloat, handle, "cass_value_get_float")
	purego.RegisterLibFunc(&l.valueGetDouble, handle, "cass_value_get_double")
	purego.RegisterLibFunc(&l.valueGetBool, handle, "cass_value_get_bool")
	purego.RegisterLibFunc(&l.valueGetBytes, handle, "cass_value_get_bytes")
	return l, nil
}

// Path returns the file the library was loaded from, if known.
func (l *Library) Path() string { return l.path }

// NewDriver loads libcassandra from path and returns a session driver
// over it. An empty path is resolved as in Open.
func NewDriver(path string, opts ...session.Option) (*session.Driver, error) {
	lib, err := Open(path)
	if err != nil {
		return nil, err
	}
	opts = append([]session.Option{session.WithName("libcassandra")}, opts...)
	return session.NewDriver(lib, opts...), nil
}

// goBytes borrows the bytes of s for the duration of a call. The
// pointer is nil for an empty string, which the _n entry points accept.
func goBytes(s string) (unsafe.Pointer, uintptr, func()) {
	if len(s) == 0 {
		return nil, 0, func() {}
	}
	b := []byte(s)
	return unsafe.Pointer(&b[0]), uintptr(len(b)), func() { runtime.KeepAlive(b) }
}

// copyN copies n bytes of native memory. Native strings are not NUL
// terminated.
func copyN(p *byte, n uintptr) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return append([]byte(nil), unsafe.Slice(p, n)...)
}

func (l *Library) ClusterNew() native.ClusterPtr { return native.ClusterPtr(l.clusterNew()) }

func (l *Library) ClusterFree(c native.ClusterPtr) { l.clusterFree(uintptr(c)) }

func (l *Library) ClusterSetContactPoints(c native.ClusterPtr, contactPoints string) native.ErrorCode {
	p, n, keep := goBytes(contactPoints)
	defer keep()
	return native.ErrorCode(l.clusterSetContactPointsN(uintptr(c), p, n))
}

func (l *Library) ClusterSetPort(c native.ClusterPtr, port int) native.ErrorCode {
	return native.ErrorCode(l.clusterSetPort(uintptr(c), int32(port)))
}

func (l *Library) ClusterSetCredentials(c native.ClusterPtr, username, password string) {
	u, un, keepU := goBytes(username)
	defer keepU()
	p, pn, keepP := goBytes(password)
	defer keepP()
	l.clusterSetCredentialsN(uintptr(c), u, un, p, pn)
}

func (l *Library) ClusterSetConnectTimeout(c native.ClusterPtr, timeoutMs uint32) {
	l.clusterSetConnectTimeout(uintptr(c), timeoutMs)
}

func (l *Library) ClusterSetRequestTimeout(c native.ClusterPtr, timeoutMs uint32) {
	l.clusterSetRequestTimeout(uintptr(c), timeoutMs)
}

func (l *Library) SessionNew() native.SessionPtr { return native.SessionPtr(l.sessionNew()) }

func (l *Library) SessionFree(s native.SessionPtr) { l.sessionFree(uintptr(s)) }

func (l *Library) SessionConnect(s native.SessionPtr, c native.ClusterPtr) native.FuturePtr {
	return native.FuturePtr(l.sessionConnect(uintptr(s), uintptr(c)))
}

func (l *Library) SessionConnectKeyspace(s native.SessionPtr, c native.ClusterPtr, keyspace string) native.FuturePtr {
	p, n, keep := goBytes(keyspace)
	defer keep()
	return native.FuturePtr(l.sessionConnectKeyspaceN(uintptr(s), uintptr(c), p, n))
}

func (l *Library) SessionExecute(s native.SessionPtr, st native.StatementPtr) native.FuturePtr {
	return native.FuturePtr(l.sessionExecute(uintptr(s), uintptr(st)))
}

func (l *Library) SessionClose(s native.SessionPtr) native.FuturePtr {
	return native.FuturePtr(l.sessionClose(uintptr(s)))
}

func (l *Library) StatementNew(query string, paramCount int) native.StatementPtr {
	p, n, keep := goBytes(query)
	defer keep()
	return native.StatementPtr(l.statementNewN(p, n, uintptr(paramCount)))
}

func (l *Library) StatementFree(st native.StatementPtr) { l.statementFree(uintptr(st)) }

func (l *Library) FutureWait(f native.FuturePtr) { l.futureWait(uintptr(f)) }

func (l *Library) FutureReady(f native.FuturePtr) bool { return l.futureReady(uintptr(f)) != 0 }

func (l *Library) FutureErrorCode(f native.FuturePtr) native.ErrorCode {
	return native.ErrorCode(l.futureErrorCode(uintptr(f)))
}

func (l *Library) FutureErrorMessage(f native.FuturePtr) string {
	var (
		p *byte
		n uintptr
	)
	l.futureErrorMessage(uintptr(f), &p, &n)
	return string(copyN(p, n))
}

func (l *Library) FutureGetResult(f native.FuturePtr) native.ResultPtr {
	return native.ResultPtr(l.futureGetResult(uintptr(f)))
}

func (l *Library) FutureFree(f native.FuturePtr) { l.futureFree(uintptr(f)) }

func (l *Library) ResultColumnCount(r native.ResultPtr) int {
	return int(l.resultColumnCount(uintptr(r)))
}

func (l *Library) ResultColumnName(r native.ResultPtr, index int) (string, native.ErrorCode) {
	var (
		p *byte
		n uintptr
	)
	code := native.ErrorCode(l.resultColumnName(uintptr(r), uintptr(index), &p, &n))
	if code != native.OK {
		return "", code
	}
	return string(copyN(p, n)), native.OK
}

func (l *Library) ResultColumnType(r native.ResultPtr, index int) native.ValueType {
	return native.ValueType(l.resultColumnType(uintptr(r), uintptr(index)))
}

func (l *Library) ResultFree(r native.ResultPtr) { l.resultFree(uintptr(r)) }

func (l *Library) IteratorFromResult(r native.ResultPtr) native.IteratorPtr {
	return native.IteratorPtr(l.iteratorFromResult(uintptr(r)))
}

func (l *Library) IteratorNext(i native.IteratorPtr) bool { return l.iteratorNext(uintptr(i)) != 0 }

func (l *Library) IteratorGetRow(i native.IteratorPtr) native.RowPtr {
	return native.RowPtr(l.iteratorGetRow(uintptr(i)))
}

func (l *Library) IteratorFree(i native.IteratorPtr) { l.iteratorFree(uintptr(i)) }

func (l *Library) RowGetColumn(r native.RowPtr, index int) native.ValuePtr {
	return native.ValuePtr(l.rowGetColumn(uintptr(r), uintptr(index)))
}

func (l *Library) ValueIsNull(v native.ValuePtr) bool { return l.valueIsNull(uintptr(v)) != 0 }

func (l *Library) ValueType(v native.ValuePtr) native.ValueType {
	return native.ValueType(l.valueType(uintptr(v)))
}

func (l *Library) ValueGetString(v native.ValuePtr) (string, native.ErrorCode) {
	var (
		p *byte
		n uintptr
	)
	code := native.ErrorCode(l.valueGetString(uintptr(v), &p, &n))
	if code != native.OK {
		return "", code
	}
	return string(copyN(p, n)), native.OK
}

func (l *Library) ValueGetInt32(v native.ValuePtr) (int32, native.ErrorCode) {
	var out int32
	code := native.ErrorCode(l.valueGetInt32(uintptr(v), &out))
	return out, code
}

func (l *Library) ValueGetInt64(v native.ValuePtr) (int64, native.ErrorCode) {
	var out int64
	code := native.ErrorCode(l.valueGetInt64(uintptr(v), &out))
	return out, code
}

func (l *Library) ValueGetFloat(v native.ValuePtr) (float32, native.ErrorCode) {
	var out float32
	code := native.ErrorCode(l.valueGetFloat(uintptr(v), &out))
	return out, code
}

func (l *Library) ValueGetDouble(v native.ValuePtr) (float64, native.ErrorCode) {
	var out float64
	code := native.ErrorCode(l.valueGetDouble(uintptr(v), &out))
	return out, code
}

func (l *Library) ValueGetBool(v native.ValuePtr) (bool, native.ErrorCode) {
	var out uint32
	code := native.ErrorCode(l.valueGetBool(uintptr(v), &out))
	return out != 0, code
}

func (l *Library) ValueGetBytes(v native.ValuePtr) ([]byte, native.ErrorCode) {
	var (
		p *byte
		n uintptr
	)
	code := native.ErrorCode(l.valueGetBytes(uintptr(v), &p, &n))
	if code != native.OK {
		return nil, code
	}
	out := copyN(p, n)
	if out == nil {
		out = []byte{}
	}
	return out, native.OK
}
