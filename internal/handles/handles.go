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

// Package handles gives every owned native pointer a Go owner that frees
// it exactly once.
//
// A wrapper is only ever built around a non-null pointer. Release may be
// called any number of times, from any goroutine, and on a nil wrapper;
// the native free function runs on the first call only.
package handles

import (
	"fmt"
	"sync/atomic"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/native"
)

type owned[P ~uintptr] struct {
	ptr      P
	free     func(P)
	released atomic.Bool
}

func (o *owned[P]) init(ptr P, free func(P)) {
	o.ptr, o.free = ptr, free
}

// release frees the pointer on the first call and reports whether it
// did.
func (o *owned[P]) release() bool {
	if !o.released.CompareAndSwap(false, true) {
		return false
	}
	o.free(o.ptr)
	return true
}

func nullHandle(kind string) error {
	return cassbridge.Error{
		Code: cassbridge.StatusDriverUnavailable,
		Msg:  fmt.Sprintf("native library returned a null %s", kind),
	}
}

// Cluster owns a native cluster configuration.
type Cluster struct{ owned[native.ClusterPtr] }

func NewCluster(lib native.Library) (*Cluster, error) {
	p := lib.ClusterNew()
	if p == 0 {
		return nil, nullHandle("cluster")
	}
	c := &Cluster{}
	c.init(p, lib.ClusterFree)
	return c, nil
}

func (c *Cluster) Ptr() native.ClusterPtr { return c.ptr }

func (c *Cluster) Release() {
	if c != nil {
		c.release()
	}
}

// Session owns a native session.
type Session struct{ owned[native.SessionPtr] }

func NewSession(lib native.Library) (*Session, error) {
	p := lib.SessionNew()
	if p == 0 {
		return nil, nullHandle("session")
	}
	s := &Session{}
	s.init(p, lib.SessionFree)
	return s, nil
}

func (s *Session) Ptr() native.SessionPtr { return s.ptr }

func (s *Session) Release() {
	if s != nil {
		s.release()
	}
}

// Statement owns a native statement built from CQL text with no bound
// parameters.
type Statement struct{ owned[native.StatementPtr] }

func NewStatement(lib native.Library, cql string) (*Statement, error) {
	p := lib.StatementNew(cql, 0)
	if p == 0 {
		return nil, nullHandle("statement")
	}
	st := &Statement{}
	st.init(p, lib.StatementFree)
	return st, nil
}

func (st *Statement) Ptr() native.StatementPtr { return st.ptr }

func (st *Statement) Release() {
	if st != nil {
		st.release()
	}
}

// Future owns a pending native operation.
type Future struct {
	owned[native.FuturePtr]
	lib native.Library
}

// WrapFuture takes ownership of a future returned by an asynchronous
// native call.
func WrapFuture(lib native.Library, p native.FuturePtr) (*Future, error) {
	if p == 0 {
		return nil, nullHandle("future")
	}
	f := &Future{lib: lib}
	f.init(p, lib.FutureFree)
	return f, nil
}

func (f *Future) Ptr() native.FuturePtr { return f.ptr }

// Library returns the library the future belongs to.
func (f *Future) Library() native.Library { return f.lib }

func (f *Future) Release() {
	if f != nil {
		f.release()
	}
}

// Detach moves ownership of the native future to a new wrapper. The
// receiver's Release becomes a no-op. Detaching a released future
// returns nil.
func (f *Future) Detach() *Future {
	if f == nil || !f.released.CompareAndSwap(false, true) {
		return nil
	}
	out := &Future{lib: f.lib}
	out.init(f.ptr, f.free)
	return out
}

// Result owns a native result set.
type Result struct{ owned[native.ResultPtr] }

// WrapResult takes ownership of the result obtained from a completed
// future.
func WrapResult(lib native.Library, p native.ResultPtr) (*Result, error) {
	if p == 0 {
		return nil, nullHandle("result")
	}
	r := &Result{}
	r.init(p, lib.ResultFree)
	return r, nil
}

func (r *Result) Ptr() native.ResultPtr { return r.ptr }

func (r *Result) Release() {
	if r != nil {
		r.release()
	}
}

// Iterator owns a native row iterator. Rows and values obtained through
// it are borrowed and become invalid once it advances or is released.
type Iterator struct{ owned[native.IteratorPtr] }

func NewIterator(lib native.Library, r *Result) (*Iterator, error) {
	p := lib.IteratorFromResult(r.Ptr())
	if p == 0 {
		return nil, nullHandle("iterator")
	}
	it := &Iterator{}
	it.init(p, lib.IteratorFree)
	return it, nil
}

func (it *Iterator) Ptr() native.IteratorPtr { return it.ptr }

func (it *Iterator) Release() {
	if it != nil {
		it.release()
	}
}
