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

package cassbridge

import (
	"context"
	"sync"
)

// Boundary wraps a Session to expose the context-free call surface
// expected by foreign callers: boolean results for connect and close,
// JSON strings for execute.
//
// Methods that cannot report an error directly record it, and the most
// recent one is available from LastError.
type Boundary struct {
	sess Session

	mu      sync.Mutex
	lastErr error
}

// NewBoundary wraps sess. Operations run with context.Background, so
// they are bounded only by the session's wait timeout option.
func NewBoundary(sess Session) *Boundary {
	if sess == nil {
		return nil
	}
	return &Boundary{sess: sess}
}

func (b *Boundary) record(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

// LastError returns the error recorded by the most recent operation, or
// nil if it succeeded.
func (b *Boundary) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Boundary) Configure(contactPoints string, port int) error {
	err := b.sess.Configure(contactPoints, port)
	b.record(err)
	return err
}

func (b *Boundary) Connect() bool {
	ok, err := b.sess.Connect(context.Background())
	b.record(err)
	return ok
}

func (b *Boundary) Execute(cql string) (string, error) {
	out, err := b.sess.Execute(context.Background(), cql)
	b.record(err)
	return out, err
}

func (b *Boundary) Close() bool {
	ok, err := b.sess.Close(context.Background())
	b.record(err)
	return ok
}

// Dispose always succeeds.
func (b *Boundary) Dispose() {
	b.sess.Dispose()
	b.record(nil)
}

func (b *Boundary) IsConnected() bool { return b.sess.IsConnected() }
