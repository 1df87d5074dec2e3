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

package sqldriver

import (
	"context"
	"database/sql/driver"
	"io"
	"reflect"
	"strings"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/materialize"
	"github.com/cassbridge/cassbridge/native"
	"github.com/cassbridge/cassbridge/session"
)

func parseConnectStr(str string) (ret map[string]string, err error) {
	ret = make(map[string]string)
	for _, kv := range strings.Split(str, ";") {
		if strings.TrimSpace(kv) == "" {
			continue
		}
		parsed := strings.SplitN(kv, "=", 2)
		if len(parsed) != 2 {
			return nil, cassbridge.Error{
				Msg:  "invalid format for connection string",
				Code: cassbridge.StatusInvalidArgument,
			}
		}

		ret[strings.TrimSpace(parsed[0])] = strings.TrimSpace(parsed[1])
	}
	return
}

func notImplemented(msg string) error {
	return cassbridge.Error{Msg: msg, Code: cassbridge.StatusNotImplemented}
}

type connector struct {
	drv  *session.Driver
	opts map[string]string
}

// Connect opens and connects a new session. The sql package keeps its
// own pool of idle connections, so every call creates a fresh session.
func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	sess, err := c.drv.NewSession(ctx, c.opts)
	if err != nil {
		return nil, err
	}
	if _, err := sess.Connect(ctx); err != nil {
		sess.Dispose()
		return nil, err
	}
	return &conn{sess: sess}, nil
}

// Driver returns the underlying Driver of the connector,
// mainly to maintain compatibility with the Driver method on sql.DB
func (c *connector) Driver() driver.Driver { return Driver{c.drv} }

type Driver struct {
	Driver *session.Driver
}

// Open returns a new connection to the cluster. The name should be
// semi-colon separated session options of the form:
// cassbridge.cluster.contact_points=127.0.0.1;cassbridge.cluster.port=9042;...
//
// The returned connection is only used by one goroutine at a time.
func (d Driver) Open(name string) (driver.Conn, error) {
	connector, err := d.OpenConnector(name)
	if err != nil {
		return nil, err
	}
	return connector.Connect(context.Background())
}

// OpenConnector expects the same format as driver.Open
func (d Driver) OpenConnector(name string) (driver.Connector, error) {
	opts, err := parseConnectStr(name)
	if err != nil {
		return nil, err
	}
	return &connector{drv: d.Driver, opts: opts}, nil
}

// conn is a connected session. It is not used concurrently by
// multiple goroutines.
type conn struct {
	sess *session.Session
}

// Close closes the session and releases its native handles. The
// session's wait_timeout bounds the close.
func (c *conn) Close() error {
	defer c.sess.Dispose()
	_, err := c.sess.Close(context.Background())
	return err
}

// IsValid reports whether the session is still connected so the sql
// package drops sessions that were closed underneath it.
func (c *conn) IsValid() bool { return c.sess.IsConnected() }

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if len(args) > 0 {
		return nil, notImplemented("bound parameters are not supported")
	}
	res, err := c.sess.QueryResult(ctx, query)
	if err != nil {
		return nil, err
	}
	return &rows{res: res}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if len(args) > 0 {
		return nil, notImplemented("bound parameters are not supported")
	}
	if _, err := c.sess.QueryResult(ctx, query); err != nil {
		return nil, err
	}
	return driver.ResultNoRows, nil
}

func (c *conn) Begin() (driver.Tx, error) {
	return nil, notImplemented("transactions are not supported")
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return c.Begin()
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

// PrepareContext keeps the statement text only. Each execution sends
// the text again.
func (c *conn) PrepareContext(_ context.Context, query string) (driver.Stmt, error) {
	return &stmt{conn: c, query: query}, nil
}

type stmt struct {
	conn  *conn
	query string
}

func (s *stmt) Close() error { return nil }

func (s *stmt) NumInput() int { return 0 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), named(args))
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), named(args))
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.query, args)
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.query, args)
}

func named(values []driver.Value) []driver.NamedValue {
	namedValues := make([]driver.NamedValue, len(values))
	for i, value := range values {
		namedValues[i] = driver.NamedValue{Ordinal: i + 1, Value: value}
	}
	return namedValues
}

type rows struct {
	res    *materialize.Result
	curRow int
	closed bool
}

func (r *rows) Columns() []string { return r.res.Names() }

func (r *rows) Close() error {
	r.closed = true
	return nil
}

// Next copies the decoded scalars of the next row. Every decoded value
// is already a valid driver.Value.
func (r *rows) Next(dest []driver.Value) error {
	if r.closed || r.curRow >= len(r.res.Rows) {
		return io.EOF
	}
	for i, f := range r.res.Rows[r.curRow] {
		dest[i] = f.Value
	}
	r.curRow++
	return nil
}

func (r *rows) ColumnTypeDatabaseTypeName(index int) string {
	return strings.ToUpper(r.res.Columns[index].Type.String())
}

func (r *rows) ColumnTypeNullable(int) (nullable, ok bool) { return true, true }

func (r *rows) ColumnTypeScanType(index int) reflect.Type {
	switch r.res.Columns[index].Type {
	case native.ValueTypeBoolean:
		return reflect.TypeOf(false)
	case native.ValueTypeInt, native.ValueTypeBigint, native.ValueTypeCounter, native.ValueTypeTimestamp:
		return reflect.TypeOf(int64(0))
	case native.ValueTypeFloat, native.ValueTypeDouble:
		return reflect.TypeOf(float64(0))
	}
	return reflect.TypeOf("")
}
