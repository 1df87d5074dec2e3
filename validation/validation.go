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

// Package validation is a library-agnostic test suite intended to aid
// in developing native.Library implementations. It drives sessions
// through their whole lifecycle and checks the behavior every library
// must share.
package validation

import (
	"context"
	"testing"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/session"
	"github.com/stretchr/testify/suite"
)

type SessionQuirks interface {
	// Called in SetupTest to initialize anything needed for testing
	SetupDriver(*testing.T) *session.Driver
	// Called in TearDownTest to clean up anything necessary in between tests
	TearDownDriver(*testing.T, *session.Driver)
	// Options passed to NewSession to reach a running cluster
	SessionOptions() map[string]string
	// Options passed to NewSession that make Connect fail
	UnreachableOptions() map[string]string
	// Create a users table holding the row ('a', 'a@x', 1) and return
	// its qualified name
	CreateUsersTable(context.Context, cassbridge.Session) (string, error)
	// A statement the cluster rejects
	InvalidStatement() string
}

type SessionTests struct {
	suite.Suite

	Driver *session.Driver
	Quirks SessionQuirks

	ctx      context.Context
	sessions []*session.Session
}

func (s *SessionTests) SetupTest() {
	s.ctx = context.Background()
	s.Driver = s.Quirks.SetupDriver(s.T())
}

func (s *SessionTests) TearDownTest() {
	for _, sess := range s.sessions {
		sess.Dispose()
	}
	s.sessions = nil
	s.Quirks.TearDownDriver(s.T(), s.Driver)
	s.Driver = nil
}

// newSession returns a session disposed in TearDownTest.
func (s *SessionTests) newSession(options map[string]string) *session.Session {
	sess, err := s.Driver.NewSession(s.ctx, options)
	s.Require().NoError(err)
	s.Require().NotNil(sess)
	s.sessions = append(s.sessions, sess)
	return sess
}

func (s *SessionTests) TestNewSession() {
	sess := s.newSession(s.Quirks.SessionOptions())
	s.Implements((*cassbridge.Session)(nil), sess)
	s.False(sess.IsConnected())
}

func (s *SessionTests) TestConnectClose() {
	sess := s.newSession(s.Quirks.SessionOptions())
	ok, err := sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.True(sess.IsConnected())

	ok, err = sess.Close(s.ctx)
	s.NoError(err)
	s.True(ok)
	s.False(sess.IsConnected())
}

func (s *SessionTests) TestCloseTwice() {
	sess := s.newSession(s.Quirks.SessionOptions())
	ok, err := sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	for i := 0; i < 2; i++ {
		ok, err = sess.Close(s.ctx)
		s.NoError(err)
		s.True(ok)
	}
}

func (s *SessionTests) TestCloseUnconnected() {
	sess := s.newSession(s.Quirks.SessionOptions())
	ok, err := sess.Close(s.ctx)
	s.NoError(err)
	s.True(ok)
}

func (s *SessionTests) TestConnectUnreachable() {
	sess := s.newSession(s.Quirks.UnreachableOptions())
	ok, err := sess.Connect(s.ctx)
	s.False(ok)
	var cerr cassbridge.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(cassbridge.StatusOperationFailed, cerr.Code)
	s.NotZero(cerr.NativeCode)
	s.False(sess.IsConnected())
}

func (s *SessionTests) TestExecuteNotConnected() {
	sess := s.newSession(s.Quirks.SessionOptions())
	_, err := sess.Execute(s.ctx, "SELECT release_version FROM system.local")
	var cerr cassbridge.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(cassbridge.StatusNotConnected, cerr.Code)
}

func (s *SessionTests) TestDisposeTwice() {
	sess := s.newSession(s.Quirks.SessionOptions())
	ok, err := sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	sess.Dispose()
	sess.Dispose()
	s.False(sess.IsConnected())

	ok, err = sess.Connect(s.ctx)
	s.False(ok)
	s.True(cassbridge.IsStatus(err, cassbridge.StatusInvalidState), err)
}

type QueryTests struct {
	suite.Suite

	Driver *session.Driver
	Quirks SessionQuirks

	ctx   context.Context
	sess  *session.Session
	users string
}

func (s *QueryTests) SetupTest() {
	s.ctx = context.Background()
	s.Driver = s.Quirks.SetupDriver(s.T())

	var err error
	s.sess, err = s.Driver.NewSession(s.ctx, s.Quirks.SessionOptions())
	s.Require().NoError(err)
	ok, err := s.sess.Connect(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.users, err = s.Quirks.CreateUsersTable(s.ctx, s.sess)
	s.Require().NoError(err)
}

func (s *QueryTests) TearDownTest() {
	if s.sess != nil {
		s.sess.Dispose()
		s.sess = nil
	}
	s.Quirks.TearDownDriver(s.T(), s.Driver)
	s.Driver = nil
}

func (s *QueryTests) TestSelectUsers() {
	res, err := s.sess.Query(s.ctx, "SELECT id, username, email, age FROM "+s.users)
	s.Require().NoError(err)
	s.Equal([]string{"id", "username", "email", "age"}, res.Columns)
	s.Require().Len(res.Rows, 1)

	row := res.Rows[0]
	s.Equal([]string{"id", "username", "email", "age"}, row.Names())
	username, _ := row.Get("username")
	s.Equal("a", username)
	email, _ := row.Get("email")
	s.Equal("a@x", email)
	age, _ := row.Get("age")
	s.Equal(int64(1), age)
	id, _ := row.Get("id")
	s.IsType("", id)
	s.Len(id, 36)
	s.Empty(res.Fallbacks)
}

func (s *QueryTests) TestExecuteJSON() {
	out, err := s.sess.Execute(s.ctx, "SELECT username, age FROM "+s.users)
	s.Require().NoError(err)
	s.JSONEq(`[{"username":"a","age":1}]`, out)
}

func (s *QueryTests) TestNoRows() {
	out, err := s.sess.Execute(s.ctx, "SELECT username FROM "+s.users+" WHERE id = 00000000-0000-0000-0000-000000000000")
	s.Require().NoError(err)
	s.Equal("[]", out)
}

func (s *QueryTests) TestInvalidStatement() {
	_, err := s.sess.Execute(s.ctx, s.Quirks.InvalidStatement())
	var cerr cassbridge.Error
	s.Require().ErrorAs(err, &cerr)
	s.Equal(cassbridge.StatusOperationFailed, cerr.Code)
	s.NotZero(cerr.NativeCode)
	s.True(s.sess.IsConnected())

	out, err := s.sess.Execute(s.ctx, "SELECT username FROM "+s.users)
	s.NoError(err)
	s.NotEqual("[]", out)
}
