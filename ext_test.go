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

package cassbridge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cassbridge/cassbridge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestExecuteScript(t *testing.T) {
	ctx := context.Background()
	sess := new(mockSession)
	row := cassbridge.DecodedRow{{Name: "n", Value: int64(1)}}
	sess.On("Query", ctx, "CREATE TABLE ks.t (n int PRIMARY KEY)").Return(&cassbridge.Result{}, nil)
	sess.On("Query", ctx, "SELECT n FROM ks.t").Return(&cassbridge.Result{
		Columns: []string{"n"},
		Rows:    cassbridge.QueryOutcome{row},
	}, nil)
	sess.On("Query", ctx, "DROP TABLE ks.missing").Return(nil, cassbridge.Error{
		Code: cassbridge.StatusOperationFailed,
		Msg:  "unconfigured table missing",
	})

	out, err := cassbridge.ExecuteScript(ctx, sess,
		"CREATE TABLE ks.t (n int PRIMARY KEY)",
		"SELECT n FROM ks.t")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Empty(t, out[0])
	assert.Equal(t, cassbridge.QueryOutcome{row}, out[1])

	out, err = cassbridge.ExecuteScript(ctx, sess,
		"SELECT n FROM ks.t",
		"DROP TABLE ks.missing",
		"SELECT n FROM ks.t")
	require.Error(t, err)
	assert.Len(t, out, 1)
	assert.Contains(t, err.Error(), "statement 1")
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusOperationFailed))

	sess.AssertNumberOfCalls(t, "Query", 4)
	sess.AssertNotCalled(t, "Query", mock.Anything, "INSERT")
}

func TestIsStatus(t *testing.T) {
	err := cassbridge.Error{Code: cassbridge.StatusNotConnected, Msg: "not connected"}
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusNotConnected))
	assert.False(t, cassbridge.IsStatus(err, cassbridge.StatusTimeout))
	assert.True(t, cassbridge.IsStatus(fmt.Errorf("wrapped: %w", err), cassbridge.StatusNotConnected))
	assert.True(t, cassbridge.IsStatus(&err, cassbridge.StatusNotConnected))
	assert.False(t, cassbridge.IsStatus(fmt.Errorf("plain"), cassbridge.StatusNotConnected))
	assert.False(t, cassbridge.IsStatus(nil, cassbridge.StatusOK))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "Not Connected: [Test] Execute: session is not connected",
		cassbridge.Error{Code: cassbridge.StatusNotConnected, Msg: "[Test] Execute: session is not connected"}.Error())
	assert.Equal(t, "Operation Failed: [Test] Connect: no hosts available (native 0x0100000A)",
		cassbridge.Error{Code: cassbridge.StatusOperationFailed, Msg: "[Test] Connect: no hosts available", NativeCode: 0x0100000A}.Error())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "OK", cassbridge.StatusOK.String())
	assert.Equal(t, "Driver Unavailable", cassbridge.StatusDriverUnavailable.String())
	assert.Equal(t, "Decode Fallback", cassbridge.StatusDecodeFallback.String())
	assert.Equal(t, "Timeout", cassbridge.StatusTimeout.String())
	assert.Equal(t, "Status(200)", cassbridge.Status(200).String())
}

func TestDecodeFallbackString(t *testing.T) {
	assert.Equal(t, "column 2 (column_2): name does not exist",
		cassbridge.DecodeFallback{Row: -1, Column: 2, Name: "column_2", Reason: "name does not exist"}.String())
	assert.Equal(t, "row 0 column 1 (age): invalid value type",
		cassbridge.DecodeFallback{Row: 0, Column: 1, Name: "age", Reason: "invalid value type"}.String())
}
