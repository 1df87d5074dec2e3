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

package cassandra

import (
	"context"
	"errors"

	"github.com/cassbridge/cassbridge/native"
	"github.com/gocql/gocql"
)

// errorCode maps a gocql error to the native code libcassandra reports
// for the same condition. Errors without a counterpart get fallback.
func errorCode(err error, fallback native.ErrorCode) native.ErrorCode {
	var reqErr gocql.RequestError
	switch {
	case err == nil:
		return native.OK
	case errors.As(err, &reqErr):
		return native.ServerError(reqErr.Code())
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, gocql.ErrTimeoutNoResponse):
		return native.LibRequestTimedOut
	case errors.Is(err, gocql.ErrNoHosts),
		errors.Is(err, gocql.ErrNoConnections),
		errors.Is(err, gocql.ErrNoConnectionsStarted),
		errors.Is(err, gocql.ErrHostQueryFailed):
		return native.LibNoHostsAvailable
	case errors.Is(err, gocql.ErrKeyspaceDoesNotExist):
		return native.LibUnableToSetKeyspace
	case errors.Is(err, gocql.ErrSessionClosed),
		errors.Is(err, gocql.ErrConnectionClosed):
		return native.LibUnableToConnect
	case errors.Is(err, context.Canceled):
		return native.LibRequestTimedOut
	}
	return fallback
}
