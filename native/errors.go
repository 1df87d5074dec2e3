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

package native

import "fmt"

// ErrorCode is a native status code: the error source in the high byte
// and the source-specific code in the low 24 bits. Zero is OK.
type ErrorCode uint32

// ErrorSource identifies which layer produced an ErrorCode.
type ErrorSource uint8

const (
	SourceNone ErrorSource = iota
	SourceLib
	SourceServer
	SourceSSL
	SourceCompression
)

const (
	OK ErrorCode = 0

	libBase    = ErrorCode(SourceLib) << 24
	serverBase = ErrorCode(SourceServer) << 24
)

// Client library errors
const (
	LibBadParams                 ErrorCode = libBase | 1
	LibNoStreams                 ErrorCode = libBase | 2
	LibUnableToInit              ErrorCode = libBase | 3
	LibMessageEncode             ErrorCode = libBase | 4
	LibHostResolution            ErrorCode = libBase | 5
	LibUnexpectedResponse        ErrorCode = libBase | 6
	LibRequestQueueFull          ErrorCode = libBase | 7
	LibNoAvailableIOThread       ErrorCode = libBase | 8
	LibWriteError                ErrorCode = libBase | 9
	LibNoHostsAvailable          ErrorCode = libBase | 10
	LibIndexOutOfBounds          ErrorCode = libBase | 11
	LibInvalidItemCount          ErrorCode = libBase | 12
	LibInvalidValueType          ErrorCode = libBase | 13
	LibRequestTimedOut           ErrorCode = libBase | 14
	LibUnableToSetKeyspace       ErrorCode = libBase | 15
	LibCallbackAlreadySet        ErrorCode = libBase | 16
	LibInvalidStatementType      ErrorCode = libBase | 17
	LibNameDoesNotExist          ErrorCode = libBase | 18
	LibUnableToDetermineProtocol ErrorCode = libBase | 19
	LibNullValue                 ErrorCode = libBase | 20
	LibNotImplemented            ErrorCode = libBase | 21
	LibUnableToConnect           ErrorCode = libBase | 22
	LibUnableToClose             ErrorCode = libBase | 23
	LibNoPagingState             ErrorCode = libBase | 24
	LibParameterUnset            ErrorCode = libBase | 25
	LibInvalidErrorResultType    ErrorCode = libBase | 26
	LibInvalidFutureType         ErrorCode = libBase | 27
	LibInternalError             ErrorCode = libBase | 28
	LibInvalidCustomType         ErrorCode = libBase | 29
	LibInvalidData               ErrorCode = libBase | 30
	LibNotEnoughData             ErrorCode = libBase | 31
	LibInvalidState              ErrorCode = libBase | 32
	LibNoCustomPayload           ErrorCode = libBase | 33
	LibExecutionProfileInvalid   ErrorCode = libBase | 34
	LibNoTracingID               ErrorCode = libBase | 35
)

// Server errors; the low bits are the CQL native protocol error codes.
const (
	ServerServerError     ErrorCode = serverBase | 0x0000
	ServerProtocolError   ErrorCode = serverBase | 0x000A
	ServerBadCredentials  ErrorCode = serverBase | 0x0100
	ServerUnavailable     ErrorCode = serverBase | 0x1000
	ServerOverloaded      ErrorCode = serverBase | 0x1001
	ServerIsBootstrapping ErrorCode = serverBase | 0x1002
	ServerTruncateError   ErrorCode = serverBase | 0x1003
	ServerWriteTimeout    ErrorCode = serverBase | 0x1100
	ServerReadTimeout     ErrorCode = serverBase | 0x1200
	ServerReadFailure     ErrorCode = serverBase | 0x1300
	ServerFunctionFailure ErrorCode = serverBase | 0x1400
	ServerWriteFailure    ErrorCode = serverBase | 0x1500
	ServerSyntaxError     ErrorCode = serverBase | 0x2000
	ServerUnauthorized    ErrorCode = serverBase | 0x2100
	ServerInvalidQuery    ErrorCode = serverBase | 0x2200
	ServerConfigError     ErrorCode = serverBase | 0x2300
	ServerAlreadyExists   ErrorCode = serverBase | 0x2400
	ServerUnprepared      ErrorCode = serverBase | 0x2500
)

// ServerError builds the ErrorCode for a CQL protocol error code.
func ServerError(protocolCode int) ErrorCode {
	return serverBase | ErrorCode(uint32(protocolCode)&0xFFFFFF)
}

func (c ErrorCode) Source() ErrorSource { return ErrorSource(uint32(c) >> 24) }

func (c ErrorCode) Code() uint32 { return uint32(c) & 0xFFFFFF }

var errorCodeNames = map[ErrorCode]string{
	OK:                     "OK",
	LibBadParams:           "bad parameters",
	LibNoHostsAvailable:    "no hosts available",
	LibIndexOutOfBounds:    "index out of bounds",
	LibInvalidValueType:    "invalid value type",
	LibRequestTimedOut:     "request timed out",
	LibUnableToSetKeyspace: "unable to set keyspace",
	LibNameDoesNotExist:    "name does not exist",
	LibNullValue:           "NULL value specified",
	LibNotImplemented:      "not implemented",
	LibUnableToConnect:     "unable to connect",
	LibUnableToClose:       "unable to close",
	LibInternalError:       "internal error",
	LibInvalidData:         "invalid data",
	LibNotEnoughData:       "not enough data",
	LibInvalidState:        "invalid state",
	ServerServerError:      "server error",
	ServerProtocolError:    "protocol error",
	ServerBadCredentials:   "bad credentials",
	ServerUnavailable:      "unavailable",
	ServerOverloaded:       "overloaded",
	ServerIsBootstrapping:  "is bootstrapping",
	ServerTruncateError:    "truncate error",
	ServerWriteTimeout:     "write timeout",
	ServerReadTimeout:      "read timeout",
	ServerReadFailure:      "read failure",
	ServerFunctionFailure:  "function failure",
	ServerWriteFailure:     "write failure",
	ServerSyntaxError:      "syntax error",
	ServerUnauthorized:     "unauthorized",
	ServerInvalidQuery:     "invalid query",
	ServerConfigError:      "configuration error",
	ServerAlreadyExists:    "already exists",
	ServerUnprepared:       "unprepared",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error 0x%08X", uint32(c))
}
