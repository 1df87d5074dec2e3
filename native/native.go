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

// Package native describes the handle-based call surface of a Cassandra
// client library in the shape of the DataStax C/C++ driver API.
//
// Every native entity is an opaque pointer of its own type; the zero
// value is the null pointer. Clusters, sessions, statements, futures,
// results and iterators must be freed exactly once by their owner. Rows
// and values are borrowed from their iterator and are never freed.
//
// Implementations are expected to be safe for use from multiple
// goroutines as long as a single handle is not used concurrently.
package native

type (
	ClusterPtr   uintptr
	SessionPtr   uintptr
	StatementPtr uintptr
	FuturePtr    uintptr
	ResultPtr    uintptr
	IteratorPtr  uintptr
	RowPtr       uintptr
	ValuePtr     uintptr
)

// Library is the native call surface. Method names follow the
// cass_<entity>_<operation> naming of the C API.
type Library interface {
	ClusterNew() ClusterPtr
	ClusterFree(ClusterPtr)
	ClusterSetContactPoints(c ClusterPtr, contactPoints string) ErrorCode
	ClusterSetPort(c ClusterPtr, port int) ErrorCode
	ClusterSetCredentials(c ClusterPtr, username, password string)
	ClusterSetConnectTimeout(c ClusterPtr, timeoutMs uint32)
	ClusterSetRequestTimeout(c ClusterPtr, timeoutMs uint32)

	SessionNew() SessionPtr
	SessionFree(SessionPtr)
	SessionConnect(s SessionPtr, c ClusterPtr) FuturePtr
	SessionConnectKeyspace(s SessionPtr, c ClusterPtr, keyspace string) FuturePtr
	SessionExecute(s SessionPtr, st StatementPtr) FuturePtr
	SessionClose(SessionPtr) FuturePtr

	StatementNew(query string, paramCount int) StatementPtr
	StatementFree(StatementPtr)

	// FutureWait blocks until the future is resolved.
	FutureWait(FuturePtr)
	FutureReady(FuturePtr) bool
	FutureErrorCode(FuturePtr) ErrorCode
	// FutureErrorMessage returns a copy of the error text. The native
	// text is not NUL terminated and is copied using its length.
	FutureErrorMessage(FuturePtr) string
	// FutureGetResult returns the result of a completed execute. The
	// caller owns the result.
	FutureGetResult(FuturePtr) ResultPtr
	FutureFree(FuturePtr)

	ResultColumnCount(ResultPtr) int
	ResultColumnName(r ResultPtr, index int) (string, ErrorCode)
	ResultColumnType(r ResultPtr, index int) ValueType
	ResultFree(ResultPtr)

	IteratorFromResult(ResultPtr) IteratorPtr
	IteratorNext(IteratorPtr) bool
	IteratorGetRow(IteratorPtr) RowPtr
	IteratorFree(IteratorPtr)

	RowGetColumn(r RowPtr, index int) ValuePtr

	ValueIsNull(ValuePtr) bool
	ValueType(ValuePtr) ValueType
	ValueGetString(ValuePtr) (string, ErrorCode)
	ValueGetInt32(ValuePtr) (int32, ErrorCode)
	ValueGetInt64(ValuePtr) (int64, ErrorCode)
	ValueGetFloat(ValuePtr) (float32, ErrorCode)
	ValueGetDouble(ValuePtr) (float64, ErrorCode)
	ValueGetBool(ValuePtr) (bool, ErrorCode)
	// ValueGetBytes returns a copy of the raw bytes of the value.
	ValueGetBytes(ValuePtr) ([]byte, ErrorCode)
}

// ValueType is the native type tag of a value or column.
type ValueType uint16

const (
	ValueTypeCustom    ValueType = 0x0000
	ValueTypeASCII     ValueType = 0x0001
	ValueTypeBigint    ValueType = 0x0002
	ValueTypeBlob      ValueType = 0x0003
	ValueTypeBoolean   ValueType = 0x0004
	ValueTypeCounter   ValueType = 0x0005
	ValueTypeDecimal   ValueType = 0x0006
	ValueTypeDouble    ValueType = 0x0007
	ValueTypeFloat     ValueType = 0x0008
	ValueTypeInt       ValueType = 0x0009
	ValueTypeText      ValueType = 0x000A
	ValueTypeTimestamp ValueType = 0x000B
	ValueTypeUUID      ValueType = 0x000C
	ValueTypeVarchar   ValueType = 0x000D
	ValueTypeVarint    ValueType = 0x000E
	ValueTypeTimeUUID  ValueType = 0x000F
	ValueTypeInet      ValueType = 0x0010
	ValueTypeDate      ValueType = 0x0011
	ValueTypeTime      ValueType = 0x0012
	ValueTypeSmallInt  ValueType = 0x0013
	ValueTypeTinyInt   ValueType = 0x0014
	ValueTypeDuration  ValueType = 0x0015
	ValueTypeList      ValueType = 0x0020
	ValueTypeMap       ValueType = 0x0021
	ValueTypeSet       ValueType = 0x0022
	ValueTypeUDT       ValueType = 0x0030
	ValueTypeTuple     ValueType = 0x0031
	ValueTypeUnknown   ValueType = 0xFFFF
)

var valueTypeNames = map[ValueType]string{
	ValueTypeCustom:    "custom",
	ValueTypeASCII:     "ascii",
	ValueTypeBigint:    "bigint",
	ValueTypeBlob:      "blob",
	ValueTypeBoolean:   "boolean",
	ValueTypeCounter:   "counter",
	ValueTypeDecimal:   "decimal",
	ValueTypeDouble:    "double",
	ValueTypeFloat:     "float",
	ValueTypeInt:       "int",
	ValueTypeText:      "text",
	ValueTypeTimestamp: "timestamp",
	ValueTypeUUID:      "uuid",
	ValueTypeVarchar:   "varchar",
	ValueTypeVarint:    "varint",
	ValueTypeTimeUUID:  "timeuuid",
	ValueTypeInet:      "inet",
	ValueTypeDate:      "date",
	ValueTypeTime:      "time",
	ValueTypeSmallInt:  "smallint",
	ValueTypeTinyInt:   "tinyint",
	ValueTypeDuration:  "duration",
	ValueTypeList:      "list",
	ValueTypeMap:       "map",
	ValueTypeSet:       "set",
	ValueTypeUDT:       "udt",
	ValueTypeTuple:     "tuple",
	ValueTypeUnknown:   "unknown",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return "unknown"
}
