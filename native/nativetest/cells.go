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

package nativetest

import (
	"encoding/binary"
	"math"

	"github.com/cassbridge/cassbridge/native"
)

// Cell is a single value in CQL wire encoding.
type Cell struct {
	Type native.ValueType
	Null bool
	Data []byte
	// Err, when set, is returned by every typed accessor of the cell.
	Err native.ErrorCode
}

// Column describes one result column. NameErr, when set, makes the
// column name lookup fail.
type Column struct {
	Name    string
	Type    native.ValueType
	NameErr native.ErrorCode
}

// Table is the result set returned for a statement.
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

// Failure is the outcome of a future that does not complete with OK.
type Failure struct {
	Code    native.ErrorCode
	Message string
}

func Text(s string) Cell    { return Cell{Type: native.ValueTypeText, Data: []byte(s)} }
func ASCII(s string) Cell   { return Cell{Type: native.ValueTypeASCII, Data: []byte(s)} }
func Varchar(s string) Cell { return Cell{Type: native.ValueTypeVarchar, Data: []byte(s)} }

func Int(v int32) Cell {
	return Cell{Type: native.ValueTypeInt, Data: binary.BigEndian.AppendUint32(nil, uint32(v))}
}

func BigInt(v int64) Cell { return int64Cell(native.ValueTypeBigint, v) }

func Counter(v int64) Cell { return int64Cell(native.ValueTypeCounter, v) }

// Timestamp takes milliseconds since the Unix epoch.
func Timestamp(ms int64) Cell { return int64Cell(native.ValueTypeTimestamp, ms) }

func int64Cell(t native.ValueType, v int64) Cell {
	return Cell{Type: t, Data: binary.BigEndian.AppendUint64(nil, uint64(v))}
}

func Bool(v bool) Cell {
	b := byte(0)
	if v {
		b = 1
	}
	return Cell{Type: native.ValueTypeBoolean, Data: []byte{b}}
}

func Double(v float64) Cell {
	return Cell{Type: native.ValueTypeDouble, Data: binary.BigEndian.AppendUint64(nil, math.Float64bits(v))}
}

func Float(v float32) Cell {
	return Cell{Type: native.ValueTypeFloat, Data: binary.BigEndian.AppendUint32(nil, math.Float32bits(v))}
}

func UUID(v [16]byte) Cell     { return Cell{Type: native.ValueTypeUUID, Data: v[:]} }
func TimeUUID(v [16]byte) Cell { return Cell{Type: native.ValueTypeTimeUUID, Data: v[:]} }

func Blob(v []byte) Cell { return Cell{Type: native.ValueTypeBlob, Data: append([]byte(nil), v...)} }

// Null is a null cell of the given type.
func Null(t native.ValueType) Cell { return Cell{Type: t, Null: true} }

// Raw is a cell of any type with the given wire bytes.
func Raw(t native.ValueType, data []byte) Cell { return Cell{Type: t, Data: data} }

// Failing is a cell whose accessors all report code.
func Failing(t native.ValueType, code native.ErrorCode) Cell {
	return Cell{Type: t, Data: []byte{}, Err: code}
}

func (c *Cell) check(types ...native.ValueType) native.ErrorCode {
	if c.Err != native.OK {
		return c.Err
	}
	if c.Null {
		return native.LibNullValue
	}
	if len(types) == 0 {
		return native.OK
	}
	for _, t := range types {
		if c.Type == t {
			return native.OK
		}
	}
	return native.LibInvalidValueType
}

func (c *Cell) fixed(n int, types ...native.ValueType) ([]byte, native.ErrorCode) {
	if code := c.check(types...); code != native.OK {
		return nil, code
	}
	if len(c.Data) != n {
		return nil, native.LibNotEnoughData
	}
	return c.Data, native.OK
}
