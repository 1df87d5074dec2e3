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
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/cassbridge/cassbridge/native"
	"github.com/goccy/go-json"
	"github.com/gocql/gocql"
	"gopkg.in/inf.v0"
)

// cell holds the undecoded bytes of one value as sent by the server.
// Tuples carry their elements instead, since gocql scans them
// element-wise.
type cell struct {
	info  gocql.TypeInfo
	data  []byte
	elems []cell
}

// UnmarshalCQL copies data; gocql reuses its frame buffers. A nil
// slice is a NULL value, an empty one is not.
func (c *cell) UnmarshalCQL(info gocql.TypeInfo, data []byte) error {
	c.info = info
	if data == nil {
		c.data = nil
		return nil
	}
	c.data = make([]byte, len(data))
	copy(c.data, data)
	return nil
}

func tupleCell(info gocql.TypeInfo, elems []cell) cell {
	return cell{info: info, elems: append([]cell(nil), elems...)}
}

func (c *cell) isTuple() bool { return c.info != nil && c.info.Type() == gocql.TypeTuple }

func (c *cell) isNull() bool {
	if c.isTuple() {
		for i := range c.elems {
			if !c.elems[i].isNull() {
				return false
			}
		}
		return true
	}
	return c.data == nil
}

// valueType maps gocql type codes, which are the protocol's option ids,
// to native value types.
func valueType(info gocql.TypeInfo) native.ValueType {
	if info == nil {
		return native.ValueTypeUnknown
	}
	switch t := info.Type(); t {
	case gocql.TypeCustom, gocql.TypeAscii, gocql.TypeBigInt, gocql.TypeBlob,
		gocql.TypeBoolean, gocql.TypeCounter, gocql.TypeDecimal, gocql.TypeDouble,
		gocql.TypeFloat, gocql.TypeInt, gocql.TypeText, gocql.TypeTimestamp,
		gocql.TypeUUID, gocql.TypeVarchar, gocql.TypeVarint, gocql.TypeTimeUUID,
		gocql.TypeInet, gocql.TypeDate, gocql.TypeTime, gocql.TypeSmallInt,
		gocql.TypeTinyInt, gocql.TypeDuration, gocql.TypeList, gocql.TypeMap,
		gocql.TypeSet, gocql.TypeUDT, gocql.TypeTuple:
		return native.ValueType(t)
	}
	return native.ValueTypeUnknown
}

func (c *cell) check(types ...gocql.Type) native.ErrorCode {
	switch {
	case c == nil || c.info == nil:
		return native.LibBadParams
	case c.isNull():
		return native.LibNullValue
	}
	if len(types) == 0 {
		return native.OK
	}
	for _, t := range types {
		if c.info.Type() == t {
			return native.OK
		}
	}
	return native.LibInvalidValueType
}

// fixedWidth holds the encoded size of the fixed-width types. gocql
// decodes a value of any other size as zero.
var fixedWidth = map[gocql.Type]int{
	gocql.TypeInt:       4,
	gocql.TypeFloat:     4,
	gocql.TypeBigInt:    8,
	gocql.TypeCounter:   8,
	gocql.TypeTimestamp: 8,
	gocql.TypeTime:      8,
	gocql.TypeDouble:    8,
	gocql.TypeBoolean:   1,
}

// decode unmarshals the value into dst with gocql's codec.
func (c *cell) decode(dst any, types ...gocql.Type) native.ErrorCode {
	if code := c.check(types...); code != native.OK {
		return code
	}
	if n, ok := fixedWidth[c.info.Type()]; ok {
		switch {
		case len(c.data) < n:
			return native.LibNotEnoughData
		case len(c.data) > n:
			return native.LibInvalidData
		}
	}
	if err := gocql.Unmarshal(c.info, c.data, dst); err != nil {
		return native.LibInvalidData
	}
	return native.OK
}

func (c *cell) bytes() ([]byte, native.ErrorCode) {
	if code := c.check(); code != native.OK {
		return nil, code
	}
	if c.isTuple() {
		return nil, native.LibInvalidValueType
	}
	return append([]byte{}, c.data...), native.OK
}

// text returns the value of text columns as is and a rendering of any
// other type.
func (c *cell) text() (string, native.ErrorCode) {
	if code := c.check(); code != native.OK {
		return "", code
	}
	switch c.info.Type() {
	case gocql.TypeAscii, gocql.TypeText, gocql.TypeVarchar:
		return string(c.data), native.OK
	}
	var (
		v   any
		err error
	)
	if c.isTuple() {
		elems := make([]any, len(c.elems))
		for i := range c.elems {
			if elems[i], err = decodeAny(c.elems[i].info, c.elems[i].data); err != nil {
				return "", native.LibInvalidData
			}
		}
		v = elems
	} else if v, err = decodeAny(c.info, c.data); err != nil {
		return "", native.LibInvalidData
	}
	if s, ok := v.(string); ok {
		return s, native.OK
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v), native.OK
	}
	return string(b), native.OK
}

var errShortValue = errors.New("value shorter than its declared length")

// decodeAny decodes a value into string, int64, float64, bool, nil,
// []any or map[string]any.
func decodeAny(info gocql.TypeInfo, data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	switch info.Type() {
	case gocql.TypeAscii, gocql.TypeText, gocql.TypeVarchar:
		return string(data), nil
	case gocql.TypeBigInt, gocql.TypeCounter, gocql.TypeTimestamp:
		var v int64
		err := gocql.Unmarshal(info, data, &v)
		return v, err
	case gocql.TypeInt:
		var v int32
		err := gocql.Unmarshal(info, data, &v)
		return int64(v), err
	case gocql.TypeSmallInt:
		var v int16
		err := gocql.Unmarshal(info, data, &v)
		return int64(v), err
	case gocql.TypeTinyInt:
		var v int8
		err := gocql.Unmarshal(info, data, &v)
		return int64(v), err
	case gocql.TypeBoolean:
		var v bool
		err := gocql.Unmarshal(info, data, &v)
		return v, err
	case gocql.TypeFloat:
		var v float32
		err := gocql.Unmarshal(info, data, &v)
		return float64(v), err
	case gocql.TypeDouble:
		var v float64
		err := gocql.Unmarshal(info, data, &v)
		return v, err
	case gocql.TypeUUID, gocql.TypeTimeUUID:
		var v gocql.UUID
		err := gocql.Unmarshal(info, data, &v)
		return v.String(), err
	case gocql.TypeBlob, gocql.TypeCustom:
		return "0x" + hex.EncodeToString(data), nil
	case gocql.TypeInet:
		var v net.IP
		err := gocql.Unmarshal(info, data, &v)
		return v.String(), err
	case gocql.TypeDate:
		var v time.Time
		err := gocql.Unmarshal(info, data, &v)
		return v.UTC().Format(time.DateOnly), err
	case gocql.TypeTime:
		var v time.Duration
		err := gocql.Unmarshal(info, data, &v)
		return formatTimeOfDay(v), err
	case gocql.TypeVarint:
		v := new(big.Int)
		err := gocql.Unmarshal(info, data, v)
		return v.String(), err
	case gocql.TypeDecimal:
		v := new(inf.Dec)
		err := gocql.Unmarshal(info, data, v)
		return v.String(), err
	case gocql.TypeDuration:
		var v gocql.Duration
		err := gocql.Unmarshal(info, data, &v)
		return fmt.Sprintf("%dmo%dd%dns", v.Months, v.Days, v.Nanoseconds), err
	case gocql.TypeList, gocql.TypeSet:
		coll, ok := info.(gocql.CollectionType)
		if !ok {
			break
		}
		return decodeList(coll, data)
	case gocql.TypeMap:
		coll, ok := info.(gocql.CollectionType)
		if !ok {
			break
		}
		return decodeMap(coll, data)
	case gocql.TypeUDT:
		udt, ok := info.(gocql.UDTTypeInfo)
		if !ok {
			break
		}
		return decodeUDT(udt, data)
	case gocql.TypeTuple:
		tuple, ok := info.(gocql.TupleTypeInfo)
		if !ok {
			break
		}
		return decodeTuple(tuple, data)
	}
	return nil, fmt.Errorf("cannot decode %s", info)
}

func formatTimeOfDay(d time.Duration) string {
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%09d", h, m, s, d)
}

// reader walks the [int]/[bytes] framing of collection values. Protocol
// versions before 3 use 16 bit lengths.
type reader struct {
	data  []byte
	short bool
	err   error
}

func newReader(info gocql.TypeInfo, data []byte) *reader {
	return &reader{data: data, short: info.Version() < 3}
}

func (r *reader) length() int {
	if r.err != nil {
		return 0
	}
	if r.short {
		if len(r.data) < 2 {
			r.err = errShortValue
			return 0
		}
		n := int(r.data[0])<<8 | int(r.data[1])
		r.data = r.data[2:]
		return n
	}
	if len(r.data) < 4 {
		r.err = errShortValue
		return 0
	}
	n := int(int32(uint32(r.data[0])<<24 | uint32(r.data[1])<<16 | uint32(r.data[2])<<8 | uint32(r.data[3])))
	r.data = r.data[4:]
	return n
}

// value returns nil for a negative length, which encodes NULL.
func (r *reader) value() []byte {
	n := r.length()
	if r.err != nil || n < 0 {
		return nil
	}
	if len(r.data) < n {
		r.err = errShortValue
		return nil
	}
	v := r.data[:n:n]
	r.data = r.data[n:]
	return v
}

func decodeList(coll gocql.CollectionType, data []byte) (any, error) {
	r := newReader(coll, data)
	n := r.length()
	out := make([]any, 0, max(n, 0))
	for i := 0; i < n && r.err == nil; i++ {
		raw := r.value()
		if r.err != nil {
			break
		}
		v, err := decodeAny(coll.Elem, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, r.err
}

func decodeMap(coll gocql.CollectionType, data []byte) (any, error) {
	r := newReader(coll, data)
	n := r.length()
	out := make(map[string]any, max(n, 0))
	for i := 0; i < n && r.err == nil; i++ {
		rawKey := r.value()
		rawVal := r.value()
		if r.err != nil {
			break
		}
		k, err := decodeAny(coll.Key, rawKey)
		if err != nil {
			return nil, err
		}
		v, err := decodeAny(coll.Elem, rawVal)
		if err != nil {
			return nil, err
		}
		out[fmt.Sprint(k)] = v
	}
	return out, r.err
}

// decodeUDT tolerates values written before trailing fields were added.
func decodeUDT(udt gocql.UDTTypeInfo, data []byte) (any, error) {
	r := &reader{data: data}
	out := make(map[string]any, len(udt.Elements))
	for _, field := range udt.Elements {
		if len(r.data) == 0 {
			out[field.Name] = nil
			continue
		}
		raw := r.value()
		if r.err != nil {
			return nil, r.err
		}
		v, err := decodeAny(field.Type, raw)
		if err != nil {
			return nil, err
		}
		out[field.Name] = v
	}
	return out, nil
}

func decodeTuple(tuple gocql.TupleTypeInfo, data []byte) (any, error) {
	r := &reader{data: data}
	out := make([]any, len(tuple.Elems))
	for i, elem := range tuple.Elems {
		raw := r.value()
		if r.err != nil {
			return nil, r.err
		}
		v, err := decodeAny(elem, raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
