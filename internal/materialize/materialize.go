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

// Package materialize decodes a native result set into ordered rows of
// plain Go values.
//
// Decoding never fails on a single cell. A column name that cannot be
// read becomes column_<index>, an accessor error yields the zero value of
// the column's Go type and a type without a dedicated decoder is read as
// text. Each such substitution is reported as a cassbridge.DecodeFallback
// in the Result, logged at warning level and added to the current span.
package materialize

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/driverbase"
	"github.com/cassbridge/cassbridge/internal/handles"
	"github.com/cassbridge/cassbridge/native"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Column is the metadata of one result column.
type Column struct {
	Name string
	Type native.ValueType
}

// Result is a fully decoded result set.
type Result struct {
	Columns   []Column
	Rows      cassbridge.QueryOutcome
	Fallbacks []cassbridge.DecodeFallback
}

// Names returns the column names in result order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Public converts r to the exported result type.
func (r *Result) Public() *cassbridge.Result {
	rows := r.Rows
	if rows == nil {
		rows = cassbridge.QueryOutcome{}
	}
	return &cassbridge.Result{Columns: r.Names(), Rows: rows, Fallbacks: r.Fallbacks}
}

// SyntheticColumnName is the name used for a column whose name cannot
// be read.
func SyntheticColumnName(index int) string {
	return fmt.Sprintf("column_%d", index)
}

// Materializer decodes result sets produced by Lib.
type Materializer struct {
	Lib    native.Library
	Logger *slog.Logger
}

// Materialize decodes every row of res. It takes ownership of res: the
// row iterator and then res are released before it returns, on every
// path.
func (m Materializer) Materialize(ctx context.Context, res *handles.Result) (_ *Result, err error) {
	defer res.Release()

	d := decoder{
		lib:    m.Lib,
		logger: driverbase.LoggerOrNil(m.Logger),
		span:   trace.SpanFromContext(ctx),
		ctx:    ctx,
		out:    &Result{Rows: cassbridge.QueryOutcome{}},
	}
	d.readColumns(res)

	it, err := handles.NewIterator(m.Lib, res)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	for row := 0; m.Lib.IteratorNext(it.Ptr()); row++ {
		d.out.Rows = append(d.out.Rows, d.decodeRow(row, m.Lib.IteratorGetRow(it.Ptr())))
	}

	if n := len(d.out.Fallbacks); n > 0 {
		d.span.SetAttributes(attribute.Int("cassbridge.decode.fallbacks", n))
	}
	return d.out, nil
}

type decoder struct {
	lib    native.Library
	logger *slog.Logger
	span   trace.Span
	ctx    context.Context
	out    *Result
}

func (d *decoder) readColumns(res *handles.Result) {
	n := d.lib.ResultColumnCount(res.Ptr())
	d.out.Columns = make([]Column, n)
	for i := range n {
		col := Column{Type: d.lib.ResultColumnType(res.Ptr(), i)}
		name, code := d.lib.ResultColumnName(res.Ptr(), i)
		if code != native.OK {
			name = SyntheticColumnName(i)
			d.fallback(cassbridge.DecodeFallback{
				Row:        -1,
				Column:     i,
				Name:       name,
				ValueType:  uint16(col.Type),
				NativeCode: uint32(code),
				Reason:     "column name unavailable: " + code.String(),
			})
		}
		col.Name = name
		d.out.Columns[i] = col
	}
}

func (d *decoder) decodeRow(row int, ptr native.RowPtr) cassbridge.DecodedRow {
	out := make(cassbridge.DecodedRow, len(d.out.Columns))
	for i, col := range d.out.Columns {
		out[i] = cassbridge.Field{Name: col.Name}
		if ptr == 0 {
			d.cellFallback(row, i, col.Type, native.LibBadParams, "row unavailable")
			continue
		}
		out[i].Value = d.decodeValue(row, i, d.lib.RowGetColumn(ptr, i))
	}
	return out
}

func (d *decoder) decodeValue(row, col int, v native.ValuePtr) any {
	if v == 0 {
		d.cellFallback(row, col, d.out.Columns[col].Type, native.LibIndexOutOfBounds, "value unavailable")
		return nil
	}
	if d.lib.ValueIsNull(v) {
		return nil
	}

	t := d.lib.ValueType(v)
	switch t {
	case native.ValueTypeASCII, native.ValueTypeText, native.ValueTypeVarchar:
		s, code := d.lib.ValueGetString(v)
		return orDefault(d, row, col, t, code, s)
	case native.ValueTypeBigint, native.ValueTypeCounter, native.ValueTypeTimestamp:
		n, code := d.lib.ValueGetInt64(v)
		return orDefault(d, row, col, t, code, n)
	case native.ValueTypeInt:
		n, code := d.lib.ValueGetInt32(v)
		return orDefault(d, row, col, t, code, int64(n))
	case native.ValueTypeBoolean:
		b, code := d.lib.ValueGetBool(v)
		return orDefault(d, row, col, t, code, b)
	case native.ValueTypeDouble:
		f, code := d.lib.ValueGetDouble(v)
		return orDefault(d, row, col, t, code, f)
	case native.ValueTypeFloat:
		f, code := d.lib.ValueGetFloat(v)
		return orDefault(d, row, col, t, code, float64(f))
	case native.ValueTypeUUID, native.ValueTypeTimeUUID:
		return d.decodeUUID(row, col, t, v)
	case native.ValueTypeBlob:
		b, code := d.lib.ValueGetBytes(v)
		if code != native.OK {
			return orDefault(d, row, col, t, code, "")
		}
		return base64.StdEncoding.EncodeToString(b)
	case native.ValueTypeCustom, native.ValueTypeDecimal, native.ValueTypeVarint,
		native.ValueTypeInet, native.ValueTypeDate, native.ValueTypeTime,
		native.ValueTypeSmallInt, native.ValueTypeTinyInt, native.ValueTypeDuration,
		native.ValueTypeList, native.ValueTypeMap, native.ValueTypeSet,
		native.ValueTypeUDT, native.ValueTypeTuple, native.ValueTypeUnknown:
		return d.fallbackText(row, col, t, v)
	default:
		return d.fallbackText(row, col, t, v)
	}
}

func (d *decoder) decodeUUID(row, col int, t native.ValueType, v native.ValuePtr) any {
	b, code := d.lib.ValueGetBytes(v)
	if code != native.OK {
		return orDefault(d, row, col, t, code, "")
	}
	if len(b) != 16 {
		d.cellFallback(row, col, t, native.LibInvalidData, fmt.Sprintf("uuid has %d bytes", len(b)))
		return ""
	}
	return uuid.UUID(b).String()
}

// fallbackText reads a value of a type without a dedicated decoder as
// text. The substitution is always reported.
func (d *decoder) fallbackText(row, col int, t native.ValueType, v native.ValuePtr) any {
	s, code := d.lib.ValueGetString(v)
	if code != native.OK {
		return orDefault(d, row, col, t, code, "")
	}
	d.cellFallback(row, col, t, native.OK, fmt.Sprintf("unsupported type %s decoded as text", t))
	return s
}

func orDefault[T any](d *decoder, row, col int, t native.ValueType, code native.ErrorCode, v T) any {
	if code == native.OK {
		return v
	}
	var zero T
	d.cellFallback(row, col, t, code, fmt.Sprintf("%s accessor failed: %s", t, code))
	return zero
}

func (d *decoder) cellFallback(row, col int, t native.ValueType, code native.ErrorCode, reason string) {
	d.fallback(cassbridge.DecodeFallback{
		Row:        row,
		Column:     col,
		Name:       d.out.Columns[col].Name,
		ValueType:  uint16(t),
		NativeCode: uint32(code),
		Reason:     reason,
	})
}

func (d *decoder) fallback(f cassbridge.DecodeFallback) {
	d.out.Fallbacks = append(d.out.Fallbacks, f)
	d.logger.LogAttrs(d.ctx, slog.LevelWarn, "decode fallback",
		slog.Int("row", f.Row),
		slog.Int("column", f.Column),
		slog.String("name", f.Name),
		slog.String("type", native.ValueType(f.ValueType).String()),
		slog.String("reason", f.Reason),
	)
	d.span.AddEvent("decode fallback", trace.WithAttributes(
		attribute.Int("row", f.Row),
		attribute.Int("column", f.Column),
		attribute.String("name", f.Name),
		attribute.String("reason", f.Reason),
	))
}
