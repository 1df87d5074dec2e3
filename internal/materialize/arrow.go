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

package materialize

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cassbridge/cassbridge/native"
	"github.com/google/uuid"
)

// Metadata key holding the native type name of each field.
const MetadataKeyNativeType = "cassbridge.native_type"

// ArrowType maps a native value type to the Arrow type used when
// exporting it.
func ArrowType(t native.ValueType) arrow.DataType {
	switch t {
	case native.ValueTypeBigint, native.ValueTypeCounter:
		return arrow.PrimitiveTypes.Int64
	case native.ValueTypeTimestamp:
		return arrow.FixedWidthTypes.Timestamp_ms
	case native.ValueTypeInt:
		return arrow.PrimitiveTypes.Int32
	case native.ValueTypeBoolean:
		return arrow.FixedWidthTypes.Boolean
	case native.ValueTypeDouble, native.ValueTypeFloat:
		return arrow.PrimitiveTypes.Float64
	case native.ValueTypeUUID, native.ValueTypeTimeUUID:
		return extensions.NewUUIDType()
	case native.ValueTypeBlob:
		return arrow.BinaryTypes.Binary
	default:
		return arrow.BinaryTypes.String
	}
}

// Schema returns the Arrow schema of r.
func (r *Result) Schema() *arrow.Schema {
	fields := make([]arrow.Field, len(r.Columns))
	for i, col := range r.Columns {
		fields[i] = arrow.Field{
			Name:     col.Name,
			Type:     ArrowType(col.Type),
			Nullable: true,
			Metadata: arrow.NewMetadata([]string{MetadataKeyNativeType}, []string{col.Type.String()}),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// Record exports the decoded rows as a single Arrow record. The caller
// must release it.
func (r *Result) Record(alloc memory.Allocator) (arrow.Record, error) {
	if alloc == nil {
		alloc = memory.DefaultAllocator
	}
	bldr := array.NewRecordBuilder(alloc, r.Schema())
	defer bldr.Release()
	bldr.Reserve(len(r.Rows))

	for rowIdx, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", rowIdx, len(row), len(r.Columns))
		}
		for i, field := range row {
			if err := appendValue(bldr.Field(i), field.Value); err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", rowIdx, field.Name, err)
			}
		}
	}
	return bldr.NewRecord(), nil
}

func appendValue(b array.Builder, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	switch b := b.(type) {
	case *array.Int64Builder:
		n, ok := v.(int64)
		if !ok {
			return typeMismatch(v, "int64")
		}
		b.Append(n)
	case *array.TimestampBuilder:
		n, ok := v.(int64)
		if !ok {
			return typeMismatch(v, "timestamp")
		}
		b.Append(arrow.Timestamp(n))
	case *array.Int32Builder:
		n, ok := v.(int64)
		if !ok {
			return typeMismatch(v, "int32")
		}
		b.Append(int32(n))
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return typeMismatch(v, "bool")
		}
		b.Append(x)
	case *array.Float64Builder:
		f, ok := v.(float64)
		if !ok {
			return typeMismatch(v, "float64")
		}
		b.Append(f)
	case *extensions.UUIDBuilder:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(v, "uuid")
		}
		id, err := uuid.Parse(s)
		if err != nil {
			// decode fallbacks leave an empty string behind
			b.AppendNull()
			return nil
		}
		b.Append(id)
	case *array.BinaryBuilder:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(v, "binary")
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return err
		}
		b.Append(raw)
	case *array.StringBuilder:
		b.Append(toText(v))
	default:
		return fmt.Errorf("unsupported builder %T", b)
	}
	return nil
}

func toText(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}

func typeMismatch(v any, want string) error {
	return fmt.Errorf("value %v of type %T cannot be stored as %s", v, v, want)
}
