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

package materialize_test

import (
	"context"
	"log/slog"
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/extensions"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/internal/handles"
	"github.com/cassbridge/cassbridge/internal/materialize"
	"github.com/cassbridge/cassbridge/native"
	"github.com/cassbridge/cassbridge/native/nativetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const query = "SELECT * FROM ks.t"

var sequentialUUID = [16]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

// execute runs query against lib and returns the owned result.
func execute(t *testing.T, lib *nativetest.Library) *handles.Result {
	t.Helper()

	cluster, err := handles.NewCluster(lib)
	require.NoError(t, err)
	t.Cleanup(cluster.Release)
	require.Equal(t, native.OK, lib.ClusterSetContactPoints(cluster.Ptr(), "127.0.0.1"))

	sess, err := handles.NewSession(lib)
	require.NoError(t, err)
	t.Cleanup(sess.Release)

	connect, err := handles.WrapFuture(lib, lib.SessionConnect(sess.Ptr(), cluster.Ptr()))
	require.NoError(t, err)
	lib.FutureWait(connect.Ptr())
	require.Equal(t, native.OK, lib.FutureErrorCode(connect.Ptr()))
	connect.Release()

	stmt, err := handles.NewStatement(lib, query)
	require.NoError(t, err)
	defer stmt.Release()

	fut, err := handles.WrapFuture(lib, lib.SessionExecute(sess.Ptr(), stmt.Ptr()))
	require.NoError(t, err)
	defer fut.Release()
	lib.FutureWait(fut.Ptr())
	require.Equal(t, native.OK, lib.FutureErrorCode(fut.Ptr()))

	res, err := handles.WrapResult(lib, lib.FutureGetResult(fut.Ptr()))
	require.NoError(t, err)
	return res
}

func materializeTable(t *testing.T, table nativetest.Table) (*nativetest.Library, *materialize.Result) {
	t.Helper()
	lib := nativetest.New()
	lib.SetResult(query, table)
	res := execute(t, lib)

	out, err := materialize.Materializer{Lib: lib}.Materialize(context.Background(), res)
	require.NoError(t, err)
	assert.Zero(t, lib.Outstanding()[nativetest.KindResult])
	assert.Zero(t, lib.Outstanding()[nativetest.KindIterator])
	assert.Zero(t, lib.BadFrees())
	return lib, out
}

func TestMaterializeAllTypes(t *testing.T) {
	_, out := materializeTable(t, nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "ascii", Type: native.ValueTypeASCII},
			{Name: "text", Type: native.ValueTypeText},
			{Name: "varchar", Type: native.ValueTypeVarchar},
			{Name: "bigint", Type: native.ValueTypeBigint},
			{Name: "counter", Type: native.ValueTypeCounter},
			{Name: "ts", Type: native.ValueTypeTimestamp},
			{Name: "int", Type: native.ValueTypeInt},
			{Name: "bool", Type: native.ValueTypeBoolean},
			{Name: "double", Type: native.ValueTypeDouble},
			{Name: "float", Type: native.ValueTypeFloat},
			{Name: "uuid", Type: native.ValueTypeUUID},
			{Name: "timeuuid", Type: native.ValueTypeTimeUUID},
			{Name: "blob", Type: native.ValueTypeBlob},
		},
		Rows: [][]nativetest.Cell{{
			nativetest.ASCII("plain"),
			nativetest.Text("h\x00llo wörld"),
			nativetest.Varchar(""),
			nativetest.BigInt(math.MinInt64),
			nativetest.Counter(42),
			nativetest.Timestamp(1_700_000_000_123),
			nativetest.Int(-7),
			nativetest.Bool(true),
			nativetest.Double(2.5),
			nativetest.Float(1.5),
			nativetest.UUID(sequentialUUID),
			nativetest.TimeUUID(sequentialUUID),
			nativetest.Blob([]byte{0xde, 0xad, 0xbe, 0xef}),
		}},
	})

	require.Len(t, out.Rows, 1)
	assert.Empty(t, out.Fallbacks)
	row := out.Rows[0]
	assert.Equal(t, []string{"ascii", "text", "varchar", "bigint", "counter", "ts", "int", "bool", "double", "float", "uuid", "timeuuid", "blob"}, row.Names())

	expected := []any{
		"plain",
		"h\x00llo wörld",
		"",
		int64(math.MinInt64),
		int64(42),
		int64(1_700_000_000_123),
		int64(-7),
		true,
		2.5,
		1.5,
		"00010203-0405-0607-0809-0a0b0c0d0e0f",
		"00010203-0405-0607-0809-0a0b0c0d0e0f",
		"3q2+7w==",
	}
	for i, want := range expected {
		assert.Equal(t, want, row[i].Value, "column %s", row[i].Name)
	}
}

func TestMaterializeNullsRegardlessOfType(t *testing.T) {
	types := []native.ValueType{
		native.ValueTypeText, native.ValueTypeBigint, native.ValueTypeInt,
		native.ValueTypeBoolean, native.ValueTypeDouble, native.ValueTypeUUID,
		native.ValueTypeBlob, native.ValueTypeInet,
	}
	table := nativetest.Table{Rows: [][]nativetest.Cell{{}}}
	for i, typ := range types {
		table.Columns = append(table.Columns, nativetest.Column{Name: typ.String(), Type: typ})
		table.Rows[0] = append(table.Rows[0], nativetest.Null(types[i]))
	}

	_, out := materializeTable(t, table)
	require.Len(t, out.Rows, 1)
	for _, f := range out.Rows[0] {
		assert.Nil(t, f.Value, f.Name)
	}
	assert.Empty(t, out.Fallbacks)

	js, err := out.Rows.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":null,"bigint":null,"int":null,"boolean":null,"double":null,"uuid":null,"blob":null,"inet":null}]`, js)
}

func TestMaterializeNoRows(t *testing.T) {
	_, out := materializeTable(t, nativetest.Table{})
	assert.Empty(t, out.Columns)
	assert.NotNil(t, out.Rows)
	js, err := out.Rows.JSON()
	require.NoError(t, err)
	assert.Equal(t, "[]", js)

	pub := out.Public()
	assert.Empty(t, pub.Columns)
	assert.NotNil(t, pub.Rows)
}

func TestMaterializeColumnOrder(t *testing.T) {
	table := nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "z", Type: native.ValueTypeInt},
			{Name: "a", Type: native.ValueTypeInt},
			{Name: "m", Type: native.ValueTypeInt},
		},
	}
	for i := range 50 {
		table.Rows = append(table.Rows, []nativetest.Cell{
			nativetest.Int(int32(i)), nativetest.Int(int32(i * 2)), nativetest.Int(int32(i * 3)),
		})
	}

	_, out := materializeTable(t, table)
	require.Len(t, out.Rows, 50)
	for i, row := range out.Rows {
		assert.Equal(t, []string{"z", "a", "m"}, row.Names())
		assert.Equal(t, int64(i), row[0].Value)
		assert.Equal(t, int64(i*3), row[2].Value)
	}

	js, err := cassbridge.QueryOutcome(out.Rows[:1]).JSON()
	require.NoError(t, err)
	assert.Equal(t, `[{"z":0,"a":0,"m":0}]`, js)
}

func TestMaterializeSyntheticColumnName(t *testing.T) {
	_, out := materializeTable(t, nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "id", Type: native.ValueTypeInt},
			{Name: "lost", Type: native.ValueTypeText, NameErr: native.LibIndexOutOfBounds},
		},
		Rows: [][]nativetest.Cell{{nativetest.Int(1), nativetest.Text("x")}},
	})

	assert.Equal(t, []string{"id", "column_1"}, out.Names())
	require.Len(t, out.Rows, 1)
	v, ok := out.Rows[0].Get("column_1")
	require.True(t, ok)
	assert.Equal(t, "x", v)

	require.Len(t, out.Fallbacks, 1)
	assert.Equal(t, -1, out.Fallbacks[0].Row)
	assert.Equal(t, 1, out.Fallbacks[0].Column)
	assert.Equal(t, "column_1", out.Fallbacks[0].Name)
	assert.Equal(t, uint32(native.LibIndexOutOfBounds), out.Fallbacks[0].NativeCode)
}

func TestMaterializeAccessorErrorsDegrade(t *testing.T) {
	_, out := materializeTable(t, nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "s", Type: native.ValueTypeText},
			{Name: "n", Type: native.ValueTypeBigint},
			{Name: "i", Type: native.ValueTypeInt},
			{Name: "b", Type: native.ValueTypeBoolean},
			{Name: "d", Type: native.ValueTypeDouble},
			{Name: "u", Type: native.ValueTypeUUID},
			{Name: "ok", Type: native.ValueTypeText},
		},
		Rows: [][]nativetest.Cell{{
			nativetest.Failing(native.ValueTypeText, native.LibInvalidData),
			nativetest.Failing(native.ValueTypeBigint, native.LibNotEnoughData),
			nativetest.Raw(native.ValueTypeInt, []byte{1}),
			nativetest.Failing(native.ValueTypeBoolean, native.LibInvalidData),
			nativetest.Failing(native.ValueTypeDouble, native.LibInvalidData),
			nativetest.Raw(native.ValueTypeUUID, []byte{1, 2, 3}),
			nativetest.Text("still here"),
		}},
	})

	require.Len(t, out.Rows, 1)
	row := out.Rows[0]
	assert.Equal(t, "", row[0].Value)
	assert.Equal(t, int64(0), row[1].Value)
	assert.Equal(t, int64(0), row[2].Value)
	assert.Equal(t, false, row[3].Value)
	assert.Equal(t, 0.0, row[4].Value)
	assert.Equal(t, "", row[5].Value)
	assert.Equal(t, "still here", row[6].Value)

	require.Len(t, out.Fallbacks, 6)
	for i, f := range out.Fallbacks {
		assert.Equal(t, 0, f.Row)
		assert.Equal(t, i, f.Column)
	}
	assert.Equal(t, uint32(native.LibNotEnoughData), out.Fallbacks[2].NativeCode)
}

func TestMaterializeFallbackText(t *testing.T) {
	_, out := materializeTable(t, nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "addr", Type: native.ValueTypeInet},
			{Name: "weird", Type: native.ValueType(0x00FE)},
		},
		Rows: [][]nativetest.Cell{{
			nativetest.Raw(native.ValueTypeInet, []byte("10.0.0.1")),
			nativetest.Raw(native.ValueType(0x00FE), []byte("opaque")),
		}},
	})

	require.Len(t, out.Rows, 1)
	assert.Equal(t, "10.0.0.1", out.Rows[0][0].Value)
	assert.Equal(t, "opaque", out.Rows[0][1].Value)
	require.Len(t, out.Fallbacks, 2)
	assert.Contains(t, out.Fallbacks[0].Reason, "unsupported type inet")
	assert.Zero(t, out.Fallbacks[0].NativeCode)
}

func TestMaterializeIteratorUnavailable(t *testing.T) {
	lib := nativetest.New()
	lib.SetResult(query, nativetest.Table{Columns: []nativetest.Column{{Name: "a", Type: native.ValueTypeInt}}})
	res := execute(t, lib)
	lib.NullOn("IteratorFromResult")

	_, err := materialize.Materializer{Lib: lib}.Materialize(context.Background(), res)
	require.Error(t, err)
	assert.True(t, cassbridge.IsStatus(err, cassbridge.StatusDriverUnavailable))
	assert.Zero(t, lib.Outstanding()[nativetest.KindResult])
	assert.Zero(t, lib.BadFrees())
}

func TestMaterializeReleaseOrder(t *testing.T) {
	lib := nativetest.New()
	lib.SetResult(query, nativetest.Table{
		Columns: []nativetest.Column{{Name: "a", Type: native.ValueTypeInt}},
		Rows:    [][]nativetest.Cell{{nativetest.Int(1)}},
	})
	res := execute(t, lib)
	lib.ResetCalls()

	_, err := materialize.Materializer{Lib: lib}.Materialize(context.Background(), res)
	require.NoError(t, err)

	var frees []string
	for _, c := range lib.Calls() {
		if c == "IteratorFree" || c == "ResultFree" {
			frees = append(frees, c)
		}
	}
	assert.Equal(t, []string{"IteratorFree", "ResultFree"}, frees)
}

// MockedHandler is a mock.Mock that implements the slog.Handler interface.
type MockedHandler struct {
	mock.Mock
}

func (h *MockedHandler) Enabled(ctx context.Context, level slog.Level) bool { return true }
func (h *MockedHandler) WithAttrs(attrs []slog.Attr) slog.Handler           { return h }
func (h *MockedHandler) WithGroup(name string) slog.Handler                 { return h }
func (h *MockedHandler) Handle(ctx context.Context, r slog.Record) error {
	args := h.Called(ctx, r)
	return args.Error(0)
}

func TestMaterializeFallbacksAreObservable(t *testing.T) {
	lib := nativetest.New()
	lib.SetResult(query, nativetest.Table{
		Columns: []nativetest.Column{{Name: "a", Type: native.ValueTypeText, NameErr: native.LibIndexOutOfBounds}},
		Rows:    [][]nativetest.Cell{{nativetest.Failing(native.ValueTypeText, native.LibInvalidData)}},
	})
	res := execute(t, lib)

	var handler MockedHandler
	handler.On("Handle", mock.Anything, mock.MatchedBy(func(r slog.Record) bool {
		return r.Level == slog.LevelWarn && r.Message == "decode fallback"
	})).Return(nil)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()
	ctx, span := provider.Tracer("test").Start(context.Background(), "Execute")

	out, err := materialize.Materializer{Lib: lib, Logger: slog.New(&handler)}.Materialize(ctx, res)
	span.End()
	require.NoError(t, err)
	require.Len(t, out.Fallbacks, 2)

	handler.AssertNumberOfCalls(t, "Handle", 2)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Len(t, spans[0].Events(), 2)
	assert.Equal(t, "decode fallback", spans[0].Events()[0].Name)
}

func TestRecord(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.DefaultAllocator)
	defer mem.AssertSize(t, 0)

	_, out := materializeTable(t, nativetest.Table{
		Columns: []nativetest.Column{
			{Name: "id", Type: native.ValueTypeUUID},
			{Name: "name", Type: native.ValueTypeText},
			{Name: "age", Type: native.ValueTypeInt},
			{Name: "score", Type: native.ValueTypeDouble},
			{Name: "active", Type: native.ValueTypeBoolean},
			{Name: "created", Type: native.ValueTypeTimestamp},
			{Name: "payload", Type: native.ValueTypeBlob},
			{Name: "visits", Type: native.ValueTypeCounter},
		},
		Rows: [][]nativetest.Cell{
			{
				nativetest.UUID(sequentialUUID), nativetest.Text("a"), nativetest.Int(30),
				nativetest.Double(9.5), nativetest.Bool(true), nativetest.Timestamp(1000),
				nativetest.Blob([]byte{1, 2}), nativetest.Counter(3),
			},
			{
				nativetest.Null(native.ValueTypeUUID), nativetest.Null(native.ValueTypeText), nativetest.Null(native.ValueTypeInt),
				nativetest.Null(native.ValueTypeDouble), nativetest.Null(native.ValueTypeBoolean), nativetest.Null(native.ValueTypeTimestamp),
				nativetest.Null(native.ValueTypeBlob), nativetest.Null(native.ValueTypeCounter),
			},
		},
	})

	rec, err := out.Record(mem)
	require.NoError(t, err)
	defer rec.Release()

	assert.EqualValues(t, 2, rec.NumRows())
	schema := rec.Schema()
	assert.True(t, arrow.TypeEqual(extensions.NewUUIDType(), schema.Field(0).Type))
	assert.Equal(t, arrow.BinaryTypes.String, schema.Field(1).Type)
	assert.Equal(t, arrow.PrimitiveTypes.Int32, schema.Field(2).Type)
	assert.Equal(t, arrow.FixedWidthTypes.Timestamp_ms, schema.Field(5).Type)
	nativeType, ok := schema.Field(2).Metadata.GetValue(materialize.MetadataKeyNativeType)
	require.True(t, ok)
	assert.Equal(t, "int", nativeType)

	assert.Equal(t, "00010203-0405-0607-0809-0a0b0c0d0e0f", rec.Column(0).(*extensions.UUIDArray).Value(0).String())
	assert.Equal(t, "a", rec.Column(1).(*array.String).Value(0))
	assert.Equal(t, int32(30), rec.Column(2).(*array.Int32).Value(0))
	assert.Equal(t, 9.5, rec.Column(3).(*array.Float64).Value(0))
	assert.True(t, rec.Column(4).(*array.Boolean).Value(0))
	assert.Equal(t, arrow.Timestamp(1000), rec.Column(5).(*array.Timestamp).Value(0))
	assert.Equal(t, []byte{1, 2}, rec.Column(6).(*array.Binary).Value(0))
	assert.Equal(t, int64(3), rec.Column(7).(*array.Int64).Value(0))

	for i := range int(rec.NumCols()) {
		assert.True(t, rec.Column(i).IsNull(1), "column %d", i)
	}
}
