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

package cassbridge

import (
	"bytes"
	"math"

	"github.com/goccy/go-json"
)

// Field is a single decoded cell. Value is one of string, int64,
// float64, bool or nil.
type Field struct {
	Name  string
	Value any
}

// DecodedRow maps column names to decoded scalars, preserving the
// result set's column order.
type DecodedRow []Field

// Get returns the value of the first field called name.
func (r DecodedRow) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r DecodedRow) Names() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Name
	}
	return out
}

// MarshalJSON encodes the row as a JSON object whose keys appear in
// column order.
func (r DecodedRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := r.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r DecodedRow) encode(buf *bytes.Buffer) error {
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalScalar(f.Value)
		if err != nil {
			return err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}

// JSON has no representation for non-finite numbers, so they are
// emitted as strings.
func marshalScalar(v any) ([]byte, error) {
	if f, ok := v.(float64); ok {
		switch {
		case math.IsNaN(f):
			return []byte(`"NaN"`), nil
		case math.IsInf(f, 1):
			return []byte(`"Infinity"`), nil
		case math.IsInf(f, -1):
			return []byte(`"-Infinity"`), nil
		}
	}
	return json.Marshal(v)
}

// QueryOutcome is the ordered sequence of rows produced by a statement.
// int64 values are emitted as JSON numbers, so consumers parsing them
// as IEEE-754 doubles lose precision beyond 2^53.
type QueryOutcome []DecodedRow

// MarshalJSON encodes the outcome as a JSON array. An empty or nil
// outcome encodes as [].
func (q QueryOutcome) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, row := range q {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := row.encode(&buf); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// JSON returns the outcome encoded by MarshalJSON as a string.
func (q QueryOutcome) JSON() (string, error) {
	b, err := q.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(b), nil
}
