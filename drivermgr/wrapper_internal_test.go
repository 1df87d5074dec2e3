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

package drivermgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCopyN(t *testing.T) {
	assert.Nil(t, copyN(nil, 4))

	src := []byte("native\x00tail")
	assert.Nil(t, copyN(&src[0], 0))

	out := copyN(&src[0], 6)
	assert.Equal(t, []byte("native"), out)
	src[0] = 'N'
	assert.Equal(t, []byte("native"), out)
}

func TestGoBytes(t *testing.T) {
	p, n, keep := goBytes("")
	keep()
	assert.Nil(t, p)
	assert.Zero(t, n)

	p, n, keep = goBytes("ks")
	defer keep()
	assert.NotNil(t, p)
	assert.EqualValues(t, 2, n)
}
