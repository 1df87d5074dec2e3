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

// Package driverbase holds what every cassbridge session shares: error
// construction, driver info, logging defaults and OpenTelemetry setup.
package driverbase

import (
	"fmt"

	"github.com/cassbridge/cassbridge"
	"github.com/cassbridge/cassbridge/native"
)

// ErrorHelper helps format errors for cassbridge sessions.
type ErrorHelper struct {
	DriverName string
}

// Errorf returns a cassbridge.Error whose message is prefixed with the
// driver name.
func (helper ErrorHelper) Errorf(code cassbridge.Status, message string, format ...any) error {
	return cassbridge.Error{
		Code: code,
		Msg:  fmt.Sprintf("[%s] %s", helper.DriverName, fmt.Sprintf(message, format...)),
	}
}

// NativeErrorf is Errorf for failures reported by the native library.
// The native diagnostic text, when present, is appended to the message.
func (helper ErrorHelper) NativeErrorf(code cassbridge.Status, nativeCode native.ErrorCode, nativeMsg string, message string, format ...any) error {
	msg := fmt.Sprintf(message, format...)
	if nativeMsg != "" {
		msg += ": " + nativeMsg
	} else if nativeCode != native.OK {
		msg += ": " + nativeCode.String()
	}
	return cassbridge.Error{
		Code:       code,
		Msg:        fmt.Sprintf("[%s] %s", helper.DriverName, msg),
		NativeCode: uint32(nativeCode),
	}
}
