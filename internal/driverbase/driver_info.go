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

package driverbase

import (
	"fmt"
	"runtime/debug"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const UnknownVersion = "(unknown or development build)"

// InfoCode identifies one piece of driver metadata.
type InfoCode uint32

const (
	InfoVendorName InfoCode = iota
	InfoVendorVersion
	InfoDriverName
	InfoDriverVersion
	// The Go module version of the library backing native calls.
	InfoDriverNativeVersion
	// Whether the backend is a foreign shared library (bool).
	InfoDriverForeign
)

type infoValueType int

const (
	infoValueString infoValueType = iota
	infoValueBool
)

var infoValueTypeForInfoCode = map[InfoCode]infoValueType{
	InfoVendorName:          infoValueString,
	InfoVendorVersion:       infoValueString,
	InfoDriverName:          infoValueString,
	InfoDriverVersion:       infoValueString,
	InfoDriverNativeVersion: infoValueString,
	InfoDriverForeign:       infoValueBool,
}

func (c InfoCode) String() string {
	switch c {
	case InfoVendorName:
		return "InfoVendorName"
	case InfoVendorVersion:
		return "InfoVendorVersion"
	case InfoDriverName:
		return "InfoDriverName"
	case InfoDriverVersion:
		return "InfoDriverVersion"
	case InfoDriverNativeVersion:
		return "InfoDriverNativeVersion"
	case InfoDriverForeign:
		return "InfoDriverForeign"
	}
	return fmt.Sprintf("InfoCode(%d)", uint32(c))
}

const (
	// namespace prefix
	otelInfoSemConv attribute.Key = "cassbridge.info."

	otelSemConvInfoVendorName          attribute.Key = otelInfoSemConv + "vendor.name"
	otelSemConvInfoVendorVersion       attribute.Key = otelInfoSemConv + "vendor.version"
	otelSemConvInfoDriverName          attribute.Key = otelInfoSemConv + "driver.name"
	otelSemConvInfoDriverVersion       attribute.Key = otelInfoSemConv + "driver.version"
	otelSemConvInfoDriverNativeVersion attribute.Key = otelInfoSemConv + "driver.native.version"
	otelSemConvInfoDriverForeign       attribute.Key = otelInfoSemConv + "driver.foreign"
)

var otelAttrForInfoCode = map[InfoCode]attribute.Key{
	InfoVendorName:          otelSemConvInfoVendorName,
	InfoVendorVersion:       otelSemConvInfoVendorVersion,
	InfoDriverName:          otelSemConvInfoDriverName,
	InfoDriverVersion:       otelSemConvInfoDriverVersion,
	InfoDriverNativeVersion: otelSemConvInfoDriverNativeVersion,
	InfoDriverForeign:       otelSemConvInfoDriverForeign,
}

var infoDriverVersion string

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			infoDriverVersion = v
		}
		for _, s := range info.Settings {
			if s.Key == "vcs.modified" && s.Value == "true" && infoDriverVersion != "" {
				infoDriverVersion += "-dev"
			}
		}
	}
}

// ModuleVersion returns the version of the named Go module linked into
// the running binary, or UnknownVersion.
func ModuleVersion(path string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return UnknownVersion
	}
	for _, dep := range info.Deps {
		if dep.Path == path || strings.HasPrefix(dep.Path, path+"/") {
			return dep.Version
		}
	}
	return UnknownVersion
}

func DefaultDriverInfo(name string) *DriverInfo {
	version := UnknownVersion
	if infoDriverVersion != "" {
		version = infoDriverVersion
	}
	return &DriverInfo{
		name: name,
		info: map[InfoCode]any{
			InfoVendorName:          "Apache Cassandra",
			InfoVendorVersion:       UnknownVersion,
			InfoDriverName:          fmt.Sprintf("cassbridge %s Driver - Go", name),
			InfoDriverVersion:       version,
			InfoDriverNativeVersion: UnknownVersion,
		},
	}
}

type DriverInfo struct {
	name string
	info map[InfoCode]any
}

func (di *DriverInfo) GetName() string { return di.name }

func (di *DriverInfo) InfoSupportedCodes() []InfoCode {
	codes := make([]InfoCode, 0, len(di.info))
	for code := range di.info {
		codes = append(codes, code)
	}

	// The ordering is in no way part of the API contract.
	sort.SliceStable(codes, func(i, j int) bool {
		return codes[i] < codes[j]
	})
	return codes
}

func (di *DriverInfo) RegisterInfoCode(code InfoCode, value any) error {
	valueType, isStandardInfoCode := infoValueTypeForInfoCode[code]
	if !isStandardInfoCode {
		di.info[code] = value
		return nil
	}

	var err error
	switch valueType {
	case infoValueString:
		if val, ok := value.(string); !ok {
			err = fmt.Errorf("%s: expected info_value %v to be of type %T but found %T", code, value, val, value)
		}
	case infoValueBool:
		if val, ok := value.(bool); !ok {
			err = fmt.Errorf("%s: expected info_value %v to be of type %T but found %T", code, value, val, value)
		}
	}

	if err == nil {
		di.info[code] = value
	}
	return err
}

func (di *DriverInfo) GetInfoForInfoCode(code InfoCode) (any, bool) {
	val, ok := di.info[code]
	return val, ok
}

// Attributes returns the driver info as span attributes.
func (di *DriverInfo) Attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	for _, code := range di.InfoSupportedCodes() {
		attr, ok := otelAttrForInfoCode[code]
		if !ok {
			continue
		}
		switch v := di.info[code].(type) {
		case string:
			attrs = append(attrs, attr.String(v))
		case bool:
			attrs = append(attrs, attr.Bool(v))
		case int64:
			attrs = append(attrs, attr.Int64(v))
		}
	}
	return attrs
}

func SetOTelDriverInfoAttributes(driverInfo *DriverInfo, span trace.Span) {
	span.SetAttributes(driverInfo.Attributes()...)
}
