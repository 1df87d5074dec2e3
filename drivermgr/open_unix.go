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

//go:build darwin || freebsd || linux

package drivermgr

import (
	"os"

	"github.com/bluele/gcache"
	"github.com/ebitengine/purego"
)

// EnvLibraryPath overrides the library Open loads when given an empty
// path.
const EnvLibraryPath = "CASSBRIDGE_LIBCASSANDRA"

// libraries holds the bindings already loaded, keyed by path. Failed
// loads are not cached. Evicted bindings stay loaded since sessions may
// still reference them.
var libraries = gcache.New(16).LRU().
	LoaderFunc(func(key interface{}) (interface{}, error) {
		return load(key.(string))
	}).Build()

// Open loads libcassandra from path. An empty path uses the
// CASSBRIDGE_LIBCASSANDRA environment variable, then DefaultLibraryName
// from the system search path. Opening the same path again returns the
// same Library.
func Open(path string) (*Library, error) {
	if path == "" {
		path = os.Getenv(EnvLibraryPath)
	}
	if path == "" {
		path = DefaultLibraryName
	}
	lib, err := libraries.Get(path)
	if err != nil {
		return nil, err
	}
	return lib.(*Library), nil
}

func load(path string) (*Library, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, unavailable("cannot load %s: %s", path, err)
	}
	lib, err := NewLibrary(handle)
	if err != nil {
		_ = purego.Dlclose(handle)
		return nil, err
	}
	lib.path = path
	return lib, nil
}
