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

// Package sqldriver is a wrapper around cassbridge sessions to support
// the standard golang database/sql package, described here:
// https://go.dev/src/database/sql/doc.txt
//
// This allows any native library bound through session.Driver to be
// used with the database/sql package of the standard library.
//
// Registering the driver can be done by importing this and then running
//
//	sql.Register("cassandra", sqldriver.Driver{drv})
//
// Statements are sent as plain CQL text. Bound parameters and
// transactions are not supported.
package sqldriver
