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

package session

import (
	"sort"
	"strconv"
	"time"

	"github.com/cassbridge/cassbridge"
)

const (
	SessionMessageOptionUnknown   = "Unknown session option"
	SessionMessageOptionWriteOnly = "Write-only session option"
)

type config struct {
	contactPoints  string
	port           int
	username       string
	password       string
	connectTimeout uint32
	requestTimeout uint32
	keyspace       string
	waitTimeout    time.Duration
}

// SetOptions applies options in key order. Contact points are applied
// before the port so that both can be given in one call.
func (s *Session) SetOptions(options map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := s.setOption(key, options[key]); err != nil {
			return err
		}
	}
	return nil
}

// setOption requires s.mu.
func (s *Session) setOption(key, val string) error {
	if s.disposed {
		return s.errorHelper.Errorf(cassbridge.StatusInvalidState, "SetOption: session is disposed")
	}

	switch key {
	case cassbridge.OptionKeyContactPoints:
		return s.configure(val, s.cfg.port)
	case cassbridge.OptionKeyPort:
		port, err := strconv.Atoi(val)
		if err != nil {
			return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "invalid value for %s: %q", key, val)
		}
		if s.cfg.contactPoints == "" {
			if port < 1 || port > 65535 {
				return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "Configure: port %d out of range", port)
			}
			s.cfg.port = port
			return nil
		}
		return s.configure(s.cfg.contactPoints, port)
	case cassbridge.OptionKeyUsername, cassbridge.OptionKeyPassword:
		if key == cassbridge.OptionKeyUsername {
			s.cfg.username = val
		} else {
			s.cfg.password = val
		}
		if s.cluster != nil {
			s.lib.ClusterSetCredentials(s.cluster.Ptr(), s.cfg.username, s.cfg.password)
		}
		return nil
	case cassbridge.OptionKeyConnectTimeout, cassbridge.OptionKeyRequestTimeout:
		ms, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "invalid value for %s: %q", key, val)
		}
		if key == cassbridge.OptionKeyConnectTimeout {
			s.cfg.connectTimeout = uint32(ms)
			if s.cluster != nil {
				s.lib.ClusterSetConnectTimeout(s.cluster.Ptr(), s.cfg.connectTimeout)
			}
		} else {
			s.cfg.requestTimeout = uint32(ms)
			if s.cluster != nil {
				s.lib.ClusterSetRequestTimeout(s.cluster.Ptr(), s.cfg.requestTimeout)
			}
		}
		return nil
	case cassbridge.OptionKeyKeyspace:
		s.cfg.keyspace = val
		return nil
	case cassbridge.OptionKeyWaitTimeout:
		if val == "" || val == "0" {
			s.cfg.waitTimeout = 0
			return nil
		}
		d, err := time.ParseDuration(val)
		if err != nil || d < 0 {
			return s.errorHelper.Errorf(cassbridge.StatusInvalidArgument, "invalid value for %s: %q", key, val)
		}
		s.cfg.waitTimeout = d
		return nil
	case cassbridge.OptionKeyTelemetryTraceParent:
		s.tracing.SetTraceParent(val)
		return nil
	default:
		return s.errorHelper.Errorf(cassbridge.StatusNotImplemented, "%s '%s'", SessionMessageOptionUnknown, key)
	}
}

func (s *Session) GetOption(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case cassbridge.OptionKeyContactPoints:
		return s.cfg.contactPoints, nil
	case cassbridge.OptionKeyPort:
		return strconv.Itoa(s.cfg.port), nil
	case cassbridge.OptionKeyUsername:
		return s.cfg.username, nil
	case cassbridge.OptionKeyPassword:
		return "", s.errorHelper.Errorf(cassbridge.StatusNotImplemented, "%s '%s'", SessionMessageOptionWriteOnly, key)
	case cassbridge.OptionKeyConnectTimeout:
		return strconv.FormatUint(uint64(s.cfg.connectTimeout), 10), nil
	case cassbridge.OptionKeyRequestTimeout:
		return strconv.FormatUint(uint64(s.cfg.requestTimeout), 10), nil
	case cassbridge.OptionKeyKeyspace:
		return s.cfg.keyspace, nil
	case cassbridge.OptionKeyWaitTimeout:
		return s.cfg.waitTimeout.String(), nil
	case cassbridge.OptionKeyTelemetryTraceParent:
		return s.tracing.GetTraceParent(), nil
	}
	return "", s.errorHelper.Errorf(cassbridge.StatusNotImplemented, "%s '%s'", SessionMessageOptionUnknown, key)
}
