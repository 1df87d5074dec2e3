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
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogNamePrefix = "cassbridge.go"
	defaultFileSizeMaxKb = int64(1024)
	defaultFileCountMax  = 100
	defaultTraceFileExt  = ".jsonl"
)

type rotatingFileWriterConfig struct {
	folderPath    string
	logNamePrefix string
	fileSizeMaxKb int64
	fileCountMax  int
}

// RotatingFileWriterOption configures a RotatingFileWriter.
type RotatingFileWriterOption func(*rotatingFileWriterConfig)

// WithTracingFolderPath sets the folder trace files are written to.
// Defaults to <user config dir>/.cassbridge/traces.
func WithTracingFolderPath(path string) RotatingFileWriterOption {
	return func(cfg *rotatingFileWriterConfig) { cfg.folderPath = path }
}

func WithLogNamePrefix(prefix string) RotatingFileWriterOption {
	return func(cfg *rotatingFileWriterConfig) { cfg.logNamePrefix = prefix }
}

func WithFileSizeMaxKb(kb int64) RotatingFileWriterOption {
	return func(cfg *rotatingFileWriterConfig) { cfg.fileSizeMaxKb = kb }
}

func WithFileCountMax(n int) RotatingFileWriterOption {
	return func(cfg *rotatingFileWriterConfig) { cfg.fileCountMax = n }
}

func newRotatingFileWriterConfig(options ...RotatingFileWriterOption) (cfg rotatingFileWriterConfig, err error) {
	cfg = rotatingFileWriterConfig{
		logNamePrefix: defaultLogNamePrefix,
		fileSizeMaxKb: defaultFileSizeMaxKb,
		fileCountMax:  defaultFileCountMax,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.folderPath) == "" {
		if cfg.folderPath, err = defaultTracingFolderPath(); err != nil {
			return
		}
	}
	if strings.TrimSpace(cfg.logNamePrefix) == "" {
		cfg.logNamePrefix = defaultLogNamePrefix
	}
	if cfg.fileSizeMaxKb <= 0 {
		cfg.fileSizeMaxKb = defaultFileSizeMaxKb
	}
	if cfg.fileCountMax <= 0 {
		cfg.fileCountMax = defaultFileCountMax
	}

	const folderPermissions = 0755
	if err = os.MkdirAll(cfg.folderPath, folderPermissions); err != nil {
		return
	}
	// fail early if the folder is not writable
	probe, err := os.CreateTemp(cfg.folderPath, cfg.logNamePrefix)
	if err != nil {
		return
	}
	err = errors.Join(probe.Close(), os.Remove(probe.Name()))
	return
}

func defaultTracingFolderPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".cassbridge", "traces"), nil
}

// RotatingFileWriter writes to trace files named
// "<prefix>-<UTC date/time>.jsonl" in a folder. A file that reaches the
// size limit is closed and a new one started; once more than the
// maximum number of files exist the oldest are removed.
//
// It is safe for concurrent use.
type RotatingFileWriter struct {
	mu      sync.Mutex
	cfg     rotatingFileWriterConfig
	current *os.File
}

func NewRotatingFileWriter(options ...RotatingFileWriterOption) (*RotatingFileWriter, error) {
	cfg, err := newRotatingFileWriterConfig(options...)
	if err != nil {
		return nil, err
	}
	return &RotatingFileWriter{cfg: cfg}, nil
}

func (w *RotatingFileWriter) FolderPath() string    { return w.cfg.folderPath }
func (w *RotatingFileWriter) LogNamePrefix() string { return w.cfg.logNamePrefix }
func (w *RotatingFileWriter) FileSizeMaxKb() int64  { return w.cfg.fileSizeMaxKb }
func (w *RotatingFileWriter) FileCountMax() int     { return w.cfg.fileCountMax }

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.maybeRotate(); err != nil {
		return 0, err
	}
	if err := w.ensureCurrent(); err != nil {
		return 0, err
	}
	return w.current.Write(p)
}

// Stat describes the file currently written to.
func (w *RotatingFileWriter) Stat() (fs.FileInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return nil, errors.New("no trace file is open")
	}
	return w.current.Stat()
}

// Files lists the trace files of this writer in creation order.
func (w *RotatingFileWriter) Files() ([]string, error) {
	return w.logFiles()
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeCurrent()
}

// Clear closes the writer and removes all of its trace files.
func (w *RotatingFileWriter) Clear() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.closeCurrent(); err != nil {
		return err
	}
	files, err := w.logFiles()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

func (w *RotatingFileWriter) closeCurrent() error {
	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

func (w *RotatingFileWriter) maybeRotate() error {
	if w.current == nil {
		return nil
	}
	info, err := w.current.Stat()
	if err != nil {
		return err
	}
	if info.Size() < w.cfg.fileSizeMaxKb*1024 {
		return nil
	}
	if err := w.closeCurrent(); err != nil {
		return err
	}
	return w.removeOldFiles()
}

func (w *RotatingFileWriter) ensureCurrent() error {
	const (
		permissions = 0666 // Windows needs write access to reopen
		createFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
		appendFlags = os.O_APPEND | os.O_WRONLY
	)
	if w.current != nil {
		return nil
	}
	if candidate, ok := w.candidateFile(); ok {
		if f, err := os.OpenFile(candidate, appendFlags, permissions); err == nil {
			w.current = f
			return nil
		}
	}
	f, err := os.OpenFile(w.newFileName(), createFlags, permissions)
	if err != nil {
		return err
	}
	w.current = f
	return nil
}

func (w *RotatingFileWriter) newFileName() string {
	stamp := time.Now().UTC().Format("2006-01-02-15-04-05.000000000")
	return filepath.Join(w.cfg.folderPath, w.cfg.logNamePrefix+"-"+stamp+defaultTraceFileExt)
}

// candidateFile returns the newest trace file if it still has room.
func (w *RotatingFileWriter) candidateFile() (string, bool) {
	files, err := w.logFiles()
	if err != nil || len(files) < 1 {
		return "", false
	}
	last := files[len(files)-1]
	info, err := os.Stat(last)
	if err != nil || info.Size() >= w.cfg.fileSizeMaxKb*1024 {
		return "", false
	}
	return last, true
}

// removeOldFiles leaves room for one new file within the count limit.
func (w *RotatingFileWriter) removeOldFiles() error {
	files, err := w.logFiles()
	if err != nil {
		return nil
	}
	excess := len(files) - (w.cfg.fileCountMax - 1)
	if excess <= 0 {
		return nil
	}
	for _, f := range files[:excess] {
		if err := os.Remove(f); err != nil {
			return err
		}
	}
	return nil
}

// logFiles relies on filepath.Glob returning names in lexical order,
// which for the timestamped names is creation order.
func (w *RotatingFileWriter) logFiles() ([]string, error) {
	return filepath.Glob(filepath.Join(w.cfg.folderPath, w.cfg.logNamePrefix+"*"+defaultTraceFileExt))
}
