// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileOpts expands the variables of a log file pattern.
type FileOpts interface {
	// Build returns pattern with its variables replaced.
	Build(pattern string) string
}

// DefaultFileName is the file name used for patterns naming a directory.
const DefaultFileName = "ukern.log.%TIMESTAMP%.%COMMAND%"

// OpenFile opens the log file named by pattern for appending, creating it
// and its parent directories as needed. A pattern ending in "/" names a
// directory that gets a DefaultFileName file. An empty pattern opens
// nothing.
func OpenFile(pattern string, opts FileOpts) (*os.File, error) {
	if pattern == "" {
		return nil, nil
	}
	if strings.HasSuffix(pattern, "/") {
		pattern += DefaultFileName
	}
	path := opts.Build(pattern)
	if err := os.MkdirAll(filepath.Dir(path), 0775); err != nil {
		return nil, fmt.Errorf("creating directory for log file %q: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0664)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}
