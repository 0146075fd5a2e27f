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
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type replaceOpts map[string]string

func (o replaceOpts) Build(pattern string) string {
	for k, v := range o {
		pattern = strings.ReplaceAll(pattern, k, v)
	}
	return pattern
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	opts := replaceOpts{"%TIMESTAMP%": "now", "%COMMAND%": "run"}
	for _, tc := range []struct {
		name    string
		pattern string
		want    string
	}{
		{
			name:    "file",
			pattern: filepath.Join(dir, "a", "debug.%COMMAND%.log"),
			want:    filepath.Join(dir, "a", "debug.run.log"),
		},
		{
			name:    "directory",
			pattern: filepath.Join(dir, "b") + "/",
			want:    filepath.Join(dir, "b", "ukern.log.now.run"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for range 2 {
				f, err := OpenFile(tc.pattern, opts)
				if err != nil {
					t.Fatalf("OpenFile(%q) failed: %v", tc.pattern, err)
				}
				if f.Name() != tc.want {
					t.Errorf("opened %q, want %q", f.Name(), tc.want)
				}
				f.WriteString("line\n")
				f.Close()
			}
			b, err := os.ReadFile(tc.want)
			if err != nil {
				t.Fatal(err)
			}
			if got := string(b); got != "line\nline\n" {
				t.Errorf("file holds %q, want two appended lines", got)
			}
		})
	}

	if f, err := OpenFile("", opts); f != nil || err != nil {
		t.Errorf("OpenFile(\"\") = %v, %v, want nil, nil", f, err)
	}
}
