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

package cmd

import (
	"bytes"
	"flag"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/ukern/pkg/apps"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/ukern/config"
)

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(append([]string{"--virtual-time"}, args...)); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatalf("NewFromFlags: %v", err)
	}
	return conf
}

func TestBoot(t *testing.T) {
	for _, tc := range []struct {
		name     string
		args     []string
		programs []string
		want     []string
	}{
		{
			name:     "hello",
			programs: []string{"hello"},
			want:     []string{"Hello, world!", "exited with code 0"},
		},
		{
			name:     "several",
			programs: []string{"hello", "fault", "forktest"},
			want:     []string{"exited with code -2", "forktest OK"},
		},
		{
			name:     "deadlock detection flag",
			args:     []string{"--deadlock-detect"},
			programs: []string{"deadlock_mutex", "philosophers"},
			want:     []string{"deadlock avoided", "philosophers OK"},
		},
		{
			name: "custom init",
			args: []string{"--init=hello"},
			want: []string{"Hello, world!"},
		},
		{
			name: "nothing to run",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var stdout bytes.Buffer
			code, err := Boot(testConfig(t, tc.args...), tc.programs, Stdio{Stdout: &stdout})
			if err != nil {
				t.Fatalf("Boot failed: %v", err)
			}
			if code != 0 {
				t.Errorf("init exited with %d, want 0", code)
			}
			for _, w := range tc.want {
				if !strings.Contains(stdout.String(), w) {
					t.Errorf("output does not contain %q:\n%s", w, stdout.String())
				}
			}
		})
	}
}

func TestBootErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		args     []string
		programs []string
		want     string
	}{
		{
			name:     "unknown program",
			programs: []string{"hello", "nope"},
			want:     `unknown program "nope"`,
		},
		{
			name: "unknown init",
			args: []string{"--init=nope"},
			want: kernel.ErrNoImage.Error(),
		},
		{
			name:     "too few frames",
			args:     []string{"--frames=4"},
			programs: []string{"hello"},
			want:     "creating initial process",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Boot(testConfig(t, tc.args...), tc.programs, Stdio{})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Boot() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}

func TestWriteList(t *testing.T) {
	r := apps.NewRegistry()

	var quiet bytes.Buffer
	if err := writeList(&quiet, r, true); err != nil {
		t.Fatalf("writeList failed: %v", err)
	}
	got := strings.Split(strings.TrimSuffix(quiet.String(), "\n"), "\n")
	if diff := cmp.Diff(r.Names(), got); diff != "" {
		t.Errorf("quiet list mismatch (-want +got):\n%s", diff)
	}

	var table bytes.Buffer
	if err := writeList(&table, r, false); err != nil {
		t.Fatalf("writeList failed: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(table.String(), "\n"), "\n")
	if len(lines) != len(got)+1 {
		t.Fatalf("table has %d lines, want %d:\n%s", len(lines), len(got)+1, table.String())
	}
	if fields := strings.Fields(lines[0]); !cmp.Equal(fields, []string{"NAME", "DESCRIPTION"}) {
		t.Errorf("header = %q", lines[0])
	}
	p, _ := r.Lookup("hello")
	found := false
	for _, l := range lines[1:] {
		if strings.HasPrefix(l, "hello ") && strings.HasSuffix(l, p.Description) {
			found = true
		}
	}
	if !found {
		t.Errorf("table has no row for hello:\n%s", table.String())
	}
}
