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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newFlagSet(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return testFlags
}

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ukern.toml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t))
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	want := &Config{
		Frames:          8192,
		BigStride:       255,
		DefaultPriority: 16,
		TimeSlice:       10 * time.Millisecond,
		TrapCost:        10 * time.Microsecond,
		Init:            "initproc",
		LogFormat:       "text",
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("NewFromFlags() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromFlags(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--frames=64", "--debug", "--time-slice=5ms", "--big-stride=1000"))
	if err != nil {
		t.Fatal(err)
	}
	if want := 64; c.Frames != want {
		t.Errorf("Frames=%v, want: %v", c.Frames, want)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := 5 * time.Millisecond; c.TimeSlice != want {
		t.Errorf("TimeSlice=%v, want: %v", c.TimeSlice, want)
	}
	if want := uint64(1000); c.BigStride != want {
		t.Errorf("BigStride=%v, want: %v", c.BigStride, want)
	}

	want := []string{"--big-stride=1000", "--frames=64", "--time-slice=5ms", "--debug=true"}
	if diff := cmp.Diff(want, c.ToFlags(), cmpSortStrings); diff != "" {
		t.Errorf("ToFlags() mismatch (-want +got):\n%s", diff)
	}
}

var cmpSortStrings = cmp.Transformer("sort", func(in []string) map[string]bool {
	out := make(map[string]bool)
	for _, s := range in {
		out[s] = true
	}
	return out
})

func TestConfigFile(t *testing.T) {
	path := writeFile(t, strings.Join([]string{
		`frames = 128`,
		`time-slice = "2ms"`,
		`deadlock-detect = true`,
		`init = "hello"`,
	}, "\n"))

	// --frames on the command line overrides the file.
	c, err := NewFromFlags(newFlagSet(t, "--config="+path, "--frames=256"))
	if err != nil {
		t.Fatal(err)
	}
	if want := 256; c.Frames != want {
		t.Errorf("Frames=%v, want: %v", c.Frames, want)
	}
	if want := 2 * time.Millisecond; c.TimeSlice != want {
		t.Errorf("TimeSlice=%v, want: %v", c.TimeSlice, want)
	}
	if !c.DeadlockDetect {
		t.Errorf("DeadlockDetect=false, want: true")
	}
	if want := "hello"; c.Init != want {
		t.Errorf("Init=%v, want: %v", c.Init, want)
	}
	// Values absent from the file keep their defaults.
	if want := uint64(255); c.BigStride != want {
		t.Errorf("BigStride=%v, want: %v", c.BigStride, want)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
	}{
		{name: "unknown key", contents: `no-such-setting = 1`},
		{name: "wrong type", contents: `frames = "many"`},
		{name: "syntax", contents: `frames = `},
		{name: "invalid value", contents: `default-priority = 1`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, tc.contents)
			if _, err := NewFromFlags(newFlagSet(t, "--config="+path)); err == nil {
				t.Errorf("NewFromFlags() with %q succeeded", tc.contents)
			}
		})
	}
	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.toml")
		if _, err := NewFromFlags(newFlagSet(t, "--config="+path)); err == nil {
			t.Errorf("NewFromFlags() with missing file succeeded")
		}
	})
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{name: "frames", args: []string{"--frames=0"}},
		{name: "big-stride", args: []string{"--big-stride=0"}},
		{name: "priority", args: []string{"--default-priority=1"}},
		{name: "time-slice", args: []string{"--time-slice=0"}},
		{name: "trap-cost", args: []string{"--trap-cost=-1us"}},
		{name: "init", args: []string{"--init="}},
		{name: "log-format", args: []string{"--log-format=xml"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewFromFlags(newFlagSet(t, tc.args...)); err == nil {
				t.Errorf("NewFromFlags(%v) succeeded", tc.args)
			}
		})
	}
}

func TestClone(t *testing.T) {
	c, err := NewFromFlags(newFlagSet(t, "--frames=64"))
	if err != nil {
		t.Fatal(err)
	}
	clone := c.Clone()
	if diff := cmp.Diff(c, clone); diff != "" {
		t.Errorf("Clone() mismatch (-want +got):\n%s", diff)
	}
	clone.Frames = 32
	if c.Frames != 64 {
		t.Errorf("modifying the clone changed the original: Frames=%d", c.Frames)
	}
}
