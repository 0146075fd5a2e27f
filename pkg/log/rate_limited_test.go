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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

func TestRateLimitedLoggerSuppressedCount(t *testing.T) {
	tw := &testWriter{}
	l := RateLimitedLogger(&BasicLogger{Level: Debug, Emitter: &Writer{Next: tw}}, time.Hour, 2)
	for i := range 5 {
		l.Warningf("fault %d", i)
	}
	if diff := cmp.Diff([]string{"fault 0\n", "fault 1\n"}, tw.lines); diff != "" {
		t.Errorf("forwarded lines mismatch (-want +got):\n%s", diff)
	}
	rl := l.(*rateLimitedLogger)
	if got := rl.dropped.Load(); got != 3 {
		t.Errorf("dropped = %d, want 3", got)
	}

	// The next forwarded message carries the count.
	rl.limit.SetLimit(rate.Inf)
	l.Infof("fault %d", 5)
	if got, want := tw.lines[len(tw.lines)-1], "[3 suppressed] fault 5\n"; got != want {
		t.Errorf("last line = %q, want %q", got, want)
	}
	if !l.IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) = false for a debug logger")
	}
}
