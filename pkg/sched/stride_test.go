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

package sched

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type thread struct {
	name string
	Entity
}

func (t *thread) SchedEntity() *Entity {
	return &t.Entity
}

func newThread(name string, prio uint64) *thread {
	return &thread{name: name, Entity: Entity{Priority: prio}}
}

func TestFetchEmpty(t *testing.T) {
	q := NewQueue[*thread](0)
	if _, ok := q.Fetch(); ok {
		t.Errorf("Fetch on empty queue succeeded")
	}
}

func TestFetchOrder(t *testing.T) {
	q := NewQueue[*thread](0)
	a, b, c := newThread("a", 16), newThread("b", 16), newThread("c", 16)
	b.Stride = 5
	q.Add(a)
	q.Add(b)
	q.Add(c)

	// a and c tie at zero; a was queued first.
	var got []string
	for q.Len() > 0 {
		th, _ := q.Fetch()
		got = append(got, th.name)
	}
	if diff := cmp.Diff([]string{"a", "c", "b"}, got); diff != "" {
		t.Errorf("fetch order mismatch (-want +got):\n%s", diff)
	}
	if a.Stride != DefaultBigStride/16 {
		t.Errorf("a.Stride = %d, want %d", a.Stride, DefaultBigStride/16)
	}
	if b.Stride != 5+DefaultBigStride/16 {
		t.Errorf("b.Stride = %d, want %d", b.Stride, 5+DefaultBigStride/16)
	}
}

func TestSetPriority(t *testing.T) {
	var e Entity
	for _, p := range []int64{-1, 0, 1} {
		if err := e.SetPriority(p); !errors.Is(err, ErrInvalidPriority) {
			t.Errorf("SetPriority(%d) = %v, want %v", p, err, ErrInvalidPriority)
		}
	}
	if err := e.SetPriority(2); err != nil || e.Priority != 2 {
		t.Errorf("SetPriority(2) = %v, priority %d", err, e.Priority)
	}
}

func TestRemove(t *testing.T) {
	q := NewQueue[*thread](0)
	a, b := newThread("a", 16), newThread("b", 16)
	q.Add(a)
	q.Add(b)
	if !q.Remove(a) || q.Remove(a) {
		t.Fatalf("Remove returned wrong result")
	}
	if q.Contains(a) || !q.Contains(b) {
		t.Errorf("Contains wrong after Remove")
	}
	if a.Stride != 0 {
		t.Errorf("Remove charged stride %d", a.Stride)
	}
}

// run simulates quanta rounds of a CPU with every thread always ready and
// returns the number of quanta each thread received.
func run(q *Queue[*thread], quanta int) map[string]int {
	counts := make(map[string]int)
	for i := 0; i < quanta; i++ {
		th, ok := q.Fetch()
		if !ok {
			panic("empty queue")
		}
		counts[th.name]++
		q.Add(th)
	}
	return counts
}

func TestProportionalShare(t *testing.T) {
	q := NewQueue[*thread](0)
	prios := map[string]uint64{"p5": 5, "p6": 6, "p7": 7, "p8": 8, "p9": 9, "p10": 10}
	var total uint64
	for name, p := range prios {
		q.Add(newThread(name, p))
		total += p
	}

	const quanta = 45000
	counts := run(q, quanta)
	for name, p := range prios {
		want := float64(p) / float64(total)
		got := float64(counts[name]) / quanta
		if math.Abs(got-want)/want > 0.05 {
			t.Errorf("%s got share %.4f, want %.4f", name, got, want)
		}
	}
}

func TestNoStarvation(t *testing.T) {
	q := NewQueue[*thread](0)
	q.Add(newThread("hi", 255))
	q.Add(newThread("lo", 2))

	// lo advances 127 per quantum and hi 1, so lo must run at least once in
	// every window of 129 quanta.
	counts := run(q, 129)
	if counts["lo"] == 0 {
		t.Errorf("low priority thread never ran: %v", counts)
	}
}

func TestLateArrivalCatchesUp(t *testing.T) {
	q := NewQueue[*thread](0)
	old := newThread("old", 16)
	q.Add(old)
	run(q, 10)

	// A new thread starts at stride zero and runs until it catches up.
	q.Add(newThread("new", 16))
	counts := run(q, 10)
	if counts["new"] != 10 {
		t.Errorf("new thread ran %d of 10 quanta, want 10", counts["new"])
	}
}
