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

package kernel

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestIDAllocatorRecycles(t *testing.T) {
	var a idAllocator
	var got []int
	for range 3 {
		got = append(got, a.alloc())
	}
	a.release(0)
	a.release(2)
	got = append(got, a.alloc(), a.alloc(), a.alloc())
	if diff := cmp.Diff([]int{0, 1, 2, 2, 0, 3}, got); diff != "" {
		t.Errorf("allocation order mismatch (-want +got):\n%s", diff)
	}
}

func TestIDAllocatorBadRelease(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func(a *idAllocator)
	}{
		{
			name: "unallocated",
			fn:   func(a *idAllocator) { a.release(5) },
		},
		{
			name: "negative",
			fn:   func(a *idAllocator) { a.release(-1) },
		},
		{
			name: "double",
			fn: func(a *idAllocator) {
				a.release(0)
				a.release(0)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := idAllocator{}
			a.alloc()
			defer func() {
				if recover() == nil {
					t.Errorf("release did not panic")
				}
			}()
			tc.fn(&a)
		})
	}
}

func TestTimerQueueOrder(t *testing.T) {
	q := newTimerQueue()
	base := time.Unix(0, 0)
	a, b, c := &Task{tid: 1}, &Task{tid: 2}, &Task{tid: 3}
	q.add(base.Add(30*time.Millisecond), a)
	q.add(base.Add(10*time.Millisecond), b)
	e := q.add(base.Add(10*time.Millisecond), c)

	next, ok := q.next()
	if !ok || !next.Equal(base.Add(10*time.Millisecond)) {
		t.Fatalf("next() = %v, %t, want %v, true", next, ok, base.Add(10*time.Millisecond))
	}

	tids := func(es []*timerEntry) []int {
		var r []int
		for _, e := range es {
			r = append(r, e.t.tid)
		}
		return r
	}
	if got := tids(q.expire(base.Add(5 * time.Millisecond))); len(got) != 0 {
		t.Errorf("expire before first expiry returned %v", got)
	}
	if diff := cmp.Diff([]int{2, 3}, tids(q.expire(base.Add(10*time.Millisecond)))); diff != "" {
		t.Errorf("expire mismatch (-want +got):\n%s", diff)
	}

	q.add(base.Add(20*time.Millisecond), c)
	q.remove(e)
	if got, want := q.len(), 2; got != want {
		t.Errorf("len() = %d, want %d", got, want)
	}
	if diff := cmp.Diff([]int{3, 1}, tids(q.expire(base.Add(time.Second)))); diff != "" {
		t.Errorf("expire mismatch (-want +got):\n%s", diff)
	}
	if _, ok := q.next(); ok {
		t.Errorf("next() on empty queue succeeded")
	}
}

func TestUserStackTop(t *testing.T) {
	if got, want := userStackTop(0), userStacksTop; got != want {
		t.Errorf("userStackTop(0) = %v, want %v", got, want)
	}
	// Adjacent stacks are separated by one unmapped guard page.
	if got, want := userStackTop(1), userStackTop(0)-UserStackSize-0x1000; got != want {
		t.Errorf("userStackTop(1) = %v, want %v", got, want)
	}
}
