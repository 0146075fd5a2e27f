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

package deadlock

import (
	"errors"
	"testing"
)

func TestMutexNoHolder(t *testing.T) {
	g := NewMutexGraph()
	if g.WouldDeadlock(0, 0) {
		t.Errorf("free mutex reported as deadlock")
	}
}

func TestMutexSelfDeadlock(t *testing.T) {
	g := NewMutexGraph()
	g.Acquire(1, 0)
	if err := g.Check(1, 0); !errors.Is(err, ErrDeadlock) {
		t.Errorf("relock by holder: got %v, want %v", err, ErrDeadlock)
	}
}

func TestMutexTwoThreadCycle(t *testing.T) {
	g := NewMutexGraph()
	g.Acquire(1, 0)
	g.Acquire(2, 1)

	// Thread 1 wants mutex 1, held by thread 2 which waits for nothing.
	if err := g.Check(1, 1); err != nil {
		t.Fatalf("first cross request: %v", err)
	}
	g.Request(1, 1)

	// Thread 2 wants mutex 0, held by thread 1 which waits for mutex 1,
	// held by thread 2.
	if err := g.Check(2, 0); !errors.Is(err, ErrDeadlock) {
		t.Fatalf("second cross request: got %v, want %v", err, ErrDeadlock)
	}

	// The rejection left no request behind for thread 2.
	if mid, ok := g.Waiting(2); ok {
		t.Errorf("thread 2 waiting for mutex %d after rejection", mid)
	}
}

func TestMutexLongChain(t *testing.T) {
	g := NewMutexGraph()
	// Thread i holds mutex i and waits for mutex i+1, for i in 1..4.
	for i := 1; i <= 5; i++ {
		g.Acquire(i, i)
	}
	for i := 1; i <= 4; i++ {
		g.Request(i, i+1)
	}
	if g.WouldDeadlock(6, 1) {
		t.Errorf("outsider joining an open chain reported as deadlock")
	}
	if !g.WouldDeadlock(5, 1) {
		t.Errorf("tail closing the chain not reported")
	}
}

func TestMutexRelease(t *testing.T) {
	g := NewMutexGraph()
	g.Acquire(1, 0)
	g.Acquire(2, 1)
	g.Request(1, 1)
	g.Release(0)
	if _, ok := g.Holder(0); ok {
		t.Errorf("mutex 0 still held after Release")
	}
	if g.WouldDeadlock(2, 0) {
		t.Errorf("released mutex reported as deadlock")
	}
}

func TestMutexForgetThread(t *testing.T) {
	g := NewMutexGraph()
	g.Acquire(1, 0)
	g.Acquire(1, 2)
	g.Request(1, 1)
	g.ForgetThread(1)
	for _, mid := range []int{0, 2} {
		if _, ok := g.Holder(mid); ok {
			t.Errorf("mutex %d still held by forgotten thread", mid)
		}
	}
	if _, ok := g.Waiting(1); ok {
		t.Errorf("forgotten thread still waiting")
	}
}

func TestBankerSafeSequence(t *testing.T) {
	b := NewBanker()
	b.AddResource(0, 2)
	b.AddResource(1, 1)

	// Three threads each take one instance and wait for more; someone can
	// always finish.
	steps := []struct {
		tid, sem int
		block    bool
	}{
		{tid: 1, sem: 0},
		{tid: 2, sem: 0},
		{tid: 3, sem: 1},
		{tid: 1, sem: 1, block: true},
	}
	for _, s := range steps {
		if err := b.Check(s.tid, s.sem); err != nil {
			t.Fatalf("down(%d) by %d rejected: %v", s.sem, s.tid, err)
		}
		if !s.block {
			b.Acquire(s.tid, s.sem)
		}
	}
	if got := b.Requested(1, 1); got != 1 {
		t.Errorf("Requested(1, 1) = %d, want 1", got)
	}

	// Thread 3 ups semaphore 1 straight to the waiter.
	b.Handoff(3, 1, 1)
	if b.Allocation(1, 1) != 1 || b.Allocation(3, 1) != 0 || b.Requested(1, 1) != 0 {
		t.Errorf("handoff bookkeeping wrong: alloc1=%d alloc3=%d req1=%d",
			b.Allocation(1, 1), b.Allocation(3, 1), b.Requested(1, 1))
	}
	if b.Available(1) != 0 {
		t.Errorf("Available(1) = %d after handoff, want 0", b.Available(1))
	}
}

func TestBankerUnsafeOppositeOrder(t *testing.T) {
	b := NewBanker()
	b.AddResource(0, 1)
	b.AddResource(1, 1)

	if err := b.Check(1, 0); err != nil {
		t.Fatal(err)
	}
	b.Acquire(1, 0)
	if err := b.Check(2, 1); err != nil {
		t.Fatal(err)
	}
	b.Acquire(2, 1)

	// Thread 1 blocks on 1; thread 2 can still finish and release it.
	if err := b.Check(1, 1); err != nil {
		t.Fatalf("first cross down rejected: %v", err)
	}

	// Thread 2 asking for 0 leaves nobody able to finish.
	if err := b.Check(2, 0); !errors.Is(err, ErrDeadlock) {
		t.Fatalf("second cross down: got %v, want %v", err, ErrDeadlock)
	}
	if got := b.Requested(2, 0); got != 0 {
		t.Errorf("rejected request left behind: Requested(2, 0) = %d", got)
	}
	if !b.Safe() {
		t.Errorf("state unsafe after rejection")
	}
}

func TestBankerRelease(t *testing.T) {
	b := NewBanker()
	b.AddResource(0, 1)
	b.Request(1, 0)
	b.Acquire(1, 0)
	if b.Available(0) != 0 || b.Allocation(1, 0) != 1 {
		t.Fatalf("acquire bookkeeping wrong")
	}
	b.Release(1, 0)
	if b.Available(0) != 1 || b.Allocation(1, 0) != 0 {
		t.Errorf("release bookkeeping wrong: avail=%d alloc=%d", b.Available(0), b.Allocation(1, 0))
	}

	// Up from a thread holding nothing still frees an instance.
	b.Release(2, 0)
	if b.Available(0) != 2 || b.Allocation(2, 0) != 0 {
		t.Errorf("unowned release: avail=%d alloc=%d", b.Available(0), b.Allocation(2, 0))
	}
}

func TestBankerForgetThread(t *testing.T) {
	b := NewBanker()
	b.AddResource(0, 0)
	b.Acquire(1, 1)
	b.Request(2, 0)
	if b.Safe() {
		t.Fatalf("request nobody can satisfy reported safe")
	}
	b.ForgetThread(2)
	if !b.Safe() {
		t.Errorf("state unsafe after forgetting the waiter")
	}
	if b.Requested(2, 0) != 0 {
		t.Errorf("forgotten thread still requesting")
	}
}

func TestBankerForgetHolder(t *testing.T) {
	b := NewBanker()
	b.AddResource(0, 1)
	b.Request(1, 0)
	b.Acquire(1, 0)
	b.ForgetThread(1)
	if b.Available(0) != 0 || b.Allocation(1, 0) != 0 {
		t.Errorf("after forgetting the holder: avail=%d alloc=%d, want 0 and 0", b.Available(0), b.Allocation(1, 0))
	}
	// The lost instance must not be counted on to satisfy a new request.
	if err := b.Check(2, 0); !errors.Is(err, ErrDeadlock) {
		t.Errorf("Check after the holder was forgotten = %v, want ErrDeadlock", err)
	}
	if b.Requested(2, 0) != 0 {
		t.Errorf("rejected request still recorded")
	}
}
