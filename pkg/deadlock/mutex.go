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

import "fmt"

// MutexGraph tracks which thread holds each mutex and which mutex each
// thread is waiting for.
//
// A thread waits for at most one mutex and a mutex has at most one holder,
// so the wait-for relation is a set of chains. A cycle closes exactly when a
// thread would wait for a mutex whose chain of holders leads back to it.
type MutexGraph struct {
	// request maps a thread to the mutex it is waiting for.
	request map[int]int

	// alloc maps a mutex to the thread holding it.
	alloc map[int]int
}

// NewMutexGraph returns an empty graph.
func NewMutexGraph() *MutexGraph {
	return &MutexGraph{
		request: make(map[int]int),
		alloc:   make(map[int]int),
	}
}

// WouldDeadlock returns true if tid waiting for mid closes a cycle. It walks
// from mid to its holder, to the mutex that holder waits for, to that
// mutex's holder and so on, and reports a revisited thread.
func (g *MutexGraph) WouldDeadlock(tid, mid int) bool {
	visited := map[int]struct{}{tid: {}}
	for {
		holder, ok := g.alloc[mid]
		if !ok {
			return false
		}
		if _, ok := visited[holder]; ok {
			return true
		}
		visited[holder] = struct{}{}
		next, ok := g.request[holder]
		if !ok {
			return false
		}
		mid = next
	}
}

// Check returns ErrDeadlock if tid waiting for mid closes a cycle.
func (g *MutexGraph) Check(tid, mid int) error {
	if g.WouldDeadlock(tid, mid) {
		return fmt.Errorf("%w: thread %d on mutex %d", ErrDeadlock, tid, mid)
	}
	return nil
}

// Request records that tid is waiting for mid.
func (g *MutexGraph) Request(tid, mid int) {
	g.request[tid] = mid
}

// Cancel drops tid's outstanding request, if any.
func (g *MutexGraph) Cancel(tid int) {
	delete(g.request, tid)
}

// Acquire records that tid now holds mid and clears its request.
func (g *MutexGraph) Acquire(tid, mid int) {
	delete(g.request, tid)
	g.alloc[mid] = tid
}

// Release records that mid has no holder.
func (g *MutexGraph) Release(mid int) {
	delete(g.alloc, mid)
}

// Holder returns the thread holding mid.
func (g *MutexGraph) Holder(mid int) (int, bool) {
	tid, ok := g.alloc[mid]
	return tid, ok
}

// Waiting returns the mutex tid is waiting for.
func (g *MutexGraph) Waiting(tid int) (int, bool) {
	mid, ok := g.request[tid]
	return mid, ok
}

// ForgetThread drops tid's request and every mutex it holds.
func (g *MutexGraph) ForgetThread(tid int) {
	delete(g.request, tid)
	for mid, holder := range g.alloc {
		if holder == tid {
			delete(g.alloc, mid)
		}
	}
}
