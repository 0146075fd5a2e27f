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

// vector is a sparse resource vector. Missing entries are zero.
type vector map[int]int

func (v vector) add(r, n int) {
	if c := v[r] + n; c > 0 {
		v[r] = c
	} else {
		delete(v, r)
	}
}

// Banker tracks counted resources for the banker's algorithm.
//
// available is the number of free instances per resource. allocation and
// request are per-thread sparse vectors of held and outstanding instances.
type Banker struct {
	available  vector
	allocation map[int]vector
	request    map[int]vector
}

// NewBanker returns a banker with no resources.
func NewBanker() *Banker {
	return &Banker{
		available:  make(vector),
		allocation: make(map[int]vector),
		request:    make(map[int]vector),
	}
}

// AddResource registers resource r with count free instances, replacing any
// previous state for r.
func (b *Banker) AddResource(r, count int) {
	delete(b.available, r)
	b.available.add(r, count)
}

func row(m map[int]vector, tid int) vector {
	v, ok := m[tid]
	if !ok {
		v = make(vector)
		m[tid] = v
	}
	return v
}

func (b *Banker) dropEmpty(tid int) {
	if len(b.allocation[tid]) == 0 {
		delete(b.allocation, tid)
	}
	if len(b.request[tid]) == 0 {
		delete(b.request, tid)
	}
}

// Request records that tid wants one more instance of r.
func (b *Banker) Request(tid, r int) {
	row(b.request, tid).add(r, 1)
}

// Cancel drops one outstanding request of tid for r.
func (b *Banker) Cancel(tid, r int) {
	row(b.request, tid).add(r, -1)
	b.dropEmpty(tid)
}

// Acquire moves one instance of r from available to tid, satisfying one of
// its outstanding requests.
func (b *Banker) Acquire(tid, r int) {
	row(b.request, tid).add(r, -1)
	row(b.allocation, tid).add(r, 1)
	b.available.add(r, -1)
	b.dropEmpty(tid)
}

// Release returns one instance of r to available. A thread that releases
// more than it was allocated keeps a zero allocation; the instance still
// becomes available.
func (b *Banker) Release(tid, r int) {
	row(b.allocation, tid).add(r, -1)
	b.available.add(r, 1)
	b.dropEmpty(tid)
}

// Handoff transfers one instance of r from one thread directly to a waiter
// whose request it satisfies. Available is unchanged.
func (b *Banker) Handoff(from, to, r int) {
	row(b.allocation, from).add(r, -1)
	row(b.allocation, to).add(r, 1)
	row(b.request, to).add(r, -1)
	b.dropEmpty(from)
	b.dropEmpty(to)
}

// ForgetThread drops every allocation and request of tid. Held instances
// are not returned to available: a thread that exits holding them can never
// release them.
func (b *Banker) ForgetThread(tid int) {
	delete(b.allocation, tid)
	delete(b.request, tid)
}

// Available returns the free instances of r.
func (b *Banker) Available(r int) int {
	return b.available[r]
}

// Allocation returns the instances of r held by tid.
func (b *Banker) Allocation(tid, r int) int {
	return b.allocation[tid][r]
}

// Requested returns the outstanding instances of r wanted by tid.
func (b *Banker) Requested(tid, r int) int {
	return b.request[tid][r]
}

// Safe runs the safety simulation: starting from work = available, it
// repeatedly finishes any thread whose whole request vector fits in work and
// returns its allocation to work. The state is safe if every thread
// finishes.
func (b *Banker) Safe() bool {
	work := make(vector, len(b.available))
	for r, n := range b.available {
		work[r] = n
	}
	unfinished := make(map[int]struct{})
	for tid := range b.allocation {
		unfinished[tid] = struct{}{}
	}
	for tid := range b.request {
		unfinished[tid] = struct{}{}
	}

	for len(unfinished) > 0 {
		progress := false
		for tid := range unfinished {
			if !b.fits(tid, work) {
				continue
			}
			for r, n := range b.allocation[tid] {
				work[r] += n
			}
			delete(unfinished, tid)
			progress = true
		}
		if !progress {
			return false
		}
	}
	return true
}

func (b *Banker) fits(tid int, work vector) bool {
	for r, n := range b.request[tid] {
		if n > work[r] {
			return false
		}
	}
	return true
}

// Check records a request of tid for r and runs the safety simulation. If
// the result is unsafe the request is withdrawn and ErrDeadlock is returned,
// leaving the state as it was.
func (b *Banker) Check(tid, r int) error {
	b.Request(tid, r)
	if !b.Safe() {
		b.Cancel(tid, r)
		return fmt.Errorf("%w: thread %d on semaphore %d", ErrDeadlock, tid, r)
	}
	return nil
}
