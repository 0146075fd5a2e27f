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

// Package sched implements stride scheduling.
//
// Every schedulable entity carries a stride, the distance it has advanced so
// far, and a priority. The queue always runs the entity that has advanced
// least, and charges it BigStride/Priority for the quantum it is about to
// use, so over time each entity receives a share of the CPU proportional to
// its priority.
package sched

import (
	"errors"
	"fmt"
)

const (
	// DefaultBigStride is the pass distance divided among priorities.
	DefaultBigStride = 255

	// DefaultPriority is the priority of new entities.
	DefaultPriority = 16

	// MinPriority is the lowest priority that can be set.
	MinPriority = 2
)

// ErrInvalidPriority is returned by SetPriority for priorities below
// MinPriority.
var ErrInvalidPriority = errors.New("invalid priority")

// Entity is the scheduling state of one thread.
type Entity struct {
	// Stride is the accumulated pass value.
	Stride uint64

	// Priority is the scheduling weight, at least MinPriority.
	Priority uint64
}

// NewEntity returns an entity with the default priority and no stride.
func NewEntity() Entity {
	return Entity{Priority: DefaultPriority}
}

// SetPriority sets the entity's priority.
func (e *Entity) SetPriority(p int64) error {
	if p < MinPriority {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, p)
	}
	e.Priority = uint64(p)
	return nil
}

// Schedulable is implemented by anything that can be queued.
type Schedulable interface {
	comparable

	// SchedEntity returns the entity's scheduling state. The queue mutates
	// it only in Fetch.
	SchedEntity() *Entity
}

// Queue is a stride scheduling ready queue.
//
// Queue does no locking; callers serialize access.
type Queue[T Schedulable] struct {
	bigStride uint64
	ready     []T
}

// NewQueue returns an empty queue. bigStride of 0 selects DefaultBigStride.
func NewQueue[T Schedulable](bigStride uint64) *Queue[T] {
	if bigStride == 0 {
		bigStride = DefaultBigStride
	}
	return &Queue[T]{bigStride: bigStride}
}

// Add appends t to the back of the queue.
func (q *Queue[T]) Add(t T) {
	q.ready = append(q.ready, t)
}

// Fetch removes and returns the queued entity with the smallest stride;
// among equal strides the one queued first wins. The returned entity is
// charged for its next quantum. ok is false if the queue is empty.
func (q *Queue[T]) Fetch() (t T, ok bool) {
	if len(q.ready) == 0 {
		return t, false
	}
	best := 0
	for i := 1; i < len(q.ready); i++ {
		if q.ready[i].SchedEntity().Stride < q.ready[best].SchedEntity().Stride {
			best = i
		}
	}
	t = q.ready[best]
	q.ready = append(q.ready[:best], q.ready[best+1:]...)

	e := t.SchedEntity()
	prio := e.Priority
	if prio < MinPriority {
		prio = MinPriority
	}
	e.Stride += q.bigStride / prio
	return t, true
}

// Remove removes t from the queue without charging it. It returns false if t
// was not queued.
func (q *Queue[T]) Remove(t T) bool {
	for i, r := range q.ready {
		if r == t {
			q.ready = append(q.ready[:i], q.ready[i+1:]...)
			return true
		}
	}
	return false
}

// Contains returns true if t is queued.
func (q *Queue[T]) Contains(t T) bool {
	for _, r := range q.ready {
		if r == t {
			return true
		}
	}
	return false
}

// Len returns the number of queued entities.
func (q *Queue[T]) Len() int {
	return len(q.ready)
}
