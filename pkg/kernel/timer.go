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
	"time"

	"github.com/google/btree"
)

// timerEntry is a pending wakeup of a sleeping task.
type timerEntry struct {
	expiry time.Time

	// seq orders entries with equal expiry by registration.
	seq uint64

	t *Task
}

func timerLess(a, b *timerEntry) bool {
	if !a.expiry.Equal(b.expiry) {
		return a.expiry.Before(b.expiry)
	}
	return a.seq < b.seq
}

// timerQueue orders sleeping tasks by expiry.
type timerQueue struct {
	tree *btree.BTreeG[*timerEntry]
	seq  uint64
}

func newTimerQueue() *timerQueue {
	return &timerQueue{tree: btree.NewG(8, timerLess)}
}

func (q *timerQueue) add(expiry time.Time, t *Task) *timerEntry {
	e := &timerEntry{expiry: expiry, seq: q.seq, t: t}
	q.seq++
	q.tree.ReplaceOrInsert(e)
	return e
}

func (q *timerQueue) remove(e *timerEntry) {
	q.tree.Delete(e)
}

// next returns the earliest expiry.
func (q *timerQueue) next() (time.Time, bool) {
	e, ok := q.tree.Min()
	if !ok {
		return time.Time{}, false
	}
	return e.expiry, true
}

// expire removes and returns every entry that expires at or before now, in
// order.
func (q *timerQueue) expire(now time.Time) []*timerEntry {
	var due []*timerEntry
	for {
		e, ok := q.tree.Min()
		if !ok || e.expiry.After(now) {
			return due
		}
		q.tree.DeleteMin()
		due = append(due, e)
	}
}

func (q *timerQueue) len() int {
	return q.tree.Len()
}

// checkTimersLocked wakes every task whose sleep has expired.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) checkTimersLocked() {
	for _, e := range k.timers.expire(k.clock.Now()) {
		e.t.timer = nil
		k.wakeupLocked(e.t)
	}
}

// Sleep blocks the task for at least d.
func (t *Task) Sleep(d time.Duration) {
	k := t.k
	k.mu.Lock()
	t.timer = k.timers.add(k.clock.Now().Add(d), t)
	t.blockLocked()
}
