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

import "fmt"

// allocSlot stores v in the first empty slot, or appends it, and returns the
// slot index.
func allocSlot[T comparable](slots []T, v T) ([]T, int) {
	var zero T
	for i, s := range slots {
		if s == zero {
			slots[i] = v
			return slots, i
		}
	}
	return append(slots, v), len(slots)
}

// lookupSlot returns slots[id] if it is in range and not empty.
func lookupSlot[T comparable](slots []T, id int, kind string) (T, error) {
	var zero T
	if id < 0 || id >= len(slots) || slots[id] == zero {
		return zero, fmt.Errorf("%w: %s %d", ErrBadResource, kind, id)
	}
	return slots[id], nil
}

// MutexCreate creates a mutex in the task's process and returns its ID.
func (t *Task) MutexCreate(blocking bool) int {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	var m Mutex = &SpinMutex{}
	if blocking {
		m = &BlockingMutex{}
	}
	var id int
	p.mutexes, id = allocSlot(p.mutexes, m)
	return id
}

// MutexLock acquires mutex id. With deadlock detection enabled, a request
// that would close a wait-for cycle fails with deadlock.ErrDeadlock and
// changes nothing.
func (t *Task) MutexLock(id int) error {
	p := t.Process()
	p.mu.Lock()
	m, err := lookupSlot(p.mutexes, id, "mutex")
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if p.deadlockDetect {
		if err := p.mutexGraph.Check(t.tid, id); err != nil {
			p.mu.Unlock()
			t.Warningf("mutex_lock rejected: %v", err)
			return err
		}
	}
	p.mutexGraph.Request(t.tid, id)
	p.mu.Unlock()

	m.Lock(t)

	p.mu.Lock()
	p.mutexGraph.Acquire(t.tid, id)
	p.mu.Unlock()
	return nil
}

// MutexUnlock releases mutex id.
func (t *Task) MutexUnlock(id int) error {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := lookupSlot(p.mutexes, id, "mutex")
	if err != nil {
		return err
	}
	return p.unlockLocked(t, m, id)
}

// unlockLocked releases mutex id and updates the wait-for state.
//
// Preconditions: p.mu must be locked.
func (p *Process) unlockLocked(t *Task, m Mutex, id int) error {
	next, err := m.Unlock(t)
	if err != nil {
		return fmt.Errorf("mutex %d: %w", id, err)
	}
	p.mutexGraph.Release(id)
	if next != nil {
		p.mutexGraph.Acquire(next.tid, id)
	}
	return nil
}

// SemaphoreCreate creates a semaphore with count units in the task's
// process and returns its ID.
func (t *Task) SemaphoreCreate(count int) (int, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: semaphore count %d", ErrInvalidArgument, count)
	}
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	var id int
	p.semaphores, id = allocSlot(p.semaphores, NewSemaphore(count))
	p.banker.AddResource(id, count)
	return id, nil
}

// SemaphoreUp releases a unit of semaphore id.
func (t *Task) SemaphoreUp(id int) error {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := lookupSlot(p.semaphores, id, "semaphore")
	if err != nil {
		return err
	}
	if w := s.Up(t); w != nil {
		p.banker.Handoff(t.tid, w.tid, id)
	} else {
		p.banker.Release(t.tid, id)
	}
	return nil
}

// SemaphoreDown takes a unit of semaphore id. With deadlock detection
// enabled, a request that leaves the process in an unsafe state fails with
// deadlock.ErrDeadlock and changes nothing.
func (t *Task) SemaphoreDown(id int) error {
	p := t.Process()
	p.mu.Lock()
	s, err := lookupSlot(p.semaphores, id, "semaphore")
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if p.deadlockDetect {
		if err := p.banker.Check(t.tid, id); err != nil {
			p.mu.Unlock()
			t.Warningf("semaphore_down rejected: %v", err)
			return err
		}
	} else {
		p.banker.Request(t.tid, id)
	}
	p.mu.Unlock()

	if !s.Down(t) {
		p.mu.Lock()
		p.banker.Acquire(t.tid, id)
		p.mu.Unlock()
	}
	return nil
}

// CondvarCreate creates a condition variable in the task's process and
// returns its ID.
func (t *Task) CondvarCreate() int {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	var id int
	p.condvars, id = allocSlot(p.condvars, &Condvar{})
	return id
}

// CondvarSignal wakes the first waiter of condition variable id.
func (t *Task) CondvarSignal(id int) error {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	c, err := lookupSlot(p.condvars, id, "condvar")
	if err != nil {
		return err
	}
	c.Signal(t)
	return nil
}

// CondvarWait releases mutex mid, waits on condition variable cid and
// reacquires the mutex. Reacquiring is not subject to deadlock detection.
func (t *Task) CondvarWait(cid, mid int) error {
	p := t.Process()
	p.mu.Lock()
	c, err := lookupSlot(p.condvars, cid, "condvar")
	if err != nil {
		p.mu.Unlock()
		return err
	}
	m, err := lookupSlot(p.mutexes, mid, "mutex")
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if err := p.unlockLocked(t, m, mid); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	c.Wait(t)

	p.mu.Lock()
	p.mutexGraph.Request(t.tid, mid)
	p.mu.Unlock()

	m.Lock(t)

	p.mu.Lock()
	p.mutexGraph.Acquire(t.tid, mid)
	p.mu.Unlock()
	return nil
}

// EnableDeadlockDetect sets the deadlock detection flag of the task's
// process. Only 0 and 1 are accepted.
func (t *Task) EnableDeadlockDetect(v uint64) error {
	switch v {
	case 0, 1:
		t.Process().SetDeadlockDetection(v == 1)
		return nil
	default:
		return fmt.Errorf("%w: deadlock detect flag %d", ErrInvalidArgument, v)
	}
}
