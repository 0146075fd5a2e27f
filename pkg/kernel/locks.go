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

import "errors"

var (
	// ErrBadResource is returned for mutex, semaphore and condition
	// variable IDs that do not name an object.
	ErrBadResource = errors.New("no such synchronization object")

	// ErrNotLocked is returned when unlocking a mutex that is not locked.
	ErrNotLocked = errors.New("mutex not locked")
)

// Mutex is a mutual exclusion lock for user threads.
//
// Lock state is protected by Kernel.mu.
type Mutex interface {
	// Lock acquires the mutex. It is called with no lock held and may give
	// up the CPU.
	Lock(t *Task)

	// Unlock releases the mutex. If ownership passes directly to a waiting
	// task, that task is returned.
	Unlock(t *Task) (*Task, error)

	// Blocking returns true if waiters sleep rather than spin.
	Blocking() bool
}

// SpinMutex is a mutex whose waiters yield the CPU until it is free.
type SpinMutex struct {
	// +checklocks:k.mu
	locked bool
}

// Lock implements Mutex.Lock.
func (m *SpinMutex) Lock(t *Task) {
	for {
		t.k.mu.Lock()
		if !m.locked {
			m.locked = true
			t.k.mu.Unlock()
			return
		}
		t.k.mu.Unlock()
		t.Yield()
	}
}

// Unlock implements Mutex.Unlock.
func (m *SpinMutex) Unlock(t *Task) (*Task, error) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if !m.locked {
		return nil, ErrNotLocked
	}
	m.locked = false
	return nil, nil
}

// Blocking implements Mutex.Blocking.
func (*SpinMutex) Blocking() bool { return false }

// waitQueue is a FIFO of blocked tasks.
type waitQueue []*Task

// popLocked removes and returns the first waiter that is still blocked.
// Killed waiters are dropped.
//
// Preconditions: k.mu must be locked.
func (q *waitQueue) popLocked() *Task {
	for len(*q) > 0 {
		w := (*q)[0]
		*q = (*q)[1:]
		if w.status == TaskBlocked {
			return w
		}
	}
	return nil
}

// BlockingMutex is a mutex whose waiters sleep in FIFO order. Unlock hands
// the mutex directly to the first waiter.
type BlockingMutex struct {
	// +checklocks:k.mu
	locked bool
	// +checklocks:k.mu
	waiters waitQueue
}

// Lock implements Mutex.Lock.
func (m *BlockingMutex) Lock(t *Task) {
	t.k.mu.Lock()
	if !m.locked {
		m.locked = true
		t.k.mu.Unlock()
		return
	}
	m.waiters = append(m.waiters, t)
	t.blockLocked()
}

// Unlock implements Mutex.Unlock.
func (m *BlockingMutex) Unlock(t *Task) (*Task, error) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if !m.locked {
		return nil, ErrNotLocked
	}
	if w := m.waiters.popLocked(); w != nil {
		t.k.wakeupLocked(w)
		return w, nil
	}
	m.locked = false
	return nil, nil
}

// Blocking implements Mutex.Blocking.
func (*BlockingMutex) Blocking() bool { return true }

// Semaphore is a counting semaphore. Up hands a unit directly to the first
// waiter, if any.
type Semaphore struct {
	// +checklocks:k.mu
	count int
	// +checklocks:k.mu
	waiters waitQueue
}

// NewSemaphore returns a semaphore with count free units.
func NewSemaphore(count int) *Semaphore {
	return &Semaphore{count: count}
}

// Down takes a unit, blocking until one is available. It returns true if
// the task blocked and received its unit from Up.
func (s *Semaphore) Down(t *Task) bool {
	t.k.mu.Lock()
	if s.count > 0 {
		s.count--
		t.k.mu.Unlock()
		return false
	}
	s.waiters = append(s.waiters, t)
	t.blockLocked()
	return true
}

// Up releases a unit. If a waiter receives it, the waiter is returned.
func (s *Semaphore) Up(t *Task) *Task {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if w := s.waiters.popLocked(); w != nil {
		t.k.wakeupLocked(w)
		return w
	}
	s.count++
	return nil
}

// Condvar is a condition variable with FIFO waiters.
type Condvar struct {
	// +checklocks:k.mu
	waiters waitQueue
}

// Signal wakes the first waiter, if any, and returns it.
func (c *Condvar) Signal(t *Task) *Task {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if w := c.waiters.popLocked(); w != nil {
		t.k.wakeupLocked(w)
		return w
	}
	return nil
}

// Wait blocks the task until it is signalled. The caller releases and
// reacquires the associated mutex around Wait; since the CPU is not given
// up in between, no signal can be lost.
func (c *Condvar) Wait(t *Task) {
	t.k.mu.Lock()
	c.waiters = append(c.waiters, t)
	t.blockLocked()
}
