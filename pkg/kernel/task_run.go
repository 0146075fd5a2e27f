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
	"fmt"
	"runtime/debug"

	"gvisor.dev/ukern/pkg/abi"
)

// Entry is code run by a task: a program's main function, a thread body or
// a fork continuation. The return value is the exit code of the task.
//
// Entries run on the task goroutine and must not recover panics raised by
// UserContext methods. Deferred calls of an entry may run after the task
// has lost the CPU and must not trap.
type Entry func(uc *UserContext, arg uint64) int

// ExitCodeFault is the exit code of a process killed by a page fault.
const ExitCodeFault = abi.NotExited

// Panic values that unwind a task goroutine.
type (
	// execRestart restarts the task at a new entry after a successful exec.
	execRestart struct{}

	// taskExit terminates the task goroutine once the task has exited or
	// been killed.
	taskExit struct{}
)

// startLocked starts the goroutine of a new task and queues the task.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) startLocked(t *Task) {
	k.live[t] = struct{}{}
	t.status = TaskReady
	k.ready.Add(t)
	k.tasks.Go(func() error {
		defer t.finish()
		if <-t.wake == wakeKill {
			return nil
		}
		t.onCPU = true
		return t.run()
	})
}

// run runs the task's entry until the task exits. It returns an error only
// if the entry panicked.
func (t *Task) run() error {
	for {
		restart, err := t.call()
		if err != nil {
			t.k.mu.Lock()
			t.k.failLocked(err)
			delete(t.k.live, t)
			t.k.mu.Unlock()
			return err
		}
		if !restart {
			return nil
		}
		// Deferred calls of the old image may have moved the stack pointer
		// while unwinding.
		t.uc.sp = t.stackTop
	}
}

// call runs the task's current entry and exits with its result.
func (t *Task) call() (restart bool, err error) {
	defer func() {
		r := recover()
		switch r.(type) {
		case nil, taskExit:
		case execRestart:
			restart = true
		default:
			err = fmt.Errorf("task %d of process %v panicked: %v\n%s", t.tid, t.Process(), r, debug.Stack())
		}
	}()
	t.Exit(t.entry(&t.uc, t.arg))
	return false, nil
}

// finish returns the CPU to the processor loop if the terminating task
// goroutine holds it.
func (t *Task) finish() {
	if t.onCPU {
		t.onCPU = false
		t.k.cpu <- struct{}{}
	}
}

// deschedule gives the CPU back to the processor loop and parks the task
// goroutine until the task is chosen again. The goroutine of a task killed
// while parked terminates here.
func (t *Task) deschedule() {
	t.onCPU = false
	t.k.cpu <- struct{}{}
	if <-t.wake == wakeKill {
		panic(taskExit{})
	}
	t.onCPU = true
}

// Yield puts the task at the back of the run queue and gives up the CPU.
func (t *Task) Yield() {
	t.k.mu.Lock()
	t.status = TaskReady
	t.k.ready.Add(t)
	t.k.mu.Unlock()
	t.deschedule()
}

// blockLocked blocks the task until another task wakes it.
//
// Preconditions: k.mu must be locked and no other lock may be held.
// Postconditions: k.mu is unlocked.
func (t *Task) blockLocked() {
	t.status = TaskBlocked
	t.k.mu.Unlock()
	t.deschedule()
}

// wakeupLocked makes a blocked task runnable. Tasks that are not blocked,
// such as killed ones, are ignored.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) wakeupLocked(t *Task) {
	if t.status != TaskBlocked {
		return
	}
	t.status = TaskReady
	k.ready.Add(t)
}

// killLocked terminates a task that does not hold the CPU.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) killLocked(t *Task) {
	if _, ok := k.live[t]; !ok {
		return
	}
	delete(k.live, t)
	k.ready.Remove(t)
	if t.timer != nil {
		k.timers.remove(t.timer)
		t.timer = nil
	}
	t.status = TaskExited
	t.killed.Store(true)
	t.wake <- wakeKill
}

// Exit terminates the task with the given code. If the task is the main
// thread its whole process exits. Exit does not return.
func (t *Task) Exit(code int) {
	if t.tid == 0 {
		t.ExitProcess(code)
	}
	p := t.Process()
	p.mu.Lock()
	t.k.mu.Lock()
	t.status = TaskExited
	t.exitCode = code
	delete(t.k.live, t)
	t.k.mu.Unlock()
	p.releaseTaskLocked(t)
	p.mu.Unlock()
	t.Debugf("thread exited with %d", code)
	panic(taskExit{})
}

// ExitProcess terminates the task's process with the given code. Every other
// thread of the process is killed. ExitProcess does not return.
func (t *Task) ExitProcess(code int) {
	p := t.Process()
	p.mu.Lock()
	t.k.mu.Lock()
	t.k.exitProcessLocked(p, code, t)
	t.k.mu.Unlock()
	p.mu.Unlock()
	panic(taskExit{})
}
