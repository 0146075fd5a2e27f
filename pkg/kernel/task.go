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
	"sync/atomic"
	"time"
	"weak"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/log"
	"gvisor.dev/ukern/pkg/sched"
)

// MaxSyscalls bounds the syscall numbers counted per task.
const MaxSyscalls = abi.MaxSyscallNum

// TaskStatus is the lifecycle state of a task. The numeric values of the
// first four states are visible to user programs through task_info.
type TaskStatus uint32

// Task states.
const (
	TaskUninit TaskStatus = iota
	TaskReady
	TaskRunning
	TaskExited
	TaskBlocked
)

func (s TaskStatus) String() string {
	switch s {
	case TaskUninit:
		return "Uninit"
	case TaskReady:
		return "Ready"
	case TaskRunning:
		return "Running"
	case TaskExited:
		return "Exited"
	case TaskBlocked:
		return "Blocked"
	default:
		return fmt.Sprintf("TaskStatus(%d)", uint32(s))
	}
}

type wakeMsg int

const (
	// wakeRun hands the CPU to the task.
	wakeRun wakeMsg = iota

	// wakeKill terminates a parked task goroutine.
	wakeKill
)

// Task is a thread of a process: the task control block.
type Task struct {
	k *Kernel

	// proc is the owning process. It does not keep the process alive.
	proc weak.Pointer[Process]

	// tid is the thread ID within the process. Immutable.
	tid int

	// stackTop is the top of the task's user stack region. Immutable.
	stackTop hostarch.Addr

	// logPrefix prefixes the task's log messages. It is set before the
	// task goroutine starts.
	logPrefix string

	// Entity is the task's stride scheduling state.
	//
	// +checklocks:k.mu
	sched.Entity

	// status is the lifecycle state.
	//
	// +checklocks:k.mu
	status TaskStatus

	// firstRun is when the task was first scheduled; zero before that.
	//
	// +checklocks:k.mu
	firstRun time.Time

	// sliceStart is when the current time slice began.
	//
	// +checklocks:k.mu
	sliceStart time.Time

	// exitCode is valid once status is TaskExited.
	//
	// +checklocks:k.mu
	exitCode int

	// timer is the pending sleep of the task, if any.
	//
	// +checklocks:k.mu
	timer *timerEntry

	// wake delivers wakeMsgs to the parked task goroutine. It is buffered so
	// that a kill never blocks the sender.
	wake chan wakeMsg

	// killed is set when the task is killed. It is read by the task
	// goroutine after it has lost the CPU.
	killed atomic.Bool

	// The following fields are owned by the task goroutine.

	// onCPU is true while the task goroutine holds the CPU.
	onCPU bool

	// entry and arg are what the task runs next. They change on exec.
	entry Entry
	arg   uint64

	// syscallCounts counts traps per syscall number.
	syscallCounts [MaxSyscalls]uint32

	// uc is the task's user context.
	uc UserContext
}

// SchedEntity implements sched.Schedulable.
func (t *Task) SchedEntity() *sched.Entity {
	return &t.Entity
}

// Kernel returns the task's kernel.
func (t *Task) Kernel() *Kernel {
	return t.k
}

// Process returns the task's process, or nil if it has been reaped.
func (t *Task) Process() *Process {
	return t.proc.Value()
}

// TID returns the task's thread ID within its process.
func (t *Task) TID() int {
	return t.tid
}

// StackTop returns the top of the task's user stack.
func (t *Task) StackTop() hostarch.Addr {
	return t.stackTop
}

// Status returns the task's lifecycle state.
func (t *Task) Status() TaskStatus {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.status
}

// ExitCode returns the task's exit code and whether it has exited.
func (t *Task) ExitCode() (int, bool) {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.exitCode, t.status == TaskExited
}

// Priority returns the task's scheduling priority.
func (t *Task) Priority() uint64 {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.Entity.Priority
}

// SetPriority sets the task's scheduling priority.
func (t *Task) SetPriority(p int64) error {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	return t.Entity.SetPriority(p)
}

// SyscallCounts returns a copy of the task's per-syscall trap counts.
//
// Preconditions: the caller is the task goroutine.
func (t *Task) SyscallCounts() [MaxSyscalls]uint32 {
	return t.syscallCounts
}

// RunningTime returns the time elapsed since the task was first scheduled.
func (t *Task) RunningTime() time.Duration {
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	if t.firstRun.IsZero() {
		return 0
	}
	return t.k.clock.Since(t.firstRun)
}

// Debugf logs at debug level with the task's prefix.
func (t *Task) Debugf(format string, v ...any) {
	if log.IsLogging(log.Debug) {
		log.Log().DebugfAtDepth(1, t.logPrefix+format, v...)
	}
}

// Infof logs at info level with the task's prefix.
func (t *Task) Infof(format string, v ...any) {
	log.Log().InfofAtDepth(1, t.logPrefix+format, v...)
}

// Warningf logs at warning level with the task's prefix, subject to the
// kernel's rate limit.
func (t *Task) Warningf(format string, v ...any) {
	t.k.warn.Warningf(t.logPrefix+format, v...)
}
