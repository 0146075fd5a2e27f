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

// Package kernel implements the process, thread and scheduling core of a
// small single-CPU teaching kernel.
//
// Physical memory is simulated by pgalloc, and every user thread is a
// goroutine that executes only while it holds the kernel's single CPU. The
// processor loop in Kernel.Run hands the CPU to the thread chosen by the
// stride scheduler and takes it back when that thread yields, blocks or
// exits. User code reaches the kernel only through UserContext: traps
// (Syscall) and loads and stores checked by the MMU.
//
// Lock order (outermost locks must be taken first):
//
//	Process.mu
//	  Kernel.mu
//	    mm.MemoryManager.mu
//
// No lock is ever held across a point where a task gives up the CPU.
package kernel

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/log"
	"gvisor.dev/ukern/pkg/pgalloc"
	"gvisor.dev/ukern/pkg/sched"
)

var (
	// ErrAllBlocked is returned by Run when no task is runnable, no timer is
	// pending and the initial process is still alive.
	ErrAllBlocked = errors.New("all tasks blocked")

	// ErrNotStarted is returned by Run when no initial process was created.
	ErrNotStarted = errors.New("no initial process")
)

// Defaults for InitKernelArgs fields left zero.
const (
	DefaultFrames    = 8192
	DefaultTimeSlice = 10 * time.Millisecond
	DefaultTrapCost  = 10 * time.Microsecond

	// physBase is the first physical page number of simulated memory.
	physBase = hostarch.PPN(0x80000)
)

// InitKernelArgs holds arguments to Init.
type InitKernelArgs struct {
	// Frames is the number of physical page frames.
	Frames int

	// BigStride is the stride scheduler's pass distance.
	BigStride uint64

	// DefaultPriority is the priority of new threads.
	DefaultPriority int64

	// TimeSlice is the time a thread may run before it is preempted at its
	// next trap.
	TimeSlice time.Duration

	// DeadlockDetect is the initial deadlock detection setting of every new
	// process.
	DeadlockDetect bool

	// Clock is the time source. If nil, VirtualTime selects between a
	// virtual clock and the host clock.
	Clock clockwork.Clock

	// VirtualTime runs the kernel on a virtual clock: every trap costs
	// TrapCost and idle periods are skipped instead of waited out.
	VirtualTime bool

	// TrapCost is the virtual time charged per trap.
	TrapCost time.Duration

	// Loader supplies program images.
	Loader Loader

	// Syscalls is the system call table.
	Syscalls *SyscallTable

	// Stdin, Stdout and Stderr back the standard descriptors of every
	// process. Nil readers read EOF and nil writers discard.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Kernel is the state of one simulated machine. It must be initialized by
// calling Init.
type Kernel struct {
	// The following fields are immutable after Init.
	mem             *pgalloc.PhysMem
	alloc           *pgalloc.Allocator
	clock           clockwork.Clock
	virtual         bool
	trapCost        time.Duration
	timeSlice       time.Duration
	defaultPriority int64
	deadlockDetect  bool
	loader          Loader
	syscalls        *SyscallTable
	stdin           io.Reader
	stdout          io.Writer
	stderr          io.Writer
	boot            time.Time

	// warn is used for rate limited warnings from user activity.
	warn log.Logger

	// cpu is signalled by a task goroutine when it gives the CPU back to the
	// processor loop.
	cpu chan struct{}

	// tasks is the group of task goroutines.
	tasks errgroup.Group

	mu sync.Mutex

	// ready is the run queue.
	//
	// +checklocks:mu
	ready *sched.Queue[*Task]

	// timers holds sleeping tasks.
	//
	// +checklocks:mu
	timers *timerQueue

	// pids allocates process IDs.
	//
	// +checklocks:mu
	pids idAllocator

	// processes maps live and zombie processes by pid.
	//
	// +checklocks:mu
	processes map[int]*Process

	// globalInit is the initial process; orphans are re-parented to it.
	//
	// +checklocks:mu
	globalInit *Process

	// live holds every task whose goroutine has not terminated.
	//
	// +checklocks:mu
	live map[*Task]struct{}

	// current is the task holding the CPU, or nil.
	//
	// +checklocks:mu
	current *Task

	// stopping is set when the initial process exits.
	//
	// +checklocks:mu
	stopping bool

	// failure is the first internal error raised on a task goroutine.
	//
	// +checklocks:mu
	failure error
}

// Init initializes the kernel.
func (k *Kernel) Init(args InitKernelArgs) error {
	if args.Loader == nil {
		return fmt.Errorf("no loader")
	}
	if args.Syscalls == nil {
		return fmt.Errorf("no syscall table")
	}
	if args.Frames == 0 {
		args.Frames = DefaultFrames
	}
	if args.Frames < 0 {
		return fmt.Errorf("invalid frame count %d", args.Frames)
	}
	if args.DefaultPriority == 0 {
		args.DefaultPriority = sched.DefaultPriority
	}
	if args.DefaultPriority < sched.MinPriority {
		return fmt.Errorf("invalid default priority %d", args.DefaultPriority)
	}
	if args.TimeSlice == 0 {
		args.TimeSlice = DefaultTimeSlice
	}
	if args.TrapCost == 0 {
		args.TrapCost = DefaultTrapCost
	}
	if args.Clock == nil {
		if args.VirtualTime {
			args.Clock = clockwork.NewFakeClockAt(time.Unix(0, 0))
		} else {
			args.Clock = clockwork.NewRealClock()
		}
	}
	_, k.virtual = args.Clock.(clockwork.FakeClock)
	k.virtual = k.virtual && args.VirtualTime

	k.mem = pgalloc.NewPhysMem(physBase, args.Frames)
	k.alloc = pgalloc.NewAllocator(k.mem)
	k.clock = args.Clock
	k.trapCost = args.TrapCost
	k.timeSlice = args.TimeSlice
	k.defaultPriority = args.DefaultPriority
	k.deadlockDetect = args.DeadlockDetect
	k.loader = args.Loader
	k.syscalls = args.Syscalls
	k.syscalls.init()
	k.stdin = args.Stdin
	k.stdout = args.Stdout
	k.stderr = args.Stderr
	k.boot = k.clock.Now()
	k.warn = log.BasicRateLimitedLogger(time.Second, 20)
	k.cpu = make(chan struct{})
	k.ready = sched.NewQueue[*Task](args.BigStride)
	k.timers = newTimerQueue()
	k.processes = make(map[int]*Process)
	k.live = make(map[*Task]struct{})
	return nil
}

// FrameAllocator returns the physical frame allocator.
func (k *Kernel) FrameAllocator() *pgalloc.Allocator {
	return k.alloc
}

// PhysMem returns simulated physical memory.
func (k *Kernel) PhysMem() *pgalloc.PhysMem {
	return k.mem
}

// Clock returns the kernel's time source.
func (k *Kernel) Clock() clockwork.Clock {
	return k.clock
}

// Uptime returns the time elapsed since Init.
func (k *Kernel) Uptime() time.Duration {
	return k.clock.Since(k.boot)
}

// GlobalInit returns the initial process, or nil.
func (k *Kernel) GlobalInit() *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.globalInit
}

// ProcessWithID returns the live or zombie process with the given pid.
func (k *Kernel) ProcessWithID(pid int) *Process {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.processes[pid]
}

// Run executes the processor loop until the initial process exits. It
// returns ErrAllBlocked if every remaining task is blocked with no timer
// pending, or the error of a task goroutine that failed.
//
// Run must be called at most once.
func (k *Kernel) Run() error {
	k.mu.Lock()
	if k.globalInit == nil {
		k.mu.Unlock()
		return ErrNotStarted
	}
	k.mu.Unlock()

	err := k.loop()
	k.shutdown()
	if werr := k.tasks.Wait(); err == nil {
		err = werr
	}
	return err
}

// loop runs tasks until the kernel stops.
func (k *Kernel) loop() error {
	for {
		k.mu.Lock()
		if k.failure != nil {
			err := k.failure
			k.mu.Unlock()
			return err
		}
		if k.stopping {
			k.mu.Unlock()
			return nil
		}
		k.checkTimersLocked()
		t, ok := k.ready.Fetch()
		if !ok {
			next, pending := k.timers.next()
			k.mu.Unlock()
			if !pending {
				return ErrAllBlocked
			}
			k.idle(next)
			continue
		}
		k.current = t
		t.status = TaskRunning
		now := k.clock.Now()
		if t.firstRun.IsZero() {
			t.firstRun = now
		}
		t.sliceStart = now
		k.mu.Unlock()

		t.wake <- wakeRun
		<-k.cpu

		k.mu.Lock()
		k.current = nil
		k.mu.Unlock()
	}
}

// idle waits until the given time.
func (k *Kernel) idle(until time.Time) {
	d := until.Sub(k.clock.Now())
	if d <= 0 {
		return
	}
	if k.virtual {
		k.clock.(clockwork.FakeClock).Advance(d)
		return
	}
	<-k.clock.After(d)
}

// chargeTrap accounts for the cost of one trap on the virtual clock.
func (k *Kernel) chargeTrap() {
	if k.virtual {
		k.clock.(clockwork.FakeClock).Advance(k.trapCost)
	}
}

// shutdown kills every task whose goroutine is still parked and releases
// what remains of every process.
func (k *Kernel) shutdown() {
	k.mu.Lock()
	for t := range k.live {
		k.killLocked(t)
	}
	procs := make([]*Process, 0, len(k.processes))
	for pid, p := range k.processes {
		procs = append(procs, p)
		delete(k.processes, pid)
	}
	k.mu.Unlock()

	for _, p := range procs {
		p.mu.Lock()
		p.releaseResourcesLocked()
		p.mu.Unlock()
	}
}

// failLocked records an internal error raised on a task goroutine.
//
// Preconditions: k.mu must be locked.
func (k *Kernel) failLocked(err error) {
	if k.failure == nil {
		k.failure = err
	}
}
