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
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
	"weak"

	"gvisor.dev/ukern/pkg/deadlock"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/log"
	"gvisor.dev/ukern/pkg/mm"
	"gvisor.dev/ukern/pkg/pagetables"
	"gvisor.dev/ukern/pkg/sched"
)

var (
	// ErrNotExited is returned by waits for a child or thread that is
	// still running.
	ErrNotExited = errors.New("not exited")

	// ErrNoChild is returned by waits with no matching child or thread.
	ErrNoChild = errors.New("no such child")

	// ErrMultiThreaded is returned by fork and exec in a process with more
	// than one live thread.
	ErrMultiThreaded = errors.New("process has more than one thread")
)

// Process is a process: the process control block. It owns an address
// space, a file descriptor table, its threads and its synchronization
// objects.
type Process struct {
	k *Kernel

	// pid is the process ID. Immutable.
	pid int

	mu sync.Mutex

	// name is the name of the program the process runs.
	//
	// +checklocks:mu
	name string

	// mm is the address space.
	//
	// +checklocks:mu
	mm *mm.MemoryManager

	// tasks is indexed by thread ID. Reaped threads leave nil slots.
	//
	// +checklocks:mu
	tasks []*Task

	// tids allocates thread IDs.
	//
	// +checklocks:mu
	tids idAllocator

	// fds is the file descriptor table.
	//
	// +checklocks:mu
	fds *FDTable

	// text maps function addresses handed out by UserContext.FuncAddr to
	// entries.
	//
	// +checklocks:mu
	text []Entry

	// +checklocks:mu
	mutexes []Mutex
	// +checklocks:mu
	semaphores []*Semaphore
	// +checklocks:mu
	condvars []*Condvar

	// mutexGraph and banker hold the deadlock detection state of mutexes
	// and semaphores respectively. They are maintained whether or not
	// detection is enabled.
	//
	// +checklocks:mu
	mutexGraph *deadlock.MutexGraph
	// +checklocks:mu
	banker *deadlock.Banker

	// +checklocks:mu
	deadlockDetect bool

	// The process tree is protected by Kernel.mu.

	// +checklocks:k.mu
	parent weak.Pointer[Process]
	// +checklocks:k.mu
	children []*Process
	// +checklocks:k.mu
	zombie bool
	// +checklocks:k.mu
	exitCode int

	// registered is set once the process has a pid and running threads.
	//
	// +checklocks:k.mu
	registered bool
}

func (p *Process) String() string {
	return fmt.Sprintf("%d", p.pid)
}

// PID returns the process ID.
func (p *Process) PID() int {
	return p.pid
}

// Name returns the name of the program the process runs.
func (p *Process) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

// MemoryManager returns the process's current address space.
func (p *Process) MemoryManager() *mm.MemoryManager {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mm
}

// FDTable returns the file descriptor table.
func (p *Process) FDTable() *FDTable {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fds
}

// Parent returns the parent process, or nil for the initial process.
func (p *Process) Parent() *Process {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.parent.Value()
}

// Children returns the process's children, including zombies.
func (p *Process) Children() []*Process {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return slices.Clone(p.children)
}

// ExitStatus returns the exit code and whether the process has exited.
func (p *Process) ExitStatus() (int, bool) {
	p.k.mu.Lock()
	defer p.k.mu.Unlock()
	return p.exitCode, p.zombie
}

// TaskWithID returns the thread with the given ID, or nil.
func (p *Process) TaskWithID(tid int) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.taskLocked(tid)
}

// +checklocks:p.mu
func (p *Process) taskLocked(tid int) *Task {
	if tid < 0 || tid >= len(p.tasks) {
		return nil
	}
	return p.tasks[tid]
}

// liveTasksLocked counts threads that have not exited.
//
// Preconditions: p.mu and k.mu must be locked.
func (p *Process) liveTasksLocked() int {
	n := 0
	for _, t := range p.tasks {
		if t != nil && t.status != TaskExited {
			n++
		}
	}
	return n
}

// DeadlockDetection returns whether deadlock detection is enabled.
func (p *Process) DeadlockDetection() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deadlockDetect
}

// SetDeadlockDetection enables or disables deadlock detection.
func (p *Process) SetDeadlockDetection(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deadlockDetect = enabled
}

// CreateProcess loads the named program into a new process with no parent
// and makes it the initial process. It must be called once before Run.
func (k *Kernel) CreateProcess(name string) (*Process, error) {
	p, err := k.newProcess(name, nil)
	if err != nil {
		return nil, err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.globalInit == nil {
		k.globalInit = p
	}
	return p, nil
}

func (k *Kernel) allocProcess(name string, as *mm.MemoryManager) *Process {
	return &Process{
		k:              k,
		name:           name,
		mm:             as,
		fds:            k.newStdioFDTable(),
		mutexGraph:     deadlock.NewMutexGraph(),
		banker:         deadlock.NewBanker(),
		deadlockDetect: k.deadlockDetect,
	}
}

// newProcess loads the named program into a new process whose main thread
// is runnable.
func (k *Kernel) newProcess(name string, parent *Process) (*Process, error) {
	img, err := k.loader.Load(name)
	if err != nil {
		return nil, err
	}
	as, err := k.loadImage(img)
	if err != nil {
		return nil, err
	}

	p := k.allocProcess(name, as)
	p.mu.Lock()
	defer p.mu.Unlock()
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, err := p.newTaskLocked(img.Entry, 0, true); err != nil {
		p.releaseResourcesLocked()
		return nil, err
	}
	k.registerLocked(p, parent)
	log.Infof("process %d (%s) created", p.pid, name)
	return p, nil
}

// registerLocked assigns p a pid, links it to its parent and starts its
// threads.
//
// Preconditions: p.mu and k.mu must be locked.
func (k *Kernel) registerLocked(p *Process, parent *Process) {
	p.pid = k.pids.alloc()
	p.registered = true
	k.processes[p.pid] = p
	if parent != nil {
		p.parent = weak.Make(parent)
		parent.children = append(parent.children, p)
	}
	for _, t := range p.tasks {
		t.logPrefix = fmt.Sprintf("[%3d:%d] ", p.pid, t.tid)
		k.startLocked(t)
	}
}

// newTaskLocked creates a thread of p that runs entry(arg). If mapStack is
// set a fresh user stack is mapped for it. The thread is started when the
// process is registered, or immediately if it already is.
//
// Preconditions: p.mu and k.mu must be locked.
func (p *Process) newTaskLocked(entry Entry, arg uint64, mapStack bool) (*Task, error) {
	tid := p.tids.alloc()
	top := userStackTop(tid)
	if mapStack {
		if err := p.mm.MapFramed(top-UserStackSize, UserStackSize, pagetables.Read|pagetables.Write|pagetables.User, nil); err != nil {
			p.tids.release(tid)
			return nil, err
		}
	}
	t := &Task{
		k:        p.k,
		proc:     weak.Make(p),
		tid:      tid,
		stackTop: top,
		Entity:   sched.Entity{Priority: uint64(p.k.defaultPriority)},
		wake:     make(chan wakeMsg, 1),
		entry:    entry,
		arg:      arg,
	}
	t.uc = UserContext{t: t, sp: top}
	for len(p.tasks) <= tid {
		p.tasks = append(p.tasks, nil)
	}
	p.tasks[tid] = t
	if p.registered {
		t.logPrefix = fmt.Sprintf("[%3d:%d] ", p.pid, tid)
		p.k.startLocked(t)
	}
	return t, nil
}

// releaseTaskLocked releases the resources of an exited thread other than
// its control block, which stays until the thread is reaped. Semaphore units
// and mutexes the thread still holds are lost, and the deadlock state no
// longer counts on the thread to release them.
//
// Preconditions: p.mu must be locked.
func (p *Process) releaseTaskLocked(t *Task) {
	if err := p.mm.MUnmap(t.stackTop-UserStackSize, UserStackSize); err != nil {
		log.Warningf("releasing stack of thread %d of process %d: %v", t.tid, p.pid, err)
	}
	p.mutexGraph.ForgetThread(t.tid)
	p.banker.ForgetThread(t.tid)
}

// releaseResourcesLocked releases the address space, descriptors and
// synchronization objects of p.
//
// Preconditions: p.mu must be locked.
func (p *Process) releaseResourcesLocked() {
	p.mm.Release()
	p.fds.RemoveAll()
	p.mutexes = nil
	p.semaphores = nil
	p.condvars = nil
	p.mutexGraph = deadlock.NewMutexGraph()
	p.banker = deadlock.NewBanker()
}

// exitProcessLocked turns p into a zombie with the given exit code. Every
// thread other than self is killed, children are handed to the initial
// process and all resources are released. self may be nil.
//
// Preconditions: p.mu and k.mu must be locked.
func (k *Kernel) exitProcessLocked(p *Process, code int, self *Task) {
	if p.zombie {
		return
	}
	for _, t := range p.tasks {
		if t == nil {
			continue
		}
		if t == self {
			t.status = TaskExited
			t.exitCode = code
			delete(k.live, t)
			continue
		}
		k.killLocked(t)
	}
	p.tasks = nil
	p.zombie = true
	p.exitCode = code

	if p != k.globalInit && k.globalInit != nil {
		reaper := k.globalInit
		for _, c := range p.children {
			c.parent = weak.Make(reaper)
			reaper.children = append(reaper.children, c)
		}
		p.children = nil
	}
	p.releaseResourcesLocked()
	log.Infof("process %d (%s) exited with %d", p.pid, p.name, code)

	if p == k.globalInit {
		k.stopping = true
	}
}

// Spawn creates a child process running the named program.
func (t *Task) Spawn(name string) (int, error) {
	child, err := t.k.newProcess(name, t.Process())
	if err != nil {
		return 0, err
	}
	return child.pid, nil
}

// Fork creates a child process with a copy of the task's address space.
// The child's only thread runs cont(0) on the task's current stack.
func (t *Task) Fork(cont Entry) (int, error) {
	k := t.k
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()

	k.mu.Lock()
	live := p.liveTasksLocked()
	k.mu.Unlock()
	if live > 1 {
		return 0, fmt.Errorf("fork: %w", ErrMultiThreaded)
	}

	as, err := p.mm.Fork()
	if err != nil {
		return 0, err
	}
	child := k.allocProcess(p.name, as)
	child.text = slices.Clone(p.text)
	child.fds = p.fds.Fork()

	// A process that is not yet registered can be locked while its parent
	// is.
	child.mu.Lock()
	defer child.mu.Unlock()
	k.mu.Lock()
	defer k.mu.Unlock()
	ct, err := child.newTaskLocked(cont, 0, false)
	if err != nil {
		child.releaseResourcesLocked()
		return 0, err
	}
	ct.uc.sp = t.uc.sp
	k.registerLocked(child, p)
	return child.pid, nil
}

// Exec replaces the task's process image with the named program. On success
// Exec does not return: the task restarts at the new entry.
func (t *Task) Exec(name string) error {
	k := t.k
	img, err := k.loader.Load(name)
	if err != nil {
		return err
	}

	p := t.Process()
	p.mu.Lock()
	k.mu.Lock()
	live := p.liveTasksLocked()
	k.mu.Unlock()
	if live > 1 {
		p.mu.Unlock()
		return fmt.Errorf("exec: %w", ErrMultiThreaded)
	}
	as, err := k.loadImage(img)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if err := as.MapFramed(t.stackTop-UserStackSize, UserStackSize, pagetables.Read|pagetables.Write|pagetables.User, nil); err != nil {
		as.Release()
		p.mu.Unlock()
		return err
	}
	old := p.mm
	p.mm = as
	p.name = name
	p.text = nil
	p.mu.Unlock()
	old.Release()

	t.Infof("exec %s", name)
	t.entry = img.Entry
	t.arg = 0
	panic(execRestart{})
}

// WaitPID reaps an exited child. pid -1 matches any child. The child's exit
// code is stored as a 32-bit integer at status unless status is 0. It
// returns ErrNoChild if no child matches and ErrNotExited if no matching
// child has exited yet.
func (t *Task) WaitPID(pid int, status hostarch.Addr) (int, error) {
	k := t.k
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	k.mu.Lock()
	defer k.mu.Unlock()

	found := false
	for i, c := range p.children {
		if pid != -1 && c.pid != pid {
			continue
		}
		found = true
		if !c.zombie {
			continue
		}
		if status != 0 {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], uint32(int32(c.exitCode)))
			if err := mm.CopyOut(k.mem, p.mm.Token(), status, b[:]); err != nil {
				return 0, err
			}
		}
		p.children = slices.Delete(p.children, i, i+1)
		delete(k.processes, c.pid)
		k.pids.release(c.pid)
		return c.pid, nil
	}
	if !found {
		return 0, ErrNoChild
	}
	return 0, ErrNotExited
}

// CreateThread starts a new thread of the task's process running the entry
// at the given function address with arg.
func (t *Task) CreateThread(entry hostarch.Addr, arg uint64) (int, error) {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	fn, err := p.funcLocked(entry)
	if err != nil {
		return 0, err
	}
	t.k.mu.Lock()
	defer t.k.mu.Unlock()
	nt, err := p.newTaskLocked(fn, arg, true)
	if err != nil {
		return 0, err
	}
	t.Debugf("created thread %d", nt.tid)
	return nt.tid, nil
}

// WaitTID reaps an exited thread of the task's process and returns its exit
// code. A task cannot wait for itself.
func (t *Task) WaitTID(tid int) (int, error) {
	p := t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	t.k.mu.Lock()
	defer t.k.mu.Unlock()

	if tid == t.tid {
		return 0, fmt.Errorf("%w: thread %d waiting for itself", ErrInvalidArgument, tid)
	}
	target := p.taskLocked(tid)
	if target == nil {
		return 0, ErrNoChild
	}
	if target.status != TaskExited {
		return 0, ErrNotExited
	}
	p.tasks[tid] = nil
	p.tids.release(tid)
	return target.exitCode, nil
}
