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
	"errors"
	"fmt"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/deadlock"
	"gvisor.dev/ukern/pkg/hostarch"
)

// ErrInvalidArgument is returned for malformed syscall arguments.
var ErrInvalidArgument = errors.New("invalid argument")

// Return codes for failed syscalls.
const (
	// CodeFailure is the generic failure code.
	CodeFailure = abi.Failure

	// CodeNotExited is returned by waits for a child or thread that has not
	// exited yet.
	CodeNotExited = abi.NotExited

	// CodeDeadlock is returned for lock and semaphore requests rejected by
	// deadlock detection.
	CodeDeadlock = abi.Deadlock
)

// ErrorCode converts a syscall error into its return code.
func ErrorCode(err error) int64 {
	switch {
	case errors.Is(err, deadlock.ErrDeadlock):
		return CodeDeadlock
	case errors.Is(err, ErrNotExited):
		return CodeNotExited
	default:
		return CodeFailure
	}
}

// SyscallArgument is an argument register of a syscall.
type SyscallArgument struct {
	Value uint64
}

// SyscallArguments are the argument registers of a syscall.
type SyscallArguments [6]SyscallArgument

// Pointer returns the argument as an address.
func (a SyscallArgument) Pointer() hostarch.Addr {
	return hostarch.Addr(a.Value)
}

// Int returns the argument as a signed integer.
func (a SyscallArgument) Int() int {
	return int(int64(a.Value))
}

// Int64 returns the argument as a 64-bit signed integer.
func (a SyscallArgument) Int64() int64 {
	return int64(a.Value)
}

// Uint64 returns the argument as a 64-bit unsigned integer.
func (a SyscallArgument) Uint64() uint64 {
	return a.Value
}

// SyscallFn is a syscall implementation. A non-nil error is converted to a
// return code by ErrorCode.
type SyscallFn func(t *Task, args SyscallArguments) (int64, error)

// Syscall describes one syscall.
type Syscall struct {
	// Name is the syscall name.
	Name string

	// Fn is the implementation.
	Fn SyscallFn
}

// SyscallTable maps syscall numbers to implementations.
type SyscallTable struct {
	// Table is the map of syscall numbers to descriptions.
	Table map[uintptr]Syscall

	// lookup is a dense copy of Table built by init.
	lookup []SyscallFn
}

// init builds the dense lookup table.
func (s *SyscallTable) init() {
	max := uintptr(0)
	for num := range s.Table {
		if num > max {
			max = num
		}
	}
	s.lookup = make([]SyscallFn, max+1)
	for num, sc := range s.Table {
		s.lookup[num] = sc.Fn
	}
}

// Lookup returns the implementation of sysno, or nil.
func (s *SyscallTable) Lookup(sysno uintptr) SyscallFn {
	if sysno < uintptr(len(s.lookup)) {
		return s.lookup[sysno]
	}
	return nil
}

// Name returns the name of sysno.
func (s *SyscallTable) Name(sysno uintptr) string {
	if sc, ok := s.Table[sysno]; ok {
		return sc.Name
	}
	return fmt.Sprintf("sys_%d", sysno)
}

// trap handles a syscall from the task: it charges the trap, wakes expired
// sleepers, preempts the task if its time slice is used up and executes the
// syscall.
func (t *Task) trap(sysno uintptr, args SyscallArguments) int64 {
	k := t.k
	k.chargeTrap()
	if sysno < MaxSyscalls {
		t.syscallCounts[sysno]++
	}

	k.mu.Lock()
	k.checkTimersLocked()
	preempt := k.clock.Since(t.sliceStart) >= k.timeSlice
	k.mu.Unlock()
	if preempt {
		t.Yield()
	}
	return t.executeSyscall(sysno, args)
}

func (t *Task) executeSyscall(sysno uintptr, args SyscallArguments) int64 {
	fn := t.k.syscalls.Lookup(sysno)
	if fn == nil {
		t.Warningf("unsupported syscall %d", sysno)
		return CodeFailure
	}
	ret, err := fn(t, args)
	if err != nil {
		code := ErrorCode(err)
		t.Debugf("%s(%#x, %#x, %#x) = %d: %v", t.k.syscalls.Name(sysno), args[0].Value, args[1].Value, args[2].Value, code, err)
		return code
	}
	t.Debugf("%s(%#x, %#x, %#x) = %d", t.k.syscalls.Name(sysno), args[0].Value, args[1].Value, args[2].Value, ret)
	return ret
}
