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

package syscalls

import (
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/kernel"
)

// maxPathLen bounds program names passed to exec and spawn.
const maxPathLen = hostarch.PageSize

// Exit implements exit(code). It does not return.
func Exit(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Exit(int(int32(args[0].Value)))
	panic("unreachable")
}

// Yield implements yield().
func Yield(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Yield()
	return 0, nil
}

// Getpid implements getpid().
func Getpid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.Process().PID()), nil
}

// Gettid implements gettid().
func Gettid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.TID()), nil
}

// SetPriority implements set_priority(prio). It returns prio.
func SetPriority(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	prio := args[0].Int64()
	if err := t.SetPriority(prio); err != nil {
		return 0, err
	}
	return prio, nil
}

// Fork implements fork(cont). The child's only thread runs the function at
// address cont, which sees a return value of 0; the parent gets the child's
// pid.
func Fork(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	cont, err := t.Process().Func(args[0].Pointer())
	if err != nil {
		return 0, err
	}
	pid, err := t.Fork(cont)
	return int64(pid), err
}

// Exec implements exec(path). It returns only on failure.
func Exec(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	name, err := t.CopyInString(args[0].Pointer(), maxPathLen)
	if err != nil {
		return 0, err
	}
	return 0, t.Exec(name)
}

// Spawn implements spawn(path).
func Spawn(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	name, err := t.CopyInString(args[0].Pointer(), maxPathLen)
	if err != nil {
		return 0, err
	}
	pid, err := t.Spawn(name)
	if err != nil {
		return 0, fmt.Errorf("spawn %q: %w", name, err)
	}
	return int64(pid), nil
}

// Waitpid implements waitpid(pid, status).
func Waitpid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	pid, err := t.WaitPID(args[0].Int(), args[1].Pointer())
	return int64(pid), err
}

// ThreadCreate implements thread_create(entry, arg).
func ThreadCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	tid, err := t.CreateThread(args[0].Pointer(), args[1].Uint64())
	return int64(tid), err
}

// Waittid implements waittid(tid). It returns the thread's exit code.
func Waittid(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	code, err := t.WaitTID(args[0].Int())
	return int64(code), err
}
