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

// Package syscalls implements the system call interface of the kernel: the
// numbered table consulted on every trap and the glue that decodes argument
// registers and user memory before calling into pkg/kernel.
package syscalls

import (
	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// Supported returns a syscall that is fully supported.
func Supported(name string, fn kernel.SyscallFn) kernel.Syscall {
	return kernel.Syscall{Name: name, Fn: fn}
}

// Table returns a new system call table. Each kernel needs its own table.
func Table() *kernel.SyscallTable {
	return &kernel.SyscallTable{
		Table: map[uintptr]kernel.Syscall{
			abi.SysClose:                Supported("close", Close),
			abi.SysRead:                 Supported("read", Read),
			abi.SysWrite:                Supported("write", Write),
			abi.SysFstat:                Supported("fstat", Fstat),
			abi.SysExit:                 Supported("exit", Exit),
			abi.SysSleep:                Supported("sleep", Sleep),
			abi.SysYield:                Supported("yield", Yield),
			abi.SysSetPriority:          Supported("set_priority", SetPriority),
			abi.SysGetTime:              Supported("get_time", GetTime),
			abi.SysGetpid:               Supported("getpid", Getpid),
			abi.SysGettid:               Supported("gettid", Gettid),
			abi.SysSbrk:                 Supported("sbrk", Sbrk),
			abi.SysMunmap:               Supported("munmap", Munmap),
			abi.SysFork:                 Supported("fork", Fork),
			abi.SysExec:                 Supported("exec", Exec),
			abi.SysMmap:                 Supported("mmap", Mmap),
			abi.SysWaitpid:              Supported("waitpid", Waitpid),
			abi.SysSpawn:                Supported("spawn", Spawn),
			abi.SysTaskInfo:             Supported("task_info", TaskInfo),
			abi.SysThreadCreate:         Supported("thread_create", ThreadCreate),
			abi.SysWaittid:              Supported("waittid", Waittid),
			abi.SysMutexCreate:          Supported("mutex_create", MutexCreate),
			abi.SysMutexLock:            Supported("mutex_lock", MutexLock),
			abi.SysMutexUnlock:          Supported("mutex_unlock", MutexUnlock),
			abi.SysSemaphoreCreate:      Supported("semaphore_create", SemaphoreCreate),
			abi.SysSemaphoreUp:          Supported("semaphore_up", SemaphoreUp),
			abi.SysEnableDeadlockDetect: Supported("enable_deadlock_detect", EnableDeadlockDetect),
			abi.SysSemaphoreDown:        Supported("semaphore_down", SemaphoreDown),
			abi.SysCondvarCreate:        Supported("condvar_create", CondvarCreate),
			abi.SysCondvarSignal:        Supported("condvar_signal", CondvarSignal),
			abi.SysCondvarWait:          Supported("condvar_wait", CondvarWait),
		},
	}
}
