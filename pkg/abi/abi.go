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

// Package abi describes the interface between user programs and the kernel:
// syscall numbers and the memory layout of structures passed by pointer.
//
// All structures are little-endian with natural alignment.
package abi

// Syscall numbers.
const (
	SysClose                = 57
	SysRead                 = 63
	SysWrite                = 64
	SysFstat                = 80
	SysExit                 = 93
	SysSleep                = 101
	SysYield                = 124
	SysSetPriority          = 140
	SysGetTime              = 169
	SysGetpid               = 172
	SysGettid               = 178
	SysSbrk                 = 214
	SysMunmap               = 215
	SysFork                 = 220
	SysExec                 = 221
	SysMmap                 = 222
	SysWaitpid              = 260
	SysSpawn                = 400
	SysTaskInfo             = 410
	SysThreadCreate         = 460
	SysWaittid              = 462
	SysMutexCreate          = 463
	SysMutexLock            = 464
	SysMutexUnlock          = 466
	SysSemaphoreCreate      = 467
	SysSemaphoreUp          = 468
	SysEnableDeadlockDetect = 469
	SysSemaphoreDown        = 470
	SysCondvarCreate        = 471
	SysCondvarSignal        = 472
	SysCondvarWait          = 473
)

// Standard file descriptors.
const (
	Stdin  = 0
	Stdout = 1
	Stderr = 2
)

// Syscall return codes.
const (
	// Failure is the generic failure code.
	Failure = -1

	// NotExited is returned by waitpid and waittid while the target runs,
	// and is the exit code of a process killed by a page fault.
	NotExited = -2

	// Deadlock is returned by mutex_lock and semaphore_down when deadlock
	// detection rejects the request.
	Deadlock = -0xdead
)

// Mmap port bits.
const (
	PortRead  = 0x1
	PortWrite = 0x2
	PortExec  = 0x4
)
