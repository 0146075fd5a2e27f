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

package ulib

import (
	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// MutexCreate creates a spinning mutex.
func MutexCreate(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysMutexCreate, 0)
}

// MutexBlockingCreate creates a mutex whose waiters sleep.
func MutexBlockingCreate(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysMutexCreate, 1)
}

// MutexLock locks mutex id.
func MutexLock(uc *kernel.UserContext, id int64) int64 {
	return uc.Syscall(abi.SysMutexLock, uint64(id))
}

// MutexUnlock unlocks mutex id.
func MutexUnlock(uc *kernel.UserContext, id int64) int64 {
	return uc.Syscall(abi.SysMutexUnlock, uint64(id))
}

// SemaphoreCreate creates a semaphore with count units.
func SemaphoreCreate(uc *kernel.UserContext, count int) int64 {
	return uc.Syscall(abi.SysSemaphoreCreate, uint64(count))
}

// SemaphoreUp releases a unit of semaphore id.
func SemaphoreUp(uc *kernel.UserContext, id int64) int64 {
	return uc.Syscall(abi.SysSemaphoreUp, uint64(id))
}

// SemaphoreDown takes a unit of semaphore id.
func SemaphoreDown(uc *kernel.UserContext, id int64) int64 {
	return uc.Syscall(abi.SysSemaphoreDown, uint64(id))
}

// CondvarCreate creates a condition variable.
func CondvarCreate(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysCondvarCreate)
}

// CondvarSignal wakes one waiter of condition variable id.
func CondvarSignal(uc *kernel.UserContext, id int64) int64 {
	return uc.Syscall(abi.SysCondvarSignal, uint64(id))
}

// CondvarWait atomically unlocks mutex and waits on condition variable id,
// then relocks mutex.
func CondvarWait(uc *kernel.UserContext, id, mutex int64) int64 {
	return uc.Syscall(abi.SysCondvarWait, uint64(id), uint64(mutex))
}

// EnableDeadlockDetect turns deadlock detection on or off for the process.
func EnableDeadlockDetect(uc *kernel.UserContext, enabled bool) int64 {
	var v uint64
	if enabled {
		v = 1
	}
	return uc.Syscall(abi.SysEnableDeadlockDetect, v)
}
