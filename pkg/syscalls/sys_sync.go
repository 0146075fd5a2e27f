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

import "gvisor.dev/ukern/pkg/kernel"

// MutexCreate implements mutex_create(blocking).
func MutexCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.MutexCreate(args[0].Value != 0)), nil
}

// MutexLock implements mutex_lock(id).
func MutexLock(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.MutexLock(args[0].Int())
}

// MutexUnlock implements mutex_unlock(id).
func MutexUnlock(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.MutexUnlock(args[0].Int())
}

// SemaphoreCreate implements semaphore_create(count).
func SemaphoreCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	id, err := t.SemaphoreCreate(args[0].Int())
	return int64(id), err
}

// SemaphoreUp implements semaphore_up(id).
func SemaphoreUp(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.SemaphoreUp(args[0].Int())
}

// SemaphoreDown implements semaphore_down(id).
func SemaphoreDown(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.SemaphoreDown(args[0].Int())
}

// CondvarCreate implements condvar_create().
func CondvarCreate(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return int64(t.CondvarCreate()), nil
}

// CondvarSignal implements condvar_signal(id).
func CondvarSignal(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.CondvarSignal(args[0].Int())
}

// CondvarWait implements condvar_wait(cid, mid).
func CondvarWait(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.CondvarWait(args[0].Int(), args[1].Int())
}

// EnableDeadlockDetect implements enable_deadlock_detect(enabled).
func EnableDeadlockDetect(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.EnableDeadlockDetect(args[0].Uint64())
}
