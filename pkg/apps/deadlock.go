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

package apps

import (
	"time"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

// Data segment words of the deadlock programs.
const (
	rejectedWord = iota
	firstResourceWord
	secondResourceWord
)

// lockOps are the acquire and release operations on one kind of resource.
type lockOps struct {
	acquire func(uc *kernel.UserContext, id int64) int64
	release func(uc *kernel.UserContext, id int64) int64
}

var (
	mutexOps     = lockOps{acquire: ulib.MutexLock, release: ulib.MutexUnlock}
	semaphoreOps = lockOps{acquire: ulib.SemaphoreDown, release: ulib.SemaphoreUp}
)

func deadlockPrograms() []*Program {
	return []*Program{
		{
			Name:        "deadlock_mutex",
			Description: "has mutex requests that would deadlock rejected",
			Main:        deadlockMutexMain,
		},
		{
			Name:        "deadlock_sem",
			Description: "has an unsafe semaphore request rejected",
			Main:        deadlockSemMain,
		},
		{
			Name:        "deadlock_retry",
			Description: "retries a rejected semaphore request until it is safe",
			Main:        deadlockRetryMain,
		},
	}
}

func deadlockMutexMain(uc *kernel.UserContext, _ uint64) int {
	if ulib.EnableDeadlockDetect(uc, true) != 0 {
		return 1
	}
	a, b := ulib.MutexBlockingCreate(uc), ulib.MutexBlockingCreate(uc)
	if ulib.MutexLock(uc, a) != 0 {
		return 1
	}
	if ret := ulib.MutexLock(uc, a); ret != abi.Deadlock {
		ulib.Printf(uc, "relocking a held mutex = %d\n", ret)
		return 1
	}
	if ulib.MutexUnlock(uc, a) != 0 {
		return 1
	}
	return crossAcquire(uc, mutexOps, a, b)
}

func deadlockSemMain(uc *kernel.UserContext, _ uint64) int {
	if ulib.EnableDeadlockDetect(uc, true) != 0 {
		return 1
	}
	a, b := ulib.SemaphoreCreate(uc, 1), ulib.SemaphoreCreate(uc, 1)
	if a < 0 || b < 0 {
		return 1
	}
	return crossAcquire(uc, semaphoreOps, a, b)
}

// crossAcquire runs two threads that take a and b in opposite orders with a
// pause in between. Exactly one of the second requests must be rejected;
// the rejected thread backs off so that the other can finish.
func crossAcquire(uc *kernel.UserContext, ops lockOps, a, b int64) int {
	ulib.StoreUint64(uc, dataWord(rejectedWord), 0)
	ulib.StoreUint64(uc, dataWord(firstResourceWord), uint64(a))
	ulib.StoreUint64(uc, dataWord(secondResourceWord), uint64(b))

	body := func(uc *kernel.UserContext, arg uint64) int {
		first := int64(ulib.LoadUint64(uc, dataWord(firstResourceWord)))
		second := int64(ulib.LoadUint64(uc, dataWord(secondResourceWord)))
		if arg == 1 {
			first, second = second, first
		}
		if ops.acquire(uc, first) != 0 {
			return 1
		}
		ulib.Sleep(uc, 10)
		switch ret := ops.acquire(uc, second); ret {
		case 0:
			ops.release(uc, second)
		case abi.Deadlock:
			n := ulib.LoadUint64(uc, dataWord(rejectedWord))
			ulib.StoreUint64(uc, dataWord(rejectedWord), n+1)
		default:
			return 1
		}
		ops.release(uc, first)
		return 0
	}

	var tids [2]int64
	for i := range tids {
		if tids[i] = ulib.ThreadCreate(uc, body, uint64(i)); tids[i] < 0 {
			return 1
		}
	}
	for _, tid := range tids {
		if code := ulib.WaitTID(uc, int(tid)); code != 0 {
			ulib.Printf(uc, "thread %d exited with %d\n", tid, code)
			return 1
		}
	}
	if n := ulib.LoadUint64(uc, dataWord(rejectedWord)); n != 1 {
		ulib.Printf(uc, "%d requests rejected, want 1\n", n)
		return 1
	}
	ulib.Println(uc, "deadlock avoided")
	return 0
}

func deadlockRetryMain(uc *kernel.UserContext, _ uint64) int {
	if ulib.EnableDeadlockDetect(uc, true) != 0 {
		return 1
	}
	sem := ulib.SemaphoreCreate(uc, 0)
	if sem < 0 {
		return 1
	}
	ulib.StoreUint64(uc, dataWord(firstResourceWord), uint64(sem))
	signaler := ulib.ThreadCreate(uc, func(uc *kernel.UserContext, _ uint64) int {
		ulib.Sleep(uc, 20)
		return int(ulib.SemaphoreUp(uc, int64(ulib.LoadUint64(uc, dataWord(firstResourceWord)))))
	}, 0)
	if signaler < 0 {
		return 1
	}

	// No unit exists until the signaler runs, so early requests are unsafe.
	attempts := 0
	ret := ulib.RetryDeadlock(uc, ulib.DeadlockBackOff(10*time.Millisecond, 8), func() int64 {
		attempts++
		return ulib.SemaphoreDown(uc, sem)
	})
	if ret != 0 {
		ulib.Printf(uc, "semaphore_down = %d after %d attempts\n", ret, attempts)
		return 1
	}
	if code := ulib.WaitTID(uc, int(signaler)); code != 0 {
		return 1
	}
	ulib.Printf(uc, "semaphore acquired after %d attempts\n", attempts)
	return 0
}
