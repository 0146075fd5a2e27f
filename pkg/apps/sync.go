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
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

// Data segment words of the condvar program.
const (
	flagWord = iota
	condMutexWord
	condvarWord
)

// Dining philosophers.
const (
	philosophers = 5
	meals        = 3

	// forkWords holds the philosophers' fork mutexes, mealWords their meal
	// counts.
	forkWords = 8
	mealWords = forkWords + philosophers
)

// Producer and consumer.
const (
	ringSize   = 4
	produced   = 32
	producers  = 2
	ringWords  = 16
	emptyWord  = 0
	fullWord   = 1
	ringMutex  = 2
	ringHead   = 3
	ringTail   = 4
	consumeSum = 5
)

func condvarPrograms() []*Program {
	return []*Program{
		{
			Name:        "condvar",
			Description: "waits on a condition variable for a flag set by another thread",
			Main:        condvarMain,
		},
		{
			Name:        "philosophers",
			Description: "dining philosophers with ordered fork mutexes and deadlock detection on",
			Main:        philosophersMain,
		},
		{
			Name:        "sync_sem",
			Description: "producers and a consumer on a ring buffer guarded by semaphores",
			Main:        syncSemMain,
		},
	}
}

func condvarMain(uc *kernel.UserContext, _ uint64) int {
	m := ulib.MutexBlockingCreate(uc)
	c := ulib.CondvarCreate(uc)
	if m < 0 || c < 0 {
		return 1
	}
	ulib.StoreUint64(uc, dataWord(flagWord), 0)
	ulib.StoreUint64(uc, dataWord(condMutexWord), uint64(m))
	ulib.StoreUint64(uc, dataWord(condvarWord), uint64(c))

	setter := ulib.ThreadCreate(uc, func(uc *kernel.UserContext, _ uint64) int {
		m := int64(ulib.LoadUint64(uc, dataWord(condMutexWord)))
		c := int64(ulib.LoadUint64(uc, dataWord(condvarWord)))
		ulib.Sleep(uc, 10)
		ulib.MutexLock(uc, m)
		ulib.StoreUint64(uc, dataWord(flagWord), 1)
		ulib.CondvarSignal(uc, c)
		ulib.MutexUnlock(uc, m)
		return 0
	}, 0)
	waiter := ulib.ThreadCreate(uc, func(uc *kernel.UserContext, _ uint64) int {
		m := int64(ulib.LoadUint64(uc, dataWord(condMutexWord)))
		c := int64(ulib.LoadUint64(uc, dataWord(condvarWord)))
		ulib.MutexLock(uc, m)
		for ulib.LoadUint64(uc, dataWord(flagWord)) == 0 {
			if ulib.CondvarWait(uc, c, m) != 0 {
				return 1
			}
		}
		ulib.MutexUnlock(uc, m)
		return 0
	}, 0)
	if setter < 0 || waiter < 0 {
		return 1
	}
	if ulib.WaitTID(uc, int(setter)) != 0 || ulib.WaitTID(uc, int(waiter)) != 0 {
		return 1
	}
	ulib.Println(uc, "condvar OK")
	return 0
}

func philosophersMain(uc *kernel.UserContext, _ uint64) int {
	if ulib.EnableDeadlockDetect(uc, true) != 0 {
		return 1
	}
	for i := range philosophers {
		m := ulib.MutexBlockingCreate(uc)
		if m < 0 {
			return 1
		}
		ulib.StoreUint64(uc, dataWord(forkWords+i), uint64(m))
		ulib.StoreUint64(uc, dataWord(mealWords+i), 0)
	}
	var tids [philosophers]int64
	for i := range tids {
		if tids[i] = ulib.ThreadCreate(uc, philosopher, uint64(i)); tids[i] < 0 {
			return 1
		}
	}
	for _, tid := range tids {
		if code := ulib.WaitTID(uc, int(tid)); code != 0 {
			ulib.Printf(uc, "philosopher thread %d exited with %d\n", tid, code)
			return 1
		}
	}
	for i := range philosophers {
		if n := ulib.LoadUint64(uc, dataWord(mealWords+i)); n != meals {
			ulib.Printf(uc, "philosopher %d ate %d meals\n", i, n)
			return 1
		}
	}
	ulib.Println(uc, "philosophers OK")
	return 0
}

// philosopher takes its lower numbered fork first, so no wait-for cycle
// can form.
func philosopher(uc *kernel.UserContext, arg uint64) int {
	i := int(arg)
	left, right := i, (i+1)%philosophers
	lo, hi := min(left, right), max(left, right)
	first := int64(ulib.LoadUint64(uc, dataWord(forkWords+lo)))
	second := int64(ulib.LoadUint64(uc, dataWord(forkWords+hi)))
	for range meals {
		ulib.Sleep(uc, uint64(1+i))
		if ulib.MutexLock(uc, first) != 0 || ulib.MutexLock(uc, second) != 0 {
			return 1
		}
		n := ulib.LoadUint64(uc, dataWord(mealWords+i))
		ulib.Sleep(uc, 2)
		ulib.StoreUint64(uc, dataWord(mealWords+i), n+1)
		ulib.MutexUnlock(uc, second)
		ulib.MutexUnlock(uc, first)
	}
	return 0
}

func syncSemMain(uc *kernel.UserContext, _ uint64) int {
	empty := ulib.SemaphoreCreate(uc, ringSize)
	full := ulib.SemaphoreCreate(uc, 0)
	m := ulib.MutexBlockingCreate(uc)
	if empty < 0 || full < 0 || m < 0 {
		return 1
	}
	for i, v := range []int64{empty, full, m, 0, 0, 0} {
		ulib.StoreUint64(uc, dataWord(i), uint64(v))
	}

	var tids []int64
	for p := range producers {
		tid := ulib.ThreadCreate(uc, producer, uint64(p))
		if tid < 0 {
			return 1
		}
		tids = append(tids, tid)
	}
	tid := ulib.ThreadCreate(uc, consumer, 0)
	if tid < 0 {
		return 1
	}
	tids = append(tids, tid)
	for _, tid := range tids {
		if ulib.WaitTID(uc, int(tid)) != 0 {
			return 1
		}
	}

	// Producer p writes p*produced+1 to (p+1)*produced.
	var want uint64
	for v := uint64(1); v <= producers*produced; v++ {
		want += v
	}
	if got := ulib.LoadUint64(uc, dataWord(consumeSum)); got != want {
		ulib.Printf(uc, "consumed sum %d, want %d\n", got, want)
		return 1
	}
	ulib.Println(uc, "sync_sem OK")
	return 0
}

func producer(uc *kernel.UserContext, arg uint64) int {
	empty := int64(ulib.LoadUint64(uc, dataWord(emptyWord)))
	full := int64(ulib.LoadUint64(uc, dataWord(fullWord)))
	m := int64(ulib.LoadUint64(uc, dataWord(ringMutex)))
	for i := range uint64(produced) {
		ulib.SemaphoreDown(uc, empty)
		ulib.MutexLock(uc, m)
		tail := ulib.LoadUint64(uc, dataWord(ringTail))
		ulib.StoreUint64(uc, dataWord(ringWords+int(tail%ringSize)), arg*produced+i+1)
		ulib.StoreUint64(uc, dataWord(ringTail), tail+1)
		ulib.MutexUnlock(uc, m)
		ulib.SemaphoreUp(uc, full)
	}
	return 0
}

func consumer(uc *kernel.UserContext, _ uint64) int {
	empty := int64(ulib.LoadUint64(uc, dataWord(emptyWord)))
	full := int64(ulib.LoadUint64(uc, dataWord(fullWord)))
	m := int64(ulib.LoadUint64(uc, dataWord(ringMutex)))
	for range producers * produced {
		ulib.SemaphoreDown(uc, full)
		ulib.MutexLock(uc, m)
		head := ulib.LoadUint64(uc, dataWord(ringHead))
		v := ulib.LoadUint64(uc, dataWord(ringWords+int(head%ringSize)))
		ulib.StoreUint64(uc, dataWord(ringHead), head+1)
		sum := ulib.LoadUint64(uc, dataWord(consumeSum))
		ulib.StoreUint64(uc, dataWord(consumeSum), sum+v)
		ulib.MutexUnlock(uc, m)
		ulib.SemaphoreUp(uc, empty)
	}
	return 0
}
