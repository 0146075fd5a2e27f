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
	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

const (
	counterThreads = 4
	counterRounds  = 50
)

// Data segment words of the counter programs.
const (
	counterWord = iota
	counterMutexWord
)

func threadPrograms() []*Program {
	return []*Program{
		{
			Name:        "threads",
			Description: "creates threads and collects their exit codes",
			Main:        threadsMain,
		},
		{
			Name:        "mutex_counter",
			Description: "increments a shared counter under a blocking mutex",
			Main: func(uc *kernel.UserContext, _ uint64) int {
				return counterMain(uc, true)
			},
		},
		{
			Name:        "spin_counter",
			Description: "increments a shared counter under a spinning mutex",
			Main: func(uc *kernel.UserContext, _ uint64) int {
				return counterMain(uc, false)
			},
		},
	}
}

func threadsMain(uc *kernel.UserContext, _ uint64) int {
	const n = 3
	var tids [n]int64
	for i := range n {
		tids[i] = ulib.ThreadCreate(uc, threadBody, uint64(i))
		if tids[i] <= 0 {
			ulib.Printf(uc, "thread_create = %d\n", tids[i])
			return 1
		}
	}
	for i, tid := range tids {
		if code := ulib.WaitTID(uc, int(tid)); code != int64(10+i) {
			ulib.Printf(uc, "thread %d exited with %d\n", tid, code)
			return 1
		}
	}
	if ret := ulib.WaitTID(uc, int(ulib.GetTID(uc))); ret != abi.Failure {
		ulib.Printf(uc, "waittid on self = %d\n", ret)
		return 1
	}
	if ret := ulib.WaitTID(uc, int(tids[0])); ret != abi.Failure {
		ulib.Printf(uc, "second waittid = %d\n", ret)
		return 1
	}
	ulib.Println(uc, "threads OK")
	return 0
}

func threadBody(uc *kernel.UserContext, arg uint64) int {
	ulib.Printf(uc, "thread %d running as tid %d\n", arg, ulib.GetTID(uc))
	ulib.Yield(uc)
	return 10 + int(arg)
}

func counterMain(uc *kernel.UserContext, blocking bool) int {
	var m int64
	if blocking {
		m = ulib.MutexBlockingCreate(uc)
	} else {
		m = ulib.MutexCreate(uc)
	}
	if m < 0 {
		return 1
	}
	ulib.StoreUint64(uc, dataWord(counterMutexWord), uint64(m))

	var tids []int64
	for range counterThreads {
		tid := ulib.ThreadCreate(uc, counterBody, 0)
		if tid < 0 {
			return 1
		}
		tids = append(tids, tid)
	}
	for _, tid := range tids {
		if code := ulib.WaitTID(uc, int(tid)); code != 0 {
			ulib.Printf(uc, "thread %d exited with %d\n", tid, code)
			return 1
		}
	}
	if got := ulib.LoadUint64(uc, dataWord(counterWord)); got != counterThreads*counterRounds {
		ulib.Printf(uc, "counter = %d, want %d\n", got, counterThreads*counterRounds)
		return 1
	}
	ulib.Println(uc, "counter OK")
	return 0
}

// counterBody increments the counter with a yield between the read and the
// write, which loses updates unless the mutex excludes other threads.
func counterBody(uc *kernel.UserContext, _ uint64) int {
	m := int64(ulib.LoadUint64(uc, dataWord(counterMutexWord)))
	for range counterRounds {
		if ulib.MutexLock(uc, m) != 0 {
			return 1
		}
		v := ulib.LoadUint64(uc, dataWord(counterWord))
		ulib.Yield(uc)
		ulib.StoreUint64(uc, dataWord(counterWord), v+1)
		if ulib.MutexUnlock(uc, m) != 0 {
			return 1
		}
	}
	return 0
}
