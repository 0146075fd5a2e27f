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

// forkChildren is the number of children created by forktest.
const forkChildren = 8

func processPrograms() []*Program {
	return []*Program{
		{
			Name:        "forktest",
			Description: "forks children that inherit a copy of the data segment",
			Main:        forkTestMain,
		},
		{
			Name:        "forkexec",
			Description: "forks a child that execs hello",
			Main:        forkExecMain,
		},
		{
			Name:        "exec",
			Description: "replaces itself with hello",
			Main:        execMain,
		},
		{
			Name:        "spawn",
			Description: "spawns hello and waits for it",
			Main:        spawnMain,
		},
		{
			Name:        "orphan",
			Description: "exits while its child still runs",
			Main:        orphanMain,
		},
	}
}

func forkTestMain(uc *kernel.UserContext, _ uint64) int {
	for i := range forkChildren {
		// Each child sees the value stored before its fork.
		ulib.StoreUint64(uc, dataWord(0), uint64(i))
		if pid := ulib.Fork(uc, forkChild); pid < 0 {
			ulib.Printf(uc, "fork %d = %d\n", i, pid)
			return 1
		}
	}
	seen := make(map[int32]bool)
	for range forkChildren {
		pid, code := ulib.Wait(uc)
		if pid < 0 {
			ulib.Printf(uc, "wait = %d\n", pid)
			return 1
		}
		seen[code] = true
	}
	for i := range forkChildren {
		if !seen[int32(100+i)] {
			ulib.Printf(uc, "no child exited with %d\n", 100+i)
			return 1
		}
	}
	if pid, _ := ulib.Wait(uc); pid != abi.Failure {
		ulib.Printf(uc, "wait with no children = %d\n", pid)
		return 1
	}
	ulib.Println(uc, "forktest OK")
	return 0
}

func forkChild(uc *kernel.UserContext, ret uint64) int {
	if ret != 0 {
		return 1
	}
	return 100 + int(ulib.LoadUint64(uc, dataWord(0)))
}

func forkExecMain(uc *kernel.UserContext, _ uint64) int {
	pid := ulib.Fork(uc, func(uc *kernel.UserContext, _ uint64) int {
		ulib.Exec(uc, "hello")
		return 1
	})
	if pid < 0 {
		ulib.Printf(uc, "fork = %d\n", pid)
		return 1
	}
	got, code := ulib.WaitPID(uc, int(pid))
	if got != pid || code != 0 {
		ulib.Printf(uc, "waitpid(%d) = %d, code %d\n", pid, got, code)
		return 1
	}
	return 0
}

func execMain(uc *kernel.UserContext, _ uint64) int {
	if ret := ulib.Exec(uc, "no such program"); ret != abi.Failure {
		ulib.Printf(uc, "exec of unknown program = %d\n", ret)
		return 1
	}
	ulib.Exec(uc, "hello")
	ulib.Println(uc, "exec returned")
	return 1
}

func spawnMain(uc *kernel.UserContext, _ uint64) int {
	if ret := ulib.Spawn(uc, "no such program"); ret != abi.Failure {
		ulib.Printf(uc, "spawn of unknown program = %d\n", ret)
		return 1
	}
	pid := ulib.Spawn(uc, "hello")
	if pid < 0 {
		ulib.Printf(uc, "spawn = %d\n", pid)
		return 1
	}
	if ret, _ := ulib.TryWaitPID(uc, int(pid)+1000); ret != abi.Failure {
		ulib.Printf(uc, "waitpid of a stranger = %d\n", ret)
		return 1
	}
	got, code := ulib.WaitPID(uc, int(pid))
	if got != pid || code != 0 {
		ulib.Printf(uc, "waitpid(%d) = %d, code %d\n", pid, got, code)
		return 1
	}
	return 0
}

func orphanMain(uc *kernel.UserContext, _ uint64) int {
	pid := ulib.Fork(uc, func(uc *kernel.UserContext, _ uint64) int {
		ulib.Sleep(uc, 20)
		ulib.Println(uc, "orphan done")
		return 7
	})
	if pid < 0 {
		return 1
	}
	return 0
}
