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
	"fmt"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

func timePrograms() []*Program {
	return []*Program{
		{
			Name:        "sleep",
			Description: "sleeps and checks the elapsed time",
			Main:        sleepMain,
		},
		{
			Name:        "taskinfo",
			Description: "checks syscall counts and running time from task_info",
			Main:        taskInfoMain,
		},
	}
}

func sleepMain(uc *kernel.UserContext, _ uint64) int {
	const ms = 100
	start := ulib.GetTimeMillis(uc)
	if ret := ulib.Sleep(uc, ms); ret != 0 {
		ulib.Printf(uc, "sleep = %d\n", ret)
		return 1
	}
	if elapsed := ulib.GetTimeMillis(uc) - start; elapsed < ms {
		ulib.Printf(uc, "slept %dms, want at least %dms\n", elapsed, ms)
		return 1
	}
	ulib.Println(uc, "sleep OK")
	return 0
}

func taskInfoMain(uc *kernel.UserContext, _ uint64) int {
	for range 3 {
		ulib.GetPID(uc)
	}
	ulib.Sleep(uc, 50)
	ti, ret := ulib.TaskInfo(uc)
	if ret != 0 {
		ulib.Printf(uc, "task_info = %d\n", ret)
		return 1
	}
	switch {
	case ti.Status != abi.TaskRunning:
		ulib.Printf(uc, "status %d, want %d\n", ti.Status, abi.TaskRunning)
	case ti.SyscallTimes[abi.SysGetpid] != 3:
		ulib.Printf(uc, "getpid count %d, want 3\n", ti.SyscallTimes[abi.SysGetpid])
	case ti.SyscallTimes[abi.SysSleep] != 1:
		ulib.Printf(uc, "sleep count %d, want 1\n", ti.SyscallTimes[abi.SysSleep])
	case ti.SyscallTimes[abi.SysTaskInfo] != 1:
		ulib.Printf(uc, "task_info count %d, want 1\n", ti.SyscallTimes[abi.SysTaskInfo])
	case ti.Time < 50:
		ulib.Printf(uc, "time %dms, want at least 50ms\n", ti.Time)
	default:
		ulib.Println(uc, "taskinfo OK")
		return 0
	}
	return 1
}

// Stride programs run for strideRunMillis and report how many rounds they
// completed. Shares are proportional to priority.
const (
	strideRunMillis = 500
	strideMinPrio   = 5
	strideMaxPrio   = 10
)

func strideName(prio int) string {
	return fmt.Sprintf("stride%d", prio)
}

func stridePrograms() []*Program {
	ps := []*Program{{
		Name:        "stride",
		Description: "runs stride5 to stride10 side by side",
		Main: func(uc *kernel.UserContext, _ uint64) int {
			for prio := strideMinPrio; prio <= strideMaxPrio; prio++ {
				if pid := ulib.Spawn(uc, strideName(prio)); pid < 0 {
					return 1
				}
			}
			for range strideMaxPrio - strideMinPrio + 1 {
				if pid, _ := ulib.Wait(uc); pid < 0 {
					return 1
				}
			}
			return 0
		},
	}}
	for prio := strideMinPrio; prio <= strideMaxPrio; prio++ {
		ps = append(ps, &Program{
			Name:        strideName(prio),
			Description: fmt.Sprintf("counts rounds at priority %d", prio),
			Main:        strideMain,
		})
	}
	return ps
}

// strideMain sets its priority from the digits of its program name, which
// the loader placed at TextBase.
func strideMain(uc *kernel.UserContext, _ uint64) int {
	name := make([]byte, len("stride10"))
	uc.Load(TextBase, name)
	prio := 0
	for _, c := range name[len("stride"):] {
		if c >= '0' && c <= '9' {
			prio = prio*10 + int(c-'0')
		}
	}
	if ulib.SetPriority(uc, int64(prio)) != int64(prio) {
		return -1
	}
	start := ulib.GetTimeMillis(uc)
	rounds := 0
	for ulib.GetTimeMillis(uc)-start < strideRunMillis {
		rounds++
	}
	ulib.Printf(uc, "priority = %d, rounds = %d\n", prio, rounds)
	return rounds
}
