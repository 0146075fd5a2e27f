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
	"time"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// GetTime implements get_time(tv). The time is measured from boot.
func GetTime(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	tv := abi.DurationToTimeVal(t.Kernel().Uptime())
	b := make([]byte, tv.SizeBytes())
	tv.MarshalBytes(b)
	return 0, t.CopyOutBytes(args[0].Pointer(), b)
}

// Sleep implements sleep(ms).
func Sleep(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	t.Sleep(time.Duration(args[0].Uint64()) * time.Millisecond)
	return 0, nil
}

// TaskInfo implements task_info(info). The counts include this call.
func TaskInfo(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	ti := abi.TaskInfo{
		Status:       uint32(t.Status()),
		SyscallTimes: t.SyscallCounts(),
		Time:         uint64(t.RunningTime() / time.Millisecond),
	}
	b := make([]byte, ti.SizeBytes())
	ti.MarshalBytes(b)
	return 0, t.CopyOutBytes(args[0].Pointer(), b)
}
