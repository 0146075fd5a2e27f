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

// GetTime returns the time since boot.
func GetTime(uc *kernel.UserContext) (abi.TimeVal, int64) {
	f := push(uc)
	defer f.pop()
	var tv abi.TimeVal
	addr := uc.Alloca(abi.SizeOfTimeVal)
	ret := uc.Syscall(abi.SysGetTime, uint64(addr), 0)
	if ret == 0 {
		b := make([]byte, abi.SizeOfTimeVal)
		uc.Load(addr, b)
		tv.UnmarshalBytes(b)
	}
	return tv, ret
}

// GetTimeMillis returns the time since boot in milliseconds, or -1.
func GetTimeMillis(uc *kernel.UserContext) int64 {
	tv, ret := GetTime(uc)
	if ret != 0 {
		return ret
	}
	return int64(tv.Millis())
}

// Sleep blocks the thread for ms milliseconds.
func Sleep(uc *kernel.UserContext, ms uint64) int64 {
	return uc.Syscall(abi.SysSleep, ms)
}

// TaskInfo describes the calling thread.
func TaskInfo(uc *kernel.UserContext) (abi.TaskInfo, int64) {
	f := push(uc)
	defer f.pop()
	var ti abi.TaskInfo
	addr := uc.Alloca(abi.SizeOfTaskInfo)
	ret := uc.Syscall(abi.SysTaskInfo, uint64(addr))
	if ret == 0 {
		b := make([]byte, abi.SizeOfTaskInfo)
		uc.Load(addr, b)
		ti.UnmarshalBytes(b)
	}
	return ti, ret
}
