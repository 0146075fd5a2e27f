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
	"encoding/binary"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// Exit terminates the calling thread. Exiting the main thread terminates
// the process. Exit does not return while the thread holds the CPU.
func Exit(uc *kernel.UserContext, code int) {
	uc.Syscall(abi.SysExit, uint64(int64(code)))
}

// Yield gives up the CPU.
func Yield(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysYield)
}

// GetPID returns the process ID.
func GetPID(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysGetpid)
}

// GetTID returns the thread ID.
func GetTID(uc *kernel.UserContext) int64 {
	return uc.Syscall(abi.SysGettid)
}

// SetPriority sets the thread's scheduling priority and returns it, or -1.
func SetPriority(uc *kernel.UserContext, prio int64) int64 {
	return uc.Syscall(abi.SysSetPriority, uint64(prio))
}

// Fork creates a child process. The child runs cont with argument 0 on a
// copy of the caller's memory; the parent gets the child's pid.
func Fork(uc *kernel.UserContext, cont kernel.Entry) int64 {
	return uc.Syscall(abi.SysFork, uint64(uc.FuncAddr(cont)))
}

// Exec replaces the process image. It returns -1 on failure and does not
// return otherwise.
func Exec(uc *kernel.UserContext, path string) int64 {
	f := push(uc)
	defer f.pop()
	return uc.Syscall(abi.SysExec, uint64(pushString(uc, path)))
}

// Spawn starts the named program in a child process and returns its pid.
func Spawn(uc *kernel.UserContext, path string) int64 {
	f := push(uc)
	defer f.pop()
	return uc.Syscall(abi.SysSpawn, uint64(pushString(uc, path)))
}

// TryWaitPID reaps the child pid, or any child if pid is -1. It returns -2
// at once if no matching child has exited.
func TryWaitPID(uc *kernel.UserContext, pid int) (int64, int32) {
	f := push(uc)
	defer f.pop()
	addr := uc.Alloca(4)
	ret := uc.Syscall(abi.SysWaitpid, uint64(int64(pid)), uint64(addr))
	if ret < 0 {
		return ret, 0
	}
	var b [4]byte
	uc.Load(addr, b[:])
	return ret, int32(binary.LittleEndian.Uint32(b[:]))
}

// WaitPID is TryWaitPID, yielding until a matching child exits.
func WaitPID(uc *kernel.UserContext, pid int) (int64, int32) {
	for {
		ret, code := TryWaitPID(uc, pid)
		if ret != abi.NotExited {
			return ret, code
		}
		Yield(uc)
	}
}

// Wait reaps any child.
func Wait(uc *kernel.UserContext) (int64, int32) {
	return WaitPID(uc, -1)
}

// ThreadCreate starts a thread running fn(arg) and returns its tid.
func ThreadCreate(uc *kernel.UserContext, fn kernel.Entry, arg uint64) int64 {
	return uc.Syscall(abi.SysThreadCreate, uint64(uc.FuncAddr(fn)), arg)
}

// WaitTID waits for thread tid to exit and returns its exit code, or -1.
func WaitTID(uc *kernel.UserContext, tid int) int64 {
	for {
		ret := uc.Syscall(abi.SysWaittid, uint64(tid))
		if ret != abi.NotExited {
			return ret
		}
		Yield(uc)
	}
}
