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

// Package ulib is the user-side system call library. Every function takes
// the calling thread's UserContext and passes arguments exactly as a user
// program would: scalars in registers and buffers in user memory, staged on
// the thread's stack.
//
// Return values follow the kernel's conventions: -1 for failure, -2 for a
// wait on something that has not exited and -0xdead for a request refused
// by deadlock detection.
package ulib

import (
	"encoding/binary"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/kernel"
)

// Syscall traps with the given number and arguments.
func Syscall(uc *kernel.UserContext, sysno uintptr, args ...uint64) int64 {
	return uc.Syscall(sysno, args...)
}

// stackFrame records the stack pointer so that scratch space taken with
// Alloca can be dropped with pop.
type stackFrame struct {
	uc *kernel.UserContext
	sp hostarch.Addr
}

func push(uc *kernel.UserContext) stackFrame {
	return stackFrame{uc: uc, sp: uc.SP()}
}

func (f stackFrame) pop() {
	f.uc.SetSP(f.sp)
}

// pushBytes copies b onto the stack and returns its address.
func pushBytes(uc *kernel.UserContext, b []byte) hostarch.Addr {
	addr := uc.Alloca(uint64(len(b)))
	uc.Store(addr, b)
	return addr
}

// pushString copies s onto the stack as a NUL terminated string.
func pushString(uc *kernel.UserContext, s string) hostarch.Addr {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return pushBytes(uc, b)
}

// LoadUint64 reads a little-endian word at va.
func LoadUint64(uc *kernel.UserContext, va hostarch.Addr) uint64 {
	var b [8]byte
	uc.Load(va, b[:])
	return binary.LittleEndian.Uint64(b[:])
}

// StoreUint64 writes v as a little-endian word at va.
func StoreUint64(uc *kernel.UserContext, va hostarch.Addr, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	uc.Store(va, b[:])
}
