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

package kernel

import (
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/mm"
)

// UserContext is what user code of one thread sees of the machine: the trap
// instruction, memory accessed through the MMU, the stack pointer and the
// addresses of its functions.
type UserContext struct {
	t *Task

	// sp is the stack pointer.
	sp hostarch.Addr
}

// Syscall traps into the kernel with up to six argument registers and
// returns the result register.
func (uc *UserContext) Syscall(sysno uintptr, args ...uint64) int64 {
	t := uc.t
	if !t.onCPU || t.killed.Load() {
		return CodeFailure
	}
	if len(args) > len(SyscallArguments{}) {
		panic(fmt.Sprintf("syscall %d with %d arguments", sysno, len(args)))
	}
	var a SyscallArguments
	for i, v := range args {
		a[i].Value = v
	}
	return t.trap(sysno, a)
}

// Load reads len(dst) bytes at va. A fault kills the process.
func (uc *UserContext) Load(va hostarch.Addr, dst []byte) {
	uc.access(va, len(dst), hostarch.Read).CopyIn(dst)
}

// Store writes src at va. A fault kills the process.
func (uc *UserContext) Store(va hostarch.Addr, src []byte) {
	uc.access(va, len(src), hostarch.Write).CopyOut(src)
}

func (uc *UserContext) access(va hostarch.Addr, n int, at hostarch.AccessType) mm.UserBuffer {
	t := uc.t
	if !t.onCPU || t.killed.Load() {
		return nil
	}
	buf, err := t.Process().MemoryManager().UserAccess(va, uint64(n), at)
	if err != nil {
		t.Warningf("page fault: %s access of %d bytes at %v: %v", at, n, va, err)
		t.ExitProcess(ExitCodeFault)
	}
	return buf
}

// SP returns the stack pointer.
func (uc *UserContext) SP() hostarch.Addr {
	return uc.sp
}

// SetSP sets the stack pointer.
func (uc *UserContext) SetSP(sp hostarch.Addr) {
	uc.sp = sp
}

// Alloca reserves n bytes on the stack, 16-byte aligned, and returns their
// address. Restore the stack pointer with SetSP to free them.
func (uc *UserContext) Alloca(n uint64) hostarch.Addr {
	uc.sp = (uc.sp - hostarch.Addr(n)) &^ 15
	return uc.sp
}

// FuncAddr returns an address that thread_create and fork accept as the
// entry point fn.
func (uc *UserContext) FuncAddr(fn Entry) hostarch.Addr {
	p := uc.t.Process()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.text = append(p.text, fn)
	return funcTableBase + hostarch.Addr(8*(len(p.text)-1))
}

// funcLocked returns the entry at addr.
//
// Preconditions: p.mu must be locked.
func (p *Process) funcLocked(addr hostarch.Addr) (Entry, error) {
	off := uint64(addr - funcTableBase)
	if addr < funcTableBase || off%8 != 0 || off/8 >= uint64(len(p.text)) {
		return nil, fmt.Errorf("%w: no function at %v", ErrInvalidArgument, addr)
	}
	return p.text[off/8], nil
}

// Func returns the entry at a function address handed out by FuncAddr.
func (p *Process) Func(addr hostarch.Addr) (Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.funcLocked(addr)
}
