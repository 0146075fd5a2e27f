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
	"fmt"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// writeChunk bounds the bytes staged on the stack per write.
const writeChunk = 1024

// Write writes b to fd and returns the number of bytes written.
func Write(uc *kernel.UserContext, fd int, b []byte) int64 {
	var total int64
	for len(b) > 0 {
		n := min(len(b), writeChunk)
		f := push(uc)
		addr := pushBytes(uc, b[:n])
		ret := uc.Syscall(abi.SysWrite, uint64(fd), uint64(addr), uint64(n))
		f.pop()
		if ret < 0 {
			return ret
		}
		total += ret
		b = b[n:]
	}
	return total
}

// Read reads up to len(b) bytes from fd into b.
func Read(uc *kernel.UserContext, fd int, b []byte) int64 {
	f := push(uc)
	defer f.pop()
	addr := uc.Alloca(uint64(len(b)))
	ret := uc.Syscall(abi.SysRead, uint64(fd), uint64(addr), uint64(len(b)))
	if ret > 0 {
		uc.Load(addr, b[:ret])
	}
	return ret
}

// Close closes fd.
func Close(uc *kernel.UserContext, fd int) int64 {
	return uc.Syscall(abi.SysClose, uint64(fd))
}

// Fstat describes the file open on fd.
func Fstat(uc *kernel.UserContext, fd int) (abi.Stat, int64) {
	f := push(uc)
	defer f.pop()
	var s abi.Stat
	addr := uc.Alloca(abi.SizeOfStat)
	ret := uc.Syscall(abi.SysFstat, uint64(fd), uint64(addr))
	if ret == 0 {
		b := make([]byte, abi.SizeOfStat)
		uc.Load(addr, b)
		s.UnmarshalBytes(b)
	}
	return s, ret
}

// Printf formats to standard output.
func Printf(uc *kernel.UserContext, format string, v ...any) int64 {
	return Write(uc, abi.Stdout, fmt.Appendf(nil, format, v...))
}

// Println writes its operands and a newline to standard output.
func Println(uc *kernel.UserContext, v ...any) int64 {
	return Write(uc, abi.Stdout, fmt.Appendln(nil, v...))
}
