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
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/kernel"
)

// Mmap maps [start, start+length) with the given port bits.
func Mmap(uc *kernel.UserContext, start hostarch.Addr, length uint64, port uint64) int64 {
	return uc.Syscall(abi.SysMmap, uint64(start), length, port)
}

// Munmap unmaps [start, start+length).
func Munmap(uc *kernel.UserContext, start hostarch.Addr, length uint64) int64 {
	return uc.Syscall(abi.SysMunmap, uint64(start), length)
}

// Sbrk moves the program break and returns the previous one, or -1.
func Sbrk(uc *kernel.UserContext, delta int64) int64 {
	return uc.Syscall(abi.SysSbrk, uint64(delta))
}
