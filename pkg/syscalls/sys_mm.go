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

import "gvisor.dev/ukern/pkg/kernel"

// Mmap implements mmap(start, len, port).
func Mmap(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.Process().MemoryManager().MMap(args[0].Pointer(), args[1].Uint64(), args[2].Uint64())
}

// Munmap implements munmap(start, len).
func Munmap(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.Process().MemoryManager().MUnmap(args[0].Pointer(), args[1].Uint64())
}

// Sbrk implements sbrk(delta). It returns the previous program break.
func Sbrk(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	old, err := t.Process().MemoryManager().Sbrk(args[0].Int64())
	if err != nil {
		return 0, err
	}
	return int64(old), nil
}
