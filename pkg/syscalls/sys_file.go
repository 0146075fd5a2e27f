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
	"fmt"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// Read implements read(fd, buf, len).
func Read(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint64()

	file, err := t.Process().FDTable().Get(fd)
	if err != nil {
		return 0, err
	}
	if !file.Readable() {
		return 0, fmt.Errorf("%w: %d not open for reading", kernel.ErrBadFD, fd)
	}
	dst, err := t.UserBuffer(addr, size)
	if err != nil {
		return 0, err
	}
	n, err := file.Read(t, dst)
	return int64(n), err
}

// Write implements write(fd, buf, len).
func Write(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()
	size := args[2].Uint64()

	file, err := t.Process().FDTable().Get(fd)
	if err != nil {
		return 0, err
	}
	if !file.Writable() {
		return 0, fmt.Errorf("%w: %d not open for writing", kernel.ErrBadFD, fd)
	}
	src, err := t.UserBuffer(addr, size)
	if err != nil {
		return 0, err
	}
	n, err := file.Write(t, src)
	return int64(n), err
}

// Close implements close(fd).
func Close(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	return 0, t.Process().FDTable().Remove(args[0].Int())
}

// Fstat implements fstat(fd, stat).
func Fstat(t *kernel.Task, args kernel.SyscallArguments) (int64, error) {
	fd := args[0].Int()
	addr := args[1].Pointer()

	file, err := t.Process().FDTable().Get(fd)
	if err != nil {
		return 0, err
	}
	ks := file.Stat()
	s := abi.Stat{
		Dev:   ks.Dev,
		Ino:   ks.Ino,
		Mode:  ks.Mode,
		Nlink: ks.Nlink,
	}
	b := make([]byte, s.SizeBytes())
	s.MarshalBytes(b)
	return 0, t.CopyOutBytes(addr, b)
}
