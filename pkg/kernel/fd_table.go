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
	"errors"
	"fmt"
	"io"
	"sync"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/mm"
)

// ErrBadFD is returned for descriptors that are not open or do not allow
// the requested operation.
var ErrBadFD = errors.New("bad file descriptor")

// Stat modes.
const (
	ModeNull uint32 = abi.ModeNull
	ModeChar uint32 = abi.ModeChar
	ModeDir  uint32 = abi.ModeDir
	ModeFile uint32 = abi.ModeFile
)

// Stat describes an open file.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	Nlink uint32
}

// File is an open file.
type File interface {
	Readable() bool
	Writable() bool

	// Read fills dst and returns the number of bytes read. Zero means end
	// of file.
	Read(t *Task, dst mm.UserBuffer) (int, error)

	// Write writes src and returns the number of bytes written.
	Write(t *Task, src mm.UserBuffer) (int, error)

	Stat() Stat
}

// stdinFile reads from the kernel's input.
type stdinFile struct {
	r io.Reader
}

func (*stdinFile) Readable() bool { return true }
func (*stdinFile) Writable() bool { return false }

func (f *stdinFile) Read(t *Task, dst mm.UserBuffer) (int, error) {
	if f.r == nil {
		return 0, nil
	}
	buf := make([]byte, dst.Len())
	n, err := f.r.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}
	return dst.CopyOut(buf[:n]), nil
}

func (*stdinFile) Write(*Task, mm.UserBuffer) (int, error) {
	return 0, ErrBadFD
}

func (*stdinFile) Stat() Stat {
	return Stat{Mode: ModeChar, Nlink: 1}
}

// stdoutFile writes to one of the kernel's outputs.
type stdoutFile struct {
	w io.Writer
}

func (*stdoutFile) Readable() bool { return false }
func (*stdoutFile) Writable() bool { return true }

func (*stdoutFile) Read(*Task, mm.UserBuffer) (int, error) {
	return 0, ErrBadFD
}

func (f *stdoutFile) Write(t *Task, src mm.UserBuffer) (int, error) {
	n := 0
	for _, b := range src {
		if f.w == nil {
			n += len(b)
			continue
		}
		w, err := f.w.Write(b)
		n += w
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (*stdoutFile) Stat() Stat {
	return Stat{Ino: 1, Mode: ModeChar, Nlink: 1}
}

// FDTable maps descriptors to open files.
type FDTable struct {
	mu sync.Mutex

	// files is indexed by descriptor. Closed descriptors are nil.
	//
	// +checklocks:mu
	files []File
}

// newStdioFDTable returns a table with descriptors 0, 1 and 2 open on the
// kernel's standard input, output and error.
func (k *Kernel) newStdioFDTable() *FDTable {
	return &FDTable{files: []File{
		&stdinFile{r: k.stdin},
		&stdoutFile{w: k.stdout},
		&stdoutFile{w: k.stderr},
	}}
}

// Get returns the file open on fd.
func (f *FDTable) Get(fd int) (File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fd < 0 || fd >= len(f.files) || f.files[fd] == nil {
		return nil, fmt.Errorf("%w: %d", ErrBadFD, fd)
	}
	return f.files[fd], nil
}

// Add installs file at the lowest free descriptor and returns it.
func (f *FDTable) Add(file File) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fd, cur := range f.files {
		if cur == nil {
			f.files[fd] = file
			return fd
		}
	}
	f.files = append(f.files, file)
	return len(f.files) - 1
}

// Remove closes fd.
func (f *FDTable) Remove(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fd < 0 || fd >= len(f.files) || f.files[fd] == nil {
		return fmt.Errorf("%w: %d", ErrBadFD, fd)
	}
	f.files[fd] = nil
	return nil
}

// RemoveAll closes every descriptor.
func (f *FDTable) RemoveAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = nil
}

// Fork returns a table referring to the same open files.
func (f *FDTable) Fork() *FDTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	files := make([]File, len(f.files))
	copy(files, f.files)
	return &FDTable{files: files}
}
