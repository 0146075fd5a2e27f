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

// Package pgalloc hands out and reclaims physical page frames.
package pgalloc

import (
	"fmt"
	"sync"

	"gvisor.dev/ukern/pkg/hostarch"
)

// Allocator is a stack-based frame allocator. Frames that have never been
// handed out are taken in ascending order; released frames are reused most
// recent first.
type Allocator struct {
	mem *PhysMem

	mu sync.Mutex

	// current is the lowest frame never handed out.
	current hostarch.PPN

	// end is one past the last frame this allocator owns.
	end hostarch.PPN

	// recycled holds released frames.
	recycled []hostarch.PPN

	// inUse is the set of frames currently owned by a Frame.
	inUse map[hostarch.PPN]struct{}
}

// NewAllocator returns an allocator for every frame of mem.
func NewAllocator(mem *PhysMem) *Allocator {
	return NewAllocatorRange(mem, mem.Base(), mem.End())
}

// NewAllocatorRange returns an allocator for the frames [start, end) of mem.
// Frames of mem outside that range are never handed out; they remain
// available to identity mappings.
func NewAllocatorRange(mem *PhysMem, start, end hostarch.PPN) *Allocator {
	if start < mem.Base() || end > mem.End() || start > end {
		panic(fmt.Sprintf("allocator range [%#x, %#x) outside physical memory [%#x, %#x)", start, end, mem.Base(), mem.End()))
	}
	return &Allocator{
		mem:     mem,
		current: start,
		end:     end,
		inUse:   make(map[hostarch.PPN]struct{}),
	}
}

// Mem returns the physical memory frames are allocated from.
func (a *Allocator) Mem() *PhysMem {
	return a.mem
}

// Alloc allocates a frame. Frames are zeroed when released, so the frame
// is zero filled. ok is false if every frame is in use.
func (a *Allocator) Alloc() (f *Frame, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var ppn hostarch.PPN
	if n := len(a.recycled); n > 0 {
		ppn = a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
	} else if a.current < a.end {
		ppn = a.current
		a.current++
	} else {
		return nil, false
	}
	a.inUse[ppn] = struct{}{}
	return &Frame{ppn: ppn, a: a}, true
}

// MustAlloc is like Alloc, but panics if memory is exhausted.
func (a *Allocator) MustAlloc() *Frame {
	f, ok := a.Alloc()
	if !ok {
		panic("out of physical frames")
	}
	return f
}

func (a *Allocator) release(ppn hostarch.PPN) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.inUse[ppn]; !ok {
		panic(fmt.Sprintf("frame %#x released but not allocated", ppn))
	}
	delete(a.inUse, ppn)
	a.mem.Zero(ppn)
	a.recycled = append(a.recycled, ppn)
}

// InUse returns the number of frames currently allocated.
func (a *Allocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.inUse)
}

// Free returns the number of frames that can still be allocated.
func (a *Allocator) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.recycled) + int(a.end-a.current)
}

// Frame is an exclusively owned physical frame. It must be released exactly
// once by its owner.
type Frame struct {
	ppn hostarch.PPN
	a   *Allocator
}

// PPN returns the frame number.
func (f *Frame) PPN() hostarch.PPN {
	return f.ppn
}

// Bytes returns the frame's contents.
func (f *Frame) Bytes() []byte {
	return f.a.mem.Bytes(f.ppn)
}

// Release zeroes the frame and returns it to its allocator.
func (f *Frame) Release() {
	f.a.release(f.ppn)
}

// String implements fmt.Stringer.String.
func (f *Frame) String() string {
	return fmt.Sprintf("frame %#x", uint64(f.ppn))
}
