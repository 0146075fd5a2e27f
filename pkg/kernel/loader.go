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

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/mm"
	"gvisor.dev/ukern/pkg/pagetables"
)

// User address space layout.
const (
	// DefaultTextBase is where an image without segments gets its single
	// text page.
	DefaultTextBase hostarch.Addr = 0x1000

	// UserStackSize is the size of each thread's user stack.
	UserStackSize = 2 * hostarch.PageSize

	// userStacksTop is the top of thread 0's stack. Stacks of higher thread
	// IDs sit below it, separated by guard pages.
	userStacksTop hostarch.Addr = 1 << 38

	// funcTableBase is the first address handed out by
	// UserContext.FuncAddr. Function addresses are 8 bytes apart and are
	// never mapped.
	funcTableBase hostarch.Addr = 0x60_0000_0000
)

// userStackTop returns the top of the user stack of thread tid.
func userStackTop(tid int) hostarch.Addr {
	return userStacksTop - hostarch.Addr(tid)*(UserStackSize+hostarch.PageSize)
}

// ErrNoImage is returned by loaders for unknown program names.
var ErrNoImage = errors.New("no such program")

// Segment is a range of an image mapped into a new address space.
type Segment struct {
	// Start is the page aligned start address.
	Start hostarch.Addr

	// Length is the size of the segment. It is extended to cover Data.
	Length uint64

	// Data is copied to the beginning of the segment; the rest is zero.
	Data []byte

	// Perm is the user access allowed to the segment.
	Perm hostarch.AccessType
}

// Image is a loaded program.
type Image struct {
	// Entry is the program's main function.
	Entry Entry

	// Segments are the program's memory contents. An image with no
	// segments gets one text page at DefaultTextBase.
	Segments []Segment
}

// Loader supplies program images by name.
type Loader interface {
	// Load returns the image of the named program, or an error wrapping
	// ErrNoImage.
	Load(name string) (*Image, error)
}

// loadImage builds a new address space holding img's segments, with an
// empty heap one guard page above the highest segment. Thread stacks are
// mapped separately.
func (k *Kernel) loadImage(img *Image) (*mm.MemoryManager, error) {
	if img.Entry == nil {
		return nil, fmt.Errorf("%w: image has no entry", ErrInvalidArgument)
	}
	segs := img.Segments
	if len(segs) == 0 {
		segs = []Segment{{Start: DefaultTextBase, Length: hostarch.PageSize, Perm: hostarch.ReadExec}}
	}

	as := mm.New(k.alloc)
	var end hostarch.Addr
	for _, s := range segs {
		length := max(s.Length, uint64(len(s.Data)))
		if err := as.MapFramed(s.Start, length, pagetables.FlagsFor(s.Perm, true), s.Data); err != nil {
			as.Release()
			return nil, fmt.Errorf("segment at %v: %w", s.Start, err)
		}
		// MapFramed validated the range.
		e, _ := s.Start.AddLength(length)
		e, _ = e.RoundUp()
		end = max(end, e)
	}
	if err := as.SetHeap(end + hostarch.PageSize); err != nil {
		as.Release()
		return nil, err
	}
	return as, nil
}
