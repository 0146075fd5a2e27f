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

// Package mm provides address spaces: a page table together with the set of
// memory regions mapped through it.
package mm

import (
	"errors"
	"fmt"
	"sync"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pagetables"
	"gvisor.dev/ukern/pkg/pgalloc"
)

var (
	// ErrInvalidArgument is returned for unaligned addresses and bad
	// permissions.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOverlap is returned when a new mapping would overlap an existing
	// region.
	ErrOverlap = errors.New("range overlaps an existing region")

	// ErrNotMapped is returned when part of a range is not mapped.
	ErrNotMapped = errors.New("range not mapped")

	// ErrNoMemory is returned when frames run out while populating a
	// region.
	ErrNoMemory = errors.New("out of memory")

	// ErrFault is returned for user memory accesses that cannot be
	// translated or are not permitted.
	ErrFault = errors.New("bad address")
)

// MemoryManager is an address space.
type MemoryManager struct {
	alloc *pgalloc.Allocator

	// mu protects the fields below.
	mu sync.Mutex

	// pt is nil once the MemoryManager is released.
	pt      *pagetables.PageTables
	regions *regionSet

	// heap is the region backing [heapBottom, brk). It is nil, and absent
	// from regions, while the heap is empty.
	heap       *region
	heapBottom hostarch.Addr
	brk        hostarch.Addr
}

// New returns an empty address space.
func New(alloc *pgalloc.Allocator) *MemoryManager {
	return &MemoryManager{
		alloc:   alloc,
		pt:      pagetables.New(alloc),
		regions: newRegionSet(),
	}
}

// NewKernelSpace returns an address space mapping all of physical memory at
// identical addresses, readable, writable and executable, without the user
// bit.
func NewKernelSpace(alloc *pgalloc.Allocator) (*MemoryManager, error) {
	mm := New(alloc)
	mem := alloc.Mem()
	vr := hostarch.VPNRange{Start: hostarch.VPN(mem.Base()), End: hostarch.VPN(mem.End())}
	if err := mm.MapIdentical(vr, pagetables.Read|pagetables.Write|pagetables.Execute); err != nil {
		mm.Release()
		return nil, err
	}
	return mm, nil
}

// Token returns the page table token of the address space.
func (mm *MemoryManager) Token() uint64 {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.pt.Token()
}

// Mem returns the physical memory backing the address space.
func (mm *MemoryManager) Mem() *pgalloc.PhysMem {
	return mm.alloc.Mem()
}

// Translate returns the page table entry for vpn.
func (mm *MemoryManager) Translate(vpn hostarch.VPN) (pagetables.PTE, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.pt == nil {
		return 0, false
	}
	return mm.pt.Translate(vpn)
}

// Regions returns a description of every region, in ascending order.
func (mm *MemoryManager) Regions() []RegionInfo {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var infos []RegionInfo
	mm.regions.forEach(func(r *region) {
		infos = append(infos, r.info())
	})
	return infos
}

// MapFramed creates a framed region covering [start, start+length) and
// copies data to its beginning.
func (mm *MemoryManager) MapFramed(start hostarch.Addr, length uint64, perm pagetables.Flags, data []byte) error {
	if !start.IsPageAligned() || uint64(len(data)) > length {
		return ErrInvalidArgument
	}
	vr, ok := start.ToRange(length)
	if !ok {
		return ErrInvalidArgument
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	r, err := mm.newRegionLocked(vr, perm, Framed)
	if err != nil {
		return err
	}
	for off := 0; off < len(data); off += hostarch.PageSize {
		vpn := vr.Start + hostarch.VPN(off/hostarch.PageSize)
		copy(r.frames[vpn].Bytes(), data[off:])
	}
	return nil
}

// MapIdentical creates an identical region for vr.
func (mm *MemoryManager) MapIdentical(vr hostarch.VPNRange, perm pagetables.Flags) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, err := mm.newRegionLocked(vr, perm, Identical)
	return err
}

// newRegionLocked creates, populates and records a region for vr. Nothing is
// changed on failure.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) newRegionLocked(vr hostarch.VPNRange, perm pagetables.Flags, backing Backing) (*region, error) {
	if mm.pt == nil {
		panic("use of released MemoryManager")
	}
	if vr.Empty() || !vr.WellFormed() {
		return nil, ErrInvalidArgument
	}
	if perm&(pagetables.Read|pagetables.Write|pagetables.Execute) == 0 {
		return nil, ErrInvalidArgument
	}
	if mm.overlapsLocked(vr) {
		return nil, fmt.Errorf("%w: %v", ErrOverlap, vr)
	}
	r := newRegion(vr, perm, backing)
	if err := r.mapRange(mm.pt, mm.alloc, vr); err != nil {
		return nil, err
	}
	mm.regions.insert(r)
	return r, nil
}

// overlapsLocked returns true if any page of vr belongs to a region.
//
// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) overlapsLocked(vr hostarch.VPNRange) bool {
	return len(mm.regions.overlapping(vr)) != 0
}

// SetHeap places an empty heap at bottom.
func (mm *MemoryManager) SetHeap(bottom hostarch.Addr) error {
	if !bottom.IsPageAligned() {
		return ErrInvalidArgument
	}
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.heap != nil {
		mm.regions.remove(mm.heap)
		mm.heap.unmapRange(mm.pt, mm.heap.vr)
		mm.heap = nil
	}
	mm.heapBottom = bottom
	mm.brk = bottom
	return nil
}

// Brk returns the current program break.
func (mm *MemoryManager) Brk() hostarch.Addr {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.brk
}

// Fork returns a copy of the address space. Framed regions get new frames
// holding the same bytes; identical regions are mapped identically.
func (mm *MemoryManager) Fork() (*MemoryManager, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	child := New(mm.alloc)
	child.mu.Lock()
	defer child.mu.Unlock()
	var err error
	mm.regions.forEach(func(r *region) {
		if err != nil {
			return
		}
		var cr *region
		cr, err = child.newRegionLocked(r.vr, r.perm, r.backing)
		if err != nil {
			return
		}
		for vpn, f := range r.frames {
			copy(cr.frames[vpn].Bytes(), f.Bytes())
		}
		if r == mm.heap {
			child.heap = cr
		}
	})
	if err != nil {
		child.releaseLocked()
		return nil, err
	}
	child.heapBottom = mm.heapBottom
	child.brk = mm.brk
	return child, nil
}

// Release unmaps every region, releases their frames and then releases the
// page table. The MemoryManager must not be used afterwards.
func (mm *MemoryManager) Release() {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.releaseLocked()
}

// Preconditions: mm.mu must be locked.
func (mm *MemoryManager) releaseLocked() {
	if mm.pt == nil {
		return
	}
	mm.regions.forEach(func(r *region) {
		r.unmapRange(mm.pt, r.vr)
	})
	mm.regions = newRegionSet()
	mm.heap = nil
	mm.pt.Release()
	mm.pt = nil
}
