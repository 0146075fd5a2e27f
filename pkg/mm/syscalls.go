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

package mm

import (
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pagetables"
)

// Port bits accepted by MMap.
const (
	PortRead  = 0x1
	PortWrite = 0x2
	PortExec  = 0x4

	portMask = PortRead | PortWrite | PortExec
)

// PermFromPort converts mmap port bits into user leaf flags. At least one of
// the three bits must be set and no other bit may be.
func PermFromPort(port uint64) (pagetables.Flags, error) {
	if port&^portMask != 0 || port&portMask == 0 {
		return 0, fmt.Errorf("%w: port %#x", ErrInvalidArgument, port)
	}
	perm := pagetables.User
	if port&PortRead != 0 {
		perm |= pagetables.Read
	}
	if port&PortWrite != 0 {
		perm |= pagetables.Write
	}
	if port&PortExec != 0 {
		perm |= pagetables.Execute
	}
	return perm, nil
}

// MMap maps [start, start+length) with fresh frames and the permissions
// given by port. length is rounded up to whole pages. Nothing is mapped if
// any page of the range already belongs to a region.
func (mm *MemoryManager) MMap(start hostarch.Addr, length uint64, port uint64) error {
	if !start.IsPageAligned() {
		return fmt.Errorf("%w: unaligned start %v", ErrInvalidArgument, start)
	}
	perm, err := PermFromPort(port)
	if err != nil {
		return err
	}
	if length == 0 {
		return nil
	}
	vr, ok := start.ToRange(length)
	if !ok {
		return fmt.Errorf("%w: range %v+%#x", ErrInvalidArgument, start, length)
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	_, err = mm.newRegionLocked(vr, perm, Framed)
	return err
}

// MUnmap unmaps [start, start+length). Every page of the range must be
// mapped; otherwise nothing is changed. Regions are trimmed or split as
// needed. The heap can only be shrunk through Sbrk.
func (mm *MemoryManager) MUnmap(start hostarch.Addr, length uint64) error {
	if !start.IsPageAligned() {
		return fmt.Errorf("%w: unaligned start %v", ErrInvalidArgument, start)
	}
	if length == 0 {
		return nil
	}
	vr, ok := start.ToRange(length)
	if !ok {
		return fmt.Errorf("%w: range %v+%#x", ErrInvalidArgument, start, length)
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.pt == nil {
		panic("use of released MemoryManager")
	}

	// Validate the whole range before touching anything.
	rs := mm.regions.overlapping(vr)
	var covered uint64
	for _, r := range rs {
		if r == mm.heap {
			return fmt.Errorf("%w: %v overlaps the heap", ErrInvalidArgument, vr)
		}
		covered += r.vr.Intersect(vr).Length()
	}
	if covered != vr.Length() {
		return fmt.Errorf("%w: %v", ErrNotMapped, vr)
	}

	for _, r := range rs {
		cut := r.vr.Intersect(vr)
		r.unmapRange(mm.pt, cut)
		switch {
		case cut == r.vr:
			mm.regions.remove(r)
		case cut.Start == r.vr.Start:
			// The tree is keyed on Start.
			mm.regions.remove(r)
			r.vr.Start = cut.End
			mm.regions.insert(r)
		case cut.End == r.vr.End:
			r.vr.End = cut.Start
		default:
			right := r.splitAt(cut.End)
			r.vr.End = cut.Start
			mm.regions.insert(right)
		}
	}
	return nil
}

// Sbrk moves the program break by delta bytes and returns the previous
// break. The break cannot move below the heap bottom, and growth that would
// overlap another region fails without changing anything.
func (mm *MemoryManager) Sbrk(delta int64) (hostarch.Addr, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.pt == nil {
		panic("use of released MemoryManager")
	}

	old := mm.brk
	newBrk := hostarch.Addr(int64(old) + delta)
	if (delta < 0 && newBrk > old) || (delta > 0 && newBrk < old) {
		return 0, fmt.Errorf("%w: break overflow", ErrInvalidArgument)
	}
	if newBrk < mm.heapBottom || newBrk > hostarch.MaxAddr {
		return 0, fmt.Errorf("%w: break %v outside heap", ErrInvalidArgument, newBrk)
	}

	cur := hostarch.VPNRange{Start: mm.heapBottom.Floor(), End: mm.heapBottom.Floor()}
	if mm.heap != nil {
		cur = mm.heap.vr
	}
	want := hostarch.VPNRange{Start: cur.Start, End: newBrk.Ceil()}

	switch {
	case want.End > cur.End:
		grow := hostarch.VPNRange{Start: cur.End, End: want.End}
		if mm.overlapsLocked(grow) {
			return 0, fmt.Errorf("%w: heap growth %v", ErrOverlap, grow)
		}
		if mm.heap == nil {
			r := newRegion(want, pagetables.Read|pagetables.Write|pagetables.User, Framed)
			if err := r.mapRange(mm.pt, mm.alloc, want); err != nil {
				return 0, err
			}
			mm.heap = r
			mm.regions.insert(r)
		} else {
			if err := mm.heap.mapRange(mm.pt, mm.alloc, grow); err != nil {
				return 0, err
			}
			mm.heap.vr.End = want.End
		}
	case want.End < cur.End:
		mm.heap.unmapRange(mm.pt, hostarch.VPNRange{Start: want.End, End: cur.End})
		if want.Empty() {
			mm.regions.remove(mm.heap)
			mm.heap = nil
		} else {
			mm.heap.vr.End = want.End
		}
	}
	mm.brk = newBrk
	return old, nil
}
