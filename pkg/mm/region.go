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

	"github.com/google/btree"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pagetables"
	"gvisor.dev/ukern/pkg/pgalloc"
)

// Backing describes where the frames of a region come from.
type Backing int

const (
	// Framed regions own one allocated frame per page.
	Framed Backing = iota

	// Identical regions map every page to the frame with the same number.
	// They own no frames.
	Identical
)

// String implements fmt.Stringer.String.
func (b Backing) String() string {
	switch b {
	case Framed:
		return "framed"
	case Identical:
		return "identical"
	default:
		return fmt.Sprintf("Backing(%d)", int(b))
	}
}

// region is a run of virtual pages with uniform permissions and backing.
type region struct {
	vr      hostarch.VPNRange
	perm    pagetables.Flags
	backing Backing

	// frames maps each page of a Framed region to its frame.
	frames map[hostarch.VPN]*pgalloc.Frame
}

func newRegion(vr hostarch.VPNRange, perm pagetables.Flags, backing Backing) *region {
	r := &region{vr: vr, perm: perm, backing: backing}
	if backing == Framed {
		r.frames = make(map[hostarch.VPN]*pgalloc.Frame, vr.Length())
	}
	return r
}

// mapPage backs vpn and installs it in pt.
func (r *region) mapPage(pt *pagetables.PageTables, alloc *pgalloc.Allocator, vpn hostarch.VPN) error {
	var ppn hostarch.PPN
	switch r.backing {
	case Framed:
		f, ok := alloc.Alloc()
		if !ok {
			return ErrNoMemory
		}
		r.frames[vpn] = f
		ppn = f.PPN()
	case Identical:
		ppn = hostarch.PPN(vpn)
	}
	if err := pt.Map(vpn, ppn, r.perm); err != nil {
		if f, ok := r.frames[vpn]; ok {
			delete(r.frames, vpn)
			f.Release()
		}
		return err
	}
	return nil
}

// unmapPage removes vpn from pt and releases its frame.
func (r *region) unmapPage(pt *pagetables.PageTables, vpn hostarch.VPN) {
	if err := pt.Unmap(vpn); err != nil {
		panic(fmt.Sprintf("region %v page %#x: %v", r.vr, uint64(vpn), err))
	}
	if f, ok := r.frames[vpn]; ok {
		delete(r.frames, vpn)
		f.Release()
	}
}

// mapRange maps every page of vr. On failure, pages mapped by this call are
// unmapped again and the error is returned.
func (r *region) mapRange(pt *pagetables.PageTables, alloc *pgalloc.Allocator, vr hostarch.VPNRange) error {
	for vpn := vr.Start; vpn < vr.End; vpn++ {
		if err := r.mapPage(pt, alloc, vpn); err != nil {
			r.unmapRange(pt, hostarch.VPNRange{Start: vr.Start, End: vpn})
			return err
		}
	}
	return nil
}

func (r *region) unmapRange(pt *pagetables.PageTables, vr hostarch.VPNRange) {
	for vpn := vr.Start; vpn < vr.End; vpn++ {
		r.unmapPage(pt, vpn)
	}
}

// splitAt moves the pages [at, r.vr.End) into a new region and returns it.
//
// Precondition: r.vr.Start < at < r.vr.End.
func (r *region) splitAt(at hostarch.VPN) *region {
	right := newRegion(hostarch.VPNRange{Start: at, End: r.vr.End}, r.perm, r.backing)
	for vpn, f := range r.frames {
		if vpn >= at {
			right.frames[vpn] = f
			delete(r.frames, vpn)
		}
	}
	r.vr.End = at
	return right
}

// RegionInfo describes a region for callers outside the package.
type RegionInfo struct {
	Range   hostarch.VPNRange
	Perm    pagetables.Flags
	Backing Backing
}

func (r *region) info() RegionInfo {
	return RegionInfo{Range: r.vr, Perm: r.perm, Backing: r.backing}
}

// regionSet holds non-overlapping, non-empty regions ordered by start page.
type regionSet struct {
	tree *btree.BTreeG[*region]
}

func newRegionSet() *regionSet {
	return &regionSet{
		tree: btree.NewG(8, func(a, b *region) bool {
			return a.vr.Start < b.vr.Start
		}),
	}
}

func (s *regionSet) insert(r *region) {
	if r.vr.Empty() {
		panic(fmt.Sprintf("inserting empty region %v", r.vr))
	}
	if _, dup := s.tree.ReplaceOrInsert(r); dup {
		panic(fmt.Sprintf("inserting region %v over an existing region", r.vr))
	}
}

func (s *regionSet) remove(r *region) {
	if _, ok := s.tree.Delete(r); !ok {
		panic(fmt.Sprintf("removing unknown region %v", r.vr))
	}
}

// overlapping returns the regions intersecting vr, in ascending order.
func (s *regionSet) overlapping(vr hostarch.VPNRange) []*region {
	if vr.Empty() {
		return nil
	}
	var rs []*region
	pivot := &region{vr: hostarch.VPNRange{Start: vr.Start}}
	// The last region starting before vr.Start may still cover it.
	s.tree.DescendLessOrEqual(pivot, func(r *region) bool {
		if r.vr.Start < vr.Start && r.vr.Overlaps(vr) {
			rs = append(rs, r)
		}
		return r.vr.Start == vr.Start
	})
	s.tree.AscendGreaterOrEqual(pivot, func(r *region) bool {
		if r.vr.Start >= vr.End {
			return false
		}
		rs = append(rs, r)
		return true
	})
	return rs
}

// find returns the region containing vpn, or nil.
func (s *regionSet) find(vpn hostarch.VPN) *region {
	rs := s.overlapping(hostarch.VPNRange{Start: vpn, End: vpn + 1})
	if len(rs) == 0 {
		return nil
	}
	return rs[0]
}

func (s *regionSet) forEach(fn func(r *region)) {
	s.tree.Ascend(func(r *region) bool {
		fn(r)
		return true
	})
}

func (s *regionSet) len() int {
	return s.tree.Len()
}
