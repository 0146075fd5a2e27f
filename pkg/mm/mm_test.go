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
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pagetables"
	"gvisor.dev/ukern/pkg/pgalloc"
)

const (
	page = hostarch.PageSize
	rw   = PortRead | PortWrite
	urw  = pagetables.User | pagetables.Read | pagetables.Write
)

func newTestMM(t *testing.T, frames int) (*MemoryManager, *pgalloc.Allocator) {
	t.Helper()
	a := pgalloc.NewAllocator(pgalloc.NewPhysMem(0x80000, frames))
	return New(a), a
}

func checkRegions(t *testing.T, mm *MemoryManager, want []RegionInfo) {
	t.Helper()
	if diff := cmp.Diff(want, mm.Regions()); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestMMapTranslate(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	if err := mm.MMap(0x10000, 8192, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	for _, vpn := range []hostarch.VPN{0x10, 0x11} {
		pte, ok := mm.Translate(vpn)
		if !ok {
			t.Fatalf("Translate(%#x) not mapped", vpn)
		}
		if pte.Flags() != pagetables.Valid|urw {
			t.Errorf("Translate(%#x) flags = %v, want VRW-U---", vpn, pte.Flags())
		}
	}
	if _, ok := mm.Translate(0x12); ok {
		t.Errorf("Translate(0x12) mapped")
	}

	if err := mm.MUnmap(0x10000, 8192); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	for _, vpn := range []hostarch.VPN{0x10, 0x11} {
		if _, ok := mm.Translate(vpn); ok {
			t.Errorf("Translate(%#x) mapped after MUnmap", vpn)
		}
	}
}

func TestMMapArguments(t *testing.T) {
	mm, a := newTestMM(t, 64)
	before := a.InUse()
	for _, test := range []struct {
		name  string
		start hostarch.Addr
		port  uint64
	}{
		{"unaligned", 0x10001, rw},
		{"no permission", 0x10000, 0},
		{"extra bits", 0x10000, 0x9},
		{"past end of address space", hostarch.MaxAddr, rw},
	} {
		t.Run(test.name, func(t *testing.T) {
			if err := mm.MMap(test.start, page, test.port); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("MMap = %v, want %v", err, ErrInvalidArgument)
			}
		})
	}
	if a.InUse() != before {
		t.Errorf("rejected MMap calls allocated %d frames", a.InUse()-before)
	}
	checkRegions(t, mm, nil)
}

func TestMMapLengthRoundsUp(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	if err := mm.MMap(0x10000, page+1, PortRead); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	checkRegions(t, mm, []RegionInfo{
		{Range: hostarch.VPNRange{Start: 0x10, End: 0x12}, Perm: pagetables.User | pagetables.Read, Backing: Framed},
	})
}

func TestMMapOverlap(t *testing.T) {
	mm, a := newTestMM(t, 64)
	if err := mm.MMap(0x10000, 2*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	inUse := a.InUse()
	for _, start := range []hostarch.Addr{0xf000, 0x10000, 0x11000} {
		if err := mm.MMap(start, 2*page, rw); !errors.Is(err, ErrOverlap) {
			t.Errorf("MMap(%v) = %v, want %v", start, err, ErrOverlap)
		}
	}
	if a.InUse() != inUse {
		t.Errorf("overlapping MMap leaked %d frames", a.InUse()-inUse)
	}
	// Adjacent is fine.
	if err := mm.MMap(0x12000, page, rw); err != nil {
		t.Errorf("adjacent MMap failed: %v", err)
	}
}

func TestMMapMUnmapRoundTrip(t *testing.T) {
	mm, a := newTestMM(t, 64)
	before := a.InUse()
	if err := mm.MMap(0x40000, 5*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x40000, 5*page); err != nil {
		t.Fatalf("MUnmap failed: %v", err)
	}
	checkRegions(t, mm, nil)

	// Intermediate table frames stay with the page table until release.
	tables := a.InUse() - before
	if tables != 2 {
		t.Errorf("%d frames held after round trip, want the 2 intermediate tables", tables)
	}
	if err := mm.MUnmap(0x40000, 5*page); !errors.Is(err, ErrNotMapped) {
		t.Errorf("second MUnmap = %v, want %v", err, ErrNotMapped)
	}

	// Mapping the same range again reuses the same intermediate tables.
	if err := mm.MMap(0x40000, 5*page, rw); err != nil {
		t.Fatalf("MMap after round trip failed: %v", err)
	}
	if got := a.InUse() - before; got != tables+5 {
		t.Errorf("InUse grew by %d, want %d", got, tables+5)
	}
}

func TestMUnmapPartiallyMapped(t *testing.T) {
	mm, a := newTestMM(t, 64)
	if err := mm.MMap(0x10000, 2*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	inUse := a.InUse()

	// The third page is not mapped, so nothing may be unmapped.
	if err := mm.MUnmap(0x10000, 3*page); !errors.Is(err, ErrNotMapped) {
		t.Fatalf("MUnmap = %v, want %v", err, ErrNotMapped)
	}
	for _, vpn := range []hostarch.VPN{0x10, 0x11} {
		if _, ok := mm.Translate(vpn); !ok {
			t.Errorf("page %#x unmapped by failed MUnmap", vpn)
		}
	}
	if a.InUse() != inUse {
		t.Errorf("failed MUnmap released frames")
	}
}

func TestMUnmapSplit(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	if err := mm.MMap(0x10000, 6*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x12000, 2*page); err != nil {
		t.Fatalf("MUnmap of the middle failed: %v", err)
	}
	checkRegions(t, mm, []RegionInfo{
		{Range: hostarch.VPNRange{Start: 0x10, End: 0x12}, Perm: urw, Backing: Framed},
		{Range: hostarch.VPNRange{Start: 0x14, End: 0x16}, Perm: urw, Backing: Framed},
	})

	// Trim the head of the second region and the tail of the first.
	if err := mm.MUnmap(0x14000, page); err != nil {
		t.Fatalf("MUnmap of head failed: %v", err)
	}
	if err := mm.MUnmap(0x11000, page); err != nil {
		t.Fatalf("MUnmap of tail failed: %v", err)
	}
	checkRegions(t, mm, []RegionInfo{
		{Range: hostarch.VPNRange{Start: 0x10, End: 0x11}, Perm: urw, Backing: Framed},
		{Range: hostarch.VPNRange{Start: 0x15, End: 0x16}, Perm: urw, Backing: Framed},
	})
}

func TestMUnmapAcrossRegions(t *testing.T) {
	mm, a := newTestMM(t, 64)
	before := a.InUse()
	if err := mm.MMap(0x10000, page, PortRead); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MMap(0x11000, page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if err := mm.MUnmap(0x10000, 2*page); err != nil {
		t.Fatalf("MUnmap spanning two regions failed: %v", err)
	}
	checkRegions(t, mm, nil)
	if got := a.InUse() - before; got != 2 {
		t.Errorf("InUse grew by %d, want only the 2 table frames", got)
	}
}

func TestMMapOutOfMemoryRollsBack(t *testing.T) {
	mm, a := newTestMM(t, 8)
	inUse := a.InUse()
	free := a.Free()
	// Two frames go to intermediate tables, the rest cannot cover the range.
	if err := mm.MMap(0x10000, uint64(free)*page, rw); !errors.Is(err, ErrNoMemory) {
		t.Fatalf("MMap = %v, want %v", err, ErrNoMemory)
	}
	checkRegions(t, mm, nil)
	if got := a.InUse() - inUse; got != 2 {
		t.Errorf("failed MMap kept %d frames, want the 2 table frames", got)
	}
	if _, ok := mm.Translate(0x10); ok {
		t.Errorf("page of failed MMap still mapped")
	}
}

func TestSbrk(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	const bottom = 0x20000
	if err := mm.SetHeap(bottom); err != nil {
		t.Fatalf("SetHeap failed: %v", err)
	}

	old, err := mm.Sbrk(100)
	if err != nil || old != bottom {
		t.Fatalf("Sbrk(100) = %v, %v, want %#x", old, err, bottom)
	}
	if _, ok := mm.Translate(0x20); !ok {
		t.Errorf("heap page not mapped after growth")
	}

	old, err = mm.Sbrk(2 * page)
	if err != nil || old != bottom+100 {
		t.Fatalf("Sbrk(2 pages) = %v, %v, want %#x", old, err, bottom+100)
	}
	checkRegions(t, mm, []RegionInfo{
		{Range: hostarch.VPNRange{Start: 0x20, End: 0x23}, Perm: urw, Backing: Framed},
	})

	if _, err := mm.Sbrk(-3 * page); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Sbrk below bottom = %v, want %v", err, ErrInvalidArgument)
	}

	old, err = mm.Sbrk(-(2*page + 100))
	if err != nil || old != bottom+2*page+100 {
		t.Fatalf("Sbrk(shrink) = %v, %v", old, err)
	}
	if mm.Brk() != bottom {
		t.Errorf("Brk() = %v, want %#x", mm.Brk(), bottom)
	}
	checkRegions(t, mm, nil)
}

func TestSbrkOverlap(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	if err := mm.SetHeap(0x20000); err != nil {
		t.Fatalf("SetHeap failed: %v", err)
	}
	if err := mm.MMap(0x22000, page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if _, err := mm.Sbrk(3 * page); !errors.Is(err, ErrOverlap) {
		t.Fatalf("Sbrk into mapping = %v, want %v", err, ErrOverlap)
	}
	if mm.Brk() != 0x20000 {
		t.Errorf("Brk moved on failure: %v", mm.Brk())
	}
	if err := mm.MUnmap(0x20000, page); !errors.Is(err, ErrNotMapped) {
		t.Errorf("heap page mapped after failed Sbrk")
	}
}

func TestMUnmapHeapRejected(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	mm.SetHeap(0x20000)
	if _, err := mm.Sbrk(page); err != nil {
		t.Fatalf("Sbrk failed: %v", err)
	}
	if err := mm.MUnmap(0x20000, page); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("MUnmap of heap = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestFork(t *testing.T) {
	mm, a := newTestMM(t, 64)
	data := bytes.Repeat([]byte{0xab}, page+10)
	if err := mm.MapFramed(0x10000, 2*page, pagetables.User|pagetables.Read, data); err != nil {
		t.Fatalf("MapFramed failed: %v", err)
	}
	mm.SetHeap(0x30000)
	if _, err := mm.Sbrk(10); err != nil {
		t.Fatalf("Sbrk failed: %v", err)
	}

	child, err := mm.Fork()
	if err != nil {
		t.Fatalf("Fork failed: %v", err)
	}
	if diff := cmp.Diff(mm.Regions(), child.Regions()); diff != "" {
		t.Errorf("child regions differ (-parent +child):\n%s", diff)
	}
	if child.Brk() != mm.Brk() {
		t.Errorf("child brk = %v, want %v", child.Brk(), mm.Brk())
	}

	got := make([]byte, len(data))
	if err := CopyIn(a.Mem(), child.Token(), 0x10000, got); err != nil {
		t.Fatalf("CopyIn from child failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("child memory differs from parent")
	}

	// The copy is private.
	if err := CopyOut(a.Mem(), child.Token(), 0x10000, []byte{1}); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	if err := CopyIn(a.Mem(), mm.Token(), 0x10000, got[:1]); err != nil || got[0] != 0xab {
		t.Errorf("parent byte = %#x, %v, want 0xab", got[0], err)
	}

	// Child heap is independent too.
	if _, err := child.Sbrk(page); err != nil {
		t.Errorf("child Sbrk failed: %v", err)
	}
	if mm.Brk() == child.Brk() {
		t.Errorf("parent brk followed child")
	}
}

func TestRelease(t *testing.T) {
	a := pgalloc.NewAllocator(pgalloc.NewPhysMem(0x80000, 64))
	mm := New(a)
	if err := mm.MMap(0x10000, 4*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	mm.SetHeap(0x40000)
	mm.Sbrk(page)
	mm.Release()
	if a.InUse() != 0 {
		t.Errorf("InUse() = %d after Release, want 0", a.InUse())
	}
	// Release is idempotent.
	mm.Release()
}

func TestKernelSpace(t *testing.T) {
	a := pgalloc.NewAllocator(pgalloc.NewPhysMem(0x80000, 16))
	ks, err := NewKernelSpace(a)
	if err != nil {
		t.Fatalf("NewKernelSpace failed: %v", err)
	}
	pte, ok := ks.Translate(0x80005)
	if !ok || pte.PPN() != 0x80005 {
		t.Fatalf("Translate(0x80005) = %v, %t, want identity", pte, ok)
	}
	if pte.UserAccessible() {
		t.Errorf("kernel page is user accessible")
	}
	if _, err := ks.UserAccess(0x80005000, 1, hostarch.Read); !errors.Is(err, ErrFault) {
		t.Errorf("user access to kernel page = %v, want %v", err, ErrFault)
	}
}

func TestCopyOutStraddlingPages(t *testing.T) {
	mm, a := newTestMM(t, 64)
	if err := mm.MMap(0x10000, 2*page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	va := hostarch.Addr(0x10000 + page - 6)
	src := []byte("0123456789abcdef")
	buf, err := TranslatedByteBuffer(a.Mem(), mm.Token(), va, uint64(len(src)))
	if err != nil {
		t.Fatalf("TranslatedByteBuffer failed: %v", err)
	}
	if len(buf) != 2 || len(buf[0]) != 6 || len(buf[1]) != 10 {
		t.Fatalf("buffer split = %d slices, want 6+10 bytes", len(buf))
	}
	if err := CopyOut(a.Mem(), mm.Token(), va, src); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	got := make([]byte, len(src))
	if err := CopyIn(a.Mem(), mm.Token(), va, got); err != nil {
		t.Fatalf("CopyIn failed: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Errorf("CopyIn = %q, want %q", got, src)
	}

	// The two pages are backed by different frames.
	p0, _ := mm.Translate(0x10)
	p1, _ := mm.Translate(0x11)
	if got := a.Mem().Bytes(p1.PPN())[:10]; !bytes.Equal(got, src[6:]) {
		t.Errorf("second frame holds %q, want %q", got, src[6:])
	}
	if p0.PPN() == p1.PPN() {
		t.Errorf("both pages backed by frame %#x", p0.PPN())
	}
}

func TestCopyOutFault(t *testing.T) {
	mm, a := newTestMM(t, 64)
	if err := mm.MMap(0x10000, page, rw); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	// The second half falls on an unmapped page; nothing is written.
	va := hostarch.Addr(0x10000 + page - 4)
	if err := CopyOut(a.Mem(), mm.Token(), va, []byte("12345678")); !errors.Is(err, ErrFault) {
		t.Fatalf("CopyOut = %v, want %v", err, ErrFault)
	}
	got := make([]byte, 4)
	CopyIn(a.Mem(), mm.Token(), va, got)
	if !bytes.Equal(got, make([]byte, 4)) {
		t.Errorf("faulting CopyOut wrote %q", got)
	}
}

func TestCopyInString(t *testing.T) {
	mm, a := newTestMM(t, 64)
	if err := mm.MapFramed(0x10000, 2*page, pagetables.User|pagetables.Read, nil); err != nil {
		t.Fatalf("MapFramed failed: %v", err)
	}
	va := hostarch.Addr(0x10000 + page - 3)
	if err := CopyOut(a.Mem(), mm.Token(), va, []byte("hello\x00")); err != nil {
		t.Fatalf("CopyOut failed: %v", err)
	}
	s, err := CopyInString(a.Mem(), mm.Token(), va, 64)
	if err != nil || s != "hello" {
		t.Errorf("CopyInString = %q, %v, want hello", s, err)
	}
	if _, err := CopyInString(a.Mem(), mm.Token(), va, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("CopyInString past max = %v, want %v", err, ErrInvalidArgument)
	}
}

func TestUserAccessPermissions(t *testing.T) {
	mm, _ := newTestMM(t, 64)
	if err := mm.MMap(0x10000, page, PortRead); err != nil {
		t.Fatalf("MMap failed: %v", err)
	}
	if _, err := mm.UserAccess(0x10000, 8, hostarch.Read); err != nil {
		t.Errorf("read of readable page failed: %v", err)
	}
	if _, err := mm.UserAccess(0x10000, 8, hostarch.Write); !errors.Is(err, ErrFault) {
		t.Errorf("write of read-only page = %v, want %v", err, ErrFault)
	}
}
