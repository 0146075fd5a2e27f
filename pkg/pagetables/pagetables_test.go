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

package pagetables

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pgalloc"
)

type mapping struct {
	VPN   hostarch.VPN
	PPN   hostarch.PPN
	Flags Flags
}

func newTestTables(t *testing.T) (*PageTables, *pgalloc.Allocator) {
	t.Helper()
	a := pgalloc.NewAllocator(pgalloc.NewPhysMem(0x80000, 64))
	return New(a), a
}

func checkMappings(t *testing.T, pt *PageTables, want []mapping) {
	t.Helper()
	var got []mapping
	pt.ForEach(func(vpn hostarch.VPN, pte PTE) {
		got = append(got, mapping{vpn, pte.PPN(), pte.Flags()})
	})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mappings mismatch (-want +got):\n%s", diff)
	}
}

func TestPTEEncoding(t *testing.T) {
	pte := NewPTE(0x80123, Valid|Read|Write|User)
	if got := pte.PPN(); got != 0x80123 {
		t.Errorf("PPN() = %#x, want 0x80123", got)
	}
	if !pte.Valid() || !pte.Readable() || !pte.Writeable() || pte.Executable() || !pte.UserAccessible() {
		t.Errorf("flags = %v, want VRW-U---", pte.Flags())
	}
	if got, want := uint64(pte), uint64(0x80123)<<10|0x17; got != want {
		t.Errorf("raw entry = %#x, want %#x", got, want)
	}
	if got := pte.Flags().String(); got != "VRW-U---" {
		t.Errorf("Flags().String() = %q", got)
	}
	if NewPTE(1, Valid).IsLeaf() {
		t.Errorf("pointer entry reported as leaf")
	}
}

func TestIndexes(t *testing.T) {
	vpn := hostarch.VPN(0x1<<18 | 0x2<<9 | 0x3)
	if got, want := indexes(vpn), [levels]uint{1, 2, 3}; got != want {
		t.Errorf("indexes(%#x) = %v, want %v", vpn, got, want)
	}
}

func TestMapTranslate(t *testing.T) {
	pt, a := newTestTables(t)
	data := a.MustAlloc()

	if err := pt.Map(0x10, data.PPN(), Read|Write|User); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	pte, ok := pt.Translate(0x10)
	if !ok {
		t.Fatalf("Translate(0x10) not mapped")
	}
	if pte.PPN() != data.PPN() || pte.Flags() != Valid|Read|Write|User {
		t.Errorf("Translate(0x10) = %v, want %#x with VRW-U", pte, data.PPN())
	}
	if _, ok := pt.Translate(0x11); ok {
		t.Errorf("Translate(0x11) mapped, want not mapped")
	}

	pa, ok := pt.TranslateAddr(0x10abc)
	if !ok || pa != data.PPN().Addr()+0xabc {
		t.Errorf("TranslateAddr(0x10abc) = %v, %t, want %v", pa, ok, data.PPN().Addr()+0xabc)
	}

	// Root plus one table for each lower level.
	if pt.Frames() != levels {
		t.Errorf("Frames() = %d, want %d", pt.Frames(), levels)
	}
}

func TestMapAlreadyMapped(t *testing.T) {
	pt, _ := newTestTables(t)
	if err := pt.Map(0x10, 0x1234, Read); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if err := pt.Map(0x10, 0x5678, Read|Write); !errors.Is(err, ErrAlreadyMapped) {
		t.Fatalf("second Map = %v, want %v", err, ErrAlreadyMapped)
	}
	checkMappings(t, pt, []mapping{{0x10, 0x1234, Valid | Read}})
}

func TestMapInvalidFlags(t *testing.T) {
	pt, _ := newTestTables(t)
	if err := pt.Map(0x10, 0x1234, User); !errors.Is(err, ErrInvalidFlags) {
		t.Fatalf("Map without RWX = %v, want %v", err, ErrInvalidFlags)
	}
	checkMappings(t, pt, nil)
}

func TestUnmap(t *testing.T) {
	pt, _ := newTestTables(t)

	// Unmapping with no intermediate levels.
	if err := pt.Unmap(0x10); !errors.Is(err, ErrNotMapped) {
		t.Fatalf("Unmap of empty table = %v, want %v", err, ErrNotMapped)
	}

	if err := pt.Map(0x10, 0x42, Read|Write); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if err := pt.Unmap(0x10); err != nil {
		t.Fatalf("Unmap failed: %v", err)
	}
	if _, ok := pt.Translate(0x10); ok {
		t.Errorf("Translate after Unmap succeeded")
	}
	// Unmapping with intermediate levels present but a clear leaf.
	if err := pt.Unmap(0x10); !errors.Is(err, ErrNotMapped) {
		t.Errorf("second Unmap = %v, want %v", err, ErrNotMapped)
	}
	checkMappings(t, pt, nil)
}

func TestSparseEntries(t *testing.T) {
	pt, _ := newTestTables(t)

	// Map entries under different root slots.
	for _, m := range []mapping{
		{0x10, 42, Read | Write},
		{0x11, 43, Read},
		{1 << 18, 47, Execute},
		{1<<27 - 1, 48, Read | Execute},
	} {
		if err := pt.Map(m.VPN, m.PPN, m.Flags); err != nil {
			t.Fatalf("Map(%#x) failed: %v", m.VPN, err)
		}
	}
	checkMappings(t, pt, []mapping{
		{0x10, 42, Valid | Read | Write},
		{0x11, 43, Valid | Read},
		{1 << 18, 47, Valid | Execute},
		{1<<27 - 1, 48, Valid | Read | Execute},
	})
}

func TestTokenView(t *testing.T) {
	pt, a := newTestTables(t)
	if err := pt.Map(0x20, 0x99, Read); err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	token := pt.Token()
	if token>>60 != ModeSv39 || hostarch.PPN(token&(1<<44-1)) != pt.Root() {
		t.Fatalf("Token() = %#x, want mode 8 and root %#x", token, pt.Root())
	}

	view, err := FromToken(a.Mem(), token)
	if err != nil {
		t.Fatalf("FromToken failed: %v", err)
	}
	if pte, ok := view.Translate(0x20); !ok || pte.PPN() != 0x99 {
		t.Errorf("view.Translate(0x20) = %v, %t, want 0x99", pte, ok)
	}
	if view.Frames() != 0 {
		t.Errorf("view owns %d frames, want 0", view.Frames())
	}

	defer func() {
		if recover() == nil {
			t.Errorf("Map on a view did not panic")
		}
	}()
	view.Map(0x21, 0x98, Read)
}

func TestFromTokenBadMode(t *testing.T) {
	pt, a := newTestTables(t)
	if _, err := FromToken(a.Mem(), uint64(pt.Root())); !errors.Is(err, ErrBadToken) {
		t.Errorf("FromToken without mode = %v, want %v", err, ErrBadToken)
	}
}

func TestRelease(t *testing.T) {
	pt, a := newTestTables(t)
	before := a.InUse()
	for vpn := hostarch.VPN(0); vpn < 3; vpn++ {
		if err := pt.Map(vpn<<18, 0x42, Read); err != nil {
			t.Fatalf("Map failed: %v", err)
		}
	}
	if a.InUse() <= before {
		t.Fatalf("no intermediate frames allocated")
	}
	pt.Release()
	if a.InUse() != 0 {
		t.Errorf("InUse() = %d after Release, want 0", a.InUse())
	}
}

func TestExhaustionPanics(t *testing.T) {
	a := pgalloc.NewAllocator(pgalloc.NewPhysMem(0, 1))
	pt := New(a)
	defer func() {
		if recover() == nil {
			t.Errorf("Map with no free frames did not panic")
		}
	}()
	pt.Map(0, 0, Read)
}
