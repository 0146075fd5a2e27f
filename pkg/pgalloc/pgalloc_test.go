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

package pgalloc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"gvisor.dev/ukern/pkg/hostarch"
)

func TestAllocOrder(t *testing.T) {
	mem := NewPhysMem(0x80, 4)
	a := NewAllocator(mem)

	var got []hostarch.PPN
	var frames []*Frame
	for {
		f, ok := a.Alloc()
		if !ok {
			break
		}
		frames = append(frames, f)
		got = append(got, f.PPN())
	}
	if diff := cmp.Diff([]hostarch.PPN{0x80, 0x81, 0x82, 0x83}, got); diff != "" {
		t.Fatalf("allocation order mismatch (-want +got):\n%s", diff)
	}
	if a.Free() != 0 || a.InUse() != 4 {
		t.Errorf("Free() = %d, InUse() = %d, want 0, 4", a.Free(), a.InUse())
	}

	// Released frames are reused most recent first.
	frames[1].Release()
	frames[3].Release()
	if f := a.MustAlloc(); f.PPN() != 0x83 {
		t.Errorf("Alloc() = %v, want frame 0x83", f)
	}
	if f := a.MustAlloc(); f.PPN() != 0x81 {
		t.Errorf("Alloc() = %v, want frame 0x81", f)
	}
}

func TestReleaseZeroes(t *testing.T) {
	mem := NewPhysMem(0, 1)
	a := NewAllocator(mem)
	f := a.MustAlloc()
	copy(f.Bytes(), "dirty")
	f.Release()

	f = a.MustAlloc()
	for i, b := range f.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d of reused frame = %#x, want 0", i, b)
		}
	}
}

func TestDoubleReleasePanics(t *testing.T) {
	a := NewAllocator(NewPhysMem(0, 2))
	f := a.MustAlloc()
	f.Release()

	defer func() {
		if recover() == nil {
			t.Errorf("second Release did not panic")
		}
	}()
	f.Release()
}

func TestAllocatorRange(t *testing.T) {
	mem := NewPhysMem(0x100, 8)
	a := NewAllocatorRange(mem, 0x104, 0x108)
	if a.Free() != 4 {
		t.Fatalf("Free() = %d, want 4", a.Free())
	}
	if f := a.MustAlloc(); f.PPN() != 0x104 {
		t.Errorf("first frame = %v, want 0x104", f)
	}
}

func TestPhysMemBounds(t *testing.T) {
	mem := NewPhysMem(0x10, 2)
	if got := len(mem.Bytes(0x11)); got != hostarch.PageSize {
		t.Errorf("len(Bytes) = %d, want %d", got, hostarch.PageSize)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("Bytes(0x12) did not panic")
		}
	}()
	mem.Bytes(0x12)
}
