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

package apps

import (
	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

// mmapBase is where the memory programs map their ranges.
const mmapBase hostarch.Addr = 0x1000_0000

func memoryPrograms() []*Program {
	return []*Program{
		{
			Name:        "mmap",
			Description: "maps, fills, splits and unmaps anonymous memory",
			Main:        mmapMain,
		},
		{
			Name:        "mmap_fault",
			Description: "writes to a read-only mapping and is killed",
			Main:        mmapFaultMain,
		},
		{
			Name:        "sbrk",
			Description: "grows and shrinks the heap",
			Main:        sbrkMain,
		},
	}
}

func mmapMain(uc *kernel.UserContext, _ uint64) int {
	const pages = 3
	rw := uint64(abi.PortRead | abi.PortWrite)
	if ret := ulib.Mmap(uc, mmapBase, pages*hostarch.PageSize, rw); ret != 0 {
		ulib.Printf(uc, "mmap = %d\n", ret)
		return 1
	}
	for i := range pages {
		ulib.StoreUint64(uc, mmapBase+hostarch.Addr(i*hostarch.PageSize)+8, uint64(i+1))
	}
	for i := range pages {
		if v := ulib.LoadUint64(uc, mmapBase+hostarch.Addr(i*hostarch.PageSize)+8); v != uint64(i+1) {
			ulib.Printf(uc, "page %d holds %d\n", i, v)
			return 1
		}
	}

	checks := []struct {
		name string
		ret  int64
	}{
		{"overlapping mmap", ulib.Mmap(uc, mmapBase+hostarch.PageSize, hostarch.PageSize, rw)},
		{"mmap with empty port", ulib.Mmap(uc, mmapBase+16*hostarch.PageSize, hostarch.PageSize, 0)},
		{"mmap with extra port bits", ulib.Mmap(uc, mmapBase+16*hostarch.PageSize, hostarch.PageSize, 8|rw)},
		{"unaligned mmap", ulib.Mmap(uc, mmapBase+16*hostarch.PageSize+1, hostarch.PageSize, rw)},
	}
	for _, c := range checks {
		if c.ret != abi.Failure {
			ulib.Printf(uc, "%s = %d\n", c.name, c.ret)
			return 1
		}
	}

	// Punch a hole in the middle, then remove both ends.
	if ret := ulib.Munmap(uc, mmapBase+hostarch.PageSize, hostarch.PageSize); ret != 0 {
		ulib.Printf(uc, "munmap of middle page = %d\n", ret)
		return 1
	}
	if ret := ulib.Munmap(uc, mmapBase+hostarch.PageSize, hostarch.PageSize); ret != abi.Failure {
		ulib.Printf(uc, "second munmap of middle page = %d\n", ret)
		return 1
	}
	if v := ulib.LoadUint64(uc, mmapBase+2*hostarch.PageSize+8); v != 3 {
		ulib.Printf(uc, "last page holds %d after split\n", v)
		return 1
	}
	if ret := ulib.Munmap(uc, mmapBase, pages*hostarch.PageSize); ret != abi.Failure {
		ulib.Printf(uc, "munmap over hole = %d\n", ret)
		return 1
	}
	for _, i := range []int{0, 2} {
		if ret := ulib.Munmap(uc, mmapBase+hostarch.Addr(i*hostarch.PageSize), hostarch.PageSize); ret != 0 {
			ulib.Printf(uc, "munmap of page %d = %d\n", i, ret)
			return 1
		}
	}
	ulib.Println(uc, "mmap OK")
	return 0
}

func mmapFaultMain(uc *kernel.UserContext, _ uint64) int {
	if ret := ulib.Mmap(uc, mmapBase, hostarch.PageSize, abi.PortRead); ret != 0 {
		ulib.Printf(uc, "mmap = %d\n", ret)
		return 1
	}
	if v := ulib.LoadUint64(uc, mmapBase); v != 0 {
		ulib.Printf(uc, "fresh page holds %d\n", v)
		return 1
	}
	ulib.StoreUint64(uc, mmapBase, 1)
	ulib.Println(uc, "store to read-only page did not fault")
	return 0
}

func sbrkMain(uc *kernel.UserContext, _ uint64) int {
	bottom := ulib.Sbrk(uc, 0)
	if bottom < 0 {
		ulib.Printf(uc, "sbrk(0) = %d\n", bottom)
		return 1
	}
	if ret := ulib.Sbrk(uc, 2*hostarch.PageSize); ret != bottom {
		ulib.Printf(uc, "sbrk(+2 pages) = %#x, want %#x\n", ret, bottom)
		return 1
	}
	heap := hostarch.Addr(bottom)
	ulib.StoreUint64(uc, heap, 42)
	ulib.StoreUint64(uc, heap+hostarch.PageSize, 43)
	if ulib.LoadUint64(uc, heap)+ulib.LoadUint64(uc, heap+hostarch.PageSize) != 85 {
		ulib.Println(uc, "heap lost its contents")
		return 1
	}
	if ret := ulib.Sbrk(uc, -hostarch.PageSize); ret != bottom+2*hostarch.PageSize {
		ulib.Printf(uc, "sbrk(-1 page) = %#x\n", ret)
		return 1
	}
	if ret := ulib.Sbrk(uc, -2*hostarch.PageSize); ret != abi.Failure {
		ulib.Printf(uc, "sbrk below the heap bottom = %#x\n", ret)
		return 1
	}
	if v := ulib.LoadUint64(uc, heap); v != 42 {
		ulib.Printf(uc, "heap holds %d after shrinking\n", v)
		return 1
	}
	ulib.Println(uc, "sbrk OK")
	return 0
}
