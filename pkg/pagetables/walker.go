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
	"gvisor.dev/ukern/pkg/hostarch"
)

// indexes returns the per-level indexes of vpn, root level first.
func indexes(vpn hostarch.VPN) [levels]uint {
	var idx [levels]uint
	for i := levels - 1; i >= 0; i-- {
		idx[i] = uint(vpn) & (entriesPerPage - 1)
		vpn >>= indexBits
	}
	return idx
}

// walk returns the leaf table frame and index for vpn without allocating. ok
// is false if an intermediate level is missing.
func (p *PageTables) walk(vpn hostarch.VPN) (table hostarch.PPN, idx uint, ok bool) {
	idxs := indexes(vpn)
	table = p.root
	for level := 0; level < levels-1; level++ {
		pte := p.entry(table, idxs[level])
		if !pte.Valid() || pte.IsLeaf() {
			return 0, 0, false
		}
		table = pte.PPN()
	}
	return table, idxs[levels-1], true
}

// walkCreate is like walk, but allocates missing intermediate levels. It
// panics if memory is exhausted.
func (p *PageTables) walkCreate(vpn hostarch.VPN) (table hostarch.PPN, idx uint) {
	idxs := indexes(vpn)
	table = p.root
	for level := 0; level < levels-1; level++ {
		pte := p.entry(table, idxs[level])
		if !pte.Valid() {
			f := p.alloc.MustAlloc()
			p.frames = append(p.frames, f)
			pte = NewPTE(f.PPN(), Valid)
			p.setEntry(table, idxs[level], pte)
		} else if pte.IsLeaf() {
			panic("superpage entry in page table walk")
		}
		table = pte.PPN()
	}
	return table, idxs[levels-1]
}
