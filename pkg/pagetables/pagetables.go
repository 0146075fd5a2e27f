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

// Package pagetables provides a three level page table, laid out as the
// hardware walks it: every level is a physical frame holding 512 little
// endian 64-bit entries.
//
// PageTables does no locking; callers serialize access.
package pagetables

import (
	"encoding/binary"
	"errors"
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pgalloc"
)

const (
	// levels is the depth of the table.
	levels = 3

	// indexBits is the width of the VPN slice used at each level.
	indexBits = 9

	// entriesPerPage is the number of entries in one table frame.
	entriesPerPage = 1 << indexBits

	// entrySize is the size in bytes of one entry.
	entrySize = 8

	// ModeSv39 is the addressing mode tag carried in the top bits of a
	// token.
	ModeSv39 = 8

	modeShift = 60
)

var (
	// ErrAlreadyMapped is returned by Map if the page is already mapped.
	ErrAlreadyMapped = errors.New("page already mapped")

	// ErrNotMapped is returned by Unmap if the page is not mapped.
	ErrNotMapped = errors.New("page not mapped")

	// ErrInvalidFlags is returned by Map if the leaf would grant no access.
	ErrInvalidFlags = errors.New("leaf entry must allow at least one of read, write or execute")

	// ErrBadToken is returned by FromToken for tokens of another mode.
	ErrBadToken = errors.New("unsupported address space token")
)

// PageTables is a page table rooted at one frame.
type PageTables struct {
	mem *pgalloc.PhysMem

	// alloc provides intermediate frames. It is nil for lookup-only views
	// created by FromToken.
	alloc *pgalloc.Allocator

	// root is the root table frame.
	root hostarch.PPN

	// frames holds the root and every intermediate frame allocated by this
	// table. They are released together by Release.
	frames []*pgalloc.Frame
}

// New returns an empty page table. It panics if no frame is available for
// the root, since no address space can be built without one.
func New(alloc *pgalloc.Allocator) *PageTables {
	f := alloc.MustAlloc()
	return &PageTables{
		mem:    alloc.Mem(),
		alloc:  alloc,
		root:   f.PPN(),
		frames: []*pgalloc.Frame{f},
	}
}

// FromToken returns a lookup-only view of the table identified by token. The
// view owns no frames: Map, Unmap and Release panic on it.
func FromToken(mem *pgalloc.PhysMem, token uint64) (*PageTables, error) {
	if token>>modeShift != ModeSv39 {
		return nil, fmt.Errorf("%w: %#x", ErrBadToken, token)
	}
	root := hostarch.PPN(token & ppnMask)
	if !mem.Contains(root) {
		return nil, fmt.Errorf("%w: root frame %#x not in memory", ErrBadToken, uint64(root))
	}
	return &PageTables{mem: mem, root: root}, nil
}

// Token returns the value identifying this table, as loaded into the address
// translation register: the mode tag in the top bits and the root frame in
// the low 44 bits.
func (p *PageTables) Token() uint64 {
	return ModeSv39<<modeShift | uint64(p.root)
}

// Root returns the root table frame.
func (p *PageTables) Root() hostarch.PPN {
	return p.root
}

// Frames returns the number of frames owned by the table, including the
// root.
func (p *PageTables) Frames() int {
	return len(p.frames)
}

func (p *PageTables) owner() {
	if p.alloc == nil {
		panic("mutation of a lookup-only page table view")
	}
}

// Map maps vpn to ppn with the given flags. Valid is implied.
func (p *PageTables) Map(vpn hostarch.VPN, ppn hostarch.PPN, flags Flags) error {
	p.owner()
	if flags&(Read|Write|Execute) == 0 {
		return ErrInvalidFlags
	}
	table, idx := p.walkCreate(vpn)
	if p.entry(table, idx).Valid() {
		return fmt.Errorf("%w: vpn %#x", ErrAlreadyMapped, uint64(vpn))
	}
	p.setEntry(table, idx, NewPTE(ppn, flags|Valid))
	return nil
}

// Unmap removes the mapping of vpn. Intermediate tables are kept until the
// whole table is released.
func (p *PageTables) Unmap(vpn hostarch.VPN) error {
	p.owner()
	table, idx, ok := p.walk(vpn)
	if !ok || !p.entry(table, idx).Valid() {
		return fmt.Errorf("%w: vpn %#x", ErrNotMapped, uint64(vpn))
	}
	p.setEntry(table, idx, 0)
	return nil
}

// Translate returns the leaf entry for vpn. ok is false if vpn is not mapped.
// Translate never allocates.
func (p *PageTables) Translate(vpn hostarch.VPN) (pte PTE, ok bool) {
	table, idx, ok := p.walk(vpn)
	if !ok {
		return 0, false
	}
	pte = p.entry(table, idx)
	if !pte.Valid() {
		return 0, false
	}
	return pte, true
}

// TranslateAddr returns the physical address backing va.
func (p *PageTables) TranslateAddr(va hostarch.Addr) (hostarch.PhysAddr, bool) {
	pte, ok := p.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return pte.PPN().Addr() + hostarch.PhysAddr(va.PageOffset()), true
}

// Release returns every frame owned by the table to the allocator. Frames
// mapped by leaf entries are not owned by the table and are not released.
func (p *PageTables) Release() {
	p.owner()
	for _, f := range p.frames {
		f.Release()
	}
	p.frames = nil
	p.alloc = nil
}

// ForEach calls fn for every valid leaf entry, in ascending VPN order.
func (p *PageTables) ForEach(fn func(vpn hostarch.VPN, pte PTE)) {
	p.forEach(p.root, 0, 0, fn)
}

func (p *PageTables) forEach(table hostarch.PPN, level int, prefix hostarch.VPN, fn func(vpn hostarch.VPN, pte PTE)) {
	for i := uint(0); i < entriesPerPage; i++ {
		pte := p.entry(table, i)
		if !pte.Valid() {
			continue
		}
		vpn := prefix<<indexBits | hostarch.VPN(i)
		if level == levels-1 {
			fn(vpn, pte)
			continue
		}
		if pte.IsLeaf() {
			// Superpages are never installed by this package.
			continue
		}
		p.forEach(pte.PPN(), level+1, vpn, fn)
	}
}

func (p *PageTables) entry(table hostarch.PPN, idx uint) PTE {
	b := p.mem.Bytes(table)
	return PTE(binary.LittleEndian.Uint64(b[idx*entrySize:]))
}

func (p *PageTables) setEntry(table hostarch.PPN, idx uint, pte PTE) {
	b := p.mem.Bytes(table)
	binary.LittleEndian.PutUint64(b[idx*entrySize:], uint64(pte))
}
