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
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
)

// Flags are the low eight bits of a page table entry.
type Flags uint8

// Page table entry flags.
const (
	Valid Flags = 1 << iota
	Read
	Write
	Execute
	User
	Global
	Accessed
	Dirty
)

// String returns the flags in the conventional "VRWXUGAD" form, with '-' for
// clear bits.
func (f Flags) String() string {
	const names = "VRWXUGAD"
	var b [8]byte
	for i := range b {
		if f&(1<<i) != 0 {
			b[i] = names[i]
		} else {
			b[i] = '-'
		}
	}
	return string(b[:])
}

// AccessType returns the access permitted by f.
func (f Flags) AccessType() hostarch.AccessType {
	return hostarch.AccessType{
		Read:    f&Read != 0,
		Write:   f&Write != 0,
		Execute: f&Execute != 0,
	}
}

// FlagsFor returns the leaf flags (without Valid) granting at, plus User if
// user is set.
func FlagsFor(at hostarch.AccessType, user bool) Flags {
	var f Flags
	if at.Read {
		f |= Read
	}
	if at.Write {
		f |= Write
	}
	if at.Execute {
		f |= Execute
	}
	if user {
		f |= User
	}
	return f
}

const (
	ppnShift = 10
	ppnMask  = (1 << hostarch.PPNWidth) - 1
)

// PTE is a page table entry: a frame number in bits 10..53 and flags in bits
// 0..7.
type PTE uint64

// NewPTE returns an entry pointing at ppn with the given flags.
func NewPTE(ppn hostarch.PPN, flags Flags) PTE {
	return PTE(uint64(ppn)&ppnMask)<<ppnShift | PTE(flags)
}

// PPN returns the frame the entry points at.
func (p PTE) PPN() hostarch.PPN {
	return hostarch.PPN((uint64(p) >> ppnShift) & ppnMask)
}

// Flags returns the entry's flags.
func (p PTE) Flags() Flags {
	return Flags(p)
}

// Valid returns true if the entry is valid.
func (p PTE) Valid() bool {
	return p.Flags()&Valid != 0
}

// Readable returns true if the entry permits reads.
func (p PTE) Readable() bool {
	return p.Flags()&Read != 0
}

// Writeable returns true if the entry permits writes.
func (p PTE) Writeable() bool {
	return p.Flags()&Write != 0
}

// Executable returns true if the entry permits instruction fetch.
func (p PTE) Executable() bool {
	return p.Flags()&Execute != 0
}

// UserAccessible returns true if the entry may be used from user mode.
func (p PTE) UserAccessible() bool {
	return p.Flags()&User != 0
}

// IsLeaf returns true if the entry maps a page rather than pointing at the
// next level.
func (p PTE) IsLeaf() bool {
	return p.Flags()&(Read|Write|Execute) != 0
}

// String implements fmt.Stringer.String.
func (p PTE) String() string {
	return fmt.Sprintf("%#x[%v]", uint64(p.PPN()), p.Flags())
}
