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
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
)

// PhysMem is the simulated physical memory: the contiguous frames
// [Base, Base+len).
//
// PhysMem does no locking. Accesses to a given frame are serialized by
// whoever owns the frame.
type PhysMem struct {
	base  hostarch.PPN
	bytes []byte
}

// NewPhysMem returns zeroed physical memory holding frames frames, the first
// of which is base.
func NewPhysMem(base hostarch.PPN, frames int) *PhysMem {
	if frames <= 0 {
		panic(fmt.Sprintf("invalid frame count %d", frames))
	}
	return &PhysMem{
		base:  base,
		bytes: make([]byte, frames*hostarch.PageSize),
	}
}

// Base returns the first frame of m.
func (m *PhysMem) Base() hostarch.PPN {
	return m.base
}

// End returns one past the last frame of m.
func (m *PhysMem) End() hostarch.PPN {
	return m.base + hostarch.PPN(m.Frames())
}

// Frames returns the number of frames in m.
func (m *PhysMem) Frames() int {
	return len(m.bytes) / hostarch.PageSize
}

// Contains returns true if ppn is backed by m.
func (m *PhysMem) Contains(ppn hostarch.PPN) bool {
	return ppn >= m.base && ppn < m.End()
}

// Bytes returns the page-sized slice backing the given frame.
//
// Precondition: m.Contains(ppn).
func (m *PhysMem) Bytes(ppn hostarch.PPN) []byte {
	if !m.Contains(ppn) {
		panic(fmt.Sprintf("frame %#x outside physical memory [%#x, %#x)", ppn, m.base, m.End()))
	}
	off := int(ppn-m.base) * hostarch.PageSize
	return m.bytes[off : off+hostarch.PageSize : off+hostarch.PageSize]
}

// Zero clears the given frame.
func (m *PhysMem) Zero(ppn hostarch.PPN) {
	clear(m.Bytes(ppn))
}
