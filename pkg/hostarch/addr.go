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

package hostarch

import "fmt"

// Addr is a virtual address.
type Addr uint64

// String implements fmt.Stringer.String.
func (v Addr) String() string {
	return fmt.Sprintf("%#x", uint64(v))
}

// RoundDown returns the address rounded down to the nearest page boundary.
func (v Addr) RoundDown() Addr {
	return v & ^Addr(PageSize-1)
}

// RoundUp returns the address rounded up to the nearest page boundary. ok is
// true iff rounding up did not wrap around.
func (v Addr) RoundUp() (addr Addr, ok bool) {
	addr = Addr(v + PageSize - 1).RoundDown()
	ok = addr >= v
	return
}

// PageOffset returns the offset of v into its page.
func (v Addr) PageOffset() uint64 {
	return uint64(v & Addr(PageSize-1))
}

// IsPageAligned returns true if v.PageOffset() == 0.
func (v Addr) IsPageAligned() bool {
	return v.PageOffset() == 0
}

// AddLength adds the given length to start and returns the result. ok is true
// iff adding the length did not overflow the range of Addr.
func (v Addr) AddLength(length uint64) (end Addr, ok bool) {
	end = v + Addr(length)
	ok = end >= v
	return
}

// Floor returns the virtual page number of the page containing v.
func (v Addr) Floor() VPN {
	return VPN(v >> PageShift)
}

// Ceil returns the virtual page number of the first page boundary at or
// above v.
func (v Addr) Ceil() VPN {
	return VPN((v + PageSize - 1) >> PageShift)
}

// ToRange returns the page range [v.Floor(), (v+length).Ceil()). ok is false
// if the range overflows or extends past MaxAddr.
func (v Addr) ToRange(length uint64) (r VPNRange, ok bool) {
	end, ok := v.AddLength(length)
	if !ok || end > MaxAddr {
		return VPNRange{}, false
	}
	return VPNRange{v.Floor(), end.Ceil()}, true
}

// PhysAddr is a physical address.
type PhysAddr uint64

// String implements fmt.Stringer.String.
func (p PhysAddr) String() string {
	return fmt.Sprintf("%#x", uint64(p))
}

// PageOffset returns the offset of p into its frame.
func (p PhysAddr) PageOffset() uint64 {
	return uint64(p & PhysAddr(PageSize-1))
}

// Floor returns the frame containing p.
func (p PhysAddr) Floor() PPN {
	return PPN(p >> PageShift)
}

// VPN is a virtual page number.
type VPN uint64

// Addr returns the first address of the page.
func (n VPN) Addr() Addr {
	return Addr(n) << PageShift
}

// PPN is a physical page number, i.e. a frame number.
type PPN uint64

// Addr returns the first physical address of the frame.
func (n PPN) Addr() PhysAddr {
	return PhysAddr(n) << PageShift
}
