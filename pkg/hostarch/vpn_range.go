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

// VPNRange is a half-open range of virtual page numbers [Start, End).
type VPNRange struct {
	Start VPN
	End   VPN
}

// WellFormed returns true if r.Start <= r.End.
func (r VPNRange) WellFormed() bool {
	return r.Start <= r.End
}

// Length returns the number of pages in r.
func (r VPNRange) Length() uint64 {
	return uint64(r.End - r.Start)
}

// Empty returns true if r contains no pages.
func (r VPNRange) Empty() bool {
	return r.Start == r.End
}

// Contains returns true if r contains n.
func (r VPNRange) Contains(n VPN) bool {
	return r.Start <= n && n < r.End
}

// Overlaps returns true if r and r2 have at least one page in common.
func (r VPNRange) Overlaps(r2 VPNRange) bool {
	return r.Start < r2.End && r2.Start < r.End
}

// IsSupersetOf returns true if r contains every page of r2.
func (r VPNRange) IsSupersetOf(r2 VPNRange) bool {
	return r.Start <= r2.Start && r.End >= r2.End
}

// Intersect returns the pages common to r and r2. If there are none, the
// returned range is empty.
func (r VPNRange) Intersect(r2 VPNRange) VPNRange {
	if r.Start < r2.Start {
		r.Start = r2.Start
	}
	if r.End > r2.End {
		r.End = r2.End
	}
	if r.End < r.Start {
		r.End = r.Start
	}
	return r
}

// String implements fmt.Stringer.String.
func (r VPNRange) String() string {
	return fmt.Sprintf("[%v, %v)", r.Start.Addr(), r.End.Addr())
}
