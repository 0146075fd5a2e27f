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

// Package hostarch describes the address layout of the simulated machine: a
// 64-bit RISC-V style machine with 4K pages and 39-bit virtual addresses.
package hostarch

const (
	// PageShift is the binary log of the page size.
	PageShift = 12

	// PageSize is the size of a page and of a physical frame.
	PageSize = 1 << PageShift

	// VAWidth is the number of significant bits in a virtual address.
	VAWidth = 39

	// MaxAddr is one past the highest virtual address that can be mapped.
	MaxAddr = Addr(1) << VAWidth

	// PAWidth is the number of significant bits in a physical address.
	PAWidth = 56

	// PPNWidth is the number of bits in a physical page number.
	PPNWidth = PAWidth - PageShift
)
