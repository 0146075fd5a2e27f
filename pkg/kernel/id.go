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

package kernel

// idAllocator hands out small integer IDs, reusing released ones first
// (most recently released first).
type idAllocator struct {
	next     int
	recycled []int
}

func (a *idAllocator) alloc() int {
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

func (a *idAllocator) release(id int) {
	if id < 0 || id >= a.next {
		panic("release of unallocated ID")
	}
	for _, r := range a.recycled {
		if r == id {
			panic("double release of ID")
		}
	}
	a.recycled = append(a.recycled, id)
}
