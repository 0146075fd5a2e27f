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

package mm

import (
	"fmt"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/pagetables"
	"gvisor.dev/ukern/pkg/pgalloc"
)

// UserBuffer is a user virtual range resolved to the physical memory backing
// it, one slice per page touched.
type UserBuffer [][]byte

// Len returns the total length of the buffer.
func (b UserBuffer) Len() int {
	var n int
	for _, s := range b {
		n += len(s)
	}
	return n
}

// CopyOut copies src into the buffer and returns the number of bytes copied.
func (b UserBuffer) CopyOut(src []byte) int {
	var n int
	for _, s := range b {
		if len(src) == 0 {
			break
		}
		c := copy(s, src)
		src = src[c:]
		n += c
	}
	return n
}

// CopyIn copies from the buffer into dst and returns the number of bytes
// copied.
func (b UserBuffer) CopyIn(dst []byte) int {
	var n int
	for _, s := range b {
		if len(dst) == 0 {
			break
		}
		c := copy(dst, s)
		dst = dst[c:]
		n += c
	}
	return n
}

// translate resolves [va, va+length) through pt, checking every leaf
// against check.
func translate(mem *pgalloc.PhysMem, pt *pagetables.PageTables, va hostarch.Addr, length uint64, check func(pagetables.PTE) bool) (UserBuffer, error) {
	end, ok := va.AddLength(length)
	if !ok || end > hostarch.MaxAddr {
		return nil, fmt.Errorf("%w: %v+%#x", ErrFault, va, length)
	}
	var buf UserBuffer
	for start := va; start < end; {
		pte, ok := pt.Translate(start.Floor())
		if !ok || !check(pte) {
			return nil, fmt.Errorf("%w: %v", ErrFault, start)
		}
		next := (start.Floor() + 1).Addr()
		if next > end {
			next = end
		}
		frame := mem.Bytes(pte.PPN())
		buf = append(buf, frame[start.PageOffset():start.PageOffset()+uint64(next-start)])
		start = next
	}
	return buf, nil
}

func anyPTE(pagetables.PTE) bool { return true }

// TranslatedByteBuffer resolves [va, va+length) in the address space named
// by token. Ranges crossing page boundaries are split at each boundary. The
// caller must keep the address space alive while using the buffer.
func TranslatedByteBuffer(mem *pgalloc.PhysMem, token uint64, va hostarch.Addr, length uint64) (UserBuffer, error) {
	pt, err := pagetables.FromToken(mem, token)
	if err != nil {
		return nil, err
	}
	return translate(mem, pt, va, length, anyPTE)
}

// CopyOut writes src to va in the address space named by token. Either all
// of src is written or nothing is.
func CopyOut(mem *pgalloc.PhysMem, token uint64, va hostarch.Addr, src []byte) error {
	buf, err := TranslatedByteBuffer(mem, token, va, uint64(len(src)))
	if err != nil {
		return err
	}
	buf.CopyOut(src)
	return nil
}

// CopyIn reads len(dst) bytes at va in the address space named by token.
func CopyIn(mem *pgalloc.PhysMem, token uint64, va hostarch.Addr, dst []byte) error {
	buf, err := TranslatedByteBuffer(mem, token, va, uint64(len(dst)))
	if err != nil {
		return err
	}
	buf.CopyIn(dst)
	return nil
}

// CopyInString reads a NUL terminated string of at most maxLen bytes at va.
func CopyInString(mem *pgalloc.PhysMem, token uint64, va hostarch.Addr, maxLen int) (string, error) {
	pt, err := pagetables.FromToken(mem, token)
	if err != nil {
		return "", err
	}
	var s []byte
	for len(s) < maxLen {
		pa, ok := pt.TranslateAddr(va)
		if !ok {
			return "", fmt.Errorf("%w: %v", ErrFault, va)
		}
		c := mem.Bytes(pa.Floor())[pa.PageOffset()]
		if c == 0 {
			return string(s), nil
		}
		s = append(s, c)
		va++
	}
	return "", fmt.Errorf("%w: string at %v longer than %d", ErrInvalidArgument, va, maxLen)
}

// UserAccess resolves [va, va+length) for an access of type at from user
// mode: every page must be mapped, user accessible and permit at.
func (mm *MemoryManager) UserAccess(va hostarch.Addr, length uint64, at hostarch.AccessType) (UserBuffer, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if mm.pt == nil {
		return nil, ErrFault
	}
	return translate(mm.alloc.Mem(), mm.pt, va, length, func(pte pagetables.PTE) bool {
		return pte.UserAccessible() && pte.Flags().AccessType().SupersetOf(at)
	})
}
