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

import (
	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/mm"
)

// CopyOutBytes copies src to the task's memory at va through the page
// table. Nothing is written if any page is unmapped.
func (t *Task) CopyOutBytes(va hostarch.Addr, src []byte) error {
	as := t.Process().MemoryManager()
	return mm.CopyOut(t.k.mem, as.Token(), va, src)
}

// CopyInBytes fills dst from the task's memory at va.
func (t *Task) CopyInBytes(va hostarch.Addr, dst []byte) error {
	as := t.Process().MemoryManager()
	return mm.CopyIn(t.k.mem, as.Token(), va, dst)
}

// CopyInString reads a NUL-terminated string of at most maxLen bytes at va.
func (t *Task) CopyInString(va hostarch.Addr, maxLen int) (string, error) {
	as := t.Process().MemoryManager()
	return mm.CopyInString(t.k.mem, as.Token(), va, maxLen)
}

// UserBuffer returns the physical byte slices backing [va, va+length).
func (t *Task) UserBuffer(va hostarch.Addr, length uint64) (mm.UserBuffer, error) {
	as := t.Process().MemoryManager()
	return mm.TranslatedByteBuffer(t.k.mem, as.Token(), va, length)
}
