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

package abi

import "encoding/binary"

// File modes reported by fstat.
const (
	ModeNull = 0
	ModeChar = 0o020000
	ModeDir  = 0o040000
	ModeFile = 0o100000
)

// SizeOfStat is the size of a Stat in bytes.
const SizeOfStat = 8 + 8 + 4 + 4 + 7*8

// Stat is the result of fstat.
type Stat struct {
	Dev   uint64
	Ino   uint64
	Mode  uint32
	Nlink uint32
	Pad   [7]uint64
}

// SizeBytes returns the encoded size.
func (s *Stat) SizeBytes() int {
	return SizeOfStat
}

// MarshalBytes encodes s into dst.
func (s *Stat) MarshalBytes(dst []byte) []byte {
	binary.LittleEndian.PutUint64(dst[0:], s.Dev)
	binary.LittleEndian.PutUint64(dst[8:], s.Ino)
	binary.LittleEndian.PutUint32(dst[16:], s.Mode)
	binary.LittleEndian.PutUint32(dst[20:], s.Nlink)
	for i, p := range s.Pad {
		binary.LittleEndian.PutUint64(dst[24+8*i:], p)
	}
	return dst[SizeOfStat:]
}

// UnmarshalBytes decodes s from src.
func (s *Stat) UnmarshalBytes(src []byte) []byte {
	s.Dev = binary.LittleEndian.Uint64(src[0:])
	s.Ino = binary.LittleEndian.Uint64(src[8:])
	s.Mode = binary.LittleEndian.Uint32(src[16:])
	s.Nlink = binary.LittleEndian.Uint32(src[20:])
	for i := range s.Pad {
		s.Pad[i] = binary.LittleEndian.Uint64(src[24+8*i:])
	}
	return src[SizeOfStat:]
}
