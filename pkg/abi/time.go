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

import (
	"encoding/binary"
	"time"
)

// SizeOfTimeVal is the size of a TimeVal in bytes.
const SizeOfTimeVal = 16

// TimeVal is the result of get_time.
type TimeVal struct {
	Sec  uint64
	Usec uint64
}

// DurationToTimeVal translates a duration to a TimeVal, truncating to
// microseconds.
func DurationToTimeVal(d time.Duration) TimeVal {
	us := uint64(d / time.Microsecond)
	return TimeVal{Sec: us / 1e6, Usec: us % 1e6}
}

// ToDuration returns tv as a duration.
func (tv TimeVal) ToDuration() time.Duration {
	return time.Duration(tv.Sec)*time.Second + time.Duration(tv.Usec)*time.Microsecond
}

// Millis returns tv in milliseconds.
func (tv TimeVal) Millis() uint64 {
	return tv.Sec*1000 + tv.Usec/1000
}

// SizeBytes returns the encoded size.
func (tv *TimeVal) SizeBytes() int {
	return SizeOfTimeVal
}

// MarshalBytes encodes tv into dst.
func (tv *TimeVal) MarshalBytes(dst []byte) []byte {
	binary.LittleEndian.PutUint64(dst[0:], tv.Sec)
	binary.LittleEndian.PutUint64(dst[8:], tv.Usec)
	return dst[SizeOfTimeVal:]
}

// UnmarshalBytes decodes tv from src.
func (tv *TimeVal) UnmarshalBytes(src []byte) []byte {
	tv.Sec = binary.LittleEndian.Uint64(src[0:])
	tv.Usec = binary.LittleEndian.Uint64(src[8:])
	return src[SizeOfTimeVal:]
}
