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

// MaxSyscallNum bounds the syscall numbers counted in TaskInfo.
const MaxSyscallNum = 500

// Task states reported by task_info.
const (
	TaskUninit  = 0
	TaskReady   = 1
	TaskRunning = 2
	TaskExited  = 3
)

// SizeOfTaskInfo is the size of a TaskInfo in bytes: a 4-byte status, the
// counts, then the time aligned to 8 bytes.
const SizeOfTaskInfo = 4 + 4*MaxSyscallNum + 4 + 8

const taskInfoTimeOffset = SizeOfTaskInfo - 8

// TaskInfo is the result of task_info.
type TaskInfo struct {
	// Status is the state of the calling task.
	Status uint32

	// SyscallTimes counts calls per syscall number.
	SyscallTimes [MaxSyscallNum]uint32

	// Time is the time in milliseconds since the task first ran.
	Time uint64
}

// SizeBytes returns the encoded size.
func (ti *TaskInfo) SizeBytes() int {
	return SizeOfTaskInfo
}

// MarshalBytes encodes ti into dst.
func (ti *TaskInfo) MarshalBytes(dst []byte) []byte {
	binary.LittleEndian.PutUint32(dst[0:], ti.Status)
	for i, n := range ti.SyscallTimes {
		binary.LittleEndian.PutUint32(dst[4+4*i:], n)
	}
	// Padding before Time.
	binary.LittleEndian.PutUint32(dst[taskInfoTimeOffset-4:], 0)
	binary.LittleEndian.PutUint64(dst[taskInfoTimeOffset:], ti.Time)
	return dst[SizeOfTaskInfo:]
}

// UnmarshalBytes decodes ti from src.
func (ti *TaskInfo) UnmarshalBytes(src []byte) []byte {
	ti.Status = binary.LittleEndian.Uint32(src[0:])
	for i := range ti.SyscallTimes {
		ti.SyscallTimes[i] = binary.LittleEndian.Uint32(src[4+4*i:])
	}
	ti.Time = binary.LittleEndian.Uint64(src[taskInfoTimeOffset:])
	return src[SizeOfTaskInfo:]
}
