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

// Package deadlock detects deadlock among the threads of one process before
// a thread blocks.
//
// Two protocols are provided. MutexGraph handles single-instance resources
// by looking for a cycle in the wait-for relation. Banker handles counted
// resources with a banker's algorithm safety check. Neither type blocks or
// locks; the caller owns the resources they describe and serializes access.
package deadlock

import "errors"

// ErrDeadlock is returned when granting a request could block forever.
var ErrDeadlock = errors.New("deadlock")
