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

package ulib

import (
	"time"

	"github.com/cenkalti/backoff"

	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
)

// DeadlockBackOff returns the default policy of RetryDeadlock: up to
// retries attempts, interval apart.
func DeadlockBackOff(interval time.Duration, retries uint64) backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), retries)
}

// RetryDeadlock runs op until it returns something other than the deadlock
// code or b gives up. Between attempts the thread sleeps in the kernel for
// the interval chosen by b, so that other threads can release what op
// waits for. It returns op's last result.
func RetryDeadlock(uc *kernel.UserContext, b backoff.BackOff, op func() int64) int64 {
	b.Reset()
	for {
		ret := op()
		if ret != abi.Deadlock {
			return ret
		}
		next := b.NextBackOff()
		if next == backoff.Stop {
			return ret
		}
		Sleep(uc, uint64(max(next/time.Millisecond, 1)))
	}
}
