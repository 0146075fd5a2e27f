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

package apps

import (
	"gvisor.dev/ukern/pkg/abi"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/ulib"
)

// InitName is the name of the default initial program.
const InitName = "initproc"

// Init returns the initial program. It spawns each of the named programs,
// then reaps children until none is left, reporting every exit on standard
// output. Orphans re-parented to init are reaped too.
func Init(spawn []string) *Program {
	names := append([]string(nil), spawn...)
	return &Program{
		Name:        InitName,
		Description: "spawns the selected programs and reaps every child",
		Main: func(uc *kernel.UserContext, _ uint64) int {
			for _, name := range names {
				if pid := ulib.Spawn(uc, name); pid < 0 {
					ulib.Printf(uc, "[initproc] spawn %s failed\n", name)
				}
			}
			for {
				pid, code := ulib.TryWaitPID(uc, -1)
				switch pid {
				case abi.Failure:
					return 0
				case abi.NotExited:
					ulib.Yield(uc)
				default:
					ulib.Printf(uc, "[initproc] pid %d exited with code %d\n", pid, code)
				}
			}
		},
	}
}
