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

func basicPrograms() []*Program {
	return []*Program{
		{
			Name:        "hello",
			Description: "prints a greeting",
			Main:        helloMain,
		},
		{
			Name:        "fault",
			Description: "stores to address 0 and is killed",
			Main:        faultMain,
		},
		{
			Name:        "stdio",
			Description: "checks the standard descriptors with fstat and close",
			Main:        stdioMain,
		},
	}
}

func helloMain(uc *kernel.UserContext, _ uint64) int {
	ulib.Println(uc, "Hello, world!")
	return 0
}

func faultMain(uc *kernel.UserContext, _ uint64) int {
	ulib.Println(uc, "storing to address 0")
	ulib.StoreUint64(uc, 0, 1)
	ulib.Println(uc, "store did not fault")
	return 0
}

func stdioMain(uc *kernel.UserContext, _ uint64) int {
	for _, fd := range []int{abi.Stdin, abi.Stdout, abi.Stderr} {
		s, ret := ulib.Fstat(uc, fd)
		if ret != 0 || s.Mode != abi.ModeChar || s.Nlink != 1 {
			ulib.Printf(uc, "fstat(%d) = %d, %+v\n", fd, ret, s)
			return 1
		}
	}
	if ret := ulib.Write(uc, abi.Stdin, []byte("x")); ret != abi.Failure {
		ulib.Printf(uc, "write to stdin = %d\n", ret)
		return 1
	}
	if ret := ulib.Close(uc, abi.Stderr); ret != 0 {
		ulib.Printf(uc, "close(stderr) = %d\n", ret)
		return 1
	}
	if ret := ulib.Close(uc, abi.Stderr); ret != abi.Failure {
		ulib.Printf(uc, "second close(stderr) = %d\n", ret)
		return 1
	}
	if _, ret := ulib.Fstat(uc, abi.Stderr); ret != abi.Failure {
		ulib.Printf(uc, "fstat of closed descriptor = %d\n", ret)
		return 1
	}
	ulib.Println(uc, "stdio OK")
	return 0
}
