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

package cmd

import (
	"fmt"
	"io"

	"gvisor.dev/ukern/pkg/apps"
	"gvisor.dev/ukern/pkg/kernel"
	"gvisor.dev/ukern/pkg/log"
	"gvisor.dev/ukern/pkg/syscalls"
	"gvisor.dev/ukern/ukern/config"
)

// Stdio is the host side of the kernel's standard descriptors.
type Stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Boot creates a kernel as configured by conf, starts the initial program
// with the given programs to spawn and runs until the initial program
// exits. It returns the initial program's exit code.
func Boot(conf *config.Config, programs []string, stdio Stdio) (int, error) {
	registry := apps.NewRegistry()
	for _, name := range programs {
		if _, ok := registry.Lookup(name); !ok {
			return 0, fmt.Errorf("unknown program %q", name)
		}
	}
	registry.Register(apps.Init(programs))

	var k kernel.Kernel
	if err := k.Init(kernel.InitKernelArgs{
		Frames:          conf.Frames,
		BigStride:       conf.BigStride,
		DefaultPriority: conf.DefaultPriority,
		TimeSlice:       conf.TimeSlice,
		DeadlockDetect:  conf.DeadlockDetect,
		VirtualTime:     conf.VirtualTime,
		TrapCost:        conf.TrapCost,
		Loader:          registry,
		Syscalls:        syscalls.Table(),
		Stdin:           stdio.Stdin,
		Stdout:          stdio.Stdout,
		Stderr:          stdio.Stderr,
	}); err != nil {
		return 0, fmt.Errorf("initializing kernel: %w", err)
	}
	log.Infof("Booting with %d frames, init %q, programs %v", conf.Frames, conf.Init, programs)

	initProc, err := k.CreateProcess(conf.Init)
	if err != nil {
		return 0, fmt.Errorf("creating initial process: %w", err)
	}
	if err := k.Run(); err != nil {
		return 0, err
	}
	code, _ := initProc.ExitStatus()
	log.Infof("Initial process exited with %d, %d frames in use", code, k.FrameAllocator().InUse())
	return code, nil
}
