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
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"gvisor.dev/ukern/ukern/config"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	// virtualTime overrides the global --virtual-time setting for this run.
	virtualTime bool
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "boot the kernel and run programs under the initial process"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] [program...] - boot the kernel; the initial program spawns each named program and reaps it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.virtualTime, "virtual", false, "run on a virtual clock regardless of --virtual-time.")
}

// Execute implements subcommands.Command.Execute. The exit code of the
// initial program is stored in args[1].
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config).Clone()
	status := args[1].(*int)
	if r.virtualTime {
		conf.VirtualTime = true
	}

	code, err := Boot(conf, f.Args(), Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		Errorf("run failed: %v", err)
		return subcommands.ExitFailure
	}
	*status = code
	return subcommands.ExitSuccess
}
