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

// Package cli is the main entrypoint for ukern.
package cli

import (
	"context"
	"flag"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/subcommands"

	"gvisor.dev/ukern/pkg/log"
	"gvisor.dev/ukern/ukern/cmd"
	"gvisor.dev/ukern/ukern/config"
)

// Main is the main entrypoint.
func Main() {
	forEachCmd(subcommands.Register)
	config.RegisterFlags(flag.CommandLine)

	// Subcommands register their own flags, so parse after registration.
	flag.Parse()

	conf, err := config.NewFromFlags(flag.CommandLine)
	if err != nil {
		cmd.Fatalf("%v", err)
	}
	setupLogging(conf, flag.CommandLine.Arg(0))

	log.Infof("ukern %s: %s/%s, %d CPUs, PID %d", strings.Join(os.Args[1:], " "), runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), os.Getpid())
	conf.Log()

	var status int
	if code := subcommands.Execute(context.Background(), conf, &status); code != subcommands.ExitSuccess {
		log.Warningf("%s failed: %v", flag.CommandLine.Arg(0), code)
		os.Exit(int(code))
	}
	log.Debugf("exit status %d", status)
	os.Exit(status & 0xff)
}

// setupLogging sends log output to stderr and, if --debug-log is set, to the
// file it names.
func setupLogging(conf *config.Config, subcommand string) {
	if conf.Debug {
		log.SetLevel(log.Debug)
	}
	target := newEmitter(conf.LogFormat, os.Stderr)
	f, err := log.OpenFile(conf.DebugLog, debugLogOpts{command: subcommand, start: time.Now()})
	if err != nil {
		cmd.Fatalf("opening debug log %q: %v", conf.DebugLog, err)
	}
	if f != nil {
		target = &log.MultiEmitter{target, newEmitter(conf.LogFormat, f)}
	}
	log.SetTarget(target)
}

// forEachCmd invokes the passed callback for each command supported by ukern.
func forEachCmd(cb func(cmd subcommands.Command, group string)) {
	cb(subcommands.HelpCommand(), "")
	cb(subcommands.FlagsCommand(), "")
	cb(subcommands.CommandsCommand(), "")

	cb(new(cmd.Run), "")
	cb(new(cmd.List), "")
}

func newEmitter(format string, logFile io.Writer) log.Emitter {
	switch format {
	case "text":
		return log.GoogleEmitter{&log.Writer{Next: logFile}}
	case "json":
		return log.JSONEmitter{&log.Writer{Next: logFile}}
	}
	cmd.Fatalf("unknown log format %q", format)
	panic("unreachable")
}

// debugLogOpts expands the variables of the --debug-log pattern.
type debugLogOpts struct {
	command string
	start   time.Time
}

// Build implements log.FileOpts.Build.
func (o debugLogOpts) Build(logPattern string) string {
	return strings.NewReplacer(
		"%TIMESTAMP%", o.start.Format("20060102-150405.000000"),
		"%COMMAND%", o.command,
	).Replace(logPattern)
}
