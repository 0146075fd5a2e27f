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

// Package apps holds the built-in user programs and the loader that turns
// them into program images.
//
// Programs keep shared and forked state in their data segment, accessed
// through the MMU, never in Go variables: threads of a process see the same
// data segment, and fork gives the child a copy of it.
package apps

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"gvisor.dev/ukern/pkg/hostarch"
	"gvisor.dev/ukern/pkg/kernel"
)

// Address space layout of built-in programs.
const (
	// TextBase is the start of the text page, which holds the program name.
	TextBase hostarch.Addr = 0x1000

	// DataBase is the start of the data segment.
	DataBase hostarch.Addr = 0x2000
)

// Program is a built-in user program.
type Program struct {
	// Name is the name passed to spawn and exec.
	Name string

	// Description is a one line summary shown by the list command.
	Description string

	// Main is the program's main function. Its return value is the exit
	// code of the process.
	Main kernel.Entry

	// DataPages is the size of the zero-filled data segment in pages. At
	// least one page is always mapped.
	DataPages int
}

// Registry is a set of programs. It implements kernel.Loader.
type Registry struct {
	mu sync.RWMutex

	// +checklocks:mu
	programs map[string]*Program
}

// NewRegistry returns a registry holding every built-in program.
func NewRegistry() *Registry {
	r := &Registry{programs: make(map[string]*Program)}
	for _, p := range builtins() {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any program of the same name.
func (r *Registry) Register(p *Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[p.Name] = p
}

// Lookup returns the named program.
func (r *Registry) Lookup(name string) (*Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.programs[name]
	return p, ok
}

// Names returns the names of all programs in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.programs))
}

// Load implements kernel.Loader.Load.
func (r *Registry) Load(name string) (*kernel.Image, error) {
	p, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", kernel.ErrNoImage, name)
	}
	return &kernel.Image{
		Entry: p.Main,
		Segments: []kernel.Segment{
			{
				Start:  TextBase,
				Length: hostarch.PageSize,
				Data:   []byte(p.Name),
				Perm:   hostarch.ReadExec,
			},
			{
				Start:  DataBase,
				Length: uint64(max(p.DataPages, 1)) * hostarch.PageSize,
				Perm:   hostarch.ReadWrite,
			},
		},
	}, nil
}

// builtins returns every built-in program except init, which is built for
// each run by Init.
func builtins() []*Program {
	var ps []*Program
	for _, group := range [][]*Program{
		basicPrograms(),
		memoryPrograms(),
		processPrograms(),
		timePrograms(),
		stridePrograms(),
		threadPrograms(),
		deadlockPrograms(),
		condvarPrograms(),
	} {
		ps = append(ps, group...)
	}
	return ps
}

// dataWord returns the address of the i'th word of the data segment.
func dataWord(i int) hostarch.Addr {
	return DataBase + hostarch.Addr(8*i)
}
