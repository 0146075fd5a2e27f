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

// Package config provides basic infrastructure to set configuration settings
// for ukern. Each setting is a flag; settings can also be read from a TOML
// file named by --config, in which case flags given explicitly on the
// command line take precedence over the file.
package config

import (
	"flag"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mohae/deepcopy"

	"gvisor.dev/ukern/pkg/log"
)

// Config holds configuration that is not part of the kernel's programs.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name and the TOML key.
//  3. Register a new flag in RegisterFlags.
//  4. Add any validation in validate.
type Config struct {
	// ConfigFile is the TOML file read by NewFromFlags.
	ConfigFile string `flag:"config" toml:"-"`

	// Frames is the number of physical page frames.
	Frames int `flag:"frames" toml:"frames"`

	// BigStride is the stride scheduler's pass distance.
	BigStride uint64 `flag:"big-stride" toml:"big-stride"`

	// DefaultPriority is the priority of new threads.
	DefaultPriority int64 `flag:"default-priority" toml:"default-priority"`

	// TimeSlice is how long a thread runs before it is preempted.
	TimeSlice time.Duration `flag:"time-slice" toml:"time-slice"`

	// VirtualTime runs the kernel on a virtual clock.
	VirtualTime bool `flag:"virtual-time" toml:"virtual-time"`

	// TrapCost is the virtual time charged per trap.
	TrapCost time.Duration `flag:"trap-cost" toml:"trap-cost"`

	// DeadlockDetect enables deadlock detection in every new process.
	DeadlockDetect bool `flag:"deadlock-detect" toml:"deadlock-detect"`

	// Init is the name of the initial program.
	Init string `flag:"init" toml:"init"`

	// Debug enables debug logging.
	Debug bool `flag:"debug" toml:"debug"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format" toml:"log-format"`

	// DebugLog is the path of an additional log file. %TIMESTAMP% and
	// %COMMAND% are replaced.
	DebugLog string `flag:"debug-log" toml:"debug-log"`
}

// RegisterFlags registers flags used to populate Config.
func RegisterFlags(flagSet *flag.FlagSet) {
	flagSet.String("config", "", "TOML file holding settings. Flags given on the command line override it.")

	// Machine flags.
	flagSet.Int("frames", 8192, "number of physical page frames.")
	flagSet.Uint64("big-stride", 255, "pass distance of the stride scheduler.")
	flagSet.Int64("default-priority", 16, "priority of new threads; at least 2.")
	flagSet.Duration("time-slice", 10*time.Millisecond, "time a thread runs before it is preempted at its next syscall.")
	flagSet.Bool("virtual-time", false, "run on a virtual clock that advances per syscall and skips idle periods.")
	flagSet.Duration("trap-cost", 10*time.Microsecond, "virtual time charged per syscall when --virtual-time is set.")
	flagSet.Bool("deadlock-detect", false, "enable deadlock detection in every new process.")
	flagSet.String("init", "initproc", "name of the initial program.")

	// Debugging flags.
	flagSet.Bool("debug", false, "enable debug logging.")
	flagSet.String("log-format", "text", "log format: text (default) or json.")
	flagSet.String("debug-log", "", "additional location for logs. The following variables are available: %TIMESTAMP%, %COMMAND%.")
}

// NewFromFlags creates a new Config with values coming from command line
// flags and, if --config is set, the named file.
func NewFromFlags(flagSet *flag.FlagSet) (*Config, error) {
	conf := &Config{}
	if err := conf.setFlags(flagSet.VisitAll); err != nil {
		return nil, err
	}
	if conf.ConfigFile != "" {
		if err := conf.loadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
		// Explicit flags win over the file.
		if err := conf.setFlags(flagSet.Visit); err != nil {
			return nil, err
		}
	}
	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// setFlags copies the value of every flag visited by visit into the field
// tagged with its name.
func (c *Config) setFlags(visit func(func(*flag.Flag))) error {
	fields := make(map[string]reflect.Value)
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		if name, ok := st.Field(i).Tag.Lookup("flag"); ok {
			fields[name] = obj.Field(i)
		}
	}
	var err error
	visit(func(fl *flag.Flag) {
		field, ok := fields[fl.Name]
		if !ok || err != nil {
			return
		}
		getter, ok := fl.Value.(flag.Getter)
		if !ok {
			err = fmt.Errorf("flag %q has no getter", fl.Name)
			return
		}
		field.Set(reflect.ValueOf(getter.Get()))
	})
	return err
}

// loadFile reads settings from a TOML file. Unknown keys are rejected.
func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config file %q: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %q: unknown keys %v", path, undecoded)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Frames <= 0 {
		return fmt.Errorf("frames must be positive, got %d", c.Frames)
	}
	if c.BigStride == 0 {
		return fmt.Errorf("big-stride must be positive")
	}
	if c.DefaultPriority < 2 {
		return fmt.Errorf("default-priority must be at least 2, got %d", c.DefaultPriority)
	}
	if c.TimeSlice <= 0 {
		return fmt.Errorf("time-slice must be positive, got %v", c.TimeSlice)
	}
	if c.TrapCost < 0 {
		return fmt.Errorf("trap-cost must not be negative, got %v", c.TrapCost)
	}
	if c.Init == "" {
		return fmt.Errorf("init must be set")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be 'text' or 'json'", c.LogFormat)
	}
	return nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	return deepcopy.Copy(c).(*Config)
}

// ToFlags returns a slice of flags that correspond to the given Config.
// Flags at their default value are omitted.
func (c *Config) ToFlags() []string {
	flagSet := flag.NewFlagSet("tmp", flag.ContinueOnError)
	RegisterFlags(flagSet)

	var rv []string
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		fl := flagSet.Lookup(name)
		if fl == nil {
			panic(fmt.Sprintf("Flag %q not found", name))
		}
		val := getVal(obj.Field(i))
		if val == fl.DefValue {
			continue
		}
		rv = append(rv, fmt.Sprintf("--%s=%s", name, val))
	}
	return rv
}

// Log logs every setting that differs from its default.
func (c *Config) Log() {
	log.Infof("Config:")
	for _, f := range c.ToFlags() {
		log.Infof("\t%s", f)
	}
}

func getVal(field reflect.Value) string {
	if str, ok := field.Interface().(fmt.Stringer); ok {
		return str.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(field.Uint(), 10)
	case reflect.String:
		return field.String()
	default:
		panic("unknown type " + field.Kind().String())
	}
}
