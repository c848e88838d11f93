package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
)

const (
	SuperresHpcConfigPath      = "/.config/superres-hpc/"
	SuperresHpcConfigFilename  = "config.yaml"
	SuperresHpcConfigFilePerms = 0600
)

const SuperresHpcConfigEnv = "SUPERRES_HPC_CONFIG"

// Environment variable restricting the accelerators visible to the child
const DeviceVisibilityEnv = "CUDA_VISIBLE_DEVICES"

// Built-in profile names
const (
	TrainProfile          = "train"
	PreprocessProfile     = "preprocess"
	PreprocessTestProfile = "preprocess_test"
)

var ErrProfileNotFound = errors.New("profile not found")

// Flag is a single --name value pair handed to the external script.
// Switch flags carry no value and render as a bare --name.
type Flag struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value,omitempty"`
	Switch bool   `yaml:"switch,omitempty"`
}

func (f Flag) Args() []string {
	if f.Switch {
		return []string{"--" + f.Name}
	}
	return []string{"--" + f.Name, f.Value}
}

// FlagGroup is an ordered, named collection of flags
type FlagGroup struct {
	Name  string `yaml:"name"`
	Flags []Flag `yaml:"flags"`
}

func (g FlagGroup) Args() []string {
	var args []string
	for _, f := range g.Flags {
		args = append(args, f.Args()...)
	}
	return args
}

// String joins the group literally: --n1 v1 --n2 v2
func (g FlagGroup) String() string {
	return strings.Join(g.Args(), " ")
}

// Lookup returns the value of the named flag
func (g FlagGroup) Lookup(name string) (string, bool) {
	for _, f := range g.Flags {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Variable is the shell variable holding this group in a job script
func (g FlagGroup) Variable() string {
	return strings.ToUpper(g.Name) + "_FLAGS"
}

// Invocation describes the one external process a job runs
type Invocation struct {
	Interpreter string            `yaml:"interpreter"`
	Script      string            `yaml:"script"`
	Groups      []FlagGroup       `yaml:"groups"`
	Devices     []int             `yaml:"devices,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// Args concatenates the flag groups in declared order
func (i Invocation) Args() []string {
	var args []string
	for _, g := range i.Groups {
		args = append(args, g.Args()...)
	}
	return args
}

// Argv is the full command line: interpreter, script, flags
func (i Invocation) Argv() []string {
	argv := []string{}
	if len(i.Interpreter) > 0 {
		argv = append(argv, i.Interpreter)
	}
	argv = append(argv, i.Script)
	return append(argv, i.Args()...)
}

func (i Invocation) FlagString() string {
	var groups []string
	for _, g := range i.Groups {
		if s := g.String(); len(s) > 0 {
			groups = append(groups, s)
		}
	}
	return strings.Join(groups, " ")
}

func (i Invocation) Group(name string) (FlagGroup, bool) {
	for _, g := range i.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return FlagGroup{}, false
}

// DeviceList renders the device indices, e.g. 0,1,2,3
func (i Invocation) DeviceList() string {
	devices := make([]string, len(i.Devices))
	for index, d := range i.Devices {
		devices[index] = strconv.Itoa(d)
	}
	return strings.Join(devices, ",")
}

// Environ returns the variables set on the child, device visibility first.
// No device entry is produced when the invocation lists no devices.
func (i Invocation) Environ() []string {
	var env []string
	if len(i.Devices) > 0 {
		env = append(env, DeviceVisibilityEnv+"="+i.DeviceList())
	}
	for _, k := range sortedKeys(i.Env) {
		env = append(env, k+"="+i.Env[k])
	}
	return env
}

// Resources is the reservation declared to the batch scheduler
type Resources struct {
	JobName    string `yaml:"job_name"`
	OutputFile string `yaml:"output_file,omitempty"`
	ErrorFile  string `yaml:"error_file,omitempty"`
	Cores      int    `yaml:"cores,omitempty"`
	// SpanHosts > 0 confines the job to that many hosts
	SpanHosts int    `yaml:"span_hosts,omitempty"`
	Memory    string `yaml:"memory,omitempty"`
	GpuSelect string `yaml:"gpu_select,omitempty"`
	Gpus      int    `yaml:"gpus,omitempty"`
	GpuMode   string `yaml:"gpu_mode,omitempty"`
	// [hours:]minutes
	Walltime string `yaml:"walltime,omitempty"`
	Queue    string `yaml:"queue,omitempty"`
}

// Diff lists the fields of r that differ in other, as "field: r -> other".
// Memory requests compare by size.
func (r Resources) Diff(other Resources) []string {
	var diff []string
	add := func(field string, a, b interface{}) {
		if a != b {
			diff = append(diff, fmt.Sprintf("%s: %q -> %q", field, fmt.Sprint(a), fmt.Sprint(b)))
		}
	}
	add("job_name", r.JobName, other.JobName)
	add("output_file", r.OutputFile, other.OutputFile)
	add("error_file", r.ErrorFile, other.ErrorFile)
	add("cores", r.Cores, other.Cores)
	add("span_hosts", r.SpanHosts, other.SpanHosts)
	if !sameMemory(r.Memory, other.Memory) {
		add("memory", r.Memory, other.Memory)
	}
	add("gpu_select", r.GpuSelect, other.GpuSelect)
	add("gpus", r.Gpus, other.Gpus)
	add("gpu_mode", r.GpuMode, other.GpuMode)
	if !sameWalltime(r.Walltime, other.Walltime) {
		add("walltime", r.Walltime, other.Walltime)
	}
	add("queue", r.Queue, other.Queue)
	return diff
}

func sameMemory(a, b string) bool {
	if a == b {
		return true
	}
	memA, errA := DecodeMemory(a)
	memB, errB := DecodeMemory(b)
	return errA == nil && errB == nil && memA == memB
}

func sameWalltime(a, b string) bool {
	if a == b {
		return true
	}
	limitA, errA := WalltimeDuration(a)
	limitB, errB := WalltimeDuration(b)
	return errA == nil && errB == nil && limitA == limitB
}

// Environment is prepared before the invocation runs
type Environment struct {
	Modules []string `yaml:"modules,omitempty"`
	Venv    string   `yaml:"venv,omitempty"`
}

func (e Environment) Empty() bool {
	return len(e.Modules) == 0 && len(e.Venv) == 0
}

// Commands returns the shell commands preparing the environment
func (e Environment) Commands() []string {
	var commands []string
	for _, module := range e.Modules {
		commands = append(commands, "module load "+ShellQuote(module))
	}
	if len(e.Venv) > 0 {
		commands = append(commands, "source "+ShellQuote(strings.TrimSuffix(e.Venv, "/")+"/bin/activate"))
	}
	return commands
}

type Profile struct {
	Name        string      `yaml:"-"`
	Resources   Resources   `yaml:"resources"`
	Environment Environment `yaml:"environment"`
	Invocation  Invocation  `yaml:"invocation"`
}

// Layout for config file
/*
default: train
profiles:
  train:
    resources:
      job_name: superres_train
      ...
    environment:
      modules: [cuda/11.8]
      venv: venv/crowddiff
    invocation:
      interpreter: python
      script: scripts/super_res_train.py
      devices: [0, 1, 2, 3]
      groups:
        - name: data
          flags:
            - {name: data_dir, value: datasets/intermediate/shtech_A/part_1/train}
*/
type Config struct {
	Default  string             `yaml:"default"`
	Profiles map[string]Profile `yaml:"profiles"`
}

// Profile looks up a profile by name; empty name selects the default
func (c Config) Profile(name string) (Profile, error) {
	if len(name) == 0 {
		name = c.Default
	}
	profile, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%s: %w", name, ErrProfileNotFound)
	}
	profile.Name = name
	return profile, nil
}

func (c Config) ProfileNames() []string {
	return sortedKeys(c.Profiles)
}

func CreateHelpErr() error {
	err := flags.Error{
		Type:    flags.ErrHelp,
		Message: "show help message",
	}
	return &err
}

// Submission is the scheduler's answer to a job submission
type Submission struct {
	ID    int
	Queue string
}

// Scheduler renders, parses and submits job scripts for one batch system
type Scheduler interface {
	Name() string
	Directive() string
	Script(profile Profile) []string
	ParseDirectives(directives [][]string) (Resources, []string, error)
	Submit(ctx context.Context, script []byte) (Submission, error)
}
