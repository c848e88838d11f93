package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

type InspectCommand struct {
	Help    bool   `short:"h" long:"help" description:"Show this help message"`
	Profile string `short:"p" long:"profile" description:"compare the directives with this profile"`
	Check   bool   `long:"check" description:"fail when the directives differ from the profile"`
	Args    struct {
		Script string `positional-arg-name:"script" description:"job script file or storage URL"`
	} `positional-args:"true" required:"1"`
}

var inspectCommand InspectCommand

// Report written by inspect
type inspection struct {
	Scheduler   string         `yaml:"scheduler"`
	Shell       string         `yaml:"shell"`
	Resources   core.Resources `yaml:"resources"`
	MemoryMB    int            `yaml:"memory_mb,omitempty"`
	Unsupported []string       `yaml:"unsupported,omitempty"`
	Profile     string         `yaml:"profile,omitempty"`
	Differences []string       `yaml:"differences,omitempty"`
}

func (x *InspectCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	fs := afs.New()
	data, err := fs.DownloadWithURL(ctx, x.Args.Script)
	if err != nil {
		return fmt.Errorf("inspect: cannot read %s: %w", x.Args.Script, err)
	}

	var scheduler core.Scheduler
	switch core.DetectDirective(bytes.NewReader(data)) {
	case core.LsfDirective:
		scheduler, _ = newScheduler("lsf", "")
	case core.SlurmDirective:
		scheduler, _ = newScheduler("slurm", "")
	case core.SgeDirective:
		scheduler, _ = newScheduler("sge", "")
	default:
		return errors.New("inspect: no #BSUB, #SBATCH or #$ directives in " + x.Args.Script)
	}
	jobScript, err := core.ParseJobScript(scheduler.Directive(), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	logger.DebugPrintf("inspect: %s directives: %s", scheduler.Name(), strings.Join(jobScript.Args(), " "))
	res, unsupported, err := scheduler.ParseDirectives(jobScript.Directives)
	if err != nil {
		return err
	}
	report := inspection{
		Scheduler:   scheduler.Name(),
		Shell:       jobScript.Shell,
		Resources:   res,
		Unsupported: unsupported,
	}
	if len(res.Memory) > 0 {
		if report.MemoryMB, err = core.DecodeMemory(res.Memory); err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
	}

	if len(x.Profile) > 0 || x.Check {
		config, err := loadConfig(ctx, fs)
		if err != nil {
			return err
		}
		profile, err := config.Profile(x.Profile)
		if err != nil {
			return err
		}
		want := profile.Resources
		if scheduler.Directive() != core.LsfDirective {
			// only LSF sets the GPU mode
			want.GpuMode = ""
		}
		report.Profile = profile.Name
		report.Differences = want.Diff(res)
	}

	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	enc.Close()
	if _, err := stdout.Write(b.Bytes()); err != nil {
		return err
	}
	if x.Check && len(report.Differences) > 0 {
		return errors.New("inspect: " + x.Args.Script + " differs from profile " + report.Profile + ": " +
			strings.Join(report.Differences, ", "))
	}
	return nil
}

func init() {
	parser.AddCommand("inspect",
		"Inspect a job script",
		"Parse the #BSUB, #SBATCH or #$ directives of a job script and compare them with a profile",
		&inspectCommand)
}
