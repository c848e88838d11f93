package main

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

type SchedulerFlags struct {
	Scheduler string `short:"s" long:"scheduler" description:"batch scheduler" choice:"lsf" choice:"slurm" choice:"sge" default:"lsf"`
}

type ScriptCommand struct {
	ProfileFlags
	SchedulerFlags
	Output string `short:"o" long:"output" description:"write the job script to this file or storage URL"`
}

var scriptCommand ScriptCommand

// Upload stores a job script at URL, executable by its owner
func uploadScript(ctx context.Context, fs afs.Service, URL string, script []byte) error {
	if err := fs.Upload(ctx, URL, 0755, bytes.NewReader(script)); err != nil {
		return fmt.Errorf("script: cannot write %s: %w", URL, err)
	}
	logger.InfoPrintf("script: wrote %s (%d bytes)", URL, len(script))
	return nil
}

func (x *ScriptCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	fs := afs.New()
	profile, err := x.load(ctx, fs)
	if err != nil {
		return err
	}
	scheduler, err := newScheduler(x.Scheduler, "")
	if err != nil {
		return err
	}
	script := renderScript(scheduler, profile)
	if len(x.Output) > 0 {
		return uploadScript(ctx, fs, x.Output, script)
	}
	_, err = stdout.Write(script)
	return err
}

func init() {
	parser.AddCommand("script",
		"Render the job script",
		"Render the batch job script (scheduler directives, environment preparation and invocation) for a profile",
		&scriptCommand)
}
