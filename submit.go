package main

import (
	"context"
	"strconv"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
	tracing "superres.io/hpc-launcher/tracing"
)

type SubmitCommand struct {
	ProfileFlags
	SchedulerFlags
	Binary string `short:"b" long:"binary" description:"path to bsub or sbatch"`
	Save   string `long:"save" description:"also write the submitted script to this file or storage URL"`
}

var submitCommand SubmitCommand

func (x *SubmitCommand) Execute(args []string) (err error) {
	if x.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	fs := afs.New()
	profile, err := x.load(ctx, fs)
	if err != nil {
		return err
	}
	scheduler, err := newScheduler(x.Scheduler, x.Binary)
	if err != nil {
		return err
	}
	script := renderScript(scheduler, profile)
	if len(x.Save) > 0 {
		if err := uploadScript(ctx, fs, x.Save, script); err != nil {
			return err
		}
	}

	ctx, span := tracing.StartSpan(ctx, "submit "+profile.Name, "CLIENT")
	span.WithAttributes(map[string]string{
		"profile":   profile.Name,
		"scheduler": scheduler.Name(),
		"queue":     profile.Resources.Queue,
	})
	defer func() { tracing.EndSpan(span, err) }()

	submission, err := scheduler.Submit(ctx, script)
	if err != nil {
		return err
	}
	span.WithAttributes(map[string]string{"job.id": strconv.Itoa(submission.ID)})
	logger.InfoObj("submission", submission)
	if len(submission.Queue) > 0 {
		printLine("Job", submission.ID, "submitted to queue", submission.Queue)
	} else {
		printLine("Job", submission.ID, "submitted")
	}
	return nil
}

func init() {
	parser.AddCommand("submit",
		"Submit a profile",
		"Render the job script for a profile and submit it to the batch scheduler",
		&submitCommand)
}
