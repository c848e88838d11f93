package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	launcher "superres.io/hpc-launcher/launcher"
)

type RunCommand struct {
	ProfileFlags
	Shell  bool   `long:"shell" description:"prepare the environment in a persistent shell session instead of a login shell"`
	DryRun bool   `short:"n" long:"dry-run" description:"print the command line without running it"`
	Dir    string `short:"C" long:"directory" description:"working directory of the child process"`
}

var runCommand RunCommand

// Runner used by the run command, replaced in tests
var newRunner = func(x *RunCommand, profile core.Profile) launcher.Runner {
	runner := launcher.NewExecRunner()
	runner.Dir = x.Dir
	runner.Stdout = stdout
	if x.Shell {
		shell := launcher.NewShellRunner()
		shell.Exec = runner
		return shell
	}
	return runner
}

func (x *RunCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	profile, err := x.load(ctx, afs.New())
	if err != nil {
		return err
	}
	if x.DryRun {
		for _, line := range profile.Environment.Commands() {
			printLine(line)
		}
		printLine(profile.Invocation.CommandLine())
		return nil
	}

	// SIGINT or SIGTERM to the launcher is passed on to the child as
	// SIGTERM; the child's resulting status is reported.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := launcher.New(newRunner(x, profile)).Launch(ctx, profile)
	exitStatus = status
	return err
}

func init() {
	parser.AddCommand("run",
		"Run a profile",
		"Prepare the environment, run the profile's training process and exit with its status",
		&runCommand)
}
