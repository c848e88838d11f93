package main

import (
	"context"
	"errors"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
)

type FlagsCommand struct {
	ProfileFlags
	Group   string `short:"g" long:"group" description:"print a single flag group"`
	Env     bool   `short:"e" long:"env" description:"print the child environment instead of the flags"`
	Command bool   `short:"c" long:"command" description:"print the full command line"`
	Get     string `long:"get" description:"print the value of one flag, searched in group order"`
}

var flagsCommand FlagsCommand

func (x *FlagsCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	profile, err := x.load(context.Background(), afs.New())
	if err != nil {
		return err
	}
	inv := profile.Invocation
	switch {
	case x.Env:
		for _, kv := range inv.Environ() {
			printLine(kv)
		}
	case x.Command:
		printLine(inv.CommandLine())
	case len(x.Get) > 0:
		for _, group := range inv.Groups {
			if len(x.Group) > 0 && group.Name != x.Group {
				continue
			}
			if value, ok := group.Lookup(x.Get); ok {
				printLine(value)
				return nil
			}
		}
		return errors.New("flags: no flag " + x.Get + " in profile " + profile.Name)
	case len(x.Group) > 0:
		group, ok := inv.Group(x.Group)
		if !ok {
			return errors.New("flags: no group " + x.Group + " in profile " + profile.Name)
		}
		printLine(group.String())
	default:
		printLine(inv.FlagString())
	}
	return nil
}

func init() {
	parser.AddCommand("flags",
		"Print the flag string",
		"Print the flags passed to the training script: data, log, train and model groups in order",
		&flagsCommand)
}
