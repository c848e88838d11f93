package main

import (
	"bytes"
	"context"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	core "superres.io/hpc-launcher/core"
)

type ProfilesCommand struct {
	Help    bool `short:"h" long:"help" description:"Show this help message"`
	Verbose bool `short:"v" long:"verbose" description:"print the profile definitions"`
	Args    struct {
		Names []string `positional-arg-name:"profile" description:"profiles to show"`
	} `positional-args:"true"`
}

var profilesCommand ProfilesCommand

func (x *ProfilesCommand) Execute(args []string) error {
	if x.Help {
		return core.CreateHelpErr()
	}
	config, err := loadConfig(context.Background(), afs.New())
	if err != nil {
		return err
	}
	names := x.Args.Names
	if len(names) == 0 {
		names = config.ProfileNames()
	}
	for _, name := range names {
		profile, err := config.Profile(name)
		if err != nil {
			return err
		}
		if !x.Verbose {
			if name == config.Default {
				printLine(name, "(default)")
			} else {
				printLine(name)
			}
			continue
		}
		var b bytes.Buffer
		enc := yaml.NewEncoder(&b)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]core.Profile{name: profile}); err != nil {
			return err
		}
		enc.Close()
		if _, err := stdout.Write(b.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	parser.AddCommand("profiles",
		"List profiles",
		"List the profiles defined by the built-in defaults and the configuration file",
		&profilesCommand)
}
