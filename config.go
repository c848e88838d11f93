package main

import (
	"context"
	"errors"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

type ConfigFlags struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
}

type ConfigCommand struct {
	Config  ConfigFlags          `group:"Configuration Options"`
	Init    ConfigInitCommand    `command:"init"`
	Path    ConfigPathCommand    `command:"path"`
	Default ConfigDefaultCommand `command:"default"`
}

type ConfigInitCommand struct {
	Config ConfigFlags `group:"Configuration Options" hidden:"true"`
	Force  bool        `short:"f" long:"force" description:"overwrite an existing configuration file"`
}

type ConfigPathCommand struct {
	Config ConfigFlags `group:"Configuration Options" hidden:"true"`
}

type ConfigDefaultCommand struct {
	Config ConfigFlags `group:"Configuration Options" hidden:"true"`
	Args   struct {
		Profile string `positional-arg-name:"profile" description:"profile used when none is selected"`
	} `positional-args:"true" required:"1"`
}

var configCommand ConfigCommand

func (x *ConfigCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	return nil
}

func (x *ConfigInitCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	fs := afs.New()
	URL := core.ConfigPath()
	if exists, _ := fs.Exists(ctx, URL); exists && !x.Force {
		return errors.New("config: " + URL + " exists, use --force to overwrite")
	}
	if err := core.WriteConfig(ctx, fs, URL, core.DefaultConfig()); err != nil {
		return errors.New("config: cannot write " + URL + ": " + err.Error())
	}
	logger.InfoPrintf("config: wrote %s", URL)
	printLine(URL)
	return nil
}

func (x *ConfigPathCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	printLine(core.ConfigPath())
	return nil
}

func (x *ConfigDefaultCommand) Execute(args []string) error {
	if x.Config.Help {
		return core.CreateHelpErr()
	}
	ctx := context.Background()
	fs := afs.New()
	config, err := loadConfig(ctx, fs)
	if err != nil {
		return err
	}
	if _, err := config.Profile(x.Args.Profile); err != nil {
		return err
	}
	config.Default = x.Args.Profile
	return core.WriteConfig(ctx, fs, core.ConfigPath(), config)
}

func init() {
	parser.AddCommand("config",
		"Launcher configuration",
		"The config command manages the YAML file holding the launcher profiles",
		&configCommand)
}
