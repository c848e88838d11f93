package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/afs"

	core "superres.io/hpc-launcher/core"
	lsf "superres.io/hpc-launcher/lsf"
	sge "superres.io/hpc-launcher/sge"
	slurm "superres.io/hpc-launcher/slurm"
)

// Options shared by the commands that act on one profile
type ProfileFlags struct {
	Help    bool   `short:"h" long:"help" description:"Show this help message"`
	Profile string `short:"p" long:"profile" description:"profile name (config default when empty)"`
	Devices string `short:"d" long:"devices" description:"comma separated device list overriding the profile"`
}

func loadConfig(ctx context.Context, fs afs.Service) (core.Config, error) {
	return core.ReadConfig(ctx, fs, core.ConfigPath())
}

// Resolve the selected profile and apply command line overrides
func (x ProfileFlags) load(ctx context.Context, fs afs.Service) (core.Profile, error) {
	config, err := loadConfig(ctx, fs)
	if err != nil {
		return core.Profile{}, err
	}
	profile, err := config.Profile(x.Profile)
	if err != nil {
		return core.Profile{}, err
	}
	if len(x.Devices) > 0 {
		devices, err := parseDevices(x.Devices)
		if err != nil {
			return core.Profile{}, err
		}
		profile.Invocation.Devices = devices
	}
	return profile, nil
}

func parseDevices(list string) ([]int, error) {
	var devices []int
	for _, field := range strings.Split(list, ",") {
		device, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || device < 0 {
			return nil, errors.New("invalid device list: " + list)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func newScheduler(name, binary string) (core.Scheduler, error) {
	switch name {
	case "", "lsf":
		return lsf.New(binary), nil
	case "slurm":
		return slurm.New(binary), nil
	case "sge":
		return sge.New(binary), nil
	}
	return nil, errors.New("unknown scheduler: " + name)
}

func renderScript(scheduler core.Scheduler, profile core.Profile) []byte {
	return []byte(strings.Join(scheduler.Script(profile), "\n") + "\n")
}

func printLine(a ...interface{}) {
	fmt.Fprintln(stdout, a...)
}
