package sge

import (
	"errors"
	"flag"
	"io"
	"strconv"
	"strings"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

// List of supported qsub options
// map[string]struct{} enables querying supported options using:
// _, ok := qSubSupportedArgs()["<option>"]
func qSubSupportedArgs() map[string]struct{} {
	return map[string]struct{}{
		"N":    struct{}{},
		"o":    struct{}{},
		"e":    struct{}{},
		"pe":   struct{}{},
		"l":    struct{}{},
		"q":    struct{}{},
		"S":    struct{}{},
		"cwd":  struct{}{},
		"hard": struct{}{},
	}
}

// Recognised by the parser, not carried into Resources
func qSubIgnoredArgs() map[string]struct{} {
	return map[string]struct{}{
		"soft": struct{}{},
		"V":    struct{}{},
		"m":    struct{}{},
		"M":    struct{}{},
		"j":    struct{}{},
		"P":    struct{}{},
	}
}

type sgeOptions = map[string]interface{}

type arrayFlags []string

func (i *arrayFlags) String() string {
	if i == nil {
		return ""
	}
	return strings.Join(*i, " ")
}

func (i *arrayFlags) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func (i *arrayFlags) Get() interface{} {
	return []string(*i)
}

func newQSubFlags() (sgeOptions, *flag.FlagSet) {
	flags := flag.NewFlagSet(QSubName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	options := make(sgeOptions)
	options["N"] = flags.String("N", "", "Job name")
	options["o"] = flags.String("o", "", "Standard output path")
	options["e"] = flags.String("e", "", "Standard error path")
	options["pe"] = flags.String("pe", "", "Parallel environment")
	var resources arrayFlags
	flags.Var(&resources, "l", "hard resource")
	options["l"] = &resources
	options["q"] = flags.String("q", "", "Submit queue")
	options["S"] = flags.String("S", "/bin/sh", "Shell")
	options["cwd"] = flags.Bool("cwd", false, "Current working directory")
	options["hard"] = flags.Bool("hard", false, "Hard resources follow")
	options["soft"] = flags.Bool("soft", false, "Soft resources follow")
	options["V"] = flags.Bool("V", false, "Export environment")
	options["m"] = flags.String("m", "", "Mail events")
	options["M"] = flags.String("M", "", "Mail user")
	options["j"] = flags.String("j", "", "Merge output")
	options["P"] = flags.String("P", "", "Project")
	return options, flags
}

// Rewrite -pe NAME INT as -pe NAME=INT and drop lines with unknown
// options. Resources following -soft are dropped: only hard requests
// describe the reservation.
func normalizeArgs(directives [][]string, options sgeOptions) (args []string, unknown []string, err error) {
	soft := false
	for _, line := range directives {
		if len(line) == 0 {
			continue
		}
		name := strings.TrimPrefix(line[0], "-")
		if _, ok := options[name]; !ok || !strings.HasPrefix(line[0], "-") {
			unknown = append(unknown, line[0])
			continue
		}
		switch name {
		case "soft":
			soft = true
			if len(line) > 1 {
				unknown = append(unknown, "-soft "+strings.Join(line[1:], " "))
				line = line[:1]
			}
		case "hard":
			soft = false
		case "l":
			if soft {
				unknown = append(unknown, "-soft -l")
				continue
			}
		case "pe":
			if len(line) != 3 {
				return nil, nil, errors.New("qsub: invalid syntax: -pe NAME INT")
			}
			if _, err = validatePeScale(line[2]); err != nil {
				return nil, nil, err
			}
			line = []string{line[0], line[1] + "=" + line[2]}
		}
		args = append(args, line...)
	}
	return
}

// ParseDirectives maps #$ lines onto Resources. Options outside the
// supported set are returned so the caller can warn about them.
func ParseDirectives(directives [][]string) (core.Resources, []string, error) {
	options, flags := newQSubFlags()
	args, unsupported, err := normalizeArgs(directives, options)
	if err != nil {
		return core.Resources{}, nil, err
	}
	if err := flags.Parse(args); err != nil {
		return core.Resources{}, nil, errors.New("qsub: cannot process directives: " + err.Error())
	}
	if flags.NArg() > 0 {
		return core.Resources{}, nil, errors.New("qsub: unexpected directive arguments: " + strings.Join(flags.Args(), " "))
	}
	// Go through set flags
	jobSpec := make(sgeOptions)
	flags.Visit(func(f *flag.Flag) {
		if _, ok := qSubIgnoredArgs()[f.Name]; ok {
			unsupported = append(unsupported, "-"+f.Name)
			return
		}
		jobSpec[f.Name] = f.Value.(flag.Getter).Get()
	})

	var res core.Resources
	if val, ok := jobSpec["N"]; ok {
		res.JobName = val.(string)
	}
	if val, ok := jobSpec["o"]; ok {
		res.OutputFile = fromSgePattern(val.(string))
	}
	if val, ok := jobSpec["e"]; ok {
		res.ErrorFile = fromSgePattern(val.(string))
	}
	if val, ok := jobSpec["pe"]; ok {
		pe := strings.SplitN(val.(string), "=", 2)
		cores, err := validatePeScale(pe[len(pe)-1])
		if err != nil {
			return core.Resources{}, nil, err
		}
		res.Cores = cores
		if pe[0] == peSmp {
			res.SpanHosts = 1
		}
	}
	if val, ok := jobSpec["l"]; ok {
		pairs, err := parseSgeResources(val.([]string))
		if err != nil {
			return core.Resources{}, nil, err
		}
		for _, pair := range pairs {
			key, value := pair[0], pair[1]
			switch {
			case key == memoryName || key == "mem_free":
				if _, err := core.DecodeMemory(value); err != nil {
					return core.Resources{}, nil, errors.New("qsub: " + err.Error())
				}
				res.Memory = fromSgeMemory(value)
			case key == gpusName || key == "gpus":
				gpus, err := strconv.Atoi(value)
				if err != nil || gpus < 0 {
					return core.Resources{}, nil, errors.New("qsub: invalid gpu request: " + value)
				}
				res.Gpus = gpus
			case key == walltimeName:
				walltime, err := fromSgeTime(value)
				if err != nil {
					return core.Resources{}, nil, err
				}
				res.Walltime = walltime
			case isTrue(value) && len(res.GpuSelect) == 0:
				res.GpuSelect = key
			default:
				unsupported = append(unsupported, "-l "+key)
			}
		}
	}
	if val, ok := jobSpec["q"]; ok {
		res.Queue = val.(string)
	}
	if len(unsupported) > 0 {
		logger.WarningPrintf("qsub: %d unsupported options: %s", len(unsupported), strings.Join(unsupported, " "))
	}
	return res, unsupported, nil
}
