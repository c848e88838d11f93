package lsf

import (
	"errors"
	"io"
	"strings"

	flag "github.com/juju/gnuflag"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

// Option descriptions
const (
	bSubJobNameDesc   = `Assigns the specified name to the job.`
	bSubOutputDesc    = `Appends the standard output of the job to the specified file path. %J is replaced by the job ID.`
	bSubErrorDesc     = `Appends the standard error output of the job to the specified file path.`
	bSubCoresDesc     = `Submits a parallel job and specifies the number of tasks in the job.`
	bSubResourceDesc  = `Runs the job on a host that meets the specified resource requirements: select[], rusage[], span[], order[], same[], cu[], affinity[].`
	bSubGpuDesc       = `Specifies properties of GPU resources required by the job: num=number[:mode=shared|exclusive_process][:mps=yes|no][:j_exclusive=yes|no].`
	bSubWalltimeDesc  = `Sets the runtime limit of the job, [hour:]minute.`
	bSubQueueDesc     = `Submits the job to one of the specified queues.`
	bSubProjectDesc   = `Assigns the job to the specified project.`
	bSubMailDesc      = `Sends mail to the specified email destination.`
	bSubBeginDesc     = `Sends mail when the job is dispatched and begins execution.`
	bSubEndDesc       = `Sends the job report by mail when the job finishes.`
	bSubExclusiveDesc = `Puts the host running the job into exclusive execution mode.`
	bSubMemLimitDesc  = `Sets a per-process memory limit.`
)

// List of supported LSF options
// map[string]struct{} enables querying supported options using:
// _, ok := bSubSupportedArgs()["<option>"]
func bSubSupportedArgs() map[string]struct{} {
	return map[string]struct{}{
		"job-name": struct{}{},
		"output":   struct{}{},
		"error":    struct{}{},
		"cores":    struct{}{},
		"resource": struct{}{},
		"gpu":      struct{}{},
		"walltime": struct{}{},
		"queue":    struct{}{},
	}
}

// LSF options are single-dash with no long form; the map key names the
// option, Short is the option as written after #BSUB
type lsfFlag struct {
	Short string
	Value interface{}
}

type lsfFlags map[string]lsfFlag

func lookupLsfArg(name string, spec lsfFlags) (string, error) {
	for k, v := range spec {
		if name == v.Short {
			return k, nil
		}
	}
	return "", errors.New("bsub: unable to parse arguments")
}

// -R may be given several times
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

func newBSubFlags() (lsfFlags, *flag.FlagSet) {
	flags := flag.NewFlagSet(BSubName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	options := make(lsfFlags)
	options["job-name"] = lsfFlag{Short: "J", Value: flags.String("J", "", bSubJobNameDesc)}
	options["output"] = lsfFlag{Short: "o", Value: flags.String("o", "", bSubOutputDesc)}
	options["error"] = lsfFlag{Short: "e", Value: flags.String("e", "", bSubErrorDesc)}
	options["cores"] = lsfFlag{Short: "n", Value: flags.Int("n", 0, bSubCoresDesc)}
	resources := &arrayFlags{}
	flags.Var(resources, "R", bSubResourceDesc)
	options["resource"] = lsfFlag{Short: "R", Value: resources}
	options["gpu"] = lsfFlag{Short: "gpu", Value: flags.String("gpu", "", bSubGpuDesc)}
	options["walltime"] = lsfFlag{Short: "W", Value: flags.String("W", "", bSubWalltimeDesc)}
	options["queue"] = lsfFlag{Short: "q", Value: flags.String("q", "", bSubQueueDesc)}
	// recognised, not carried into Resources
	options["project"] = lsfFlag{Short: "P", Value: flags.String("P", "", bSubProjectDesc)}
	options["mail-user"] = lsfFlag{Short: "u", Value: flags.String("u", "", bSubMailDesc)}
	options["mail-begin"] = lsfFlag{Short: "B", Value: flags.Bool("B", false, bSubBeginDesc)}
	options["mail-end"] = lsfFlag{Short: "N", Value: flags.Bool("N", false, bSubEndDesc)}
	options["exclusive"] = lsfFlag{Short: "x", Value: flags.Bool("x", false, bSubExclusiveDesc)}
	options["mem-limit"] = lsfFlag{Short: "M", Value: flags.String("M", "", bSubMemLimitDesc)}
	return options, flags
}

// normalizeArgs rewrites each directive line for gnuflag: single letter
// options stay -X value, multi letter options such as -gpu become --gpu=value.
// Options missing from the table are reported and dropped.
func normalizeArgs(directives [][]string, spec lsfFlags) (args []string, unknown []string) {
	for _, line := range directives {
		if len(line) == 0 {
			continue
		}
		name := strings.TrimLeft(line[0], "-")
		if _, err := lookupLsfArg(name, spec); err != nil || !strings.HasPrefix(line[0], "-") {
			unknown = append(unknown, line[0])
			continue
		}
		if len(name) == 1 {
			args = append(args, line...)
			continue
		}
		if len(line) > 1 {
			args = append(args, "--"+name+"="+strings.Join(line[1:], " "))
		} else {
			args = append(args, "--"+name)
		}
	}
	return
}

// ParseDirectives maps #BSUB lines onto Resources. Options outside the
// supported set are returned so the caller can warn about them.
func ParseDirectives(directives [][]string) (core.Resources, []string, error) {
	options, flags := newBSubFlags()
	args, unsupported := normalizeArgs(directives, options)
	if err := flags.Parse(false, args); err != nil {
		return core.Resources{}, nil, errors.New("bsub: cannot process directives: " + err.Error())
	}
	if flags.NArg() > 0 {
		return core.Resources{}, nil, errors.New("bsub: unexpected directive arguments: " + strings.Join(flags.Args(), " "))
	}
	jobSpec := make(map[string]interface{})
	flags.Visit(func(f *flag.Flag) {
		key, err := lookupLsfArg(f.Name, options)
		if err != nil {
			return
		}
		jobSpec[key] = options[key].Value
	})
	for k := range jobSpec {
		if _, ok := bSubSupportedArgs()[k]; !ok {
			unsupported = append(unsupported, "-"+options[k].Short)
			delete(jobSpec, k)
		}
	}
	if len(unsupported) > 0 {
		logger.WarningPrintf("bsub: %d unsupported options: %s", len(unsupported), strings.Join(unsupported, " "))
	}

	var res core.Resources
	if val, ok := jobSpec["job-name"]; ok {
		res.JobName = *val.(*string)
	}
	if val, ok := jobSpec["output"]; ok {
		res.OutputFile = *val.(*string)
	}
	if val, ok := jobSpec["error"]; ok {
		res.ErrorFile = *val.(*string)
	}
	if val, ok := jobSpec["cores"]; ok {
		res.Cores = *val.(*int)
	}
	if val, ok := jobSpec["walltime"]; ok {
		res.Walltime = *val.(*string)
	}
	if val, ok := jobSpec["queue"]; ok {
		res.Queue = *val.(*string)
	}
	if val, ok := jobSpec["resource"]; ok {
		for _, req := range *val.(*arrayFlags) {
			if err := decodeResourceReq(req, &res); err != nil {
				return core.Resources{}, nil, err
			}
		}
	}
	if val, ok := jobSpec["gpu"]; ok {
		if err := decodeGpuReq(*val.(*string), &res); err != nil {
			return core.Resources{}, nil, err
		}
	}
	return res, unsupported, nil
}
