package slurm

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
	sBatchJobNameDesc    = `Specify a name for the job allocation.`
	sBatchOutputDesc     = `Connect the batch script's standard output directly to the file name specified. %j is replaced by the job ID.`
	sBatchErrorDesc      = `Connect the batch script's standard error directly to the file name specified.`
	sBatchNodesDesc      = `Request that a minimum of nodes be allocated to this job.`
	sBatchCpusDesc       = `Advise the Slurm controller that ensuing job steps will require ncpus number of processors per task.`
	sBatchMemDesc        = `Specify the real memory required per node. Default units are megabytes. Different units can be specified using the suffix [K|M|G|T].`
	sBatchConstraintDesc = `Nodes can have features assigned to them by the Slurm administrator. Users can specify which of these features are required by their job.`
	sBatchGresDesc       = `Specifies a comma delimited list of generic consumable resources. The format of each entry on the list is "name[[:type]:count]".`
	sBatchGpusDesc       = `Specify the total number of GPUs required for the job.`
	sBatchTimeDesc       = `Set a limit on the total run time of the job allocation.`
	sBatchPartitionDesc  = `Request a specific partition for the resource allocation.`
	sBatchAccountDesc    = `Charge resources used by this job to specified account.`
	sBatchNtasksDesc     = `Advises the Slurm controller that job steps run within the allocation will launch a maximum of number tasks.`
	sBatchMailUserDesc   = `User to receive email notification of state changes as defined by --mail-type.`
	sBatchMailTypeDesc   = `Notify user by email when certain event types occur.`
	sBatchExclusiveDesc  = `The job allocation can not share nodes with other running jobs.`
)

// List of supported Slurm options
// map[string]struct{} enables querying supported options using:
// _, ok := sBatchSupportedArgs()["<option>"]
func sBatchSupportedArgs() map[string]struct{} {
	return map[string]struct{}{
		"job-name":      struct{}{},
		"output":        struct{}{},
		"error":         struct{}{},
		"nodes":         struct{}{},
		"cpus-per-task": struct{}{},
		"mem":           struct{}{},
		"constraint":    struct{}{},
		"gres":          struct{}{},
		"gpus":          struct{}{},
		"time":          struct{}{},
		"partition":     struct{}{},
	}
}

// Slurm uses Short and Long command line options
// Save both with golang flag
type gnuFlag struct {
	Short string
	Long  string
	Value interface{}
}

// Use map to set command line options. map key is the same as Long option
type gnuFlags map[string]gnuFlag

// Check if either Long or Short flag is used
func lookupGnuArg(name string, spec gnuFlags) (string, error) {
	for k, v := range spec {
		// map key is the same as Long option
		if name == k || (len(v.Short) > 0 && name == v.Short) {
			return k, nil
		}
	}
	return "", errors.New("sbatch: unable to parse arguments")
}

// Slurm support Short and Long command line options
// Register both with the same Golang flag
func setFlagString(flags *flag.FlagSet, short, long, value, usage string) *string {
	flagVar := flags.String(long, value, usage)
	if len(short) > 0 {
		flags.StringVar(flagVar, short, value, usage)
	}
	return flagVar
}

func setFlagInt(flags *flag.FlagSet, short, long string, value int, usage string) *int {
	flagVar := flags.Int(long, value, usage)
	if len(short) > 0 {
		flags.IntVar(flagVar, short, value, usage)
	}
	return flagVar
}

func setFlagBool(flags *flag.FlagSet, short, long string, value bool, usage string) *bool {
	flagVar := flags.Bool(long, value, usage)
	if len(short) > 0 {
		flags.BoolVar(flagVar, short, value, usage)
	}
	return flagVar
}

func parseSBatchArgs(args []string) (gnuFlags, *flag.FlagSet, error) {
	flags := flag.NewFlagSet(SBatchName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)

	options := make(gnuFlags)
	add := func(short, long string, value interface{}) {
		options[long] = gnuFlag{Short: short, Long: long, Value: value}
	}
	add("J", "job-name", setFlagString(flags, "J", "job-name", "", sBatchJobNameDesc))
	add("o", "output", setFlagString(flags, "o", "output", "", sBatchOutputDesc))
	add("e", "error", setFlagString(flags, "e", "error", "", sBatchErrorDesc))
	add("N", "nodes", setFlagInt(flags, "N", "nodes", 0, sBatchNodesDesc))
	add("c", "cpus-per-task", setFlagInt(flags, "c", "cpus-per-task", 0, sBatchCpusDesc))
	add("", "mem", setFlagString(flags, "", "mem", "", sBatchMemDesc))
	add("C", "constraint", setFlagString(flags, "C", "constraint", "", sBatchConstraintDesc))
	add("", "gres", setFlagString(flags, "", "gres", "", sBatchGresDesc))
	add("G", "gpus", setFlagString(flags, "G", "gpus", "", sBatchGpusDesc))
	add("t", "time", setFlagString(flags, "t", "time", "", sBatchTimeDesc))
	add("p", "partition", setFlagString(flags, "p", "partition", "", sBatchPartitionDesc))
	// recognised, not carried into Resources
	add("A", "account", setFlagString(flags, "A", "account", "", sBatchAccountDesc))
	add("n", "ntasks", setFlagInt(flags, "n", "ntasks", 0, sBatchNtasksDesc))
	add("", "mail-user", setFlagString(flags, "", "mail-user", "", sBatchMailUserDesc))
	add("", "mail-type", setFlagString(flags, "", "mail-type", "", sBatchMailTypeDesc))
	add("", "exclusive", setFlagBool(flags, "", "exclusive", false, sBatchExclusiveDesc))

	if err := flags.Parse(false, args); err != nil {
		return nil, &flag.FlagSet{}, errors.New("sbatch: cannot process directives: " + err.Error())
	}
	return options, flags, nil
}

// knownArgs keeps the directive lines whose option is in the table
func knownArgs(directives [][]string) (args []string, unknown []string) {
	spec, _, _ := parseSBatchArgs(nil)
	for _, line := range directives {
		if len(line) == 0 {
			continue
		}
		name := strings.SplitN(strings.TrimLeft(line[0], "-"), "=", 2)[0]
		if _, err := lookupGnuArg(name, spec); err != nil || !strings.HasPrefix(line[0], "-") {
			unknown = append(unknown, strings.SplitN(line[0], "=", 2)[0])
			continue
		}
		args = append(args, line...)
	}
	return
}

// ParseDirectives maps #SBATCH lines onto Resources. Options outside the
// supported set are returned so the caller can warn about them.
func ParseDirectives(directives [][]string) (core.Resources, []string, error) {
	args, unsupported := knownArgs(directives)
	options, flags, err := parseSBatchArgs(args)
	if err != nil {
		return core.Resources{}, nil, err
	}
	if flags.NArg() > 0 {
		return core.Resources{}, nil, errors.New("sbatch: unexpected directive arguments: " + strings.Join(flags.Args(), " "))
	}
	// Go through set flags
	jobSpec := make(map[string]interface{})
	flags.Visit(func(f *flag.Flag) {
		key, err := lookupGnuArg(f.Name, options)
		if err != nil {
			return
		}
		jobSpec[key] = options[key].Value
	})
	for k := range jobSpec {
		if _, ok := sBatchSupportedArgs()[k]; !ok {
			unsupported = append(unsupported, "--"+k)
			delete(jobSpec, k)
		}
	}
	if len(unsupported) > 0 {
		logger.WarningPrintf("sbatch: %d unsupported options: %s", len(unsupported), strings.Join(unsupported, " "))
	}

	var res core.Resources
	if val, ok := jobSpec["job-name"]; ok {
		res.JobName = *val.(*string)
	}
	if val, ok := jobSpec["output"]; ok {
		res.OutputFile = fromSlurmPattern(*val.(*string))
	}
	if val, ok := jobSpec["error"]; ok {
		res.ErrorFile = fromSlurmPattern(*val.(*string))
	}
	if val, ok := jobSpec["nodes"]; ok {
		res.SpanHosts = *val.(*int)
	}
	if val, ok := jobSpec["cpus-per-task"]; ok {
		res.Cores = *val.(*int)
	}
	if val, ok := jobSpec["mem"]; ok {
		if _, err := core.DecodeMemory(*val.(*string)); err != nil {
			return core.Resources{}, nil, errors.New("sbatch: " + err.Error())
		}
		res.Memory = fromSlurmMemory(*val.(*string))
	}
	if val, ok := jobSpec["constraint"]; ok {
		res.GpuSelect = *val.(*string)
	}
	if val, ok := jobSpec["gres"]; ok {
		for _, gres := range strings.Split(*val.(*string), ",") {
			gpus, gpuType, err := decodeGpusReq(gres)
			if err != nil {
				return core.Resources{}, nil, err
			}
			if len(gpuType) > 0 {
				logger.WarningPrintf("sbatch: GPU type %s not carried over", gpuType)
			}
			res.Gpus = gpus
		}
	}
	if val, ok := jobSpec["gpus"]; ok {
		gpus, gpuType, err := decodeGpusReq("gpu:" + *val.(*string))
		if err != nil {
			return core.Resources{}, nil, err
		}
		if len(gpuType) > 0 {
			logger.WarningPrintf("sbatch: GPU type %s not carried over", gpuType)
		}
		res.Gpus = gpus
	}
	if val, ok := jobSpec["time"]; ok {
		walltime, err := fromSlurmTime(*val.(*string))
		if err != nil {
			return core.Resources{}, nil, err
		}
		res.Walltime = walltime
	}
	if val, ok := jobSpec["partition"]; ok {
		res.Queue = *val.(*string)
	}
	return res, unsupported, nil
}
