package slurm

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

func toSlurmPattern(path string) string {
	return strings.ReplaceAll(path, "%J", "%j")
}

func fromSlurmPattern(path string) string {
	return strings.ReplaceAll(path, "%j", "%J")
}

// 8GB -> 8G; Slurm takes a single unit letter
func toSlurmMemory(mem string) string {
	upper := strings.ToUpper(mem)
	if len(upper) > 2 && strings.HasSuffix(upper, "B") && strings.ContainsAny(upper[len(upper)-2:len(upper)-1], "KMGT") {
		return mem[:len(mem)-1]
	}
	return mem
}

func fromSlurmMemory(mem string) string {
	if len(mem) > 1 && strings.ContainsAny(strings.ToUpper(mem[len(mem)-1:]), "KMGT") {
		return mem + "B"
	}
	return mem
}

// [hours:]minutes -> hours:minutes:00
func toSlurmTime(walltime string) string {
	if strings.Contains(walltime, ":") {
		return walltime + ":00"
	}
	return walltime
}

// fromSlurmTime accepts minutes, hours:minutes:seconds and
// days-hours[:minutes[:seconds]], rounding seconds up to the minute
func fromSlurmTime(t string) (string, error) {
	invalid := errors.New("sbatch: invalid time: " + t)
	days := 0
	rest := t
	if index := strings.Index(t, "-"); index >= 0 {
		d, err := strconv.Atoi(t[:index])
		if err != nil {
			return "", invalid
		}
		days = d
		rest = t[index+1:]
	}
	var fields []int
	for _, part := range strings.Split(rest, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return "", invalid
		}
		fields = append(fields, n)
	}
	var hours, minutes, seconds int
	switch {
	case days > 0 || strings.Contains(t, "-"):
		// d-h, d-h:m, d-h:m:s
		for len(fields) < 3 {
			fields = append(fields, 0)
		}
		if len(fields) > 3 {
			return "", invalid
		}
		hours, minutes, seconds = fields[0], fields[1], fields[2]
	case len(fields) == 1:
		return rest, nil
	case len(fields) == 2:
		minutes, seconds = fields[0], fields[1]
	case len(fields) == 3:
		hours, minutes, seconds = fields[0], fields[1], fields[2]
	default:
		return "", invalid
	}
	if seconds > 0 {
		minutes++
	}
	total := ((days*24+hours)*60 + minutes)
	return fmt.Sprintf("%d:%02d", total/60, total%60), nil
}

var gpuCount = regexp.MustCompile("[0-9]+$")

// decodeGpusReq reads gpu[:type]:count and returns the count and type
func decodeGpusReq(req string) (gpus int, gpuType string, err error) {
	parts := strings.Split(req, ":")
	if parts[0] != "gpu" {
		err = errors.New("sbatch: only gpu generic resources are supported: " + req)
		return
	}
	if len(parts) == 1 {
		gpus = 1
		return
	}
	if match := gpuCount.FindString(parts[len(parts)-1]); len(match) > 0 && match == parts[len(parts)-1] {
		if numGpus, perr := strconv.ParseInt(match, 10, 64); perr == nil {
			gpus = int(numGpus)
			if len(parts) == 3 {
				gpuType = parts[1]
			}
			return
		}
	}
	err = errors.New("sbatch: invalid gpu request: " + req)
	return
}
