package sge

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parallel environments and resource complexes
const (
	peSmp        = "smp"
	peMpi        = "mpi"
	memoryName   = "h_vmem"
	gpusName     = "gpu"
	walltimeName = "h_rt"
)

const jobIDVariable = "$JOB_ID"

func toSgePattern(path string) string {
	return strings.ReplaceAll(path, "%J", jobIDVariable)
}

func fromSgePattern(path string) string {
	return strings.ReplaceAll(path, jobIDVariable, "%J")
}

// 8GB -> 8G
func toSgeMemory(mem string) string {
	upper := strings.ToUpper(mem)
	if len(upper) > 2 && strings.HasSuffix(upper, "B") && strings.ContainsAny(upper[len(upper)-2:len(upper)-1], "KMGT") {
		return mem[:len(mem)-1]
	}
	return mem
}

func fromSgeMemory(mem string) string {
	if len(mem) > 1 && strings.ContainsAny(strings.ToUpper(mem[len(mem)-1:]), "KMGT") {
		return mem + "B"
	}
	return mem
}

// [hours:]minutes -> hours:minutes:00
func toSgeTime(walltime string) string {
	if strings.Contains(walltime, ":") {
		return walltime + ":00"
	}
	minutes, err := strconv.Atoi(walltime)
	if err != nil {
		return walltime
	}
	return fmt.Sprintf("%d:%02d:00", minutes/60, minutes%60)
}

// h_rt is hours:minutes:seconds or seconds; seconds round up
func fromSgeTime(t string) (string, error) {
	invalid := errors.New("qsub: invalid h_rt: " + t)
	var fields []int
	for _, part := range strings.Split(t, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return "", invalid
		}
		fields = append(fields, n)
	}
	var seconds int
	switch len(fields) {
	case 1:
		seconds = fields[0]
	case 3:
		seconds = (fields[0]*60+fields[1])*60 + fields[2]
	default:
		return "", invalid
	}
	minutes := (seconds + 59) / 60
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60), nil
}

// Split -l requests (foo=bar,baz=1) into pairs, keeping their order
func parseSgeResources(resources []string) ([][2]string, error) {
	var res [][2]string
	for _, resource := range resources {
		for _, flag := range strings.Split(resource, ",") {
			split := strings.Split(flag, "=")
			if len(split) != 2 || len(split[0]) == 0 {
				return nil, errors.New("qsub: invalid resource request: " + flag)
			}
			res = append(res, [2]string{split[0], split[1]})
		}
	}
	return res, nil
}

func validatePeScale(str string) (ret int, err error) {
	if i, e := strconv.ParseInt(str, 10, 64); e == nil {
		if i > 0 {
			ret = int(i)
			return
		}
	}
	err = errors.New("qsub: pe scale must be positive integer: -pe NAME INT")
	return
}

func isTrue(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	}
	return false
}
