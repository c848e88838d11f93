package core

import (
	"bufio"
	"io"
	"strings"
)

// Directive prefixes
const (
	LsfDirective   = "BSUB"
	SlurmDirective = "SBATCH"
	SgeDirective   = "$"
)

// Data for HPC job script
/*
#!/bin/bash
#BSUB -J superres_train
#BSUB -W 24:00
module load cuda/11.8
*/
type JobScript struct {
	Shell string
	// Args parsed from the directive lines, one slice per line
	Directives [][]string
	Script     []byte
}

// Args flattens the directive lines in file order
func (j JobScript) Args() []string {
	var args []string
	for _, line := range j.Directives {
		args = append(args, line...)
	}
	return args
}

// DetectDirective returns the scheduler prefix found first in the script
func DetectDirective(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		for _, directive := range []string{LsfDirective, SlurmDirective, SgeDirective} {
			if strings.HasPrefix(line, "#"+directive+" ") {
				return directive
			}
		}
	}
	return ""
}

// ParseJobScript splits a job script into shell, directives and body.
// Directives are read until the first line that is not a comment or
// blank, matching how schedulers stop scanning.
func ParseJobScript(directive string, r io.Reader) (JobScript, error) {
	var shell string
	var directives [][]string
	var script []byte

	scanner := bufio.NewScanner(r)
	prefix := "#" + directive
	parsed := false
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.HasPrefix(line, "#!") {
				shell = strings.TrimSpace(line[2:])
				continue
			}
		}
		trimmed := strings.TrimSpace(line)
		if !parsed {
			if strings.HasPrefix(trimmed, prefix+" ") || strings.HasPrefix(trimmed, prefix+"\t") {
				tokens, err := SplitDirective(trimmed[len(prefix):])
				if err != nil {
					return JobScript{}, err
				}
				directives = append(directives, tokens)
				continue
			}
			if len(trimmed) == 0 || strings.HasPrefix(trimmed, "#") {
				continue
			}
			parsed = true
		}
		script = append(script, line...)
		script = append(script, '\n')
	}
	if err := scanner.Err(); err != nil {
		return JobScript{}, err
	}
	if len(shell) == 0 {
		shell = "/bin/sh"
	}
	return JobScript{
		Shell:      shell,
		Directives: directives,
		Script:     script,
	}, nil
}
