package sge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	core "superres.io/hpc-launcher/core"
	logger "superres.io/hpc-launcher/logger"
)

// CLI commands
const (
	QSubName = "qsub"
)

var ErrSubmitOutput = errors.New("sge: unexpected qsub output")

// Your job 123 ("name") has been submitted
var submitted = regexp.MustCompile(`Your job(?:-array)? ([0-9]+)`)

type Scheduler struct {
	// Binary is the qsub executable
	Binary string
}

var _ core.Scheduler = (*Scheduler)(nil)

func New(binary string) *Scheduler {
	if len(binary) == 0 {
		binary = QSubName
	}
	return &Scheduler{Binary: binary}
}

func (s *Scheduler) Name() string {
	return "sge"
}

func (s *Scheduler) Directive() string {
	return core.SgeDirective
}

// Grid Engine reads embedded options literally apart from double quotes
func directive(args ...string) string {
	words := make([]string, len(args))
	for index, arg := range args {
		if len(arg) == 0 || strings.ContainsAny(arg, " \t") {
			arg = `"` + arg + `"`
		}
		words[index] = arg
	}
	return "#" + core.SgeDirective + " " + strings.Join(words, " ")
}

// Directives renders the reservation as #$ lines. Cores become a
// parallel environment: smp when the job stays on one host, mpi otherwise.
// The GPU mode has no Grid Engine equivalent and is dropped.
func Directives(r core.Resources) []string {
	var lines []string
	if len(r.JobName) > 0 {
		lines = append(lines, directive("-N", r.JobName))
	}
	if len(r.OutputFile) > 0 {
		lines = append(lines, directive("-o", toSgePattern(r.OutputFile)))
	}
	if len(r.ErrorFile) > 0 {
		lines = append(lines, directive("-e", toSgePattern(r.ErrorFile)))
	}
	if r.Cores > 0 {
		pe := peMpi
		if r.SpanHosts == 1 {
			pe = peSmp
		}
		lines = append(lines, directive("-pe", pe, strconv.Itoa(r.Cores)))
	}
	if len(r.Memory) > 0 {
		lines = append(lines, directive("-l", memoryName+"="+toSgeMemory(r.Memory)))
	}
	if len(r.GpuSelect) > 0 {
		lines = append(lines, directive("-l", r.GpuSelect+"=TRUE"))
	}
	if r.Gpus > 0 {
		lines = append(lines, directive("-l", gpusName+"="+strconv.Itoa(r.Gpus)))
	}
	if len(r.Walltime) > 0 {
		lines = append(lines, directive("-l", walltimeName+"="+toSgeTime(r.Walltime)))
	}
	if len(r.Queue) > 0 {
		lines = append(lines, directive("-q", r.Queue))
	}
	return lines
}

func Script(profile core.Profile) []string {
	lines := []string{"#!/bin/bash", directive("-S", "/bin/bash"), directive("-cwd")}
	lines = append(lines, Directives(profile.Resources)...)
	return append(lines, core.ScriptBody(profile)...)
}

func (s *Scheduler) Script(profile core.Profile) []string {
	return Script(profile)
}

func (s *Scheduler) ParseDirectives(directives [][]string) (core.Resources, []string, error) {
	return ParseDirectives(directives)
}

func ParseSubmitOutput(out string) (core.Submission, error) {
	match := submitted.FindStringSubmatch(out)
	if match == nil {
		return core.Submission{}, fmt.Errorf("%w: %q", ErrSubmitOutput, strings.TrimSpace(out))
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return core.Submission{}, fmt.Errorf("%w: %q", ErrSubmitOutput, match[1])
	}
	return core.Submission{ID: id}, nil
}

// Submit pipes the job script to qsub on stdin
func (s *Scheduler) Submit(ctx context.Context, script []byte) (core.Submission, error) {
	cmd := exec.CommandContext(ctx, s.Binary)
	cmd.Stdin = bytes.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.DebugPrintf("sge: %s < job script (%d bytes)", s.Binary, len(script))
	out, err := cmd.Output()
	if err != nil {
		return core.Submission{}, fmt.Errorf("sge: %s: %w: %s", s.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return ParseSubmitOutput(string(out))
}
