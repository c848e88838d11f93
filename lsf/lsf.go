package lsf

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

// LSF CLI commands
const (
	BSubName = "bsub"
)

var ErrSubmitOutput = errors.New("lsf: unexpected bsub output")

// Job <4242> is submitted to queue <gpuv100>.
var submitted = regexp.MustCompile(`Job <([0-9]+)> is submitted to (?:default )?queue <([^>]*)>`)

type Scheduler struct {
	// Binary is the bsub executable
	Binary string
}

var _ core.Scheduler = (*Scheduler)(nil)

func New(binary string) *Scheduler {
	if len(binary) == 0 {
		binary = BSubName
	}
	return &Scheduler{Binary: binary}
}

func (s *Scheduler) Name() string {
	return "lsf"
}

func (s *Scheduler) Directive() string {
	return core.LsfDirective
}

func quoted(value string) string {
	return `"` + value + `"`
}

func plain(value string) string {
	if strings.ContainsAny(value, " \t") {
		return quoted(value)
	}
	return value
}

// Directives renders the reservation as #BSUB lines. Zero values are omitted.
func Directives(r core.Resources) []string {
	var args [][2]string
	if len(r.JobName) > 0 {
		args = append(args, [2]string{"-J", plain(r.JobName)})
	}
	if len(r.OutputFile) > 0 {
		args = append(args, [2]string{"-o", plain(r.OutputFile)})
	}
	if len(r.ErrorFile) > 0 {
		args = append(args, [2]string{"-e", plain(r.ErrorFile)})
	}
	if r.Cores > 0 {
		args = append(args, [2]string{"-n", strconv.Itoa(r.Cores)})
	}
	if r.SpanHosts > 0 {
		args = append(args, [2]string{"-R", quoted("span[hosts=" + strconv.Itoa(r.SpanHosts) + "]")})
	}
	if len(r.Memory) > 0 {
		args = append(args, [2]string{"-R", quoted("rusage[mem=" + r.Memory + "]")})
	}
	if len(r.GpuSelect) > 0 {
		args = append(args, [2]string{"-R", quoted("select[" + r.GpuSelect + "]")})
	}
	if r.Gpus > 0 {
		gpu := "num=" + strconv.Itoa(r.Gpus)
		if len(r.GpuMode) > 0 {
			gpu += ":mode=" + r.GpuMode
		}
		args = append(args, [2]string{"-gpu", quoted(gpu)})
	}
	if len(r.Walltime) > 0 {
		args = append(args, [2]string{"-W", r.Walltime})
	}
	if len(r.Queue) > 0 {
		args = append(args, [2]string{"-q", plain(r.Queue)})
	}
	lines := make([]string, len(args))
	for index, arg := range args {
		lines[index] = "#" + core.LsfDirective + " " + arg[0] + " " + arg[1]
	}
	return lines
}

func Script(profile core.Profile) []string {
	lines := []string{"#!/bin/bash"}
	lines = append(lines, Directives(profile.Resources)...)
	return append(lines, core.ScriptBody(profile)...)
}

func (s *Scheduler) Script(profile core.Profile) []string {
	return Script(profile)
}

func (s *Scheduler) ParseDirectives(directives [][]string) (core.Resources, []string, error) {
	return ParseDirectives(directives)
}

// ParseSubmitOutput reads the job number and queue reported by bsub
func ParseSubmitOutput(out string) (core.Submission, error) {
	match := submitted.FindStringSubmatch(out)
	if match == nil {
		return core.Submission{}, fmt.Errorf("%w: %q", ErrSubmitOutput, strings.TrimSpace(out))
	}
	id, err := strconv.Atoi(match[1])
	if err != nil {
		return core.Submission{}, fmt.Errorf("%w: %q", ErrSubmitOutput, match[1])
	}
	return core.Submission{ID: id, Queue: match[2]}, nil
}

// Submit pipes the job script to bsub, which reads directives from stdin
func (s *Scheduler) Submit(ctx context.Context, script []byte) (core.Submission, error) {
	cmd := exec.CommandContext(ctx, s.Binary)
	cmd.Stdin = bytes.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.DebugPrintf("lsf: %s < job script (%d bytes)", s.Binary, len(script))
	out, err := cmd.Output()
	if err != nil {
		return core.Submission{}, fmt.Errorf("lsf: %s: %w: %s", s.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return ParseSubmitOutput(string(out))
}
