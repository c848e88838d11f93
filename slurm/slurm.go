package slurm

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

// Slurm CLI commands
const (
	SBatchName = "sbatch"
)

var ErrSubmitOutput = errors.New("slurm: unexpected sbatch output")

// Submitted batch job 123[ on cluster name]
var submitted = regexp.MustCompile(`Submitted batch job ([0-9]+)`)

type Scheduler struct {
	// Binary is the sbatch executable
	Binary string
}

var _ core.Scheduler = (*Scheduler)(nil)

func New(binary string) *Scheduler {
	if len(binary) == 0 {
		binary = SBatchName
	}
	return &Scheduler{Binary: binary}
}

func (s *Scheduler) Name() string {
	return "slurm"
}

func (s *Scheduler) Directive() string {
	return core.SlurmDirective
}

// Directives renders the reservation as #SBATCH lines. LSF's %J becomes
// %j in file names; the GPU mode has no Slurm equivalent and is dropped.
func Directives(r core.Resources) []string {
	var args []string
	if len(r.JobName) > 0 {
		args = append(args, "--job-name="+r.JobName)
	}
	if len(r.OutputFile) > 0 {
		args = append(args, "--output="+toSlurmPattern(r.OutputFile))
	}
	if len(r.ErrorFile) > 0 {
		args = append(args, "--error="+toSlurmPattern(r.ErrorFile))
	}
	if r.SpanHosts > 0 {
		args = append(args, "--nodes="+strconv.Itoa(r.SpanHosts))
	}
	if r.Cores > 0 {
		args = append(args, "--cpus-per-task="+strconv.Itoa(r.Cores))
	}
	if len(r.Memory) > 0 {
		args = append(args, "--mem="+toSlurmMemory(r.Memory))
	}
	if len(r.GpuSelect) > 0 {
		args = append(args, "--constraint="+r.GpuSelect)
	}
	if r.Gpus > 0 {
		args = append(args, "--gres=gpu:"+strconv.Itoa(r.Gpus))
	}
	if len(r.Walltime) > 0 {
		args = append(args, "--time="+toSlurmTime(r.Walltime))
	}
	if len(r.Queue) > 0 {
		args = append(args, "--partition="+r.Queue)
	}
	lines := make([]string, len(args))
	for index, arg := range args {
		lines[index] = "#" + core.SlurmDirective + " " + core.ShellQuote(arg)
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

// Submit pipes the job script to sbatch on stdin
func (s *Scheduler) Submit(ctx context.Context, script []byte) (core.Submission, error) {
	cmd := exec.CommandContext(ctx, s.Binary)
	cmd.Stdin = bytes.NewReader(script)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	logger.DebugPrintf("slurm: %s < job script (%d bytes)", s.Binary, len(script))
	out, err := cmd.Output()
	if err != nil {
		return core.Submission{}, fmt.Errorf("slurm: %s: %w: %s", s.Binary, err, strings.TrimSpace(stderr.String()))
	}
	return ParseSubmitOutput(string(out))
}
