package core

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
)

// ShellQuote quotes s for a POSIX shell, leaving safe words untouched
func ShellQuote(s string) string {
	return shellquote.Join(s)
}

func ShellJoin(args []string) string {
	return shellquote.Join(args...)
}

// CommandLine renders the invocation as one shell line,
// device visibility and extra env as assignments in front
func (i Invocation) CommandLine() string {
	var parts []string
	for _, env := range i.Environ() {
		kv := strings.SplitN(env, "=", 2)
		parts = append(parts, kv[0]+"="+ShellQuote(kv[1]))
	}
	parts = append(parts, ShellJoin(i.Argv()))
	return strings.Join(parts, " ")
}

// ScriptBody is the job script after the directives: environment
// preparation, one bash array per flag group and the invocation line
func ScriptBody(p Profile) []string {
	lines := p.Environment.Commands()
	inv := p.Invocation
	var expand []string
	for _, g := range inv.Groups {
		lines = append(lines, g.Variable()+"=("+ShellJoin(g.Args())+")")
		expand = append(expand, `"${`+g.Variable()+`[@]}"`)
	}
	var call []string
	for _, env := range inv.Environ() {
		kv := strings.SplitN(env, "=", 2)
		call = append(call, kv[0]+"="+ShellQuote(kv[1]))
	}
	if len(inv.Interpreter) > 0 {
		call = append(call, ShellQuote(inv.Interpreter))
	}
	call = append(call, ShellQuote(inv.Script))
	call = append(call, expand...)
	return append(lines, strings.Join(call, " "))
}

// SplitDirective tokenizes a directive line honouring quotes and
// escapes, e.g. -R "span[hosts=1]" -> [-R span[hosts=1]]. A # starting a
// word outside quotes begins a trailing comment.
func SplitDirective(line string) ([]string, error) {
	for index, c := range line {
		if c != '#' || (index > 0 && line[index-1] != ' ' && line[index-1] != '\t') {
			continue
		}
		if tokens, err := shellquote.Split(line[:index]); err == nil {
			return tokens, nil
		}
	}
	tokens, err := shellquote.Split(line)
	if err != nil {
		return nil, errors.New("invalid directive " + line + ": " + err.Error())
	}
	return tokens, nil
}

// WalltimeDuration decodes a [hours:]minutes limit
func WalltimeDuration(walltime string) (time.Duration, error) {
	parts := strings.Split(walltime, ":")
	if len(parts) > 2 || len(walltime) == 0 {
		return 0, errors.New("invalid walltime: " + walltime)
	}
	var total time.Duration
	unit := time.Minute
	for index := len(parts) - 1; index >= 0; index-- {
		n, err := strconv.Atoi(parts[index])
		if err != nil || n < 0 {
			return 0, errors.New("invalid walltime: " + walltime)
		}
		total += time.Duration(n) * unit
		unit = time.Hour
	}
	return total, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
