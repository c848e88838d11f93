package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"

	logger "superres.io/hpc-launcher/logger"
	tracing "superres.io/hpc-launcher/tracing"
)

const (
	serviceName    = "superres-hpc"
	serviceVersion = "0.1.0"
)

var parser = flags.NewNamedParser(serviceName, flags.PassDoubleDash)

// Command output, replaced in tests
var stdout io.Writer = os.Stdout

// exitStatus is set by commands that run a child process
var exitStatus = 0

func printHelp(parser *flags.Parser) {
	// Print help for active command
	if parser.Command.Active != nil {
		parser.Command = parser.Command.Active
	}
	var b bytes.Buffer
	parser.WriteHelp(&b)
	fmt.Fprintln(stdout, b.String())
}

func shutdown() {
	if err := tracing.Shutdown(context.Background()); err != nil {
		logger.WarningPrintf("tracing: %v", err)
	}
}

func main() {
	var err error
	args := []string{}
	if err = tracing.InitFromEnv(serviceName, serviceVersion); err != nil {
		logger.WarningPrintf("tracing disabled: %v", err)
	}
	if args, err = parser.ParseArgs(os.Args[1:]); err != nil {
		goto errHandler
	}
	if len(args) > 0 {
		logger.WarningPrintf("ignoring arguments: %v", args)
	}
	shutdown()
	os.Exit(exitStatus)
errHandler:
	shutdown()
	switch flagsErr := err.(type) {
	case *flags.Error:
		if flagsErr.Type == flags.ErrHelp ||
			flagsErr.Type == flags.ErrCommandRequired {
			printHelp(parser)
			os.Exit(0)
		} else if flagsErr.Type == flags.ErrUnknownCommand {
			fmt.Printf("`%v' not supported\n\n\n", os.Args[1])
			printHelp(parser)
		} else if flagsErr.Type == flags.ErrMarshal {
			fmt.Print("\n\nInvalid syntax\n\n\n")
			printHelp(parser)
			os.Exit(1)
		}
		fmt.Println(flagsErr.Error())
		os.Exit(1)

	default:
		fmt.Println(flagsErr.Error())
		if exitStatus == 0 {
			exitStatus = 1
		}
		os.Exit(exitStatus)
	}
}
