package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/phil-mansfield/amrio/lib"
	lerror "github.com/phil-mansfield/amrio/lib/error"
	"github.com/phil-mansfield/amrio/lib/fortio"
	"github.com/phil-mansfield/amrio/lib/ramses"
	"github.com/phil-mansfield/amrio/lib/thread"
)

func main() {
	// Parse arguments.
	mode, configFile, cmdArgs, err := lib.ParseCommandLine(os.Args[1:])
	if err != nil {
		lerror.External("%s", err.Error())
	}
	if mode == "help" {
		lib.PrintHelp(os.Stdout)
		return
	}
	rawArgs, err := lib.ParseConfigFile(configFile)
	if err != nil {
		lerror.External("%s", err.Error())
	}
	rawArgs.Overwrite(cmdArgs)

	// Do processing that doesn't need external validation.
	args, err := rawArgs.Process()
	if err != nil {
		lerror.External("%s", err.Error())
	}

	level := slog.LevelInfo
	if args.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr,
		&slog.HandlerOptions{Level: level}))

	if err := thread.Set(args.Threads); err != nil {
		lerror.External("%s", err.Error())
	}

	// Run the chosen mode.
	switch mode {
	case "check":
		Check(args, logger)
	case "stats":
		Stats(args, logger)
	case "fields":
		Fields(args, logger)
	case "extract":
		Extract(args, logger)
	default:
		lerror.External(
			"You attempted to run amrio in the mode '%s', but the only valid "+
				"modes are 'help', 'check', 'stats', 'fields', and 'extract'.",
			mode,
		)
	}
}

// Check runs amrio's "check" mode which tests for errors in the configuration
// arguments.
func Check(args *lib.Args, logger *slog.Logger) {
	idx, ok, err := lib.Check(args, logger)
	if err != nil {
		fail(err)
	}
	idx.Close()
	if ok {
		fmt.Println("No errors detected.")
	}
}

// Stats runs amrio's "stats" mode, which summarizes the selected domains.
func Stats(args *lib.Args, logger *slog.Logger) {
	idx := openIndex(args, logger)
	defer idx.Close()
	if err := lib.Stats(idx, os.Stdout); err != nil {
		fail(err)
	}
}

// Fields runs amrio's "fields" mode, which lists every field on disk.
func Fields(args *lib.Args, logger *slog.Logger) {
	idx := openIndex(args, logger)
	defer idx.Close()
	lib.Fields(idx, os.Stdout)
}

// Extract runs amrio's "extract" mode, which writes the selected cells to a
// compressed extract file.
func Extract(args *lib.Args, logger *slog.Logger) {
	idx, _, err := lib.Check(args, logger)
	if err != nil {
		fail(err)
	}
	defer idx.Close()
	if err := lib.Extract(idx, args, logger); err != nil {
		fail(err)
	}
}

func openIndex(args *lib.Args, logger *slog.Logger) *ramses.Index {
	idx, err := lib.OpenIndex(args, logger)
	if err != nil {
		fail(err)
	}
	return idx
}

// fail reports err. Damaged files and unexpected layouts are reported with a
// stack trace, since they usually mean a reader bug or an unsupported
// version of RAMSES. Everything else is something the user can fix.
func fail(err error) {
	var (
		corrupt   *fortio.CorruptRecordError
		integrity *ramses.StructuralIntegrityError
		format    *ramses.FormatAssumptionError
	)
	switch {
	case errors.As(err, &corrupt), errors.As(err, &integrity),
		errors.As(err, &format):
		lerror.Internal("%s", err.Error())
	default:
		lerror.External("%s", err.Error())
	}
}
