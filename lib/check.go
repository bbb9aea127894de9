package lib

/* check.go contains the core functions of amrio's "check" mode. */

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/amrio/lib/ramses"
)

// Check tests args against the dataset they point to. Under CrashOnError the
// first problem is returned as an error; under WarnOnError every problem is
// logged and Check continues as far as it can. If Check completes, it returns
// true if all tests passed and false otherwise, along with the Index it built
// so that later modes don't need to read every AMR file again. The caller
// must Close the Index.
func Check(args *Args, logger *slog.Logger) (*ramses.Index, bool, error) {
	ok := true
	report := func(err error) error {
		ok = false
		if args.Strictness == CrashOnError {
			return err
		}
		logger.Warn(err.Error())
		return nil
	}

	if args.InfoFile == "" {
		return nil, false, fmt.Errorf("No info file was given. Set Info in the " +
			"config file or pass --info.")
	}
	if _, err := os.Stat(args.InfoFile); err != nil {
		return nil, false, fmt.Errorf("The info file '%s' cannot be read: %w",
			args.InfoFile, err)
	}
	if !ramses.Valid(args.InfoFile) {
		if err := report(fmt.Errorf("'%s' does not look like a RAMSES "+
			"output: there is no AMR file for domain 1.", args.InfoFile)); err != nil {
			return nil, false, err
		}
	}

	if args.Output != "" {
		dir := filepath.Dir(args.Output)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			if err := report(fmt.Errorf("The directory of Output = '%s' "+
				"does not exist.", args.Output)); err != nil {
				return nil, false, err
			}
		}
	}

	idx, err := OpenIndex(args, logger)
	if err != nil {
		return nil, false, err
	}

	known := map[ramses.FieldName]bool{}
	for _, f := range idx.FluidFields() {
		known[f] = true
	}
	for _, f := range args.Fields {
		if !known[f] {
			err := fmt.Errorf("The field '%s' is not in the dataset. Run "+
				"'amrio fields' to list the available fields.", f)
			if err := report(err); err != nil {
				idx.Close()
				return nil, false, err
			}
		}
	}

	if len(idx.Chunks(args.Selector)) == 0 {
		err := fmt.Errorf("The selector does not overlap any of the %d "+
			"domains which were read.", len(idx.Domains))
		if err := report(err); err != nil {
			idx.Close()
			return nil, false, err
		}
	}

	return idx, ok, nil
}
