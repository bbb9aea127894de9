package lib

import (
	"fmt"
	"io"
)

const helpText = `amrio reads the octree and cell fields of RAMSES outputs.

Usage:
    amrio <mode> [config file] [--<flag> <value> ...]

Modes:
    help     Print this message.
    check    Check the configuration against the dataset it points to.
    stats    Print the number of cells on each level and particle counts.
    fields   List every field in the dataset.
    extract  Read the selected cells and write them to Output.

Config files have a single [amrio] section whose variables have the same
names as the flags below, written in CamelCase (e.g. CacheMB = 64). Flags
given on the command line take precedence over the config file.

Flags:
`

// PrintHelp writes amrio's usage message to w.
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "amrio version %s\n\n", Version)
	fmt.Fprint(w, helpText)
	fmt.Fprint(w, FlagUsages())
}
