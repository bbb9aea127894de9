package lib

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/phil-mansfield/amrio/lib/format"
	"github.com/phil-mansfield/amrio/lib/octree"
	"github.com/phil-mansfield/amrio/lib/ramses"
	"github.com/spf13/pflag"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/gcfg.v1"
)

// RawArgs stores the unprocessed values which the user assigned to each
// config variable.
type RawArgs struct {
	// Info is the path to the info_XXXXX.txt file of a RAMSES output.
	Info string
	// Fields are "kind:name" field names. A bare name is a hydro field.
	Fields []string
	// HydroFields overrides the names of the hydro variables, in on-disk
	// order.
	HydroFields []string
	// BoundingBox is "x0,y0,z0,x1,y1,z1" in normalized units.
	BoundingBox string
	// Domains is a sequence format, e.g. "1..64 - 3".
	Domains string
	// Selector is "all", "region:x0,y0,z0,x1,y1,z1", or "sphere:x,y,z,r".
	Selector  string
	Threads   int
	ByteOrder string
	CacheMB   int
	Output    string
	// Accuracy is the quantization accuracy of extracted fields. Zero
	// stores them without loss.
	Accuracy float64
	Strict   string
	Verbose  bool

	// set records which variables were explicitly given.
	set map[string]bool
}

// configFile is the layout gcfg expects: a single [amrio] section.
type configFile struct {
	Amrio RawArgs
}

// DefaultRawArgs returns the values used for variables which are never set.
func DefaultRawArgs() *RawArgs {
	return &RawArgs{
		Selector:  "all",
		Threads:   1,
		ByteOrder: "little",
		Strict:    "crash",
		set:       map[string]bool{},
	}
}

// Args stores configuration information. It is a post-processed version of
// RawArgs.
type Args struct {
	InfoFile    string
	Fields      []ramses.FieldName
	HydroFields []string
	BoundingBox *octree.Box
	Domains     []int
	Selector    octree.Selector
	Threads     int
	ByteOrder   binary.ByteOrder
	CacheBytes  int64
	Output      string
	Accuracy    float64
	Strictness  CheckStrictness
	Verbose     bool
}

// flagNames lists every variable which can be given on the command line, in
// the order they are printed by the help mode.
var flagNames = []string{
	"info", "fields", "hydro-fields", "bounding-box", "domains", "selector",
	"threads", "byte-order", "cache-mb", "output", "accuracy", "strict",
	"verbose",
}

func newFlagSet(args *RawArgs) *pflag.FlagSet {
	fs := pflag.NewFlagSet("amrio", pflag.ContinueOnError)
	fs.StringVar(&args.Info, "info", args.Info,
		"path to the info_XXXXX.txt file of a RAMSES output")
	fs.StringSliceVar(&args.Fields, "fields", args.Fields,
		"comma-separated kind:name fields to read")
	fs.StringSliceVar(&args.HydroFields, "hydro-fields", args.HydroFields,
		"names of the hydro variables, in on-disk order")
	fs.StringVar(&args.BoundingBox, "bounding-box", args.BoundingBox,
		"only read domains which overlap x0,y0,z0,x1,y1,z1")
	fs.StringVar(&args.Domains, "domains", args.Domains,
		"only read these domains, e.g. '1..64 - 3'")
	fs.StringVar(&args.Selector, "selector", args.Selector,
		"cells to read: all, region:x0,y0,z0,x1,y1,z1, or sphere:x,y,z,r")
	fs.IntVar(&args.Threads, "threads", args.Threads,
		"number of domains read in parallel; -1 uses every core")
	fs.StringVar(&args.ByteOrder, "byte-order", args.ByteOrder,
		"byte order of the data files: little, big, or native")
	fs.IntVar(&args.CacheMB, "cache-mb", args.CacheMB,
		"size of the filled field cache in megabytes")
	fs.StringVar(&args.Output, "output", args.Output,
		"file written by the extract mode")
	fs.Float64Var(&args.Accuracy, "accuracy", args.Accuracy,
		"quantization accuracy of extracted fields; 0 is lossless")
	fs.StringVar(&args.Strict, "strict", args.Strict,
		"behavior of the check mode on errors: crash or warn")
	fs.BoolVarP(&args.Verbose, "verbose", "v", args.Verbose,
		"print debug logging")
	return fs
}

// FlagUsages returns the help text for every command line flag.
func FlagUsages() string {
	return newFlagSet(DefaultRawArgs()).FlagUsages()
}

// ParseCommandLine parses command line arguments (not including the program
// name) and returns the mode amrio is being run in, the name of the config
// file, and any arguments which were set. Expects that the arguments are
// presented in the order:
// $ amrio <mode> [config file] [--<Arg1> <Value1>] [--<Arg2> <Value2>]
func ParseCommandLine(argv []string) (mode, configFile string, args *RawArgs, err error) {
	args = DefaultRawArgs()
	fs := newFlagSet(args)
	if err := fs.Parse(argv); err != nil {
		return "", "", nil, err
	}

	pos := fs.Args()
	switch len(pos) {
	case 0:
		return "", "", nil, fmt.Errorf("No mode was given. Run 'amrio help' " +
			"for a list of modes.")
	case 1:
	case 2:
		configFile = pos[1]
	default:
		return "", "", nil, fmt.Errorf("amrio takes a mode and at most one "+
			"config file, but was given %d positional arguments: %s.",
			len(pos), pos)
	}

	fs.Visit(func(f *pflag.Flag) { args.set[f.Name] = true })
	return pos[0], configFile, args, nil
}

// ParseConfigFile parses arguments from the [amrio] section of a config
// file. An empty file name gives the default arguments.
func ParseConfigFile(fileName string) (*RawArgs, error) {
	cfg := &configFile{Amrio: *DefaultRawArgs()}
	if fileName == "" {
		return &cfg.Amrio, nil
	}
	if err := gcfg.ReadFileInto(cfg, fileName); err != nil {
		return nil, fmt.Errorf("Could not parse the config file '%s': %w",
			fileName, err)
	}
	cfg.Amrio.set = map[string]bool{}
	return &cfg.Amrio, nil
}

// Overwrite arguments in arg1 which have been explicitly set in arg2.
func (arg1 *RawArgs) Overwrite(arg2 *RawArgs) {
	for name := range arg2.set {
		switch name {
		case "info":
			arg1.Info = arg2.Info
		case "fields":
			arg1.Fields = append([]string{}, arg2.Fields...)
		case "hydro-fields":
			arg1.HydroFields = append([]string{}, arg2.HydroFields...)
		case "bounding-box":
			arg1.BoundingBox = arg2.BoundingBox
		case "domains":
			arg1.Domains = arg2.Domains
		case "selector":
			arg1.Selector = arg2.Selector
		case "threads":
			arg1.Threads = arg2.Threads
		case "byte-order":
			arg1.ByteOrder = arg2.ByteOrder
		case "cache-mb":
			arg1.CacheMB = arg2.CacheMB
		case "output":
			arg1.Output = arg2.Output
		case "accuracy":
			arg1.Accuracy = arg2.Accuracy
		case "strict":
			arg1.Strict = arg2.Strict
		case "verbose":
			arg1.Verbose = arg2.Verbose
		}
		if arg1.set == nil {
			arg1.set = map[string]bool{}
		}
		arg1.set[name] = true
	}
}

// Process converts the raw user input to a format which is more useful for
// internal functions. Very simple validation is done here, but nothing which
// requires interacting with external files.
func (args *RawArgs) Process() (*Args, error) {
	out := &Args{
		InfoFile:    args.Info,
		HydroFields: args.HydroFields,
		Threads:     args.Threads,
		Output:      args.Output,
		Accuracy:    args.Accuracy,
		Verbose:     args.Verbose,
	}

	for _, f := range args.Fields {
		if f = strings.TrimSpace(f); f != "" {
			out.Fields = append(out.Fields, ramses.ParseFieldName(f))
		}
	}

	if args.BoundingBox != "" {
		x, err := parseFloats("BoundingBox", args.BoundingBox, 6)
		if err != nil {
			return nil, err
		}
		box := boxFromFloats(x)
		out.BoundingBox = &box
	}

	if args.Domains != "" {
		var err error
		if out.Domains, err = format.ExpandSequenceFormat(args.Domains); err != nil {
			return nil, fmt.Errorf("Could not parse Domains = '%s': %w",
				args.Domains, err)
		}
	}

	var err error
	if out.Selector, err = parseSelector(args.Selector); err != nil {
		return nil, err
	}

	switch strings.ToLower(args.ByteOrder) {
	case "little", "":
		out.ByteOrder = binary.LittleEndian
	case "big":
		out.ByteOrder = binary.BigEndian
	case "native":
		out.ByteOrder = SystemByteOrder()
	default:
		return nil, fmt.Errorf("ByteOrder = '%s', but the only valid values "+
			"are 'little', 'big', and 'native'.", args.ByteOrder)
	}

	switch {
	case args.Threads == 0 || args.Threads < -1:
		return nil, fmt.Errorf("Threads = %d, but it must be positive or -1.",
			args.Threads)
	case args.CacheMB < 0:
		return nil, fmt.Errorf("CacheMB = %d, but it cannot be negative.",
			args.CacheMB)
	case args.Accuracy < 0:
		return nil, fmt.Errorf("Accuracy = %g, but it cannot be negative.",
			args.Accuracy)
	}
	out.CacheBytes = int64(args.CacheMB) << 20

	switch strings.ToLower(args.Strict) {
	case "crash", "":
		out.Strictness = CrashOnError
	case "warn":
		out.Strictness = WarnOnError
	default:
		return nil, fmt.Errorf("Strict = '%s', but the only valid values "+
			"are 'crash' and 'warn'.", args.Strict)
	}

	return out, nil
}

// Options returns the ramses.Options corresponding to args. Threads = -1 is
// replaced by the number of usable cores.
func (args *Args) Options() *ramses.Options {
	threads := args.Threads
	if threads == -1 {
		threads = runtime.GOMAXPROCS(0)
	}
	return &ramses.Options{
		Fields:      args.HydroFields,
		BoundingBox: args.BoundingBox,
		Domains:     args.Domains,
		ByteOrder:   args.ByteOrder,
		Threads:     threads,
		CacheBytes:  args.CacheBytes,
	}
}

func parseFloats(name, s string, n int) ([]float64, error) {
	tok := strings.Split(s, ",")
	if len(tok) != n {
		return nil, fmt.Errorf("%s = '%s', but it must be %d "+
			"comma-separated numbers.", name, s, n)
	}
	out := make([]float64, n)
	for i := range tok {
		x, err := strconv.ParseFloat(strings.TrimSpace(tok[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s = '%s', but '%s' is not a number.",
				name, s, tok[i])
		}
		out[i] = x
	}
	return out, nil
}

func boxFromFloats(x []float64) octree.Box {
	return octree.Box{
		Min: r3.Vec{X: x[0], Y: x[1], Z: x[2]},
		Max: r3.Vec{X: x[3], Y: x[4], Z: x[5]},
	}
}

func parseSelector(s string) (octree.Selector, error) {
	kind, params := s, ""
	if i := strings.Index(s, ":"); i >= 0 {
		kind, params = s[:i], s[i+1:]
	}

	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "all", "":
		return octree.All{}, nil
	case "region":
		x, err := parseFloats("Selector", params, 6)
		if err != nil {
			return nil, err
		}
		return octree.Region{Box: boxFromFloats(x)}, nil
	case "sphere":
		x, err := parseFloats("Selector", params, 4)
		if err != nil {
			return nil, err
		}
		if x[3] <= 0 {
			return nil, fmt.Errorf("Selector = '%s', but the sphere's "+
				"radius must be positive.", s)
		}
		return octree.Sphere{Center: r3.Vec{X: x[0], Y: x[1], Z: x[2]},
			Radius: x[3]}, nil
	}
	return nil, fmt.Errorf("Selector = '%s', but the only valid selectors "+
		"are 'all', 'region:...', and 'sphere:...'.", s)
}
