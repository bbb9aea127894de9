/*package ramses reads the outputs of the RAMSES adaptive mesh refinement code.

A RAMSES output is a directory holding one info_XXXXX.txt parameter file and,
for every compute domain, an amr_XXXXX.outYYYYY file describing the octree
and optional hydro_, rt_, grav_, and part_ files. Open() parses the info file,
NewIndex() reads the octree of every requested domain, and the Index's
DomainSubsets read cell values for an arbitrary octree.Selector while only
touching the records that the selection needs.
*/
package ramses

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phil-mansfield/amrio/lib/format"
	"github.com/phil-mansfield/amrio/lib/octree"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	InfoFormat = "info_{%05d,output}.txt"
	AMRFormat  = "amr_{%05d,output}.out{%05d,domain}"
)

// Params holds the contents of an info_XXXXX.txt file.
type Params struct {
	NCPU, NDim            int
	LevelMin, LevelMax    int
	NGridMax, NStepCoarse int

	BoxLen, Time, AExp                 float64
	H0, OmegaM, OmegaL, OmegaK, OmegaB float64
	UnitL, UnitD, UnitT                float64

	Ordering string
	// HilbertMin and HilbertMax give the range of Hilbert keys owned by each
	// domain. Index i corresponds to domain i+1. They are only set for
	// "hilbert" orderings.
	HilbertMin, HilbertMax []float64

	// Raw holds every key = value pair in the file.
	Raw map[string]string
}

// ReadInfo reads an info_XXXXX.txt file.
func ReadInfo(fname string) (*Params, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := parseInfo(f)
	if err != nil {
		return nil, fmt.Errorf("Could not parse the info file '%s': %w",
			fname, err)
	}
	return p, nil
}

func parseInfo(r io.Reader) (*Params, error) {
	p := &Params{Raw: map[string]string{}}
	scanner := bufio.NewScanner(r)

	inDomainTable := false
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if inDomainTable {
			tok := strings.Fields(line)
			if len(tok) != 3 {
				return nil, fmt.Errorf("line %d of the domain table, '%s', "+
					"does not have three columns", lineNum, line)
			}
			min, err1 := parseFortranFloat(tok[1])
			max, err2 := parseFortranFloat(tok[2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("line %d of the domain table, '%s', "+
					"does not contain valid Hilbert keys", lineNum, line)
			}
			p.HilbertMin = append(p.HilbertMin, min)
			p.HilbertMax = append(p.HilbertMax, max)
			continue
		}

		if strings.HasPrefix(line, "DOMAIN") {
			inDomainTable = true
			continue
		}

		eq := strings.Index(line, "=")
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		p.Raw[key] = val
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	ints := []struct {
		key      string
		dst      *int
		required bool
	}{
		{"ncpu", &p.NCPU, true}, {"ndim", &p.NDim, true},
		{"levelmin", &p.LevelMin, true}, {"levelmax", &p.LevelMax, true},
		{"ngridmax", &p.NGridMax, false}, {"nstep_coarse", &p.NStepCoarse, false},
	}
	for _, x := range ints {
		val, ok := p.Raw[x.key]
		if !ok {
			if x.required {
				return nil, fmt.Errorf("the required parameter '%s' is missing", x.key)
			}
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("the parameter '%s' = '%s' is not an integer",
				x.key, val)
		}
		*x.dst = n
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"boxlen", &p.BoxLen}, {"time", &p.Time}, {"aexp", &p.AExp},
		{"H0", &p.H0}, {"omega_m", &p.OmegaM}, {"omega_l", &p.OmegaL},
		{"omega_k", &p.OmegaK}, {"omega_b", &p.OmegaB},
		{"unit_l", &p.UnitL}, {"unit_d", &p.UnitD}, {"unit_t", &p.UnitT},
	}
	for _, x := range floats {
		val, ok := p.Raw[x.key]
		if !ok {
			continue
		}
		f, err := parseFortranFloat(val)
		if err != nil {
			return nil, fmt.Errorf("the parameter '%s' = '%s' is not a number",
				x.key, val)
		}
		*x.dst = f
	}

	p.Ordering = p.Raw["ordering type"]

	if p.NCPU < 1 {
		return nil, fmt.Errorf("ncpu = %d, but must be positive", p.NCPU)
	} else if p.NDim < 1 || p.NDim > 3 {
		return nil, fmt.Errorf("ndim = %d, but must be 1, 2, or 3", p.NDim)
	} else if p.LevelMin < 1 || p.LevelMax < p.LevelMin {
		return nil, fmt.Errorf("levelmin = %d and levelmax = %d are not a "+
			"valid range of levels", p.LevelMin, p.LevelMax)
	}

	if p.Ordering == "hilbert" && len(p.HilbertMin) != p.NCPU {
		return nil, fmt.Errorf("the ordering is 'hilbert', but the domain "+
			"table has %d entries instead of ncpu = %d",
			len(p.HilbertMin), p.NCPU)
	}

	return p, nil
}

// parseFortranFloat also accepts Fortran's 'D' exponent marker.
func parseFortranFloat(s string) (float64, error) {
	s = strings.Replace(strings.Replace(s, "D", "E", 1), "d", "e", 1)
	return strconv.ParseFloat(s, 64)
}

// Options configures how a dataset is opened. The zero value reads every
// domain and every field.
type Options struct {
	// Fields overrides the names of the hydro variables, in on-disk order.
	Fields []string
	// BoundingBox restricts the domains which are read to those which could
	// overlap the box. Units are normalized to [0, 1).
	BoundingBox *octree.Box
	// Domains further restricts the domains which are read to this list of
	// 1-indexed domain ids.
	Domains []int
	// ByteOrder of the data files. Defaults to binary.LittleEndian.
	ByteOrder binary.ByteOrder
	// Threads is the number of domains read in parallel. Values less than 1
	// use one worker.
	Threads int
	Logger  *slog.Logger
	// Cosmological overrides automatic detection of cosmological runs.
	Cosmological *bool
	// CacheBytes bounds the size of the filled field cache. Zero disables it.
	CacheBytes int64
}

// Dataset is an opened RAMSES output.
type Dataset struct {
	Params   *Params
	InfoFile string
	Dir      string
	Output   int

	// MinLevel is the 0-indexed coarsest level and MaxLevel the number of
	// levels of refinement beyond it.
	MinLevel, MaxLevel int
	Dim                int
	Left, Right        r3.Vec
	DomainDims         [3]int

	Cosmological bool
	Redshift     float64

	Opts   Options
	logger *slog.Logger
}

// Valid returns true if infoFile looks like a RAMSES info file with a
// matching AMR file for the first domain.
func Valid(infoFile string) bool {
	base := filepath.Base(infoFile)
	if !strings.HasPrefix(base, "info_") {
		return false
	}
	out, err := outputNumber(infoFile)
	if err != nil {
		return false
	}
	amr, err := format.ExpandFileFormat(AMRFormat,
		map[string]int{"output": out, "domain": 1})
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(filepath.Dir(infoFile), amr))
	return err == nil
}

func outputNumber(infoFile string) (int, error) {
	base := filepath.Base(infoFile)
	stem := strings.SplitN(base, ".", 2)[0]
	tok := strings.Split(stem, "_")
	if len(tok) < 2 {
		return 0, fmt.Errorf("The file name '%s' does not follow the "+
			"info_XXXXX.txt naming convention.", base)
	}
	n, err := strconv.Atoi(tok[len(tok)-1])
	if err != nil {
		return 0, fmt.Errorf("The file name '%s' does not follow the "+
			"info_XXXXX.txt naming convention.", base)
	}
	return n, nil
}

// Open parses the info file of a RAMSES output. opts may be nil. No data
// files are opened.
func Open(infoFile string, opts *Options) (*Dataset, error) {
	ds := &Dataset{InfoFile: infoFile, Dir: filepath.Dir(infoFile)}
	if opts != nil {
		ds.Opts = *opts
	}
	if ds.Opts.ByteOrder == nil {
		ds.Opts.ByteOrder = binary.LittleEndian
	}
	ds.logger = ds.Opts.Logger
	if ds.logger == nil {
		ds.logger = slog.Default()
	}

	var err error
	if ds.Output, err = outputNumber(infoFile); err != nil {
		return nil, err
	}
	if ds.Params, err = ReadInfo(infoFile); err != nil {
		return nil, err
	}
	p := ds.Params

	if ds.Opts.BoundingBox != nil && p.Ordering != "hilbert" {
		return nil, &UnsupportedOrderingError{p.Ordering}
	}

	// RAMSES levels are 1-indexed and count octs, so levelmin = 1 is a single
	// root oct.
	ds.MinLevel = p.LevelMin - 1
	ds.MaxLevel = p.LevelMax - ds.MinLevel - 1
	ds.Dim = p.NDim
	ds.Left, ds.Right = r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}
	for a := 0; a < 3; a++ {
		ds.DomainDims[a] = 1
		if a < ds.Dim {
			ds.DomainDims[a] = 1 << uint(ds.MinLevel+1)
		}
	}

	if ds.Opts.Cosmological != nil {
		ds.Cosmological = *ds.Opts.Cosmological
	} else {
		ds.Cosmological = !(p.Time >= 0 && p.H0 == 1 && p.AExp == 1)
	}
	if ds.Cosmological && p.AExp > 0 {
		ds.Redshift = 1/p.AExp - 1
	}

	for _, id := range ds.Opts.Domains {
		if id < 1 || id > p.NCPU {
			return nil, fmt.Errorf("Domain %d was requested, but the output "+
				"only has domains 1 through %d.", id, p.NCPU)
		}
	}

	ds.logger.Debug("opened RAMSES output", "info", infoFile,
		"ncpu", p.NCPU, "ndim", p.NDim, "levelmin", p.LevelMin,
		"levelmax", p.LevelMax, "ordering", p.Ordering,
		"cosmological", ds.Cosmological)
	return ds, nil
}

// FileName expands a file format with this output's number and the given
// domain and returns the path to the file.
func (ds *Dataset) FileName(fileFormat string, domain int) (string, error) {
	name, err := format.ExpandFileFormat(fileFormat,
		map[string]int{"output": ds.Output, "domain": domain})
	if err != nil {
		return "", err
	}
	return filepath.Join(ds.Dir, name), nil
}

// Glob returns every file in the output's directory which matches a file
// format.
func (ds *Dataset) Glob(fileFormat string) []string {
	pattern, err := format.FileFormatGlob(fileFormat)
	if err != nil {
		return nil
	}
	matches, _ := filepath.Glob(filepath.Join(ds.Dir, pattern))
	return matches
}

// Logger returns the logger the dataset reports progress to.
func (ds *Dataset) Logger() *slog.Logger { return ds.logger }

// RootOcts returns the number of octs on the coarsest level along each axis.
func (ds *Dataset) RootOcts() [3]int {
	var out [3]int
	for a := range out {
		out[a] = ds.DomainDims[a] / 2
		if a >= ds.Dim {
			out[a] = 1
		}
	}
	return out
}

// CellWidth returns the width of a cell at the given relative level in
// normalized units.
func (ds *Dataset) CellWidth(level int) float64 {
	return math.Ldexp(1, -(ds.MinLevel + level + 1))
}
