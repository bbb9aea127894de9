package ramses

import (
	"fmt"
	"os"

	"github.com/phil-mansfield/amrio/lib/fortio"
	"github.com/phil-mansfield/amrio/lib/octree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// DomainReader holds the octree of a single domain along with handles to
// every field and particle file written by that domain.
type DomainReader struct {
	// ID is the 1-indexed domain id.
	ID      int
	AMRFile string

	// LocalOctCount is the number of octs this domain owns at or above the
	// dataset's minimum level.
	LocalOctCount int
	// TotalOctCount[cpu] is the number of octs owned by each cpu, summed
	// over every level.
	TotalOctCount []int
	// NGridBound holds the boundary oct counts, indexed by
	// (cpu - ncpu) + nboundary*level.
	NGridBound []int
	// MaxLevel is the deepest relative level at which any oct was inserted.
	MaxLevel int

	Octree    *octree.Octree
	Fields    []*FieldFileHandler
	Particles []*ParticleFileHandler

	ds     *Dataset
	header *amrHeader
}

// newDomainReader parses the AMR file of a domain and attaches handlers for
// every detected field and particle kind. If any step fails, no reader is
// returned.
func newDomainReader(
	ds *Dataset, id int, fields []*FieldSchema, particles []*ParticleSchema,
) (*DomainReader, error) {
	amrFile, err := ds.FileName(AMRFormat, id)
	if err != nil {
		return nil, err
	}
	d := &DomainReader{ID: id, AMRFile: amrFile, ds: ds}

	if err := d.readHeader(); err != nil {
		return nil, fmt.Errorf("Could not read the AMR header of '%s': %w",
			amrFile, err)
	}

	for _, schema := range fields {
		h, err := newFieldFileHandler(d, schema)
		if err != nil {
			return nil, err
		}
		d.Fields = append(d.Fields, h)
	}
	for _, schema := range particles {
		h, err := newParticleFileHandler(d, schema)
		if err != nil {
			return nil, err
		}
		d.Particles = append(d.Particles, h)
	}

	if err := d.readOcts(); err != nil {
		return nil, err
	}
	return d, nil
}

// Header returns every attribute read from the AMR header.
func (d *DomainReader) Header() *fortio.Attrs { return d.header.attrs }

func (d *DomainReader) readHeader() error {
	f, err := os.Open(d.AMRFile)
	if err != nil {
		return err
	}
	defer f.Close()

	hd, err := parseAMRHeader(fortio.NewReader(f, d.ds.Opts.ByteOrder))
	if err != nil {
		return err
	}
	if hd.ndim != d.ds.Dim {
		return fmt.Errorf("The AMR file has ndim = %d, but the info file "+
			"has ndim = %d.", hd.ndim, d.ds.Dim)
	} else if hd.ncpu != d.ds.Params.NCPU {
		return fmt.Errorf("The AMR file has ncpu = %d, but the info file "+
			"has ncpu = %d.", hd.ncpu, d.ds.Params.NCPU)
	} else if d.ds.MinLevel > hd.nlevelmax {
		return fmt.Errorf("The AMR file has nlevelmax = %d, which is below "+
			"the info file's levelmin = %d.", hd.nlevelmax, d.ds.Params.LevelMin)
	}
	d.header = hd

	d.TotalOctCount = make([]int, hd.ncpu)
	for level := 0; level < hd.nlevelmax; level++ {
		for cpu := 0; cpu < hd.ncpu; cpu++ {
			n := hd.numbl[level][cpu]
			d.TotalOctCount[cpu] += n
			if level >= d.ds.MinLevel && cpu == d.ID-1 {
				d.LocalOctCount += n
			}
		}
	}
	d.NGridBound = hd.ngridbound

	return nil
}

// readOcts streams every oct record into a new octree.
func (d *DomainReader) readOcts() error {
	f, err := os.Open(d.AMRFile)
	if err != nil {
		return err
	}
	defer f.Close()

	ds, hd := d.ds, d.header
	r := fortio.NewReader(f, ds.Opts.ByteOrder)
	if err := r.Seek(hd.octOffset); err != nil {
		return err
	}

	b := octree.NewBuilder(ds.Dim, ds.RootOcts(), ds.Left, ds.Right)
	roots := 0
	if ds.MinLevel < hd.nlevelmax {
		for _, n := range hd.numbl[ds.MinLevel] {
			roots += n
		}
	}
	b.AllocateDomains(d.TotalOctCount, roots)

	var shift [3]float64
	for a := 0; a < 3; a++ {
		shift[a] = float64(hd.nx[a]-1) / 2
	}

	ndim := ds.Dim
	cellsPerOct := 1 << uint(ndim)
	coords := [3][]float64{}

	d.ds.logger.Debug("reading domain AMR", "domain", d.ID,
		"octs", floats.Sum(intsToFloats(d.TotalOctCount)),
		"boundary_octs", floats.Sum(intsToFloats(d.NGridBound)))

	maxLevel := 0
	for level := 0; level < hd.nlevelmax; level++ {
		for cpu := 0; cpu < hd.ncpu+hd.nboundary; cpu++ {
			ng := hd.octCount(cpu, level)
			if ng == 0 {
				continue
			}

			// Grid index, then next and previous links.
			if err := r.Skip(3); err != nil {
				return d.wrap(err)
			}

			for a := 0; a < ndim; a++ {
				x, err := r.ReadFloat64s()
				if err != nil {
					return d.wrap(err)
				}
				if len(x) != ng {
					return d.wrap(fmt.Errorf("the %c coordinates of (level "+
						"%d, cpu %d) hold %d octs, but the header declares %d",
						"xyz"[a], level, cpu, len(x), ng))
				}
				for i := range x {
					x[i] -= shift[a]
				}
				coords[a] = x
			}

			// Father index, neighbor indices, then child indices, cpu map,
			// and refinement map.
			if err := r.Skip(1 + 2*ndim + 3*cellsPerOct); err != nil {
				return d.wrap(err)
			}

			if level < ds.MinLevel {
				continue
			}

			pos := make([]r3.Vec, ng)
			for i := range pos {
				v := [3]float64{0.5, 0.5, 0.5}
				for a := 0; a < ndim; a++ {
					v[a] = coords[a][i]
				}
				pos[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
			}

			n := b.Add(cpu+1, level-ds.MinLevel, pos)
			if err := d.checkInsert(b, cpu, level, n, ng, coords, shift); err != nil {
				return err
			}
			if n > 0 && level-ds.MinLevel > maxLevel {
				maxLevel = level - ds.MinLevel
			}
		}
	}

	d.MaxLevel = maxLevel
	d.Octree = b.Finalize()
	return nil
}

// checkInsert verifies that every oct was inserted. Octs belonging to cpus
// the octree doesn't track are legitimately declined.
func (d *DomainReader) checkInsert(
	b *octree.Builder, cpu, level, n, ng int,
	coords [3][]float64, shift [3]float64,
) error {
	if n == ng || cpu+1 > b.NumDomains() {
		return nil
	}

	err := &StructuralIntegrityError{
		File: d.AMRFile, Level: level, CPU: cpu,
		Requested: ng, Inserted: n,
		Left: d.ds.Left, Right: d.ds.Right, Shift: shift,
		Header: d.header.attrs,
	}
	for a := 0; a < 3; a++ {
		if a < d.ds.Dim {
			err.Extent[a] = [2]float64{floats.Min(coords[a]), floats.Max(coords[a])}
		} else {
			err.Extent[a] = [2]float64{0.5, 0.5}
		}
	}
	return err
}

func (d *DomainReader) wrap(err error) error {
	return fmt.Errorf("Could not read the octs of '%s': %w", d.AMRFile, err)
}

// Included returns true if the selector could select any cell owned by this
// domain.
func (d *DomainReader) Included(sel octree.Selector) bool {
	for _, id := range d.Octree.DomainIdentify(sel) {
		if id == d.ID {
			return true
		}
	}
	return false
}

// LevelCount returns the number of octs at each relative level of this
// domain. It is taken from the first field file when there is one and from
// the octree otherwise.
func (d *DomainReader) LevelCount() ([]int, error) {
	if len(d.Fields) > 0 {
		return d.Fields[0].LevelCount()
	}
	n := d.header.nlevelmax - d.ds.MinLevel
	out := make([]int, n)
	copy(out, d.Octree.LevelCounts(d.ID))
	return out, nil
}

// Field returns the handler for the given field kind, or nil.
func (d *DomainReader) Field(kind string) *FieldFileHandler {
	for _, h := range d.Fields {
		if h.Kind() == kind {
			return h
		}
	}
	return nil
}

func intsToFloats(x []int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = float64(x[i])
	}
	return out
}
