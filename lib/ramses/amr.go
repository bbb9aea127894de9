package ramses

import (
	"fmt"
	"strings"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// amrHeaderGroup returns one of the three groups of records at the start of an AMR
// file. The sizes of later groups depend on values read from earlier ones,
// so it is called once per group with everything read so far.
func amrHeaderGroup(i int, hd *fortio.Attrs) []fortio.Attr {
	switch i {
	case 0:
		return []fortio.Attr{
			{Name: "ncpu", Count: 1, Type: fortio.Int32},
			{Name: "ndim", Count: 1, Type: fortio.Int32},
			{Name: "nx", Count: 3, Type: fortio.Int32},
			{Name: "nlevelmax", Count: 1, Type: fortio.Int32},
			{Name: "ngridmax", Count: 1, Type: fortio.Int32},
			{Name: "nboundary", Count: 1, Type: fortio.Int32},
			{Name: "ngrid_current", Count: 1, Type: fortio.Int32},
			{Name: "boxlen", Count: 1, Type: fortio.Float64},
			{Name: "nout", Count: 3, Type: fortio.Uint32},
		}
	case 1:
		noutput := hd.Ints("nout")[0]
		nlevelmax := hd.Int("nlevelmax")
		return []fortio.Attr{
			{Name: "tout", Count: noutput, Type: fortio.Float64},
			{Name: "aout", Count: noutput, Type: fortio.Float64},
			{Name: "t", Count: 1, Type: fortio.Float64},
			{Name: "dtold", Count: nlevelmax, Type: fortio.Float64},
			{Name: "dtnew", Count: nlevelmax, Type: fortio.Float64},
			{Name: "nstep", Count: 2, Type: fortio.Int32},
			{Name: "stat", Count: 3, Type: fortio.Float64},
			{Name: "cosm", Count: 7, Type: fortio.Float64},
			{Name: "timing", Count: 5, Type: fortio.Float64},
			{Name: "mass_sph", Count: 1, Type: fortio.Float64},
		}
	case 2:
		n := hd.Int("nlevelmax") * hd.Int("ncpu")
		return []fortio.Attr{
			{Name: "headl", Count: n, Type: fortio.Int32},
			{Name: "taill", Count: n, Type: fortio.Int32},
			{Name: "numbl", Count: n, Type: fortio.Int32},
		}
	}
	return nil
}

const amrHeaderGroups = 3

// amrHeader is the parsed header of an AMR file.
type amrHeader struct {
	attrs *fortio.Attrs

	ncpu, ndim, nlevelmax, nboundary int
	nx                               [3]int
	// numbl[level][cpu] is the number of octs owned by cpu on level.
	numbl [][]int
	// ngridbound is indexed by (cpu - ncpu) + nboundary*level.
	ngridbound []int
	ordering   string
	// octOffset is the byte offset of the first oct record.
	octOffset int64
}

// parseAMRHeader reads an AMR header and leaves r positioned at the first
// oct record.
func parseAMRHeader(r *fortio.Reader) (*amrHeader, error) {
	attrs := fortio.NewAttrs()
	for i := 0; i < amrHeaderGroups; i++ {
		group, err := r.ReadAttrs(amrHeaderGroup(i, attrs))
		if err != nil {
			return nil, err
		}
		attrs.Merge(group)
	}

	hd := &amrHeader{
		attrs:     attrs,
		ncpu:      attrs.Int("ncpu"),
		ndim:      attrs.Int("ndim"),
		nlevelmax: attrs.Int("nlevelmax"),
		nboundary: attrs.Int("nboundary"),
	}
	copy(hd.nx[:], attrs.Ints("nx"))

	flat := attrs.Ints("numbl")
	hd.numbl = make([][]int, hd.nlevelmax)
	for level := range hd.numbl {
		hd.numbl[level] = flat[level*hd.ncpu : (level+1)*hd.ncpu]
	}

	// numbtot
	if err := r.Skip(1); err != nil {
		return nil, err
	}

	if hd.nboundary > 0 {
		// headb and tailb
		if err := r.Skip(2); err != nil {
			return nil, err
		}
		v, err := r.ReadVector(fortio.Int32)
		if err != nil {
			return nil, err
		}
		if v.Len() != hd.nboundary*hd.nlevelmax {
			return nil, fmt.Errorf("The boundary oct count record has %d "+
				"entries, but nboundary*nlevelmax = %d.", v.Len(),
				hd.nboundary*hd.nlevelmax)
		}
		hd.ngridbound = make([]int, v.Len())
		for i := range hd.ngridbound {
			hd.ngridbound[i] = int(v.Ints[i])
		}
	} else {
		hd.ngridbound = make([]int, hd.nlevelmax)
	}

	freeMem, err := r.ReadAttrs([]fortio.Attr{{Name: "free_mem", Count: 5, Type: fortio.Int32}})
	if err != nil {
		return nil, err
	}
	attrs.Merge(freeMem)

	ordering, err := r.ReadVector(fortio.Char)
	if err != nil {
		return nil, err
	}
	hd.ordering = strings.TrimSpace(ordering.Str)
	attrs.Set("ordering", ordering)

	// bisection and Hilbert key bounds.
	if err := r.Skip(4); err != nil {
		return nil, err
	}
	hd.octOffset = r.Tell()

	return hd, nil
}

// octCount returns the number of octs stored for (cpu, level). cpus beyond
// ncpu are boundary domains.
func (hd *amrHeader) octCount(cpu, level int) int {
	if cpu < hd.ncpu {
		return hd.numbl[level][cpu]
	}
	return hd.ngridbound[cpu-hd.ncpu+hd.nboundary*level]
}
