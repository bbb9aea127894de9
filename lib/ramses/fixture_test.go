package ramses

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// The helpers in this file write small synthetic RAMSES outputs.

type infoFixture struct {
	ncpu, ndim, levelmin, levelmax int
	time, aexp, h0                 float64
	ordering                       string
	// keys holds the Hilbert key boundaries, ncpu + 1 of them.
	keys []float64
}

func writeInfo(t *testing.T, dir string, output int, fx infoFixture) string {
	t.Helper()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "ncpu        =%11d\n", fx.ncpu)
	fmt.Fprintf(sb, "ndim        =%11d\n", fx.ndim)
	fmt.Fprintf(sb, "levelmin    =%11d\n", fx.levelmin)
	fmt.Fprintf(sb, "levelmax    =%11d\n", fx.levelmax)
	fmt.Fprintf(sb, "ngridmax    =%11d\n", 1000)
	fmt.Fprintf(sb, "nstep_coarse=%11d\n", 10)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "boxlen      = %23.15E\n", 1.0)
	fmt.Fprintf(sb, "time        = %23.15E\n", fx.time)
	fmt.Fprintf(sb, "aexp        = %23.15E\n", fx.aexp)
	fmt.Fprintf(sb, "H0          = %23.15E\n", fx.h0)
	fmt.Fprintf(sb, "omega_m     = %23.15E\n", 0.3)
	fmt.Fprintf(sb, "omega_l     = %23.15E\n", 0.7)
	fmt.Fprintf(sb, "omega_k     = %23.15E\n", 0.0)
	fmt.Fprintf(sb, "omega_b     = %23.15E\n", 0.045)
	fmt.Fprintf(sb, "unit_l      = %23.15E\n", 3e24)
	fmt.Fprintf(sb, "unit_d      = %23.15E\n", 1e-29)
	fmt.Fprintf(sb, "unit_t      = %23.15E\n", 1e17)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "ordering type=%s\n", fx.ordering)
	if fx.ordering == "hilbert" {
		sb.WriteString("   DOMAIN   ind_min                 ind_max\n")
		for i := 0; i < fx.ncpu; i++ {
			fmt.Fprintf(sb, "%8d %23.15E %23.15E\n", i+1, fx.keys[i], fx.keys[i+1])
		}
	}

	fname := filepath.Join(dir, fmt.Sprintf("info_%05d.txt", output))
	if err := os.WriteFile(fname, []byte(sb.String()), 0644); err != nil {
		t.Fatalf("Could not write info file: %v", err)
	}
	return fname
}

type blockKey struct{ level, cpu int }

type amrFixture struct {
	ncpu, ndim, nlevelmax, nboundary int
	nx                               [3]int32
	// numbl[level][cpu]
	numbl [][]int
	// ngridbound[(cpu - ncpu) + nboundary*level]
	ngridbound []int
	// pos holds the normalized oct centers of each block. The nx shift is
	// added back when the file is written.
	pos map[blockKey][][3]float64
}

func int32s(n int, x int32) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = x
	}
	return out
}

func float64s(n int, x float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = x
	}
	return out
}

func (fx *amrFixture) octCount(cpu, level int) int {
	if cpu < fx.ncpu {
		return fx.numbl[level][cpu]
	}
	return fx.ngridbound[cpu-fx.ncpu+fx.nboundary*level]
}

func writeRecords(t *testing.T, fname string, xs ...interface{}) {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := fortio.NewWriter(buf, binary.LittleEndian).WriteVectors(xs...); err != nil {
		t.Fatalf("Could not encode '%s': %v", fname, err)
	}
	if err := os.WriteFile(fname, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Could not write '%s': %v", fname, err)
	}
}

func writeAMR(t *testing.T, fname string, fx amrFixture) {
	t.Helper()
	nl, ncpu := fx.nlevelmax, fx.ncpu

	numbl := make([]int32, nl*ncpu)
	for level := 0; level < nl; level++ {
		for cpu := 0; cpu < ncpu; cpu++ {
			numbl[level*ncpu+cpu] = int32(fx.numbl[level][cpu])
		}
	}

	xs := []interface{}{
		int32(ncpu), int32(fx.ndim), fx.nx[:], int32(nl), int32(1000),
		int32(fx.nboundary), int32(0), float64(1), []uint32{1, 1, 1},

		[]float64{0}, []float64{1}, float64(0), float64s(nl, 0),
		float64s(nl, 0), []int32{0, 0}, float64s(3, 0), float64s(7, 0),
		float64s(5, 0), float64(0),

		int32s(nl*ncpu, 0), int32s(nl*ncpu, 0), numbl,

		int32s(10*nl, 0),
	}
	if fx.nboundary > 0 {
		ngb := make([]int32, len(fx.ngridbound))
		for i := range ngb {
			ngb[i] = int32(fx.ngridbound[i])
		}
		xs = append(xs, int32s(nl*fx.nboundary, 0),
			int32s(nl*fx.nboundary, 0), ngb)
	}
	xs = append(xs, int32s(5, 0), fmt.Sprintf("%-128s", "hilbert"),
		[]float64{0}, []float64{0}, []float64{0}, []float64{0})

	nc := 1 << uint(fx.ndim)
	for level := 0; level < nl; level++ {
		for cpu := 0; cpu < ncpu+fx.nboundary; cpu++ {
			ng := fx.octCount(cpu, level)
			if ng == 0 {
				continue
			}
			pos := fx.pos[blockKey{level, cpu}]
			if len(pos) != ng {
				t.Fatalf("Fixture has %d positions for (level %d, cpu %d), "+
					"but declares %d octs.", len(pos), level, cpu, ng)
			}

			xs = append(xs, int32s(ng, 1), int32s(ng, 0), int32s(ng, 0))
			for a := 0; a < fx.ndim; a++ {
				x := make([]float64, ng)
				shift := float64(fx.nx[a]-1) / 2
				for i := range x {
					x[i] = pos[i][a] + shift
				}
				xs = append(xs, x)
			}
			for i := 0; i < 1+2*fx.ndim+3*nc; i++ {
				xs = append(xs, int32s(ng, 0))
			}
		}
	}

	writeRecords(t, fname, xs...)
}

// fieldValue is the value stored in synthetic field files.
func fieldValue(level, cpu, cell, ivar, oct int) float64 {
	return float64(10000*ivar + 1000*level + 100*cpu + 10*cell + oct)
}

// writeFieldFile writes a hydro-style field file whose blocks mirror the
// octs of an amrFixture.
func writeFieldFile(t *testing.T, fname string, fx amrFixture, nvar int) {
	t.Helper()
	xs := []interface{}{
		int32(fx.ncpu), int32(nvar), int32(fx.ndim), int32(fx.nlevelmax),
		int32(fx.nboundary), float64(1.4),
	}

	nc := 1 << uint(fx.ndim)
	for level := 0; level < fx.nlevelmax; level++ {
		for cpu := 0; cpu < fx.ncpu+fx.nboundary; cpu++ {
			ng := fx.octCount(cpu, level)
			xs = append(xs, uint32(level+1), uint32(ng))
			if ng == 0 {
				continue
			}
			for cell := 0; cell < nc; cell++ {
				for ivar := 0; ivar < nvar; ivar++ {
					x := make([]float64, ng)
					for oct := range x {
						x[oct] = fieldValue(level, cpu, cell, ivar, oct)
					}
					xs = append(xs, x)
				}
			}
		}
	}

	writeRecords(t, fname, xs...)
}

// output is a synthetic RAMSES output directory.
type output struct {
	dir, info string
	amr       amrFixture
}

func (o *output) path(format string, domain int) string {
	return filepath.Join(o.dir, fmt.Sprintf(format, 1, domain))
}

// newOutput writes info, AMR, and (if nvar > 0) hydro files for every
// domain of an amrFixture. Every domain shares the same AMR file contents.
func newOutput(t *testing.T, info infoFixture, amr amrFixture, nvar int) *output {
	t.Helper()
	o := &output{dir: t.TempDir(), amr: amr}
	o.info = writeInfo(t, o.dir, 1, info)
	for d := 1; d <= amr.ncpu; d++ {
		writeAMR(t, o.path("amr_%05d.out%05d", d), amr)
		if nvar > 0 {
			writeFieldFile(t, o.path("hydro_%05d.out%05d", d), amr, nvar)
		}
	}
	return o
}

// singleOctFixture is a 3D output with one root oct in one domain.
func singleOctFixture() (infoFixture, amrFixture) {
	info := infoFixture{
		ncpu: 1, ndim: 3, levelmin: 1, levelmax: 1,
		time: 0, aexp: 1, h0: 1, ordering: "hilbert", keys: []float64{0, 8},
	}
	amr := amrFixture{
		ncpu: 1, ndim: 3, nlevelmax: 1, nx: [3]int32{3, 3, 3},
		numbl: [][]int{{1}},
		pos:   map[blockKey][][3]float64{{0, 0}: {{0.5, 0.5, 0.5}}},
	}
	return info, amr
}

// lineFixture is a 1D output with four octs on its only stored level.
func lineFixture() (infoFixture, amrFixture) {
	info := infoFixture{
		ncpu: 1, ndim: 1, levelmin: 3, levelmax: 3,
		time: 0, aexp: 1, h0: 1, ordering: "hilbert", keys: []float64{0, 16},
	}
	amr := amrFixture{
		ncpu: 1, ndim: 1, nlevelmax: 3, nx: [3]int32{1, 1, 1},
		numbl: [][]int{{0}, {0}, {4}},
		pos: map[blockKey][][3]float64{
			{2, 0}: {{0.125}, {0.375}, {0.625}, {0.875}},
		},
	}
	return info, amr
}
