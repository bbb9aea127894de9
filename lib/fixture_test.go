package lib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// writeSingleOct writes a 3D RAMSES output with one domain holding one root
// oct at the center of the box and nvar hydro variables. Cell c of variable
// v holds 10*v + c. It returns the path of the info file.
func writeSingleOct(t *testing.T, nvar int) string {
	t.Helper()
	dir := t.TempDir()

	info := fmt.Sprintf(`ncpu        =          1
ndim        =          3
levelmin    =          1
levelmax    =          1
ngridmax    =       1000
nstep_coarse=         10

boxlen      =  0.100000000000000E+01
time        =  0.250000000000000E+00
aexp        =  0.100000000000000E+01
H0          =  0.100000000000000E+01
omega_m     =  0.300000000000000E+00
omega_l     =  0.700000000000000E+00
omega_k     =  0.000000000000000E+00
omega_b     =  0.450000000000000E-01
unit_l      =  0.300000000000000E+25
unit_d      =  0.100000000000000E-28
unit_t      =  0.100000000000000E+18

ordering type=hilbert
   DOMAIN   ind_min                 ind_max
%8d  0.000000000000000E+00  0.800000000000000E+01
`, 1)
	infoFile := filepath.Join(dir, "info_00001.txt")
	if err := os.WriteFile(infoFile, []byte(info), 0644); err != nil {
		t.Fatalf("Could not write info file: %v", err)
	}

	zeros := func(n int) []int32 { return make([]int32, n) }
	floats := func(n int) []float64 { return make([]float64, n) }
	one := []int32{1}

	amr := []interface{}{
		int32(1), int32(3), []int32{3, 3, 3}, int32(1), int32(1000),
		int32(0), int32(0), float64(1), []uint32{1, 1, 1},

		[]float64{0}, []float64{1}, float64(0), floats(1), floats(1),
		[]int32{0, 0}, floats(3), floats(7), floats(5), float64(0),

		zeros(1), zeros(1), one,

		zeros(10),
		zeros(5), fmt.Sprintf("%-128s", "hilbert"),
		[]float64{0}, []float64{0}, []float64{0}, []float64{0},

		one, zeros(1), zeros(1),
		[]float64{1.5}, []float64{1.5}, []float64{1.5},
	}
	for i := 0; i < 1+2*3+3*8; i++ {
		amr = append(amr, zeros(1))
	}
	writeFixtureRecords(t, filepath.Join(dir, "amr_00001.out00001"), amr)

	hydro := []interface{}{
		int32(1), int32(nvar), int32(3), int32(1), int32(0), float64(1.4),
		uint32(1), uint32(1),
	}
	for cell := 0; cell < 8; cell++ {
		for v := 0; v < nvar; v++ {
			hydro = append(hydro, []float64{float64(10*v + cell)})
		}
	}
	writeFixtureRecords(t, filepath.Join(dir, "hydro_00001.out00001"), hydro)

	return infoFile
}

func writeFixtureRecords(t *testing.T, fname string, xs []interface{}) {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := fortio.NewWriter(buf, binary.LittleEndian).WriteVectors(xs...); err != nil {
		t.Fatalf("Could not encode '%s': %v", fname, err)
	}
	if err := os.WriteFile(fname, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Could not write '%s': %v", fname, err)
	}
}
