package ramses

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const infoText = `ncpu        =          2
ndim        =          3
levelmin    =          7
levelmax    =         16
ngridmax    =    1000000
nstep_coarse=        482

boxlen      =  0.100000000000000E+01
time        = -0.263314296232416D+01
aexp        =  0.500000000000000E+00
H0          =  0.703000030517578E+02
omega_m     =  0.276000022888184E+00
omega_l     =  0.723999977111816E+00
omega_k     =  0.000000000000000E+00
omega_b     =  0.449999980628490E-01
unit_l      =  0.227847922737399E+27
unit_d      =  0.120001330356224E-28
unit_t      =  0.219664829630300E+18

ordering type=hilbert
   DOMAIN   ind_min                 ind_max
       1   0.000000000000000E+00   0.262144000000000E+06
       2   0.262144000000000E+06   0.209715200000000E+07
`

func TestParseInfo(t *testing.T) {
	p, err := parseInfo(strings.NewReader(infoText))
	if err != nil {
		t.Fatalf("parseInfo() returned error: %v", err)
	}

	ints := []struct {
		name     string
		got, exp int
	}{
		{"ncpu", p.NCPU, 2}, {"ndim", p.NDim, 3},
		{"levelmin", p.LevelMin, 7}, {"levelmax", p.LevelMax, 16},
		{"ngridmax", p.NGridMax, 1000000}, {"nstep_coarse", p.NStepCoarse, 482},
	}
	for i := range ints {
		if ints[i].got != ints[i].exp {
			t.Errorf("%d) Expected %s = %d, got %d.",
				i, ints[i].name, ints[i].exp, ints[i].got)
		}
	}

	floats := []struct {
		name     string
		got, exp float64
	}{
		{"time", p.Time, -2.63314296232416}, {"aexp", p.AExp, 0.5},
		{"H0", p.H0, 70.3000030517578}, {"omega_b", p.OmegaB, 0.044999998062849},
	}
	for i := range floats {
		if math.Abs(floats[i].got-floats[i].exp) > 1e-12 {
			t.Errorf("%d) Expected %s = %g, got %g.",
				i, floats[i].name, floats[i].exp, floats[i].got)
		}
	}

	if p.Ordering != "hilbert" {
		t.Errorf("Expected ordering 'hilbert', got '%s'.", p.Ordering)
	}
	if len(p.HilbertMin) != 2 || p.HilbertMin[1] != 262144 ||
		p.HilbertMax[1] != 2097152 {
		t.Errorf("Expected domain table [0 262144] [262144 2097152], got "+
			"%g %g.", p.HilbertMin, p.HilbertMax)
	}
}

func TestParseInfoErrors(t *testing.T) {
	tests := []struct {
		old, new string
	}{
		{"ncpu        =          2\n", ""},
		{"levelmin    =          7", "levelmin    =      seven"},
		{"levelmax    =         16", "levelmax    =          3"},
		{"ndim        =          3", "ndim        =          4"},
		{"       2   0.262144000000000E+06   0.209715200000000E+07\n", ""},
		{"0.262144000000000E+06   0.209715200000000E+07", "0.2621E+06"},
		{"aexp        =  0.500000000000000E+00", "aexp        =  half"},
	}

	for i := range tests {
		text := strings.Replace(infoText, tests[i].old, tests[i].new, 1)
		if text == infoText {
			t.Fatalf("%d) Test case does not modify the info file.", i)
		}
		if _, err := parseInfo(strings.NewReader(text)); err == nil {
			t.Errorf("%d) Expected an error.", i)
		}
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "info_00042.txt")
	if err := os.WriteFile(fname, []byte(infoText), 0644); err != nil {
		t.Fatalf("Could not write '%s': %v", fname, err)
	}

	ds, err := Open(fname, nil)
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if ds.Output != 42 {
		t.Errorf("Expected output 42, got %d.", ds.Output)
	}
	if ds.MinLevel != 6 || ds.MaxLevel != 9 {
		t.Errorf("Expected levels (6, 9), got (%d, %d).", ds.MinLevel, ds.MaxLevel)
	}
	if ds.DomainDims != [3]int{128, 128, 128} {
		t.Errorf("Expected 128^3 root cells, got %d.", ds.DomainDims)
	}
	if ds.RootOcts() != [3]int{64, 64, 64} {
		t.Errorf("Expected 64^3 root octs, got %d.", ds.RootOcts())
	}
	if !ds.Cosmological || math.Abs(ds.Redshift-1) > 1e-12 {
		t.Errorf("Expected a cosmological run at z = 1, got %v at z = %g.",
			ds.Cosmological, ds.Redshift)
	}
	if w := ds.CellWidth(0); w != 1.0/128 {
		t.Errorf("Expected a root cell width of 1/128, got %g.", w)
	}

	amr, err := ds.FileName(AMRFormat, 2)
	if err != nil {
		t.Fatalf("FileName() returned error: %v", err)
	}
	if exp := filepath.Join(dir, "amr_00042.out00002"); amr != exp {
		t.Errorf("Expected '%s', got '%s'.", exp, amr)
	}

	if Valid(fname) {
		t.Errorf("Expected '%s' to be invalid without AMR files.", fname)
	}
	if err := os.WriteFile(amr[:len(amr)-1]+"1", nil, 0644); err != nil {
		t.Fatalf("Could not write AMR file: %v", err)
	}
	if !Valid(fname) {
		t.Errorf("Expected '%s' to be valid.", fname)
	}

	noncosmo := false
	ds, err = Open(fname, &Options{Cosmological: &noncosmo})
	if err != nil {
		t.Fatalf("Open() returned error: %v", err)
	}
	if ds.Cosmological || ds.Redshift != 0 {
		t.Errorf("Expected a non-cosmological run.")
	}

	if _, err := Open(filepath.Join(dir, "output.txt"), nil); err == nil {
		t.Errorf("Expected an error for a badly named info file.")
	}
}
