package ramses

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// FieldName identifies a field by the kind of file it lives in and its name
// within that file.
type FieldName struct {
	Kind, Name string
}

func (f FieldName) String() string { return f.Kind + ":" + f.Name }

// ParseFieldName parses "kind:name". A bare name is assumed to be a hydro
// field.
func ParseFieldName(s string) FieldName {
	if i := strings.Index(s, ":"); i >= 0 {
		return FieldName{s[:i], s[i+1:]}
	}
	return FieldName{HydroKind.Name, s}
}

// FieldKind describes one kind of per-cell field file. Every kind shares the
// same block layout and differs only in its name, header, and how its field
// names are found.
type FieldKind struct {
	// Name is used as the Kind of every FieldName read from these files.
	Name string
	// FileFormat is a lib/format file format with "output" and "domain"
	// variables.
	FileFormat string
	// Descriptor is the name of a text file listing the fields, or "".
	Descriptor string
	// Attrs is the header at the start of every file. It must contain "nvar".
	Attrs []fortio.Attr
	// Exists returns true if the dataset has files of this kind.
	Exists func(ds *Dataset) bool
	// Fields returns the names of the fields given the header of the first
	// domain's file.
	Fields func(ds *Dataset, k *FieldKind, hd *fortio.Attrs) ([]string, error)
}

var fieldFileAttrs = []fortio.Attr{
	{Name: "ncpu", Count: 1, Type: fortio.Int32},
	{Name: "nvar", Count: 1, Type: fortio.Int32},
	{Name: "ndim", Count: 1, Type: fortio.Int32},
	{Name: "nlevelmax", Count: 1, Type: fortio.Int32},
	{Name: "nboundary", Count: 1, Type: fortio.Int32},
	{Name: "gamma", Count: 1, Type: fortio.Float64},
}

var (
	HydroKind = &FieldKind{
		Name:       "ramses",
		FileFormat: "hydro_{%05d,output}.out{%05d,domain}",
		Descriptor: "hydro_file_descriptor.txt",
		Attrs:      fieldFileAttrs,
		Exists:     anyFileExists("hydro_{%05d,output}.out{%05d,domain}"),
		Fields:     hydroFields,
	}

	RTKind = &FieldKind{
		Name:       "ramses-rt",
		FileFormat: "rt_{%05d,output}.out{%05d,domain}",
		Attrs:      fieldFileAttrs,
		Exists: func(ds *Dataset) bool {
			return len(ds.Glob(RTInfoFormat)) == 1
		},
		Fields: rtFields,
	}

	GravityKind = &FieldKind{
		Name:       "gravity",
		FileFormat: "grav_{%05d,output}.out{%05d,domain}",
		Attrs: []fortio.Attr{
			{Name: "ncpu", Count: 1, Type: fortio.Int32},
			{Name: "nvar", Count: 1, Type: fortio.Int32},
			{Name: "nlevelmax", Count: 1, Type: fortio.Int32},
			{Name: "nboundary", Count: 1, Type: fortio.Int32},
		},
		Exists: anyFileExists("grav_{%05d,output}.out{%05d,domain}"),
		Fields: gravityFields,
	}

	// FieldKinds lists every kind of field file in the order they are
	// detected.
	FieldKinds = []*FieldKind{HydroKind, RTKind, GravityKind}
)

const RTInfoFormat = "info_rt_{%05d,output}.txt"

func anyFileExists(fileFormat string) func(ds *Dataset) bool {
	return func(ds *Dataset) bool { return len(ds.Glob(fileFormat)) > 0 }
}

// FieldSchema is everything learned about a field kind from the first
// domain's file. Field names are shared by every domain.
type FieldSchema struct {
	Kind   *FieldKind
	Header *fortio.Attrs
	NVar   int
	// Fields are the field names in on-disk order.
	Fields []string
}

// Has returns true if the schema contains a field with the given name.
func (s *FieldSchema) Has(name string) bool {
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// FieldNames returns the schema's fields as FieldNames.
func (s *FieldSchema) FieldNames() []FieldName {
	out := make([]FieldName, len(s.Fields))
	for i := range out {
		out[i] = FieldName{s.Kind.Name, s.Fields[i]}
	}
	return out
}

// detectFields reads the header of the first domain's file and works out the
// names of the fields stored in it.
func detectFields(ds *Dataset, k *FieldKind) (*FieldSchema, error) {
	fname, err := ds.FileName(k.FileFormat, 1)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hd, err := fortio.NewReader(f, ds.Opts.ByteOrder).ReadAttrs(k.Attrs)
	if err != nil {
		return nil, fmt.Errorf("Could not read the header of '%s': %w", fname, err)
	}

	fields, err := k.Fields(ds, k, hd)
	if err != nil {
		return nil, err
	}

	nvar := hd.Int("nvar")
	extra := 0
	for len(fields) < nvar {
		fields = append(fields, "var"+strconv.Itoa(len(fields)))
		extra++
	}
	if extra > 0 {
		ds.logger.Debug("detected extra fields", "kind", k.Name, "count", extra)
	}
	if len(fields) > nvar {
		return nil, fmt.Errorf("%d %s fields were given, but '%s' only "+
			"stores %d variables.", len(fields), k.Name, fname, nvar)
	}

	ds.logger.Debug("detected field kind", "kind", k.Name, "nvar", nvar,
		"fields", fields)
	return &FieldSchema{Kind: k, Header: hd, NVar: nvar, Fields: fields}, nil
}

var (
	hydroStandard = []string{
		"Density", "x-velocity", "y-velocity", "z-velocity", "Pressure",
	}
	hydroMetals = append(append([]string{}, hydroStandard...), "Metallicity")
	hydroMHD    = []string{
		"Density", "x-velocity", "y-velocity", "z-velocity",
		"x-Bfield-left", "y-Bfield-left", "z-Bfield-left",
		"x-Bfield-right", "y-Bfield-right", "z-Bfield-right",
		"Pressure",
	}
	hydroMHDMetals = append(append([]string{}, hydroMHD...), "Metallicity")

	hydroRT = []string{
		"Density", "x-velocity", "y-velocity", "z-velocity", "Pressure",
		"Metallicity", "HII", "HeII", "HeIII",
	}
	hydroRTIR = []string{
		"Density", "x-velocity", "y-velocity", "z-velocity", "Pres_IR",
		"Pressure", "Metallicity", "HII", "HeII", "HeIII",
	}
)

func hydroFields(ds *Dataset, k *FieldKind, hd *fortio.Attrs) ([]string, error) {
	if len(ds.Opts.Fields) > 0 {
		return append([]string{}, ds.Opts.Fields...), nil
	}

	desc := filepath.Join(ds.Dir, k.Descriptor)
	if _, err := os.Stat(desc); err == nil {
		ds.logger.Debug("reading hydro file descriptor", "file", desc)
		fields, _, err := readDescriptor(desc, hydroNameMap, "hydro_")
		if err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			return fields, nil
		}
	}

	nvar := hd.Int("nvar")
	if len(ds.Glob(RTInfoFormat)) > 0 {
		if nvar < 10 {
			ds.logger.Info("detected RAMSES-RT file without IR trapping")
			return append([]string{}, hydroRT...), nil
		}
		ds.logger.Info("detected RAMSES-RT file with IR trapping")
		return append([]string{}, hydroRTIR...), nil
	}

	var fields []string
	switch {
	case nvar < 5:
		return nil, fmt.Errorf("The hydro files have nvar = %d variables, "+
			"which is too few to guess their names. Set the hydro field names "+
			"explicitly.", nvar)
	case nvar == 5:
		fields = hydroStandard
	case nvar < 11:
		fields = hydroMetals
	case nvar == 11:
		fields = hydroMHD
	default:
		fields = hydroMHDMetals
	}
	ds.logger.Debug("no hydro fields specified, guessing from nvar",
		"nvar", nvar, "fields", fields)
	return append([]string{}, fields...), nil
}

func rtFields(ds *Dataset, k *FieldKind, hd *fortio.Attrs) ([]string, error) {
	fname, err := ds.FileName(RTInfoFormat, 0)
	if err != nil {
		return nil, err
	}
	params, err := readKeyValues(fname)
	if err != nil {
		return nil, err
	}
	val, ok := params["nGroups"]
	if !ok {
		return nil, fmt.Errorf("The RT info file '%s' does not set nGroups.", fname)
	}
	ngroups, err := strconv.Atoi(val)
	if err != nil || ngroups < 0 {
		return nil, fmt.Errorf("The RT info file '%s' sets nGroups = '%s', "+
			"which is not a valid group count.", fname, val)
	}

	fields := []string{}
	for g := 1; g <= ngroups; g++ {
		for _, pattern := range []string{
			"Photon_density_%d", "Photon_flux_x_%d",
			"Photon_flux_y_%d", "Photon_flux_z_%d",
		} {
			fields = append(fields, fmt.Sprintf(pattern, g))
		}
	}
	return fields, nil
}

func gravityFields(ds *Dataset, k *FieldKind, hd *fortio.Attrs) ([]string, error) {
	all := []string{"Potential", "x-acceleration", "y-acceleration", "z-acceleration"}
	nvar := hd.Int("nvar")
	if nvar > len(all) {
		nvar = len(all)
	}
	return append([]string{}, all[:nvar]...), nil
}

// readKeyValues reads every "key = value" line of a text file.
func readKeyValues(fname string) (map[string]string, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := map[string]string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.Index(line, "="); i >= 0 {
			out[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
		}
	}
	return out, scanner.Err()
}

var (
	descriptorVersion = regexp.MustCompile(`# version: *(\d+)`)
	descriptorLine    = regexp.MustCompile(`^\s*(\d+),\s*(\w+),\s*(\w+)`)

	hydroNameMap = map[string]string{
		"density":     "Density",
		"velocity_x":  "x-velocity",
		"velocity_y":  "y-velocity",
		"velocity_z":  "z-velocity",
		"pressure":    "Pressure",
		"metallicity": "Metallicity",
		"B_x_left":    "B_x_left",
		"B_y_left":    "B_y_left",
		"B_z_left":    "B_z_left",
		"B_x_right":   "B_x_right",
		"B_y_right":   "B_y_right",
		"B_z_right":   "B_z_right",
	}
)

// readDescriptor reads a version 1 file descriptor, which looks like:
//
//	# version:  1
//	# ivar, variable_name, variable_type
//	  1, density, d
//	  2, velocity_x, d
//
// Names in nameMap are renamed and all other names are given prefix. Files
// without a version line are old-style descriptors and produce no fields.
func readDescriptor(
	fname string, nameMap map[string]string, prefix string,
) (names, types []string, err error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, nil, scanner.Err()
	}
	m := descriptorVersion.FindStringSubmatch(scanner.Text())
	if m == nil {
		return nil, nil, nil
	}
	if version, _ := strconv.Atoi(m[1]); version != 1 {
		return nil, nil, fmt.Errorf("The file descriptor '%s' has version "+
			"%s, but only version 1 is supported.", fname, m[1])
	}

	// Column names.
	scanner.Scan()

	for lineNum := 3; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := descriptorLine.FindStringSubmatch(line)
		if m == nil {
			return nil, nil, fmt.Errorf("Line %d of the file descriptor "+
				"'%s', '%s', could not be parsed.", lineNum, fname, line)
		}
		name := m[2]
		if mapped, ok := nameMap[name]; ok {
			name = mapped
		} else {
			name = prefix + name
		}
		names = append(names, name)
		types = append(types, m[3])
	}
	return names, types, scanner.Err()
}
