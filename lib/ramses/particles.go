package ramses

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// ParticleKind describes one kind of particle file. Only the headers of
// particle files are read.
type ParticleKind struct {
	Name       string
	FileFormat string
	Descriptor string
	Attrs      []fortio.Attr
	// CountAttr is the header attribute holding the number of particles in
	// the file.
	CountAttr string
	Exists    func(ds *Dataset) bool
}

var (
	IOParticleKind = &ParticleKind{
		Name:       "io",
		FileFormat: "part_{%05d,output}.out{%05d,domain}",
		Descriptor: "part_file_descriptor.txt",
		Attrs: []fortio.Attr{
			{Name: "ncpu", Count: 1, Type: fortio.Int32},
			{Name: "ndim", Count: 1, Type: fortio.Int32},
			{Name: "npart", Count: 1, Type: fortio.Int32},
			{Name: "localseed", Count: 4, Type: fortio.Int32},
			{Name: "nstar_tot", Count: 1, Type: fortio.Int32},
			{Name: "mstar_tot", Count: 1, Type: fortio.Float64},
			{Name: "mstar_lost", Count: 1, Type: fortio.Float64},
			{Name: "nsink", Count: 1, Type: fortio.Int32},
		},
		CountAttr: "npart",
		Exists:    anyFileExists("part_{%05d,output}.out{%05d,domain}"),
	}

	// ParticleKinds lists every kind of particle file.
	ParticleKinds = []*ParticleKind{IOParticleKind}

	classicParticleFields = []string{
		"particle_position_x", "particle_position_y", "particle_position_z",
		"particle_velocity_x", "particle_velocity_y", "particle_velocity_z",
		"particle_mass", "particle_identifier", "particle_refinement_level",
	}
)

// familyField is the per-particle family code written by newer RAMSES
// versions.
const familyField = "particle_family"

// ParticleSchema is the field list of a particle kind.
type ParticleSchema struct {
	Kind   *ParticleKind
	Fields []string
	// Types holds the descriptor's type code for each field, if known.
	Types []string
}

// HasFamilies returns true if the kind's files store particle_family.
func (s *ParticleSchema) HasFamilies() bool {
	return s.fieldIndex(familyField) >= 0
}

func (s *ParticleSchema) fieldIndex(name string) int {
	for i := range s.Fields {
		if s.Fields[i] == name {
			return i
		}
	}
	return -1
}

// FieldNames returns the schema's fields as FieldNames. If the files store
// particle families, every family is also registered as its own particle
// type with the same fields, e.g. star:particle_mass.
func (s *ParticleSchema) FieldNames() []FieldName {
	out := make([]FieldName, 0, len(s.Fields))
	for _, name := range s.Fields {
		out = append(out, FieldName{s.Kind.Name, name})
	}
	if !s.HasFamilies() {
		return out
	}
	for _, f := range Families {
		for _, name := range s.Fields {
			out = append(out, FieldName{f.String(), name})
		}
	}
	return out
}

func detectParticleFields(ds *Dataset, k *ParticleKind) (*ParticleSchema, error) {
	s := &ParticleSchema{Kind: k}
	if k.Descriptor != "" {
		desc := filepath.Join(ds.Dir, k.Descriptor)
		if _, err := os.Stat(desc); err == nil {
			names, types, err := readDescriptor(desc, nil, "")
			if err != nil {
				return nil, err
			}
			s.Fields, s.Types = names, types
		}
	}
	if len(s.Fields) == 0 {
		s.Fields = append([]string{}, classicParticleFields...)
	}
	ds.logger.Debug("detected particle kind", "kind", k.Name, "fields", s.Fields)
	return s, nil
}

// ParticleFileHandler is the header of one domain's particle file.
type ParticleFileHandler struct {
	Schema *ParticleSchema
	File   string
	Header *fortio.Attrs
	// LocalCount is the number of particles in the file.
	LocalCount int
}

func newParticleFileHandler(d *DomainReader, s *ParticleSchema) (*ParticleFileHandler, error) {
	fname, err := d.ds.FileName(s.Kind.FileFormat, d.ID)
	if err != nil {
		return nil, err
	}
	h := &ParticleFileHandler{Schema: s, File: fname}

	f, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h.Header, err = fortio.NewReader(f, d.ds.Opts.ByteOrder).ReadAttrs(s.Kind.Attrs)
	if err != nil {
		return nil, fmt.Errorf("Could not read the header of '%s': %w", fname, err)
	}
	h.LocalCount = h.Header.Int(s.Kind.CountAttr)
	return h, nil
}

// Kind returns the name of the handler's particle kind.
func (h *ParticleFileHandler) Kind() string { return h.Schema.Kind.Name }

// FamilyCounts reads the particle_family record of the file and returns the
// number of particles in every family. The record is a one-byte code per
// particle, stored after the header in field order.
func (h *ParticleFileHandler) FamilyCounts(order binary.ByteOrder) (map[Family]int, error) {
	i := h.Schema.fieldIndex(familyField)
	if i < 0 {
		return nil, fmt.Errorf("The %s particle files do not store %s.",
			h.Kind(), familyField)
	}

	f, err := os.Open(h.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := fortio.NewReader(f, order)
	if err := r.Skip(len(h.Schema.Kind.Attrs) + i); err != nil {
		return nil, fmt.Errorf("Could not find %s in '%s': %w",
			familyField, h.File, err)
	}
	payload, err := r.ReadRecord()
	if err != nil {
		return nil, fmt.Errorf("Could not read %s in '%s': %w",
			familyField, h.File, err)
	}
	if len(payload) != h.LocalCount {
		return nil, fmt.Errorf("The %s record of '%s' holds %d bytes, but "+
			"the file has %d particles.", familyField, h.File, len(payload),
			h.LocalCount)
	}

	codes := make([]int8, len(payload))
	for j := range payload {
		codes[j] = int8(payload[j])
	}
	out := map[Family]int{}
	for _, fam := range Families {
		if n := len(fam.Select(codes)); n > 0 {
			out[fam] = n
		}
	}
	return out, nil
}

// Family is the value of the particle_family field.
type Family int8

const (
	GasTracer   Family = 0
	DM          Family = 1
	Star        Family = 2
	Cloud       Family = 3
	Dust        Family = 4
	StarTracer  Family = -2
	CloudTracer Family = -3
	DustTracer  Family = -4
)

// Families lists every particle family.
var Families = []Family{
	DM, Star, Cloud, Dust, StarTracer, CloudTracer, DustTracer, GasTracer,
}

func (f Family) String() string {
	switch f {
	case GasTracer:
		return "gas_tracer"
	case DM:
		return "DM"
	case Star:
		return "star"
	case Cloud:
		return "cloud"
	case Dust:
		return "dust"
	case StarTracer:
		return "star_tracer"
	case CloudTracer:
		return "cloud_tracer"
	case DustTracer:
		return "dust_tracer"
	}
	return fmt.Sprintf("Family(%d)", int8(f))
}

// ParseFamily returns the family with the given name.
func ParseFamily(name string) (Family, error) {
	for _, f := range Families {
		if f.String() == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("'%s' is not a particle family.", name)
}

// Select returns the indices of every entry in a particle_family array
// which belongs to f.
func (f Family) Select(codes []int8) []int {
	out := []int{}
	for i, c := range codes {
		if Family(c) == f {
			out = append(out, i)
		}
	}
	return out
}
