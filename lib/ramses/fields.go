package ramses

import (
	"fmt"
	"os"
	"sync"

	"github.com/phil-mansfield/amrio/lib/fortio"
)

// FieldFileHandler locates the per-level blocks belonging to one domain
// inside one field file.
type FieldFileHandler struct {
	Schema *FieldSchema
	File   string

	domain *DomainReader

	once       sync.Once
	offsets    []int64
	levelCount []int
	err        error
	// scans counts how many times the file has been scanned.
	scans int
}

func newFieldFileHandler(d *DomainReader, schema *FieldSchema) (*FieldFileHandler, error) {
	fname, err := d.ds.FileName(schema.Kind.FileFormat, d.ID)
	if err != nil {
		return nil, err
	}
	return &FieldFileHandler{Schema: schema, File: fname, domain: d}, nil
}

// Kind returns the name of the handler's field kind.
func (h *FieldFileHandler) Kind() string { return h.Schema.Kind.Name }

// Offsets returns the byte offset of each level's block for this domain and
// the number of octs in that block. Levels are relative to the dataset's
// minimum level and absent levels have an offset of -1. The file is scanned
// on the first call only; the returned slices are shared and must not be
// modified.
func (h *FieldFileHandler) Offsets() (offsets []int64, levelCount []int, err error) {
	h.once.Do(func() {
		h.offsets, h.levelCount, h.err = h.computeOffsets()
		h.scans++
	})
	return h.offsets, h.levelCount, h.err
}

// LevelCount returns the number of octs stored at each level for this domain.
func (h *FieldFileHandler) LevelCount() ([]int, error) {
	_, count, err := h.Offsets()
	return count, err
}

func (h *FieldFileHandler) computeOffsets() ([]int64, []int, error) {
	f, err := os.Open(h.File)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	ds, hd := h.domain.ds, h.domain.header
	r := fortio.NewReader(f, ds.Opts.ByteOrder)
	if err := r.Skip(len(h.Schema.Kind.Attrs)); err != nil {
		return nil, nil, h.wrap(err)
	}

	nvar := h.Schema.NVar
	nLevels := hd.nlevelmax - ds.MinLevel
	if nLevels < 0 {
		nLevels = 0
	}
	offsets := make([]int64, nLevels)
	levelCount := make([]int, nLevels)
	for i := range offsets {
		offsets[i] = -1
	}

	blockHeader := []fortio.Attr{
		{Name: "file_ilevel", Count: 1, Type: fortio.Uint32},
		{Name: "file_ncache", Count: 1, Type: fortio.Uint32},
	}
	cellsPerOct := 1 << uint(ds.Dim)

	for level := 0; level < hd.nlevelmax; level++ {
		for cpu := 0; cpu < hd.ncpu+hd.nboundary; cpu++ {
			bh, err := r.ReadAttrs(blockHeader)
			if err != nil {
				return nil, nil, h.wrap(err)
			}
			ncache := bh.Int("file_ncache")
			if ncache == 0 {
				continue
			}
			if fileLevel := bh.Int("file_ilevel"); fileLevel != level+1 {
				return nil, nil, &FormatAssumptionError{
					File: h.File, Level: level, CPU: cpu, FileLevel: fileLevel,
				}
			}

			if cpu+1 == h.domain.ID && level >= ds.MinLevel {
				offsets[level-ds.MinLevel] = r.Tell()
				levelCount[level-ds.MinLevel] = ncache
			}

			// Every block is skipped so the reader stays aligned.
			if err := r.Skip(cellsPerOct * nvar); err != nil {
				return nil, nil, h.wrap(err)
			}
		}
	}

	return offsets, levelCount, nil
}

func (h *FieldFileHandler) wrap(err error) error {
	return fmt.Errorf("Could not read the %s file '%s': %w",
		h.Schema.Kind.Name, h.File, err)
}
