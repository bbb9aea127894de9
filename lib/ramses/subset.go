package ramses

import (
	"fmt"
	"os"
	"sync"

	"github.com/phil-mansfield/amrio/lib/fortio"
	"github.com/phil-mansfield/amrio/lib/octree"
)

// DomainSubset is the part of a domain picked out by a selector.
type DomainSubset struct {
	Domain   *DomainReader
	Selector octree.Selector

	cache *fieldCache

	once      sync.Once
	cellCount int
}

// CellCount returns the number of selected leaf cells in the domain.
func (s *DomainSubset) CellCount() int {
	s.once.Do(func() {
		s.cellCount = s.Domain.Octree.CountOctCells(s.Selector, s.Domain.ID)
	})
	return s.cellCount
}

// Fill reads the requested fields of every selected cell from a field file.
// Only the requested records of levels which contain selected cells are
// read; everything else is skipped.
func (s *DomainSubset) Fill(
	h *FieldFileHandler, fields []string,
) (map[string][]float64, error) {
	for _, name := range fields {
		if !h.Schema.Has(name) {
			return nil, fmt.Errorf("The field '%s' is not one of the %s "+
				"fields, %s.", name, h.Kind(), h.Schema.Fields)
		}
	}

	tree, id := s.Domain.Octree, s.Domain.ID
	cellCount := s.CellCount()

	out := map[string][]float64{}
	for _, name := range fields {
		out[name] = make([]float64, cellCount)
	}
	if cellCount == 0 {
		return out, nil
	}

	levels, cellInds, fileInds := tree.FileIndexOcts(s.Selector, id, cellCount)
	selectedLevels := map[int]bool{}
	for _, l := range levels {
		selectedLevels[l] = true
	}

	offsets, levelCount, err := h.Offsets()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(h.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := fortio.NewReader(f, s.Domain.ds.Opts.ByteOrder)

	requested := map[string]bool{}
	for _, name := range fields {
		requested[name] = true
	}
	cellsPerOct := tree.CellsPerOct()

	for level, offset := range offsets {
		if offset == -1 || !selectedLevels[level] {
			continue
		}
		if err := r.Seek(offset); err != nil {
			return nil, err
		}

		nc := levelCount[level]
		tmp := map[string][]float64{}
		for name := range requested {
			tmp[name] = make([]float64, nc*cellsPerOct)
		}

		for cell := 0; cell < cellsPerOct; cell++ {
			for _, name := range h.Schema.Fields {
				if !requested[name] {
					if err := r.Skip(1); err != nil {
						return nil, h.wrap(err)
					}
					continue
				}

				x, err := r.ReadFloat64s()
				if err != nil {
					return nil, h.wrap(err)
				}
				if len(x) != nc {
					return nil, h.wrap(fmt.Errorf("the '%s' record of level "+
						"%d holds %d values, but %d octs were expected",
						name, level, len(x), nc))
				}
				buf := tmp[name]
				for oct := range x {
					buf[oct*cellsPerOct+cell] = x[oct]
				}
			}
		}

		tree.FillLevel(level, levels, cellInds, fileInds, out, tmp)
	}

	return out, nil
}

// ReadFields fills every requested field, grouping them by the file they
// live in. Results are cached when the index has a cache and the selector has
// a stable key.
func (s *DomainSubset) ReadFields(fields []FieldName) (map[FieldName][]float64, error) {
	out := map[FieldName][]float64{}

	byKind := map[string][]string{}
	kinds := []string{}
	for _, field := range fields {
		if _, ok := out[field]; ok {
			continue
		}
		if key, ok := cacheKey(s.Domain.ID, s.Selector, field); ok {
			if x, ok := s.cache.get(key); ok {
				out[field] = x
				continue
			}
		}
		if _, ok := byKind[field.Kind]; !ok {
			kinds = append(kinds, field.Kind)
		}
		byKind[field.Kind] = append(byKind[field.Kind], field.Name)
	}

	for _, kind := range kinds {
		h := s.Domain.Field(kind)
		if h == nil {
			return nil, fmt.Errorf("Domain %d has no '%s' field file.",
				s.Domain.ID, kind)
		}
		filled, err := s.Fill(h, byKind[kind])
		if err != nil {
			return nil, err
		}
		for name, x := range filled {
			field := FieldName{kind, name}
			out[field] = x
			if key, ok := cacheKey(s.Domain.ID, s.Selector, field); ok {
				s.cache.set(key, x)
			}
		}
	}

	return out, nil
}
