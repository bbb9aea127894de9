package ramses

import (
	"fmt"
	"sort"

	"github.com/phil-mansfield/amrio/lib/octree"
	"github.com/phil-mansfield/amrio/lib/thread"
)

// Index owns the DomainReaders of every selected domain.
type Index struct {
	Dataset *Dataset
	Domains []*DomainReader

	FieldSchemas    []*FieldSchema
	ParticleSchemas []*ParticleSchema

	cache *fieldCache
}

// DomainIDs returns the 1-indexed ids of the domains which will be read:
// every domain, or, if a bounding box was given, those whose Hilbert range
// could intersect it. Options.Domains restricts the list further.
func (ds *Dataset) DomainIDs() []int {
	var cpus []int
	if ds.Opts.BoundingBox != nil {
		cpus = CPUList(ds.Params, *ds.Opts.BoundingBox)
	} else {
		cpus = make([]int, ds.Params.NCPU)
		for i := range cpus {
			cpus[i] = i
		}
	}

	var allowed map[int]bool
	if len(ds.Opts.Domains) > 0 {
		allowed = map[int]bool{}
		for _, id := range ds.Opts.Domains {
			allowed[id] = true
		}
	}

	ids := []int{}
	for _, cpu := range cpus {
		if allowed == nil || allowed[cpu+1] {
			ids = append(ids, cpu+1)
		}
	}
	return ids
}

// NewIndex detects which kinds of files the dataset has and reads the octree
// of every selected domain. Domains are read in parallel using
// Options.Threads workers. If any domain fails, no Index is returned.
func NewIndex(ds *Dataset) (*Index, error) {
	idx := &Index{Dataset: ds}

	for _, k := range FieldKinds {
		if !k.Exists(ds) {
			continue
		}
		schema, err := detectFields(ds, k)
		if err != nil {
			return nil, err
		}
		idx.FieldSchemas = append(idx.FieldSchemas, schema)
	}
	for _, k := range ParticleKinds {
		if !k.Exists(ds) {
			continue
		}
		schema, err := detectParticleFields(ds, k)
		if err != nil {
			return nil, err
		}
		idx.ParticleSchemas = append(idx.ParticleSchemas, schema)
	}

	ids := ds.DomainIDs()
	if len(ids) == 0 {
		return nil, fmt.Errorf("No domains of '%s' were selected.", ds.InfoFile)
	}

	idx.Domains = make([]*DomainReader, len(ids))
	err := thread.Map(len(ids), ds.Opts.Threads, func(i int) error {
		d, err := newDomainReader(ds, ids[i], idx.FieldSchemas, idx.ParticleSchemas)
		if err != nil {
			return err
		}
		idx.Domains[i] = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	if ds.Opts.CacheBytes > 0 {
		if idx.cache, err = newFieldCache(ds.Opts.CacheBytes); err != nil {
			return nil, err
		}
	}

	ds.logger.Debug("built index", "domains", len(idx.Domains),
		"octs", idx.NumOcts(), "max_level", idx.MaxLevel())
	return idx, nil
}

// Close releases the index's cache.
func (idx *Index) Close() { idx.cache.close() }

// FluidFields returns every per-cell field.
func (idx *Index) FluidFields() []FieldName {
	out := []FieldName{}
	seen := map[FieldName]bool{}
	for _, s := range idx.FieldSchemas {
		for _, f := range s.FieldNames() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// ParticleFields returns every particle field.
func (idx *Index) ParticleFields() []FieldName {
	out := []FieldName{}
	seen := map[FieldName]bool{}
	for _, s := range idx.ParticleSchemas {
		for _, f := range s.FieldNames() {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

// FieldList returns the particle fields followed by the fluid fields.
func (idx *Index) FieldList() []FieldName {
	return append(idx.ParticleFields(), idx.FluidFields()...)
}

// MaxLevel returns the deepest relative level at which any domain has octs.
func (idx *Index) MaxLevel() int {
	max := 0
	for _, d := range idx.Domains {
		if d.MaxLevel > max {
			max = d.MaxLevel
		}
	}
	return max
}

// NumOcts returns the number of octs owned by the selected domains at or
// above the minimum level.
func (idx *Index) NumOcts() int {
	n := 0
	for _, d := range idx.Domains {
		n += d.LocalOctCount
	}
	return n
}

// LevelStat is one row of the level statistics table.
type LevelStat struct {
	Level    int
	NumCells int
}

// LevelStats returns the number of cells at each absolute level. Levels at or
// above the minimum level are full grids, 2^(level*ndim) cells, and deeper
// levels are summed over every domain.
func (idx *Index) LevelStats() ([]LevelStat, error) {
	ds := idx.Dataset
	var levels []int
	for _, d := range idx.Domains {
		count, err := d.LevelCount()
		if err != nil {
			return nil, err
		}
		if levels == nil {
			levels = make([]int, len(count))
		}
		for i := range count {
			if i < len(levels) {
				levels[i] += count[i]
			}
		}
	}

	n := ds.MinLevel + ds.MaxLevel + 2
	stats := make([]LevelStat, n)
	for i := range stats {
		stats[i].Level = i
	}
	for level := 0; level <= ds.MinLevel && level+1 < n; level++ {
		stats[level+1].NumCells = 1 << uint(level*ds.Dim)
	}
	for level := 0; level <= idx.MaxLevel() && level < len(levels); level++ {
		if row := level + ds.MinLevel + 1; row < n {
			stats[row].NumCells = levels[level]
		}
	}
	return stats, nil
}

// ParticleCounts returns the number of particles of each kind in the
// selected domains.
func (idx *Index) ParticleCounts() map[string]int {
	out := map[string]int{}
	for _, s := range idx.ParticleSchemas {
		out[s.Kind.Name] = 0
	}
	for _, d := range idx.Domains {
		for _, h := range d.Particles {
			out[h.Kind()] += h.LocalCount
		}
	}
	return out
}

// FamilyCounts returns the number of particles in each family, summed over
// the selected domains, for every particle kind which stores families.
func (idx *Index) FamilyCounts() (map[string]int, error) {
	out := map[string]int{}
	for _, d := range idx.Domains {
		for _, h := range d.Particles {
			if !h.Schema.HasFamilies() {
				continue
			}
			counts, err := h.FamilyCounts(idx.Dataset.Opts.ByteOrder)
			if err != nil {
				return nil, err
			}
			for f, n := range counts {
				out[f.String()] += n
			}
		}
	}
	return out, nil
}

// Chunks returns one DomainSubset for every domain with octs which could
// contain a selected cell.
func (idx *Index) Chunks(sel octree.Selector) []*DomainSubset {
	out := []*DomainSubset{}
	for _, d := range idx.Domains {
		if d.Included(sel) {
			out = append(out, &DomainSubset{Domain: d, Selector: sel, cache: idx.cache})
		}
	}
	if len(out) > 1 {
		idx.Dataset.logger.Debug("identified intersecting domains", "count", len(out))
	}
	return out
}

// Read returns every requested field for the selected cells. Each array is
// the concatenation of the domains' arrays, in domain order.
func (idx *Index) Read(
	sel octree.Selector, fields []FieldName,
) (map[FieldName][]float64, error) {
	chunks := idx.Chunks(sel)
	results := make([]map[FieldName][]float64, len(chunks))
	err := thread.Map(len(chunks), idx.Dataset.Opts.Threads, func(i int) error {
		var err error
		results[i], err = chunks[i].ReadFields(fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	idx.cache.wait()

	out := map[FieldName][]float64{}
	for _, field := range fields {
		n := 0
		for i := range results {
			n += len(results[i][field])
		}
		x := make([]float64, 0, n)
		for i := range results {
			x = append(x, results[i][field]...)
		}
		out[field] = x
	}
	return out, nil
}

// SortFieldNames sorts field names by kind and then name.
func SortFieldNames(fields []FieldName) {
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Kind != fields[j].Kind {
			return fields[i].Kind < fields[j].Kind
		}
		return fields[i].Name < fields[j].Name
	})
}
