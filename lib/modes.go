package lib

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/phil-mansfield/amrio/lib/extract"
	"github.com/phil-mansfield/amrio/lib/ramses"
)

// OpenIndex opens the dataset named by args and indexes its domains. The
// caller must Close the returned Index.
func OpenIndex(args *Args, logger *slog.Logger) (*ramses.Index, error) {
	opts := args.Options()
	opts.Logger = logger
	ds, err := ramses.Open(args.InfoFile, opts)
	if err != nil {
		return nil, err
	}
	return ramses.NewIndex(ds)
}

// Stats writes a summary of an indexed dataset to w: its parameters, the
// number of cells on each level, and the number of particles of each kind.
func Stats(idx *ramses.Index, w io.Writer) error {
	ds := idx.Dataset
	fmt.Fprintf(w, "output       %d\n", ds.Output)
	fmt.Fprintf(w, "ndim         %d\n", ds.Dim)
	fmt.Fprintf(w, "time         %g\n", ds.Params.Time)
	if ds.Cosmological {
		fmt.Fprintf(w, "redshift     %g\n", ds.Redshift)
	}
	fmt.Fprintf(w, "domains      %d of %d\n", len(idx.Domains), ds.Params.NCPU)
	fmt.Fprintf(w, "octs         %d\n", idx.NumOcts())
	fmt.Fprintf(w, "max level    %d\n", idx.MaxLevel())

	stats, err := idx.LevelStats()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%5s %14s\n", "level", "cells")
	total := 0
	for _, s := range stats {
		if s.NumCells == 0 {
			continue
		}
		total += s.NumCells
		fmt.Fprintf(w, "%5d %14d\n", s.Level, s.NumCells)
	}
	fmt.Fprintf(w, "%5s %14d\n", "total", total)

	counts := idx.ParticleCounts()
	if len(counts) == 0 {
		return nil
	}
	families, err := idx.FamilyCounts()
	if err != nil {
		return err
	}
	for f, n := range families {
		counts[f] = n
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "\n%-10s %14s\n", "particles", "count")
	for _, k := range kinds {
		fmt.Fprintf(w, "%-10s %14d\n", k, counts[k])
	}
	return nil
}

// Fields writes every field of an indexed dataset to w, one per line.
func Fields(idx *ramses.Index, w io.Writer) {
	fluid, part := idx.FluidFields(), idx.ParticleFields()
	ramses.SortFieldNames(part)
	for _, f := range part {
		fmt.Fprintf(w, "%s (particle)\n", f)
	}
	for _, f := range fluid {
		fmt.Fprintf(w, "%s\n", f)
	}
}

// Extract reads the selected cells of every requested field and writes them
// to args.Output as an extract file. If no fields were requested, every
// fluid field is written.
func Extract(idx *ramses.Index, args *Args, logger *slog.Logger) error {
	if args.Output == "" {
		return fmt.Errorf("No output file was given. Set Output in the " +
			"config file or pass --output.")
	}

	fields := args.Fields
	if len(fields) == 0 {
		fields = idx.FluidFields()
	}
	if len(fields) == 0 {
		return fmt.Errorf("The dataset has no fluid fields to extract.")
	}

	data, err := idx.Read(args.Selector, fields)
	if err != nil {
		return err
	}

	ds := idx.Dataset
	n := len(data[fields[0]])
	hd := extract.FixedWidthHeader{
		N: int64(n), Output: int64(ds.Output), NDim: int64(ds.Dim),
		Time: ds.Params.Time, Redshift: ds.Redshift, BoxLen: ds.Params.BoxLen,
	}
	wr := extract.NewWriter(hd, args.ByteOrder)
	for _, f := range fields {
		var method extract.Method = &extract.Lossless{}
		if args.Accuracy > 0 {
			method = &extract.Quantized{Delta: args.Accuracy}
		}
		if err := wr.AddField(f.String(), data[f], method); err != nil {
			return err
		}
	}

	out, err := os.Create(args.Output)
	if err != nil {
		return err
	}
	if err := wr.Flush(out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	logger.Info("wrote extract file", "file", args.Output,
		"cells", n, "fields", len(fields))
	return nil
}
