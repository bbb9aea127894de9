package fortio

import (
	"fmt"
	"sort"
	"strings"
)

// Attrs is an ordered mapping from header attribute names to decoded values.
type Attrs struct {
	names  []string
	values map[string]Value
}

// NewAttrs returns an empty Attrs.
func NewAttrs() *Attrs {
	return &Attrs{values: map[string]Value{}}
}

// Set stores a value. Re-setting an existing name keeps its original
// position.
func (a *Attrs) Set(name string, v Value) {
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = v
}

// Merge copies every value in b into a.
func (a *Attrs) Merge(b *Attrs) {
	for _, name := range b.names {
		a.Set(name, b.values[name])
	}
}

// Names returns the attribute names in the order they were read.
func (a *Attrs) Names() []string { return a.names }

// Get returns the value associated with name.
func (a *Attrs) Get(name string) (Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Has returns true if name has been set.
func (a *Attrs) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Int returns the first element of an attribute as an int. Missing
// attributes are zero.
func (a *Attrs) Int(name string) int {
	ints := a.Ints(name)
	if len(ints) == 0 {
		return 0
	}
	return ints[0]
}

// Ints returns an attribute as []int. Floating point attributes are
// truncated.
func (a *Attrs) Ints(name string) []int {
	v, ok := a.values[name]
	if !ok {
		return nil
	}
	if v.Type.IsFloat() {
		out := make([]int, len(v.Floats))
		for i := range out {
			out[i] = int(v.Floats[i])
		}
		return out
	}
	out := make([]int, len(v.Ints))
	for i := range out {
		out[i] = int(v.Ints[i])
	}
	return out
}

// Float returns the first element of an attribute as a float64.
func (a *Attrs) Float(name string) float64 {
	fs := a.Floats(name)
	if len(fs) == 0 {
		return 0
	}
	return fs[0]
}

// Floats returns an attribute as []float64.
func (a *Attrs) Floats(name string) []float64 {
	v, ok := a.values[name]
	if !ok {
		return nil
	}
	if v.Type.IsFloat() {
		return v.Floats
	}
	out := make([]float64, len(v.Ints))
	for i := range out {
		out[i] = float64(v.Ints[i])
	}
	return out
}

// String formats the attributes one per line, sorted by name.
func (a *Attrs) String() string {
	names := append([]string{}, a.names...)
	sort.Strings(names)

	sb := &strings.Builder{}
	for _, name := range names {
		v := a.values[name]
		var val interface{}
		switch {
		case v.Type == Char:
			val = strings.TrimSpace(v.Str)
		case v.Type.IsFloat() && len(v.Floats) == 1:
			val = v.Floats[0]
		case v.Type.IsFloat():
			val = v.Floats
		case len(v.Ints) == 1:
			val = v.Ints[0]
		default:
			val = v.Ints
		}
		fmt.Fprintf(sb, "   %-30s: %v\n", name, val)
	}
	return sb.String()
}
