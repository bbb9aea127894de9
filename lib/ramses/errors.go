package ramses

import (
	"fmt"
	"strings"

	"github.com/phil-mansfield/amrio/lib/fortio"
	"gonum.org/v1/gonum/spatial/r3"
)

// StructuralIntegrityError is returned when the number of octs the octree
// accepted from a (level, cpu) block disagrees with the number the AMR header
// declared. It means the header and the oct records are inconsistent and the
// domain cannot be trusted.
type StructuralIntegrityError struct {
	File       string
	Level, CPU int
	Requested  int
	Inserted   int
	// Extent holds the minimum and maximum coordinate along each axis.
	Extent      [3][2]float64
	Left, Right r3.Vec
	Shift       [3]float64
	Header      *fortio.Attrs
}

func (e *StructuralIntegrityError) Error() string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "An error was detected during the construction of the "+
		"octree for '%s'.\n", e.File)
	fmt.Fprintf(sb, "  The number of Octs to be added :  %d\n", e.Requested)
	fmt.Fprintf(sb, "  The number of Octs added       :  %d\n", e.Inserted)
	fmt.Fprintf(sb, "  Level                          :  %d\n", e.Level)
	fmt.Fprintf(sb, "  CPU Number (0-indexed)         :  %d\n", e.CPU)
	for i, ax := range "xyz" {
		fmt.Fprintf(sb, "  extent [%c]                     :  %g %g\n",
			ax, e.Extent[i][0], e.Extent[i][1])
	}
	fmt.Fprintf(sb, "  domain left                    :  %g %g %g\n",
		e.Left.X, e.Left.Y, e.Left.Z)
	fmt.Fprintf(sb, "  domain right                   :  %g %g %g\n",
		e.Right.X, e.Right.Y, e.Right.Z)
	fmt.Fprintf(sb, "  offset applied                 :  %g %g %g\n",
		e.Shift[0], e.Shift[1], e.Shift[2])
	if e.Header != nil {
		sb.WriteString("AMR Header:\n")
		sb.WriteString(e.Header.String())
	}
	return sb.String()
}

// FormatAssumptionError is returned when the level stored in a field file's
// block header does not match the level implied by the block's position.
type FormatAssumptionError struct {
	File      string
	Level     int
	CPU       int
	FileLevel int
}

func (e *FormatAssumptionError) Error() string {
	return fmt.Sprintf("The field file '%s' is not laid out as expected: the "+
		"block for (level %d, cpu %d) should have been labeled as level %d, "+
		"but it was labeled as level %d.",
		e.File, e.Level, e.CPU, e.Level+1, e.FileLevel)
}

// UnsupportedOrderingError is returned when a bounding box is requested for a
// dataset whose domain decomposition isn't a Hilbert curve.
type UnsupportedOrderingError struct {
	Ordering string
}

func (e *UnsupportedOrderingError) Error() string {
	return fmt.Sprintf("The ordering type '%s' is not compatible with a "+
		"bounding box. Only 'hilbert' orderings can be restricted to a "+
		"subset of domains; remove the bounding box to read every domain.",
		e.Ordering)
}
