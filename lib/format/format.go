/*package format handles amrio's two miniature formatting languages: domain
lists and file name templates.

	Domains = 1..64 - 3
	hydro_{%05d,output}.out{%05d,domain}

Sequence formats pick out a set of domains. A sequence is a list of terms
joined by "+" (include) or "-" (exclude). Each term is either a single
domain or an inclusive range written "lo..hi". Terms are applied from left
to right, a leading "+" is optional, and whitespace around terms is ignored:

	17
	1..64
	1..8 + 33..40
	1..64 - 3 - 10..12

A domain may only be included once and may only be excluded if it is
currently included. Both mistakes are almost always typos, so they are
reported rather than silently ignored.

File formats are fixed text mixed with {verb,name} variables. The verb is an
integer printf verb (%d, %05d, ...) and the name is one of the variables the
caller supplies. amrio supplies two:

	"output" - the output number, taken from the info file's name.
	"domain" - the 1-indexed domain (MPI rank + 1) which wrote the file.
*/
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MaxSequenceLength is the largest number of domains a sequence format may
// expand to. Anything longer is assumed to be a typo, e.g. "1..10000000".
const MaxSequenceLength = 1 << 20

// seqTerm is one "+lo..hi" or "-lo..hi" term of a sequence format.
type seqTerm struct {
	exclude bool
	lo, hi  int
}

func (t seqTerm) String() string {
	op := "+"
	if t.exclude {
		op = "-"
	}
	if t.lo == t.hi {
		return fmt.Sprintf("%s%d", op, t.lo)
	}
	return fmt.Sprintf("%s%d..%d", op, t.lo, t.hi)
}

// ExpandSequenceFormat expands a sequence format into the sorted list of
// domains it describes.
func ExpandSequenceFormat(format string) ([]int, error) {
	terms, err := parseSequenceFormat(format)
	if err != nil {
		return nil, fmt.Errorf("The sequence '%s' is invalid: %w", format, err)
	}

	set := map[int]bool{}
	for _, term := range terms {
		if !term.exclude && len(set)+term.hi-term.lo+1 > MaxSequenceLength {
			return nil, fmt.Errorf("The sequence '%s' would contain more "+
				"than %d domains, which is almost certainly a typo.",
				format, MaxSequenceLength)
		}
		for n := term.lo; n <= term.hi; n++ {
			switch {
			case !term.exclude && set[n]:
				return nil, fmt.Errorf("The sequence '%s' includes domain "+
					"%d more than once.", format, n)
			case term.exclude && !set[n]:
				return nil, fmt.Errorf("The sequence '%s' excludes domain "+
					"%d, but it was not included before the '%s' term.",
					format, n, term)
			case term.exclude:
				delete(set, n)
			default:
				set[n] = true
			}
		}
	}

	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// parseSequenceFormat splits a sequence format into its terms. Errors are
// phrased so that they can follow "is invalid: ".
func parseSequenceFormat(format string) ([]seqTerm, error) {
	s := strings.TrimSpace(format)
	if s == "" {
		return nil, fmt.Errorf("it is empty")
	}

	terms := []seqTerm{}
	for len(s) > 0 {
		exclude := false
		if s[0] == '+' || s[0] == '-' {
			exclude = s[0] == '-'
			s = s[1:]
		}

		end := strings.IndexAny(s, "+-")
		if end == -1 {
			end = len(s)
		}
		tok := strings.TrimSpace(s[:end])
		if tok == "" {
			return nil, fmt.Errorf("every '+' and '-' must be followed " +
				"by a domain or a range")
		}
		if strings.ContainsAny(tok, " \t") {
			return nil, fmt.Errorf("the terms in '%s' are not joined by "+
				"'+' or '-'", tok)
		}

		term, err := parseSequenceTerm(tok)
		if err != nil {
			return nil, err
		}
		term.exclude = exclude
		terms = append(terms, term)
		s = s[end:]
	}
	return terms, nil
}

// parseSequenceTerm parses "n" or "lo..hi".
func parseSequenceTerm(tok string) (seqTerm, error) {
	bounds := strings.Split(tok, "..")
	if len(bounds) > 2 {
		return seqTerm{}, fmt.Errorf("'%s' has more than one '..'", tok)
	}

	x := make([]int, len(bounds))
	for i := range bounds {
		n, err := strconv.Atoi(bounds[i])
		if err != nil {
			return seqTerm{}, fmt.Errorf("'%s' in '%s' is not an integer",
				bounds[i], tok)
		}
		x[i] = n
	}

	term := seqTerm{lo: x[0], hi: x[len(x)-1]}
	if term.hi < term.lo {
		return seqTerm{}, fmt.Errorf("the range '%s' ends before it starts",
			tok)
	}
	return term, nil
}

// FileFormatComponents is a parsed file format. Separators has one more
// element than Vars: Separators[i] comes before Vars[i] and the final
// separator comes after the last variable.
type FileFormatComponents struct {
	Separators []string
	Vars       []string
	Verbs      []string
}

// ParseFileFormat splits a file format into its fixed text and variables.
func ParseFileFormat(format string) (*FileFormatComponents, error) {
	comp := &FileFormatComponents{}
	text := 0
	open := -1
	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '{':
			if open != -1 {
				return nil, fmt.Errorf("The file format '%s' has a '{' at "+
					"index %d inside the variable starting at index %d. "+
					"Variables cannot be nested.", format, i, open)
			}
			comp.Separators = append(comp.Separators, format[text:i])
			open = i
		case '}':
			if open == -1 {
				return nil, fmt.Errorf("The file format '%s' has a '}' at "+
					"index %d which does not close a '{'.", format, i)
			}
			verb, name, err := parseFileVariable(format, format[open+1:i])
			if err != nil {
				return nil, err
			}
			comp.Verbs = append(comp.Verbs, verb)
			comp.Vars = append(comp.Vars, name)
			open, text = -1, i+1
		}
	}

	if open != -1 {
		return nil, fmt.Errorf("The file format '%s' has a '{' at index %d "+
			"which is never closed.", format, open)
	}
	comp.Separators = append(comp.Separators, format[text:])
	return comp, nil
}

// parseFileVariable parses the inside of a {verb,name} variable.
func parseFileVariable(format, v string) (verb, name string, err error) {
	tok := strings.Split(v, ",")
	if len(tok) != 2 {
		return "", "", fmt.Errorf("The file format '%s' has the variable "+
			"'{%s}', but variables must look like {verb,name}, e.g. "+
			"{%%05d,domain}.", format, v)
	}

	verb, name = strings.TrimSpace(tok[0]), strings.TrimSpace(tok[1])
	if !strings.HasPrefix(verb, "%") || !strings.HasSuffix(verb, "d") {
		return "", "", fmt.Errorf("The file format '%s' has the verb '%s', "+
			"but only integer verbs like '%%d' and '%%05d' are supported.",
			format, verb)
	}
	if name == "" {
		return "", "", fmt.Errorf("The file format '%s' has a variable, "+
			"'{%s}', with no name.", format, v)
	}
	return verb, name, nil
}

// ExpandFileFormat replaces every {verb,name} variable in format with
// vars[name] printed using verb.
func ExpandFileFormat(format string, vars map[string]int) (string, error) {
	comp, err := ParseFileFormat(format)
	if err != nil {
		return "", err
	}

	sb := &strings.Builder{}
	for i, name := range comp.Vars {
		sb.WriteString(comp.Separators[i])
		val, ok := vars[name]
		if !ok {
			return "", fmt.Errorf("The file format '%s' uses the variable "+
				"'%s', but no value was given for it.", format, name)
		}
		fmt.Fprintf(sb, comp.Verbs[i], val)
	}
	sb.WriteString(comp.Separators[len(comp.Separators)-1])
	return sb.String(), nil
}

// FileFormatGlob converts a file format into a filepath.Match pattern which
// matches every possible expansion of the format.
func FileFormatGlob(format string) (string, error) {
	comp, err := ParseFileFormat(format)
	if err != nil {
		return "", err
	}
	return strings.Join(comp.Separators, "*"), nil
}
