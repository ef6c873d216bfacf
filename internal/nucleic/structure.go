package nucleic

import (
	"fmt"
	"strings"
)

// Unpaired marks a base without a partner in a pair table.
const Unpaired = -1

// ParseStructure converts dot-paren notation into a pair table over seq.
// Strand breaks in the structure must line up with the sequence.
func ParseStructure(structure string, seq Sequence) ([]int, error) {
	structure = strings.TrimSpace(structure)
	pairs := make([]int, seq.Len())
	for i := range pairs {
		pairs[i] = Unpaired
	}

	var stack []int
	pos := 0
	for i, r := range structure {
		switch r {
		case StrandBreak:
			if pos == 0 || !seq.NickAfter(pos-1) || brokeBefore(structure, i) {
				return nil, fmt.Errorf("strand break at character %d does not match sequence", i)
			}
			continue
		case '.', '(', ')':
		default:
			return nil, fmt.Errorf("invalid structure character %q at %d", r, i)
		}
		if pos >= seq.Len() {
			return nil, fmt.Errorf("structure is longer than sequence (%d bases)", seq.Len())
		}
		if pos > 0 && seq.NickAfter(pos-1) && !brokeBefore(structure, i) {
			return nil, fmt.Errorf("missing strand break before base %d", pos)
		}
		switch r {
		case '(':
			stack = append(stack, pos)
		case ')':
			if len(stack) == 0 {
				return nil, fmt.Errorf("unbalanced ')' at base %d", pos)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			pairs[open] = pos
			pairs[pos] = open
		}
		pos++
	}
	if pos != seq.Len() {
		return nil, fmt.Errorf("structure covers %d bases, sequence has %d", pos, seq.Len())
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unbalanced '(' at base %d", stack[len(stack)-1])
	}
	return pairs, nil
}

func brokeBefore(structure string, i int) bool {
	return i > 0 && structure[i-1] == StrandBreak
}

// OpenStructure returns the fully unpaired dot-paren string for seq.
func OpenStructure(seq Sequence) string {
	pairs := make([]int, seq.Len())
	for i := range pairs {
		pairs[i] = Unpaired
	}
	return FormatStructure(pairs, seq)
}

func FormatStructure(pairs []int, seq Sequence) string {
	var b strings.Builder
	b.Grow(len(pairs) + seq.Strands())
	for i, partner := range pairs {
		switch {
		case partner == Unpaired:
			b.WriteByte('.')
		case partner > i:
			b.WriteByte('(')
		default:
			b.WriteByte(')')
		}
		if seq.NickAfter(i) {
			b.WriteRune(StrandBreak)
		}
	}
	return b.String()
}

// PairCount returns the number of base pairs in a pair table.
func PairCount(pairs []int) int {
	n := 0
	for i, partner := range pairs {
		if partner > i {
			n++
		}
	}
	return n
}
