package energy

// Flank is the state of a base next to a pair on one side.
type Flank uint8

const (
	FlankEnd Flank = iota
	FlankLoop
	FlankStack
)

// Context is the local neighbourhood of one side of a base pair, used to pick
// Arrhenius parameters.
type Context uint8

const (
	ContextEnd Context = iota
	ContextLoop
	ContextStack
	ContextStackStack
	ContextLoopEnd
	ContextStackEnd
	ContextStackLoop
)

var contextPrimes = [...]int{2, 3, 5, 7, 11, 13, 17}

var contextNames = [...]string{"end", "loop", "stack", "stack_stack", "loop_end", "stack_end", "stack_loop"}

func (c Context) String() string {
	if int(c) < len(contextNames) {
		return contextNames[c]
	}
	return "unknown"
}

// Prime gives each context a distinct prime so that a product identifies an
// unordered pair of contexts.
func (c Context) Prime() int {
	return contextPrimes[c]
}

// Combine classifies a side whose two flanking bases are not paired to each
// other.
func Combine(a, b Flank) Context {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == FlankEnd && b == FlankEnd:
		return ContextEnd
	case a == FlankLoop && b == FlankLoop:
		return ContextLoop
	case a == FlankStack && b == FlankStack:
		return ContextStackStack
	case a == FlankEnd && b == FlankLoop:
		return ContextLoopEnd
	case a == FlankEnd && b == FlankStack:
		return ContextStackEnd
	default:
		return ContextStackLoop
	}
}

func (a ArrheniusParams) term(c Context) (lnA, e float64) {
	switch c {
	case ContextEnd:
		return a.LnAEnd, a.EEnd
	case ContextLoop:
		return a.LnALoop, a.ELoop
	case ContextStack:
		return a.LnAStack, a.EStack
	case ContextStackStack:
		return a.LnAStackStack, a.EStackStack
	case ContextLoopEnd:
		return a.LnALoopEnd, a.ELoopEnd
	case ContextStackEnd:
		return a.LnAStackEnd, a.EStackEnd
	default:
		return a.LnAStackLoop, a.EStackLoop
	}
}
