package nucleic

// LoopKind classifies a loop of a secondary structure.
type LoopKind uint8

const (
	KindHairpin LoopKind = iota + 1
	KindStack
	KindInterior
	KindMulti
	KindOpen
	KindBulge
)

func (k LoopKind) String() string {
	switch k {
	case KindHairpin:
		return "hairpin"
	case KindStack:
		return "stack"
	case KindInterior:
		return "interior"
	case KindMulti:
		return "multi"
	case KindOpen:
		return "open"
	case KindBulge:
		return "bulge"
	default:
		return "unknown"
	}
}

// Classify returns the loop kind for a loop with the given number of strand
// breaks and unpaired segment lengths. segments has one entry more than the
// number of inner pairs.
func Classify(breaks int, segments []int) LoopKind {
	if breaks > 0 {
		return KindOpen
	}
	switch len(segments) {
	case 1:
		return KindHairpin
	case 2:
		a, b := segments[0], segments[1]
		switch {
		case a == 0 && b == 0:
			return KindStack
		case a == 0 || b == 0:
			return KindBulge
		default:
			return KindInterior
		}
	default:
		return KindMulti
	}
}
