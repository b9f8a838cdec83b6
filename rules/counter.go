package rules

// CounterOp selects how an observed counter is compared to its threshold.
type CounterOp uint8

const (
	CounterNone CounterOp = iota
	CounterEq
	CounterNe
	CounterLt
	CounterGt
)

var counterOpNames = map[CounterOp]string{
	CounterNone: "none",
	CounterEq:   "eq",
	CounterNe:   "ne",
	CounterLt:   "lt",
	CounterGt:   "gt",
}

func (op CounterOp) String() string {
	if n, ok := counterOpNames[op]; ok {
		return n
	}
	return "unknown"
}

// CompareCounter reports whether observed satisfies op against threshold.
// CounterNone always holds.
func CompareCounter(observed uint64, op CounterOp, threshold uint64) bool {
	switch op {
	case CounterNone:
		return true
	case CounterEq:
		return observed == threshold
	case CounterNe:
		return observed != threshold
	case CounterLt:
		return observed < threshold
	case CounterGt:
		return observed > threshold
	}
	return false
}

// CounterMatch is the comparison configured for one counted quantity.
// The zero value compares nothing.
type CounterMatch struct {
	Op    CounterOp
	Value uint64
}

func (c CounterMatch) Engaged() bool {
	return c.Op != CounterNone
}

func (c CounterMatch) Match(observed uint64) bool {
	return CompareCounter(observed, c.Op, c.Value)
}

// set fills an unset slot. Only equality may be inverted, which turns it
// into CounterNe; the directional comparisons have no inverse here.
func (c *CounterMatch) set(quantity string, op CounterOp, value uint64, invert bool) error {
	if c.Engaged() {
		return configErrorf("only one of the --%s-[eq|lt|gt] is allowed", quantity)
	}

	switch op {
	case CounterEq:
		if invert {
			op = CounterNe
		}
	case CounterLt, CounterGt:
		if invert {
			return configErrorf("--%s-%s option cannot be inverted", quantity, op)
		}
	default:
		return configErrorf("--%s-%s is not a valid comparison", quantity, op)
	}

	c.Op = op
	c.Value = value
	return nil
}
