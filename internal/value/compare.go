package value

import "strings"

// Compare orders a against b. Numbers and bools compare numerically (bool as
// 0/1), strings compare lexicographically. ok is false when the kinds cannot be
// ordered against each other, including any comparison involving null.
func Compare(a, b Value) (cmp int, ok bool) {
	if af, aok := a.Numeric(); aok {
		bf, bok := b.Numeric()
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		case af == bf:
			return 0, true
		}
		return 0, false // NaN
	}
	if as, aok := a.AsString(); aok {
		bs, bok := b.AsString()
		if !bok {
			return 0, false
		}
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// LooseEqual reports equality under the same coercions as Compare. Values of
// kinds that cannot be compared are never equal.
func LooseEqual(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}
