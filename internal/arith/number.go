package arith

// Number is any ordered numeric type usable with NumberOps.
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NumberOps returns plain +, * and clamp for a numeric type.
func NumberOps[V Number]() Ops[V] {
	return Ops[V]{
		Add:   func(a, b V) V { return a + b },
		Mul:   func(a, b V) V { return a * b },
		Clamp: ClampNumber[V],
	}
}

// ClampNumber bounds v to [lo, hi]. lo is checked first, then hi, so with
// lo > hi the result depends on v.
func ClampNumber[V Number](v, lo, hi V) V {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
