package arith

import "fmt"

// Vec3 is a 3-component vector attribute (e.g. a scale or a velocity bias).
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// Vec3Ops adds and multiplies component-wise and clamps each axis separately.
func Vec3Ops() Ops[Vec3] {
	return Ops[Vec3]{
		Add: func(a, b Vec3) Vec3 {
			return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
		},
		Mul: func(a, b Vec3) Vec3 {
			return Vec3{a.X * b.X, a.Y * b.Y, a.Z * b.Z}
		},
		Clamp: func(v, lo, hi Vec3) Vec3 {
			return Vec3{
				ClampNumber(v.X, lo.X, hi.X),
				ClampNumber(v.Y, lo.Y, hi.Y),
				ClampNumber(v.Z, lo.Z, hi.Z),
			}
		},
	}
}
