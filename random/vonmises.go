package random

import "math"

const twoPi = 2 * math.Pi

// kappaUniform is the concentration below which von Mises is treated as
// uniform on the circle.
const kappaUniform = 1e-6

// vonMises samples by the Best-Fisher rejection method. unit must return
// values in [0, 1). The number of unit draws per sample is variable.
func vonMises(unit func() float64, mu, kappa float64) float64 {
	if kappa <= kappaUniform {
		return twoPi * unit()
	}

	s := 0.5 / kappa
	r := s + math.Sqrt(1+s*s)

	var z float64
	for {
		u1 := unit()
		z = math.Cos(math.Pi * u1)

		d := z / (r + z)
		u2 := unit()
		if u2 < 1-d*d || u2 <= (1-d)*math.Exp(d) {
			break
		}
	}

	q := 1 / r
	f := (q + z) / (1 + q*z)
	var theta float64
	if unit() > 0.5 {
		theta = mu + math.Acos(f)
	} else {
		theta = mu - math.Acos(f)
	}
	return wrapAngle(theta)
}

// wrapAngle maps an angle to [0, 2pi).
func wrapAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	if a >= twoPi {
		a = 0
	}
	return a
}
