package random

import "math"

const (
	mtN       = 624
	mtM       = 397
	matrixA   = 0x9908b0df
	upperMask = 0x80000000
	lowerMask = 0x7fffffff
)

// nvMagic is 4*exp(-0.5)/sqrt(2), the Kinderman-Monahan ratio bound.
var nvMagic = 4 * math.Exp(-0.5) / math.Sqrt(2.0)

// MT is the reference generator: MT19937 seeded by init_by_array, 53-bit
// floats built from two 32-bit outputs.
type MT struct {
	mt  [mtN]uint32
	mti int
}

// NewMT creates a Mersenne Twister generator seeded with seed.
func NewMT(seed int64) *MT {
	m := &MT{}
	m.Seed(seed)
	return m
}

// Seed initializes the state from the 32-bit words of |seed|,
// least significant first.
func (m *MT) Seed(seed int64) {
	u := uint64(seed)
	if seed < 0 {
		u = uint64(-seed)
	}
	key := []uint32{uint32(u)}
	if hi := uint32(u >> 32); hi != 0 {
		key = append(key, hi)
	}
	m.initByArray(key)
}

func (m *MT) initGenrand(s uint32) {
	m.mt[0] = s
	for i := 1; i < mtN; i++ {
		m.mt[i] = 1812433253*(m.mt[i-1]^(m.mt[i-1]>>30)) + uint32(i)
	}
	m.mti = mtN
}

func (m *MT) initByArray(key []uint32) {
	m.initGenrand(19650218)
	i, j := 1, 0
	k := mtN
	if len(key) > k {
		k = len(key)
	}
	for ; k > 0; k-- {
		m.mt[i] = (m.mt[i] ^ ((m.mt[i-1] ^ (m.mt[i-1] >> 30)) * 1664525)) + key[j] + uint32(j)
		i++
		j++
		if i >= mtN {
			m.mt[0] = m.mt[mtN-1]
			i = 1
		}
		if j >= len(key) {
			j = 0
		}
	}
	for k = mtN - 1; k > 0; k-- {
		m.mt[i] = (m.mt[i] ^ ((m.mt[i-1] ^ (m.mt[i-1] >> 30)) * 1566083941)) - uint32(i)
		i++
		if i >= mtN {
			m.mt[0] = m.mt[mtN-1]
			i = 1
		}
	}
	m.mt[0] = 0x80000000
}

// Uint32 returns the next tempered 32-bit output.
func (m *MT) Uint32() uint32 {
	mag01 := [2]uint32{0, matrixA}
	var y uint32

	if m.mti >= mtN {
		var kk int
		for kk = 0; kk < mtN-mtM; kk++ {
			y = (m.mt[kk] & upperMask) | (m.mt[kk+1] & lowerMask)
			m.mt[kk] = m.mt[kk+mtM] ^ (y >> 1) ^ mag01[y&1]
		}
		for ; kk < mtN-1; kk++ {
			y = (m.mt[kk] & upperMask) | (m.mt[kk+1] & lowerMask)
			m.mt[kk] = m.mt[kk+(mtM-mtN)] ^ (y >> 1) ^ mag01[y&1]
		}
		y = (m.mt[mtN-1] & upperMask) | (m.mt[0] & lowerMask)
		m.mt[mtN-1] = m.mt[mtM-1] ^ (y >> 1) ^ mag01[y&1]
		m.mti = 0
	}

	y = m.mt[m.mti]
	m.mti++

	y ^= y >> 11
	y ^= (y << 7) & 0x9d2c5680
	y ^= (y << 15) & 0xefc60000
	y ^= y >> 18
	return y
}

// Float64 returns a value in [0, 1) with 53 bits of precision.
func (m *MT) Float64() float64 {
	a := m.Uint32() >> 5
	b := m.Uint32() >> 6
	return (float64(a)*67108864.0 + float64(b)) * (1.0 / 9007199254740992.0)
}

func (m *MT) Uniform(a, b float64) float64 {
	return a + (b-a)*m.Float64()
}

// Normal uses the Kinderman-Monahan ratio-of-uniforms method.
func (m *MT) Normal(mean, stddev float64) (float64, error) {
	if err := checkNormal(mean, stddev); err != nil {
		return 0, err
	}
	var z float64
	for {
		u1 := m.Float64()
		u2 := 1 - m.Float64()
		z = nvMagic * (u1 - 0.5) / u2
		if z*z/4 <= -math.Log(u2) {
			break
		}
	}
	return mean + z*stddev, nil
}

func (m *MT) Exponential(rate float64) (float64, error) {
	if err := checkExponential(rate); err != nil {
		return 0, err
	}
	return -math.Log(1-m.Float64()) / rate, nil
}

func (m *MT) VonMises(mu, kappa float64) (float64, error) {
	if err := checkVonMises(mu, kappa); err != nil {
		return 0, err
	}
	return vonMises(m.Float64, mu, kappa), nil
}
