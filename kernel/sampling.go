package kernel

import (
	"fmt"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

func constant(fs field.Sampler, name string) (float64, error) {
	v, ok := fs.Constant(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingConstant, name)
	}
	return v, nil
}

// RandomExponentialDepth sets the particle depth to an exponential draw
// whose rate is the fieldset constant rateConst.
func RandomExponentialDepth(rateConst string) Kernel {
	return func(p *Particle, fs field.Sampler, rng random.Generator, _ float64) error {
		rate, err := constant(fs, rateConst)
		if err != nil {
			return err
		}
		d, err := rng.Exponential(rate)
		if err != nil {
			return err
		}
		p.Depth = d
		return nil
	}
}

// RandomVonMisesVar stores a von Mises angle in the particle variable at
// index idx, with mu and kappa taken from fieldset constants.
func RandomVonMisesVar(muConst, kappaConst string, idx int) Kernel {
	return func(p *Particle, fs field.Sampler, rng random.Generator, _ float64) error {
		mu, err := constant(fs, muConst)
		if err != nil {
			return err
		}
		kappa, err := constant(fs, kappaConst)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(p.Vars) {
			return fmt.Errorf("kernel: particle %d has no variable %d", p.ID, idx)
		}
		a, err := rng.VonMises(mu, kappa)
		if err != nil {
			return err
		}
		p.Vars[idx] = a
		return nil
	}
}
