package kernel

import (
	"fmt"
	"math"

	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

// wiener draws the zonal and meridional Wiener increments for one step.
func wiener(rng random.Generator, dt float64) (dWx, dWy float64, err error) {
	sd := math.Sqrt(math.Abs(dt))
	if dWx, err = rng.Normal(0, sd); err != nil {
		return 0, 0, err
	}
	if dWy, err = rng.Normal(0, sd); err != nil {
		return 0, 0, err
	}
	return dWx, dWy, nil
}

// resolution returns the fieldset's dres constant.
func resolution(fs field.Sampler) (float64, error) {
	dres, ok := fs.Constant(field.ConstDres)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingConstant, field.ConstDres)
	}
	if !(dres > 0) || math.IsInf(dres, 0) {
		return 0, fmt.Errorf("%w: %s=%g", ErrInvalidResolution, field.ConstDres, dres)
	}
	return dres, nil
}

// diffusivity samples a diffusivity field and its central-difference
// gradient along one axis. The gradient is in m^2/s per meter; factor
// converts meters to mesh units along that axis.
func diffusivity(fs field.Sampler, name string, zonal bool, time, depth, lat, lon, dres, factor float64) (k, grad float64, err error) {
	var kp, km float64
	if zonal {
		if kp, err = fs.Sample(name, time, depth, lat, lon+dres); err != nil {
			return 0, 0, err
		}
		if km, err = fs.Sample(name, time, depth, lat, lon-dres); err != nil {
			return 0, 0, err
		}
	} else {
		if kp, err = fs.Sample(name, time, depth, lat+dres, lon); err != nil {
			return 0, 0, err
		}
		if km, err = fs.Sample(name, time, depth, lat-dres, lon); err != nil {
			return 0, 0, err
		}
	}
	if k, err = fs.Sample(name, time, depth, lat, lon); err != nil {
		return 0, 0, err
	}
	return k, (kp - km) / (2 * dres) * factor, nil
}

// DiffusionUniformKh applies a random walk with the diffusivity sampled at
// the particle: dx = sqrt(2*Kh)*dW for each horizontal axis.
func DiffusionUniformKh(p *Particle, fs field.Sampler, rng random.Generator, time float64) error {
	dWx, dWy, err := wiener(rng, p.Dt)
	if err != nil {
		return err
	}

	kx, err := fs.Sample(field.NameKhZonal, time, p.Depth, p.Lat, p.Lon)
	if err != nil {
		return err
	}
	ky, err := fs.Sample(field.NameKhMeridional, time, p.Depth, p.Lat, p.Lon)
	if err != nil {
		return err
	}

	mesh := fs.Mesh()
	cz, cm := mesh.ZonalFactor(p.Lat), mesh.MeridionalFactor()
	p.Lon += math.Sqrt(2*kx) * dWx * cz
	p.Lat += math.Sqrt(2*ky) * dWy * cm
	return nil
}

// diffusionTerms holds everything both advection-diffusion schemes sample
// before moving the particle.
type diffusionTerms struct {
	dWx, dWy   float64
	u, v       float64
	kx, ky     float64
	dKdx, dKdy float64
	cz, cm     float64
}

func sampleDiffusionTerms(p *Particle, fs field.Sampler, rng random.Generator, time float64) (diffusionTerms, error) {
	var d diffusionTerms
	var err error

	if d.dWx, d.dWy, err = wiener(rng, p.Dt); err != nil {
		return d, err
	}
	dres, err := resolution(fs)
	if err != nil {
		return d, err
	}

	mesh := fs.Mesh()
	d.cz, d.cm = mesh.ZonalFactor(p.Lat), mesh.MeridionalFactor()

	if d.u, d.v, err = fs.UV(time, p.Depth, p.Lat, p.Lon); err != nil {
		return d, err
	}
	if d.kx, d.dKdx, err = diffusivity(fs, field.NameKhZonal, true, time, p.Depth, p.Lat, p.Lon, dres, d.cz); err != nil {
		return d, err
	}
	if d.ky, d.dKdy, err = diffusivity(fs, field.NameKhMeridional, false, time, p.Depth, p.Lat, p.Lon, dres, d.cm); err != nil {
		return d, err
	}
	return d, nil
}

// AdvectionDiffusionEM integrates advection and spatially varying diffusion
// with the Euler-Maruyama scheme:
//
//	dx = (u + dK/dx)*dt + sqrt(2K)*dW
//
// The dK/dx drift keeps an initially well-mixed tracer well mixed.
func AdvectionDiffusionEM(p *Particle, fs field.Sampler, rng random.Generator, time float64) error {
	d, err := sampleDiffusionTerms(p, fs, rng, time)
	if err != nil {
		return err
	}
	dt := p.Dt

	ax := d.u + d.dKdx
	ay := d.v + d.dKdy
	p.Lon += (ax*dt + math.Sqrt(2*d.kx)*d.dWx) * d.cz
	p.Lat += (ay*dt + math.Sqrt(2*d.ky)*d.dWy) * d.cm
	return nil
}

// AdvectionDiffusionM1 integrates advection and spatially varying diffusion
// with the Milstein scheme:
//
//	dx = u*dt + 0.5*dK/dx*(dW^2 + dt) + sqrt(2K)*dW
//
// which is Euler-Maruyama plus 0.5*dK/dx*(dW^2 - dt).
func AdvectionDiffusionM1(p *Particle, fs field.Sampler, rng random.Generator, time float64) error {
	d, err := sampleDiffusionTerms(p, fs, rng, time)
	if err != nil {
		return err
	}
	dt := p.Dt

	p.Lon += (d.u*dt + 0.5*d.dKdx*(d.dWx*d.dWx+dt) + math.Sqrt(2*d.kx)*d.dWx) * d.cz
	p.Lat += (d.v*dt + 0.5*d.dKdy*(d.dWy*d.dWy+dt) + math.Sqrt(2*d.ky)*d.dWy) * d.cm
	return nil
}
