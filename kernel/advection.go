package kernel

import (
	"github.com/STOA-tech/Parcels/field"
	"github.com/STOA-tech/Parcels/random"
)

// velocity samples UV and converts it to mesh units per second.
func velocity(fs field.Sampler, time, depth, lat, lon float64) (dlon, dlat float64, err error) {
	u, v, err := fs.UV(time, depth, lat, lon)
	if err != nil {
		return 0, 0, err
	}
	mesh := fs.Mesh()
	return u * mesh.ZonalFactor(lat), v * mesh.MeridionalFactor(), nil
}

// AdvectionEE moves the particle with one explicit Euler step.
func AdvectionEE(p *Particle, fs field.Sampler, _ random.Generator, time float64) error {
	u, v, err := velocity(fs, time, p.Depth, p.Lat, p.Lon)
	if err != nil {
		return err
	}
	p.Lon += u * p.Dt
	p.Lat += v * p.Dt
	return nil
}

// AdvectionRK4 moves the particle with a fourth-order Runge-Kutta step.
func AdvectionRK4(p *Particle, fs field.Sampler, _ random.Generator, time float64) error {
	dt := p.Dt

	u1, v1, err := velocity(fs, time, p.Depth, p.Lat, p.Lon)
	if err != nil {
		return err
	}
	lon1, lat1 := p.Lon+u1*0.5*dt, p.Lat+v1*0.5*dt

	u2, v2, err := velocity(fs, time+0.5*dt, p.Depth, lat1, lon1)
	if err != nil {
		return err
	}
	lon2, lat2 := p.Lon+u2*0.5*dt, p.Lat+v2*0.5*dt

	u3, v3, err := velocity(fs, time+0.5*dt, p.Depth, lat2, lon2)
	if err != nil {
		return err
	}
	lon3, lat3 := p.Lon+u3*dt, p.Lat+v3*dt

	u4, v4, err := velocity(fs, time+dt, p.Depth, lat3, lon3)
	if err != nil {
		return err
	}

	p.Lon += (u1 + 2*u2 + 2*u3 + u4) / 6 * dt
	p.Lat += (v1 + 2*v2 + 2*v3 + v4) / 6 * dt
	return nil
}
