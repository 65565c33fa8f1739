package sim

import (
	"math"
	"math/rand"
)

// NoiseModel injects calibrated additive-Gaussian perturbations into the
// simulation. One model owns one seeded stream per run (not per car) for
// reproducibility; the parallel scalar path rebinds the stream per car/tick
// via WithStream.
//
// Per tick the engine invokes the operations in this fixed order:
//
//  1. ControlNoise
//  2. TireWearNoise
//  3. EnergyDrawNoise
//  4. ProcessNoise (last, after all deterministic updates)
//
// The vectorized engine calibrates against the same sigmas; exact values may
// diverge between the two, so conformance is checked with noise disabled.
type NoiseModel struct {
	sigmas NoiseSigmas
	cfg    *Config
	rng    *rand.Rand
}

// NewNoiseModel creates a noise model over the given stream.
func NewNoiseModel(cfg *Config, rng *rand.Rand) *NoiseModel {
	return &NoiseModel{sigmas: cfg.Noise, cfg: cfg, rng: rng}
}

// WithStream returns a model with the same calibration bound to a different
// stream. Used by the parallel scalar path with CarTickStream substreams.
func (n *NoiseModel) WithStream(rng *rand.Rand) *NoiseModel {
	cp := *n
	cp.rng = rng
	return &cp
}

// ControlNoise perturbs the intended control tuple with execution jitter.
// Standard deviation is proportional to driver inconsistency; results are
// re-clamped to their physical ranges.
func (n *NoiseModel) ControlNoise(throttle, brake, steering, consistency float64) (float64, float64, float64) {
	inconsistency := 1.0 - consistency
	throttle += n.rng.NormFloat64() * n.sigmas.Control * inconsistency
	brake += n.rng.NormFloat64() * n.sigmas.Control * inconsistency
	steering += n.rng.NormFloat64() * n.sigmas.Steering * inconsistency

	maxSteer := n.cfg.Physics.MaxSteering
	return clamp(throttle, 0, 1), clamp(brake, 0, 1), clamp(steering, -maxSteer, maxSteer)
}

// TireWearNoise perturbs a degradation-rate scalar. Hot tires wear less
// predictably: sigma scales with 1+(T-70)/100. Never negative.
func (n *NoiseModel) TireWearNoise(rate, tireTemp float64) float64 {
	tempFactor := 1.0 + (tireTemp-70.0)/100.0
	rate += n.rng.NormFloat64() * rate * n.sigmas.TireWear * tempFactor
	return math.Max(0, rate)
}

// EnergyDrawNoise perturbs an energy-draw scalar. Sigma grows with the
// battery's deviation from its optimal temperature. Never negative.
func (n *NoiseModel) EnergyDrawNoise(draw, batteryTemp float64) float64 {
	deviation := math.Abs(batteryTemp - n.cfg.Energy.OptimalTemp)
	scale := n.sigmas.EnergyDraw * (1.0 + deviation*0.05)
	draw += n.rng.NormFloat64() * draw * scale
	return math.Max(0, draw)
}

// ProcessNoise perturbs velocity, position, acceleration and temperatures
// directly. Magnitude scales with sqrt(dt) (diffusion scaling) and driver
// inconsistency; every touched field is re-clamped afterward.
func (n *NoiseModel) ProcessNoise(c *CarState, consistency, dt float64) {
	inconsistency := 1.0 - consistency
	scale := math.Sqrt(dt)

	c.VelX += n.rng.NormFloat64() * n.sigmas.Velocity * inconsistency * scale
	c.VelY += n.rng.NormFloat64() * n.sigmas.Velocity * inconsistency * scale * 0.5
	c.PosX += n.rng.NormFloat64() * n.sigmas.Position * scale
	c.Accel += n.rng.NormFloat64() * n.sigmas.Accel * inconsistency * scale
	c.TireTemp += n.rng.NormFloat64() * n.sigmas.TireTemp * scale
	c.BatteryTemp += n.rng.NormFloat64() * n.sigmas.BatteryTemp * scale

	c.VelX = clamp(c.VelX, 0, n.cfg.Physics.MaxSpeed)
	c.VelY = clamp(c.VelY, -20, 20)
	c.TireTemp = clamp(c.TireTemp, n.cfg.Tires.TempMin, n.cfg.Tires.TempMax+10)
	c.BatteryTemp = clamp(c.BatteryTemp, n.cfg.Energy.TempMin, n.cfg.Energy.TempMax+5)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
