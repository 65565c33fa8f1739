package sim

import "fmt"

// PhysicsConfig groups the vehicle constants used by both engines.
// Defaults follow a Gen3 electric open-wheeler.
type PhysicsConfig struct {
	TotalMass         float64 // car + driver (kg)
	Wheelbase         float64 // m
	MaxPowerKW        float64 // rated motor power (kW)
	MaxRegenPowerKW   float64 // regen power ceiling (kW)
	MaxDeceleration   float64 // braking decel at full pedal (m/s²)
	MaxSpeed          float64 // global top speed (m/s)
	Gravity           float64 // m/s²
	DragCoeff         float64 // Cd
	FrontalArea       float64 // m²
	DownforceCoeff    float64 // Cl at max speed
	AirDensity        float64 // kg/m³
	RollingResistance float64 // Cr
	MotorEfficiency   float64
	RegenEfficiency   float64 // fraction of regen braking recovered
	MaxSteering       float64 // rad (~30°)
}

// EnergyConfig groups battery parameters.
type EnergyConfig struct {
	CapacityJ      float64 // usable energy (J)
	OptimalTemp    float64 // °C
	TempMin        float64 // °C, operating floor
	TempMax        float64 // °C, operating ceiling
	RetireBelowPct float64 // energy % below which the car retires (terminal)
}

// TireConfig groups tire wear and grip parameters.
// WearScale is a calibration factor applied on top of the base degradation
// rates; it is tunable rather than folded into the K constants.
type TireConfig struct {
	KBase     float64 // base degradation per second
	KSpeed    float64 // speed² contribution
	KLateral  float64 // lateral-g² contribution
	WearScale float64 // calibration multiplier on the K terms
	MuMax     float64 // grip when new
	MuMin     float64 // grip fully worn
	TempMin   float64 // °C
	TempMax   float64 // °C
}

// BoostConfig groups the limited-use power boost ("attack mode") mechanic.
type BoostConfig struct {
	PowerBoostKW       float64 // added to MaxPowerKW while active
	Duration           float64 // seconds per activation
	Activations        int     // uses per race
	SpeedBoostStraight float64 // target-speed multiplier on straights
	SpeedBoostCorner   float64 // target-speed multiplier in corners
	MinBatteryPct      float64 // activation requires battery above this
	ActivationGate     float64 // per-tick probability once conditions are met
}

// EventConfig groups stochastic race-event parameters.
type EventConfig struct {
	CrashBaseRate       float64 // per-tick Bernoulli base rate
	CrashRiskScale      float64 // multiplier on the normalized risk sum
	SafetyCarRate       float64 // race-long deployment probability
	SafetyCarDuration   float64 // seconds
	SafetyCarSpeed      float64 // field speed cap while deployed (m/s)
	CautionCooldownLaps int     // min laps between deployments
	OvertakeWindow      float64 // max separation for an attempt (m)
	TrafficRadius       float64 // distance counted as local traffic (m)
	TrafficReference    float64 // car count that saturates traffic risk
}

// NoiseSigmas are the calibrated standard deviations of the noise model.
// Zeroing every field makes both engines fully deterministic.
type NoiseSigmas struct {
	Velocity    float64 // m/s
	Position    float64 // m
	Accel       float64 // m/s²
	Steering    float64 // rad
	Control     float64 // throttle/brake fraction
	TireTemp    float64 // °C
	BatteryTemp float64 // °C
	TireWear    float64 // relative, on the degradation rate
	EnergyDraw  float64 // relative, on the per-tick draw
}

// Config is the full race configuration, constructed once at race start and
// threaded through every call; nothing reads ambient global state.
type Config struct {
	Physics PhysicsConfig
	Energy  EnergyConfig
	Tires   TireConfig
	Boost   BoostConfig
	Events  EventConfig
	Noise   NoiseSigmas
}

// DriverParams are per-entity behavioral parameters, normalized around 1.0
// for skill and [0,1] for aggression/consistency.
type DriverParams struct {
	Name        string
	Skill       float64
	Aggression  float64
	Consistency float64
}

// CarSetup holds per-car efficiency multipliers, normalized around 1.0.
type CarSetup struct {
	PowerEfficiency   float64
	BatteryEfficiency float64
	AeroEfficiency    float64
	TireWearRate      float64
	RegenEfficiency   float64
	DownforceLevel    float64
}

// SimParams are the runtime parameters of one race.
type SimParams struct {
	Dt         float64
	Laps       int
	Seed       int64
	Vectorized bool
	Workers    int // >1 fans the scalar engine out across cars
}

// DefaultConfig returns the calibrated baseline configuration.
func DefaultConfig() Config {
	return Config{
		Physics: PhysicsConfig{
			TotalMass:         920.0,
			Wheelbase:         2.97,
			MaxPowerKW:        350.0,
			MaxRegenPowerKW:   600.0,
			MaxDeceleration:   5.5,
			MaxSpeed:          322.0 / 3.6,
			Gravity:           9.81,
			DragCoeff:         0.32,
			FrontalArea:       1.5,
			DownforceCoeff:    1.8,
			AirDensity:        1.225,
			RollingResistance: 0.015,
			MotorEfficiency:   0.97,
			RegenEfficiency:   0.40,
			MaxSteering:       0.52,
		},
		Energy: EnergyConfig{
			CapacityJ:      51.0 * 3.6e6,
			OptimalTemp:    40.0,
			TempMin:        20.0,
			TempMax:        60.0,
			RetireBelowPct: 0.5,
		},
		Tires: TireConfig{
			KBase:     0.002,
			KSpeed:    0.00003,
			KLateral:  0.0004,
			WearScale: 0.001,
			MuMax:     1.2,
			MuMin:     0.9,
			TempMin:   60.0,
			TempMax:   120.0,
		},
		Boost: BoostConfig{
			PowerBoostKW:       50.0,
			Duration:           240.0,
			Activations:        2,
			SpeedBoostStraight: 1.08,
			SpeedBoostCorner:   1.02,
			MinBatteryPct:      40.0,
			ActivationGate:     0.05,
		},
		Events: EventConfig{
			CrashBaseRate:       1e-7,
			CrashRiskScale:      50.0,
			SafetyCarRate:       0.15,
			SafetyCarDuration:   180.0,
			SafetyCarSpeed:      60.0 / 3.6,
			CautionCooldownLaps: 5,
			OvertakeWindow:      10.0,
			TrafficRadius:       20.0,
			TrafficReference:    5.0,
		},
		Noise: NoiseSigmas{
			Velocity:    0.15,
			Position:    0.05,
			Accel:       0.08,
			Steering:    0.005,
			Control:     0.02,
			TireTemp:    0.5,
			BatteryTemp: 0.3,
			TireWear:    0.15,
			EnergyDraw:  0.02,
		},
	}
}

// DefaultSetup returns a neutral car setup.
func DefaultSetup() CarSetup {
	return CarSetup{
		PowerEfficiency:   1.0,
		BatteryEfficiency: 1.0,
		AeroEfficiency:    1.0,
		TireWearRate:      1.0,
		RegenEfficiency:   1.0,
		DownforceLevel:    1.0,
	}
}

// Validate checks the configuration once at race init. The tick path never
// validates; it clamps.
func (c *Config) Validate() error {
	if c.Physics.TotalMass <= 0 {
		return fmt.Errorf("total mass must be positive, got %f", c.Physics.TotalMass)
	}
	if c.Physics.Wheelbase <= 0 {
		return fmt.Errorf("wheelbase must be positive, got %f", c.Physics.Wheelbase)
	}
	if c.Physics.MaxSpeed <= 0 {
		return fmt.Errorf("max speed must be positive, got %f", c.Physics.MaxSpeed)
	}
	if c.Physics.MotorEfficiency <= 0 || c.Physics.MotorEfficiency > 1 {
		return fmt.Errorf("motor efficiency must be in (0,1], got %f", c.Physics.MotorEfficiency)
	}
	if c.Energy.CapacityJ <= 0 {
		return fmt.Errorf("battery capacity must be positive, got %f", c.Energy.CapacityJ)
	}
	if c.Tires.MuMin > c.Tires.MuMax {
		return fmt.Errorf("tire grip range inverted: min %f > max %f", c.Tires.MuMin, c.Tires.MuMax)
	}
	if c.Boost.Activations < 0 {
		return fmt.Errorf("boost activations must be non-negative, got %d", c.Boost.Activations)
	}
	if c.Events.CrashBaseRate < 0 || c.Events.CrashBaseRate > 1 {
		return fmt.Errorf("crash base rate must be a probability, got %g", c.Events.CrashBaseRate)
	}
	return nil
}

// Validate checks simulation runtime parameters.
func (p *SimParams) Validate() error {
	if p.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %f", p.Dt)
	}
	if p.Laps <= 0 {
		return fmt.Errorf("laps must be positive, got %d", p.Laps)
	}
	return nil
}

// Validate checks driver parameters.
func (d *DriverParams) Validate() error {
	if d.Skill <= 0 {
		return fmt.Errorf("driver %q: skill must be positive, got %f", d.Name, d.Skill)
	}
	if d.Aggression < 0 || d.Aggression > 1 {
		return fmt.Errorf("driver %q: aggression must be in [0,1], got %f", d.Name, d.Aggression)
	}
	if d.Consistency < 0 || d.Consistency > 1 {
		return fmt.Errorf("driver %q: consistency must be in [0,1], got %f", d.Name, d.Consistency)
	}
	return nil
}
