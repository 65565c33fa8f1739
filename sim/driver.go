package sim

import (
	"math"
	"math/rand"
)

// Controls is the intended control tuple for one tick, before execution
// noise is applied.
type Controls struct {
	Throttle     float64 // 0-1
	Brake        float64 // 0-1
	Steering     float64 // rad
	BoostRequest bool
}

// RaceContext is the cross-entity information a policy may read. It is
// derived from the previous tick's snapshot, never from in-tick state.
type RaceContext struct {
	Rank          int
	GapToAhead    float64 // seconds, +Inf for the leader
	GapToLeader   float64 // seconds
	GapBehind     float64 // seconds to the closest pursuer, +Inf when none
	NearbyCars    int
	Lap           int
	TotalLaps     int
	Progress      float64 // race completion, 0-1
	CautionActive bool
}

// LapsRemaining returns how many laps are left for this car.
func (ctx *RaceContext) LapsRemaining() int {
	return ctx.TotalLaps - ctx.Lap
}

// ControlPolicy decides the intended controls for a car each tick.
// Implementations must be pure given their inputs and the supplied stream.
type ControlPolicy interface {
	Plan(car *CarState, ctx *RaceContext, track *Track, weather Weather, rng *rand.Rand) Controls
}

// HeuristicPolicy is the built-in driver model. It chases a segment-aware
// target speed modulated by driver traits and race situation, steers a
// bicycle-model line through corners, and delegates boost timing to a
// BoostPlanner.
type HeuristicPolicy struct {
	Driver  DriverParams
	Setup   CarSetup
	Planner *BoostPlanner

	cfg *Config
}

// NewHeuristicPolicy creates the built-in policy for one driver.
func NewHeuristicPolicy(driver DriverParams, setup CarSetup, cfg *Config) *HeuristicPolicy {
	return &HeuristicPolicy{
		Driver:  driver,
		Setup:   setup,
		Planner: NewBoostPlanner(cfg),
		cfg:     cfg,
	}
}

// lookaheadSeconds is how far ahead the driver reads the track for early
// braking.
const lookaheadSeconds = 2.0

// Plan computes the intended controls for this tick.
func (p *HeuristicPolicy) Plan(car *CarState, ctx *RaceContext, track *Track, weather Weather, rng *rand.Rand) Controls {
	seg, _ := track.SegmentAt(car.LapDistance)
	target := p.targetSpeed(car, ctx, seg, weather)

	// Early braking: if an upcoming corner demands a lower speed than the
	// current segment, brake for it now.
	lookahead := car.VelX * lookaheadSeconds
	if lookahead > 0 {
		next, _ := track.SegmentAt(car.LapDistance + lookahead)
		if !next.IsStraight() {
			ahead := p.cornerTarget(car, next, weather)
			if ahead < target {
				target = ahead
			}
		}
	}

	throttle, brake := p.pedals(car, seg, target)
	steering := p.steering(car, seg, rng)

	return Controls{
		Throttle:     throttle,
		Brake:        brake,
		Steering:     steering,
		BoostRequest: p.Planner.ShouldRequest(car, ctx, track, rng),
	}
}

// targetSpeed computes the speed the driver aims for on the current segment.
func (p *HeuristicPolicy) targetSpeed(car *CarState, ctx *RaceContext, seg *Segment, weather Weather) float64 {
	var base float64
	if seg.IsStraight() {
		base = p.cfg.Physics.MaxSpeed
	} else {
		base = p.cornerTarget(car, seg, weather)
	}

	skill := 0.95 + 0.5*(p.Driver.Skill-0.95)
	aggr := 0.92 + 0.06*p.Driver.Aggression
	target := base * skill * aggr

	// Situational adjustments.
	if ctx.Rank > 1 && ctx.GapToAhead < 1.5 {
		target *= 1.05 // push to attack
	} else if ctx.Rank == 1 && ctx.GapBehind > 5.0 {
		target *= 0.95 // manage the lead
	}
	if car.BatteryPct < 15.0 {
		target *= 0.92
	}
	if car.TireWear > 0.7 {
		target *= 0.95
	}

	target *= 1.0 - 0.20*weather.RainIntensity

	if car.BoostActive {
		if seg.IsStraight() {
			target *= p.cfg.Boost.SpeedBoostStraight
		} else {
			target *= p.cfg.Boost.SpeedBoostCorner
		}
	}
	return math.Min(target, p.cfg.Physics.MaxSpeed)
}

// cornerTarget is the grip-limited corner speed for this car's current tire
// state and the weather.
func (p *HeuristicPolicy) cornerTarget(car *CarState, seg *Segment, weather Weather) float64 {
	grip := car.Grip * seg.GripLevel * weather.GripFactor
	return MaxCornerSpeed(&p.cfg.Physics, seg.Radius, grip, seg.BankingDeg, p.Setup.DownforceLevel)
}

// pedals converts the speed error into throttle and brake demands with a
// small deadband so the controls do not chatter around the target.
func (p *HeuristicPolicy) pedals(car *CarState, seg *Segment, target float64) (throttle, brake float64) {
	err := target - car.VelX

	switch {
	case err > 1.0:
		throttle = math.Min(err/15.0, 1.0) * (0.7 + 0.3*p.Driver.Aggression)
		if !seg.IsStraight() {
			throttle *= 0.5
		}
	case err < -1.0:
		if seg.IsStraight() {
			brake = math.Min(-err/15.0, 1.0) * (0.6 + 0.4*p.Driver.Aggression)
		} else {
			brake = math.Max(math.Min(-err/8.0, 1.0), 0.8)
		}
	default:
		// Maintenance throttle inside the deadband.
		if seg.IsStraight() {
			throttle = 0.4
		} else {
			throttle = 0.15
		}
	}
	return throttle, brake
}

// steering produces the bicycle-model steering angle for the segment plus a
// skill-scaled line error.
func (p *HeuristicPolicy) steering(car *CarState, seg *Segment, rng *rand.Rand) float64 {
	var delta float64
	switch {
	case seg.IsStraight():
		delta = rng.NormFloat64() * (1.0 - p.Driver.Consistency) * 0.01
	case seg.Radius > 0 && seg.Radius < 10000:
		delta = math.Atan(p.cfg.Physics.Wheelbase / seg.Radius)
		if seg.Kind == LeftCorner {
			delta = -delta
		}
		if seg.Kind == Chicane {
			delta *= math.Sin(car.LapDistance / 10.0)
		}
		delta += rng.NormFloat64() * (1.0 - p.Driver.Skill) * 0.03
	}
	return clamp(delta, -p.cfg.Physics.MaxSteering, p.cfg.Physics.MaxSteering)
}
