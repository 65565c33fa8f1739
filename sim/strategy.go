package sim

import "math/rand"

// BoostPlanner decides when a driver requests a boost activation. Hard
// preconditions (zone, uses, battery) gate a scored condition set; when at
// least two conditions hold the request fires through a small per-tick
// probability so the whole field does not activate on the same tick.
type BoostPlanner struct {
	cfg *Config
}

// NewBoostPlanner creates a planner over the race configuration.
func NewBoostPlanner(cfg *Config) *BoostPlanner {
	return &BoostPlanner{cfg: cfg}
}

// ShouldRequest reports whether the driver asks for boost this tick. The
// request is advisory: CarState.ActivateBoost re-validates the transition.
func (b *BoostPlanner) ShouldRequest(car *CarState, ctx *RaceContext, track *Track, rng *rand.Rand) bool {
	if car.BoostActive || car.BoostUses <= 0 {
		return false
	}
	if car.BatteryPct <= b.cfg.Boost.MinBatteryPct {
		return false
	}
	if !track.InBoostZone(car.LapDistance) {
		return false
	}

	seg, _ := track.SegmentAt(car.LapDistance)
	closeBattle := ctx.GapToAhead > 0.1 && ctx.GapToAhead < 2.0

	conditions := 0
	if ctx.Progress > 0.7 {
		conditions++ // final phase of the race
	}
	if closeBattle && seg.IsStraight() {
		conditions++
	}
	if ctx.Rank >= 2 && ctx.Rank <= 6 && closeBattle {
		conditions++
	}
	if car.BatteryPct > 60.0 && ctx.LapsRemaining() < 3 {
		conditions++
	}
	if conditions < 2 {
		return false
	}

	return rng.Float64() < b.cfg.Boost.ActivationGate
}
