package sim

import "math/rand"

// RaceControl runs the safety car state machine. Deployment is evaluated
// once per leader lap; while deployed the whole field is speed-capped and a
// cooldown blocks back-to-back deployments.
type RaceControl struct {
	cfg    *Config
	events *EventModel

	active        bool
	remaining     float64 // seconds of deployment left
	lastDeployLap int
	checkedLap    int // last leader lap the deployment draw ran for
}

// NewRaceControl creates race control over the race configuration.
func NewRaceControl(cfg *Config, events *EventModel) *RaceControl {
	return &RaceControl{cfg: cfg, events: events, lastDeployLap: -1, checkedLap: 0}
}

// CautionActive reports whether the safety car is out.
func (rc *RaceControl) CautionActive() bool { return rc.active }

// EvaluateLap runs the deployment draw when the leader reaches a new lap.
// Returns true when a new caution is deployed this call. Deployments are
// suppressed on the opening laps and during the cooldown window.
func (rc *RaceControl) EvaluateLap(leaderLap, totalLaps int, log *EventLog, rng *rand.Rand) bool {
	if leaderLap <= rc.checkedLap {
		return false
	}
	rc.checkedLap = leaderLap

	if rc.active || leaderLap < 2 {
		return false
	}
	if rc.lastDeployLap >= 0 && leaderLap-rc.lastDeployLap < rc.cfg.Events.CautionCooldownLaps {
		return false
	}

	recent := log.CrashesSinceLap(leaderLap - 2)
	if !rc.events.CautionCheck(totalLaps, recent, rng) {
		return false
	}
	rc.active = true
	rc.remaining = rc.cfg.Events.SafetyCarDuration
	rc.lastDeployLap = leaderLap
	return true
}

// Step advances the caution timer. Returns true when a deployment ends on
// this tick.
func (rc *RaceControl) Step(dt float64) bool {
	if !rc.active {
		return false
	}
	rc.remaining -= dt
	if rc.remaining <= 0 {
		rc.active = false
		rc.remaining = 0
		return true
	}
	return false
}

// Apply enforces the caution speed cap on a car's intended controls. Cars
// above the cap are forced to lift and brake; cars below it hold station.
func (rc *RaceControl) Apply(controls Controls, car *CarState) Controls {
	if !rc.active {
		return controls
	}
	controls.BoostRequest = false
	if car.VelX > rc.cfg.Events.SafetyCarSpeed {
		controls.Throttle = 0
		controls.Brake = 0.5
	}
	return controls
}
