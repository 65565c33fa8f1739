package sim

import (
	"fmt"
	"math"
	"math/rand"
)

// EventKind classifies race events.
type EventKind string

const (
	EventCrash        EventKind = "crash"
	EventOvertake     EventKind = "overtake"
	EventSafetyCar    EventKind = "safety_car"
	EventSafetyCarEnd EventKind = "safety_car_end"
	EventRetirement   EventKind = "retirement"
	EventAttackMode   EventKind = "attack_mode"
	EventLapComplete  EventKind = "lap_complete"
)

// EventRecord is one entry of the race event log.
type EventRecord struct {
	Tick   int
	Time   float64 // race clock (s)
	Lap    int
	Kind   EventKind
	CarID  int // -1 for field-wide events
	Target int // defender on overtakes, -1 otherwise
	Detail string
}

// String renders the record for logs.
func (r EventRecord) String() string {
	return fmt.Sprintf("[%7.1fs lap %2d] %s car=%d %s", r.Time, r.Lap, r.Kind, r.CarID, r.Detail)
}

// EventLog is the append-only chronological record of a race.
type EventLog struct {
	records []EventRecord
}

// Append adds a record.
func (l *EventLog) Append(r EventRecord) {
	l.records = append(l.records, r)
}

// Records returns all records in order.
func (l *EventLog) Records() []EventRecord {
	return l.records
}

// Count returns how many records of the given kind were logged.
func (l *EventLog) Count(kind EventKind) int {
	n := 0
	for _, r := range l.records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// CrashesSinceLap counts crashes at or after the given lap.
func (l *EventLog) CrashesSinceLap(lap int) int {
	n := 0
	for _, r := range l.records {
		if r.Kind == EventCrash && r.Lap >= lap {
			n++
		}
	}
	return n
}

// EventModel evaluates the per-tick probability of discrete race events.
// All methods are pure given their inputs and the supplied stream, so both
// engines and the replay path share one model.
type EventModel struct {
	cfg *Config
}

// NewEventModel creates an event model over the race configuration.
func NewEventModel(cfg *Config) *EventModel {
	return &EventModel{cfg: cfg}
}

// CrashRisk returns the normalized risk score in [0, 1] for a car. Speed,
// tire wear, aggression, local traffic and low battery each contribute a
// weighted share.
func (m *EventModel) CrashRisk(car *CarState, driver *DriverParams, nearby int) float64 {
	ev := &m.cfg.Events
	speedRisk := car.VelX / m.cfg.Physics.MaxSpeed
	trafficRisk := math.Min(float64(nearby)/ev.TrafficReference, 1.0)
	batteryRisk := math.Max(0, 1.0-car.BatteryPct/100.0)

	return 0.30*speedRisk +
		0.25*car.TireWear +
		0.20*driver.Aggression +
		0.15*trafficRisk +
		0.10*batteryRisk
}

// CrashCheck draws the per-tick crash Bernoulli. The probability is the base
// rate scaled up with the risk score; at the default base rate a clean lap
// is overwhelmingly likely and a crash over a race is rare but real.
func (m *EventModel) CrashCheck(car *CarState, driver *DriverParams, nearby int, rng *rand.Rand) bool {
	if !car.Active {
		return false
	}
	risk := m.CrashRisk(car, driver, nearby)
	p := m.cfg.Events.CrashBaseRate * (1.0 + m.cfg.Events.CrashRiskScale*risk)
	return rng.Float64() < p
}

// OvertakeProbability returns the success probability of an overtake attempt
// by attacker on defender, given the segment they are fighting on.
func (m *EventModel) OvertakeProbability(attacker, defender *CarState, seg *Segment) float64 {
	z := 0.5 * (attacker.VelX - defender.VelX)
	z += 0.02 * (attacker.BatteryPct - defender.BatteryPct)
	if attacker.BoostActive {
		z += 0.3
	}
	if defender.BoostActive {
		z -= 0.2
	}
	z += 0.4 * (defender.TireWear - attacker.TireWear)

	switch seg.Kind {
	case Straight:
		z += 0.8
	case Chicane:
		z += 0.5
	default:
		z += 0.3
	}
	return sigmoid(z)
}

// OvertakeCheck decides whether attacker attempts and completes a pass this
// tick. Attempts require the pair to be within the overtake window with the
// attacker behind; attempt frequency scales with the success probability so
// hopeless moves are rarely tried.
func (m *EventModel) OvertakeCheck(attacker, defender *CarState, seg *Segment, rng *rand.Rand) bool {
	if !attacker.Active || !defender.Active {
		return false
	}
	gap := defender.TotalDistance - attacker.TotalDistance
	if gap <= 0 || gap > m.cfg.Events.OvertakeWindow {
		return false
	}
	p := m.OvertakeProbability(attacker, defender, seg)
	if rng.Float64() >= 0.1*p {
		return false // no attempt this tick
	}
	return rng.Float64() < p
}

// CautionProbability returns the deployment probability evaluated when the
// leader completes a lap. Recent crashes raise it.
func (m *EventModel) CautionProbability(totalLaps, recentCrashes int) float64 {
	if totalLaps <= 0 {
		return 0
	}
	p := m.cfg.Events.SafetyCarRate / float64(totalLaps)
	return p * (1.0 + 0.5*float64(recentCrashes))
}

// CautionCheck draws the per-lap safety car deployment.
func (m *EventModel) CautionCheck(totalLaps, recentCrashes int, rng *rand.Rand) bool {
	return rng.Float64() < m.CautionProbability(totalLaps, recentCrashes)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
