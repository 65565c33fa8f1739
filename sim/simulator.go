package sim

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"
)

// Race orchestrates one simulated race: it owns the field, the engines, the
// event model, race control, weather and the event log, and advances them in
// lockstep each tick.
type Race struct {
	cfg     Config
	params  SimParams
	track   *Track
	drivers []DriverParams
	setups  []CarSetup

	cars     []*CarState
	policies []ControlPolicy

	streams *Streams
	noise   *NoiseModel
	events  *EventModel
	control *RaceControl
	weather *WeatherSystem
	engine  *Engine

	batch      *BatchEngine
	batchState *BatchState

	eventLog *EventLog
	metrics  *Metrics
	log      *logrus.Logger

	tick     int
	clock    float64
	finished bool

	controls  []Controls // per-tick scratch
	prevLap   []int
	prevBoost []bool
}

// NewRace assembles a race. Setups may be nil for a neutral field.
func NewRace(cfg Config, params SimParams, track *Track, drivers []DriverParams, setups []CarSetup) (*Race, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	if len(drivers) == 0 {
		return nil, fmt.Errorf("race needs at least one driver")
	}
	for i := range drivers {
		if err := drivers[i].Validate(); err != nil {
			return nil, err
		}
	}
	if setups == nil {
		setups = make([]CarSetup, len(drivers))
		for i := range setups {
			setups[i] = DefaultSetup()
		}
	}
	if len(setups) != len(drivers) {
		return nil, fmt.Errorf("got %d setups for %d drivers", len(setups), len(drivers))
	}

	r := &Race{
		cfg:       cfg,
		params:    params,
		track:     track,
		drivers:   drivers,
		setups:    setups,
		streams:   NewStreams(NewSimulationKey(params.Seed)),
		events:    NewEventModel(&cfg),
		eventLog:  &EventLog{},
		metrics:   NewMetrics(),
		log:       logrus.StandardLogger(),
		controls:  make([]Controls, len(drivers)),
		prevLap:   make([]int, len(drivers)),
		prevBoost: make([]bool, len(drivers)),
	}
	r.noise = NewNoiseModel(&r.cfg, r.streams.ForSubsystem(SubsystemPhysics))
	r.control = NewRaceControl(&r.cfg, r.events)
	r.weather = NewWeatherSystem(DryWeather(), r.streams.ForSubsystem(SubsystemWeather))
	r.engine = NewEngine(&r.cfg, track)

	r.cars = NewGrid(drivers, &r.cfg)
	for i, c := range r.cars {
		// Grid stagger: each slot starts 8 m further back.
		c.LapDistance = -float64(i) * 8.0
		c.TotalDistance = c.LapDistance
		c.PosX, c.PosY = track.Position(c.LapDistance)
	}
	r.policies = make([]ControlPolicy, len(drivers))
	for i := range drivers {
		r.policies[i] = NewHeuristicPolicy(drivers[i], setups[i], &r.cfg)
	}

	if params.Vectorized {
		r.batch = NewBatchEngine(&r.cfg, track, r.noise, len(drivers))
		r.batchState = NewBatchState(r.cars, drivers, setups)
	}
	return r, nil
}

// SetLogger replaces the default logger.
func (r *Race) SetLogger(l *logrus.Logger) { r.log = l }

// Cars exposes the live field, primarily for inspection between ticks.
func (r *Race) Cars() []*CarState { return r.cars }

// Events returns the race event log.
func (r *Race) Events() *EventLog { return r.eventLog }

// Metrics returns the statistics collector.
func (r *Race) Metrics() *Metrics { return r.metrics }

// Finished reports whether the race has been decided.
func (r *Race) Finished() bool { return r.finished }

// Clock returns the race clock in seconds.
func (r *Race) Clock() float64 { return r.clock }

// Tick advances the race by one dt step.
func (r *Race) Tick() {
	if r.finished {
		return
	}
	dt := r.params.Dt

	snap := TakeSnapshot(r.cars)
	r.weather.Step(dt)
	w := r.weather.Current()

	for i := range r.cars {
		r.prevLap[i] = r.cars[i].Lap
		r.prevBoost[i] = r.cars[i].BoostActive
	}

	r.planControls(snap, w)
	r.advance(w, dt)
	r.resolveEvents(snap)
	ComputeStandings(r.cars, &r.cfg)
	r.recordLapsAndBoosts()
	r.stepCaution(dt)

	r.tick++
	r.clock += dt
	r.metrics.Ticks = r.tick
	r.metrics.RaceTime = r.clock

	r.checkFinish()
}

// planControls asks every policy for its intended controls, then lets race
// control override them under caution.
func (r *Race) planControls(snap *Snapshot, w Weather) {
	physRng := r.streams.ForSubsystem(SubsystemPhysics)
	for i, c := range r.cars {
		if !c.Active {
			r.controls[i] = Controls{}
			continue
		}
		ctx := r.contextFor(c, snap)
		r.controls[i] = r.policies[i].Plan(c, &ctx, r.track, w, physRng)
		r.controls[i] = r.control.Apply(r.controls[i], c)
	}
}

// contextFor derives the policy's view of the race from the previous tick.
func (r *Race) contextFor(c *CarState, snap *Snapshot) RaceContext {
	gapBehind := math.Inf(1)
	for i := range snap.Cars {
		o := &snap.Cars[i]
		if o.Active && o.Rank == c.Rank+1 {
			gapBehind = o.GapToAhead
			break
		}
	}
	return RaceContext{
		Rank:          c.Rank,
		GapToAhead:    c.GapToAhead,
		GapToLeader:   c.GapToLeader,
		GapBehind:     gapBehind,
		NearbyCars:    snap.NearbyCount(c.ID, r.cfg.Events.TrafficRadius),
		Lap:           c.Lap,
		TotalLaps:     r.params.Laps,
		Progress:      clamp(float64(c.Lap)/float64(r.params.Laps), 0, 1),
		CautionActive: r.control.CautionActive(),
	}
}

// advance runs the configured engine over the field.
func (r *Race) advance(w Weather, dt float64) {
	switch {
	case r.params.Vectorized:
		r.batchState.Sync(r.cars)
		r.batch.Advance(r.batchState, r.controls, w, dt)
		r.batchState.WriteBack(r.cars, r.track)
	case r.params.Workers > 1:
		r.advanceParallel(w, dt)
	default:
		for i, c := range r.cars {
			r.engine.Advance(c, &r.drivers[i], &r.setups[i], r.controls[i], w, dt, r.noise)
		}
	}
}

// advanceParallel fans the scalar engine out across cars. Each car draws
// from a stream derived from (seed, car, tick), so results are independent
// of scheduling order.
func (r *Race) advanceParallel(w Weather, dt float64) {
	workers := r.params.Workers
	if workers > len(r.cars) {
		workers = len(r.cars)
	}
	var wg sync.WaitGroup
	jobs := make(chan int)
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				stream := CarTickStream(r.streams.Key(), r.cars[i].ID, r.tick)
				noise := r.noise.WithStream(stream)
				r.engine.Advance(r.cars[i], &r.drivers[i], &r.setups[i], r.controls[i], w, dt, noise)
			}
		}()
	}
	for i := range r.cars {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// resolveEvents draws crashes and overtakes from the events stream and
// applies their consequences.
func (r *Race) resolveEvents(snap *Snapshot) {
	rng := r.streams.ForSubsystem(SubsystemEvents)

	for i, c := range r.cars {
		if !c.Active {
			continue
		}
		nearby := snap.NearbyCount(c.ID, r.cfg.Events.TrafficRadius)
		if r.events.CrashCheck(c, &r.drivers[i], nearby, rng) {
			c.Retire("crash")
			r.metrics.Crashes++
			r.metrics.Retired++
			r.appendEvent(EventCrash, c.ID, -1, fmt.Sprintf("%s crashed", c.Name))
			r.log.WithFields(logrus.Fields{"car": c.Name, "lap": c.Lap}).Info("crash")
		}
	}

	// Battery retirements happen inside the engines; log the transition here.
	for _, c := range r.cars {
		if !c.Active && c.RetireReason == "battery depleted" && !r.loggedRetirement(c.ID) {
			r.metrics.Retired++
			r.appendEvent(EventRetirement, c.ID, -1, fmt.Sprintf("%s retired: %s", c.Name, c.RetireReason))
			r.log.WithFields(logrus.Fields{"car": c.Name, "lap": c.Lap}).Info("retirement")
		}
	}

	// Overtakes between cars adjacent on the road.
	order := make([]*CarState, 0, len(r.cars))
	for _, c := range r.cars {
		if c.Active {
			order = append(order, c)
		}
	}
	sortByDistance(order)
	for i := 1; i < len(order); i++ {
		defender, attacker := order[i-1], order[i]
		seg, _ := r.track.SegmentAt(attacker.LapDistance)
		if r.events.OvertakeCheck(attacker, defender, seg, rng) {
			swapRoadPosition(attacker, defender)
			attacker.OvertakesMade++
			defender.OvertakesTaken++
			r.metrics.Overtakes++
			r.appendEvent(EventOvertake, attacker.ID, defender.ID,
				fmt.Sprintf("%s passed %s", attacker.Name, defender.Name))
			r.log.WithFields(logrus.Fields{
				"attacker": attacker.Name, "defender": defender.Name, "segment": seg.Kind.String(),
			}).Debug("overtake")
		}
	}
}

// loggedRetirement reports whether a retirement record for the car exists.
func (r *Race) loggedRetirement(carID int) bool {
	for _, rec := range r.eventLog.Records() {
		if rec.CarID == carID && (rec.Kind == EventRetirement || rec.Kind == EventCrash) {
			return true
		}
	}
	return false
}

// recordLapsAndBoosts logs lap completions and boost activations detected by
// comparing against the pre-tick state.
func (r *Race) recordLapsAndBoosts() {
	for i, c := range r.cars {
		if c.Lap > r.prevLap[i] {
			r.metrics.RecordLap(c.ID, c.Name, c.LastLapTime)
			r.appendEvent(EventLapComplete, c.ID, -1,
				fmt.Sprintf("%s lap %d in %.2fs", c.Name, c.Lap, c.LastLapTime))
			r.log.WithFields(logrus.Fields{
				"car": c.Name, "lap": c.Lap, "time": c.LastLapTime,
			}).Debug("lap complete")
		}
		if c.BoostActive && !r.prevBoost[i] {
			r.appendEvent(EventAttackMode, c.ID, -1,
				fmt.Sprintf("%s activated boost (%d left)", c.Name, c.BoostUses))
			r.log.WithFields(logrus.Fields{"car": c.Name, "uses_left": c.BoostUses}).Info("boost activated")
		}
	}
}

// stepCaution evaluates deployment on leader lap boundaries and advances the
// caution timer.
func (r *Race) stepCaution(dt float64) {
	rng := r.streams.ForSubsystem(SubsystemEvents)
	leaderLap := 0
	for _, c := range r.cars {
		if c.Lap > leaderLap {
			leaderLap = c.Lap
		}
	}
	if r.control.EvaluateLap(leaderLap, r.params.Laps, r.eventLog, rng) {
		r.metrics.Cautions++
		r.appendEvent(EventSafetyCar, -1, -1, "safety car deployed")
		r.log.WithField("lap", leaderLap).Info("safety car deployed")
	}
	if r.control.Step(dt) {
		r.appendEvent(EventSafetyCarEnd, -1, -1, "safety car in")
		r.log.Info("safety car in")
	}
}

// checkFinish ends the race when the leader completes the distance or the
// whole field is out.
func (r *Race) checkFinish() {
	anyActive := false
	for _, c := range r.cars {
		if c.Active {
			anyActive = true
		}
		if c.Lap >= r.params.Laps {
			r.finished = true
		}
	}
	if !anyActive {
		r.finished = true
	}
}

// RaceResult is the final outcome of a run.
type RaceResult struct {
	Standings []Standing
	Events    *EventLog
	Metrics   *Metrics
	Ticks     int
	Winner    string
}

// Run advances the race to completion or context cancellation. A ceiling of
// ten in-race minutes per lap guards against a stalled field.
func (r *Race) Run(ctx context.Context) (*RaceResult, error) {
	maxTicks := int(float64(r.params.Laps) * 600.0 / r.params.Dt)
	for !r.finished && r.tick < maxTicks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		r.Tick()
	}

	standings := ComputeStandings(r.cars, &r.cfg)
	result := &RaceResult{
		Standings: standings,
		Events:    r.eventLog,
		Metrics:   r.metrics,
		Ticks:     r.tick,
	}
	if len(standings) > 0 {
		result.Winner = standings[0].Name
	}
	r.log.WithFields(logrus.Fields{
		"winner": result.Winner, "ticks": r.tick, "time": r.clock,
	}).Info("race finished")
	return result, nil
}

func (r *Race) appendEvent(kind EventKind, carID, target int, detail string) {
	lap := 0
	if carID >= 0 && carID < len(r.cars) {
		lap = r.cars[carID].Lap
	}
	r.eventLog.Append(EventRecord{
		Tick:   r.tick,
		Time:   r.clock,
		Lap:    lap,
		Kind:   kind,
		CarID:  carID,
		Target: target,
		Detail: detail,
	})
}

// sortByDistance orders cars by road position, leader first.
func sortByDistance(cars []*CarState) {
	for i := 1; i < len(cars); i++ {
		for j := i; j > 0 && cars[j].TotalDistance > cars[j-1].TotalDistance; j-- {
			cars[j], cars[j-1] = cars[j-1], cars[j]
		}
	}
}

// swapRoadPosition exchanges the track position of two cars after a
// completed pass.
func swapRoadPosition(a, b *CarState) {
	a.LapDistance, b.LapDistance = b.LapDistance, a.LapDistance
	a.TotalDistance, b.TotalDistance = b.TotalDistance, a.TotalDistance
	a.Lap, b.Lap = b.Lap, a.Lap
	a.PosX, b.PosX = b.PosX, a.PosX
	a.PosY, b.PosY = b.PosY, a.PosY
}
