package sim

import "math"

// CarState is the complete mutable state of one competitor. It is created
// once at race init, mutated every tick by the engines and the orchestrator,
// and frozen on retirement or race end.
type CarState struct {
	// Identity
	ID   int
	Name string

	// Kinematics
	PosX, PosY    float64 // circuit coordinates (m)
	VelX, VelY    float64 // longitudinal / lateral velocity (m/s)
	Accel         float64 // m/s²
	Steering      float64 // rad
	LapDistance   float64 // distance into the current lap (m)
	TotalDistance float64 // cumulative distance (m)
	Lap           int

	// Energy
	BatteryEnergy     float64 // J
	BatteryPct        float64 // 0-100
	BatteryTemp       float64 // °C
	EnergyConsumed    float64 // cumulative J
	EnergyRegenerated float64 // cumulative J

	// Tires
	TireWear float64 // degradation, 0 (new) to 1 (worn)
	TireTemp float64 // °C
	Grip     float64 // instantaneous traction multiplier

	// Boost mechanic
	BoostActive    bool
	BoostRemaining float64 // seconds
	BoostUses      int     // activations left

	// Lap timing
	LastLapTime float64
	BestLapTime float64 // +Inf until a lap is completed
	LapStart    float64 // clock value when the current lap began

	// Race status
	Active       bool
	RetireReason string
	Rank         int
	GapToLeader  float64 // seconds
	GapToAhead   float64 // seconds

	// Last applied controls
	Throttle float64
	Brake    float64

	// Stats
	MaxSpeed       float64
	OvertakesMade  int
	OvertakesTaken int

	Clock float64 // car-local race time (s)
}

// NewCarState creates a car in grid position order (0-based gridSlot),
// staggered 8 m behind the start line per slot.
func NewCarState(id int, name string, gridSlot int, cfg *Config) *CarState {
	return &CarState{
		ID:            id,
		Name:          name,
		PosX:          -float64(gridSlot) * 8.0,
		BatteryEnergy: cfg.Energy.CapacityJ,
		BatteryPct:    100.0,
		BatteryTemp:   cfg.Energy.OptimalTemp,
		TireTemp:      70.0,
		Grip:          cfg.Tires.MuMax,
		BoostUses:     cfg.Boost.Activations,
		BestLapTime:   math.Inf(1),
		Active:        true,
		Rank:          gridSlot + 1,
	}
}

// NewGrid creates the full field in grid order.
func NewGrid(drivers []DriverParams, cfg *Config) []*CarState {
	cars := make([]*CarState, len(drivers))
	for i, d := range drivers {
		cars[i] = NewCarState(i, d.Name, i, cfg)
	}
	return cars
}

// Speed returns the current speed magnitude (m/s).
func (c *CarState) Speed() float64 {
	return math.Hypot(c.VelX, c.VelY)
}

// ActivateBoost attempts the inactive-to-active transition. It refuses while
// already active, with no uses left, or below the battery floor; uses and
// remaining duration only ever decrease afterwards.
func (c *CarState) ActivateBoost(cfg *BoostConfig) bool {
	if c.BoostActive || c.BoostUses <= 0 || c.BatteryPct <= cfg.MinBatteryPct {
		return false
	}
	c.BoostActive = true
	c.BoostRemaining = cfg.Duration
	c.BoostUses--
	return true
}

// UpdateBoost advances the boost timer and deactivates on expiry.
func (c *CarState) UpdateBoost(dt float64) {
	if !c.BoostActive {
		return
	}
	c.BoostRemaining -= dt
	if c.BoostRemaining <= 0 {
		c.BoostActive = false
		c.BoostRemaining = 0
	}
}

// Retire marks the car inactive with a reason. Terminal: the engines no-op
// on inactive cars, freezing all further mutation.
func (c *CarState) Retire(reason string) {
	if !c.Active {
		return
	}
	c.Active = false
	c.RetireReason = reason
}

// Clone returns a deep copy of the state.
func (c *CarState) Clone() *CarState {
	cp := *c
	return &cp
}

// Snapshot is a read-only copy of the whole field from the previous tick.
// Cross-entity queries (traffic counts, gaps, overtake targets) read the
// snapshot so no car observes a partially-updated peer within a tick.
type Snapshot struct {
	Cars []CarState
}

// TakeSnapshot copies the field.
func TakeSnapshot(cars []*CarState) *Snapshot {
	s := &Snapshot{Cars: make([]CarState, len(cars))}
	for i, c := range cars {
		s.Cars[i] = *c
	}
	return s
}

// NearbyCount returns how many other active cars sit within radius meters
// of the given car's cumulative distance.
func (s *Snapshot) NearbyCount(carID int, radius float64) int {
	var me *CarState
	for i := range s.Cars {
		if s.Cars[i].ID == carID {
			me = &s.Cars[i]
			break
		}
	}
	if me == nil {
		return 0
	}
	n := 0
	for i := range s.Cars {
		other := &s.Cars[i]
		if other.ID == carID || !other.Active {
			continue
		}
		if math.Abs(other.TotalDistance-me.TotalDistance) < radius {
			n++
		}
	}
	return n
}
