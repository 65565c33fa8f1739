package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SegmentTable is the circuit flattened into parallel arrays for gather-style
// lookups by the batch engine. Built once per race from a Track.
type SegmentTable struct {
	straight  []bool
	length    []float64
	radius    []float64
	gripLevel []float64
	gradSin   []float64 // sin(atan(elevation / length))
	limitBase []float64 // g * r * 1.1, corner speed limit before the mu factor
}

// NewSegmentTable flattens a track.
func NewSegmentTable(track *Track, phy *PhysicsConfig) *SegmentTable {
	segs := track.Segments()
	t := &SegmentTable{
		straight:  make([]bool, len(segs)),
		length:    make([]float64, len(segs)),
		radius:    make([]float64, len(segs)),
		gripLevel: make([]float64, len(segs)),
		gradSin:   make([]float64, len(segs)),
		limitBase: make([]float64, len(segs)),
	}
	for i := range segs {
		s := &segs[i]
		t.straight[i] = s.IsStraight()
		t.length[i] = s.Length
		t.radius[i] = s.Radius
		t.gripLevel[i] = s.GripLevel
		t.gradSin[i] = math.Sin(math.Atan(s.ElevationChange / s.Length))
		if s.IsStraight() {
			t.limitBase[i] = phy.MaxSpeed * phy.MaxSpeed // never binds
		} else {
			t.limitBase[i] = phy.Gravity * s.Radius * 1.1
		}
	}
	return t
}

// BatchState is the field in struct-of-arrays layout. Index i across every
// array is car i; the layout keeps the per-tick update loops cache-friendly
// and branch-light, mirroring an array-programming formulation.
type BatchState struct {
	N int

	VelX, VelY    []float64
	Accel         []float64
	LapDistance   []float64
	TotalDistance []float64
	Lap           []int
	Clock         []float64

	BatteryEnergy  []float64
	BatteryPct     []float64
	BatteryTemp    []float64
	EnergyConsumed []float64
	EnergyRegen    []float64

	TireWear []float64
	TireTemp []float64
	Grip     []float64

	BoostActive    []bool
	BoostRemaining []float64
	BoostUses      []int

	LapStart []float64
	LastLap  []float64
	BestLap  []float64
	MaxSpeed []float64
	Active   []bool

	// Per-car driver and setup parameters, broadcast into arrays once.
	Aggression     []float64
	Consistency    []float64
	PowerEff       []float64
	BatteryEff     []float64
	AeroEff        []float64
	TireWearRate   []float64
	RegenEff       []float64
	DownforceLevel []float64
}

// NewBatchState loads the field into array layout.
func NewBatchState(cars []*CarState, drivers []DriverParams, setups []CarSetup) *BatchState {
	n := len(cars)
	b := &BatchState{
		N:              n,
		VelX:           make([]float64, n),
		VelY:           make([]float64, n),
		Accel:          make([]float64, n),
		LapDistance:    make([]float64, n),
		TotalDistance:  make([]float64, n),
		Lap:            make([]int, n),
		Clock:          make([]float64, n),
		BatteryEnergy:  make([]float64, n),
		BatteryPct:     make([]float64, n),
		BatteryTemp:    make([]float64, n),
		EnergyConsumed: make([]float64, n),
		EnergyRegen:    make([]float64, n),
		TireWear:       make([]float64, n),
		TireTemp:       make([]float64, n),
		Grip:           make([]float64, n),
		BoostActive:    make([]bool, n),
		BoostRemaining: make([]float64, n),
		BoostUses:      make([]int, n),
		LapStart:       make([]float64, n),
		LastLap:        make([]float64, n),
		BestLap:        make([]float64, n),
		MaxSpeed:       make([]float64, n),
		Active:         make([]bool, n),
		Aggression:     make([]float64, n),
		Consistency:    make([]float64, n),
		PowerEff:       make([]float64, n),
		BatteryEff:     make([]float64, n),
		AeroEff:        make([]float64, n),
		TireWearRate:   make([]float64, n),
		RegenEff:       make([]float64, n),
		DownforceLevel: make([]float64, n),
	}
	for i, c := range cars {
		b.VelX[i] = c.VelX
		b.VelY[i] = c.VelY
		b.Accel[i] = c.Accel
		b.LapDistance[i] = c.LapDistance
		b.TotalDistance[i] = c.TotalDistance
		b.Lap[i] = c.Lap
		b.Clock[i] = c.Clock
		b.BatteryEnergy[i] = c.BatteryEnergy
		b.BatteryPct[i] = c.BatteryPct
		b.BatteryTemp[i] = c.BatteryTemp
		b.EnergyConsumed[i] = c.EnergyConsumed
		b.EnergyRegen[i] = c.EnergyRegenerated
		b.TireWear[i] = c.TireWear
		b.TireTemp[i] = c.TireTemp
		b.Grip[i] = c.Grip
		b.BoostActive[i] = c.BoostActive
		b.BoostRemaining[i] = c.BoostRemaining
		b.BoostUses[i] = c.BoostUses
		b.LapStart[i] = c.LapStart
		b.LastLap[i] = c.LastLapTime
		b.BestLap[i] = c.BestLapTime
		b.MaxSpeed[i] = c.MaxSpeed
		b.Active[i] = c.Active

		b.Aggression[i] = drivers[i].Aggression
		b.Consistency[i] = drivers[i].Consistency
		b.PowerEff[i] = setups[i].PowerEfficiency
		b.BatteryEff[i] = setups[i].BatteryEfficiency
		b.AeroEff[i] = setups[i].AeroEfficiency
		b.TireWearRate[i] = setups[i].TireWearRate
		b.RegenEff[i] = setups[i].RegenEfficiency
		b.DownforceLevel[i] = setups[i].DownforceLevel
	}
	return b
}

// WriteBack copies the array state into the car structs, restoring the 2D
// position from the centerline.
func (b *BatchState) WriteBack(cars []*CarState, track *Track) {
	for i, c := range cars {
		if !b.Active[i] && c.Active {
			c.Retire("battery depleted")
		}
		c.VelX = b.VelX[i]
		c.VelY = b.VelY[i]
		c.Accel = b.Accel[i]
		c.LapDistance = b.LapDistance[i]
		c.TotalDistance = b.TotalDistance[i]
		c.Lap = b.Lap[i]
		c.Clock = b.Clock[i]
		c.BatteryEnergy = b.BatteryEnergy[i]
		c.BatteryPct = b.BatteryPct[i]
		c.BatteryTemp = b.BatteryTemp[i]
		c.EnergyConsumed = b.EnergyConsumed[i]
		c.EnergyRegenerated = b.EnergyRegen[i]
		c.TireWear = b.TireWear[i]
		c.TireTemp = b.TireTemp[i]
		c.Grip = b.Grip[i]
		c.BoostActive = b.BoostActive[i]
		c.BoostRemaining = b.BoostRemaining[i]
		c.BoostUses = b.BoostUses[i]
		c.LapStart = b.LapStart[i]
		c.LastLapTime = b.LastLap[i]
		c.BestLapTime = b.BestLap[i]
		c.MaxSpeed = b.MaxSpeed[i]
		c.PosX, c.PosY = track.Position(c.LapDistance)
	}
}

// Sync copies the fields the orchestrator mutates between engine calls
// (overtake swaps, crash retirements) back into the array layout.
func (b *BatchState) Sync(cars []*CarState) {
	for i, c := range cars {
		b.LapDistance[i] = c.LapDistance
		b.TotalDistance[i] = c.TotalDistance
		b.Lap[i] = c.Lap
		b.Active[i] = c.Active
	}
}

// BatchEngine advances the whole field per call. It reproduces the scalar
// engine's update rule over the array layout; with noise sigmas zeroed the
// two agree to floating-point tolerance.
type BatchEngine struct {
	cfg   *Config
	track *Track
	segs  *SegmentTable
	noise *NoiseModel

	// scratch buffers reused across ticks
	segIdx    []int
	throttle  []float64
	brake     []float64
	steering  []float64
	netForce  []float64
	drawPower []float64
	regenPow  []float64
	latAccel  []float64
	advVel    []float64
}

// NewBatchEngine creates a vectorized engine for a field of n cars.
func NewBatchEngine(cfg *Config, track *Track, noise *NoiseModel, n int) *BatchEngine {
	return &BatchEngine{
		cfg:       cfg,
		track:     track,
		segs:      NewSegmentTable(track, &cfg.Physics),
		noise:     noise,
		segIdx:    make([]int, n),
		throttle:  make([]float64, n),
		brake:     make([]float64, n),
		steering:  make([]float64, n),
		netForce:  make([]float64, n),
		drawPower: make([]float64, n),
		regenPow:  make([]float64, n),
		latAccel:  make([]float64, n),
		advVel:    make([]float64, n),
	}
}

// Advance applies one tick to every active car in the batch.
func (e *BatchEngine) Advance(b *BatchState, controls []Controls, weather Weather, dt float64) {
	phy := &e.cfg.Physics
	tires := &e.cfg.Tires

	// Gather segment indices (the broadcast lookup).
	for i := 0; i < b.N; i++ {
		e.segIdx[i], _ = e.track.segmentIndexAt(b.LapDistance[i])
	}

	// Boost transitions and control noise.
	for i := 0; i < b.N; i++ {
		if !b.Active[i] {
			e.throttle[i], e.brake[i], e.steering[i] = 0, 0, 0
			continue
		}
		if controls[i].BoostRequest && !b.BoostActive[i] && b.BoostUses[i] > 0 &&
			b.BatteryPct[i] > e.cfg.Boost.MinBatteryPct {
			b.BoostActive[i] = true
			b.BoostRemaining[i] = e.cfg.Boost.Duration
			b.BoostUses[i]--
		}
		if b.BoostActive[i] {
			b.BoostRemaining[i] -= dt
			if b.BoostRemaining[i] <= 0 {
				b.BoostActive[i] = false
				b.BoostRemaining[i] = 0
			}
		}
		e.throttle[i], e.brake[i], e.steering[i] = e.noise.ControlNoise(
			controls[i].Throttle, controls[i].Brake, controls[i].Steering, b.Consistency[i])
	}

	// Longitudinal forces.
	for i := 0; i < b.N; i++ {
		if !b.Active[i] {
			e.netForce[i], e.drawPower[i], e.regenPow[i] = 0, 0, 0
			continue
		}
		v := b.VelX[i]
		s := e.segIdx[i]

		var motorForce float64
		if e.throttle[i] > 0 && e.brake[i] == 0 {
			powerKW := phy.MaxPowerKW
			if b.BoostActive[i] {
				powerKW += e.cfg.Boost.PowerBoostKW
			}
			if b.BatteryPct[i] < 10.0 {
				powerKW *= b.BatteryPct[i] / 10.0
			}
			mech := powerKW * 1000.0 * e.throttle[i] * b.PowerEff[i]
			motorForce = mech * phy.MotorEfficiency / math.Max(v, 1.0)
			e.drawPower[i] = motorForce * v / (phy.MotorEfficiency * b.BatteryEff[i])
		} else {
			e.drawPower[i] = 0
		}

		drag := 0.5 * phy.AirDensity * phy.DragCoeff * b.AeroEff[i] * phy.FrontalArea * v * v
		downforce := 0.5 * phy.AirDensity * phy.DownforceCoeff * b.DownforceLevel[i] * phy.FrontalArea * v * v
		normal := phy.TotalMass*phy.Gravity + downforce
		rolling := 0.0
		if v > 0 {
			rolling = phy.RollingResistance * normal
		}
		brakeForce := phy.TotalMass * phy.MaxDeceleration * e.brake[i]

		e.regenPow[i] = 0
		if brakeForce > 0 && v > 0 && b.BatteryPct[i] < 99.9 {
			regenForce := math.Min(0.7*brakeForce, phy.MaxRegenPowerKW*1000.0/math.Max(v, 1.0))
			e.regenPow[i] = regenForce * v * phy.RegenEfficiency * b.RegenEff[i]
		}

		gradient := phy.TotalMass * phy.Gravity * e.segs.gradSin[s]
		net := motorForce - drag - rolling - brakeForce - gradient
		traction := b.Grip[i] * e.segs.gripLevel[s] * normal
		e.netForce[i] = clamp(net, -traction, traction)
	}

	// Velocity integration with corner limit, then lateral dynamics.
	for i := 0; i < b.N; i++ {
		if !b.Active[i] {
			e.latAccel[i] = 0
			continue
		}
		s := e.segIdx[i]
		accel := e.netForce[i] / phy.TotalMass
		b.Accel[i] = accel
		b.VelX[i] = clamp(b.VelX[i]+accel*dt, 0, phy.MaxSpeed)

		if !e.segs.straight[s] {
			limit := math.Sqrt(b.Grip[i] * e.segs.gripLevel[s] * e.segs.limitBase[s])
			if b.VelX[i] > limit {
				b.VelX[i] = limit
			}
		}

		if math.Abs(e.steering[i]) > 0.001 {
			lat := b.VelX[i] * b.VelX[i] * math.Tan(e.steering[i]) / phy.Wheelbase
			lat = clamp(lat, -b.Grip[i]*phy.Gravity, b.Grip[i]*phy.Gravity)
			e.latAccel[i] = lat
			b.VelY[i] = clamp(b.VelY[i]+lat*dt, -20, 20)
		} else {
			e.latAccel[i] = 0
			b.VelY[i] *= 0.9
		}
	}

	// Energy, tires, thermals.
	for i := 0; i < b.N; i++ {
		if !b.Active[i] {
			continue
		}
		consumed := 0.0
		if e.drawPower[i] > 0 {
			consumed = e.noise.EnergyDrawNoise(e.drawPower[i]*dt, b.BatteryTemp[i])
		}
		regained := e.regenPow[i] * dt
		b.BatteryEnergy[i] = clamp(b.BatteryEnergy[i]-consumed+regained, 0, e.cfg.Energy.CapacityJ)
		b.BatteryPct[i] = b.BatteryEnergy[i] / e.cfg.Energy.CapacityJ * 100.0
		b.EnergyConsumed[i] += consumed
		b.EnergyRegen[i] += regained

		rate := (tires.KBase + tires.KSpeed*b.VelX[i]*b.VelX[i] + tires.KLateral*e.latAccel[i]*e.latAccel[i]) *
			tires.WearScale * (1.0 + 0.3*b.Aggression[i]) * b.TireWearRate[i]
		rate = e.noise.TireWearNoise(rate, b.TireTemp[i])
		b.TireWear[i] = clamp(b.TireWear[i]+rate*dt, 0, 1)
		b.Grip[i] = (tires.MuMax - (tires.MuMax-tires.MuMin)*b.TireWear[i]) * weather.GripFactor

		heating := 0.5*math.Abs(e.latAccel[i]) + 0.3*math.Abs(b.Accel[i])
		cooling := (b.TireTemp[i] - weather.AirTemp) * 0.1
		b.TireTemp[i] = clamp(b.TireTemp[i]+(heating-cooling)*dt, weather.AirTemp, 130.0)

		throughput := math.Abs(consumed-regained) / dt
		b.BatteryTemp[i] += throughput / 100000.0 * dt
		if b.BatteryTemp[i] > e.cfg.Energy.OptimalTemp {
			b.BatteryTemp[i] -= (b.BatteryTemp[i] - e.cfg.Energy.OptimalTemp) * 0.8 * dt
		}
		b.BatteryTemp[i] -= (b.BatteryTemp[i] - weather.AirTemp) * 0.05 * dt
		b.BatteryTemp[i] = clamp(b.BatteryTemp[i], e.cfg.Energy.TempMin, e.cfg.Energy.TempMax)
	}

	// Position advance over the whole batch (inactive cars masked out), then
	// per-car lap bookkeeping.
	for i := 0; i < b.N; i++ {
		if b.Active[i] {
			e.advVel[i] = b.VelX[i]
		} else {
			e.advVel[i] = 0
		}
	}
	floats.AddScaled(b.LapDistance, dt, e.advVel)
	floats.AddScaled(b.TotalDistance, dt, e.advVel)

	total := e.track.Length()
	for i := 0; i < b.N; i++ {
		if !b.Active[i] {
			continue
		}
		b.Clock[i] += dt
		if b.LapDistance[i] >= total {
			b.LapDistance[i] -= total
			b.Lap[i]++
			lapTime := b.Clock[i] - b.LapStart[i]
			b.LastLap[i] = lapTime
			if lapTime < b.BestLap[i] {
				b.BestLap[i] = lapTime
			}
			b.LapStart[i] = b.Clock[i]
		}
		if b.VelX[i] > b.MaxSpeed[i] {
			b.MaxSpeed[i] = b.VelX[i]
		}
		if b.BatteryPct[i] < e.cfg.Energy.RetireBelowPct {
			b.Active[i] = false
			continue
		}
		// Terminal temperature bounds. The scalar path re-clamps after its
		// last noise step; without these the two drift apart on cold tires.
		b.TireTemp[i] = clamp(b.TireTemp[i], tires.TempMin, tires.TempMax+10)
		b.BatteryTemp[i] = clamp(b.BatteryTemp[i], e.cfg.Energy.TempMin, e.cfg.Energy.TempMax+5)
	}
}
