package sim

import "math"

// Engine is the scalar state-transition engine. One Engine serves the whole
// field; all per-car variation enters through the arguments. Advance mutates
// exactly one CarState and reads nothing else, so the parallel path can run
// it across cars without locks.
type Engine struct {
	cfg   *Config
	track *Track
}

// NewEngine creates a scalar engine over a configuration and circuit.
func NewEngine(cfg *Config, track *Track) *Engine {
	return &Engine{cfg: cfg, track: track}
}

// Advance applies one tick of dynamics to the car:
//
//	boost transition, control noise, longitudinal forces, lateral dynamics,
//	energy accounting, tire wear and grip, thermal model, position and lap
//	bookkeeping, retirement check, process noise last
//
// Inactive cars are frozen: the call is a no-op.
func (e *Engine) Advance(car *CarState, driver *DriverParams, setup *CarSetup, controls Controls, weather Weather, dt float64, noise *NoiseModel) {
	if !car.Active {
		return
	}
	phy := &e.cfg.Physics

	if controls.BoostRequest {
		car.ActivateBoost(&e.cfg.Boost)
	}
	car.UpdateBoost(dt)

	throttle, brake, steering := noise.ControlNoise(
		controls.Throttle, controls.Brake, controls.Steering, driver.Consistency)
	car.Throttle, car.Brake, car.Steering = throttle, brake, steering

	seg, _ := e.track.SegmentAt(car.LapDistance)
	v := car.VelX

	// Longitudinal forces.
	motorForce, drawPower := e.motorForce(car, setup, throttle, brake, v)
	drag := 0.5 * phy.AirDensity * phy.DragCoeff * setup.AeroEfficiency * phy.FrontalArea * v * v
	downforce := 0.5 * phy.AirDensity * phy.DownforceCoeff * setup.DownforceLevel * phy.FrontalArea * v * v
	normal := phy.TotalMass*phy.Gravity + downforce
	rolling := 0.0
	if v > 0 {
		rolling = phy.RollingResistance * normal
	}
	brakeForce := phy.TotalMass * phy.MaxDeceleration * brake
	regenPower := e.regenPower(car, setup, brakeForce, v)
	gradient := phy.TotalMass * phy.Gravity * math.Sin(math.Atan(seg.ElevationChange/seg.Length))

	net := motorForce - drag - rolling - brakeForce - gradient
	traction := car.Grip * seg.GripLevel * normal
	net = clamp(net, -traction, traction)

	accel := net / phy.TotalMass
	car.Accel = accel
	car.VelX = clamp(v+accel*dt, 0, phy.MaxSpeed)

	// Corner speed hard clamp: exceeding the traction limit sheds speed
	// immediately rather than integrating an impossible arc.
	if !seg.IsStraight() {
		mu := car.Grip * seg.GripLevel
		limit := cornerLimit(phy, mu, seg.Radius)
		if car.VelX > limit {
			car.VelX = limit
		}
	}

	// Lateral dynamics (bicycle model).
	latAccel := 0.0
	if math.Abs(steering) > 0.001 {
		latAccel = car.VelX * car.VelX * math.Tan(steering) / phy.Wheelbase
		latAccel = clamp(latAccel, -car.Grip*phy.Gravity, car.Grip*phy.Gravity)
		car.VelY = clamp(car.VelY+latAccel*dt, -20, 20)
	} else {
		car.VelY *= 0.9
	}

	// Energy accounting.
	consumed := 0.0
	if drawPower > 0 {
		consumed = noise.EnergyDrawNoise(drawPower*dt, car.BatteryTemp)
	}
	regained := regenPower * dt
	car.BatteryEnergy = clamp(car.BatteryEnergy-consumed+regained, 0, e.cfg.Energy.CapacityJ)
	car.BatteryPct = car.BatteryEnergy / e.cfg.Energy.CapacityJ * 100.0
	car.EnergyConsumed += consumed
	car.EnergyRegenerated += regained

	// Tire wear and grip.
	tires := &e.cfg.Tires
	rate := (tires.KBase + tires.KSpeed*car.VelX*car.VelX + tires.KLateral*latAccel*latAccel) *
		tires.WearScale * (1.0 + 0.3*driver.Aggression) * setup.TireWearRate
	rate = noise.TireWearNoise(rate, car.TireTemp)
	car.TireWear = clamp(car.TireWear+rate*dt, 0, 1)
	car.Grip = (tires.MuMax - (tires.MuMax-tires.MuMin)*car.TireWear) * weather.GripFactor

	e.stepThermals(car, latAccel, accel, consumed, regained, weather, dt)

	// Position and lap bookkeeping.
	advance := car.VelX * dt
	car.LapDistance += advance
	car.TotalDistance += advance
	car.Clock += dt
	if car.LapDistance >= e.track.Length() {
		car.LapDistance -= e.track.Length()
		car.Lap++
		lapTime := car.Clock - car.LapStart
		car.LastLapTime = lapTime
		if lapTime < car.BestLapTime {
			car.BestLapTime = lapTime
		}
		car.LapStart = car.Clock
	}
	car.PosX, car.PosY = e.track.Position(car.LapDistance)
	if car.VelX > car.MaxSpeed {
		car.MaxSpeed = car.VelX
	}

	if car.BatteryPct < e.cfg.Energy.RetireBelowPct {
		car.Retire("battery depleted")
		return
	}

	noise.ProcessNoise(car, driver.Consistency, dt)
}

// motorForce returns the tractive force and the electrical power drawn from
// the battery. The motor only drives with throttle applied and the brake
// released; power derates linearly below 10% charge.
func (e *Engine) motorForce(car *CarState, setup *CarSetup, throttle, brake, v float64) (force, power float64) {
	if throttle <= 0 || brake > 0 {
		return 0, 0
	}
	powerKW := e.cfg.Physics.MaxPowerKW
	if car.BoostActive {
		powerKW += e.cfg.Boost.PowerBoostKW
	}
	if car.BatteryPct < 10.0 {
		powerKW *= car.BatteryPct / 10.0
	}
	mech := powerKW * 1000.0 * throttle * setup.PowerEfficiency
	force = mech * e.cfg.Physics.MotorEfficiency / math.Max(v, 1.0)
	power = force * v / (e.cfg.Physics.MotorEfficiency * setup.BatteryEfficiency)
	return force, power
}

// regenPower returns the electrical power recovered from braking. Up to 70%
// of the brake force regenerates, capped by the regen power ceiling; recovery
// stops at a full battery.
func (e *Engine) regenPower(car *CarState, setup *CarSetup, brakeForce, v float64) float64 {
	if brakeForce <= 0 || v <= 0 || car.BatteryPct >= 99.9 {
		return 0
	}
	force := math.Min(0.7*brakeForce, e.cfg.Physics.MaxRegenPowerKW*1000.0/math.Max(v, 1.0))
	return force * v * e.cfg.Physics.RegenEfficiency * setup.RegenEfficiency
}

// stepThermals updates tire and battery temperature. Tires heat with lateral
// and longitudinal load and cool toward ambient; the battery heats with
// electrical throughput, with active cooling above its optimal temperature.
func (e *Engine) stepThermals(car *CarState, latAccel, accel, consumed, regained float64, weather Weather, dt float64) {
	heating := 0.5*math.Abs(latAccel) + 0.3*math.Abs(accel)
	cooling := (car.TireTemp - weather.AirTemp) * 0.1
	car.TireTemp = clamp(car.TireTemp+(heating-cooling)*dt, weather.AirTemp, 130.0)

	throughput := math.Abs(consumed-regained) / dt
	car.BatteryTemp += throughput / 100000.0 * dt
	if car.BatteryTemp > e.cfg.Energy.OptimalTemp {
		car.BatteryTemp -= (car.BatteryTemp - e.cfg.Energy.OptimalTemp) * 0.8 * dt
	}
	car.BatteryTemp -= (car.BatteryTemp - weather.AirTemp) * 0.05 * dt
	car.BatteryTemp = clamp(car.BatteryTemp, e.cfg.Energy.TempMin, e.cfg.Energy.TempMax)
}
