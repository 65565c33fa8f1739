package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func straightTrack(t *testing.T, length float64) *Track {
	t.Helper()
	track, err := NewTrack("straight", []Segment{
		{Kind: Straight, Length: length, Radius: math.Inf(1), GripLevel: 1.0},
	})
	require.NoError(t, err)
	return track
}

func testEngine(t *testing.T, track *Track) (*Engine, *Config, *NoiseModel) {
	t.Helper()
	cfg := zeroNoiseConfig()
	engine := NewEngine(&cfg, track)
	noise := NewNoiseModel(&cfg, rand.New(rand.NewSource(1)))
	return engine, &cfg, noise
}

func testDriver() DriverParams {
	return DriverParams{Name: "test", Skill: 1.0, Aggression: 0.5, Consistency: 1.0}
}

func TestEngine_FullThrottleAccelerates(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)

	controls := Controls{Throttle: 1.0}
	prev := 0.0
	for i := 0; i < 100; i++ {
		engine.Advance(car, &driver, &setup, controls, DryWeather(), 0.1, noise)
		assert.GreaterOrEqual(t, car.VelX, prev, "tick %d: speed fell under full throttle", i)
		prev = car.VelX
	}

	assert.Greater(t, car.VelX, 20.0)
	assert.Less(t, car.BatteryPct, 100.0, "acceleration must drain the battery")
	assert.Greater(t, car.EnergyConsumed, 0.0)
	assert.Greater(t, car.TireWear, 0.0)
	assert.Greater(t, car.TotalDistance, 0.0)
}

func TestEngine_BrakingDeceleratesAndRegens(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 60
	car.BatteryEnergy = cfg.Energy.CapacityJ * 0.5
	car.BatteryPct = 50

	before := car.BatteryEnergy
	engine.Advance(car, &driver, &setup, Controls{Brake: 0.8}, DryWeather(), 0.1, noise)

	assert.Less(t, car.VelX, 60.0)
	assert.Greater(t, car.EnergyRegenerated, 0.0)
	assert.Greater(t, car.BatteryEnergy, before, "regen must put energy back")
}

func TestEngine_NoRegenWhenFull(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 60

	engine.Advance(car, &driver, &setup, Controls{Brake: 0.8}, DryWeather(), 0.1, noise)
	assert.Equal(t, 0.0, car.EnergyRegenerated, "a full battery must not accept regen")
}

func TestEngine_DrawMatchesRatedPower(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 50 // above 1 m/s the speed cancels out of the draw

	engine.Advance(car, &driver, &setup, Controls{Throttle: 0.8}, DryWeather(), 0.1, noise)

	want := cfg.Physics.MaxPowerKW * 1000.0 * 0.8 * setup.PowerEfficiency / setup.BatteryEfficiency * 0.1
	assert.InDelta(t, want, car.EnergyConsumed, 1e-9,
		"per-tick draw must equal throttle x rated power x dt over efficiency")
}

func TestEngine_RegenPowerClosedForm(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 60
	car.BatteryEnergy = cfg.Energy.CapacityJ * 0.5
	car.BatteryPct = 50

	engine.Advance(car, &driver, &setup, Controls{Brake: 0.8}, DryWeather(), 0.1, noise)

	brakeForce := cfg.Physics.TotalMass * cfg.Physics.MaxDeceleration * 0.8
	force := math.Min(0.7*brakeForce, cfg.Physics.MaxRegenPowerKW*1000.0/60.0)
	want := force * 60.0 * cfg.Physics.RegenEfficiency * setup.RegenEfficiency * 0.1
	assert.InDelta(t, want, car.EnergyRegenerated, 1e-9)
}

func TestEngine_EnergyLedgerConsistent(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	initial := car.BatteryEnergy

	// Alternate hard acceleration and braking.
	for i := 0; i < 300; i++ {
		controls := Controls{Throttle: 1.0}
		if i%10 >= 7 {
			controls = Controls{Brake: 0.6}
		}
		engine.Advance(car, &driver, &setup, controls, DryWeather(), 0.1, noise)
	}

	want := initial - car.EnergyConsumed + car.EnergyRegenerated
	assert.InEpsilon(t, want, car.BatteryEnergy, 1e-9,
		"battery must equal initial - consumed + regenerated")
}

func TestEngine_CornerSpeedClamped(t *testing.T) {
	track, err := NewTrack("corner", []Segment{
		{Kind: LeftCorner, Length: 500, Radius: 30, GripLevel: 1.0},
	})
	require.NoError(t, err)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 80
	car.Grip = cfg.Tires.MuMax

	engine.Advance(car, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)

	limit := math.Sqrt(cfg.Tires.MuMax * cfg.Physics.Gravity * 30 * 1.1)
	assert.LessOrEqual(t, car.VelX, limit+1e-9)
}

func TestEngine_BoostRaisesAcceleration(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()

	plain := NewCarState(0, "plain", 0, cfg)
	plain.VelX = 40
	boosted := NewCarState(1, "boosted", 0, cfg)
	boosted.VelX = 40
	require.True(t, boosted.ActivateBoost(&cfg.Boost))

	engine.Advance(plain, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)
	engine.Advance(boosted, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)

	assert.Greater(t, boosted.VelX, plain.VelX)
}

func TestEngine_LapWrap(t *testing.T) {
	track := straightTrack(t, 1000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 50
	car.LapDistance = 999
	car.Clock = 20.0
	car.LapStart = 0.0

	engine.Advance(car, &driver, &setup, Controls{Throttle: 0.5}, DryWeather(), 0.1, noise)

	assert.Equal(t, 1, car.Lap)
	assert.Less(t, car.LapDistance, 10.0)
	assert.InDelta(t, 20.1, car.LastLapTime, 1e-9)
	assert.Equal(t, car.LastLapTime, car.BestLapTime)
	assert.Equal(t, car.Clock, car.LapStart)
}

func TestEngine_BestLapOnlyImproves(t *testing.T) {
	track := straightTrack(t, 1000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 50
	car.BestLapTime = 5.0
	car.LapDistance = 999
	car.Clock = 20.0

	engine.Advance(car, &driver, &setup, Controls{Throttle: 0.5}, DryWeather(), 0.1, noise)
	assert.Equal(t, 5.0, car.BestLapTime, "slower lap must not replace the best")
	assert.InDelta(t, 20.1, car.LastLapTime, 1e-9)
}

func TestEngine_BatteryRetirementIsTerminal(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.VelX = 40
	car.BatteryEnergy = cfg.Energy.CapacityJ * 0.003
	car.BatteryPct = 0.3

	engine.Advance(car, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)
	assert.False(t, car.Active)
	assert.Equal(t, "battery depleted", car.RetireReason)

	// Frozen afterwards.
	frozen := *car
	engine.Advance(car, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)
	assert.Equal(t, frozen, *car)
}

func TestEngine_SpeedNeverExceedsMax(t *testing.T) {
	track := straightTrack(t, 100000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)

	for i := 0; i < 2000; i++ {
		engine.Advance(car, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)
		assert.LessOrEqual(t, car.VelX, cfg.Physics.MaxSpeed)
	}
}

func TestEngine_LowBatteryDeratesPower(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()

	healthy := NewCarState(0, "healthy", 0, cfg)
	healthy.VelX = 30
	weak := NewCarState(1, "weak", 0, cfg)
	weak.VelX = 30
	weak.BatteryEnergy = cfg.Energy.CapacityJ * 0.05
	weak.BatteryPct = 5

	engine.Advance(healthy, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)
	engine.Advance(weak, &driver, &setup, Controls{Throttle: 1.0}, DryWeather(), 0.1, noise)

	assert.Greater(t, healthy.VelX, weak.VelX)
}

func TestEngine_TireWearReducesGrip(t *testing.T) {
	track := straightTrack(t, 5000)
	engine, cfg, noise := testEngine(t, track)
	driver := testDriver()
	setup := DefaultSetup()
	car := NewCarState(0, "test", 0, cfg)
	car.TireWear = 0.5

	engine.Advance(car, &driver, &setup, Controls{Throttle: 0.5}, DryWeather(), 0.1, noise)

	want := cfg.Tires.MuMax - (cfg.Tires.MuMax-cfg.Tires.MuMin)*car.TireWear
	assert.InDelta(t, want, car.Grip, 1e-6)
	assert.Less(t, car.Grip, cfg.Tires.MuMax)
}
