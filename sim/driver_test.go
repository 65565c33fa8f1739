package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy(cfg *Config) *HeuristicPolicy {
	driver := DriverParams{Name: "test", Skill: 1.0, Aggression: 0.5, Consistency: 1.0}
	return NewHeuristicPolicy(driver, DefaultSetup(), cfg)
}

func neutralContext() RaceContext {
	return RaceContext{Rank: 5, GapToAhead: 3.0, GapToLeader: 10.0, GapBehind: 3.0, TotalLaps: 30}
}

func TestHeuristicPolicy_ThrottleWhenSlow(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	track := DefaultTrack()
	car := NewCarState(0, "test", 0, &cfg)
	car.VelX = 5

	ctx := neutralContext()
	c := p.Plan(car, &ctx, track, DryWeather(), rand.New(rand.NewSource(1)))
	assert.Greater(t, c.Throttle, 0.5, "well below target must be near full throttle")
	assert.Equal(t, 0.0, c.Brake)
}

func TestHeuristicPolicy_BrakesWhenFast(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	track := DefaultTrack()
	car := NewCarState(0, "test", 0, &cfg)
	car.VelX = cfg.Physics.MaxSpeed // flat out entering the lap

	ctx := neutralContext()
	c := p.Plan(car, &ctx, track, DryWeather(), rand.New(rand.NewSource(1)))
	assert.Greater(t, c.Brake, 0.0, "above the managed target speed must brake")
	assert.Equal(t, 0.0, c.Throttle)
}

func TestHeuristicPolicy_EarlyBrakingForCornerAhead(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	track, err := NewTrack("test", []Segment{
		{Kind: Straight, Length: 400, Radius: math.Inf(1), GripLevel: 1.0},
		{Kind: LeftCorner, Length: 60, Radius: 25, GripLevel: 1.0},
	})
	require.NoError(t, err)

	car := NewCarState(0, "test", 0, &cfg)
	car.VelX = 60
	car.LapDistance = 300 // corner entry is 100 m away, within the 2 s lookahead

	ctx := neutralContext()
	c := p.Plan(car, &ctx, track, DryWeather(), rand.New(rand.NewSource(1)))
	assert.Greater(t, c.Brake, 0.0)
}

func TestHeuristicPolicy_SteeringClamped(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	track, err := NewTrack("hairpin", []Segment{
		{Kind: RightCorner, Length: 30, Radius: 2, GripLevel: 1.0},
	})
	require.NoError(t, err)

	car := NewCarState(0, "test", 0, &cfg)
	car.VelX = 10
	ctx := neutralContext()
	c := p.Plan(car, &ctx, track, DryWeather(), rand.New(rand.NewSource(1)))

	assert.LessOrEqual(t, math.Abs(c.Steering), cfg.Physics.MaxSteering)
	assert.Greater(t, c.Steering, 0.0, "right corners steer positive")
}

func TestHeuristicPolicy_LeftCornerSteersNegative(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	track, err := NewTrack("left", []Segment{
		{Kind: LeftCorner, Length: 60, Radius: 40, GripLevel: 1.0},
	})
	require.NoError(t, err)

	car := NewCarState(0, "test", 0, &cfg)
	car.VelX = 15
	ctx := neutralContext()

	p.Driver.Skill = 1.0 // no line noise at perfect skill
	c := p.Plan(car, &ctx, track, DryWeather(), rand.New(rand.NewSource(1)))
	assert.Less(t, c.Steering, 0.0)
}

func TestHeuristicPolicy_RainLowersTarget(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	seg := &Segment{Kind: Straight, Length: 100, Radius: math.Inf(1), GripLevel: 1.0}
	car := NewCarState(0, "test", 0, &cfg)
	ctx := neutralContext()

	dry := p.targetSpeed(car, &ctx, seg, DryWeather())
	storm := DryWeather()
	storm.RainIntensity = 1.0
	wet := p.targetSpeed(car, &ctx, seg, storm)
	assert.InDelta(t, dry*0.8, wet, 1e-9)
}

func TestHeuristicPolicy_StateAdjustments(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	seg := &Segment{Kind: Straight, Length: 100, Radius: math.Inf(1), GripLevel: 1.0}
	ctx := neutralContext()

	base := NewCarState(0, "base", 0, &cfg)
	baseTarget := p.targetSpeed(base, &ctx, seg, DryWeather())

	lowBattery := NewCarState(1, "low", 0, &cfg)
	lowBattery.BatteryPct = 10
	assert.Less(t, p.targetSpeed(lowBattery, &ctx, seg, DryWeather()), baseTarget)

	wornTires := NewCarState(2, "worn", 0, &cfg)
	wornTires.TireWear = 0.8
	assert.Less(t, p.targetSpeed(wornTires, &ctx, seg, DryWeather()), baseTarget)
}

func TestHeuristicPolicy_LeaderConservesOnlyWithMargin(t *testing.T) {
	cfg := DefaultConfig()
	p := testPolicy(&cfg)
	seg := &Segment{Kind: Straight, Length: 100, Radius: math.Inf(1), GripLevel: 1.0}
	car := NewCarState(0, "test", 0, &cfg)

	pressured := RaceContext{Rank: 1, GapToAhead: math.Inf(1), GapBehind: 0.1, TotalLaps: 30}
	comfortable := RaceContext{Rank: 1, GapToAhead: math.Inf(1), GapBehind: 10.0, TotalLaps: 30}

	underPressure := p.targetSpeed(car, &pressured, seg, DryWeather())
	withMargin := p.targetSpeed(car, &comfortable, seg, DryWeather())

	assert.Greater(t, underPressure, withMargin, "a leader under pressure must not derate")
	assert.InDelta(t, underPressure*0.95, withMargin, 1e-9, "a comfortable leader manages the pace")
}

func TestBoostPlanner(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Boost.ActivationGate = 1.0 // deterministic once conditions hold
	planner := NewBoostPlanner(&cfg)
	track, err := NewTrack("zone", []Segment{
		{Kind: Straight, Length: 200, Radius: math.Inf(1), GripLevel: 1.0, BoostZone: true},
	})
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(1))

	ready := func() (*CarState, RaceContext) {
		car := NewCarState(0, "test", 0, &cfg)
		car.LapDistance = 50
		ctx := RaceContext{Rank: 3, GapToAhead: 1.0, Lap: 25, TotalLaps: 30, Progress: 0.83}
		return car, ctx
	}

	t.Run("fires when conditions align", func(t *testing.T) {
		car, ctx := ready()
		assert.True(t, planner.ShouldRequest(car, &ctx, track, rng))
	})

	t.Run("refused outside a boost zone", func(t *testing.T) {
		noZone, err := NewTrack("plain", []Segment{
			{Kind: Straight, Length: 200, Radius: math.Inf(1), GripLevel: 1.0},
		})
		require.NoError(t, err)
		car, ctx := ready()
		assert.False(t, planner.ShouldRequest(car, &ctx, noZone, rng))
	})

	t.Run("refused with no uses left", func(t *testing.T) {
		car, ctx := ready()
		car.BoostUses = 0
		assert.False(t, planner.ShouldRequest(car, &ctx, track, rng))
	})

	t.Run("refused below the battery floor", func(t *testing.T) {
		car, ctx := ready()
		car.BatteryPct = cfg.Boost.MinBatteryPct - 1
		assert.False(t, planner.ShouldRequest(car, &ctx, track, rng))
	})

	t.Run("refused while already active", func(t *testing.T) {
		car, ctx := ready()
		car.BoostActive = true
		assert.False(t, planner.ShouldRequest(car, &ctx, track, rng))
	})

	t.Run("refused when too few conditions hold", func(t *testing.T) {
		car, ctx := ready()
		ctx.Progress = 0.3    // not the final phase
		ctx.GapToAhead = 30.0 // no battle
		ctx.Lap = 10          // plenty of laps left
		assert.False(t, planner.ShouldRequest(car, &ctx, track, rng))
	})
}
