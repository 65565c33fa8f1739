package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGrid(t *testing.T) {
	cfg := DefaultConfig()
	drivers := []DriverParams{
		{Name: "a", Skill: 1.0, Aggression: 0.5, Consistency: 0.9},
		{Name: "b", Skill: 1.0, Aggression: 0.5, Consistency: 0.9},
		{Name: "c", Skill: 1.0, Aggression: 0.5, Consistency: 0.9},
	}
	cars := NewGrid(drivers, &cfg)

	assert.Len(t, cars, 3)
	for i, c := range cars {
		assert.Equal(t, i, c.ID)
		assert.Equal(t, drivers[i].Name, c.Name)
		assert.Equal(t, i+1, c.Rank)
		assert.Equal(t, 100.0, c.BatteryPct)
		assert.Equal(t, cfg.Boost.Activations, c.BoostUses)
		assert.True(t, c.Active)
		assert.True(t, math.IsInf(c.BestLapTime, 1))
	}
}

func TestCarState_BoostLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCarState(0, "test", 0, &cfg)

	assert.True(t, c.ActivateBoost(&cfg.Boost))
	assert.True(t, c.BoostActive)
	assert.Equal(t, cfg.Boost.Activations-1, c.BoostUses)
	assert.Equal(t, cfg.Boost.Duration, c.BoostRemaining)

	// Re-activation while active is refused.
	assert.False(t, c.ActivateBoost(&cfg.Boost))

	// Expiry after the full duration.
	for i := 0; i < int(cfg.Boost.Duration/0.1)+1; i++ {
		c.UpdateBoost(0.1)
	}
	assert.False(t, c.BoostActive)
	assert.Equal(t, 0.0, c.BoostRemaining)

	// Second use allowed, third is not.
	assert.True(t, c.ActivateBoost(&cfg.Boost))
	c.BoostActive = false
	assert.False(t, c.ActivateBoost(&cfg.Boost))
}

func TestCarState_BoostRefusedOnLowBattery(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCarState(0, "test", 0, &cfg)
	c.BatteryPct = cfg.Boost.MinBatteryPct - 1

	assert.False(t, c.ActivateBoost(&cfg.Boost))
	assert.Equal(t, cfg.Boost.Activations, c.BoostUses, "refused activation must not burn a use")
}

func TestCarState_RetireIsTerminal(t *testing.T) {
	cfg := DefaultConfig()
	c := NewCarState(0, "test", 0, &cfg)

	c.Retire("crash")
	assert.False(t, c.Active)
	assert.Equal(t, "crash", c.RetireReason)

	// A second retirement must not overwrite the reason.
	c.Retire("battery depleted")
	assert.Equal(t, "crash", c.RetireReason)
}

func TestSnapshot_NearbyCount(t *testing.T) {
	cfg := DefaultConfig()
	cars := []*CarState{
		NewCarState(0, "a", 0, &cfg),
		NewCarState(1, "b", 1, &cfg),
		NewCarState(2, "c", 2, &cfg),
		NewCarState(3, "d", 3, &cfg),
	}
	cars[0].TotalDistance = 1000
	cars[1].TotalDistance = 1010 // within 20 m
	cars[2].TotalDistance = 1030 // outside
	cars[3].TotalDistance = 995  // within
	cars[3].Retire("crash")      // retired cars do not count as traffic

	snap := TakeSnapshot(cars)
	assert.Equal(t, 1, snap.NearbyCount(0, 20))
	assert.Equal(t, 0, snap.NearbyCount(99, 20), "unknown car id")
}

func TestSnapshot_IsolatedFromMutation(t *testing.T) {
	cfg := DefaultConfig()
	cars := []*CarState{NewCarState(0, "a", 0, &cfg)}
	snap := TakeSnapshot(cars)

	cars[0].VelX = 50
	assert.Equal(t, 0.0, snap.Cars[0].VelX, "snapshot must not see later mutation")
}
