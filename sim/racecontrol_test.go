package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alwaysDeployConfig forces the deployment draw to succeed.
func alwaysDeployConfig() Config {
	cfg := DefaultConfig()
	cfg.Events.SafetyCarRate = 1e9
	return cfg
}

func TestRaceControl_SuppressedOnOpeningLaps(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))
	log := &EventLog{}

	assert.False(t, rc.EvaluateLap(1, 30, log, rng), "no deployment before lap 2")
	assert.True(t, rc.EvaluateLap(2, 30, log, rng))
}

func TestRaceControl_OneDrawPerLap(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))
	log := &EventLog{}

	require.True(t, rc.EvaluateLap(2, 30, log, rng))
	rc.Step(cfg.Events.SafetyCarDuration + 1)
	assert.False(t, rc.CautionActive())

	// Same lap again: the draw already ran.
	assert.False(t, rc.EvaluateLap(2, 30, log, rng))
}

func TestRaceControl_CooldownBetweenDeployments(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))
	log := &EventLog{}

	require.True(t, rc.EvaluateLap(2, 30, log, rng))
	rc.Step(cfg.Events.SafetyCarDuration + 1) // caution over

	for lap := 3; lap < 2+cfg.Events.CautionCooldownLaps; lap++ {
		assert.False(t, rc.EvaluateLap(lap, 30, log, rng), "lap %d inside cooldown", lap)
	}
	assert.True(t, rc.EvaluateLap(2+cfg.Events.CautionCooldownLaps, 30, log, rng))
}

func TestRaceControl_NoDoubleDeployment(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))
	log := &EventLog{}

	require.True(t, rc.EvaluateLap(2, 30, log, rng))
	assert.True(t, rc.CautionActive())
	assert.False(t, rc.EvaluateLap(3, 30, log, rng), "already deployed")
}

func TestRaceControl_TimerEndsCaution(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))
	require.True(t, rc.EvaluateLap(2, 30, &EventLog{}, rng))

	steps := int(cfg.Events.SafetyCarDuration/0.1) - 1
	ended := false
	for i := 0; i < steps; i++ {
		ended = rc.Step(0.1)
	}
	assert.False(t, ended, "caution must hold for its full duration")
	assert.True(t, rc.CautionActive())

	for !ended {
		ended = rc.Step(0.1)
	}
	assert.False(t, rc.CautionActive())
	assert.False(t, rc.Step(0.1), "no end signal when nothing is deployed")
}

func TestRaceControl_ApplySpeedCap(t *testing.T) {
	cfg := alwaysDeployConfig()
	rc := NewRaceControl(&cfg, NewEventModel(&cfg))
	rng := rand.New(rand.NewSource(1))

	fast := &CarState{VelX: cfg.Events.SafetyCarSpeed + 10}
	slow := &CarState{VelX: cfg.Events.SafetyCarSpeed - 5}
	intended := Controls{Throttle: 0.9, BoostRequest: true}

	// No caution: controls pass through untouched.
	assert.Equal(t, intended, rc.Apply(intended, fast))

	require.True(t, rc.EvaluateLap(2, 30, &EventLog{}, rng))

	capped := rc.Apply(intended, fast)
	assert.Equal(t, 0.0, capped.Throttle)
	assert.Equal(t, 0.5, capped.Brake)
	assert.False(t, capped.BoostRequest)

	held := rc.Apply(intended, slow)
	assert.Equal(t, intended.Throttle, held.Throttle)
	assert.Equal(t, 0.0, held.Brake)
	assert.False(t, held.BoostRequest, "boost is refused under caution")
}
