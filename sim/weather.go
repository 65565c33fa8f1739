package sim

import (
	"math"
	"math/rand"
)

// Weather is the read-only per-tick conditions snapshot consumed by the
// engines and the control policy.
type Weather struct {
	AirTemp       float64 // °C
	TrackTemp     float64 // °C
	Humidity      float64 // 0-1
	WindSpeed     float64 // m/s
	WindDirection float64 // rad
	RainIntensity float64 // 0 = dry, 1 = heavy rain
	TrackWetness  float64 // 0 = dry surface, 1 = fully wet
	GripFactor    float64 // multiplier applied to tire grip
}

// DryWeather returns benign static conditions.
func DryWeather() Weather {
	return Weather{
		AirTemp:    25.0,
		TrackTemp:  35.0,
		Humidity:   0.6,
		GripFactor: 1.0,
	}
}

// WeatherSystem evolves conditions over a race with its own seeded stream.
// Construct once per race; call Step between ticks and Current for the
// snapshot handed to the engines.
type WeatherSystem struct {
	state Weather
	rng   *rand.Rand

	rainStartRate float64 // per-second probability rain begins
	rainClearRate float64 // per-second probability rain ends
	dryRate       float64 // per-second track drying when not raining
}

// NewWeatherSystem creates a weather system starting from initial conditions.
func NewWeatherSystem(initial Weather, rng *rand.Rand) *WeatherSystem {
	w := &WeatherSystem{
		state:         initial,
		rng:           rng,
		rainStartRate: 0.001,
		rainClearRate: 0.002,
		dryRate:       0.001,
	}
	w.state.WindSpeed = rng.Float64() * 5.0
	w.state.WindDirection = rng.Float64() * 2 * math.Pi
	w.state.TrackWetness = initial.RainIntensity * 0.5
	w.state.GripFactor = gripFactor(w.state.RainIntensity, w.state.TrackWetness)
	return w
}

// Current returns the conditions snapshot for this tick.
func (w *WeatherSystem) Current() Weather { return w.state }

// Step advances the weather by dt seconds.
func (w *WeatherSystem) Step(dt float64) {
	w.stepRain(dt)

	w.state.AirTemp += w.rng.NormFloat64() * 0.01 * dt / 60.0
	w.state.AirTemp = clamp(w.state.AirTemp, 10, 45)

	if w.state.RainIntensity > 0 {
		w.state.Humidity = math.Min(1.0, w.state.Humidity+0.01*dt)
	} else {
		w.state.Humidity += w.rng.NormFloat64() * 0.001 * dt
		w.state.Humidity = clamp(w.state.Humidity, 0.3, 0.95)
	}

	w.state.WindSpeed += w.rng.NormFloat64() * 0.1 * dt
	w.state.WindSpeed = clamp(w.state.WindSpeed, 0, 15)
	w.state.WindDirection = math.Mod(w.state.WindDirection+w.rng.NormFloat64()*0.1*dt, 2*math.Pi)

	if w.state.RainIntensity > 0 {
		w.state.TrackWetness += w.state.RainIntensity * 0.01 * dt
	} else {
		w.state.TrackWetness -= w.dryRate * dt
	}
	w.state.TrackWetness = clamp(w.state.TrackWetness, 0, 1)

	w.state.GripFactor = gripFactor(w.state.RainIntensity, w.state.TrackWetness)
}

func (w *WeatherSystem) stepRain(dt float64) {
	if w.state.RainIntensity == 0 {
		if w.rng.Float64() < w.rainStartRate*dt {
			w.state.RainIntensity = 0.1 + w.rng.Float64()*0.2
		}
		return
	}
	if w.rng.Float64() < w.rainClearRate*dt {
		w.state.RainIntensity = 0
		return
	}
	w.state.RainIntensity += w.rng.NormFloat64() * 0.05 * dt
	w.state.RainIntensity = clamp(w.state.RainIntensity, 0.05, 1.0)
}

func gripFactor(rain, wetness float64) float64 {
	f := 1.0 - rain*0.25 - wetness*0.1
	return clamp(f, 0.5, 1.0)
}
