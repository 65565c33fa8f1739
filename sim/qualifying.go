package sim

import (
	"math"
	"math/rand"
	"sort"
)

// QualifyingResult is one driver's outcome of the qualifying session.
type QualifyingResult struct {
	DriverIndex int // index into the driver slice handed to RunQualifying
	Name        string
	BestLap     float64 // seconds
	Position    int     // 1-based grid slot
}

// RunQualifying simulates a flying-lap qualifying session and returns the
// results in grid order. Lap times come from a pace model rather than the
// tick engine: base pace is 70% of top speed scaled by driver skill, and
// each attempt varies with the driver's consistency (clipped to ±3%), track
// conditions (±1%) and a fixed 2% qualifying-trim gain. The best of
// flyingLaps attempts counts.
func RunQualifying(cfg *Config, track *Track, drivers []DriverParams, flyingLaps int, rng *rand.Rand) []QualifyingResult {
	if flyingLaps < 1 {
		flyingLaps = 1
	}
	results := make([]QualifyingResult, len(drivers))
	for i, d := range drivers {
		avgSpeed := cfg.Physics.MaxSpeed * 0.70 * d.Skill
		baseLap := track.Length() / avgSpeed

		best := math.Inf(1)
		for lap := 0; lap < flyingLaps; lap++ {
			attempt := clamp(1.0+rng.NormFloat64()*(1.0-d.Consistency), 0.97, 1.03)
			conditions := 1.0 + rng.NormFloat64()*0.01
			lapTime := baseLap*attempt*conditions*0.98 + rng.NormFloat64()*0.1
			if lapTime < best {
				best = lapTime
			}
		}
		results[i] = QualifyingResult{DriverIndex: i, Name: d.Name, BestLap: best}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].BestLap < results[b].BestLap
	})
	for p := range results {
		results[p].Position = p + 1
	}
	return results
}

// GridOrder flattens qualifying results into driver indices in starting
// order, pole first.
func GridOrder(results []QualifyingResult) []int {
	order := make([]int, len(results))
	for i, r := range results {
		order[i] = r.DriverIndex
	}
	return order
}
