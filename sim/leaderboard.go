package sim

import (
	"math"
	"sort"
)

// Standing is one classified row of the running or final order.
type Standing struct {
	Position      int
	CarID         int
	Name          string
	Laps          int
	TotalDistance float64
	BestLap       float64 // +Inf if no lap completed
	LastLap       float64
	GapToLeader   float64 // seconds
	MaxSpeed      float64
	OvertakesMade int
	EnergyUsedPct float64
	Status        string // "running" or the retirement reason
}

// ComputeStandings classifies the field and writes rank and gap information
// back into the car states. Active cars order by laps then distance; retired
// cars classify behind them in distance order. Gaps convert the distance
// deficit into seconds at the trailing car's current speed.
func ComputeStandings(cars []*CarState, cfg *Config) []Standing {
	order := make([]*CarState, len(cars))
	copy(order, cars)

	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Active != b.Active {
			return a.Active
		}
		if a.Lap != b.Lap {
			return a.Lap > b.Lap
		}
		return a.TotalDistance > b.TotalDistance
	})

	standings := make([]Standing, len(order))
	var leader *CarState
	var ahead *CarState
	for i, c := range order {
		c.Rank = i + 1
		if i == 0 {
			leader = c
			c.GapToLeader = 0
			c.GapToAhead = math.Inf(1)
		} else {
			c.GapToLeader = distanceGapSeconds(leader, c)
			c.GapToAhead = distanceGapSeconds(ahead, c)
		}
		ahead = c

		status := "running"
		if !c.Active {
			status = c.RetireReason
		}
		standings[i] = Standing{
			Position:      i + 1,
			CarID:         c.ID,
			Name:          c.Name,
			Laps:          c.Lap,
			TotalDistance: c.TotalDistance,
			BestLap:       c.BestLapTime,
			LastLap:       c.LastLapTime,
			GapToLeader:   c.GapToLeader,
			MaxSpeed:      c.MaxSpeed,
			OvertakesMade: c.OvertakesMade,
			EnergyUsedPct: energyUsedPct(c, cfg),
			Status:        status,
		}
	}
	return standings
}

// distanceGapSeconds converts the distance deficit from ahead to behind into
// seconds at the trailing car's speed.
func distanceGapSeconds(aheadCar, behind *CarState) float64 {
	gap := aheadCar.TotalDistance - behind.TotalDistance
	if gap < 0 {
		gap = 0
	}
	return gap / math.Max(behind.VelX, 1.0)
}

func energyUsedPct(c *CarState, cfg *Config) float64 {
	if cfg.Energy.CapacityJ <= 0 {
		return 0
	}
	return (c.EnergyConsumed - c.EnergyRegenerated) / cfg.Energy.CapacityJ * 100.0
}
