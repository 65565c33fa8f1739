package sim

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metrics accumulates race statistics as the simulation runs and summarizes
// them at the end.
type Metrics struct {
	lapTimes map[int][]float64 // car id -> completed lap times
	names    map[int]string

	Ticks     int
	RaceTime  float64
	Crashes   int
	Overtakes int
	Cautions  int
	Retired   int
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{
		lapTimes: make(map[int][]float64),
		names:    make(map[int]string),
	}
}

// RecordLap logs a completed lap time for a car.
func (m *Metrics) RecordLap(carID int, name string, lapTime float64) {
	m.lapTimes[carID] = append(m.lapTimes[carID], lapTime)
	m.names[carID] = name
}

// LapTimes returns the recorded lap times for a car.
func (m *Metrics) LapTimes(carID int) []float64 {
	return m.lapTimes[carID]
}

// LapStats summarizes one car's lap time distribution.
type LapStats struct {
	CarID  int
	Name   string
	Laps   int
	Mean   float64
	StdDev float64
	Best   float64
	P95    float64
}

// Stats computes per-car lap statistics, ordered by car id.
func (m *Metrics) Stats() []LapStats {
	ids := make([]int, 0, len(m.lapTimes))
	for id := range m.lapTimes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]LapStats, 0, len(ids))
	for _, id := range ids {
		times := append([]float64(nil), m.lapTimes[id]...)
		if len(times) == 0 {
			continue
		}
		sort.Float64s(times)
		s := LapStats{
			CarID: id,
			Name:  m.names[id],
			Laps:  len(times),
			Mean:  stat.Mean(times, nil),
			Best:  times[0],
			P95:   stat.Quantile(0.95, stat.Empirical, times, nil),
		}
		if len(times) > 1 {
			s.StdDev = stat.StdDev(times, nil)
		}
		out = append(out, s)
	}
	return out
}

// Print writes the race summary and per-car lap statistics.
func (m *Metrics) Print(w io.Writer) {
	fmt.Fprintf(w, "race time: %.1fs over %d ticks\n", m.RaceTime, m.Ticks)
	fmt.Fprintf(w, "events: %d crashes, %d overtakes, %d cautions, %d retirements\n",
		m.Crashes, m.Overtakes, m.Cautions, m.Retired)
	for _, s := range m.Stats() {
		fmt.Fprintf(w, "  %-20s laps=%2d best=%6.2fs mean=%6.2fs sd=%5.2fs p95=%6.2fs\n",
			s.Name, s.Laps, s.Best, s.Mean, s.StdDev, s.P95)
	}
}

// PrintStandings writes the classified order.
func PrintStandings(w io.Writer, standings []Standing) {
	fmt.Fprintln(w, "pos  driver                laps  best lap    gap  status")
	for _, s := range standings {
		best := "   --"
		if !math.IsInf(s.BestLap, 1) {
			best = fmt.Sprintf("%6.2fs", s.BestLap)
		}
		gap := "     --"
		if s.Position > 1 && s.Status == "running" {
			gap = fmt.Sprintf("+%5.1fs", s.GapToLeader)
		}
		fmt.Fprintf(w, "%3d  %-20s %4d  %8s %s  %s\n",
			s.Position, s.Name, s.Laps, best, gap, s.Status)
	}
}
