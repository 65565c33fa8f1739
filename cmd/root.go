package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/simpulse/racesim/sim"
)

var (
	// CLI flags for the race setup
	seed       int64   // Seed for the stochastic race dynamics
	laps       int     // Race distance in laps
	cars       int     // Field size when no driver preset is given
	dt         float64 // Integration step (seconds)
	logLevel   string  // Log verbosity level
	trackFile  string  // Circuit preset YAML
	driverFile string  // Driver lineup preset YAML
	vectorized bool    // Use the array-layout engine
	workers    int     // Scalar engine parallelism (cars per tick fan-out)
	showEvents bool    // Print the full event log after the race
	qualifying bool    // Run a qualifying session to set the grid order
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "racesim",
	Short: "Stochastic lap-by-lap simulator for electric street racing",
}

// runCmd executes one race using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a race simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		track := sim.DefaultTrack()
		if trackFile != "" {
			track, err = LoadTrack(trackFile)
			if err != nil {
				logrus.Fatalf("unable to load track: %v", err)
			}
		}

		drivers := DefaultDrivers(cars)
		if driverFile != "" {
			drivers, err = LoadDrivers(driverFile)
			if err != nil {
				logrus.Fatalf("unable to load drivers: %v", err)
			}
		}

		config := sim.DefaultConfig()

		if qualifying {
			rng := sim.NewStreams(sim.NewSimulationKey(seed)).ForSubsystem(sim.SubsystemQualifying)
			results := sim.RunQualifying(&config, track, drivers, 2, rng)
			fmt.Println("Qualifying:")
			for _, q := range results {
				fmt.Printf("  P%-2d %-24s %8.3fs\n", q.Position, q.Name, q.BestLap)
			}
			ordered := make([]sim.DriverParams, 0, len(drivers))
			for _, idx := range sim.GridOrder(results) {
				ordered = append(ordered, drivers[idx])
			}
			drivers = ordered
		}

		params := sim.SimParams{
			Dt:         dt,
			Laps:       laps,
			Seed:       seed,
			Vectorized: vectorized,
			Workers:    workers,
		}

		logrus.Infof("Starting race: %s, %d laps, %d cars, seed=%d, dt=%.2fs",
			track.Name, laps, len(drivers), seed, dt)

		race, err := sim.NewRace(config, params, track, drivers, nil)
		if err != nil {
			logrus.Fatalf("unable to set up race: %v", err)
		}

		startTime := time.Now()
		result, err := race.Run(context.Background())
		if err != nil {
			logrus.Fatalf("race aborted: %v", err)
		}
		logrus.Infof("Simulated %d ticks in %v", result.Ticks, time.Since(startTime))

		sim.PrintStandings(os.Stdout, result.Standings)
		result.Metrics.Print(os.Stdout)
		if showEvents {
			for _, rec := range result.Events.Records() {
				os.Stdout.WriteString(rec.String() + "\n")
			}
		}
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the stochastic dynamics")
	runCmd.Flags().IntVar(&laps, "laps", 30, "Race distance in laps")
	runCmd.Flags().IntVar(&cars, "cars", 16, "Field size (ignored with --drivers)")
	runCmd.Flags().Float64Var(&dt, "dt", 0.1, "Integration step in seconds")
	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&trackFile, "track", "", "Circuit preset YAML file")
	runCmd.Flags().StringVar(&driverFile, "drivers", "", "Driver lineup preset YAML file")
	runCmd.Flags().BoolVar(&vectorized, "vectorized", false, "Use the array-layout engine")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Cars advanced in parallel per tick (scalar engine)")
	runCmd.Flags().BoolVar(&showEvents, "events", false, "Print the full event log after the race")
	runCmd.Flags().BoolVar(&qualifying, "qualifying", false, "Run a qualifying session to set the grid order")

	rootCmd.AddCommand(runCmd)
}
