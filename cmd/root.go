package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/siafu-sim/siafu/sim/platform"
)

var (
	// CLI flags for siafu run. Each overrides the config file and the
	// environment only when given explicitly.
	configPath string // YAML or TOML config file
	logLevel   string // Log verbosity level
	seed       int64  // Seed for the scenario's random sources
	agents     int    // Number of agents to create
	port       int    // Command listener port
	noUI       bool   // Run without the console front end
	iterations int64  // Stop after this many iterations (0 = run until interrupted)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "siafu",
	Short: "Agent-based context simulator",
}

// runCmd runs a scenario until it ends or is interrupted
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := platform.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		applyRunFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		p, err := platform.New(cfg, os.Stdout)
		if err != nil {
			logrus.Fatalf("Could not set up simulation: %v", err)
		}
		if addr := p.CommandAddr(); addr != nil {
			logrus.Infof("Accepting commands on %s", addr)
		}
		logrus.Infof("Starting %s with %d agents, seed=%d, step=%s, max iterations=%d",
			cfg.Simulation.Scenario, cfg.Simulation.Agents, cfg.Simulation.Seed,
			cfg.Simulation.IterationStep, cfg.Simulation.MaxIterations)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := p.Run(ctx); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Info("Simulation complete.")
	},
}

// applyRunFlags copies explicitly set run flags over cfg.
func applyRunFlags(cmd *cobra.Command, cfg *platform.Config) {
	f := cmd.Flags()
	if f.Changed("seed") {
		cfg.Simulation.Seed = seed
	}
	if f.Changed("agents") {
		cfg.Simulation.Agents = agents
	}
	if f.Changed("port") {
		cfg.CommandListener.Port = port
	}
	if f.Changed("iterations") {
		cfg.Simulation.MaxIterations = iterations
	}
	if noUI {
		cfg.UI.Enable = false
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Config file (.yaml, .yml or .toml)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for the scenario's random sources")
	runCmd.Flags().IntVar(&agents, "agents", 20, "Number of agents")
	runCmd.Flags().IntVar(&port, "port", 4444, "Command listener port")
	runCmd.Flags().BoolVar(&noUI, "no-ui", false, "Run without the console front end")
	runCmd.Flags().Int64Var(&iterations, "iterations", 0, "Stop after this many iterations (0 = until interrupted)")

	rootCmd.AddCommand(runCmd)
}
