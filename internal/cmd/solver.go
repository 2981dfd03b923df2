// Package cmd contains the CLI entrypoints of the two coupled
// participants.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/gin-gonic/gin"
	"github.com/oklog/run"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/davidscn/coupled-laplace/internal/adapter"
	"github.com/davidscn/coupled-laplace/internal/coupling"
	"github.com/davidscn/coupled-laplace/internal/metrics"
	"github.com/davidscn/coupled-laplace/internal/solver"
	"github.com/davidscn/coupled-laplace/internal/zpages"
)

const solverLongHelp = `
Run the coupled Laplace solver participant.

The solver computes the Laplace problem on [-1, 1]^2 and couples the boundary in positive
x direction to a partner participant, exchanging boundary data once per time window.

Each CLI argument has a corresponding environment variable in the form of the CLI argument
prefixed with LAPLACE. If both the flag and environment variable form are specified, the
flag form takes precedence.

Examples
  --config             LAPLACE_CONFIG
  --cg-tolerance       LAPLACE_CG_TOLERANCE
`

// EnvNamePrefix defines the environment variable prefix required for all
// environment configuration.
const EnvNamePrefix = "LAPLACE"

// SolverCommandOptions encompasses all the configurability of the
// SolverCommand.
type SolverCommandOptions struct {
	Config      string `mapstructure:"config"`
	Participant string `mapstructure:"participant"`

	Refinements     int     `mapstructure:"refinements"`
	CGMaxIterations int     `mapstructure:"cg-max-iterations"`
	CGTolerance     float64 `mapstructure:"cg-tolerance"`
	OutputDir       string  `mapstructure:"output-dir"`

	StatusAddress string `mapstructure:"status-address"`
	Debug         bool   `mapstructure:"debug"`
}

// SolverCommand is the entrypoint of the Laplace solver participant.
type SolverCommand struct {
	*cobra.Command
	vpr  *viper.Viper
	Opts SolverCommandOptions
}

// NewSolverCommand creates a new SolverCommand instance.
func NewSolverCommand() (*SolverCommand, error) {
	cmd := &SolverCommand{
		Command: &cobra.Command{
			Use:          os.Args[0],
			Long:         solverLongHelp,
			SilenceUsage: true,
		},
	}

	cmd.PreRunE = cmd.PreRun
	cmd.RunE = cmd.Run
	cmd.Flags().SortFlags = false // Print flag help in the order they're specified.

	// Ensure keys with `-` use `_` for env keys else Viper won't match them.
	cmd.vpr = viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer("-", "_")))
	cmd.vpr.SetEnvPrefix(EnvNamePrefix)

	if err := cmd.configureFlags(); err != nil {
		return nil, err
	}

	return cmd, nil
}

// PreRun satisfies cobra.Command.PreRunE. It is responsible for populating
// c.Opts.
func (c *SolverCommand) PreRun(*cobra.Command, []string) error {
	return c.vpr.Unmarshal(&c.Opts)
}

// Run executes the solver participant.
func (c *SolverCommand) Run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(c.Opts.Debug)
	logger.Info("Solver command options", "opts", fmt.Sprintf("%#v", c.Opts))

	ctx, otelShutdown := otelinit.InitOpenTelemetry(cmd.Context(), "laplace-solver")
	defer otelShutdown(ctx)

	cfg, err := coupling.LoadConfig(c.Opts.Config)
	if err != nil {
		return err
	}

	participant, err := coupling.NewParticipant(logger, cfg, c.Opts.Participant)
	if err != nil {
		return err
	}
	defer participant.Finalize()

	registry := prometheus.NewRegistry()
	stats := metrics.NewSolver(registry)

	problem := solver.New(logger, solver.Options{
		Refinements:   c.Opts.Refinements,
		MaxIterations: c.Opts.CGMaxIterations,
		Tolerance:     c.Opts.CGTolerance,
		OutputDir:     c.Opts.OutputDir,
	}, adapter.New(logger, participant, solver.InterfaceBoundaryID), cfg.TimeWindowSize, stats)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(func() error { return problem.Run(ctx) }, func(error) { cancel() })
	if c.Opts.StatusAddress != "" {
		router := gin.New()
		router.Use(gin.Recovery())
		zpages.Configure(router, registry, participant)
		g.Add(func() error { return zpages.Serve(ctx, logger, c.Opts.StatusAddress, router) }, func(error) { cancel() })
	}
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()

	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("received stop signal, shutting down", "signal", sig.Signal.String())
		return nil
	}
	return err
}

func (c *SolverCommand) configureFlags() error {
	c.Flags().String("config", "coupling.yaml", "Path to the coupling configuration")
	c.Flags().String("participant", "laplace-solver", "Name of this participant in the coupling configuration")

	c.Flags().Int("refinements", 4, "Number of global mesh refinements")
	c.Flags().Int("cg-max-iterations", 1000, "Iteration bound of the CG solver")
	c.Flags().Float64("cg-tolerance", 1e-12, "Absolute residual tolerance of the CG solver")
	c.Flags().String("output-dir", "output", "Directory receiving one VTK file per time window; empty disables output")

	c.Flags().String("status-address", "", "Address to serve /metrics and /healthz on; empty disables the status pages")
	c.Flags().Bool("debug", false, "Enable verbose console logging")

	if err := c.vpr.BindPFlags(c.Flags()); err != nil {
		return err
	}

	var err error
	c.Flags().VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = c.vpr.BindEnv(f.Name)
	})

	return err
}
