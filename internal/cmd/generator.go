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

	"github.com/davidscn/coupled-laplace/internal/coupling"
	"github.com/davidscn/coupled-laplace/internal/generator"
	"github.com/davidscn/coupled-laplace/internal/zpages"
)

const generatorLongHelp = `
Run the boundary condition generator participant.

The generator listens for the solver participant, receives its interface mesh and publishes
a time dependent boundary condition at the received coordinates once per time window.

Each CLI argument has a corresponding environment variable in the form of the CLI argument
prefixed with LAPLACE. If both the flag and environment variable form are specified, the
flag form takes precedence.

Examples
  --config             LAPLACE_CONFIG
  --status-address     LAPLACE_STATUS_ADDRESS
`

// GeneratorCommandOptions encompasses all the configurability of the
// GeneratorCommand.
type GeneratorCommandOptions struct {
	Config      string `mapstructure:"config"`
	Participant string `mapstructure:"participant"`

	StatusAddress string `mapstructure:"status-address"`
	Debug         bool   `mapstructure:"debug"`
}

// GeneratorCommand is the entrypoint of the boundary generator
// participant.
type GeneratorCommand struct {
	*cobra.Command
	vpr  *viper.Viper
	Opts GeneratorCommandOptions
}

// NewGeneratorCommand creates a new GeneratorCommand instance.
func NewGeneratorCommand() (*GeneratorCommand, error) {
	cmd := &GeneratorCommand{
		Command: &cobra.Command{
			Use:          os.Args[0],
			Long:         generatorLongHelp,
			SilenceUsage: true,
		},
	}

	cmd.PreRunE = cmd.PreRun
	cmd.RunE = cmd.Run
	cmd.Flags().SortFlags = false

	cmd.vpr = viper.NewWithOptions(viper.EnvKeyReplacer(strings.NewReplacer("-", "_")))
	cmd.vpr.SetEnvPrefix(EnvNamePrefix)

	if err := cmd.configureFlags(); err != nil {
		return nil, err
	}

	return cmd, nil
}

// PreRun satisfies cobra.Command.PreRunE. It is responsible for populating
// c.Opts.
func (c *GeneratorCommand) PreRun(*cobra.Command, []string) error {
	return c.vpr.Unmarshal(&c.Opts)
}

// Run executes the generator participant.
func (c *GeneratorCommand) Run(cmd *cobra.Command, _ []string) error {
	logger := newLogger(c.Opts.Debug)
	logger.Info("Generator command options", "opts", fmt.Sprintf("%#v", c.Opts))

	ctx, otelShutdown := otelinit.InitOpenTelemetry(cmd.Context(), "boundary-generator")
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

	gen := generator.New(logger, participant, cfg.TimeWindowSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(func() error { return gen.Run(ctx) }, func(error) { cancel() })
	if c.Opts.StatusAddress != "" {
		router := gin.New()
		router.Use(gin.Recovery())
		zpages.Configure(router, prometheus.NewRegistry(), participant)
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

func (c *GeneratorCommand) configureFlags() error {
	c.Flags().String("config", "coupling.yaml", "Path to the coupling configuration")
	c.Flags().String("participant", "boundary-generator", "Name of this participant in the coupling configuration")

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
