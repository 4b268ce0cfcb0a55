package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/operator-framework/cost-guard/cmd/helpers"
	"github.com/operator-framework/cost-guard/pkg/aws"
	"github.com/operator-framework/cost-guard/pkg/config"
)

const envPrefix = "COST_GUARD"

var (
	globals   globalOptions
	costOpts  costOptions
	cpuOpts   cpuOptions
	watchOpts watchOptions
)

var rootCmd = &cobra.Command{
	Use:           "cost-guard",
	Short:         "threshold alerts for AWS spending and EC2 CPU utilization",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "compares the current month's AWS spending against a budget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd, costOpts.apply)
		if err != nil {
			return err
		}
		ctx := setupSignals(a.logger)
		return a.oneShot(ctx, costCheckName, a.runCost)
	},
}

var cpuCmd = &cobra.Command{
	Use:   "cpu",
	Short: "reports running EC2 instances whose CPU utilization is above a threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd, cpuOpts.apply)
		if err != nil {
			return err
		}
		ctx := setupSignals(a.logger)
		return a.oneShot(ctx, cpuCheckName, a.runCPU)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "runs the cost and CPU checks on a schedule and serves their status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(cmd, watchOpts.apply)
		if err != nil {
			return err
		}
		return a.watch(setupSignals(a.logger))
	},
}

func init() {
	globals.addFlags(rootCmd.PersistentFlags())
	costOpts.addFlags(costCmd.Flags())
	cpuOpts.addFlags(cpuCmd.Flags())
	watchOpts.addFlags(watchCmd.Flags())

	rootCmd.AddCommand(costCmd, cpuCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup builds the app for cmd. Values come from the rules file, then
// COST_GUARD_* environment variables, then flags given on the command line,
// in increasing order of precedence.
func setup(cmd *cobra.Command, override configOverride) (*app, error) {
	fs := cmd.Flags()
	if err := helpers.LoadEnvFile(envFilePath(fs)); err != nil {
		return nil, err
	}
	if err := helpers.SetFlagsFromEnv(fs, envPrefix); err != nil {
		return nil, fmt.Errorf("error setting flags from environment variables: %v", err)
	}

	logger, err := helpers.SetupLogger(globals.logLevel, globals.logFormat, log.Fields{"app": "cost-guard"})
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(fs, globals.configPath, override)
	if err != nil {
		return nil, err
	}
	logger.Debugf("effective configuration: %s", spew.Sdump(cfg))

	clients, err := aws.NewClients(aws.Config{Region: globals.region, Profile: globals.profile})
	if err != nil {
		return nil, err
	}
	return newApp(logger, cfg, clients, os.Stdout, globals.noColor, globals.metricsTextfile)
}

// envFilePath resolves --env-file before the other flags are read from the
// environment, since the file may set them.
func envFilePath(fs *pflag.FlagSet) string {
	if f := fs.Lookup("env-file"); f != nil && f.Changed {
		return f.Value.String()
	}
	return os.Getenv(helpers.EnvKey(envPrefix, "env-file"))
}

// loadConfig reads the rules file at path and applies the flags set on fs,
// either on the command line or from the environment.
func loadConfig(fs *pflag.FlagSet, path string, override configOverride) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(fs, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setupSignals(logger log.FieldLogger) context.Context {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := <-sigs
		logger.Infof("got signal %s, performing shutdown", sig)
		cancel()
	}()
	return ctx
}
