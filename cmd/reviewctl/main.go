package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tendant/simple-review/pkg/simplereview"
	"github.com/tendant/simple-review/pkg/simplereview/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()

	rootCmd := NewRootCommand(openFromConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Opener builds the engine a command runs against. The returned function
// releases it.
type Opener func(ctx context.Context, configFile string) (simplereview.Service, func() error, error)

func openFromConfig(ctx context.Context, configFile string) (simplereview.Service, func() error, error) {
	opts := []config.Option{}
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	opts = append(opts, config.WithEnv())
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, err
	}
	// Short-lived process: no janitor.
	cfg.CacheSweepSchedule = ""

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine, err := cfg.BuildEngine(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	return engine.Service, engine.Close, nil
}

// cli carries the state shared by every subcommand
type cli struct {
	open       Opener
	configFile string
	actorID    string
	asJSON     bool
}

// NewRootCommand creates the reviewctl command tree
func NewRootCommand(open Opener) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:   "reviewctl",
		Short: "Moderation CLI for the simple-review engine",
		Long: `Moderation command line interface for simple-review.

Runs lifecycle operations directly against the configured database and
storage, using the same configuration as the server (environment variables,
an optional .env file, or --config).`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&c.actorID, "actor", os.Getenv("REVIEWCTL_ACTOR_ID"), "operator user id recorded on reviews (env REVIEWCTL_ACTOR_ID)")
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(
		c.newListCommand(),
		c.newApproveCommand(),
		c.newApproveAllCommand(),
		c.newRejectCommand(),
		c.newRestoreCommand(),
		c.newPurgeCommand(),
		c.newStatsCommand(),
	)
	return rootCmd
}

// operator is a superuser acting under the configured id
func (c *cli) operator() (*simplereview.Actor, error) {
	if c.actorID == "" {
		return nil, fmt.Errorf("--actor (or REVIEWCTL_ACTOR_ID) is required")
	}
	id, err := uuid.Parse(c.actorID)
	if err != nil || id == uuid.Nil {
		return nil, fmt.Errorf("invalid --actor %q: must be a user id", c.actorID)
	}
	return &simplereview.Actor{UserID: id, Role: simplereview.RoleSuperuser}, nil
}

// run opens the engine, hands it to fn and always releases it
func (c *cli) run(cmd *cobra.Command, fn func(ctx context.Context, svc simplereview.Service, actor *simplereview.Actor) error) error {
	actor, err := c.operator()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := c.open(ctx, c.configFile)
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	runErr := fn(ctx, svc, actor)
	if err := closeFn(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
