// Package cli implements vincectl, the operator tool for tasks that run
// against the store directly rather than through the HTTP API.
package cli

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/vince/internal/cache"
	"github.com/kiranshivaraju/vince/internal/config"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/spf13/cobra"
)

// Execute creates the root command tree and runs it.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vincectl",
		Short: "Operate a vince API key service",
		Long: `vincectl manages a vince deployment from the command line.

It reads the same environment (and .env file) as the server and talks to the
database directly, so it works while the server is down.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSecretsCmd())
	cmd.AddCommand(newServiceKeyCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vincectl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vincectl %s\n", version)
		},
	}
}

// env bundles what the storage commands need. Close releases everything.
type env struct {
	cfg   *config.Config
	store store.Store
	cache cache.Cache
}

func (e *env) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
	e.store.Close()
}

// openEnv loads the storage configuration and opens the store, plus Redis
// when configured. An unreachable Redis is an error so that cached service
// credentials are never left stale.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	s, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	e := &env{cfg: cfg, store: s}

	if cfg.Redis.Enabled() {
		rc, err := cache.NewRedisCache(cfg.Redis.URL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("create redis cache: %w", err)
		}
		if err := rc.Ping(ctx); err != nil {
			rc.Close()
			s.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		e.cache = rc
	}
	return e, nil
}
