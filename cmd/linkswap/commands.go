package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/djlord-it/linkswap/internal/config"
	"github.com/djlord-it/linkswap/internal/metrics"
	"github.com/djlord-it/linkswap/internal/stats"
)

// loadConfig loads and validates configuration. Both failures exit with
// exitInvalidConfig.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, configError(fmt.Errorf("configuration error: %w", err))
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, configError(fmt.Errorf("configuration error: %w", err))
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the redirect server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the links schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runMigrate(cmd.Context(), cfg)
		},
	}
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return runtimeError("%v", err)
	}
	defer b.close()

	if err := b.ensureSchema(ctx); err != nil {
		return runtimeError("%v", err)
	}
	fmt.Printf("schema ready (store=%s)\n", b.name)
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print pair and redirect totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			b, err := openBackend(ctx, cfg)
			if err != nil {
				return runtimeError("%v", err)
			}
			defer b.close()

			// The schedule is unused for a one-shot collection.
			collector := stats.New(b.store, nil, metrics.NewNoopSink())
			totals, err := collector.Collect(ctx)
			if err != nil {
				return runtimeError("read totals: %v", err)
			}
			fmt.Printf("store=%s pairs=%d redirects=%d\n", b.name, totals.Pairs, totals.Redirects)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration (no connections made)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			fmt.Println("configuration valid")
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print effective configuration as JSON (secrets masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return configError(fmt.Errorf("configuration error: %w", err))
			}
			data, err := cfg.MaskedJSON()
			if err != nil {
				return runtimeError("failed to marshal config: %v", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("linkswap version %s (commit: %s)\n", version, commit)
		},
	}
}
