package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/server"
)

// serveCommand creates the serve command for the HTTP views API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr    string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve interactive views over HTTP",
		Long: `Serve interactive views over HTTP.

Clients create a view from a stored snapshot, then drive it with pointer
events, filter patches and selections, and fetch frames or SVG. Views live
in memory and expire after the configured idle time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			defaults, err := cfg.PipelineOptions()
			if err != nil {
				return err
			}
			runner, err := c.newRunner(ctx, noCache, true)
			if err != nil {
				return fmt.Errorf("initialize runner: %w", err)
			}
			defer runner.Close()

			scfg := server.Config{
				Addr:      cfg.Server.Addr,
				MaxViews:  cfg.Server.MaxViews,
				ViewTTL:   cfg.Server.ViewTTL,
				HitRadius: cfg.Server.HitRadius,
				Defaults:  defaults,
			}
			if cmd.Flags().Changed("addr") {
				scfg.Addr = addr
			}

			printInfo("Listening on %s", StyleHighlight.Render(scfg.Addr))
			printDetail("Snapshots: %s backend", cfg.Storage.Backend)
			return server.New(runner, scfg, c.Logger).Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the snapshot and artifact cache")

	return cmd
}
