package main

import (
	"strings"

	"github.com/spf13/cobra"

	"monad/internal/config"
	"monad/internal/daemonrun"
)

func newRunCommands(ctx *commandContext) []*cobra.Command {
	loopCmd := &cobra.Command{
		Use:   "loop",
		Short: "Run the idle loop in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, ctx, config.ModeLoop, nil)
		},
	}

	var bind string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /status in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, ctx, config.ModeHTTP, func(cfg *config.Config) {
				if value := strings.TrimSpace(bind); value != "" {
					cfg.Server.Bind = value
				}
			})
		},
	}
	serveCmd.Flags().StringVar(&bind, "bind", "", "Override server.bind (host:port)")

	daemonCmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Run the monad daemon in the configured mode (internal)",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, ctx, "", nil)
		},
	}

	return []*cobra.Command{loopCmd, serveCmd, daemonCmd}
}

func runDaemon(cmd *cobra.Command, ctx *commandContext, mode string, adjust func(*config.Config)) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	runCfg := *cfg
	if adjust != nil {
		adjust(&runCfg)
	}
	return daemonrun.Run(cmd.Context(), &runCfg, daemonrun.Options{
		Mode:     mode,
		LogLevel: ctx.resolvedLogLevel(&runCfg),
	})
}

