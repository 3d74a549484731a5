package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/langpad"
	"pkt.systems/langpad/core"
	"pkt.systems/langpad/httpapi"
	"pkt.systems/langpad/internal/appconfig"
	"pkt.systems/pslog"
)

func newServeCmd() *cobra.Command {
	var cfgPath string
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the playground HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			cfg, err := appconfig.Load(cfgPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			serverCfg := toServerConfig(cfg)
			server, err := langpad.New(serverCfg, langpad.ServerDeps{
				ServiceDeps: core.ServiceDeps{Logger: logger},
			}, langpad.WithHTTP())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Stop(stopCtx); err != nil {
					logger.Warn("server stop failed", "err", err)
				}
			}()
			logger.Info("http server listening", "addr", serverCfg.HTTP.Addr, "state_dir", serverCfg.Playground.StateDir)
			if err := server.Start(ctx); err != nil {
				return err
			}
			return server.Wait()
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "override http.addr")
	return cmd
}

func toServerConfig(cfg appconfig.Config) langpad.ServerConfig {
	return langpad.ServerConfig{
		Playground: cfg.PlaygroundSettings(),
		HTTP:       toHTTPConfig(cfg.HTTP),
		HubHistory: cfg.HTTP.HubHistory,
	}
}

func toHTTPConfig(cfg appconfig.HTTPConfig) httpapi.Config {
	return httpapi.Config{
		Addr:     cfg.Addr,
		BaseURL:  cfg.BaseURL,
		BasePath: cfg.BasePath,
	}
}
