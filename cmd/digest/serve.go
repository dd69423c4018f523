package main

import (
	"github.com/FranksOps/digest/internal/api"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = opts.cfg.Server.Addr
			}

			ctx := cmd.Context()
			p, cleanup, err := buildPipeline(ctx, opts.cfg, opts.logger)
			defer cleanup()
			if err != nil {
				return err
			}

			store, err := openStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			} else {
				opts.logger.Warn("no storage configured; user endpoints are disabled")
			}

			gin.SetMode(gin.ReleaseMode)
			srv := api.New(api.Config{
				Pipeline:    p,
				Store:       store,
				Window:      opts.cfg.Pipeline.Window,
				MaxArticles: opts.cfg.Pipeline.MaxArticles,
				CORSOrigins: opts.cfg.Server.CORSOrigins,
				Logger:      opts.logger,
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}
