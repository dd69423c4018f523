package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/FranksOps/digest/internal/metrics"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/report"
	"github.com/FranksOps/digest/internal/schedule"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/spf13/cobra"
)

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	var (
		spec  string
		once  bool
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Build and store daily digests for every registered user",
		Long: `schedule runs every user's topics through the pipeline on a cron
schedule and stores the results. Five-field expressions are accepted and
run at second zero; descriptors such as @daily and @every 6h also work.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if spec == "" {
				spec = opts.cfg.Schedule.Spec
			}

			ctx := cmd.Context()
			p, cleanup, err := buildPipeline(ctx, opts.cfg, opts.logger)
			defer cleanup()
			if err != nil {
				return err
			}

			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			deliver := func(u *storage.User, results []pipeline.TopicResult) {
				if quiet {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				if err := report.WriteTopics(out, u.Name, results); err != nil {
					opts.logger.Warn("failed to print digest", "mobile_no", u.MobileNo, "err", err)
				}
			}

			s, err := schedule.New(p, store, schedule.Config{
				Spec:        spec,
				Window:      opts.cfg.Pipeline.Window,
				MaxArticles: opts.cfg.Pipeline.MaxArticles,
				Deliver:     deliver,
				Logger:      opts.logger,
			})
			if err != nil {
				return err
			}

			if once {
				stats, err := s.RunOnce(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.ErrOrStderr(), "users=%d digests=%d skipped=%d failed=%d\n",
					stats.Users, stats.Digests, stats.Skipped, stats.Failed)
				return err
			}

			if addr := opts.cfg.Server.MetricsAddr; addr != "" {
				m := metrics.Start(addr, opts.logger)
				defer func() { _ = m.Stop(context.Background()) }()
				opts.logger.Info("metrics listening", "addr", addr)
			}

			if err := s.Start(); err != nil {
				return err
			}
			<-ctx.Done()

			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return s.Stop(stopCtx)
		},
	}

	cmd.Flags().StringVar(&spec, "spec", "", "Cron expression (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single pass now and exit")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Store digests without printing them")
	return cmd
}
