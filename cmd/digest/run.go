package main

import (
	"fmt"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/pipeline"
	"github.com/FranksOps/digest/internal/report"
	"github.com/spf13/cobra"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var (
		topic       string
		window      string
		maxArticles int
		format      string
		save        bool
	)

	cmd := &cobra.Command{
		Use:   "run [topic]",
		Short: "Build one digest and print it",
		Example: `  digest run --topic "artificial intelligence" --window 2d
  digest run climate --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" && len(args) == 1 {
				topic = args[0]
			}
			if !report.ValidFormat(format) {
				return fmt.Errorf("%w: --format must be text, json or html", news.ErrValidation)
			}
			if window == "" {
				window = opts.cfg.Pipeline.Window
			}
			if !cmd.Flags().Changed("max-articles") {
				maxArticles = opts.cfg.Pipeline.MaxArticles
			}

			ctx := cmd.Context()
			p, cleanup, err := buildPipeline(ctx, opts.cfg, opts.logger)
			defer cleanup()
			if err != nil {
				return err
			}

			d, err := p.Run(ctx, pipeline.Request{Topic: topic, Window: window, MaxArticles: maxArticles})
			if err != nil {
				return err
			}

			if save {
				store, err := requireStore(ctx, opts.cfg.Storage)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.SaveDigest(ctx, d.Record("")); err != nil {
					return err
				}
				opts.logger.Info("digest stored", "id", d.ID)
			}

			return report.Write(cmd.OutOrStdout(), format, d)
		},
	}

	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic to search for")
	cmd.Flags().StringVarP(&window, "window", "w", "", "Time window, 1d to 7d (default from config)")
	cmd.Flags().IntVarP(&maxArticles, "max-articles", "n", 0, "Articles to include, 1 to 20 (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json, html")
	cmd.Flags().BoolVar(&save, "save", false, "Store the digest in history")
	return cmd
}
