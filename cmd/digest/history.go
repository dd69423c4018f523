package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/spf13/cobra"
)

func newHistoryCmd(opts *globalOptions) *cobra.Command {
	var (
		filter storage.Filter
		since  time.Duration
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored digests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter.Limit < 0 || filter.Offset < 0 {
				return fmt.Errorf("%w: --limit and --offset must not be negative", news.ErrValidation)
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			ctx := cmd.Context()
			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.QueryDigests(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tTOPIC\tWINDOW\tMOBILE\tARTICLES\tID")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime), r.Topic, r.Window, r.MobileNo, len(r.Articles), r.ID)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.Topic, "topic", "", "Only digests for this topic")
	cmd.Flags().StringVar(&filter.MobileNo, "mobile", "", "Only digests for this user")
	cmd.Flags().DurationVar(&since, "since", 0, "Only digests newer than this, e.g. 72h")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum digests to list")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Digests to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}
