package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/FranksOps/digest/internal/storage"
	"github.com/spf13/cobra"
)

func newUsersCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users and their topics of interest",
	}
	cmd.AddCommand(
		newUsersAddCmd(opts),
		newUsersGetCmd(opts),
		newUsersTopicsCmd(opts),
		newUsersListCmd(opts),
	)
	return cmd
}

func newUsersAddCmd(opts *globalOptions) *cobra.Command {
	var (
		name   string
		topics []string
	)

	cmd := &cobra.Command{
		Use:     "add <mobile_no>",
		Short:   "Register a user",
		Example: `  digest users add 9876543210 --name Asha --topics "ai,climate change"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			u := &storage.User{Name: name, MobileNo: args[0], Topics: topics}
			if err := store.CreateUser(ctx, u); err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "User name")
	cmd.Flags().StringSliceVar(&topics, "topics", nil, "Comma-separated topics of interest")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func newUsersGetCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <mobile_no>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.ValidateMobileNo(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.GetUser(ctx, args[0])
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}
}

func newUsersTopicsCmd(opts *globalOptions) *cobra.Command {
	var topics []string

	cmd := &cobra.Command{
		Use:   "topics <mobile_no>",
		Short: "Replace a user's topics of interest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := storage.ValidateMobileNo(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.UpdateTopics(ctx, args[0], topics)
			if err != nil {
				return err
			}
			printUser(cmd.OutOrStdout(), u)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&topics, "topics", nil, "Comma-separated topics of interest")
	_ = cmd.MarkFlagRequired("topics")
	return cmd
}

func newUsersListCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := requireStore(ctx, opts.cfg.Storage)
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := store.ListUsers(ctx)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MOBILE\tNAME\tTOPICS\tCREATED")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.MobileNo, u.Name, strings.Join(u.Topics, ", "), u.CreatedAt.Format(time.DateOnly))
			}
			return tw.Flush()
		},
	}
}

func printUser(w io.Writer, u *storage.User) {
	fmt.Fprintf(w, "Name:      %s\n", u.Name)
	fmt.Fprintf(w, "Mobile:    %s\n", u.MobileNo)
	fmt.Fprintf(w, "Topics:    %s\n", strings.Join(u.Topics, ", "))
	fmt.Fprintf(w, "Created:   %s\n", u.CreatedAt.Format(time.RFC3339))
}
