package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ai-khaled/internal/app"
	"ai-khaled/internal/maintenance"
	"ai-khaled/internal/storage"
)

func newStatsCmd() *cobra.Command {
	var (
		day    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print usage statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if day != "" {
					d, err := time.Parse("2006-01-02", day)
					if err != nil {
						return fmt.Errorf("invalid --day, expected YYYY-MM-DD: %w", err)
					}
					fmt.Fprint(out, a.Maintenance.DailyStats(d).Report())
					return nil
				}
				stats := a.Maintenance.Stats(ctx)
				if asJSON {
					js, err := stats.ToJSON()
					if err != nil {
						return err
					}
					fmt.Fprintln(out, js)
					return nil
				}
				fmt.Fprint(out, stats.Report())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "Per-day report for YYYY-MM-DD")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the data files into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				files, err := a.Maintenance.Backup()
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return err
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase memory and dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Maintenance.Reset(ctx, confirm); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "memory and dataset erased")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", fmt.Sprintf("Type %q to confirm", maintenance.ResetConfirmation))
	return cmd
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change runtime flags",
	}
	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Print flags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				flags := a.Maintenance.Flags()
				out := cmd.OutOrStdout()
				if len(args) == 1 {
					v, ok := flags[args[0]]
					if !ok {
						return fmt.Errorf("unknown flag %q", args[0])
					}
					fmt.Fprintf(out, "%v\n", v)
					return nil
				}
				keys := make([]string, 0, len(flags))
				for k := range flags {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "%s=%v\n", k, flags[k])
				}
				return nil
			})
		},
	}
	setCmd := &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Update flags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := maintenance.ParseFlagAssignments(args)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Maintenance.UpdateFlags(patch); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "updated")
				return nil
			})
		},
	}
	configCmd.AddCommand(getCmd, setCmd)
	return configCmd
}

func newHistoryCmd() *cobra.Command {
	var (
		sessionID string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent handled messages with the stage that answered them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Journal == nil {
					return fmt.Errorf("interaction journal is disabled")
				}
				events, err := a.Journal.LoadInteractions()
				if err != nil {
					return err
				}
				for _, ev := range storage.Tail(events, sessionID, limit) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s: %s => %s\n",
						ev.Timestamp.Format(time.RFC3339), ev.Stage, ev.SessionID, ev.UserMessage, ev.Reply)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Only this session")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events (0 for all)")
	return cmd
}

func newPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List questions waiting to be taught",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries := a.Pending.List()
				sort.Slice(entries, func(i, j int) bool {
					if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
						return entries[i].CreatedAt.Before(entries[j].CreatedAt)
					}
					return entries[i].SessionID < entries[j].SessionID
				})
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d pending\n", len(entries))
				for _, e := range entries {
					fmt.Fprintf(out, "%s: %s\n", e.SessionID, e.Question)
				}
				return nil
			})
		},
	}
}
