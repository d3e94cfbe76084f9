package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ai-khaled/internal/app"
)

func newDatasetCmd() *cobra.Command {
	datasetCmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect and edit the learned pairs",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List learned pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				total, pairs := a.Maintenance.ListPairs(ctx, limit)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%d pairs\n", total)
				for i, p := range pairs {
					fmt.Fprintf(out, "%d. %s => %s\n", i+1, p.Question, p.Answer)
				}
				return nil
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum pairs to print (0 for all)")

	addCmd := &cobra.Command{
		Use:   "add <question> <answer>",
		Short: "Append a pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Maintenance.AddPair(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "added")
				return nil
			})
		},
	}

	var answer string
	deleteCmd := &cobra.Command{
		Use:   "delete <question>",
		Short: "Delete the pairs for a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Maintenance.DeletePairs(ctx, args[0], answer)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
				return nil
			})
		},
	}
	deleteCmd.Flags().StringVar(&answer, "answer", "", "Only delete the pair with this answer")

	var outPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dataset as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if outPath == "" || outPath == "-" {
					return a.Maintenance.ExportDataset(ctx, cmd.OutOrStdout())
				}
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", outPath, err)
				}
				if err := a.Maintenance.ExportDataset(ctx, f); err != nil {
					_ = f.Close()
					return err
				}
				return f.Close()
			})
		},
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output file")

	datasetCmd.AddCommand(listCmd, addCmd, deleteCmd, exportCmd)
	return datasetCmd
}

func newKBCmd() *cobra.Command {
	kbCmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the knowledge base",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge base entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries := a.KB.Load()
				keys := make([]string, 0, len(entries))
				for k := range entries {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%s => %s\n", k, entries[k])
				}
				return nil
			})
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Merge phrase/reply entries from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readKBFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.KB.Import(entries)
				if err != nil {
					return err
				}
				for k := range entries {
					a.Cache.Delete(ctx, k)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", n)
				return nil
			})
		},
	}

	kbCmd.AddCommand(listCmd, importCmd)
	return kbCmd
}

// readKBFile decodes a flat phrase -> reply mapping. JSON input parses as YAML.
func readKBFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	entries := make(map[string]string, len(raw))
	for k, v := range raw {
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		entries[k] = v
	}
	return entries, nil
}
