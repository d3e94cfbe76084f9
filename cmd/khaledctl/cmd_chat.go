package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ai-khaled/internal/app"
	"ai-khaled/internal/markov"
	"ai-khaled/internal/model"
)

func newAskCmd() *cobra.Command {
	var sessionID string
	var raw bool
	cmd := &cobra.Command{
		Use:   "ask <text>",
		Short: "Send a message and print the reply",
		Long: `Send a message through the conversation handler, exactly like the bot.
With --raw the reply is resolved directly and nothing is recorded in memory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if raw {
					r := a.Responder.Resolve(ctx, text, sessionID)
					fmt.Fprintln(out, r.Text)
					if verbose {
						fmt.Fprintf(out, "stage=%s session=%s\n", r.Stage, r.SessionID)
					}
					return nil
				}
				res, err := a.Conversation.Handle(ctx, sessionID, text)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, res.Reply)
				if verbose {
					fmt.Fprintf(out, "stage=%s session=%s learned=%t\n", res.Stage, res.SessionID, res.Learned)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "cli", "Session id")
	cmd.Flags().BoolVar(&raw, "raw", false, "Resolve only, do not record the turn")
	return cmd
}

func newTeachCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "teach <question> <answer>",
		Short: "Store a question/answer pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				saved, err := a.Conversation.Teach(ctx, sessionID, args[0], args[1])
				if err != nil {
					return err
				}
				if saved {
					fmt.Fprintln(cmd.OutOrStdout(), "saved")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "already known")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "cli", "Session id")
	return cmd
}

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Retrain the reply model from the dataset and memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Trainer.Run(ctx)
				if errors.Is(err, model.ErrNoData) {
					return fmt.Errorf("nothing to train on: dataset and memory are empty")
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "trained on %d examples in %s -> %s\n", res.Examples, res.Took.Round(time.Millisecond), res.Path)
				return nil
			})
		},
	}
}

func newGenerateCmd() *cobra.Command {
	var (
		length int
		order  int
		seed   int64
	)
	cmd := &cobra.Command{
		Use:   "generate [seed text]",
		Short: "Generate free text from the learned corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				chain := markov.Build(corpus(ctx, a), order)
				if chain.Len() == 0 {
					return fmt.Errorf("corpus is too small to generate text")
				}
				if seed == 0 {
					seed = time.Now().UnixNano()
				}
				text := chain.Generate(strings.Join(args, " "), length, rand.New(rand.NewSource(seed)))
				fmt.Fprintln(cmd.OutOrStdout(), text)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&length, "length", "n", markov.DefaultMaxLen, "Maximum number of generated tokens")
	cmd.Flags().IntVar(&order, "order", markov.DefaultOrder, "Chain order")
	cmd.Flags().Int64Var(&seed, "rand-seed", 0, "Random seed (default: time based)")
	return cmd
}

// corpus collects every learned and remembered utterance.
func corpus(ctx context.Context, a *app.App) []string {
	var out []string
	for _, p := range a.Dataset.Pairs(ctx) {
		out = append(out, p.Question, p.Answer)
	}
	for _, s := range a.Memory.Load().Sessions {
		for _, m := range s.Messages {
			if m.UserText != "" {
				out = append(out, m.UserText)
			}
			if m.BotText != "" {
				out = append(out, m.BotText)
			}
		}
	}
	return out
}
