package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"NewsletterAgent/internal/app"
	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:          "newsletteragent",
		Short:        "Research, write, review and send the weekly AI agent newsletter",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (default $NEWSLETTER_AGENT_CONFIG)")

	root.AddCommand(newRunCmd(opts), newScheduleCmd(opts), newStageCmd(opts))
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one full pipeline run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
				state, runErr := a.Run(ctx)
				if out != "" {
					if err := domain.SaveStateFile(out, state); err != nil {
						logger.Error("save final state", "path", out, "error", err)
					}
				}
				printSummary(cmd.OutOrStdout(), state)
				return runErr
			})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the final pipeline state to this JSON file")
	return cmd
}

func newScheduleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline every week at the configured day and time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				return a.Schedule(ctx)
			})
		},
	}
}

func newStageCmd(opts *options) *cobra.Command {
	var in, out string
	cmd := &cobra.Command{
		Use:   "stage <name>",
		Short: "Run a single stage (research, extraction, curation, generation, review, gate, delivery) against a saved state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
				state := domain.NewState("")
				if in != "" {
					if err := domain.LoadStateFile(in, &state); err != nil {
						return err
					}
				}
				next, err := a.RunStage(ctx, args[0], state)
				if err != nil {
					return err
				}
				if out == "" {
					return domain.SaveState(cmd.OutOrStdout(), next)
				}
				if err := domain.SaveStateFile(out, next); err != nil {
					return err
				}
				logger.Info("stage complete", "stage", args[0], "out", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "state JSON file to start from (default empty state)")
	cmd.Flags().StringVar(&out, "out", "", "file to write the resulting state to (default stdout)")
	return cmd
}

func printSummary(w io.Writer, state domain.PipelineState) {
	fmt.Fprintf(w, "run:       %s\n", state.RunID)
	if d := state.NewsletterDraft; d != nil {
		fmt.Fprintf(w, "subject:   %s\n", d.Subject)
		fmt.Fprintf(w, "approved:  %t (score %.2f, revisions %d)\n", d.IsApproved, d.QualityScore, d.RevisionAttempts)
	}
	r := state.DeliveryReport
	if r == nil {
		fmt.Fprintln(w, "delivery:  not reached")
		return
	}
	switch {
	case r.Sent:
		fmt.Fprintf(w, "delivery:  sent to %d recipients (message %s)\n", r.Recipients, r.MessageID)
	case r.SendError != "":
		fmt.Fprintf(w, "delivery:  send failed: %s\n", r.SendError)
	default:
		fmt.Fprintf(w, "delivery:  skipped: %s\n", r.SkippedReason)
	}
	if r.ArchiveRef != "" {
		fmt.Fprintf(w, "archive:   %s\n", r.ArchiveRef)
	}
	if r.ArchiveError != "" {
		fmt.Fprintf(w, "archive:   failed: %s\n", r.ArchiveError)
	}
}

func withApp(ctx context.Context, opts *options, fn func(context.Context, *app.Application, *slog.Logger) error) error {
	cfg := config.Load(opts.configPath)
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
	}()

	if err := fn(ctx, application, logger); err != nil {
		logger.Error("application stopped", "error", err)
		return err
	}
	return nil
}
