package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/koios/arqia/internal/redesign"
	"github.com/koios/arqia/pkg/models"
	"github.com/spf13/cobra"
)

func newRedesignCmd() *cobra.Command {
	var (
		style string
		mode  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "redesign PHOTO",
		Short: "Redesign a room photo in the given style",
		Example: `  arqia redesign --style minimalista living-room.jpg
  arqia redesign --style industrial --mode wait kitchen.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading photo: %w", err)
			}

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.shutdown()

			image := redesign.NewImage(data)

			var result redesign.Result
			switch redesign.Mode(mode) {
			case redesign.ModeWait:
				result, err = a.service.GenerateBlocking(ctx, image, style)
			case redesign.ModePoll:
				var onProgress redesign.ProgressFunc
				if !quiet {
					onProgress = progressPrinter(cmd.ErrOrStderr())
				}
				result, err = a.service.GeneratePolling(ctx, image, style, onProgress)
			default:
				return fmt.Errorf("unknown mode %q (want poll or wait)", mode)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.ImageURL)
			return nil
		},
	}

	cmd.Flags().StringVarP(&style, "style", "s", "", "style id (see \"arqia styles\")")
	cmd.Flags().StringVar(&mode, "mode", string(redesign.ModePoll), "tracking mode: poll or wait")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print progress")
	_ = cmd.MarkFlagRequired("style")

	return cmd
}

func progressPrinter(w io.Writer) redesign.ProgressFunc {
	return func(ev models.ProgressEvent) {
		if ev.Terminal {
			fmt.Fprintf(w, "\r%-12s %3d%%\n", ev.State, ev.Progress)
			return
		}
		fmt.Fprintf(w, "\r%-12s %3d%% (attempt %d)", ev.State, ev.Progress, ev.Attempt)
	}
}
