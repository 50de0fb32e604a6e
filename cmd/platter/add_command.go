package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"platter/internal/media"
	"platter/internal/queue"
	"platter/internal/textutil"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var device string
	var volume string
	var outputPath string
	var titleIndex int

	cmd := &cobra.Command{
		Use:   "add [path]",
		Short: "Queue a disc image or drive for processing",
		Long: "Queue a source for processing. Pass a disc image path to encode it,\n" +
			"or --device (with --volume) to rip from an optical drive first.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var source media.Source
			needsRip := false
			switch {
			case device != "":
				if strings.TrimSpace(volume) == "" {
					return errors.New("--volume is required with --device")
				}
				source = media.NewDriveSource(device, volume)
				needsRip = true
			case len(args) == 1:
				absolute, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				source = media.NewFileSource(absolute)
			default:
				return errors.New("provide a path or --device")
			}
			if err := source.Validate(); err != nil {
				return err
			}

			if outputPath == "" {
				outputPath = filepath.Join(cfg.Paths.OutputDir,
					textutil.SanitizeFileName(source.DisplayName())+".mkv")
			}

			// Prefer the running daemon so the new job is picked up
			// immediately; fall back to the store when it is down.
			client := newAPIClient(cfg)
			var view struct {
				ID     int64  `json:"id"`
				Status string `json:"status"`
			}
			err = client.post("/api/queue", map[string]any{
				"path":        source.Path,
				"device":      device,
				"volume":      volume,
				"output_path": outputPath,
				"title_index": titleIndex,
			}, &view)
			switch {
			case err == nil:
				fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d (%s)\n", view.ID, view.Status)
				return nil
			case errors.Is(err, errDaemonUnreachable):
				return addDirect(cmd, ctx, source, outputPath, titleIndex, needsRip)
			default:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&device, "device", "", "Optical drive device to rip from")
	cmd.Flags().StringVar(&volume, "volume", "", "Disc volume label (with --device)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Encoded output path")
	cmd.Flags().IntVarP(&titleIndex, "title", "t", 0, "Title number to encode (0 selects the longest)")

	return cmd
}

func addDirect(cmd *cobra.Command, ctx *commandContext, source media.Source, outputPath string, titleIndex int, needsRip bool) error {
	return ctx.withStore(func(store *queue.Store) error {
		initial := queue.StatusPendingEncode
		if needsRip {
			initial = queue.StatusPendingRip
		}
		item, err := store.Insert(cmd.Context(), source, outputPath, titleIndex, initial)
		if err != nil {
			if errors.Is(err, queue.ErrDuplicateKey) {
				fmt.Fprintf(cmd.OutOrStdout(), "Already queued: %s\n", source.DisplayName())
				return nil
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued item %d (%s); the daemon will pick it up on startup\n",
			item.ID, item.Status.String())
		return nil
	})
}
