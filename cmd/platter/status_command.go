package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var status struct {
				Enabled bool           `json:"enabled"`
				Length  int            `json:"length"`
				Stats   map[string]int `json:"stats"`
			}
			if err := newAPIClient(cfg).get("/api/status", &status); err != nil {
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, err.Error(), colorize))
				return nil
			}

			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running at "+cfg.Paths.APIBind, colorize))
			processing := statusOK
			processingText := "enabled"
			if !status.Enabled {
				processing = statusWarn
				processingText = "disabled"
			}
			fmt.Fprintln(out, renderStatusLine("Processing", processing, processingText, colorize))
			fmt.Fprintln(out, renderStatusLine("Awaiting encode", statusInfo, strconv.Itoa(status.Length), colorize))
			for name, count := range status.Stats {
				fmt.Fprintln(out, renderStatusLine(name, statusInfo, strconv.Itoa(count), colorize))
			}
			return nil
		},
	}
}

func newEnableCommand(ctx *commandContext) *cobra.Command {
	return newToggleCommand(ctx, "enable", "Resume queue processing", "/api/enable", "Processing enabled")
}

func newDisableCommand(ctx *commandContext) *cobra.Command {
	return newToggleCommand(ctx, "disable", "Pause queue processing", "/api/disable", "Processing disabled")
}

func newToggleCommand(ctx *commandContext, use, short, path, confirmation string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := newAPIClient(cfg).post(path, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), confirmation)
			return nil
		},
	}
}
