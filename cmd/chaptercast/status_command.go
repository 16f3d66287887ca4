package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show chapter counts per status and queue depths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store, broker *queue.Broker) error {
				counts, err := store.ChapterCountsByStatus(cmd.Context())
				if err != nil {
					return err
				}
				depths, err := broker.Depths(cmd.Context())
				if err != nil {
					return err
				}

				var statusRows [][]string
				for _, status := range stage.AllStatuses() {
					if n := counts[status]; n > 0 {
						statusRows = append(statusRows, []string{status.Label(), strconv.Itoa(n)})
					}
				}
				out := cmd.OutOrStdout()
				if len(statusRows) == 0 {
					fmt.Fprintln(out, "No chapters tracked yet.")
				} else {
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Chapters"}, statusRows,
						[]columnAlignment{alignLeft, alignRight}))
				}

				var queueRows [][]string
				for _, ch := range queue.Channels() {
					if n := depths[ch]; n > 0 {
						queueRows = append(queueRows, []string{string(ch), strconv.Itoa(n)})
					}
				}
				if len(queueRows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Channel", "Tasks"}, queueRows,
						[]columnAlignment{alignLeft, alignRight}))
				}
				return nil
			})
		},
	}
}
