package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/pipeline"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/stage"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var wholeBook bool

	cmd := &cobra.Command{
		Use:   "retry <id>",
		Short: "Re-queue a failed chapter, or all failed chapters of a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store, broker *queue.Broker) error {
				if wholeBook {
					return retryBook(cmd, store, broker, args[0])
				}
				return retryChapter(cmd, store, broker, args[0])
			})
		},
	}

	cmd.Flags().BoolVar(&wholeBook, "book", false, "Treat the id as a book and retry all of its failed chapters")
	return cmd
}

func retryChapter(cmd *cobra.Command, store *records.Store, broker *queue.Broker, chapterID string) error {
	channel, err := pipeline.ResumeChapter(cmd.Context(), store, broker, chapterID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Re-queued chapter %s on %s\n", chapterID, channel)
	return nil
}

func retryBook(cmd *cobra.Command, store *records.Store, broker *queue.Broker, bookID string) error {
	book, err := store.GetBook(cmd.Context(), bookID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if book.Status == stage.StatusFailed {
		if err := pipeline.ResumeBook(cmd.Context(), store, broker, bookID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Re-queued book %s for discovery\n", bookID)
		return nil
	}

	chapters, err := store.ListChaptersByBook(cmd.Context(), bookID)
	if err != nil {
		return err
	}
	retried := 0
	for _, chapter := range chapters {
		if chapter.StageStatus != stage.StatusFailed {
			continue
		}
		if err := retryChapter(cmd, store, broker, chapter.ID); err != nil {
			return err
		}
		retried++
	}
	if retried == 0 {
		fmt.Fprintln(out, "No failed chapters to retry.")
	}
	return nil
}
