package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
)

func newBooksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "books",
		Short: "List tracked books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store, broker *queue.Broker) error {
				books, err := store.ListBooks(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(books) == 0 {
					fmt.Fprintln(out, "No books tracked yet.")
					return nil
				}

				rows := make([][]string, 0, len(books))
				for _, book := range books {
					rows = append(rows, []string{
						book.ID,
						book.Title,
						book.Status.Label(),
						strconv.Itoa(len(book.ChapterIDs)),
						book.LastError,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Status", "Chapters", "Last Error"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}
}

func newChaptersCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "chapters <book-id>",
		Short: "List a book's chapters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store, broker *queue.Broker) error {
				chapters, err := store.ListChaptersByBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()

				rows := make([][]string, 0, len(chapters))
				for _, chapter := range chapters {
					if statusFilter != "" && string(chapter.StageStatus) != statusFilter {
						continue
					}
					rows = append(rows, []string{
						strconv.Itoa(chapter.OrderIndex + 1),
						chapter.ID,
						chapter.Title,
						chapter.StageStatus.Label(),
						strconv.Itoa(chapter.RetryCount),
						chapter.LastError,
					})
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No matching chapters.")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "ID", "Title", "Status", "Retries", "Last Error"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only show chapters in this status")
	return cmd
}
