package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"chaptercast/internal/config"
	"chaptercast/internal/pipeline"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var metadataURL, shortName, startURL, endURL string

	cmd := &cobra.Command{
		Use:   "add <source-url>",
		Short: "Submit a book for processing",
		Long: `Submit a book for processing. The chapter listing at the source URL is
scraped, chapters in the requested range move through the pipeline, and
finished artifacts sync to the remote library. Re-adding a known book merges
newly published chapters without redoing finished ones.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDB(func(cfg *config.Config, db *sql.DB) error {
				store := records.NewStore(db)
				broker := queue.NewBroker(db)

				book, err := pipeline.Ingest(cmd.Context(), store, broker, pipeline.IngestRequest{
					SourceURL:   args[0],
					MetadataURL: metadataURL,
					ShortName:   shortName,
					StartURL:    startURL,
					EndURL:      endURL,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s for discovery (book id %s)\n", args[0], book.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&metadataURL, "metadata-url", "", "Metadata page URL for the book")
	cmd.Flags().StringVar(&shortName, "short-name", "", "Short name used for artifact paths and the book id")
	cmd.Flags().StringVar(&startURL, "start-url", "", "First chapter URL to process (defaults to the first listed)")
	cmd.Flags().StringVar(&endURL, "end-url", "", "Last chapter URL to process (defaults to the last listed)")

	return cmd
}
