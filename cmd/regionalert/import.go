package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/regionalert/internal/core"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		chunkSize  int
		showErrors int
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV of region code, phone number rows",
		Long: `Parse a CSV file and store its valid (region code, phone number) rows.

Invalid rows are counted and skipped. Rows already stored are ignored, so
importing the same file twice inserts nothing the second time.`,
		Example: "  regionalert import contacts.csv\n  regionalert import --errors 20 contacts.csv",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}

			if chunkSize <= 0 {
				chunkSize = a.cfg.Import.ChunkSize
			}
			opts := []core.ImporterOption{
				core.WithChunkSize(chunkSize),
				core.WithLogger(a.logger),
			}
			if a.cfg.History.Enabled {
				opts = append(opts, core.WithHistory(st))
			}
			importer := core.NewImporter(core.NewParser(a.logger), st, opts...)

			report, err := importer.Import(ctx, args[0])
			if err != nil {
				msg := core.MapError(err)
				fmt.Fprintf(cmd.ErrOrStderr(), "%s (%s): %s\n", msg.Message, msg.Code, msg.Action)
				return err
			}

			printReport(cmd.OutOrStdout(), report, showErrors)
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "rows per INSERT statement (default from IMPORT_CHUNK_SIZE)")
	cmd.Flags().IntVar(&showErrors, "errors", 10, "number of rejected rows to list (0 hides them)")
	return cmd
}

const reportRule = "==================="

// printReport writes the human-readable import summary.
func printReport(w io.Writer, r core.ImportReport, showErrors int) {
	var b strings.Builder

	fmt.Fprintf(&b, "\nCSV IMPORT REPORT\n%s\n\n", reportRule)
	fmt.Fprintf(&b, "Total rows:       %d\n", r.TotalRows)
	fmt.Fprintf(&b, "✔ Success Count:  %d\n", r.ValidRows)
	fmt.Fprintf(&b, "✔ Inserted Rows:  %d\n", r.InsertedRows)
	fmt.Fprintf(&b, "✖ Error Count:    %d\n", r.ErrorRows)

	if r.ErrorRows > 0 {
		b.WriteString("\n⚠ Some rows were skipped due to errors.\n")

		n := max(0, min(showErrors, len(r.RowErrors)))
		for _, re := range r.RowErrors[:n] {
			fmt.Fprintf(&b, "  row %d: %s\n", re.Row, re.Reason)
		}
		if hidden := r.ErrorRows - n; n > 0 && hidden > 0 {
			fmt.Fprintf(&b, "  ... and %d more\n", hidden)
		}
	}

	fmt.Fprintf(&b, "\n%s\n", reportRule)
	_, _ = io.WriteString(w, b.String())
}
