package cmd

import (
	"fmt"
	"time"

	"hlsbox/db"
	"hlsbox/model"
	"hlsbox/repository"
	"hlsbox/storage"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyStatus string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "查看最近的转换记录",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.ConnectGormDB(cfg); err != nil {
			return err
		}
		defer db.CloseGormDB()

		repo := repository.NewGormConversionRepository(db.GormDB)
		rows, err := repo.ListRecent(cmd.Context(), historyLimit, historyStatus)
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		counts, err := repo.CountByStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to count history: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, renderHistory(rows))
		for _, c := range counts {
			fmt.Fprintf(out, "%s: %d\n", c.Status, c.Total)
		}
		return nil
	},
}

func renderHistory(rows []*model.Conversion) string {
	tw := newTable("Time", "Request", "File", "Status", "Segments", "Size", "Elapsed", "Cache")
	for _, c := range rows {
		status := c.Status
		if c.ErrorKind != "" {
			status += " (" + c.ErrorKind + ")"
		}
		cache := ""
		if c.CacheHit {
			cache = "hit"
		}
		tw.AppendRow(table.Row{
			c.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			c.RequestID,
			c.Filename,
			status,
			c.Segments,
			storage.FormatSize(c.ArchiveBytes),
			time.Duration(c.ElapsedMs) * time.Millisecond,
			cache,
		})
	}
	rightAlign(tw, 5, 6, 7)
	return tw.Render()
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of rows to show")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "only show success or failed rows")
	rootCmd.AddCommand(historyCmd)
}
