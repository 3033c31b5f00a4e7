package cmd

import (
	"fmt"

	"hlsbox/core/archive"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "清理过期的归档文件",
	Long:  `删除归档目录中超过 ARCHIVE_MAX_AGE 的 *_hls_*.zip 文件`,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := archive.NewSweeper(cfg.ArchiveDir, cfg.ArchiveMaxAge).Sweep()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if res.Skipped {
			fmt.Fprintln(out, "another sweep is running, skipped")
			return nil
		}
		fmt.Fprintf(out, "removed %d, kept %d\n", res.Removed, res.Kept)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
