package cmd

import (
	"encoding/json"

	"hlsbox/core/audio"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "检查ffmpeg是否可用",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := audio.CheckTool(cfg.FFmpegPath)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"status":           "ok",
			"ffmpeg_available": status.Available,
			"ffmpeg_path":      status.Path,
			"reason":           status.Reason,
		})
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
