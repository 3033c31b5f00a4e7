package cmd

import (
	"hlsbox/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动HLS转换服务器",
	Long:  `启动HTTP服务器，提供 POST /api/hls 转换接口和 GET /api/health 健康检查`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
