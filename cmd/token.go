package cmd

import (
	"fmt"
	"time"

	"hlsbox/server"

	"github.com/spf13/cobra"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发访问令牌",
	Long:  `使用 AUTH_JWT_SECRET 签发一个 HS256 令牌，供客户端调用 POST /api/hls`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.AuthJWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is not set")
		}
		token, err := server.IssueToken([]byte(cfg.AuthJWTSecret), tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "client", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
