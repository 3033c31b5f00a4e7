package cmd

import (
	"fmt"
	"time"

	"hlsbox/storage"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	minioPrefix string
	minioPrune  time.Duration
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶状态",
	Long:  `检查归档存储桶，列出镜像的归档文件，可选删除过期文件`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewArchiveStore(cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if err := store.EnsureBucket(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if minioPrune > 0 {
			removed, err := store.Prune(ctx, time.Now().Add(-minioPrune))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "已删除 %d 个过期归档\n", removed)
		}

		objects, stats, err := store.List(ctx, minioPrefix)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, renderObjects(objects))
		fmt.Fprintf(out, "存储桶 %s: %d 个文件, 共 %s\n", store.Bucket(), stats.TotalObjects, storage.FormatSize(stats.TotalSize))
		return nil
	},
}

func renderObjects(objects []storage.ObjectInfo) string {
	tw := newTable("Key", "Size", "Modified")
	for _, obj := range objects {
		tw.AppendRow(table.Row{obj.Key, storage.FormatSize(obj.Size), obj.LastModified.Local().Format("2006-01-02 15:04:05")})
	}
	rightAlign(tw, 2)
	return tw.Render()
}

func init() {
	minioCmd.Flags().StringVar(&minioPrefix, "prefix", storage.ArchivePrefix, "object prefix to list")
	minioCmd.Flags().DurationVar(&minioPrune, "prune", 0, "delete mirrored archives older than this before listing")
	rootCmd.AddCommand(minioCmd)
}
