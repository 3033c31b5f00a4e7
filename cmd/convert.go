package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"hlsbox/core/archive"
	"hlsbox/core/convert"
	"hlsbox/server"

	"github.com/spf13/cobra"
)

var (
	convertOutDir      string
	convertContentType string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.mp3>",
	Short: "离线转换单个MP3文件",
	Long:  `使用与HTTP接口相同的流程转换一个本地MP3文件，并把生成的 <name>_hls.zip 写到输出目录`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		service, closeBackends := server.BuildService(cfg)
		defer closeBackends()

		art, err := service.Convert(cmd.Context(), convert.Asset{
			Filename:    filepath.Base(args[0]),
			ContentType: convertContentType,
			Data:        data,
		})
		if err != nil {
			return err
		}
		defer art.Remove()

		dest, err := saveArtifact(art, convertOutDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries, %d bytes)\n", dest, len(art.Entries), art.Size)
		return nil
	},
}

// saveArtifact copies the archive to dir under its download name.
func saveArtifact(art *archive.Artifact, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	src, err := os.Open(art.Path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dest := filepath.Join(dir, art.DownloadName)
	dst, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return dest, dst.Close()
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutDir, "output", "o", ".", "directory to write the archive to")
	convertCmd.Flags().StringVar(&convertContentType, "content-type", "audio/mpeg", "declared media type of the input")
	rootCmd.AddCommand(convertCmd)
}
