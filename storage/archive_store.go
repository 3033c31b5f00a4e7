package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"hlsbox/config"
	"hlsbox/core/archive"
	"hlsbox/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchivePrefix is the object prefix every mirrored archive lives under.
const ArchivePrefix = "archives/"

// ObjectInfo 对象信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int
	TotalSize    int64
	LastModified time.Time
}

// ArchiveStore mirrors produced archives into an S3 compatible bucket.
type ArchiveStore struct {
	client *minio.Client
	bucket string
	region string
	now    func() time.Time
}

// NewArchiveStore 初始化 MinIO 客户端. It does not contact the server.
func NewArchiveStore(cfg *config.Config) (*ArchiveStore, error) {
	if cfg.MinioBucket == "" {
		return nil, fmt.Errorf("MinIO bucket not configured")
	}
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}
	return &ArchiveStore{
		client: client,
		bucket: cfg.MinioBucket,
		region: cfg.MinioRegion,
		now:    time.Now,
	}, nil
}

// Bucket returns the target bucket name.
func (s *ArchiveStore) Bucket() string {
	return s.bucket
}

// EnsureBucket 检查存储桶是否存在, creating it when missing.
func (s *ArchiveStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("检查存储桶失败: %w", err)
	}
	if exists {
		logger.Debug("存储桶已存在", logger.String("bucket", s.bucket))
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("创建存储桶失败: %w", err)
	}
	logger.Info("成功创建存储桶", logger.String("bucket", s.bucket))
	return nil
}

// ObjectKey places an archive file under a per-day prefix.
func ObjectKey(at time.Time, fileName string) string {
	return path.Join(ArchivePrefix, at.UTC().Format("2006/01/02"), fileName)
}

// Upload copies the archive into the bucket and returns its object location.
func (s *ArchiveStore) Upload(ctx context.Context, art *archive.Artifact) (string, error) {
	key := ObjectKey(s.now(), filepath.Base(art.Path))
	info, err := s.client.FPutObject(ctx, s.bucket, key, art.Path, minio.PutObjectOptions{
		ContentType:        "application/zip",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", art.DownloadName),
	})
	if err != nil {
		return "", fmt.Errorf("上传归档失败 %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s", info.Bucket, info.Key), nil
}

// List 列出存储桶中的对象 under prefix.
func (s *ArchiveStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("列出对象时出错: %w", object.Err)
		}
		stats.add(object.Size, object.LastModified)
		objects = append(objects, ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		})
	}
	return objects, stats, nil
}

// Prune removes mirrored archives last modified before cutoff and returns how many went.
func (s *ArchiveStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	objects, _, err := s.List(ctx, ArchivePrefix)
	if err != nil {
		return 0, err
	}
	stale := staleKeys(objects, cutoff)
	if len(stale) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(stale))
	for _, key := range stale {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	removed := len(stale)
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		removed--
		logger.Warn("删除对象失败", logger.String("key", rerr.ObjectName), logger.ErrorField(rerr.Err))
	}
	return removed, nil
}

func staleKeys(objects []ObjectInfo, cutoff time.Time) []string {
	var keys []string
	for _, obj := range objects {
		if obj.LastModified.Before(cutoff) {
			keys = append(keys, obj.Key)
		}
	}
	return keys
}

func (b *BucketStats) add(size int64, modified time.Time) {
	b.TotalObjects++
	b.TotalSize += size
	if modified.After(b.LastModified) {
		b.LastModified = modified
	}
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
