package repository

import (
	"context"

	"hlsbox/model"

	"gorm.io/gorm"
)

// StatusCount is the number of conversions that ended with Status.
type StatusCount struct {
	Status string
	Total  int64
}

// ConversionRepository 转换记录数据访问接口
type ConversionRepository interface {
	Record(ctx context.Context, c *model.Conversion) error
	ListRecent(ctx context.Context, limit int, status string) ([]*model.Conversion, error)
	CountByStatus(ctx context.Context) ([]StatusCount, error)
}

// gormConversionRepository GORM 实现
type gormConversionRepository struct {
	db *gorm.DB
}

// NewGormConversionRepository 创建 GORM 转换记录仓库
func NewGormConversionRepository(db *gorm.DB) ConversionRepository {
	return &gormConversionRepository{db: db}
}

// Record 保存一次转换结果
func (r *gormConversionRepository) Record(ctx context.Context, c *model.Conversion) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListRecent 按时间倒序返回最近的转换记录, optionally filtered by status.
func (r *gormConversionRepository) ListRecent(ctx context.Context, limit int, status string) ([]*model.Conversion, error) {
	var rows []*model.Conversion
	err := r.recentQuery(r.db.WithContext(ctx), limit, status).Find(&rows).Error
	return rows, err
}

func (r *gormConversionRepository) recentQuery(tx *gorm.DB, limit int, status string) *gorm.DB {
	if limit <= 0 {
		limit = 20
	}
	tx = tx.Model(&model.Conversion{})
	if status != "" {
		tx = tx.Where("status = ?", status)
	}
	return tx.Order("created_at DESC, id DESC").Limit(limit)
}

// CountByStatus 统计各状态的转换数量
func (r *gormConversionRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	var counts []StatusCount
	err := r.db.WithContext(ctx).Model(&model.Conversion{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Order("status").
		Scan(&counts).Error
	return counts, err
}
