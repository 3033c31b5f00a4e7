package model

import "time"

const (
	ConversionStatusSuccess = "success"
	ConversionStatusFailed  = "failed"
)

// Conversion 记录一次 MP3 -> HLS 转换的结果
type Conversion struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID    string    `json:"requestId" gorm:"size:64;index"`
	Filename     string    `json:"filename" gorm:"size:255"`
	DownloadName string    `json:"downloadName" gorm:"size:255"`
	InputBytes   int64     `json:"inputBytes"`
	ArchiveBytes int64     `json:"archiveBytes"`
	Segments     int       `json:"segments"`
	Status       string    `json:"status" gorm:"size:20;index"` // success, failed
	ErrorKind    string    `json:"errorKind,omitempty" gorm:"size:40"`
	CacheHit     bool      `json:"cacheHit" gorm:"default:false"`
	ElapsedMs    int64     `json:"elapsedMs"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (Conversion) TableName() string {
	return "conversions"
}
