// Package model provides data models for the docchat service.
package model

import (
	"time"
)

// 文档处理状态。状态流转由摄取管道驱动，对话路径从不修改。
const (
	// DocStatusPending 已注册，等待摄取。
	DocStatusPending = "pending"
	// DocStatusProcessing 摄取进行中。该状态同时作为软锁，
	// 防止同一文档被两个摄取任务并发处理。
	DocStatusProcessing = "processing"
	// DocStatusCompleted 摄取完成，文档块可检索。
	DocStatusCompleted = "completed"
	// DocStatusFailed 摄取失败，管道已停止。
	DocStatusFailed = "failed"
)

// 支持的文档格式。
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatTXT  = "txt"
	FormatMD   = "md"
)

// Document represents one uploaded file registered for ingestion.
type Document struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(26);comment:文档ID(ULID)"`
	ProductID   string    `json:"product_id" gorm:"type:varchar(26);index:idx_product;not null;comment:所属产品"`
	Filename    string    `json:"filename" gorm:"type:varchar(255);not null;comment:原始文件名"`
	Format      string    `json:"format" gorm:"type:varchar(16);not null;comment:文档格式 pdf/docx/txt/md"`
	ContentType string    `json:"content_type" gorm:"type:varchar(128);comment:MIME类型"`
	ObjectKey   string    `json:"object_key" gorm:"type:varchar(512);not null;comment:对象存储键"`
	SizeBytes   int64     `json:"size_bytes" gorm:"default:0;comment:文件大小(字节)"`
	Status      string    `json:"status" gorm:"type:varchar(32);default:'pending';index:idx_status;comment:处理状态"`
	FailReason  string    `json:"fail_reason,omitempty" gorm:"type:varchar(1024);comment:失败原因"`
	ChunkCount  int       `json:"chunk_count" gorm:"default:0;comment:已提交块数"`
	PageCount   int       `json:"page_count" gorm:"default:0;comment:总页数"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for Document.
func (Document) TableName() string {
	return "documents"
}

// DocumentList contains a list of documents and pagination info.
type DocumentList struct {
	TotalCount int64       `json:"totalCount"`
	Items      []*Document `json:"items"`
}
