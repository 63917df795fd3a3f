package store

import (
	"context"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/kart-io/docchat/internal/model"
)

type documents struct {
	db *gorm.DB
}

func newDocuments(db *gorm.DB) *documents {
	return &documents{db}
}

// Create 创建文档记录。
func (d *documents) Create(ctx context.Context, doc *model.Document) error {
	if doc.ID == "" {
		doc.ID = ulid.Make().String()
	}
	return d.db.WithContext(ctx).Create(doc).Error
}

// Get 按 ID 查询文档。
func (d *documents) Get(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := d.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// List 分页列出产品下的文档。
func (d *documents) List(ctx context.Context, productID string, offset, limit int) (int64, []*model.Document, error) {
	var count int64
	var docs []*model.Document

	query := d.db.WithContext(ctx).Model(&model.Document{}).Where("product_id = ?", productID)
	if err := query.Count(&count).Error; err != nil {
		return 0, nil, err
	}

	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&docs).Error; err != nil {
		return 0, nil, err
	}

	return count, docs, nil
}

// Delete 删除文档记录。
func (d *documents) Delete(ctx context.Context, id string) error {
	return d.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error
}

// ClaimProcessing 通过条件 UPDATE 原子地抢占摄取任务。
// 只有当前状态不是 processing 时才能抢占成功，两个并发触发
// 只会有一个看到 RowsAffected == 1。
func (d *documents) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	result := d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ? AND status <> ?", id, model.DocStatusProcessing).
		Updates(map[string]any{
			"status":      model.DocStatusProcessing,
			"fail_reason": "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// SetCompleted 标记摄取成功。
func (d *documents) SetCompleted(ctx context.Context, id string, chunkCount, pageCount int) error {
	return d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      model.DocStatusCompleted,
			"chunk_count": chunkCount,
			"page_count":  pageCount,
			"fail_reason": "",
		}).Error
}

// SetFailed 标记摄取失败并记录原因。
func (d *documents) SetFailed(ctx context.Context, id string, reason string) error {
	if len(reason) > 1024 {
		reason = reason[:1024]
	}
	return d.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      model.DocStatusFailed,
			"fail_reason": reason,
		}).Error
}

var _ DocumentStore = (*documents)(nil)
