package repository

import (
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

func (r *ConversationRepository) GetByID(id int64) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListByUser 列表不返回转写全文和分析正文
func (r *ConversationRepository) ListByUser(userID int64, page, pageSize int) ([]*model.Conversation, int64, error) {
	var items []*model.Conversation
	var total int64

	query := r.db.Model(&model.Conversation{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Select("id, user_id, recording_id, title, duration, model, analysis_failed, failure_kind, used_fallback, fallback_reason, created_at").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Delete 只删除属于该用户的记录，返回是否删除成功
func (r *ConversationRepository) Delete(id, userID int64) (bool, error) {
	tx := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{})
	return tx.RowsAffected > 0, tx.Error
}
