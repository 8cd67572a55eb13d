package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.ConversationJob) error {
	return r.db.Create(job).Error
}

func (r *JobRepository) GetByID(id int64) (*model.ConversationJob, error) {
	var job model.ConversationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) UpdateStep(id int64, step string) error {
	return r.db.Model(&model.ConversationJob{}).Where("id = ?", id).Update("current_step", step).Error
}

// MarkStarted 任务开始处理
func (r *JobRepository) MarkStarted(id int64, at time.Time) error {
	return r.db.Model(&model.ConversationJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     model.JobStatusProcessing,
		"started_at": at,
	}).Error
}

// MarkCompleted 记录结果与耗时
func (r *JobRepository) MarkCompleted(job *model.ConversationJob, conversationID int64, at time.Time) error {
	fields := map[string]interface{}{
		"status":          model.JobStatusCompleted,
		"conversation_id": conversationID,
		"completed_at":    at,
		"current_step":    "",
	}
	if job.StartedAt != nil {
		fields["elapsed_seconds"] = int(at.Sub(*job.StartedAt).Seconds())
	}
	return r.db.Model(&model.ConversationJob{}).Where("id = ?", job.ID).Updates(fields).Error
}

func (r *JobRepository) MarkFailed(id int64, message string, at time.Time) error {
	return r.db.Model(&model.ConversationJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        model.JobStatusFailed,
		"error_message": message,
		"completed_at":  at,
	}).Error
}

// FailStale 将长时间未完成的任务标记为失败（worker 崩溃遗留），返回处理条数
func (r *JobRepository) FailStale(before time.Time, message string, dryRun bool) (int64, error) {
	query := r.db.Model(&model.ConversationJob{}).
		Where("status IN ? AND created_at < ?", []string{model.JobStatusQueued, model.JobStatusProcessing}, before)

	if dryRun {
		var count int64
		err := query.Count(&count).Error
		return count, err
	}

	tx := query.Updates(map[string]interface{}{
		"status":        model.JobStatusFailed,
		"error_message": message,
	})
	return tx.RowsAffected, tx.Error
}
