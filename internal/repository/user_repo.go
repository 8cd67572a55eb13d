package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(user *model.User) error {
	return r.db.Create(user).Error
}

func (r *UserRepository) GetByID(id int64) (*model.User, error) {
	return r.first("id = ?", id)
}

func (r *UserRepository) GetByEmail(email string) (*model.User, error) {
	return r.first("email = ?", email)
}

func (r *UserRepository) GetByGithubID(githubID string) (*model.User, error) {
	return r.first("github_id = ?", githubID)
}

func (r *UserRepository) GetByVerificationCode(code string) (*model.User, error) {
	return r.first("verification_code = ?", code)
}

func (r *UserRepository) first(query string, arg interface{}) (*model.User, error) {
	var user model.User
	if err := r.db.Where(query, arg).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Update(user *model.User) error {
	return r.db.Save(user).Error
}

func (r *UserRepository) UpdateFields(id int64, fields map[string]interface{}) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// ConsumeQuota 在未达上限时占用一次配额，条件更新保证并发下不会超发
func (r *UserRepository) ConsumeQuota(id int64, limit int) (bool, error) {
	tx := r.db.Model(&model.User{}).
		Where("id = ? AND quota_used_today < ?", id, limit).
		Update("quota_used_today", gorm.Expr("quota_used_today + 1"))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *UserRepository) IncrementQuotaUsed(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).
		Update("quota_used_today", gorm.Expr("quota_used_today + 1")).Error
}

// DecrementQuotaUsed 归还一次配额，不会低于 0
func (r *UserRepository) DecrementQuotaUsed(id int64) error {
	return r.db.Model(&model.User{}).Where("id = ? AND quota_used_today > 0", id).
		Update("quota_used_today", gorm.Expr("quota_used_today - 1")).Error
}

func (r *UserRepository) ResetQuota(id int64, nextResetAt time.Time) error {
	return r.db.Model(&model.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"quota_used_today": 0,
		"quota_reset_at":   nextResetAt,
	}).Error
}

// ResetAllQuotas 重置所有用户配额，返回受影响行数
func (r *UserRepository) ResetAllQuotas(nextResetAt time.Time) (int64, error) {
	tx := r.db.Model(&model.User{}).Where("quota_used_today > 0 OR quota_reset_at IS NULL").Updates(map[string]interface{}{
		"quota_used_today": 0,
		"quota_reset_at":   nextResetAt,
	})
	return tx.RowsAffected, tx.Error
}

func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	err := r.db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}
