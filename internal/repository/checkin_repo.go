package repository

import (
	"errors"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
)

type CheckInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Create 同一用户同一天重复打卡返回 ErrDuplicate
func (r *CheckInRepository) Create(checkIn *model.CheckIn) error {
	err := r.db.Create(checkIn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func (r *CheckInRepository) GetByDate(userID int64, date string) (*model.CheckIn, error) {
	var checkIn model.CheckIn
	err := r.db.Where("user_id = ? AND check_in_date = ?", userID, date).First(&checkIn).Error
	if err != nil {
		return nil, err
	}
	return &checkIn, nil
}

// ListByUser 按日期倒序分页
func (r *CheckInRepository) ListByUser(userID int64, page, pageSize int) ([]*model.CheckIn, int64, error) {
	var items []*model.CheckIn
	var total int64

	query := r.db.Model(&model.CheckIn{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("check_in_date DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// ListDates 用户全部打卡日期，倒序
func (r *CheckInRepository) ListDates(userID int64) ([]string, error) {
	var dates []string
	err := r.db.Model(&model.CheckIn{}).
		Where("user_id = ?", userID).
		Order("check_in_date DESC").
		Pluck("check_in_date", &dates).Error
	return dates, err
}

// CheckInStats 打卡汇总
type CheckInStats struct {
	Total        int64
	AverageMood  float64
	SupportCount int64
}

func (r *CheckInRepository) Stats(userID int64) (*CheckInStats, error) {
	var row struct {
		Total        int64
		AverageMood  *float64
		SupportCount int64
	}
	err := r.db.Model(&model.CheckIn{}).
		Select("COUNT(*) AS total, AVG(mood) AS average_mood, "+
			"COALESCE(SUM(CASE WHEN needs_support THEN 1 ELSE 0 END), 0) AS support_count").
		Where("user_id = ?", userID).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	stats := &CheckInStats{Total: row.Total, SupportCount: row.SupportCount}
	if row.AverageMood != nil {
		stats.AverageMood = *row.AverageMood
	}
	return stats, nil
}
