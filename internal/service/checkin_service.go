package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/repository"
)

var (
	ErrCheckInExists  = errors.New("今天已经打过卡了")
	ErrInvalidCheckIn = errors.New("打卡内容不完整")
)

const (
	minMood = 1
	maxMood = 10
)

// CheckInService 每日情绪打卡，日期按配置时区计算
type CheckInService struct {
	repo *repository.CheckInRepository
	loc  *time.Location
	now  func() time.Time
}

func NewCheckInService(repo *repository.CheckInRepository, loc *time.Location) *CheckInService {
	if loc == nil {
		loc = time.Local
	}
	return &CheckInService{repo: repo, loc: loc, now: time.Now}
}

func (s *CheckInService) today() string {
	return s.now().In(s.loc).Format(model.CheckInDateLayout)
}

// validateCheckIn 在访问存储之前完成全部校验
func validateCheckIn(req *dto.CreateCheckInRequest) error {
	if req.Mood < minMood || req.Mood > maxMood {
		return fmt.Errorf("%w: mood must be between %d and %d", ErrInvalidCheckIn, minMood, maxMood)
	}
	fields := []struct {
		name  string
		value string
	}{
		{"highlight", req.Highlight},
		{"challenge", req.Challenge},
		{"gratitude", req.Gratitude},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidCheckIn, f.name)
		}
	}
	if !req.NeedsSupport && req.SupportDetails != nil && strings.TrimSpace(*req.SupportDetails) != "" {
		return fmt.Errorf("%w: support_details requires needs_support", ErrInvalidCheckIn)
	}
	return nil
}

// Create 提交今日打卡，每人每天一次
func (s *CheckInService) Create(userID int64, req *dto.CreateCheckInRequest) (*model.CheckIn, error) {
	if err := validateCheckIn(req); err != nil {
		return nil, err
	}

	checkIn := &model.CheckIn{
		UserID:       userID,
		CheckInDate:  s.today(),
		Mood:         req.Mood,
		Highlight:    strings.TrimSpace(req.Highlight),
		Challenge:    strings.TrimSpace(req.Challenge),
		Gratitude:    strings.TrimSpace(req.Gratitude),
		NeedsSupport: req.NeedsSupport,
	}
	if req.NeedsSupport && req.SupportDetails != nil {
		if details := strings.TrimSpace(*req.SupportDetails); details != "" {
			checkIn.SupportDetails = &details
		}
	}

	if err := s.repo.Create(checkIn); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCheckInExists
		}
		return nil, err
	}
	return checkIn, nil
}

// List 打卡历史，最新在前
func (s *CheckInService) List(userID int64, page, pageSize int) ([]*model.CheckIn, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.repo.ListByUser(userID, page, pageSize)
}

// Today 今日打卡，未打卡返回 nil
func (s *CheckInService) Today(userID int64) (*model.CheckIn, error) {
	checkIn, err := s.repo.GetByDate(userID, s.today())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return checkIn, err
}

// Summary 打卡进度：总数、平均心情、连续天数
func (s *CheckInService) Summary(userID int64) (*dto.CheckInSummary, error) {
	stats, err := s.repo.Stats(userID)
	if err != nil {
		return nil, err
	}
	dates, err := s.repo.ListDates(userID)
	if err != nil {
		return nil, err
	}

	today := s.today()
	current, longest := streaks(dates, today)

	return &dto.CheckInSummary{
		Total:          stats.Total,
		AverageMood:    math.Round(stats.AverageMood*10) / 10,
		CurrentStreak:  current,
		LongestStreak:  longest,
		SupportCount:   stats.SupportCount,
		CheckedInToday: len(dates) > 0 && dates[0] == today,
	}, nil
}

// streaks dates 为倒序日期；今天尚未打卡时从昨天开始计算当前连续天数
func streaks(dates []string, today string) (current, longest int) {
	days := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(model.CheckInDateLayout, d)
		if err != nil {
			continue
		}
		days = append(days, t)
	}
	if len(days) == 0 {
		return 0, 0
	}

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i-1].Sub(days[i]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	todayDate, err := time.Parse(model.CheckInDateLayout, today)
	if err != nil {
		return 0, longest
	}
	expect := todayDate
	if !days[0].Equal(todayDate) {
		expect = todayDate.AddDate(0, 0, -1)
	}
	for _, d := range days {
		if !d.Equal(expect) {
			break
		}
		current++
		expect = expect.AddDate(0, 0, -1)
	}
	return current, longest
}
