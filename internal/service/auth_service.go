package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/model"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/jwt"
	"github.com/qs3c/coach_go_server/internal/pkg/oauth"
	"github.com/qs3c/coach_go_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrUsernameExists     = errors.New("用户名已被使用")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailNotVerified   = errors.New("邮箱尚未验证")
	ErrInvalidVerifyCode  = errors.New("验证码无效或已过期")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrOAuthDisabled      = errors.New("GitHub 登录未启用")
)

const verificationTTL = 24 * time.Hour

// Mailer 发送注册相关邮件
type Mailer interface {
	SendVerificationCode(to, code string) error
	SendWelcome(to, username string) error
}

// GithubProvider GitHub OAuth 客户端
type GithubProvider interface {
	Enabled() bool
	GetAuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	GetUser(ctx context.Context, token *oauth2.Token) (*oauth.GithubUser, error)
}

type AuthService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
	github   GithubProvider
	mailer   Mailer
	logger   *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config, github GithubProvider, mailer Mailer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
		github:   github,
		mailer:   mailer,
		logger:   logger,
	}
}

func (s *AuthService) debugMode() bool {
	return s.cfg.Server.Mode == "debug"
}

// Register 用户注册
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	// 检查邮箱是否存在
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	// 检查用户名是否存在
	exists, err = s.userRepo.ExistsByUsername(req.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	verifyCode, err := generateRandomCode(32)
	if err != nil {
		return nil, err
	}

	passwordStr := string(hashedPassword)
	expiresAt := time.Now().Add(verificationTTL)
	email := req.Email

	user := &model.User{
		Username:              req.Username,
		Email:                 &email,
		PasswordHash:          &passwordStr,
		VerificationCode:      &verifyCode,
		VerificationExpiresAt: &expiresAt,
	}

	// 开发环境直接视为已验证
	if s.debugMode() {
		user.EmailVerified = true
		user.VerificationCode = nil
		user.VerificationExpiresAt = nil
	}

	if err := s.userRepo.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameExists
		}
		return nil, err
	}

	if !user.EmailVerified && s.mailer != nil {
		if err := s.mailer.SendVerificationCode(email, verifyCode); err != nil {
			// 邮件失败不影响注册
			s.logger.Warn("send verification email failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	return &dto.RegisterResponse{
		UserID:               user.ID,
		VerificationRequired: !user.EmailVerified,
	}, nil
}

// Login 用户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 生产环境强制要求验证邮箱
	if !user.EmailVerified && !s.debugMode() {
		return nil, ErrEmailNotVerified
	}

	return s.issueToken(user)
}

// VerifyEmail 验证邮箱
func (s *AuthService) VerifyEmail(code string) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByVerificationCode(code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidVerifyCode
		}
		return nil, err
	}

	if user.VerificationExpiresAt == nil || time.Now().After(*user.VerificationExpiresAt) {
		return nil, ErrInvalidVerifyCode
	}

	user.EmailVerified = true
	user.VerificationCode = nil
	user.VerificationExpiresAt = nil
	if err := s.userRepo.Update(user); err != nil {
		return nil, err
	}

	if user.Email != nil && s.mailer != nil {
		if err := s.mailer.SendWelcome(*user.Email, user.Username); err != nil {
			s.logger.Warn("send welcome email failed", zap.Int64("user_id", user.ID), zap.Error(err))
		}
	}

	return s.issueToken(user)
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// GetGithubAuthURL 获取 GitHub 授权 URL
func (s *AuthService) GetGithubAuthURL(state string) (string, error) {
	if s.github == nil || !s.github.Enabled() {
		return "", ErrOAuthDisabled
	}
	return s.github.GetAuthURL(state), nil
}

// GithubCallback 处理 GitHub OAuth 回调，首次登录自动建号
func (s *AuthService) GithubCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	if s.github == nil || !s.github.Enabled() {
		return nil, ErrOAuthDisabled
	}

	token, err := s.github.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	githubUser, err := s.github.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get github user: %w", err)
	}

	githubIDStr := fmt.Sprintf("%d", githubUser.ID)

	user, err := s.userRepo.GetByGithubID(githubIDStr)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil {
		user = &model.User{
			Username:      githubUser.Login,
			GithubID:      &githubIDStr,
			AvatarURL:     githubUser.AvatarURL,
			EmailVerified: true, // OAuth 用户默认已验证
		}

		if githubUser.Email != "" {
			exists, err := s.userRepo.ExistsByEmail(githubUser.Email)
			if err != nil {
				return nil, err
			}
			// 邮箱已被本地账号占用时不绑定
			if !exists {
				email := githubUser.Email
				user.Email = &email
			}
		}

		exists, err := s.userRepo.ExistsByUsername(user.Username)
		if err != nil {
			return nil, err
		}
		if exists {
			user.Username = fmt.Sprintf("%s_%d", githubUser.Login, githubUser.ID)
		}

		if err := s.userRepo.Create(user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("github user created", zap.Int64("user_id", user.ID), zap.String("login", githubUser.Login))

		if user.Email != nil && s.mailer != nil {
			if err := s.mailer.SendWelcome(*user.Email, githubUser.DisplayName()); err != nil {
				s.logger.Warn("send welcome email failed", zap.Int64("user_id", user.ID), zap.Error(err))
			}
		}
	}

	return s.issueToken(user)
}

func (s *AuthService) issueToken(user *model.User) (*dto.LoginResponse, error) {
	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		Token: token,
		User:  buildUserInfo(user),
	}, nil
}

func buildUserInfo(user *model.User) *dto.UserInfo {
	info := &dto.UserInfo{
		ID:            user.ID,
		Username:      user.Username,
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		PartnerName:   user.PartnerName,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
	}
	if user.Email != nil {
		info.Email = *user.Email
	}
	return info
}

func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length/2)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
