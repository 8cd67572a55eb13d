package handler

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/oauth"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/service"
)

// OAuthStateStore 一次性 OAuth state
type OAuthStateStore interface {
	GenerateState(ctx context.Context, redirectURI string) (string, error)
	ValidateState(ctx context.Context, state string) (string, error)
}

type AuthHandler struct {
	authService *service.AuthService
	states      OAuthStateStore
	frontendURL string
}

func NewAuthHandler(authService *service.AuthService, states OAuthStateStore, frontendURL string) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		states:      states,
		frontendURL: frontendURL,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists), errors.Is(err, service.ErrUsernameExists):
			response.DuplicateError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	msg := "注册成功"
	if resp.VerificationRequired {
		msg = "注册成功，请查收验证邮件"
	}
	response.SuccessWithMessage(c, msg, resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrEmailNotVerified):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// VerifyEmail 验证邮箱
// POST /api/v1/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req dto.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.VerifyEmail(req.Code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidVerifyCode):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "邮箱验证成功", resp)
}

// GithubAuth 跳转到 GitHub 授权页
// GET /api/v1/auth/github
func (h *AuthHandler) GithubAuth(c *gin.Context) {
	if h.states == nil {
		response.StateError(c, service.ErrOAuthDisabled.Error())
		return
	}

	state, err := h.states.GenerateState(c.Request.Context(), h.frontendURL)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	authURL, err := h.authService.GetGithubAuthURL(state)
	if err != nil {
		response.StateError(c, err.Error())
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, authURL)
}

// GithubCallback GitHub 授权回调，配置了前端地址时携带 token 跳转
// GET /api/v1/auth/github/callback
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	code := c.Query("code")
	state := c.Query("state")
	if code == "" || state == "" {
		response.ParamError(c, "缺少 code 或 state")
		return
	}
	if h.states == nil {
		response.StateError(c, service.ErrOAuthDisabled.Error())
		return
	}

	redirectURI, err := h.states.ValidateState(c.Request.Context(), state)
	if err != nil {
		if errors.Is(err, oauth.ErrInvalidState) {
			response.AuthError(c, "授权已过期，请重新登录")
			return
		}
		response.ServerError(c, "")
		return
	}

	resp, err := h.authService.GithubCallback(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, service.ErrOAuthDisabled) {
			response.StateError(c, err.Error())
			return
		}
		response.Error(c, response.CodeUpstreamError, "GitHub 登录失败")
		return
	}

	if redirectURI == "" {
		response.SuccessWithMessage(c, "登录成功", resp)
		return
	}

	target, err := url.Parse(redirectURI)
	if err != nil {
		response.SuccessWithMessage(c, "登录成功", resp)
		return
	}
	q := target.Query()
	q.Set("token", resp.Token)
	target.RawQuery = q.Encode()
	c.Redirect(http.StatusTemporaryRedirect, target.String())
}
