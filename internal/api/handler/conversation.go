package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/internal/api/middleware"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/service"
)

type ConversationHandler struct {
	conversationService *service.ConversationService
	logger              *zap.Logger
}

func NewConversationHandler(conversationService *service.ConversationService, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{
		conversationService: conversationService,
		logger:              logger,
	}
}

// Analyze 同步分析录音
// POST /api/v1/recordings/:id/analyze
func (h *ConversationHandler) Analyze(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	recordingID, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的录音 ID")
		return
	}

	result, err := h.conversationService.Analyze(c.Request.Context(), userID, recordingID)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, result)
}

// Submit 提交异步分析任务
// POST /api/v1/recordings/:id/jobs
func (h *ConversationHandler) Submit(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	recordingID, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的录音 ID")
		return
	}

	resp, err := h.conversationService.Submit(c.Request.Context(), userID, recordingID)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.SuccessWithMessage(c, "任务已提交", resp)
}

// Demo 生成演示对话
// POST /api/v1/conversations/demo
func (h *ConversationHandler) Demo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	result, err := h.conversationService.Demo(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, result)
}

// List 对话列表
// GET /api/v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, pageSize := pagination(c)
	items, total, err := h.conversationService.List(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Get 对话详情
// GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的对话 ID")
		return
	}

	result, err := h.conversationService.Get(userID, id)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, result)
}

// Delete 删除对话
// DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的对话 ID")
		return
	}

	if err := h.conversationService.Delete(userID, id); err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// GetJob 异步任务状态
// GET /api/v1/jobs/:id
func (h *ConversationHandler) GetJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的任务 ID")
		return
	}

	info, err := h.conversationService.GetJob(userID, id)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, info)
}

func (h *ConversationHandler) handleError(c *gin.Context, userID int64, err error) {
	switch {
	case errors.Is(err, service.ErrAnalysisInProgress):
		response.Error(c, response.CodeAnalysisInFlight, err.Error())
	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, err.Error())
	case errors.Is(err, service.ErrRecordingNotFound),
		errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrJobNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrAsyncDisabled):
		response.StateError(c, err.Error())
	default:
		h.logger.Error("conversation request failed", zap.Int64("user_id", userID), zap.Error(err))
		response.ServerError(c, "")
	}
}
