package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/coach_go_server/internal/api/middleware"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/service"
)

type CheckInHandler struct {
	checkInService *service.CheckInService
}

func NewCheckInHandler(checkInService *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

// Create 提交今日打卡
// POST /api/v1/checkins
func (h *CheckInHandler) Create(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CreateCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	checkIn, err := h.checkInService.Create(userID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCheckIn):
			response.ParamError(c, err.Error())
		case errors.Is(err, service.ErrCheckInExists):
			response.DuplicateError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "打卡成功", checkIn)
}

// List 打卡历史
// GET /api/v1/checkins
func (h *CheckInHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	page, pageSize := pagination(c)

	items, total, err := h.checkInService.List(userID, page, pageSize)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// Today 今日打卡，未打卡时 data 为 null
// GET /api/v1/checkins/today
func (h *CheckInHandler) Today(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	checkIn, err := h.checkInService.Today(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, checkIn)
}

// Summary 打卡汇总
// GET /api/v1/checkins/summary
func (h *CheckInHandler) Summary(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	summary, err := h.checkInService.Summary(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, summary)
}
