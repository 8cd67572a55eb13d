package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/coach_go_server/internal/api/middleware"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/service"
	"github.com/qs3c/coach_go_server/internal/subscription"
)

type SubscriptionHandler struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptionService: subscriptionService,
	}
}

// Plans 套餐列表，登录用户附带当前生效套餐
// GET /api/v1/plans
func (h *SubscriptionHandler) Plans(c *gin.Context) {
	data := gin.H{"plans": subscription.Plans()}

	if userID, ok := middleware.GetUserID(c); ok {
		planID, err := h.subscriptionService.EffectivePlan(userID)
		if err != nil {
			response.ServerError(c, "")
			return
		}
		data["current_plan"] = planID
	}

	response.Success(c, data)
}

// Get 当前订阅
// GET /api/v1/subscription
func (h *SubscriptionHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.subscriptionService.Get(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, info)
}

// Upgrade 升级套餐
// POST /api/v1/subscription/upgrade
func (h *SubscriptionHandler) Upgrade(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.UpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	info, err := h.subscriptionService.Upgrade(userID, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "升级成功", info)
}

// Cancel 到期后取消
// POST /api/v1/subscription/cancel
func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.subscriptionService.Cancel(userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅将在当前周期结束后取消", info)
}

// Reactivate 恢复订阅
// POST /api/v1/subscription/reactivate
func (h *SubscriptionHandler) Reactivate(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.subscriptionService.Reactivate(userID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	response.SuccessWithMessage(c, "订阅已恢复", info)
}

// Access 查询功能权限
// GET /api/v1/subscription/access?feature=
func (h *SubscriptionHandler) Access(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	feature := c.Query("feature")
	if feature == "" {
		response.ParamError(c, "缺少 feature 参数")
		return
	}

	resp, err := h.subscriptionService.HasAccess(userID, feature)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, resp)
}

func (h *SubscriptionHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subscription.ErrInvalidPlan), errors.Is(err, subscription.ErrInvalidInterval):
		response.ParamError(c, err.Error())
	case errors.Is(err, subscription.ErrNoActiveSubscription),
		errors.Is(err, subscription.ErrAlreadyCanceling),
		errors.Is(err, subscription.ErrNotCanceling),
		errors.Is(err, subscription.ErrSubscriptionEnded):
		response.StateError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
