package handler

import (
	"context"
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/internal/api/middleware"
	"github.com/qs3c/coach_go_server/internal/model/dto"
	"github.com/qs3c/coach_go_server/internal/pkg/response"
	"github.com/qs3c/coach_go_server/internal/recorder"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
)

// 单个音频分片上限
const maxChunkBytes = 1 << 20

// 录音流上的控制消息
const (
	streamStop  = "stop"
	streamSaved = "recording_saved"
	streamError = "error"
)

type streamFrame struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type RecorderHandler struct {
	recorderService *service.RecorderService
	upgrader        *websocket.Upgrader
	logger          *zap.Logger
}

func NewRecorderHandler(recorderService *service.RecorderService, allowedOrigins []string, logger *zap.Logger) *RecorderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecorderHandler{
		recorderService: recorderService,
		upgrader:        newUpgrader(allowedOrigins),
		logger:          logger,
	}
}

// GetPermission 当前麦克风权限
// GET /api/v1/recorder/permission
func (h *RecorderHandler) GetPermission(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	response.Success(c, dto.PermissionResponse{
		Permission: string(h.recorderService.Permission(userID)),
	})
}

// SetPermission 上报浏览器权限变化
// PUT /api/v1/recorder/permission
func (h *RecorderHandler) SetPermission(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	p, err := h.recorderService.SetPermission(userID, req.Permission)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, dto.PermissionResponse{Permission: string(p)})
}

// Status 录音器状态
// GET /api/v1/recorder/status
func (h *RecorderHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	response.Success(c, h.recorderService.Status(userID))
}

// Start 开始录音
// POST /api/v1/recorder/start
func (h *RecorderHandler) Start(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	status, err := h.recorderService.Start(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.SuccessWithMessage(c, "开始录音", status)
}

// PushChunk 上传一段音频，请求体为原始字节
// POST /api/v1/recorder/chunks
func (h *RecorderHandler) PushChunk(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	chunk, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChunkBytes+1))
	if err != nil {
		response.ParamError(c, "读取音频失败")
		return
	}
	if len(chunk) == 0 || len(chunk) > maxChunkBytes {
		response.ParamError(c, "音频分片为空或过大")
		return
	}

	if err := h.recorderService.PushChunk(c.Request.Context(), userID, chunk); err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.Success(c, gin.H{"received": len(chunk)})
}

// Stop 结束录音
// POST /api/v1/recorder/stop
func (h *RecorderHandler) Stop(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.recorderService.Stop(c.Request.Context(), userID)
	if err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.SuccessWithMessage(c, "录音已保存", info)
}

// Stream 通过 WebSocket 推送音频：二进制帧为音频分片，文本帧 "stop" 结束录音
// GET /api/v1/recorder/stream?token=xxx
func (h *RecorderHandler) Stream(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("recorder stream upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxChunkBytes)

	ctx := c.Request.Context()
	saved := false
	// 连接未经 "stop" 就断开时放弃本次录音
	defer func() {
		if saved {
			return
		}
		if err := h.recorderService.Discard(context.Background(), userID); err != nil {
			h.logger.Warn("discard abandoned recording failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if err := h.recorderService.PushChunk(ctx, userID, data); err != nil {
				conn.WriteJSON(streamFrame{Type: streamError, Message: err.Error()})
				if errors.Is(err, recorder.ErrRecordingTooBig) {
					return
				}
			}
		case websocket.TextMessage:
			if string(data) != streamStop {
				continue
			}
			info, err := h.recorderService.Stop(ctx, userID)
			if err != nil {
				conn.WriteJSON(streamFrame{Type: streamError, Message: err.Error()})
				return
			}
			saved = true
			conn.WriteJSON(streamFrame{Type: streamSaved, Data: info})
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ListRecordings 未过期的录音
// GET /api/v1/recordings
func (h *RecorderHandler) ListRecordings(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.recorderService.ListRecordings(c.Request.Context(), userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, gin.H{"items": items})
}

// DeleteRecording 删除录音
// DELETE /api/v1/recordings/:id
func (h *RecorderHandler) DeleteRecording(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	id, ok := idParam(c, "id")
	if !ok {
		response.ParamError(c, "无效的录音 ID")
		return
	}

	if err := h.recorderService.DeleteRecording(c.Request.Context(), userID, id); err != nil {
		h.handleError(c, userID, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

func (h *RecorderHandler) handleError(c *gin.Context, userID int64, err error) {
	switch {
	case errors.Is(err, recorder.ErrPermissionDenied):
		response.ErrorWithData(c, response.CodeMicrophoneDenied, "", h.recorderService.Status(userID))
	case errors.Is(err, recorder.ErrInvalidPermission), errors.Is(err, recorder.ErrRecordingTooBig):
		response.ParamError(c, err.Error())
	case errors.Is(err, recorder.ErrInvalidState),
		errors.Is(err, recorder.ErrNotRecording),
		errors.Is(err, recorder.ErrNoActiveCapture),
		errors.Is(err, recorder.ErrCaptureClosed):
		response.StateError(c, err.Error())
	case errors.Is(err, repository.ErrRecordingNotFound):
		response.NotFoundError(c, "录音不存在或已过期")
	default:
		h.logger.Error("recorder request failed", zap.Int64("user_id", userID), zap.Error(err))
		response.ServerError(c, "")
	}
}
