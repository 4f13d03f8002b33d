package handler

import (
	"strconv"

	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/gin-gonic/gin"
)

// ReadStateHandler handles unread listings and read markers
type ReadStateHandler struct {
	service *service.ReadStateService
}

// NewReadStateHandler creates a new ReadStateHandler
func NewReadStateHandler(service *service.ReadStateService) *ReadStateHandler {
	return &ReadStateHandler{service: service}
}

// GetUnread handles GET /api/v1/forums/unread
// @Summary 읽지 않은 토픽 목록
// @Tags read-state
// @Produce json
// @Param board_id query int false "게시판 ID"
// @Param limit query int false "항목 수"
// @Param offset query int false "건너뛸 항목 수"
// @Success 200 {object} common.APIResponse{data=[]domain.Topic}
// @Security BearerAuth
// @Router /forums/unread [get]
func (h *ReadStateHandler) GetUnread(c *gin.Context) {
	var boardID *uint64
	if raw := c.Query("board_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			common.RespondError(c, common.NewError(common.ErrValidation, "invalid board_id"))
			return
		}
		boardID = &id
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(service.DefaultUnreadLimit)))
	limit = h.service.UnreadLimit(limit)
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	topics, total, err := h.service.GetUnreadTopics(c.Request.Context(), middleware.GetUserID(c), boardID, limit, offset)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.SuccessWithMeta(c, topics, common.NewMeta(offset/limit+1, limit, total))
}

// GetUnreadCount handles GET /api/v1/forums/unread/count
// @Summary 읽지 않은 토픽 수
// @Tags read-state
// @Success 200 {object} common.APIResponse{data=domain.UnreadCount}
// @Security BearerAuth
// @Router /forums/unread/count [get]
func (h *ReadStateHandler) GetUnreadCount(c *gin.Context) {
	count, err := h.service.GetUnreadCount(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, count)
}

// MarkTopicRead handles POST /api/v1/forums/topics/:id/mark-read
// @Summary 토픽 읽음 표시
// @Tags read-state
// @Param id path int true "토픽 ID"
// @Success 200 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/topics/{id}/mark-read [post]
func (h *ReadStateHandler) MarkTopicRead(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkTopicAsRead(c.Request.Context(), middleware.GetUserID(c), topicID); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"topic_id": topicID})
}

// MarkBoardRead handles POST /api/v1/forums/boards/:id/mark-read
// @Summary 게시판 전체 읽음 표시
// @Tags read-state
// @Param id path int true "게시판 ID"
// @Success 200 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/boards/{id}/mark-read [post]
func (h *ReadStateHandler) MarkBoardRead(c *gin.Context) {
	boardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.MarkBoardAsRead(c.Request.Context(), middleware.GetUserID(c), boardID); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"board_id": boardID})
}

// MarkAllRead handles POST /api/v1/forums/mark-all-read
// @Summary 모두 읽음 표시
// @Tags read-state
// @Success 200 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/mark-all-read [post]
func (h *ReadStateHandler) MarkAllRead(c *gin.Context) {
	if err := h.service.MarkAllAsRead(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"marked": true})
}
