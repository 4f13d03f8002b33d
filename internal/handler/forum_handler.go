package handler

import (
	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/gin-gonic/gin"
)

// ForumHandler handles boards, topics and posts
type ForumHandler struct {
	service *service.ForumService
}

// NewForumHandler creates a new ForumHandler
func NewForumHandler(service *service.ForumService) *ForumHandler {
	return &ForumHandler{service: service}
}

// ListCategories handles GET /api/v1/forums/categories
// @Summary 카테고리별 게시판 목록
// @Tags forums
// @Produce json
// @Success 200 {object} common.APIResponse{data=[]domain.CategoryView}
// @Router /forums/categories [get]
func (h *ForumHandler) ListCategories(c *gin.Context) {
	categories, err := h.service.ListCategories(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, categories)
}

// GetBoard handles GET /api/v1/forums/boards/:id
// @Summary 게시판 토픽 목록
// @Description 최근 활동 순으로 정렬된 토픽 목록
// @Tags forums
// @Produce json
// @Param id path int true "게시판 ID"
// @Param page query int false "페이지 번호"
// @Param limit query int false "페이지당 항목 수"
// @Success 200 {object} common.APIResponse{data=domain.BoardPage}
// @Failure 404 {object} common.APIResponse
// @Router /forums/boards/{id} [get]
func (h *ForumHandler) GetBoard(c *gin.Context) {
	boardID, ok := paramID(c, "id")
	if !ok {
		return
	}
	opts := h.service.Options()
	page, limit := pageQuery(c, opts.TopicsPerPage, opts.MaxPageSize)

	result, err := h.service.GetBoardWithTopics(c.Request.Context(), boardID, page, limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.SuccessWithMeta(c, result, common.NewMeta(page, limit, result.Total))
}

// GetTopic handles GET /api/v1/forums/topics/:id
// @Summary 토픽 메시지 목록
// @Tags forums
// @Produce json
// @Param id path int true "토픽 ID"
// @Param page query int false "페이지 번호"
// @Param limit query int false "페이지당 항목 수"
// @Success 200 {object} common.APIResponse{data=domain.TopicPage}
// @Failure 404 {object} common.APIResponse
// @Router /forums/topics/{id} [get]
func (h *ForumHandler) GetTopic(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	opts := h.service.Options()
	page, limit := pageQuery(c, opts.MessagesPerPage, opts.MaxPageSize)

	result, err := h.service.GetTopicWithPosts(c.Request.Context(), topicID, page, limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.SuccessWithMeta(c, result, common.NewMeta(page, limit, result.Total))
}

// IncrementView handles POST /api/v1/forums/topics/:id/view
// @Summary 조회수 증가
// @Tags forums
// @Param id path int true "토픽 ID"
// @Success 200 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /forums/topics/{id}/view [post]
func (h *ForumHandler) IncrementView(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.IncrementTopicViews(c.Request.Context(), topicID); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"topic_id": topicID})
}

// CreateTopic handles POST /api/v1/forums/topics
// @Summary 토픽 작성
// @Description 첫 메시지와 선택적 투표를 함께 생성
// @Tags forums
// @Accept json
// @Produce json
// @Param request body domain.CreateTopicRequest true "토픽"
// @Success 201 {object} common.APIResponse{data=domain.Topic}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/topics [post]
func (h *ForumHandler) CreateTopic(c *gin.Context) {
	var req domain.CreateTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	topic, err := h.service.CreateTopic(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Created(c, topic)
}

// DeleteTopic handles DELETE /api/v1/forums/topics/:id
// @Summary 토픽 삭제 (운영자)
// @Tags forums
// @Param id path int true "토픽 ID"
// @Success 200 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/topics/{id} [delete]
func (h *ForumHandler) DeleteTopic(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteTopic(c.Request.Context(), middleware.GetActor(c), topicID); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"topic_id": topicID})
}

// LockTopic handles PUT /api/v1/forums/topics/:id/lock
// @Summary 토픽 잠금/해제 (운영자)
// @Tags forums
// @Accept json
// @Param id path int true "토픽 ID"
// @Param request body domain.LockTopicRequest true "잠금 여부"
// @Success 200 {object} common.APIResponse{data=domain.Topic}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/topics/{id}/lock [put]
func (h *ForumHandler) LockTopic(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.LockTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	topic, err := h.service.LockTopic(c.Request.Context(), middleware.GetActor(c), topicID, req.Locked)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, topic)
}

// MoveTopic handles PUT /api/v1/forums/topics/:id/move
// @Summary 토픽 이동 (운영자)
// @Tags forums
// @Accept json
// @Param id path int true "토픽 ID"
// @Param request body domain.MoveTopicRequest true "대상 게시판"
// @Success 200 {object} common.APIResponse{data=domain.Topic}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/topics/{id}/move [put]
func (h *ForumHandler) MoveTopic(c *gin.Context) {
	topicID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.MoveTopicRequest
	if !bindJSON(c, &req) {
		return
	}
	topic, err := h.service.MoveTopic(c.Request.Context(), middleware.GetActor(c), topicID, req.BoardID)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, topic)
}

// CreatePost handles POST /api/v1/forums/posts
// @Summary 답글 작성
// @Tags forums
// @Accept json
// @Produce json
// @Param request body domain.CreatePostRequest true "답글"
// @Success 201 {object} common.APIResponse{data=domain.Message}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/posts [post]
func (h *ForumHandler) CreatePost(c *gin.Context) {
	var req domain.CreatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.service.CreatePost(c.Request.Context(), middleware.GetActor(c), &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Created(c, msg)
}

// GetMessagePage handles GET /api/v1/forums/posts/:id/page
// @Summary 메시지가 위치한 페이지
// @Tags forums
// @Param id path int true "메시지 ID"
// @Param limit query int false "페이지 크기"
// @Success 200 {object} common.APIResponse{data=domain.MessagePosition}
// @Router /forums/posts/{id}/page [get]
func (h *ForumHandler) GetMessagePage(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	opts := h.service.Options()
	_, limit := pageQuery(c, opts.MessagesPerPage, opts.MaxPageSize)

	pos, err := h.service.GetMessagePage(c.Request.Context(), messageID, limit)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, pos)
}

// UpdatePost handles PUT /api/v1/forums/posts/:id
// @Summary 메시지 수정
// @Tags forums
// @Accept json
// @Param id path int true "메시지 ID"
// @Param request body domain.UpdatePostRequest true "수정 내용"
// @Success 200 {object} common.APIResponse{data=domain.Message}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/posts/{id} [put]
func (h *ForumHandler) UpdatePost(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.UpdatePostRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.service.UpdatePost(c.Request.Context(), middleware.GetActor(c), messageID, &req)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, msg)
}

// DeletePost handles DELETE /api/v1/forums/posts/:id
// @Summary 메시지 삭제
// @Description 첫 메시지는 삭제할 수 없음 (토픽 삭제 사용)
// @Tags forums
// @Param id path int true "메시지 ID"
// @Success 200 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/posts/{id} [delete]
func (h *ForumHandler) DeletePost(c *gin.Context) {
	messageID, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeletePost(c.Request.Context(), middleware.GetActor(c), messageID); err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, gin.H{"message_id": messageID})
}
