package handler

import (
	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/domain"
	"github.com/damoang/angple-forum/internal/middleware"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/gin-gonic/gin"
)

// PollHandler handles poll reads and votes
type PollHandler struct {
	service *service.PollService
}

// NewPollHandler creates a new PollHandler
func NewPollHandler(service *service.PollService) *PollHandler {
	return &PollHandler{service: service}
}

// GetPoll handles GET /api/v1/forums/polls/:id
// @Summary 투표 조회
// @Description hide_results 설정에 따라 득표 수가 숨겨질 수 있음
// @Tags polls
// @Produce json
// @Param id path int true "투표 ID"
// @Success 200 {object} common.APIResponse{data=domain.PollView}
// @Failure 404 {object} common.APIResponse
// @Router /forums/polls/{id} [get]
func (h *PollHandler) GetPoll(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.GetPoll(c.Request.Context(), pollID, middleware.GetActor(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, view)
}

// Vote handles POST /api/v1/forums/polls/:id/vote
// @Summary 투표하기
// @Tags polls
// @Accept json
// @Produce json
// @Param id path int true "투표 ID"
// @Param request body domain.VoteRequest true "선택지"
// @Success 200 {object} common.APIResponse{data=domain.PollView}
// @Failure 400 {object} common.APIResponse
// @Failure 403 {object} common.APIResponse
// @Failure 409 {object} common.APIResponse
// @Router /forums/polls/{id}/vote [post]
func (h *PollHandler) Vote(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.VoteRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.VotePoll(c.Request.Context(), pollID, middleware.GetActor(c), req.ChoiceIDs)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, view)
}

// RemoveVote handles DELETE /api/v1/forums/polls/:id/vote
// @Summary 투표 취소
// @Tags polls
// @Param id path int true "투표 ID"
// @Success 200 {object} common.APIResponse{data=domain.PollView}
// @Failure 403 {object} common.APIResponse
// @Failure 404 {object} common.APIResponse
// @Router /forums/polls/{id}/vote [delete]
func (h *PollHandler) RemoveVote(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	view, err := h.service.RemoveVote(c.Request.Context(), pollID, middleware.GetActor(c))
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, view)
}

// LockVoting handles PUT /api/v1/forums/polls/:id/lock
// @Summary 투표 마감/재개 (작성자 또는 운영자)
// @Tags polls
// @Accept json
// @Param id path int true "투표 ID"
// @Param request body domain.LockVotingRequest true "마감 여부"
// @Success 200 {object} common.APIResponse{data=domain.PollView}
// @Failure 403 {object} common.APIResponse
// @Security BearerAuth
// @Router /forums/polls/{id}/lock [put]
func (h *PollHandler) LockVoting(c *gin.Context) {
	pollID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req domain.LockVotingRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.service.LockVoting(c.Request.Context(), pollID, middleware.GetActor(c), req.Locked)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, view)
}
