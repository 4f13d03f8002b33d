package handler

import (
	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/presence"
	"github.com/gin-gonic/gin"
)

// PresenceHandler serves the "who is online" snapshot
type PresenceHandler struct {
	tracker *presence.Tracker
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(tracker *presence.Tracker) *PresenceHandler {
	return &PresenceHandler{tracker: tracker}
}

// Online handles GET /api/v1/forums/online
// @Summary 접속 중인 사용자
// @Tags presence
// @Success 200 {object} common.APIResponse{data=[]domain.OnlineEntry}
// @Router /forums/online [get]
func (h *PresenceHandler) Online(c *gin.Context) {
	entries, err := h.tracker.Online(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, entries)
}

// Stats handles GET /api/v1/forums/online/stats
// @Summary 접속자 통계
// @Tags presence
// @Success 200 {object} common.APIResponse{data=domain.OnlineStats}
// @Router /forums/online/stats [get]
func (h *PresenceHandler) Stats(c *gin.Context) {
	stats, err := h.tracker.Stats(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, stats)
}
