package handler

import (
	"github.com/damoang/angple-forum/internal/common"
	"github.com/damoang/angple-forum/internal/scheduler"
	"github.com/damoang/angple-forum/internal/service"
	"github.com/gin-gonic/gin"
)

// MaintenanceHandler exposes repair jobs to admins
type MaintenanceHandler struct {
	reconcile *service.ReconcileService
	scheduler *scheduler.Scheduler
}

// NewMaintenanceHandler creates a new MaintenanceHandler. sched may be nil.
func NewMaintenanceHandler(reconcile *service.ReconcileService, sched *scheduler.Scheduler) *MaintenanceHandler {
	return &MaintenanceHandler{reconcile: reconcile, scheduler: sched}
}

// FixPointers handles POST /api/v1/forums/maintenance/fix-pointers
// @Summary 카운터/포인터 재계산 (관리자)
// @Description 토픽, 게시판, 투표 선택지의 비정규화 값을 원본 데이터로부터 다시 계산
// @Tags maintenance
// @Success 200 {object} common.APIResponse{data=service.ReconcileReport}
// @Security BearerAuth
// @Router /forums/maintenance/fix-pointers [post]
func (h *MaintenanceHandler) FixPointers(c *gin.Context) {
	report, err := h.reconcile.FixMessagePointers(c.Request.Context())
	if err != nil {
		common.RespondError(c, err)
		return
	}
	common.Success(c, report)
}

// Tasks handles GET /api/v1/forums/maintenance/tasks
// @Summary 백그라운드 작업 상태 (관리자)
// @Tags maintenance
// @Success 200 {object} common.APIResponse{data=[]scheduler.TaskInfo}
// @Security BearerAuth
// @Router /forums/maintenance/tasks [get]
func (h *MaintenanceHandler) Tasks(c *gin.Context) {
	if h.scheduler == nil {
		common.Success(c, []scheduler.TaskInfo{})
		return
	}
	common.Success(c, h.scheduler.Tasks())
}
